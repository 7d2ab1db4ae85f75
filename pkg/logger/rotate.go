package logger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// rollingFile is an append-only writer that rolls the file over once it
// exceeds a size limit. Backups are numbered path.1 .. path.N and expire by
// modification time.
type rollingFile struct {
	mu      sync.Mutex
	path    string
	limit   int64
	backups int
	retain  time.Duration
	current *os.File
	written int64
}

func newRollingFile(path string, maxSizeMB, maxBackups, maxAgeDays int) (*rollingFile, error) {
	if path == "" {
		return nil, errors.New("path is required")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	if maxBackups <= 0 {
		maxBackups = 7
	}
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	return &rollingFile{
		path:    path,
		limit:   int64(maxSizeMB) << 20,
		backups: maxBackups,
		retain:  time.Duration(maxAgeDays) * 24 * time.Hour,
	}, nil
}

func (r *rollingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	if r.written+int64(len(p)) > r.limit {
		if err := r.roll(); err != nil {
			return 0, err
		}
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	n, err := r.current.Write(p)
	r.written += int64(n)
	return n, err
}

func (r *rollingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	r.written = 0
	return err
}

func (r *rollingFile) open() error {
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}
	r.current = file
	r.written = info.Size()
	return nil
}

// roll closes the current file and shifts each backup up one slot, dropping
// the oldest. path.N-1 becomes path.N, the live file becomes path.1.
func (r *rollingFile) roll() error {
	if r.current != nil {
		_ = r.current.Close()
		r.current = nil
	}
	r.written = 0

	for n := r.backups; n > 1; n-- {
		older := r.backupName(n - 1)
		if _, err := os.Stat(older); err == nil {
			_ = os.Rename(older, r.backupName(n))
		}
	}
	if _, err := os.Stat(r.path); err == nil {
		_ = os.Rename(r.path, r.backupName(1))
	}

	r.expire()
	return nil
}

func (r *rollingFile) expire() {
	deadline := time.Now().Add(-r.retain)
	for n := 1; n <= r.backups; n++ {
		name := r.backupName(n)
		info, err := os.Stat(name)
		if err != nil {
			continue
		}
		if info.ModTime().Before(deadline) {
			_ = os.Remove(name)
		}
	}
}

func (r *rollingFile) backupName(n int) string {
	return fmt.Sprintf("%s.%d", r.path, n)
}
