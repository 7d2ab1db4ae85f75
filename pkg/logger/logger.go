package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config describes how the application logger should behave.
type Config struct {
	Level       string
	Format      string
	OutputPaths []string
	Audit       AuditConfig
}

// AuditConfig controls the audit channel. The audit channel records every
// submitted transaction and its outcome, so it always writes JSON and never
// shares a file with the application log.
type AuditConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// sink owns every writer the logger opened so Sync can close them together.
type sink struct {
	writers []io.Writer
	closers []io.Closer
}

func (s *sink) add(w io.Writer, c io.Closer) {
	if w != nil {
		s.writers = append(s.writers, w)
	}
	if c != nil {
		s.closers = append(s.closers, c)
	}
}

func (s *sink) writer() io.Writer {
	switch len(s.writers) {
	case 0:
		return os.Stdout
	case 1:
		return s.writers[0]
	default:
		return io.MultiWriter(s.writers...)
	}
}

var (
	mu       sync.Mutex
	appLog   *slog.Logger
	auditLog *slog.Logger
	out      sink
)

// Init configures the global logger instances. Calling it twice is an error.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()
	if appLog != nil {
		return errors.New("logger already initialised")
	}

	for _, path := range cfg.OutputPaths {
		w, c, err := openTarget(path)
		if err != nil {
			return err
		}
		out.add(w, c)
	}

	opts := &slog.HandlerOptions{Level: levelOf(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out.writer(), opts)
	} else {
		handler = slog.NewJSONHandler(out.writer(), opts)
	}
	appLog = slog.New(handler)

	auditLog = appLog
	if cfg.Audit.Enabled {
		if cfg.Audit.Path == "" {
			appLog = nil
			return errors.New("audit log path cannot be empty when enabled")
		}
		roll, err := newRollingFile(cfg.Audit.Path, cfg.Audit.MaxSizeMB, cfg.Audit.MaxBackups, cfg.Audit.MaxAgeDays)
		if err != nil {
			appLog = nil
			return err
		}
		out.add(nil, roll)
		auditLog = slog.New(slog.NewJSONHandler(roll, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return nil
}

func openTarget(path string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(path) {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, file, nil
}

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

func levelOf(name string) slog.Level {
	if lvl, ok := levelNames[strings.ToLower(name)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// L returns the structured logger, initialising a stdout default if needed.
func L() *slog.Logger {
	mu.Lock()
	ready := appLog != nil
	mu.Unlock()
	if !ready {
		_ = Init(Config{})
	}
	mu.Lock()
	defer mu.Unlock()
	if appLog == nil {
		return slog.Default()
	}
	return appLog
}

// Audit returns the audit logger.
func Audit() *slog.Logger {
	mu.Lock()
	a := auditLog
	mu.Unlock()
	if a == nil {
		return L()
	}
	return a
}

// Named returns a child logger with the provided component name.
func Named(name string) *slog.Logger {
	return L().WithGroup(name)
}

// Sync closes every file the logger opened.
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	var err error
	for _, closer := range out.closers {
		err = errors.Join(err, closer.Close())
	}
	out.closers = nil
	return err
}
