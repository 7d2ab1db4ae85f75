package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const maxCachedRecords = 512

// FileRepository 使用本地 JSON 行文件保存历史，方便迭代开发与离线运行。
type FileRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []Record
}

// NewFileRepository 创建一个文件历史仓库，启动时恢复已有记录。
func NewFileRepository(dataDir string) (*FileRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	path := filepath.Join(dataDir, "history.log")
	repo := &FileRepository{dataFile: path}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 以追加写的方式记录意图结果。
func (f *FileRepository) Save(_ context.Context, record Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开历史日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化历史记录失败: %w", err)
	}

	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入历史日志失败: %w", err)
	}

	f.records = append([]Record{record}, f.records...)
	if len(f.records) > maxCachedRecords {
		f.records = f.records[:maxCachedRecords]
	}
	return nil
}

// ListLatest 返回最近的历史记录，按时间倒序排列。
func (f *FileRepository) ListLatest(_ context.Context, limit int) ([]Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if limit <= 0 || limit > len(f.records) {
		limit = len(f.records)
	}

	results := make([]Record, limit)
	copy(results, f.records[:limit])
	return results, nil
}

// Close 对文件仓库无事可做。
func (f *FileRepository) Close() error { return nil }

func (f *FileRepository) loadFromDisk() error {
	file, err := os.OpenFile(f.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取历史日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var restored []Record
	for scanner.Scan() {
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append([]Record{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析历史日志失败: %w", err)
	}

	if len(restored) > maxCachedRecords {
		restored = restored[:maxCachedRecords]
	}
	if len(restored) > 0 {
		f.records = restored
	}
	return nil
}
