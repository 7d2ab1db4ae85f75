package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// SQLRepository 使用 MySQL 存储意图历史。
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository 创建连接池并初始化数据表。
func NewSQLRepository(dsn string) (*SQLRepository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("无法连接到 MySQL: %w", err)
	}

	repo := &SQLRepository{db: db}
	if err := repo.runMigrations(context.Background()); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 将历史记录写入 MySQL。
func (s *SQLRepository) Save(ctx context.Context, record Record) error {
	const stmt = `INSERT INTO intent_history
        (id, session_id, user_id, original_message, action, status, transaction_id, receipt_status, error_detail, rounds, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, stmt,
		record.ID,
		record.SessionID,
		record.UserID,
		record.OriginalMessage,
		record.Action,
		record.Status,
		record.TransactionID,
		record.ReceiptStatus,
		record.ErrorDetail,
		record.Rounds,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("写入 MySQL 失败: %w", err)
	}
	return nil
}

// ListLatest 查询最近的若干条历史记录。
func (s *SQLRepository) ListLatest(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, user_id, original_message, action, status, transaction_id, receipt_status, COALESCE(error_detail, ''), rounds, created_at
        FROM intent_history ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询历史记录失败: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		if err := rows.Scan(&record.ID, &record.SessionID, &record.UserID, &record.OriginalMessage, &record.Action, &record.Status, &record.TransactionID, &record.ReceiptStatus, &record.ErrorDetail, &record.Rounds, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("解析历史记录失败: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历历史记录失败: %w", err)
	}

	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
