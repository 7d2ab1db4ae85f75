package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record 表示一次意图处理的落库结构。每条记录在意图走完
// 执行或取消流程后写入一次，之后不再修改。
type Record struct {
	ID              string `json:"id"`
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id"`
	OriginalMessage string `json:"original_message"`
	Action          string `json:"action"`
	Status          string `json:"status"`
	TransactionID   string `json:"transaction_id,omitempty"`
	ReceiptStatus   string `json:"receipt_status,omitempty"`
	ErrorDetail     string `json:"error_detail,omitempty"`
	Rounds          int    `json:"rounds"`
	CreatedAt       int64  `json:"created_at"`
}

// NewRecord 生成带 ID 与时间戳的新记录。
func NewRecord() Record {
	return Record{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().Unix(),
	}
}

// Repository 抽象意图历史的持久化接口。
type Repository interface {
	Save(ctx context.Context, record Record) error
	ListLatest(ctx context.Context, limit int) ([]Record, error)
	Close() error
}
