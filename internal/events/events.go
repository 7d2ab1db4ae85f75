// Package events 向外部系统广播意图执行结果，供下游审计与对账消费。
package events

import (
	"context"
)

// OutcomeEvent 是每次意图执行结束后发布的事件。
type OutcomeEvent struct {
	IntentID      string `json:"intent_id"`
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id,omitempty"`
	Action        string `json:"action"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	ReceiptStatus string `json:"receipt_status,omitempty"`
	ErrorDetail   string `json:"error_detail,omitempty"`
	OccurredAt    int64  `json:"occurred_at"`
}

// Publisher 抽象结果事件的发布端。
type Publisher interface {
	PublishOutcome(ctx context.Context, event OutcomeEvent) error
	Close() error
}

// NopPublisher 在未配置消息队列时使用，丢弃所有事件。
type NopPublisher struct{}

// PublishOutcome 丢弃事件。
func (NopPublisher) PublishOutcome(context.Context, OutcomeEvent) error { return nil }

// Close 无事可做。
func (NopPublisher) Close() error { return nil }
