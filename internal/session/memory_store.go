package session

import (
	"context"
	"strings"
	"sync"
	"time"

	xerrors "IntentChain/internal/errors"
)

// MemoryStore 以内存方式保存挂起状态，适用于单实例部署与测试。
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*ResolutionState
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*ResolutionState)}
}

// Put 实现 Store 接口。同一会话的新状态覆盖旧状态。
func (m *MemoryStore) Put(_ context.Context, sessionID string, state *ResolutionState) error {
	if strings.TrimSpace(sessionID) == "" {
		return xerrors.New(xerrors.CodeSession, "会话 ID 不能为空")
	}
	if state == nil {
		return xerrors.New(xerrors.CodeSession, "挂起状态不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := cloneState(state)
	clone.UpdatedAt = time.Now().Unix()
	m.states[sessionID] = clone
	return nil
}

// Get 返回会话的挂起状态。
func (m *MemoryStore) Get(_ context.Context, sessionID string) (*ResolutionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[sessionID]
	if !ok {
		return nil, ErrStateNotFound
	}
	return cloneState(state), nil
}

// Delete 清除会话的挂起状态。删除不存在的状态不报错。
func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sessionID)
	return nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
