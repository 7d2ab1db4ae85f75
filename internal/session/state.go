package session

import (
	"context"

	xerrors "IntentChain/internal/errors"
	"IntentChain/internal/intent"
)

// ResolutionState 保存一个会话内挂起动作的补全进度。它在动作解析完成
// 或被显式取消时销毁；collected 的键永远是历史 missing 字段的子集。
type ResolutionState struct {
	Intent    intent.Intent                `json:"intent"`
	Missing   []intent.MissingArgumentSpec `json:"missing"`
	Collected map[string]string            `json:"collected"`
	Rounds    int                          `json:"rounds"`
	UpdatedAt int64                        `json:"updated_at"`
}

var (
	// ErrStateNotFound 表示会话当前没有挂起的补全状态。
	ErrStateNotFound = xerrors.New(xerrors.CodeNotFound, "会话没有挂起的补全状态")
)

// Store 按 sessionId 保存挂起状态。并发会话之间互不共享可变状态，
// 因此实现只需要保证单键操作的原子性。
type Store interface {
	Put(ctx context.Context, sessionID string, state *ResolutionState) error
	Get(ctx context.Context, sessionID string) (*ResolutionState, error)
	Delete(ctx context.Context, sessionID string) error
	Close() error
}

func cloneState(state *ResolutionState) *ResolutionState {
	if state == nil {
		return nil
	}
	clone := *state
	clone.Missing = append([]intent.MissingArgumentSpec(nil), state.Missing...)
	if state.Collected != nil {
		clone.Collected = make(map[string]string, len(state.Collected))
		for k, v := range state.Collected {
			clone.Collected[k] = v
		}
	}
	if state.Intent.ExtractedArgs != nil {
		clone.Intent.ExtractedArgs = make(map[string]string, len(state.Intent.ExtractedArgs))
		for k, v := range state.Intent.ExtractedArgs {
			clone.Intent.ExtractedArgs[k] = v
		}
	}
	return &clone
}
