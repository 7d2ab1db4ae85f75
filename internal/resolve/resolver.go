package resolve

import (
	"strings"

	xerrors "IntentChain/internal/errors"
	"IntentChain/internal/intent"
	"IntentChain/internal/session"
)

// State 表示补全状态机所处的状态。Validating 是瞬时状态，只存在于一次
// Submit 调用内部，不会被持久化。
type State string

const (
	StateAwaitingInput State = "awaiting_input"
	StateResolved      State = "resolved"
	StateCancelled     State = "cancelled"
)

// ArgumentRequest 是一份可渲染的参数请求：每个缺失字段一条提示，
// 选择型字段携带分组候选列表。
type ArgumentRequest struct {
	Prompt string                       `json:"prompt"`
	Fields []intent.MissingArgumentSpec `json:"fields"`
	Round  int                          `json:"round"`
}

// Outcome 是一次状态机推进的结果。Resolved 时 Args 是完整参数集；
// AwaitingInput 时 Request 携带下一轮提示。
type Outcome struct {
	State   State
	Request *ArgumentRequest
	Args    map[string]string
	Reason  string
}

// defaultMaxRounds 限制单个意图的补全轮数，防止停滞会话无限占用资源。
const defaultMaxRounds = 5

// Resolver 驱动 AwaitingInput → Validating → (AwaitingInput | Resolved |
// Cancelled) 的状态机。它不持有任何跨调用状态，挂起进度由调用方通过
// session.ResolutionState 传入。
type Resolver struct {
	validator *intent.Validator
	maxRounds int
}

// Option 定义可选的 Resolver 配置。
type Option func(*Resolver)

// WithMaxRounds 覆盖默认的补全轮数上限。
func WithMaxRounds(rounds int) Option {
	return func(r *Resolver) {
		if rounds > 0 {
			r.maxRounds = rounds
		}
	}
}

// New 创建 Resolver。
func New(validator *intent.Validator, opts ...Option) *Resolver {
	r := &Resolver{validator: validator, maxRounds: defaultMaxRounds}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Begin 在校验报告不完整时进入 AwaitingInput，生成首轮参数请求与
// 挂起状态。
func (r *Resolver) Begin(it intent.Intent, missing []intent.MissingArgumentSpec) (*session.ResolutionState, *ArgumentRequest) {
	state := &session.ResolutionState{
		Intent:    it,
		Missing:   append([]intent.MissingArgumentSpec(nil), missing...),
		Collected: map[string]string{},
		Rounds:    1,
	}
	return state, r.buildRequest(state)
}

// Submit 把用户提交的字段值合并进挂起状态并重新校验。
// 前置条件：responses 必须覆盖当前请求的每一个字段；部分提交在进入
// 状态机前就被拒绝，不是状态机的一个状态。
func (r *Resolver) Submit(state *session.ResolutionState, responses map[string]string) (Outcome, error) {
	if state == nil {
		return Outcome{}, xerrors.New(xerrors.CodeSession, "没有可推进的挂起状态")
	}

	requested := make(map[string]bool, len(state.Missing))
	for _, spec := range state.Missing {
		requested[spec.Name] = true
	}
	for name := range responses {
		if !requested[strings.TrimSpace(name)] {
			return Outcome{}, xerrors.New(xerrors.CodeValidation, "提交了未被请求的字段: "+name)
		}
	}
	for _, spec := range state.Missing {
		if strings.TrimSpace(responses[spec.Name]) == "" {
			return Outcome{}, xerrors.New(xerrors.CodeValidation, "字段 "+spec.Name+" 未提交完整")
		}
	}

	// Validating：合并 已抽取 ∪ 已收集 ∪ 本次提交，重新跑一遍校验。
	for name, value := range responses {
		state.Collected[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	merged := state.Intent.MergeArgs(state.Collected)

	result := r.validator.Validate(state.Intent.Action, merged)
	if result.Complete {
		state.Intent.ExtractedArgs = merged
		return Outcome{State: StateResolved, Args: merged}, nil
	}

	// 仍不完整：刚提交但未通过规则的字段带原规则重新进入 missing，
	// 由用户重新提交，状态机不做自动重试。
	if state.Rounds >= r.maxRounds {
		return Outcome{
			State:  StateCancelled,
			Reason: "补全轮数超过上限，已放弃该意图",
		}, nil
	}
	state.Rounds++
	state.Missing = result.Missing
	state.Intent.ExtractedArgs = merged
	return Outcome{State: StateAwaitingInput, Request: r.buildRequest(state)}, nil
}

// Cancel 从 AwaitingInput 终止状态机。不产生任何副作用；善后（例如
// 记录被放弃的计划）由编排层负责。
func (r *Resolver) Cancel(state *session.ResolutionState) Outcome {
	reason := "已取消"
	if state != nil && state.Intent.OriginalMessage != "" {
		reason = "已取消: " + state.Intent.OriginalMessage
	}
	return Outcome{State: StateCancelled, Reason: reason}
}

// MaxRounds 返回轮数上限，供编排层展示。
func (r *Resolver) MaxRounds() int {
	return r.maxRounds
}

func (r *Resolver) buildRequest(state *session.ResolutionState) *ArgumentRequest {
	names := make([]string, 0, len(state.Missing))
	for _, spec := range state.Missing {
		names = append(names, spec.Label)
	}
	return &ArgumentRequest{
		Prompt: "还需要补充以下信息: " + strings.Join(names, "、"),
		Fields: append([]intent.MissingArgumentSpec(nil), state.Missing...),
		Round:  state.Rounds,
	}
}
