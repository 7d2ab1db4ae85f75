package intent

import (
	"strings"

	xerrors "IntentChain/internal/errors"
)

// ActionType 表示从自然语言中识别出的链上动作类型。
type ActionType string

const (
	ActionTransfer      ActionType = "transfer"
	ActionTokenTransfer ActionType = "token_transfer"
	ActionSwap          ActionType = "swap"
	ActionAssociate     ActionType = "associate"
	ActionStake         ActionType = "stake"
	ActionTopicSubmit   ActionType = "topic_submit"
)

// ParseActionType 校验分类服务返回的动作类型是否受支持。
func ParseActionType(raw string) (ActionType, error) {
	action := ActionType(strings.ToLower(strings.TrimSpace(raw)))
	switch action {
	case ActionTransfer, ActionTokenTransfer, ActionSwap, ActionAssociate, ActionStake, ActionTopicSubmit:
		return action, nil
	default:
		return "", xerrors.New(xerrors.CodeValidation, "不支持的动作类型: "+raw)
	}
}

// Intent 是对用户诉求的结构化表示。核心字段在首次分类后不再变化，
// ExtractedArgs 会在交互式补全过程中被合并更新。
type Intent struct {
	ID              string            `json:"id"`
	OriginalMessage string            `json:"original_message"`
	Action          ActionType        `json:"action"`
	ExtractedArgs   map[string]string `json:"extracted_args"`
	SessionID       string            `json:"session_id"`
	UserID          string            `json:"user_id"`
	CreatedAt       int64             `json:"created_at"`
}

// CloneArgs 返回参数表的独立副本，避免调用方误改共享状态。
func (i *Intent) CloneArgs() map[string]string {
	if i == nil || i.ExtractedArgs == nil {
		return map[string]string{}
	}
	clone := make(map[string]string, len(i.ExtractedArgs))
	for k, v := range i.ExtractedArgs {
		clone[k] = v
	}
	return clone
}

// MergeArgs 将用户补充的字段合并进参数表，返回合并后的新表。
func (i *Intent) MergeArgs(updates map[string]string) map[string]string {
	merged := i.CloneArgs()
	for k, v := range updates {
		merged[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return merged
}
