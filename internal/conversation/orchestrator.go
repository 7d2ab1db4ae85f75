package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"IntentChain/internal/classify"
	xerrors "IntentChain/internal/errors"
	"IntentChain/internal/events"
	"IntentChain/internal/executor"
	"IntentChain/internal/history"
	"IntentChain/internal/intent"
	"IntentChain/internal/observability/metrics"
	"IntentChain/internal/resolve"
	"IntentChain/internal/session"
	"IntentChain/pkg/logger"
)

// ReplyKind 标识编排层回复的类别，展示层据此选择渲染方式。
type ReplyKind string

const (
	// ReplyArgumentRequest 要求用户补全缺失参数。
	ReplyArgumentRequest ReplyKind = "argument_request"
	// ReplyActionComplete 表示动作成功执行。
	ReplyActionComplete ReplyKind = "action_complete"
	// ReplyActionError 表示处理或执行失败。
	ReplyActionError ReplyKind = "action_error"
	// ReplyCancelled 表示挂起动作被放弃。
	ReplyCancelled ReplyKind = "cancelled"
)

// Reply 是编排层对一次输入的唯一回复。Kind 决定了哪些字段有值。
type Reply struct {
	Kind    ReplyKind                `json:"kind"`
	Message string                   `json:"message"`
	Request *resolve.ArgumentRequest `json:"request,omitempty"`
	Outcome *executor.Outcome        `json:"outcome,omitempty"`
}

// Orchestrator 串联分类、校验、补全、执行与结果上报的完整回路。
// 每个会话同一时刻至多持有一个挂起动作。
type Orchestrator struct {
	classifier classify.Classifier
	validator  *intent.Validator
	resolver   *resolve.Resolver
	sessions   session.Store
	executor   *executor.Executor
	history    history.Repository
	events     events.Publisher
	log        *slog.Logger
}

// New 创建编排器。history 与 events 允许为 nil，表示不落库、不广播。
func New(
	classifier classify.Classifier,
	validator *intent.Validator,
	resolver *resolve.Resolver,
	sessions session.Store,
	exec *executor.Executor,
	historyRepo history.Repository,
	publisher events.Publisher,
) *Orchestrator {
	return &Orchestrator{
		classifier: classifier,
		validator:  validator,
		resolver:   resolver,
		sessions:   sessions,
		executor:   exec,
		history:    historyRepo,
		events:     publisher,
		log:        logger.Named("conversation"),
	}
}

// cancelWords 是在挂起状态下被视为放弃指令的消息。
var cancelWords = map[string]bool{
	"cancel": true,
	"取消":     true,
	"算了":     true,
}

// HandleMessage 处理一条自由文本消息。挂起状态下的取消词会放弃当前
// 动作；其余消息视为新意图，取代旧的挂起动作。
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, userID, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, xerrors.New(xerrors.CodeValidation, "消息内容不能为空")
	}

	pending, err := o.sessions.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, session.ErrStateNotFound) {
		return nil, err
	}
	if pending != nil {
		if cancelWords[strings.ToLower(message)] {
			return o.cancelPending(ctx, sessionID, pending)
		}
		// 新意图取代旧的挂起动作，旧动作按取消处理。
		if _, err := o.cancelPending(ctx, sessionID, pending); err != nil {
			return nil, err
		}
	}

	result, err := o.classifier.Classify(ctx, classify.Request{Message: message, UserID: userID})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeNetwork, err, "意图分类失败")
	}

	action, err := intent.ParseActionType(result.ClassificationType)
	if err != nil {
		return &Reply{
			Kind:    ReplyActionError,
			Message: "暂不支持该类型的请求: " + result.ClassificationType,
		}, nil
	}

	it := intent.Intent{
		ID:              uuid.NewString(),
		OriginalMessage: message,
		Action:          action,
		ExtractedArgs:   result.ExtractedArgs,
		SessionID:       sessionID,
		UserID:          userID,
		CreatedAt:       time.Now().Unix(),
	}
	o.log.Info("意图分类完成",
		slog.String("session_id", sessionID),
		slog.String("intent_id", it.ID),
		slog.String("action", string(action)),
		slog.Float64("confidence", result.Confidence),
	)

	validation := o.validator.Validate(it.Action, it.ExtractedArgs)
	if validation.Complete {
		return o.execute(ctx, it, 0), nil
	}

	state, request := o.resolver.Begin(it, validation.Missing)
	if err := o.sessions.Put(ctx, sessionID, state); err != nil {
		return nil, err
	}
	return &Reply{Kind: ReplyArgumentRequest, Message: request.Prompt, Request: request}, nil
}

// HandleSubmission 处理一次参数补全提交。提交必须完整覆盖当前请求的
// 字段，部分提交或携带未请求字段都会被整体拒绝，挂起状态保持不变。
func (o *Orchestrator) HandleSubmission(ctx context.Context, sessionID string, values map[string]string) (*Reply, error) {
	state, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	outcome, err := o.resolver.Submit(state, values)
	if err != nil {
		return nil, err
	}

	switch outcome.State {
	case resolve.StateResolved:
		if err := o.sessions.Delete(ctx, sessionID); err != nil {
			o.log.Warn("清理挂起状态失败", slog.String("session_id", sessionID), slog.Any("error", err))
		}
		return o.execute(ctx, state.Intent, state.Rounds), nil

	case resolve.StateCancelled:
		if err := o.sessions.Delete(ctx, sessionID); err != nil {
			o.log.Warn("清理挂起状态失败", slog.String("session_id", sessionID), slog.Any("error", err))
		}
		o.record(ctx, state.Intent, state.Rounds, &executor.Outcome{
			Status:      executor.StatusFailedValidation,
			ErrorDetail: outcome.Reason,
		}, "cancelled")
		return &Reply{Kind: ReplyCancelled, Message: outcome.Reason}, nil

	default:
		if err := o.sessions.Put(ctx, sessionID, state); err != nil {
			return nil, err
		}
		return &Reply{Kind: ReplyArgumentRequest, Message: outcome.Request.Prompt, Request: outcome.Request}, nil
	}
}

// Cancel 显式放弃会话中的挂起动作。没有挂起动作时返回 ErrStateNotFound。
func (o *Orchestrator) Cancel(ctx context.Context, sessionID string) (*Reply, error) {
	state, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return o.cancelPending(ctx, sessionID, state)
}

func (o *Orchestrator) cancelPending(ctx context.Context, sessionID string, state *session.ResolutionState) (*Reply, error) {
	outcome := o.resolver.Cancel(state)
	if err := o.sessions.Delete(ctx, sessionID); err != nil {
		return nil, err
	}
	o.record(ctx, state.Intent, state.Rounds, &executor.Outcome{
		Status:      executor.StatusFailedValidation,
		ErrorDetail: outcome.Reason,
	}, "cancelled")
	o.log.Info("挂起动作已取消",
		slog.String("session_id", sessionID),
		slog.String("intent_id", state.Intent.ID),
	)
	return &Reply{Kind: ReplyCancelled, Message: outcome.Reason}, nil
}

// execute 派发已完全解析的意图并把结果归一化为回复。
func (o *Orchestrator) execute(ctx context.Context, it intent.Intent, rounds int) *Reply {
	outcome := o.executor.Execute(ctx, it)
	o.record(ctx, it, rounds, outcome, string(outcome.Status))

	if outcome.Status == executor.StatusSuccess {
		return &Reply{
			Kind:    ReplyActionComplete,
			Message: fmt.Sprintf("操作已完成，交易 %s 的回执状态为 %s", outcome.TransactionID, outcome.ReceiptStatus),
			Outcome: outcome,
		}
	}
	return &Reply{
		Kind:    ReplyActionError,
		Message: formatFailure(outcome),
		Outcome: outcome,
	}
}

// record 落库并广播一次意图的最终结果。两者都是尽力而为，失败只记日志。
func (o *Orchestrator) record(ctx context.Context, it intent.Intent, rounds int, outcome *executor.Outcome, status string) {
	metrics.ObserveIntentOutcome(string(it.Action), status)
	if o.history != nil {
		rec := history.NewRecord()
		rec.SessionID = it.SessionID
		rec.UserID = it.UserID
		rec.OriginalMessage = it.OriginalMessage
		rec.Action = string(it.Action)
		rec.Status = status
		rec.TransactionID = outcome.TransactionID
		rec.ReceiptStatus = outcome.ReceiptStatus
		rec.ErrorDetail = outcome.ErrorDetail
		rec.Rounds = rounds
		if err := o.history.Save(ctx, rec); err != nil {
			o.log.Warn("写入历史记录失败", slog.Any("error", err))
		}
	}
	if o.events != nil {
		event := events.OutcomeEvent{
			IntentID:      it.ID,
			SessionID:     it.SessionID,
			UserID:        it.UserID,
			Action:        string(it.Action),
			Status:        status,
			TransactionID: outcome.TransactionID,
			ReceiptStatus: outcome.ReceiptStatus,
			ErrorDetail:   outcome.ErrorDetail,
			OccurredAt:    time.Now().Unix(),
		}
		if err := o.events.PublishOutcome(ctx, event); err != nil {
			o.log.Warn("广播结果事件失败", slog.Any("error", err))
		}
	}
}

func formatFailure(outcome *executor.Outcome) string {
	switch outcome.Status {
	case executor.StatusFailedValidation:
		return "请求无法执行: " + outcome.ErrorDetail
	case executor.StatusFailedExecution:
		return "交易被网络拒绝: " + outcome.ErrorDetail
	default:
		return "网络异常，请稍后重试: " + outcome.ErrorDetail
	}
}
