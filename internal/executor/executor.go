package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"IntentChain/internal/intent"
	"IntentChain/internal/ledger"
	"IntentChain/pkg/logger"
)

// Status 是一次执行的归一化结果状态。
type Status string

const (
	StatusSuccess          Status = "success"
	StatusFailedValidation Status = "failed_validation"
	StatusFailedExecution  Status = "failed_execution"
	StatusFailedNetwork    Status = "failed_network"
)

// Outcome 是每次 Execute 调用产生的唯一结果记录，创建后不再修改。
// ReceiptStatus 与 ErrorDetail 保留账本返回的原始状态字符串，供审计使用。
type Outcome struct {
	Status        Status `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	ReceiptStatus string `json:"receipt_status,omitempty"`
	ErrorDetail   string `json:"error_detail,omitempty"`
}

// Executor 把完全解析的意图派发为具体的账本操作。它不做任何重试：
// 已签名提交的交易不可安全重放，失败后必须由用户发起新的意图。
type Executor struct {
	gateway   ledger.Gateway
	directory *intent.Directory
	log       *slog.Logger
}

// New 创建 Executor。
func New(gateway ledger.Gateway, directory *intent.Directory) *Executor {
	return &Executor{
		gateway:   gateway,
		directory: directory,
		log:       logger.Named("executor"),
	}
}

// Execute 依次执行前置检查、派发、提交与结果归一化。任何前置检查失败
// 都会在不触碰账本的情况下返回 failed_validation。
func (e *Executor) Execute(ctx context.Context, it intent.Intent) *Outcome {
	spec, precheckFail := e.buildSpec(it)
	if precheckFail != nil {
		return precheckFail
	}

	if outcome := e.precheck(ctx, spec); outcome != nil {
		return outcome
	}

	result := e.gateway.Submit(ctx, *spec)
	return e.normalize(it, result)
}

// buildSpec 把意图参数转换为最小单位整数金额的交易描述。
// 解析失败属于前置校验失败，不会产生任何账本调用。
func (e *Executor) buildSpec(it intent.Intent) (*ledger.TransactionSpec, *Outcome) {
	args := it.ExtractedArgs
	spec := &ledger.TransactionSpec{
		Operator: e.gateway.Operator(),
		Memo:     strings.TrimSpace(args["memo"]),
	}

	switch it.Action {
	case intent.ActionTransfer:
		account, ok := e.directory.ResolveAccount(args["recipient"])
		if !ok {
			return nil, validationFailure(fmt.Sprintf("无法解析收款账户 %q", args["recipient"]))
		}
		tinybar, err := ledger.ParseHbarToTinybar(args["amount"])
		if err != nil {
			return nil, validationFailure(err.Error())
		}
		spec.Kind = ledger.KindHbarTransfer
		spec.Counterparty = account
		spec.Amount = tinybar

	case intent.ActionTokenTransfer:
		account, ok := e.directory.ResolveAccount(args["recipient"])
		if !ok {
			return nil, validationFailure(fmt.Sprintf("无法解析收款账户 %q", args["recipient"]))
		}
		tokenID, ok := e.directory.ResolveToken(args["token_id"])
		if !ok {
			return nil, validationFailure(fmt.Sprintf("无法解析代币 %q", args["token_id"]))
		}
		decimals, known := e.directory.TokenDecimals(args["token_id"])
		if !known {
			decimals = 0
		}
		amount, err := ledger.ParseAmount(args["amount"], decimals)
		if err != nil {
			return nil, validationFailure(err.Error())
		}
		spec.Kind = ledger.KindTokenTransfer
		spec.Counterparty = account
		spec.TokenID = tokenID
		spec.Amount = amount

	case intent.ActionSwap:
		tokenIn, ok := e.directory.ResolveToken(args["token_in"])
		if !ok {
			return nil, validationFailure(fmt.Sprintf("无法解析卖出资产 %q", args["token_in"]))
		}
		tokenOut, ok := e.directory.ResolveToken(args["token_out"])
		if !ok {
			return nil, validationFailure(fmt.Sprintf("无法解析买入资产 %q", args["token_out"]))
		}
		decimals, known := e.directory.TokenDecimals(args["token_in"])
		if !known {
			decimals = 0
		}
		amount, err := ledger.ParseAmount(args["amount"], decimals)
		if err != nil {
			return nil, validationFailure(err.Error())
		}
		spec.Kind = ledger.KindSwap
		spec.TokenID = tokenIn
		spec.TokenOutID = tokenOut
		spec.Amount = amount

	case intent.ActionAssociate:
		tokenID, ok := e.directory.ResolveToken(args["token_id"])
		if !ok {
			return nil, validationFailure(fmt.Sprintf("无法解析代币 %q", args["token_id"]))
		}
		spec.Kind = ledger.KindTokenAssociate
		spec.TokenID = tokenID

	case intent.ActionStake:
		account, ok := e.directory.ResolveAccount(args["target"])
		if !ok {
			return nil, validationFailure(fmt.Sprintf("无法解析质押目标 %q", args["target"]))
		}
		spec.Kind = ledger.KindStake
		spec.Counterparty = account

	case intent.ActionTopicSubmit:
		topicID := strings.TrimSpace(args["topic_id"])
		if !intent.CheckRule(intent.RuleTopicID, topicID) {
			return nil, validationFailure(fmt.Sprintf("主题 ID %q 不合法", args["topic_id"]))
		}
		spec.Kind = ledger.KindTopicSubmit
		spec.TopicID = topicID
		spec.Message = strings.TrimSpace(args["message"])

	default:
		return nil, validationFailure(fmt.Sprintf("不支持的动作类型 %q", it.Action))
	}

	if err := spec.Validate(); err != nil {
		return nil, validationFailure(err.Error())
	}
	return spec, nil
}

// precheck 在提交前验证网络可用性与余额充足性。任何失败都不会产生
// 账本调用。
func (e *Executor) precheck(ctx context.Context, spec *ledger.TransactionSpec) *Outcome {
	if !e.gateway.Ready() {
		return validationFailure("ledger 会话未初始化")
	}

	snapshot, err := e.gateway.AccountBalance(ctx, spec.Operator, nil)
	if err != nil {
		return &Outcome{Status: StatusFailedNetwork, ErrorDetail: err.Error()}
	}

	// 余额需覆盖转出金额加上手续费上限。
	required := int64(ledger.MaxTransactionFeeTinybar)
	if spec.Kind == ledger.KindHbarTransfer {
		required += spec.Amount
	}
	if snapshot.BalanceTinybar < required {
		return validationFailure(fmt.Sprintf(
			"操作员余额不足: 当前 %s，至少需要 %s",
			ledger.FormatTinybar(snapshot.BalanceTinybar),
			ledger.FormatTinybar(required),
		))
	}
	return nil
}

func (e *Executor) normalize(it intent.Intent, result ledger.SubmitResult) *Outcome {
	if result.Receipt != nil {
		e.log.Info("交易执行成功",
			slog.String("intent_id", it.ID),
			slog.String("action", string(it.Action)),
			slog.String("transaction_id", result.Receipt.TransactionID),
		)
		return &Outcome{
			Status:        StatusSuccess,
			TransactionID: result.Receipt.TransactionID,
			ReceiptStatus: result.Receipt.Status,
		}
	}

	failure := result.Failure
	if failure == nil {
		return &Outcome{Status: StatusFailedNetwork, ErrorDetail: "网关返回了空结果"}
	}
	switch failure.Kind {
	case ledger.FailureExecution:
		detail := failure.Status
		if detail == "" {
			detail = failure.Detail
		}
		return &Outcome{
			Status:        StatusFailedExecution,
			ReceiptStatus: failure.Status,
			ErrorDetail:   detail,
		}
	default:
		return &Outcome{Status: StatusFailedNetwork, ErrorDetail: failure.Detail}
	}
}

func validationFailure(detail string) *Outcome {
	return &Outcome{Status: StatusFailedValidation, ErrorDetail: detail}
}
