package ledger

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"

	xerrors "IntentChain/internal/errors"
	"IntentChain/pkg/logger"
)

// Fee ceilings applied at initialization. They bound what the gateway will
// ever spend on a single operation regardless of caller-supplied amounts;
// they are deliberately not configurable per call.
const (
	MaxTransactionFeeTinybar = 2 * TinybarPerHbar
	MaxQueryPaymentTinybar   = 1 * TinybarPerHbar
)

const (
	defaultReceiptTimeout = 30 * time.Second
	queryRetryAttempts    = 3
	queryRetryBaseDelay   = 200 * time.Millisecond
	swapGasLimit          = 300_000
)

// Config describes how to initialize the Hedera gateway.
type Config struct {
	Network        string
	OperatorID     string
	OperatorKey    string
	ReceiptTimeout time.Duration
	SwapRouter     string
}

// HederaGateway implements Gateway on top of hedera-sdk-go. The network
// session and operator identity are process-wide and read-mostly after
// initialization.
type HederaGateway struct {
	mu          sync.Mutex
	initialized bool

	network        Network
	operatorID     hedera.AccountID
	signer         *signer
	client         *hedera.Client
	receiptTimeout time.Duration
	swapRouter     string
	log            *slog.Logger
}

// NewGateway constructs an uninitialized gateway.
func NewGateway() *HederaGateway {
	return &HederaGateway{log: logger.Named("ledger")}
}

// Initialize validates configuration, dials the named network and installs
// the operator. It is idempotent: a second call while already initialized is
// a no-op, guarding against duplicate setup from multiple entry points.
// Missing operator credentials are a fatal configuration error.
func (g *HederaGateway) Initialize(cfg Config) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initialized {
		return nil
	}

	network, err := ParseNetwork(cfg.Network)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeConfiguration, err, "网络名称不合法")
	}
	if cfg.OperatorID == "" || cfg.OperatorKey == "" {
		return xerrors.New(xerrors.CodeConfiguration, "缺少操作员账户或私钥")
	}
	operatorID, err := hedera.AccountIDFromString(cfg.OperatorID)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeConfiguration, err, "操作员账户格式不合法")
	}
	sig, err := newSigner(cfg.OperatorKey)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeConfiguration, err, "操作员私钥解析失败")
	}

	client, err := hedera.ClientForName(string(network))
	if err != nil {
		return xerrors.Wrap(xerrors.CodeConfiguration, err, "创建网络会话失败")
	}
	client.SetOperator(operatorID, sig.operatorKey())
	client.SetDefaultMaxTransactionFee(hedera.HbarFromTinybar(MaxTransactionFeeTinybar))
	client.SetDefaultMaxQueryPayment(hedera.HbarFromTinybar(MaxQueryPaymentTinybar))

	timeout := cfg.ReceiptTimeout
	if timeout <= 0 {
		timeout = defaultReceiptTimeout
	}

	g.network = network
	g.operatorID = operatorID
	g.signer = sig
	g.client = client
	g.receiptTimeout = timeout
	g.swapRouter = cfg.SwapRouter
	g.initialized = true

	g.log.Info("ledger 会话已初始化",
		slog.String("network", string(network)),
		slog.String("operator", operatorID.String()),
	)
	return nil
}

// Ready reports whether the session has been initialized.
func (g *HederaGateway) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initialized
}

// Network returns the active network.
func (g *HederaGateway) Network() Network {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.network
}

// Operator returns the operator account id.
func (g *HederaGateway) Operator() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.initialized {
		return ""
	}
	return g.operatorID.String()
}

// SwapRouter returns the configured exchange contract, if any.
func (g *HederaGateway) SwapRouter() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.swapRouter
}

// Close releases the network session.
func (g *HederaGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var err error
	if g.client != nil {
		err = g.client.Close()
		g.client = nil
	}
	g.initialized = false
	return err
}

// Submit builds, freezes, signs and submits a transaction, then awaits its
// receipt. Every kind goes through the same build → freeze-with-session →
// sign-with-operator-key → submit → await-receipt sequence; no step is
// skipped. The receipt wait is bounded by the configured timeout.
func (g *HederaGateway) Submit(ctx context.Context, spec TransactionSpec) SubmitResult {
	if !g.Ready() {
		return failResult(FailureNetwork, "", "ledger 会话未初始化")
	}
	if err := spec.Validate(); err != nil {
		return failResult(FailureExecution, "", err.Error())
	}

	resp, err := g.submitOnce(spec)
	if err != nil {
		return SubmitResult{Failure: classifySubmitError(err)}
	}
	return g.awaitReceipt(ctx, resp)
}

func (g *HederaGateway) submitOnce(spec TransactionSpec) (hedera.TransactionResponse, error) {
	switch spec.Kind {
	case KindHbarTransfer:
		to, err := hedera.AccountIDFromString(spec.Counterparty)
		if err != nil {
			return hedera.TransactionResponse{}, fmt.Errorf("收款账户不合法: %w", err)
		}
		tx := hedera.NewTransferTransaction().
			AddHbarTransfer(g.operatorID, hedera.HbarFromTinybar(-spec.Amount)).
			AddHbarTransfer(to, hedera.HbarFromTinybar(spec.Amount))
		if spec.Memo != "" {
			tx.SetTransactionMemo(spec.Memo)
		}
		frozen, err := tx.FreezeWith(g.client)
		if err != nil {
			return hedera.TransactionResponse{}, err
		}
		return frozen.Sign(g.signer.operatorKey()).Execute(g.client)

	case KindTokenTransfer:
		to, err := hedera.AccountIDFromString(spec.Counterparty)
		if err != nil {
			return hedera.TransactionResponse{}, fmt.Errorf("收款账户不合法: %w", err)
		}
		token, err := hedera.TokenIDFromString(spec.TokenID)
		if err != nil {
			return hedera.TransactionResponse{}, fmt.Errorf("代币 ID 不合法: %w", err)
		}
		tx := hedera.NewTransferTransaction().
			AddTokenTransfer(token, g.operatorID, -spec.Amount).
			AddTokenTransfer(token, to, spec.Amount)
		if spec.Memo != "" {
			tx.SetTransactionMemo(spec.Memo)
		}
		frozen, err := tx.FreezeWith(g.client)
		if err != nil {
			return hedera.TransactionResponse{}, err
		}
		return frozen.Sign(g.signer.operatorKey()).Execute(g.client)

	case KindTokenAssociate:
		token, err := hedera.TokenIDFromString(spec.TokenID)
		if err != nil {
			return hedera.TransactionResponse{}, fmt.Errorf("代币 ID 不合法: %w", err)
		}
		tx := hedera.NewTokenAssociateTransaction().
			SetAccountID(g.operatorID).
			SetTokenIDs(token)
		frozen, err := tx.FreezeWith(g.client)
		if err != nil {
			return hedera.TransactionResponse{}, err
		}
		return frozen.Sign(g.signer.operatorKey()).Execute(g.client)

	case KindTopicSubmit:
		topic, err := hedera.TopicIDFromString(spec.TopicID)
		if err != nil {
			return hedera.TransactionResponse{}, fmt.Errorf("主题 ID 不合法: %w", err)
		}
		tx := hedera.NewTopicMessageSubmitTransaction().
			SetTopicID(topic).
			SetMessage([]byte(spec.Message))
		frozen, err := tx.FreezeWith(g.client)
		if err != nil {
			return hedera.TransactionResponse{}, err
		}
		return frozen.Sign(g.signer.operatorKey()).Execute(g.client)

	case KindStake:
		target, err := hedera.AccountIDFromString(spec.Counterparty)
		if err != nil {
			return hedera.TransactionResponse{}, fmt.Errorf("质押目标不合法: %w", err)
		}
		tx := hedera.NewAccountUpdateTransaction().
			SetAccountID(g.operatorID).
			SetStakedAccountID(target)
		frozen, err := tx.FreezeWith(g.client)
		if err != nil {
			return hedera.TransactionResponse{}, err
		}
		return frozen.Sign(g.signer.operatorKey()).Execute(g.client)

	case KindSwap:
		router, err := hedera.ContractIDFromString(g.swapRouter)
		if err != nil {
			return hedera.TransactionResponse{}, fmt.Errorf("兑换合约未配置或不合法: %w", err)
		}
		params := hedera.NewContractFunctionParameters().
			AddString(spec.TokenID).
			AddString(spec.TokenOutID).
			AddUint64(uint64(spec.Amount))
		tx := hedera.NewContractExecuteTransaction().
			SetContractID(router).
			SetGas(swapGasLimit).
			SetFunction("swapExactInput", params)
		frozen, err := tx.FreezeWith(g.client)
		if err != nil {
			return hedera.TransactionResponse{}, err
		}
		return frozen.Sign(g.signer.operatorKey()).Execute(g.client)

	default:
		return hedera.TransactionResponse{}, fmt.Errorf("未知的交易类型: %q", spec.Kind)
	}
}

// awaitReceipt polls for the receipt with a bounded wait. A timeout surfaces
// as a network failure rather than blocking indefinitely; the transaction
// may still settle on the ledger.
func (g *HederaGateway) awaitReceipt(ctx context.Context, resp hedera.TransactionResponse) SubmitResult {
	txID := resp.TransactionID.String()

	type receiptResult struct {
		receipt hedera.TransactionReceipt
		err     error
	}
	done := make(chan receiptResult, 1)
	go func() {
		receipt, err := resp.GetReceipt(g.client)
		done <- receiptResult{receipt: receipt, err: err}
	}()

	select {
	case <-ctx.Done():
		return failResult(FailureTimeout, "", fmt.Sprintf("等待回执被中断: %v (交易 %s 可能仍会落账)", ctx.Err(), txID))
	case <-time.After(g.receiptTimeout):
		return failResult(FailureTimeout, "", fmt.Sprintf("等待回执超时 (交易 %s 可能仍会落账)", txID))
	case result := <-done:
		if result.err != nil {
			failure := classifySubmitError(result.err)
			g.log.Warn("交易未成功",
				slog.String("transaction_id", txID),
				slog.String("status", failure.Status),
				slog.String("kind", string(failure.Kind)),
			)
			return SubmitResult{Failure: failure}
		}
		receipt := &Receipt{TransactionID: txID, Status: result.receipt.Status.String()}
		logger.Audit().Info("交易已确认",
			slog.String("transaction_id", receipt.TransactionID),
			slog.String("status", receipt.Status),
			slog.String("network", string(g.network)),
		)
		return SubmitResult{Receipt: receipt}
	}
}

// AccountBalance runs a read-only balance query. Read-only queries never
// sign, never mutate ledger state and are retried on transient failure.
func (g *HederaGateway) AccountBalance(ctx context.Context, accountID string, knownTokens map[string]string) (*AccountSnapshot, error) {
	if !g.Ready() {
		return nil, xerrors.New(xerrors.CodeNetwork, "ledger 会话未初始化")
	}
	target := accountID
	if target == "" {
		target = g.Operator()
	}
	id, err := hedera.AccountIDFromString(target)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeValidation, err, "账户 ID 不合法")
	}

	var balance hedera.AccountBalance
	var lastErr error
	for attempt := 0; attempt < queryRetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, xerrors.Wrap(xerrors.CodeTimeout, ctx.Err(), "余额查询被中断")
			case <-time.After(queryRetryBaseDelay << attempt):
			}
		}
		balance, lastErr = hedera.NewAccountBalanceQuery().
			SetAccountID(id).
			Execute(g.client)
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return nil, xerrors.Wrap(xerrors.CodeNetwork, lastErr, "余额查询失败")
	}

	snapshot := &AccountSnapshot{
		AccountID:        id.String(),
		BalanceTinybar:   balance.Hbars.AsTinybar(),
		BalanceFormatted: FormatTinybar(balance.Hbars.AsTinybar()),
	}
	for symbol, rawToken := range knownTokens {
		token, err := hedera.TokenIDFromString(rawToken)
		if err != nil {
			continue
		}
		amount := balance.Tokens.Get(token)
		if amount == 0 {
			continue
		}
		snapshot.TokenBalances = append(snapshot.TokenBalances, TokenBalance{
			TokenID: token.String(),
			Symbol:  symbol,
			Amount:  amount,
		})
	}
	sort.Slice(snapshot.TokenBalances, func(i, j int) bool {
		return snapshot.TokenBalances[i].Symbol < snapshot.TokenBalances[j].Symbol
	})
	return snapshot, nil
}

func failResult(kind FailureKind, status, detail string) SubmitResult {
	return SubmitResult{Failure: &Failure{Kind: kind, Status: status, Detail: detail}}
}

func classifySubmitError(err error) *Failure {
	var precheck hedera.ErrHederaPreCheckStatus
	if stdErrors.As(err, &precheck) {
		return &Failure{Kind: FailureExecution, Status: precheck.Status.String(), Detail: err.Error()}
	}
	var receiptErr hedera.ErrHederaReceiptStatus
	if stdErrors.As(err, &receiptErr) {
		return &Failure{Kind: FailureExecution, Status: receiptErr.Status.String(), Detail: err.Error()}
	}
	if stdErrors.Is(err, context.DeadlineExceeded) || stdErrors.Is(err, context.Canceled) {
		return &Failure{Kind: FailureTimeout, Detail: err.Error()}
	}
	return &Failure{Kind: FailureNetwork, Detail: err.Error()}
}

var _ Gateway = (*HederaGateway)(nil)
