package ledger

import (
	"context"
	"fmt"
	"strings"
)

// Network identifies a supported Hedera network. Anything outside the
// enumerated set fails fast at configuration time instead of silently
// defaulting.
type Network string

const (
	NetworkMainnet    Network = "mainnet"
	NetworkTestnet    Network = "testnet"
	NetworkPreviewnet Network = "previewnet"
)

// ParseNetwork validates a configured network name.
func ParseNetwork(raw string) (Network, error) {
	network := Network(strings.ToLower(strings.TrimSpace(raw)))
	switch network {
	case NetworkMainnet, NetworkTestnet, NetworkPreviewnet:
		return network, nil
	default:
		return "", fmt.Errorf("不支持的网络: %q", raw)
	}
}

// TransactionKind enumerates the ledger operations the gateway can submit.
type TransactionKind string

const (
	KindHbarTransfer   TransactionKind = "hbar_transfer"
	KindTokenTransfer  TransactionKind = "token_transfer"
	KindTokenAssociate TransactionKind = "token_associate"
	KindTopicSubmit    TransactionKind = "topic_submit"
	KindStake          TransactionKind = "stake"
	KindSwap           TransactionKind = "swap"
)

// TransactionSpec fully describes one transaction to build, sign and submit.
// Amount is always an integer in the ledger's smallest denomination
// (tinybar for HBAR, the token's smallest unit otherwise); the gateway
// rejects anything else.
type TransactionSpec struct {
	Kind         TransactionKind
	Operator     string
	Counterparty string
	TokenID      string
	TokenOutID   string
	TopicID      string
	Message      string
	Amount       int64
	Memo         string
}

// Validate performs structural checks before any network interaction.
func (s TransactionSpec) Validate() error {
	switch s.Kind {
	case KindHbarTransfer:
		if s.Counterparty == "" {
			return fmt.Errorf("转账缺少收款账户")
		}
		if s.Amount <= 0 {
			return fmt.Errorf("转账金额必须为正的最小单位整数")
		}
	case KindTokenTransfer:
		if s.Counterparty == "" || s.TokenID == "" {
			return fmt.Errorf("代币转账缺少收款账户或代币 ID")
		}
		if s.Amount <= 0 {
			return fmt.Errorf("代币数量必须为正的最小单位整数")
		}
	case KindTokenAssociate:
		if s.TokenID == "" {
			return fmt.Errorf("代币关联缺少代币 ID")
		}
	case KindTopicSubmit:
		if s.TopicID == "" || s.Message == "" {
			return fmt.Errorf("主题消息缺少主题 ID 或内容")
		}
	case KindStake:
		if s.Counterparty == "" {
			return fmt.Errorf("质押缺少目标账户")
		}
	case KindSwap:
		if s.TokenID == "" || s.TokenOutID == "" {
			return fmt.Errorf("兑换缺少输入或输出资产")
		}
		if s.Amount <= 0 {
			return fmt.Errorf("兑换数量必须为正的最小单位整数")
		}
	default:
		return fmt.Errorf("未知的交易类型: %q", s.Kind)
	}
	return nil
}

// Receipt is the ledger's authoritative record of a submitted transaction.
// Status carries the exact status string reported by the network.
type Receipt struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// FailureKind distinguishes a rejection by the ledger from a transport
// problem. Submitted transactions are never retried automatically either way.
type FailureKind string

const (
	FailureExecution FailureKind = "execution"
	FailureNetwork   FailureKind = "network"
	FailureTimeout   FailureKind = "timeout"
)

// Failure describes why a submission did not yield a successful receipt.
// Status preserves the ledger's status string verbatim when one exists.
type Failure struct {
	Kind   FailureKind
	Status string
	Detail string
}

// SubmitResult is the explicit result type for a submission: exactly one of
// Receipt or Failure is set.
type SubmitResult struct {
	Receipt *Receipt
	Failure *Failure
}

// TokenBalance reports one token position of an account.
type TokenBalance struct {
	TokenID string `json:"token_id"`
	Symbol  string `json:"symbol,omitempty"`
	Amount  uint64 `json:"amount"`
}

// AccountSnapshot is a read-only view of an account's balances.
type AccountSnapshot struct {
	AccountID        string         `json:"account_id"`
	BalanceTinybar   int64          `json:"balance_tinybar"`
	BalanceFormatted string         `json:"balance_formatted"`
	TokenBalances    []TokenBalance `json:"token_balances,omitempty"`
}

// Gateway is the uniform ledger capability consumed by the executor: build,
// sign, submit and fetch a receipt for a transaction of a given kind, plus
// read-only account queries. Queries never sign and are safe to retry;
// submissions are not.
type Gateway interface {
	Ready() bool
	Network() Network
	Operator() string
	Submit(ctx context.Context, spec TransactionSpec) SubmitResult
	AccountBalance(ctx context.Context, accountID string, knownTokens map[string]string) (*AccountSnapshot, error)
	Close() error
}
