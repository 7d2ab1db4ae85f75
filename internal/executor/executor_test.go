package executor

import (
	"context"
	"testing"

	"IntentChain/internal/intent"
	"IntentChain/internal/ledger"
)

type fakeGateway struct {
	ready       bool
	balance     int64
	balanceErr  error
	result      ledger.SubmitResult
	submitted   []ledger.TransactionSpec
	balanceCall int
}

func (f *fakeGateway) Ready() bool             { return f.ready }
func (f *fakeGateway) Network() ledger.Network { return ledger.NetworkTestnet }
func (f *fakeGateway) Operator() string        { return "0.0.1001" }
func (f *fakeGateway) Close() error            { return nil }

func (f *fakeGateway) Submit(_ context.Context, spec ledger.TransactionSpec) ledger.SubmitResult {
	f.submitted = append(f.submitted, spec)
	return f.result
}

func (f *fakeGateway) AccountBalance(_ context.Context, _ string, _ map[string]string) (*ledger.AccountSnapshot, error) {
	f.balanceCall++
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return &ledger.AccountSnapshot{
		AccountID:      "0.0.1001",
		BalanceTinybar: f.balance,
	}, nil
}

func testDirectory(t *testing.T) *intent.Directory {
	t.Helper()
	return intent.NewDirectory(
		map[string]intent.ContactEntry{
			"alice": {AccountID: "0.0.2002"},
		},
		map[string]intent.TokenEntry{
			"USDC": {TokenID: "0.0.456858", Decimals: 6},
		},
	)
}

func transferIntent(amount string) intent.Intent {
	return intent.Intent{
		ID:     "it-1",
		Action: intent.ActionTransfer,
		ExtractedArgs: map[string]string{
			"recipient": "alice",
			"amount":    amount,
		},
	}
}

func TestExecuteTransferSuccess(t *testing.T) {
	gw := &fakeGateway{
		ready:   true,
		balance: 100 * ledger.TinybarPerHbar,
		result: ledger.SubmitResult{
			Receipt: &ledger.Receipt{TransactionID: "0.0.1001@169.5", Status: "SUCCESS"},
		},
	}
	exec := New(gw, testDirectory(t))

	outcome := exec.Execute(context.Background(), transferIntent("50"))
	if outcome.Status != StatusSuccess {
		t.Fatalf("status = %q, detail = %q", outcome.Status, outcome.ErrorDetail)
	}
	if outcome.TransactionID != "0.0.1001@169.5" || outcome.ReceiptStatus != "SUCCESS" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(gw.submitted) != 1 {
		t.Fatalf("submit calls = %d", len(gw.submitted))
	}
	spec := gw.submitted[0]
	if spec.Kind != ledger.KindHbarTransfer {
		t.Fatalf("kind = %q", spec.Kind)
	}
	if spec.Counterparty != "0.0.2002" {
		t.Fatalf("counterparty = %q", spec.Counterparty)
	}
	if spec.Amount != 5_000_000_000 {
		t.Fatalf("amount = %d, want exactly 5_000_000_000 tinybar", spec.Amount)
	}
}

func TestExecuteInsufficientBalanceSkipsSubmit(t *testing.T) {
	gw := &fakeGateway{ready: true, balance: 10 * ledger.TinybarPerHbar}
	exec := New(gw, testDirectory(t))

	outcome := exec.Execute(context.Background(), transferIntent("50"))
	if outcome.Status != StatusFailedValidation {
		t.Fatalf("status = %q", outcome.Status)
	}
	if len(gw.submitted) != 0 {
		t.Fatalf("submit must not be called on failed precheck, got %d calls", len(gw.submitted))
	}
}

func TestExecuteReceiptFailurePropagatesStatus(t *testing.T) {
	gw := &fakeGateway{
		ready:   true,
		balance: 100 * ledger.TinybarPerHbar,
		result: ledger.SubmitResult{
			Failure: &ledger.Failure{
				Kind:   ledger.FailureExecution,
				Status: "INSUFFICIENT_PAYER_BALANCE",
			},
		},
	}
	exec := New(gw, testDirectory(t))

	outcome := exec.Execute(context.Background(), transferIntent("50"))
	if outcome.Status != StatusFailedExecution {
		t.Fatalf("status = %q", outcome.Status)
	}
	if outcome.ReceiptStatus != "INSUFFICIENT_PAYER_BALANCE" {
		t.Fatalf("receipt status = %q, want the verbatim ledger status", outcome.ReceiptStatus)
	}
	if outcome.ErrorDetail != "INSUFFICIENT_PAYER_BALANCE" {
		t.Fatalf("detail = %q", outcome.ErrorDetail)
	}
	if len(gw.submitted) != 1 {
		t.Fatalf("submit calls = %d", len(gw.submitted))
	}
}

func TestExecuteNetworkFailure(t *testing.T) {
	gw := &fakeGateway{
		ready:   true,
		balance: 100 * ledger.TinybarPerHbar,
		result: ledger.SubmitResult{
			Failure: &ledger.Failure{Kind: ledger.FailureNetwork, Detail: "grpc: unavailable"},
		},
	}
	exec := New(gw, testDirectory(t))

	outcome := exec.Execute(context.Background(), transferIntent("1"))
	if outcome.Status != StatusFailedNetwork {
		t.Fatalf("status = %q", outcome.Status)
	}
	if outcome.ErrorDetail != "grpc: unavailable" {
		t.Fatalf("detail = %q", outcome.ErrorDetail)
	}
}

func TestExecuteUnresolvableRecipient(t *testing.T) {
	gw := &fakeGateway{ready: true, balance: 100 * ledger.TinybarPerHbar}
	exec := New(gw, testDirectory(t))

	it := transferIntent("5")
	it.ExtractedArgs["recipient"] = "nobody"
	outcome := exec.Execute(context.Background(), it)
	if outcome.Status != StatusFailedValidation {
		t.Fatalf("status = %q", outcome.Status)
	}
	if gw.balanceCall != 0 || len(gw.submitted) != 0 {
		t.Fatal("ledger must not be touched when the transaction cannot be built")
	}
}

func TestExecuteTokenTransferUsesDirectoryDecimals(t *testing.T) {
	gw := &fakeGateway{
		ready:   true,
		balance: 100 * ledger.TinybarPerHbar,
		result: ledger.SubmitResult{
			Receipt: &ledger.Receipt{TransactionID: "0.0.1001@170.1", Status: "SUCCESS"},
		},
	}
	exec := New(gw, testDirectory(t))

	outcome := exec.Execute(context.Background(), intent.Intent{
		ID:     "it-2",
		Action: intent.ActionTokenTransfer,
		ExtractedArgs: map[string]string{
			"recipient": "alice",
			"token_id":  "USDC",
			"amount":    "12.5",
		},
	})
	if outcome.Status != StatusSuccess {
		t.Fatalf("status = %q, detail = %q", outcome.Status, outcome.ErrorDetail)
	}
	spec := gw.submitted[0]
	if spec.TokenID != "0.0.456858" {
		t.Fatalf("token id = %q", spec.TokenID)
	}
	if spec.Amount != 12_500_000 {
		t.Fatalf("amount = %d, want 12_500_000 smallest units", spec.Amount)
	}
}

func TestExecuteGatewayNotReady(t *testing.T) {
	gw := &fakeGateway{ready: false}
	exec := New(gw, testDirectory(t))

	outcome := exec.Execute(context.Background(), transferIntent("1"))
	if outcome.Status != StatusFailedValidation {
		t.Fatalf("status = %q", outcome.Status)
	}
	if len(gw.submitted) != 0 {
		t.Fatal("submit must not be called when the gateway is not initialized")
	}
}
