package conversation

import (
	"context"
	"errors"
	"testing"

	"IntentChain/internal/classify"
	"IntentChain/internal/events"
	"IntentChain/internal/executor"
	"IntentChain/internal/history"
	"IntentChain/internal/intent"
	"IntentChain/internal/ledger"
	"IntentChain/internal/resolve"
	"IntentChain/internal/session"
)

type fakeClassifier struct {
	result *classify.Result
	err    error
}

func (f *fakeClassifier) Classify(context.Context, classify.Request) (*classify.Result, error) {
	return f.result, f.err
}

type fakeGateway struct {
	submitted []ledger.TransactionSpec
	result    ledger.SubmitResult
}

func (f *fakeGateway) Ready() bool             { return true }
func (f *fakeGateway) Network() ledger.Network { return ledger.NetworkTestnet }
func (f *fakeGateway) Operator() string        { return "0.0.1001" }
func (f *fakeGateway) Close() error            { return nil }

func (f *fakeGateway) Submit(_ context.Context, spec ledger.TransactionSpec) ledger.SubmitResult {
	f.submitted = append(f.submitted, spec)
	return f.result
}

func (f *fakeGateway) AccountBalance(context.Context, string, map[string]string) (*ledger.AccountSnapshot, error) {
	return &ledger.AccountSnapshot{AccountID: "0.0.1001", BalanceTinybar: 1_000 * ledger.TinybarPerHbar}, nil
}

type fakeHistory struct {
	records []history.Record
}

func (f *fakeHistory) Save(_ context.Context, record history.Record) error {
	f.records = append(f.records, record)
	return nil
}

func (f *fakeHistory) ListLatest(context.Context, int) ([]history.Record, error) {
	return f.records, nil
}

func (f *fakeHistory) Close() error { return nil }

type harness struct {
	orch    *Orchestrator
	gateway *fakeGateway
	store   session.Store
	hist    *fakeHistory
}

func newHarness(t *testing.T, result *classify.Result) *harness {
	t.Helper()
	directory := intent.NewDirectory(
		map[string]intent.ContactEntry{"alice": {AccountID: "0.0.2002"}},
		map[string]intent.TokenEntry{"USDC": {TokenID: "0.0.456858", Decimals: 6}},
	)
	validator := intent.NewValidator(directory)
	gateway := &fakeGateway{
		result: ledger.SubmitResult{
			Receipt: &ledger.Receipt{TransactionID: "0.0.1001@169.5", Status: "SUCCESS"},
		},
	}
	store := session.NewMemoryStore()
	hist := &fakeHistory{}
	orch := New(
		&fakeClassifier{result: result},
		validator,
		resolve.New(validator),
		store,
		executor.New(gateway, directory),
		hist,
		events.NopPublisher{},
	)
	return &harness{orch: orch, gateway: gateway, store: store, hist: hist}
}

func TestHandleMessageCompleteIntent(t *testing.T) {
	h := newHarness(t, &classify.Result{
		ClassificationType: "transfer",
		Confidence:         0.97,
		ExtractedArgs:      map[string]string{"recipient": "alice", "amount": "50"},
	})

	reply, err := h.orch.HandleMessage(context.Background(), "sess-1", "u-1", "给 alice 转 50 HBAR")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.Kind != ReplyActionComplete {
		t.Fatalf("kind = %q, message = %q", reply.Kind, reply.Message)
	}
	if reply.Outcome == nil || reply.Outcome.TransactionID != "0.0.1001@169.5" {
		t.Fatalf("outcome = %+v", reply.Outcome)
	}
	if len(h.gateway.submitted) != 1 {
		t.Fatalf("submit calls = %d", len(h.gateway.submitted))
	}
	if len(h.hist.records) != 1 || h.hist.records[0].Status != "success" {
		t.Fatalf("history = %+v", h.hist.records)
	}
	if _, err := h.store.Get(context.Background(), "sess-1"); !errors.Is(err, session.ErrStateNotFound) {
		t.Fatal("complete intent must not leave pending state")
	}
}

func TestHandleMessageMissingArgsRequestsInput(t *testing.T) {
	h := newHarness(t, &classify.Result{
		ClassificationType: "transfer",
		ExtractedArgs:      map[string]string{},
	})

	reply, err := h.orch.HandleMessage(context.Background(), "sess-2", "u-1", "转一些 HBAR")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.Kind != ReplyArgumentRequest {
		t.Fatalf("kind = %q", reply.Kind)
	}
	if len(reply.Request.Fields) != 2 {
		t.Fatalf("fields = %+v", reply.Request.Fields)
	}
	if len(h.gateway.submitted) != 0 {
		t.Fatal("incomplete intent must not touch the ledger")
	}
	if _, err := h.store.Get(context.Background(), "sess-2"); err != nil {
		t.Fatalf("pending state missing: %v", err)
	}
}

func TestSubmissionResolvesAndExecutes(t *testing.T) {
	h := newHarness(t, &classify.Result{
		ClassificationType: "transfer",
		ExtractedArgs:      map[string]string{},
	})

	if _, err := h.orch.HandleMessage(context.Background(), "sess-3", "u-1", "转一些 HBAR"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	reply, err := h.orch.HandleSubmission(context.Background(), "sess-3", map[string]string{
		"recipient": "alice",
		"amount":    "50",
	})
	if err != nil {
		t.Fatalf("HandleSubmission: %v", err)
	}
	if reply.Kind != ReplyActionComplete {
		t.Fatalf("kind = %q, message = %q", reply.Kind, reply.Message)
	}
	if len(h.gateway.submitted) != 1 {
		t.Fatalf("submit calls = %d", len(h.gateway.submitted))
	}
	if h.gateway.submitted[0].Amount != 5_000_000_000 {
		t.Fatalf("amount = %d", h.gateway.submitted[0].Amount)
	}
	if _, err := h.store.Get(context.Background(), "sess-3"); !errors.Is(err, session.ErrStateNotFound) {
		t.Fatal("resolved intent must clear pending state")
	}
}

func TestSubmissionInvalidValueReentersLoop(t *testing.T) {
	h := newHarness(t, &classify.Result{
		ClassificationType: "transfer",
		ExtractedArgs:      map[string]string{"recipient": "alice"},
	})

	if _, err := h.orch.HandleMessage(context.Background(), "sess-4", "u-1", "给 alice 转账"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	reply, err := h.orch.HandleSubmission(context.Background(), "sess-4", map[string]string{"amount": "-5"})
	if err != nil {
		t.Fatalf("HandleSubmission: %v", err)
	}
	if reply.Kind != ReplyArgumentRequest {
		t.Fatalf("kind = %q", reply.Kind)
	}
	if reply.Request.Round != 2 {
		t.Fatalf("round = %d", reply.Request.Round)
	}
	if len(h.gateway.submitted) != 0 {
		t.Fatal("invalid value must not reach the ledger")
	}
}

func TestCancelNeverTouchesExecutor(t *testing.T) {
	h := newHarness(t, &classify.Result{
		ClassificationType: "transfer",
		ExtractedArgs:      map[string]string{},
	})

	if _, err := h.orch.HandleMessage(context.Background(), "sess-5", "u-1", "转一些 HBAR"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	reply, err := h.orch.HandleMessage(context.Background(), "sess-5", "u-1", "cancel")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if reply.Kind != ReplyCancelled {
		t.Fatalf("kind = %q", reply.Kind)
	}
	if len(h.gateway.submitted) != 0 {
		t.Fatal("cancelled intent must produce zero ledger calls")
	}
	if _, err := h.store.Get(context.Background(), "sess-5"); !errors.Is(err, session.ErrStateNotFound) {
		t.Fatal("cancel must clear pending state")
	}
	if len(h.hist.records) != 1 || h.hist.records[0].Status != "cancelled" {
		t.Fatalf("history = %+v", h.hist.records)
	}
}

func TestUnsupportedClassification(t *testing.T) {
	h := newHarness(t, &classify.Result{ClassificationType: "weather_report"})

	reply, err := h.orch.HandleMessage(context.Background(), "sess-6", "u-1", "明天天气怎么样")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.Kind != ReplyActionError {
		t.Fatalf("kind = %q", reply.Kind)
	}
	if _, err := h.store.Get(context.Background(), "sess-6"); !errors.Is(err, session.ErrStateNotFound) {
		t.Fatal("unsupported classification must not create session state")
	}
}

func TestExecutionFailurePropagatesReceiptStatus(t *testing.T) {
	h := newHarness(t, &classify.Result{
		ClassificationType: "transfer",
		ExtractedArgs:      map[string]string{"recipient": "alice", "amount": "50"},
	})
	h.gateway.result = ledger.SubmitResult{
		Failure: &ledger.Failure{Kind: ledger.FailureExecution, Status: "INSUFFICIENT_PAYER_BALANCE"},
	}

	reply, err := h.orch.HandleMessage(context.Background(), "sess-7", "u-1", "给 alice 转 50 HBAR")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.Kind != ReplyActionError {
		t.Fatalf("kind = %q", reply.Kind)
	}
	if reply.Outcome.ReceiptStatus != "INSUFFICIENT_PAYER_BALANCE" {
		t.Fatalf("receipt status = %q", reply.Outcome.ReceiptStatus)
	}
	if len(h.hist.records) != 1 || h.hist.records[0].Status != "failed_execution" {
		t.Fatalf("history = %+v", h.hist.records)
	}
}
