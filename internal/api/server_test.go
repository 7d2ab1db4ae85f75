package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"IntentChain/internal/classify"
	"IntentChain/internal/conversation"
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
}

func (f *fakeClassifier) Classify(context.Context, classify.Request) (*classify.Result, error) {
	return f.result, nil
}

type fakeGateway struct {
	submitted int
}

func (f *fakeGateway) Ready() bool             { return true }
func (f *fakeGateway) Network() ledger.Network { return ledger.NetworkTestnet }
func (f *fakeGateway) Operator() string        { return "0.0.1001" }
func (f *fakeGateway) Close() error            { return nil }

func (f *fakeGateway) Submit(context.Context, ledger.TransactionSpec) ledger.SubmitResult {
	f.submitted++
	return ledger.SubmitResult{
		Receipt: &ledger.Receipt{TransactionID: "0.0.1001@169.5", Status: "SUCCESS"},
	}
}

func (f *fakeGateway) AccountBalance(context.Context, string, map[string]string) (*ledger.AccountSnapshot, error) {
	return &ledger.AccountSnapshot{
		AccountID:        "0.0.1001",
		BalanceTinybar:   1_000 * ledger.TinybarPerHbar,
		BalanceFormatted: ledger.FormatTinybar(1_000 * ledger.TinybarPerHbar),
	}, nil
}

func newTestServer(t *testing.T, result *classify.Result) (*httptest.Server, *fakeGateway) {
	t.Helper()
	directory := intent.NewDirectory(
		map[string]intent.ContactEntry{"alice": {AccountID: "0.0.2002"}},
		nil,
	)
	validator := intent.NewValidator(directory)
	gateway := &fakeGateway{}
	exec := executor.New(gateway, directory)
	repo, err := history.NewFileRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}
	orch := conversation.New(
		&fakeClassifier{result: result},
		validator,
		resolve.New(validator),
		session.NewMemoryStore(),
		exec,
		repo,
		events.NopPublisher{},
	)
	server := NewServer("127.0.0.1:0", orch, exec, gateway, directory, repo)
	ts := httptest.NewServer(server.routes())
	t.Cleanup(ts.Close)
	return ts, gateway
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestMessagesEndpointFullFlow(t *testing.T) {
	ts, gateway := newTestServer(t, &classify.Result{
		ClassificationType: "transfer",
		ExtractedArgs:      map[string]string{},
	})

	resp := postJSON(t, ts.URL+"/api/v1/messages", map[string]string{
		"message": "转一些 HBAR",
		"user_id": "u-1",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var first struct {
		SessionID string              `json:"session_id"`
		Reply     *conversation.Reply `json:"reply"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Reply.Kind != conversation.ReplyArgumentRequest {
		t.Fatalf("kind = %q", first.Reply.Kind)
	}
	if first.SessionID == "" {
		t.Fatal("session_id must be assigned")
	}

	resp2 := postJSON(t, ts.URL+"/api/v1/messages/respond", map[string]any{
		"session_id": first.SessionID,
		"values":     map[string]string{"recipient": "alice", "amount": "50"},
	})
	defer resp2.Body.Close()
	var second struct {
		Reply *conversation.Reply `json:"reply"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second.Reply.Kind != conversation.ReplyActionComplete {
		t.Fatalf("kind = %q, message = %q", second.Reply.Kind, second.Reply.Message)
	}
	if gateway.submitted != 1 {
		t.Fatalf("submit calls = %d", gateway.submitted)
	}
}

func TestRespondWithoutSessionReturnsNotFound(t *testing.T) {
	ts, _ := newTestServer(t, &classify.Result{ClassificationType: "transfer"})

	resp := postJSON(t, ts.URL+"/api/v1/messages/respond", map[string]any{
		"session_id": "missing",
		"values":     map[string]string{"amount": "1"},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestDirectTransferEndpoint(t *testing.T) {
	ts, gateway := newTestServer(t, &classify.Result{ClassificationType: "transfer"})

	resp := postJSON(t, ts.URL+"/api/v1/transfer", map[string]string{
		"recipient": "0.0.2002",
		"amount":    "1.5",
	})
	defer resp.Body.Close()
	var result transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Status != string(executor.StatusSuccess) {
		t.Fatalf("status = %q, detail = %q", result.Status, result.ErrorDetail)
	}
	if result.From != "0.0.1001" || result.To != "0.0.2002" || result.Amount != "1.5" {
		t.Fatalf("parties = %q -> %q (%s)", result.From, result.To, result.Amount)
	}
	if gateway.submitted != 1 {
		t.Fatalf("submit calls = %d", gateway.submitted)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, &classify.Result{ClassificationType: "transfer"})

	resp, err := http.Get(ts.URL + "/api/v1/balance")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var snapshot ledger.AccountSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.AccountID != "0.0.1001" {
		t.Fatalf("account = %q", snapshot.AccountID)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, &classify.Result{ClassificationType: "transfer"})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status["status"] != "ok" || status["ledger_ready"] != true {
		t.Fatalf("health = %v", status)
	}
}

func TestMetricsEndpointRendersCounters(t *testing.T) {
	ts, _ := newTestServer(t, &classify.Result{ClassificationType: "transfer"})

	if resp, err := http.Get(ts.URL + "/healthz"); err == nil {
		resp.Body.Close()
	}
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(buf.String(), "intentchain_http_requests_total") {
		t.Fatalf("metrics output missing counter header:\n%s", buf.String())
	}
}
