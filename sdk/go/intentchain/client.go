// Package intentchain provides a thin Go client for the IntentChain REST API.
package intentchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the IntentChain REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Choice is one candidate value of a choice field.
type Choice struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Category string `json:"category"`
}

// MissingField describes one argument the service still needs.
type MissingField struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder,omitempty"`
	Hint        string   `json:"hint"`
	Rule        string   `json:"rule"`
	Choices     []Choice `json:"choices,omitempty"`
}

// ArgumentRequest carries the prompt for one collection round.
type ArgumentRequest struct {
	Prompt string         `json:"prompt"`
	Fields []MissingField `json:"fields"`
	Round  int            `json:"round"`
}

// Outcome is the normalized result of an executed action.
type Outcome struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	ReceiptStatus string `json:"receipt_status,omitempty"`
	ErrorDetail   string `json:"error_detail,omitempty"`
}

// Reply is the service's answer to one message or submission.
type Reply struct {
	Kind    string           `json:"kind"`
	Message string           `json:"message"`
	Request *ArgumentRequest `json:"request,omitempty"`
	Outcome *Outcome         `json:"outcome,omitempty"`
}

// MessageResponse wraps a reply with the session it belongs to.
type MessageResponse struct {
	SessionID string `json:"session_id"`
	Reply     *Reply `json:"reply"`
}

// HistoryRecord is one archived intent outcome.
type HistoryRecord struct {
	ID              string `json:"id"`
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id"`
	OriginalMessage string `json:"original_message"`
	Action          string `json:"action"`
	Status          string `json:"status"`
	TransactionID   string `json:"transaction_id,omitempty"`
	ReceiptStatus   string `json:"receipt_status,omitempty"`
	ErrorDetail     string `json:"error_detail,omitempty"`
	Rounds          int    `json:"rounds"`
	CreatedAt       int64  `json:"created_at"`
}

// TokenBalance is one token line of an account snapshot.
type TokenBalance struct {
	TokenID string `json:"token_id"`
	Symbol  string `json:"symbol,omitempty"`
	Amount  uint64 `json:"amount"`
}

// AccountSnapshot mirrors the balance endpoint response.
type AccountSnapshot struct {
	AccountID        string         `json:"account_id"`
	BalanceTinybar   int64          `json:"balance_tinybar"`
	BalanceFormatted string         `json:"balance_formatted"`
	TokenBalances    []TokenBalance `json:"token_balances,omitempty"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("intentchain api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the IntentChain API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SendMessage submits one free-form message. An empty sessionID starts a new
// session; the assigned identifier is returned in the response.
func (c *Client) SendMessage(ctx context.Context, sessionID, userID, message string) (*MessageResponse, error) {
	payload := map[string]string{
		"session_id": sessionID,
		"user_id":    userID,
		"message":    message,
	}
	var out MessageResponse
	if err := c.post(ctx, "/api/v1/messages", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Respond submits values for every field of the pending argument request.
func (c *Client) Respond(ctx context.Context, sessionID string, values map[string]string) (*MessageResponse, error) {
	payload := map[string]any{
		"session_id": sessionID,
		"values":     values,
	}
	var out MessageResponse
	if err := c.post(ctx, "/api/v1/messages/respond", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel abandons the session's pending action.
func (c *Client) Cancel(ctx context.Context, sessionID string) (*MessageResponse, error) {
	payload := map[string]string{"session_id": sessionID}
	var out MessageResponse
	if err := c.post(ctx, "/api/v1/messages/cancel", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TransferResult mirrors the direct transfer endpoint response.
type TransferResult struct {
	TransactionID string `json:"transaction_id,omitempty"`
	Status        string `json:"status"`
	ReceiptStatus string `json:"receipt_status,omitempty"`
	From          string `json:"from"`
	To            string `json:"to"`
	Amount        string `json:"amount"`
	ErrorDetail   string `json:"error_detail,omitempty"`
}

// Transfer executes an HBAR transfer without going through classification.
func (c *Client) Transfer(ctx context.Context, recipient, amount, memo string) (*TransferResult, error) {
	payload := map[string]string{
		"recipient": recipient,
		"amount":    amount,
		"memo":      memo,
	}
	var out TransferResult
	if err := c.post(ctx, "/api/v1/transfer", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Balance fetches an account snapshot. An empty account defaults to the
// service operator.
func (c *Client) Balance(ctx context.Context, account string) (*AccountSnapshot, error) {
	endpoint := "/api/v1/balance"
	if account != "" {
		endpoint += "?account=" + url.QueryEscape(account)
	}
	var out AccountSnapshot
	if err := c.get(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History lists the most recent intent outcomes.
func (c *Client) History(ctx context.Context, limit int) ([]HistoryRecord, error) {
	endpoint := "/api/v1/history"
	if limit > 0 {
		endpoint += fmt.Sprintf("?limit=%d", limit)
	}
	var out []HistoryRecord
	if err := c.get(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(data)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
