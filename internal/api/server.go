package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"IntentChain/internal/conversation"
	"IntentChain/internal/executor"
	"IntentChain/internal/history"
	"IntentChain/internal/intent"
	"IntentChain/internal/ledger"
	"IntentChain/internal/observability/metrics"
	"IntentChain/internal/session"
)

// Server 负责暴露 REST 接口，供外部驱动意图处理回路。
type Server struct {
	addr      string
	orch      *conversation.Orchestrator
	exec      *executor.Executor
	gateway   ledger.Gateway
	directory *intent.Directory
	history   history.Repository
}

// NewServer 构造 API 服务实例。history 允许为 nil。
func NewServer(addr string, orch *conversation.Orchestrator, exec *executor.Executor, gateway ledger.Gateway, directory *intent.Directory, historyRepo history.Repository) *Server {
	return &Server{
		addr:      addr,
		orch:      orch,
		exec:      exec,
		gateway:   gateway,
		directory: directory,
		history:   historyRepo,
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/messages", s.instrument("messages", s.handleMessages))
	mux.HandleFunc("/api/v1/messages/respond", s.instrument("respond", s.handleRespond))
	mux.HandleFunc("/api/v1/messages/cancel", s.instrument("cancel", s.handleCancel))
	mux.HandleFunc("/api/v1/transfer", s.instrument("transfer", s.handleTransfer))
	mux.HandleFunc("/api/v1/balance", s.instrument("balance", s.handleBalance))
	mux.HandleFunc("/api/v1/history", s.instrument("history", s.handleHistory))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	mux := s.routes()

	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// messageRequest 是自由文本入口的请求体。SessionID 为空时自动生成。
type messageRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

// messageResponse 在编排层回复之外附带会话 ID，供客户端续写会话。
type messageResponse struct {
	SessionID string              `json:"session_id"`
	Reply     *conversation.Reply `json:"reply"`
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message 不能为空", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = uuid.NewString()
	}

	reply, err := s.orch.HandleMessage(r.Context(), req.SessionID, req.UserID, req.Message)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, messageResponse{SessionID: req.SessionID, Reply: reply})
}

// respondRequest 是参数补全入口的请求体。Values 必须完整覆盖上一轮
// 请求的全部字段。
type respondRequest struct {
	SessionID string            `json:"session_id"`
	Values    map[string]string `json:"values"`
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		http.Error(w, "session_id 不能为空", http.StatusBadRequest)
		return
	}

	reply, err := s.orch.HandleSubmission(r.Context(), req.SessionID, req.Values)
	if err != nil {
		if errors.Is(err, session.ErrStateNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, messageResponse{SessionID: req.SessionID, Reply: reply})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}

	reply, err := s.orch.Cancel(r.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrStateNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, messageResponse{SessionID: req.SessionID, Reply: reply})
}

// transferRequest 是跳过分类、直接发起 HBAR 转账的请求体。
type transferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Memo      string `json:"memo,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// transferResponse 在归一化结果之外带上转账双方与金额。
type transferResponse struct {
	TransactionID string `json:"transaction_id,omitempty"`
	Status        string `json:"status"`
	ReceiptStatus string `json:"receipt_status,omitempty"`
	From          string `json:"from"`
	To            string `json:"to"`
	Amount        string `json:"amount"`
	ErrorDetail   string `json:"error_detail,omitempty"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}

	it := intent.Intent{
		ID:        uuid.NewString(),
		Action:    intent.ActionTransfer,
		UserID:    req.UserID,
		CreatedAt: time.Now().Unix(),
		ExtractedArgs: map[string]string{
			"recipient": req.Recipient,
			"amount":    req.Amount,
			"memo":      req.Memo,
		},
	}
	outcome := s.exec.Execute(r.Context(), it)
	writeJSON(w, transferResponse{
		TransactionID: outcome.TransactionID,
		Status:        string(outcome.Status),
		ReceiptStatus: outcome.ReceiptStatus,
		From:          s.gateway.Operator(),
		To:            req.Recipient,
		Amount:        req.Amount,
		ErrorDetail:   outcome.ErrorDetail,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}

	var known map[string]string
	if s.directory != nil {
		known = s.directory.KnownTokens()
	}
	snapshot, err := s.gateway.AccountBalance(r.Context(), r.URL.Query().Get("account"), known)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, snapshot)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		http.Error(w, "历史存储未启用", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := s.history.ListLatest(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, records)
}

// handleHealth 报告进程与账本会话的就绪状态。
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{
		"status":       "ok",
		"ledger_ready": s.gateway != nil && s.gateway.Ready(),
	}
	writeJSON(w, status)
}

// instrument 以 handler 维度记录请求量与耗时。
func (s *Server) instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
