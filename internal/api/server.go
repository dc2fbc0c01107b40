package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	xerrors "LottoChain/internal/errors"
	"LottoChain/internal/lottery"
	"LottoChain/internal/observability/metrics"
	"LottoChain/internal/ui"
	"LottoChain/pkg/logger"
)

// maxHistoryLimit 限制单次查询返回的交易记录数。
const maxHistoryLimit = 200

// Server 负责暴露 REST 接口，供外部驱动彩票视图模型。
type Server struct {
	addr  string
	app   *ui.App
	token string
	log   *slog.Logger
}

// Option 用于定制 Server。
type Option func(*Server)

// WithAuthToken 要求写接口携带 Bearer 令牌，空字符串表示不认证。
func WithAuthToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, app *ui.App, opts ...Option) *Server {
	s := &Server{addr: addr, app: app, log: logger.Named("api")}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// NumberRequest 是更新票号草稿的请求体。
type NumberRequest struct {
	Value string `json:"value"`
}

// NumberResponse 返回输入是否被接受以及更新后的视图。
type NumberResponse struct {
	Accepted bool    `json:"accepted"`
	View     ui.View `json:"view"`
}

// ErrorResponse 是错误响应体。
type ErrorResponse struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Retryable   bool   `json:"retryable"`
	Recoverable bool   `json:"recoverable"`
}

// Handler 返回带中间件的路由，测试与 Start 共用。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/view", s.handleView)
	mux.HandleFunc("POST /api/v1/session/connect", s.handleConnect)
	mux.HandleFunc("POST /api/v1/session/disconnect", s.handleDisconnect)
	mux.HandleFunc("POST /api/v1/session/switch-network", s.handleSwitchNetwork)
	mux.HandleFunc("PUT /api/v1/ticket/numbers/{position}", s.handleSetNumber)
	mux.HandleFunc("POST /api/v1/ticket", s.handleBuyTicket)
	mux.HandleFunc("POST /api/v1/rewards/claim", s.handleClaimRewards)
	mux.HandleFunc("DELETE /api/v1/notification", s.handleCloseNotification)
	mux.HandleFunc("GET /api/v1/history", s.handleHistory)
	mux.Handle("GET /metrics", metrics.Handler())
	return withMetrics(s.withAuth(mux))
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("HTTP 服务已启动", slog.String("addr", s.addr))

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

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.View())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.app.Connect(r.Context())
	writeJSON(w, http.StatusOK, s.app.View())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, _ *http.Request) {
	s.app.Disconnect()
	writeJSON(w, http.StatusOK, s.app.View())
}

func (s *Server) handleSwitchNetwork(w http.ResponseWriter, r *http.Request) {
	s.app.SwitchNetwork(r.Context())
	writeJSON(w, http.StatusOK, s.app.View())
}

// handleSetNumber 的位置参数从 1 开始。
func (s *Server) handleSetNumber(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(r.PathValue("position"))
	if err != nil || position < 1 || position > lottery.NumbersPerTicket {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "position must be between 1 and 7"))
		return
	}
	var req NumberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	accepted := s.app.SetNumber(position-1, req.Value)
	writeJSON(w, http.StatusOK, NumberResponse{Accepted: accepted, View: s.app.View()})
}

func (s *Server) handleBuyTicket(w http.ResponseWriter, r *http.Request) {
	if err := s.app.SubmitTicket(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.View())
}

func (s *Server) handleClaimRewards(w http.ResponseWriter, r *http.Request) {
	if err := s.app.ClaimRewards(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.app.View())
}

func (s *Server) handleCloseNotification(w http.ResponseWriter, _ *http.Request) {
	s.app.CloseNotification()
	writeJSON(w, http.StatusOK, s.app.View())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	account := strings.TrimSpace(r.URL.Query().Get("account"))

	records, err := s.app.History(r.Context(), account, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	code := xerrors.CodeOf(err)
	writeJSON(w, statusFor(code), ErrorResponse{
		Code:        string(code),
		Message:     xerrors.Cause(err),
		Retryable:   xerrors.RetryableError(err),
		Recoverable: xerrors.RecoverableError(err),
	})
}

// statusFor 把错误码映射为 HTTP 状态码。
func statusFor(code xerrors.Code) int {
	switch code {
	case xerrors.CodeInvalidArgument, lottery.CodeInvalidTicket:
		return http.StatusBadRequest
	case xerrors.CodeNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict, lottery.CodeNetworkMismatch, lottery.CodeWalletUnavailable:
		return http.StatusConflict
	case lottery.CodeWalletRejected:
		return http.StatusForbidden
	case lottery.CodeReadFailure, lottery.CodeWriteFailure:
		return http.StatusBadGateway
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
