package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"sitetools/internal/core"
	"sitetools/internal/transports/common"
)

type contextKey string

const ctxRequestID contextKey = "request_id"

const anonymousSubject = "anonymous"

// Config определяет параметры HTTP-транспорта.
type Config struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	MaxRequestBody  int64
}

// Adapter принимает чат-команды по HTTP (webhook) поверх net/http.
type Adapter struct {
	svc      *common.Service
	registry *core.Registry
	cfg      Config
	logger   *slog.Logger
	started  time.Time

	mu     sync.Mutex
	server *http.Server
}

type executeRequest struct {
	Text string `json:"text"`
}

type executeResponse struct {
	RequestID string         `json:"request_id"`
	Text      string         `json:"text"`
	Images    []string       `json:"images,omitempty"`
	Segments  []core.Segment `json:"segments"`
}

// NewAdapter создает web transport.
func NewAdapter(registry *core.Registry, authorizer core.Authorizer, limiter *common.RateLimiter, audit common.AuditSink, cfg Config, logger *slog.Logger) *Adapter {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 2 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 20 * time.Second
	}
	if cfg.MaxRequestBody <= 0 {
		cfg.MaxRequestBody = 1 << 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		svc: &common.Service{
			Source:      "web",
			Registry:    registry,
			Authorizer:  authorizer,
			RateLimiter: limiter,
			AuditSink:   audit,
		},
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		started:  time.Now(),
	}
}

func (a *Adapter) Name() string { return "web" }

// Start запускает HTTP server и останавливает его при отмене контекста.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.server != nil {
		a.mu.Unlock()
		return errors.New("web transport already started")
	}
	srv := &http.Server{
		Addr:         a.cfg.ListenAddr,
		Handler:      a.routes(),
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
	}
	a.server = srv
	a.mu.Unlock()

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		_ = a.Stop(stopCtx)
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("web transport serve", "addr", a.cfg.ListenAddr, "err", err)
		}
	}()
	a.logger.Info("web transport listening", "addr", a.cfg.ListenAddr)
	return nil
}

// Stop завершает HTTP server.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.server
	a.server = nil
	a.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type middleware func(http.Handler) http.Handler

func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (a *Adapter) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /v1/health", http.HandlerFunc(a.handleHealth))
	mux.Handle("GET /v1/commands", http.HandlerFunc(a.handleCommands))
	mux.Handle("POST /v1/commands/execute", chain(http.HandlerFunc(a.handleExecute),
		a.timeoutMiddleware(),
		a.maxBodyMiddleware(),
	))
	return chain(mux, a.requestIDMiddleware())
}

func (a *Adapter) requestIDMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := sanitizeRequestID(r.Header.Get("X-Request-ID"))
			if requestID == "" {
				requestID = common.NewRequestID()
			}
			w.Header().Set("X-Request-ID", requestID)
			ctx := context.WithValue(r.Context(), ctxRequestID, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Adapter) timeoutMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), a.cfg.RequestTimeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Adapter) maxBodyMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxRequestBody)
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":     "ok",
		"uptime_sec": int64(time.Since(a.started).Seconds()),
	}
	if info, err := host.InfoWithContext(r.Context()); err == nil {
		resp["hostname"] = info.Hostname
		resp["platform"] = info.Platform
		resp["host_uptime_sec"] = info.Uptime
	} else {
		a.logger.Debug("host info unavailable", "err", err)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (a *Adapter) handleCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id": requestIDFromContext(r.Context()),
		"items":      a.registry.Commands(),
	})
}

func (a *Adapter) handleExecute(w http.ResponseWriter, r *http.Request) {
	req, code, statusCode := decodeExecuteRequest(r)
	if code != "" {
		writeError(w, r, statusCode, code)
		return
	}
	subjectID := strings.TrimSpace(r.Header.Get("X-Subject-ID"))
	if subjectID == "" {
		subjectID = anonymousSubject
	}

	reply, err := a.svc.ExecuteText(r.Context(), subjectID, req.Text)
	switch {
	case errors.Is(err, common.ErrNotCommand):
		writeError(w, r, http.StatusNotFound, "unknown_command")
		return
	case errors.Is(err, common.ErrAccessDenied):
		writeError(w, r, http.StatusForbidden, "access_denied")
		return
	case errors.Is(err, common.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, "rate_limited")
		return
	case errors.Is(r.Context().Err(), context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "request_timeout")
		return
	case err != nil:
		a.logger.Error("web execute", "subject", subjectID, "err", err)
		writeError(w, r, http.StatusInternalServerError, "execute_failed")
		return
	}

	segments := reply.Segments
	if segments == nil {
		segments = []core.Segment{}
	}
	writeJSON(w, r, http.StatusOK, executeResponse{
		RequestID: requestIDFromContext(r.Context()),
		Text:      reply.Text(),
		Images:    reply.Images(),
		Segments:  segments,
	})
}

func decodeExecuteRequest(r *http.Request) (executeRequest, string, int) {
	var req executeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return executeRequest{}, "payload_too_large", http.StatusRequestEntityTooLarge
		}
		return executeRequest{}, "invalid_json", http.StatusBadRequest
	}
	if dec.More() {
		return executeRequest{}, "invalid_json", http.StatusBadRequest
	}
	if strings.TrimSpace(req.Text) == "" {
		return executeRequest{}, "bad_command", http.StatusBadRequest
	}
	return req, "", 0
}

func sanitizeRequestID(v string) string {
	id := strings.TrimSpace(v)
	if id == "" || len(id) > 64 {
		return ""
	}
	for _, ch := range id {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			continue
		}
		switch ch {
		case '-', '_', '.', ':':
			continue
		default:
			return ""
		}
	}
	return id
}

func requestIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxRequestID).(string)
	if !ok || v == "" {
		return common.NewRequestID()
	}
	return v
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code string) {
	writeJSON(w, r, statusCode, map[string]string{
		"request_id": requestIDFromContext(r.Context()),
		"error_code": code,
		"message":    errorMessage(code),
	})
}

func errorMessage(code string) string {
	switch code {
	case "access_denied":
		return "access denied"
	case "rate_limited":
		return "too many requests"
	case "unknown_command":
		return "command is not registered"
	case "payload_too_large":
		return "request payload is too large"
	case "request_timeout":
		return "request timeout"
	default:
		return code
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestIDFromContext(r.Context()))
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
