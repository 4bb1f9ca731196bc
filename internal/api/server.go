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

	xerrors "plugintree/internal/errors"
	"plugintree/internal/ledger"
	"plugintree/internal/observability/metrics"
	"plugintree/pkg/logger"
	"plugintree/pkg/plugin"
)

const pluginsPrefix = "/api/v1/plugins/"

// Server 负责暴露注册表的只读 REST 接口。
type Server struct {
	addr            string
	registry        *plugin.Registry
	ledger          ledger.Store
	metrics         *metrics.Collector
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// Option 调整 Server 的可选依赖。
type Option func(*Server)

// WithLedger 启用 /api/v1/ledger。
func WithLedger(store ledger.Store) Option {
	return func(s *Server) { s.ledger = store }
}

// WithMetrics 启用 /metrics 并记录请求指标。
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithLogger 覆盖默认日志。
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithShutdownTimeout 设置优雅退出的等待时间。
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, reg *plugin.Registry, opts ...Option) *Server {
	s := &Server{addr: addr, registry: reg, shutdownTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("api")
	}
	return s
}

// Handler 返回完整的路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", s.instrument("healthz", s.handleHealth))
	mux.Handle("/api/v1/plugins", s.instrument("plugins", s.handlePlugins))
	mux.Handle(pluginsPrefix, s.instrument("plugin_detail", s.handlePluginDetail))
	mux.Handle(pluginsPrefix+"owner", s.instrument("plugin_owner", s.handleOwner))
	mux.Handle(pluginsPrefix+"available", s.instrument("plugins_available", s.handleAvailable))
	mux.Handle("/api/v1/ledger", s.instrument("ledger", s.handleLedger))
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
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
	s.logger.Info("api listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"plugins":  len(s.registry.LoadedPlugins()),
		"managers": len(s.registry.Managers()),
	})
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	loaded := s.registry.LoadedPlugins()
	views := make([]PluginView, 0, len(loaded))
	for _, p := range loaded {
		views = append(views, newPluginView(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handlePluginDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, pluginsPrefix)
	if id == "" || strings.Contains(id, "/") {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "缺少插件 ID"))
		return
	}
	p := s.registry.PluginByPath(plugin.ParseFullPath(id))
	if p == nil && !strings.Contains(id, ":") {
		p = s.registry.Plugin(id)
	}
	if p == nil {
		writeError(w, xerrors.New(xerrors.CodePluginNotFound, "插件不存在: "+id))
		return
	}
	writeJSON(w, http.StatusOK, newPluginView(p))
}

func (s *Server) handleOwner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	module := strings.TrimSpace(r.URL.Query().Get("module"))
	if module == "" {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "缺少 module 参数"))
		return
	}
	p := s.registry.PluginByModule(module)
	if p == nil {
		writeError(w, xerrors.New(xerrors.CodePluginNotFound, "没有插件拥有模块: "+module))
		return
	}
	writeJSON(w, http.StatusOK, newPluginView(p))
}

func (s *Server) handleAvailable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	view := AvailableView{
		Names:     s.registry.AvailablePluginNames(),
		FullPaths: [][]string{},
	}
	if view.Names == nil {
		view.Names = []string{}
	}
	for _, path := range s.registry.AvailablePluginFullPaths() {
		view.FullPaths = append(view.FullPaths, path)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if s.ledger == nil {
		http.Error(w, "流水存储未启用", http.StatusServiceUnavailable)
		return
	}
	opts := []ledger.ListOption{}
	query := r.URL.Query()
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			opts = append(opts, ledger.WithLimit(parsed))
		}
	}
	if id := query.Get("plugin"); id != "" {
		opts = append(opts, ledger.WithPlugin(id))
	}
	if action := query.Get("action"); action != "" {
		opts = append(opts, ledger.WithActions(ledger.Action(action)))
	}

	entries, err := s.ledger.List(r.Context(), opts...)
	if err != nil {
		s.logger.Error("ledger query failed", "error", err)
		writeError(w, err)
		return
	}
	views := make([]LedgerEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newLedgerEntryView(e))
	}
	writeJSON(w, http.StatusOK, views)
}

// instrument 记录请求耗时与状态码。
func (s *Server) instrument(name string, handler http.HandlerFunc) http.Handler {
	if s.metrics == nil {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r)
		s.metrics.ObserveHTTPRequest(name, r.Method, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	code := xerrors.CodeOf(err)
	message := err.Error()
	if e, ok := xerrors.From(err); ok {
		message = e.Message()
	}
	writeJSON(w, statusFor(code), ErrorResponse{Code: string(code), Message: message})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	w.Header().Set("Allow", http.MethodGet)
	http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
}

func statusFor(code xerrors.Code) int {
	switch code {
	case xerrors.CodeInvalidArgument:
		return http.StatusBadRequest
	case xerrors.CodePluginNotFound:
		return http.StatusNotFound
	case xerrors.CodeDuplicatePlugin:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
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
