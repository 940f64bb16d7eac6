package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/composedeck/internal/service/auth"
	"github.com/splax/composedeck/internal/service/catalog"
	"github.com/splax/composedeck/internal/service/project"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	auth       auth.Service
	project    project.Service
	catalog    catalog.Service
	limiter    RateLimiter
	site       Site
	dbHealth   func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	provisionTotal     *prometheus.CounterVec
}

const (
	rateWindowDefault     = time.Minute
	rateLimitSignup       = 5
	rateLimitLogin        = 12
	rateLimitUserWrite    = 60
	rateLimitUserRead     = 120
	rateLimitProjectRead  = 30
	rateLimitProjectWrite = 10
	rateLimitSearch       = 60
	healthCheckTimeout    = 2 * time.Second
	maxBodyBytes          = 1 << 20
)

// Site is the operator-configured public address of the deployment. Request
// headers never override it.
type Site struct {
	// Host is the base host project hostnames derive from, e.g. "apps.rhlab.io".
	Host string
	// Origin prefixes webhook links, e.g. "https://apps.rhlab.io".
	Origin string
}

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, projectSvc project.Service, catalogSvc catalog.Service, limiter RateLimiter, site Site, dbHealth func(context.Context) error) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:        http.NewServeMux(),
		logger:     logger,
		auth:       authSvc,
		project:    projectSvc,
		catalog:    catalogSvc,
		limiter:    limiter,
		site:       Site{Host: strings.TrimSpace(site.Host), Origin: strings.TrimRight(strings.TrimSpace(site.Origin), "/")},
		dbHealth:   dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/auth/signup", r.audit("signup", r.withRateLimit("signup", rateLimitSignup, rateWindowDefault, rateLimitKeyIP, r.handleSignup)))
	r.mux.HandleFunc("/auth/login", r.audit("login", r.withRateLimit("login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))

	r.mux.HandleFunc("/api/v1/create-project", r.audit("create_project", r.handlerAuthRate("create_project", rateLimitUserWrite, rateWindowDefault, rateLimitKeyUser, r.handleCreateProject)))
	r.mux.HandleFunc("/api/v1/update-project", r.audit("update_project", r.handlerAuthRate("update_project", rateLimitUserWrite, rateWindowDefault, rateLimitKeyUser, r.handleUpdateProject)))
	r.mux.HandleFunc("/api/v1/projects", r.audit("list_projects", r.handlerAuthRate("list_projects", rateLimitUserRead, rateWindowDefault, rateLimitKeyUser, r.handleListProjects)))
	r.mux.HandleFunc("/api/v1/projects/yml/{id}", r.audit("load_project", r.handlerAuthRate("load_project", rateLimitProjectRead, rateWindowDefault, rateLimitKeyProject, r.handleLoadProject)))
	r.mux.HandleFunc("/api/v1/remove-project/{name}", r.audit("remove_project", r.handlerAuthRate("remove_project", rateLimitProjectWrite, rateWindowDefault, rateLimitKeyProject, r.handleRemoveProject)))

	r.mux.HandleFunc("/api/v1/compose-registry", r.audit("compose_registry", r.handleComposeRegistry))
	r.mux.HandleFunc("/api/v1/search", r.audit("search", r.withRateLimit("search", rateLimitSearch, rateWindowDefault, rateLimitKeyIP, r.handleSearch)))
	r.mux.HandleFunc("/api/v1/yml", r.audit("yml", r.withRateLimit("yml", rateLimitSearch, rateWindowDefault, rateLimitKeyIP, r.handleTemplate)))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	if url, ok := r.catalog.RegistryURL(); ok {
		components["compose_registry"] = map[string]any{"status": "configured", "url": url}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"route", route,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID, "username", info.Username)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

// baseHost is the host project hostnames are derived from. It is fixed by
// configuration; Host and X-Forwarded-Host are ignored.
func (r *Router) baseHost() string {
	return r.site.Host
}

// pageURL is the origin shown in webhook links.
func (r *Router) pageURL() string {
	if r.site.Origin != "" {
		return r.site.Origin
	}
	return "https://" + r.site.Host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
