package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/szaffarano/korrosync/internal/core/service"
	"github.com/szaffarano/korrosync/internal/server/httpserver/handler"
	"github.com/szaffarano/korrosync/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// UserService handles account operations.
	UserService *service.UserService

	// SyncService handles reading progress operations.
	SyncService *service.SyncService

	// Gate is the admission pipeline for authenticated routes.
	Gate *service.Gate

	// Metrics instruments requests; nil disables instrumentation.
	Metrics *metric.Metrics

	// MetricsEnabled exposes /metrics.
	MetricsEnabled bool

	// TrustProxyHeaders honors X-Forwarded-For and X-Real-IP when
	// resolving the client IP. Enable only behind a trusted proxy.
	TrustProxyHeaders bool

	// Logger for request logging.
	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router with all routes and
// middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := handler.New(cfg.UserService, cfg.SyncService, logger)

	base := func(route string, mw ...Middleware) []Middleware {
		chain := []Middleware{Recover(logger), RequestID()}
		if cfg.Metrics != nil {
			chain = append(chain, Instrument(cfg.Metrics, route))
		}
		chain = append(chain, Audit(logger, cfg.TrustProxyHeaders))
		return append(chain, mw...)
	}

	mux := http.NewServeMux()

	// Registration is unauthenticated but throttled, so credential
	// stuffing against /users/create pays the same token bucket tax.
	mux.Handle("POST /users/create", Chain(
		http.HandlerFunc(h.CreateUser),
		base("/users/create", Throttle(cfg.Gate, cfg.Metrics, cfg.TrustProxyHeaders))...,
	))

	mux.Handle("GET /users/auth", Chain(
		http.HandlerFunc(h.Authorize),
		base("/users/auth", Gate(cfg.Gate, cfg.Metrics, cfg.TrustProxyHeaders))...,
	))

	mux.Handle("PUT /syncs/progress", Chain(
		http.HandlerFunc(h.UpdateProgress),
		base("/syncs/progress", Gate(cfg.Gate, cfg.Metrics, cfg.TrustProxyHeaders))...,
	))

	mux.Handle("GET /syncs/progress/{document}", Chain(
		http.HandlerFunc(h.GetProgress),
		base("/syncs/progress/{document}", Gate(cfg.Gate, cfg.Metrics, cfg.TrustProxyHeaders))...,
	))

	// Unthrottled utility endpoints.
	mux.Handle("GET /healthcheck", Chain(
		http.HandlerFunc(h.HealthCheck),
		Recover(logger), RequestID(),
	))
	mux.Handle("GET /robots.txt", http.HandlerFunc(h.RobotsTxt))

	if cfg.MetricsEnabled && cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	return mux
}
