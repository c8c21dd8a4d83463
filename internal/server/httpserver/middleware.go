package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/szaffarano/korrosync/internal/core/domain"
	"github.com/szaffarano/korrosync/internal/core/service"
	"github.com/szaffarano/korrosync/internal/server/httpserver/handler"
	"github.com/szaffarano/korrosync/internal/telemetry/metric"
)

// Context keys for request-scoped values.
type contextKey string

const (
	// ContextKeyRequestID is the context key for the request ID.
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyStartTime is the context key for the request start time.
	ContextKeyStartTime contextKey = "start_time"
)

// Auth headers of the KOReader sync protocol.
const (
	HeaderAuthUser = "X-Auth-User"
	HeaderAuthKey  = "X-Auth-Key"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestID adds a unique request ID to each request.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = "req-" + ulid.Make().String()
			}

			w.Header().Set("X-Request-ID", requestID)

			ctx := context.WithValue(r.Context(), ContextKeyRequestID, requestID)
			ctx = context.WithValue(ctx, ContextKeyStartTime, time.Now())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Gate authenticates the request through the admission pipeline. The
// verified username is placed in the request context; handlers must use
// it instead of re-reading the header.
func Gate(gate *service.Gate, metrics *metric.Metrics, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := r.Header.Get(HeaderAuthUser)
			password := r.Header.Get(HeaderAuthKey)

			if username == "" || password == "" {
				writeGateError(w, domain.ErrUnauthorized)
				return
			}

			result, err := gate.Admit(r.Context(), &service.AdmitRequest{
				ClientKey: getClientIP(r, trustProxy),
				Username:  username,
				Password:  password,
			})
			if err != nil {
				if metrics != nil {
					switch {
					case errors.Is(err, domain.ErrRateLimited):
						metrics.RateLimited.Inc()
					case errors.Is(err, domain.ErrUnauthorized):
						metrics.AuthFailures.Inc()
					}
				}
				writeGateError(w, err)
				return
			}

			ctx := handler.WithUsername(r.Context(), result.User.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Throttle runs only the rate limiting stage, for unauthenticated
// endpoints such as registration.
func Throttle(gate *service.Gate, metrics *metric.Metrics, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := gate.CheckRateLimit(getClientIP(r, trustProxy)); err != nil {
				if metrics != nil {
					metrics.RateLimited.Inc()
				}
				writeGateError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Audit logs one line per request.
func Audit(logger *slog.Logger, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			requestID, _ := r.Context().Value(ContextKeyRequestID).(string)
			startTime, _ := r.Context().Value(ContextKeyStartTime).(time.Time)

			attrs := []any{
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(startTime).Milliseconds(),
				"client_ip", getClientIP(r, trustProxy),
			}
			if username := handler.UsernameFromContext(r.Context()); username != "" {
				attrs = append(attrs, "username", username)
			}

			switch {
			case wrapped.statusCode >= 500:
				logger.Error("request completed with error", attrs...)
			case wrapped.statusCode >= 400:
				logger.Warn("request completed with client error", attrs...)
			default:
				logger.Info("request completed", attrs...)
			}
		})
	}
}

// Instrument records request counts and latency.
func Instrument(metrics *metric.Metrics, route string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(wrapped, r)

			metrics.RequestsTotal.
				WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).
				Inc()
			metrics.RequestDuration.
				WithLabelValues(r.Method, route).
				Observe(time.Since(start).Seconds())
		})
	}
}

// Recover recovers from panics and returns 500.
func Recover(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID, _ := r.Context().Value(ContextKeyRequestID).(string)
					logger.Error("panic recovered",
						"request_id", requestID,
						"error", err,
						"path", r.URL.Path,
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"message": "internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// GetRequestIDFromContext retrieves the request ID from context.
func GetRequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// writeGateError writes a rejection from the admission pipeline.
func writeGateError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", "1")
	case errors.Is(err, domain.ErrStorageBusy):
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	if code := domain.GetErrorCode(err); code != "" {
		w.Header().Set("X-Error-Code", code)
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"message": err.Error(),
	})
}

// getClientIP extracts the client IP from the request. Forwarding
// headers are client-controlled, so they are honored only when the
// deployment declares a trusted proxy in front; otherwise a direct
// client could mint a fresh rate-limit bucket per request by rotating
// the header.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			return strings.TrimSpace(parts[0])
		}

		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
