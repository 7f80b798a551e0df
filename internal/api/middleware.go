// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/recommender/internal/logging"
	"github.com/tomtom215/recommender/internal/metrics"
)

// MiddlewareConfig holds the settings for the router's middleware stack.
type MiddlewareConfig struct {
	// CORSAllowedOrigins lists browser origins; empty allows any origin.
	CORSAllowedOrigins []string
	CORSMaxAge         int // seconds

	// MaxConcurrent bounds in-flight recommendation requests. Up to
	// MaxBacklog more wait at most BacklogTimeout for a slot.
	MaxConcurrent  int
	MaxBacklog     int
	BacklogTimeout time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// DefaultMiddlewareConfig matches the server defaults.
func DefaultMiddlewareConfig() *MiddlewareConfig {
	return &MiddlewareConfig{
		CORSMaxAge:        86400,
		MaxConcurrent:     10,
		MaxBacklog:        50,
		BacklogTimeout:    30 * time.Second,
		RateLimitRequests: 600,
		RateLimitWindow:   time.Minute,
		RateLimitDisabled: true,
	}
}

// CORS returns a go-chi/cors handler for the RPC surface.
func CORS(cfg *MiddlewareConfig) func(http.Handler) http.Handler {
	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         cfg.CORSMaxAge,
	})
}

// RateLimit limits requests per client IP with go-chi/httprate, or is a
// no-op when disabled.
func RateLimit(cfg *MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, r, http.StatusTooManyRequests, CodeUnavailable, "rate limit exceeded")
		}),
	)
}

// Throttle bounds concurrent requests. Requests beyond the backlog, or that
// wait longer than BacklogTimeout, get HTTP 429 from chi.
func Throttle(cfg *MiddlewareConfig) func(http.Handler) http.Handler {
	limit := cfg.MaxConcurrent
	if limit < 1 {
		limit = 1
	}
	backlog := cfg.MaxBacklog
	if backlog < 0 {
		backlog = 0
	}
	timeout := cfg.BacklogTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return chimiddleware.ThrottleBacklog(limit, backlog, timeout)
}

// RequestIDWithLogging accepts or generates an X-Request-ID, echoes it in
// the response and stores request and correlation ids in the context for
// logging.Ctx.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		chiRequestID := chimiddleware.RequestID(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(chimiddleware.RequestIDHeader)
			if requestID == "" {
				requestID = logging.GenerateRequestID()
				r.Header.Set(chimiddleware.RequestIDHeader, requestID)
			}
			w.Header().Set(chimiddleware.RequestIDHeader, requestID)

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			ctx = logging.ContextWithNewCorrelationID(ctx)

			chiRequestID.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APISecurityHeaders adds the standard API response hardening headers.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Recoverer turns a handler panic into a JSON 500 and keeps serving.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				//nolint:errorlint // http.ErrAbortHandler is a sentinel panic value
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.Ctx(r.Context()).Error().
					Str("panic", fmt.Sprint(rec)).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("Recovered from handler panic")
				respondError(w, r, http.StatusInternalServerError, CodeInternal, "internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestMetrics records method, route pattern, status and latency for
// every request. Unmatched routes are labelled "unmatched" to bound
// cardinality.
func RequestMetrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			endpoint := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					endpoint = pattern
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.RecordAPIRequest(r.Method, endpoint, status, time.Since(start))
		})
	}
}

// AccessLog logs one line per request at debug level, warn for 5xx.
func AccessLog() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger := logging.Ctx(r.Context())
			event := logger.Debug()
			if ww.Status() >= http.StatusInternalServerError {
				event = logger.Warn()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}
