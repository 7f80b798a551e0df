// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/recommender/internal/config"
)

// RPC-style paths for the two recommendation operations.
const (
	rpcService                    = "/recommender.RecommenderService"
	rpcGetRecommendations         = rpcService + "/GetRecommendations"
	rpcGetRecommendationsByViewed = rpcService + "/GetRecommendationsBasedOnViewed"
)

// MiddlewareConfigFromServer builds the middleware settings from server config.
func MiddlewareConfigFromServer(cfg *config.ServerConfig) *MiddlewareConfig {
	mc := DefaultMiddlewareConfig()
	mc.CORSAllowedOrigins = cfg.CORSOrigins
	mc.MaxConcurrent = cfg.MaxConcurrent
	mc.MaxBacklog = cfg.MaxBacklog
	mc.BacklogTimeout = cfg.BacklogTimeout
	mc.RateLimitRequests = cfg.RateLimitRequests
	mc.RateLimitWindow = cfg.RateLimitWindow
	mc.RateLimitDisabled = cfg.RateLimitDisabled
	return mc
}

// NewRouter wires the handler into a chi router.
//
// Middleware order matters: the request id comes first so every later
// layer can log it, and metrics wrap the recoverer so recovered panics are
// counted as 500s. Probes and /metrics sit outside the throttle so a
// saturated server still answers them.
func NewRouter(h *Handler, cfg *MiddlewareConfig) http.Handler {
	if cfg == nil {
		cfg = DefaultMiddlewareConfig()
	}

	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(RequestMetrics())
	r.Use(AccessLog())
	r.Use(Recoverer())
	r.Use(APISecurityHeaders())
	r.Use(CORS(cfg))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})

	r.Get("/healthz/live", h.HealthLive)
	r.Get("/healthz/ready", h.HealthReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(cfg))
		r.Use(Throttle(cfg))
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Post("/v1/recommendations", h.GetRecommendations)
		r.Post("/v1/recommendations/viewed", h.GetRecommendationsBasedOnViewed)
		r.Post(rpcGetRecommendations, h.GetRecommendations)
		r.Post(rpcGetRecommendationsByViewed, h.GetRecommendationsBasedOnViewed)

		r.Get("/v1/model", h.ModelStatus)
		r.Post("/v1/model/train", h.TriggerTraining)
	})

	return r
}
