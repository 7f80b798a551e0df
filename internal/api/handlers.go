// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recommender/internal/logging"
	"github.com/tomtom215/recommender/internal/recommend"
	"github.com/tomtom215/recommender/internal/replica"
)

// Recommender ranks product ids. *recommend.Engine implements it.
type Recommender interface {
	RecommendForUser(ctx context.Context, userID string, skip, take int) ([]recommend.ScoredItem, error)
	RecommendForViewed(ctx context.Context, viewed []string, skip, take int) ([]recommend.ScoredItem, error)
	StartTraining(ctx context.Context) (<-chan error, error)
	Status() recommend.Status
}

// ProductStore materializes ranked ids. *replica.Store implements it.
type ProductStore interface {
	ProductsByIDs(ctx context.Context, ids []string) ([]replica.Product, error)
	Ping(ctx context.Context) error
}

// Handler serves the recommendation and operational endpoints.
type Handler struct {
	recommender Recommender
	products    ProductStore
	logger      zerolog.Logger
	startTime   time.Time
}

// NewHandler creates a Handler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(rec Recommender, products ProductStore, logger zerolog.Logger) *Handler {
	return &Handler{
		recommender: rec,
		products:    products,
		logger:      logger.With().Str("component", "api").Logger(),
		startTime:   time.Now(),
	}
}

// GetRecommendations ranks products for a user.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	var req UserRecommendationsRequest
	if apiErr := decodeRequest(w, r, &req); apiErr != nil {
		respondRecommendationError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	skip, take := page(req.Skip, req.Take)
	ranked, err := h.recommender.RecommendForUser(r.Context(), req.UserID, skip, take)
	if err != nil {
		h.internalError(w, r, "GetRecommendations", err)
		return
	}
	h.respondProducts(w, r, "GetRecommendations", ranked)
}

// GetRecommendationsBasedOnViewed ranks products for an anonymous session
// from the ids it viewed.
func (h *Handler) GetRecommendationsBasedOnViewed(w http.ResponseWriter, r *http.Request) {
	var req ViewedRecommendationsRequest
	if apiErr := decodeRequest(w, r, &req); apiErr != nil {
		respondRecommendationError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	skip, take := page(req.Skip, req.Take)
	ranked, err := h.recommender.RecommendForViewed(r.Context(), req.IDs, skip, take)
	if err != nil {
		h.internalError(w, r, "GetRecommendationsBasedOnViewed", err)
		return
	}
	h.respondProducts(w, r, "GetRecommendationsBasedOnViewed", ranked)
}

// respondProducts loads the ranked products in one query and writes them in
// rank order. Ranked ids no longer in the replica are skipped.
func (h *Handler) respondProducts(w http.ResponseWriter, r *http.Request, op string, ranked []recommend.ScoredItem) {
	if len(ranked) == 0 {
		respondJSON(w, http.StatusOK, &RecommendationsResponse{Products: []ProductView{}})
		return
	}

	ids := recommend.ProductIDs(ranked)
	found, err := h.products.ProductsByIDs(r.Context(), ids)
	if err != nil {
		h.internalError(w, r, op, err)
		return
	}

	byID := make(map[string]*replica.Product, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	out := make([]ProductView, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, productView(p))
		}
	}
	if missing := len(ids) - len(out); missing > 0 {
		logging.Ctx(r.Context()).Debug().
			Str("operation", op).
			Int("missing", missing).
			Msg("Ranked products missing from replica")
	}

	respondJSON(w, http.StatusOK, &RecommendationsResponse{Products: out})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error().
		Err(err).
		Str("operation", op).
		Str("request_id", logging.RequestIDFromContext(r.Context())).
		Msg("Recommendation request failed")

	respondRecommendationError(w, r, http.StatusInternalServerError, &APIError{
		Code:    CodeInternal,
		Message: "Failed to get recommendations: " + err.Error(),
	})
}

// ModelStatus reports the training state.
func (h *Handler) ModelStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.recommender.Status())
}

// TrainResponse acknowledges a retrain request.
type TrainResponse struct {
	Status  string `json:"status"`
	Version int64  `json:"current_version"`
}

// TriggerTraining starts a retrain in the background. The run outlives the
// request; its outcome is logged and visible on GET /v1/model.
func (h *Handler) TriggerTraining(w http.ResponseWriter, r *http.Request) {
	current := h.recommender.Status().Version

	done, err := h.recommender.StartTraining(context.WithoutCancel(r.Context()))
	if errors.Is(err, recommend.ErrTrainingInProgress) {
		respondError(w, r, http.StatusConflict, CodeConflict, "training already in progress")
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "failed to start training: "+err.Error())
		return
	}

	requestID := logging.RequestIDFromContext(r.Context())
	go func() {
		if err := <-done; err != nil {
			h.logger.Error().Err(err).Str("request_id", requestID).Msg("Requested training run failed")
			return
		}
		h.logger.Info().Str("request_id", requestID).Msg("Requested training run completed")
	}()

	respondJSON(w, http.StatusAccepted, &TrainResponse{Status: "started", Version: current})
}

// HealthResponse is the probe body.
type HealthResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime_seconds"`
	Model  bool    `json:"model_trained"`
	Error  string  `json:"error,omitempty"`
}

// HealthLive reports that the process is serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.startTime).Seconds(),
		Model:  h.recommender.Status().IsTrained,
	})
}

// HealthReady reports whether the replica answers. An untrained model is
// still ready: the first request trains it.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := &HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.startTime).Seconds(),
		Model:  h.recommender.Status().IsTrained,
	}
	if err := h.products.Ping(ctx); err != nil {
		resp.Status = "unavailable"
		resp.Error = err.Error()
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
