// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/recommender/internal/logging"
	"github.com/tomtom215/recommender/internal/replica"
	"github.com/tomtom215/recommender/internal/validation"
)

// Error codes.
const (
	CodeInternal         = "INTERNAL"
	CodeValidation       = validation.CodeValidationError
	CodeConflict         = "CONFLICT"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeUnavailable      = "UNAVAILABLE"
)

// ProductView is one recommended product on the wire.
type ProductView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

func productView(p *replica.Product) ProductView {
	return ProductView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
	}
}

// RecommendationsResponse is the body of both recommendation operations.
// Products is never null, including on error.
type RecommendationsResponse struct {
	Products []ProductView `json:"products"`
	Error    *APIError     `json:"error,omitempty"`
}

// APIError is a machine-readable error.
type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorResponse wraps an APIError for the non-recommendation endpoints.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// respondJSON writes body as JSON with the given status.
func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError writes an ErrorResponse.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, status, &ErrorResponse{Error: &APIError{
		Code:      code,
		Message:   message,
		RequestID: logging.RequestIDFromContext(r.Context()),
	}})
}

// respondRecommendationError writes the recommendation failure shape: an
// empty product list next to the error.
func respondRecommendationError(w http.ResponseWriter, r *http.Request, status int, apiErr *APIError) {
	apiErr.RequestID = logging.RequestIDFromContext(r.Context())
	respondJSON(w, status, &RecommendationsResponse{
		Products: []ProductView{},
		Error:    apiErr,
	})
}
