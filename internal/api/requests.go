// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/recommender/internal/validation"
)

// Pagination defaults. Skip defaults when absent; take also defaults when it
// is zero, since proto3-shaped clients cannot tell 0 from absent.
const (
	DefaultSkip = 0
	DefaultTake = 5
)

const (
	maxRequestBodyBytes = 1 << 20
	maxViewedIDs        = 10000
)

// UserRecommendationsRequest is the GetRecommendations body.
type UserRecommendationsRequest struct {
	UserID string `json:"user_id" validate:"required,entityid"`
	Skip   *int   `json:"skip,omitempty" validate:"omitempty,min=0"`
	Take   *int   `json:"take,omitempty" validate:"omitempty,min=0"`
}

// ViewedRecommendationsRequest is the GetRecommendationsBasedOnViewed body.
// An empty ids list is valid and yields no recommendations.
type ViewedRecommendationsRequest struct {
	IDs  []string `json:"ids" validate:"max=10000,dive,entityid"`
	Skip *int     `json:"skip,omitempty" validate:"omitempty,min=0"`
	Take *int     `json:"take,omitempty" validate:"omitempty,min=0"`
}

// page resolves optional pagination fields to their defaults.
func page(skip, take *int) (int, int) {
	s, t := DefaultSkip, DefaultTake
	if skip != nil {
		s = *skip
	}
	if take != nil && *take > 0 {
		t = *take
	}
	return s, t
}

// decodeRequest reads a JSON body into dst and validates it. The returned
// APIError is ready to send with HTTP 400.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) *APIError {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer func() { _ = body.Close() }()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return &APIError{Code: CodeValidation, Message: "request body is empty"}
		case errors.As(err, &maxErr):
			return &APIError{Code: CodeValidation, Message: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)}
		default:
			return &APIError{Code: CodeValidation, Message: "malformed JSON body: " + err.Error()}
		}
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		v := verr.ToAPIError()
		apiErr := &APIError{Code: v.Code, Message: v.Message}
		if len(v.Details) > 0 {
			apiErr.Details = v.Details
		}
		return apiErr
	}
	return nil
}
