// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package recommend

import (
	"time"

	"github.com/tomtom215/recommender/internal/models"
	"github.com/tomtom215/recommender/internal/recommend/algorithms"
)

// Identities used when there is no real user or no history.
const (
	// AnonymousUser scores the viewed-products path.
	AnonymousUser = "anonymous_user"
	// DummyUser and DummyProduct form the single rating trained on an empty
	// history.
	DummyUser    = "dummy_user"
	DummyProduct = "dummy_product"
)

// Rating values on the 1-3 scale.
const (
	RatingPurchase = 3.0
	RatingOther    = 1.0
)

// RatingFor maps an interaction type to its training rating.
func RatingFor(interactionType string) float64 {
	if interactionType == models.InteractionPurchase {
		return RatingPurchase
	}
	return RatingOther
}

// dummyRatings is the training set substituted for an empty history.
func dummyRatings() []algorithms.Rating {
	return []algorithms.Rating{{UserID: DummyUser, ItemID: DummyProduct, Value: RatingPurchase}}
}

// Snapshot is one trained model generation. It is never mutated.
type Snapshot struct {
	Scorer       algorithms.Scorer
	Model        string
	Version      int64
	Interactions int
	TrainedAt    time.Time
	Duration     time.Duration
	// Restored marks a snapshot loaded from a checkpoint rather than trained
	// by this process.
	Restored bool
}

// ScoredItem is a ranked product id.
type ScoredItem struct {
	ProductID string  `json:"product_id"`
	Score     float64 `json:"score"`
}

// Status describes the engine's training state.
type Status struct {
	IsTrained    bool      `json:"is_trained"`
	InProgress   bool      `json:"in_progress"`
	Model        string    `json:"model"`
	Version      int64     `json:"version"`
	Users        int       `json:"users"`
	Items        int       `json:"items"`
	Interactions int       `json:"interactions"`
	TrainedAt    time.Time `json:"trained_at,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	Restored     bool      `json:"restored,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}
