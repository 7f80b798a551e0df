// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package algorithms

import (
	"context"
	"errors"
	"math"
)

// ErrNoRatings is returned by Train when given no observations.
var ErrNoRatings = errors.New("algorithms: no ratings to train on")

// Rating is one observed (user, item, value) triple. Repeated pairs are
// separate observations.
type Rating struct {
	UserID string
	ItemID string
	Value  float64
}

// Scorer predicts ratings. Implementations are immutable.
type Scorer interface {
	// Score returns a finite predicted rating for the pair.
	Score(userID, itemID string) float64
	Users() int
	Items() int
}

// Model trains a Scorer from ratings.
type Model interface {
	Name() string
	Train(ctx context.Context, ratings []Rating) (Scorer, error)
}

// ContextCancelled checks if the context has been canceled.
func ContextCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// indexer assigns dense indices to ids in first-seen order.
type indexer struct {
	index map[string]int
	ids   []string
}

func newIndexer() *indexer {
	return &indexer{index: make(map[string]int)}
}

func (x *indexer) add(id string) int {
	if i, ok := x.index[id]; ok {
		return i
	}
	i := len(x.ids)
	x.index[id] = i
	x.ids = append(x.ids, id)
	return i
}

func (x *indexer) lookup(id string) (int, bool) {
	i, ok := x.index[id]
	return i, ok
}

func (x *indexer) len() int {
	return len(x.ids)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
