// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package algorithms

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type constScorer struct{}

func (constScorer) Score(string, string) float64 { return 1 }
func (constScorer) Users() int                   { return 0 }
func (constScorer) Items() int                   { return 0 }

func TestExportState_RoundTrip(t *testing.T) {
	trained, err := NewALS(ALSConfig{NumFactors: 3, NumIterations: 6, NumWorkers: 2}).
		Train(context.Background(), tasteRatings())
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	st, err := ExportState(trained)
	if err != nil {
		t.Fatalf("ExportState() error = %v", err)
	}
	if len(st.UserIDs) != 10 || len(st.ItemIDs) != 8 {
		t.Fatalf("state has %d users and %d items, want 10 and 8", len(st.UserIDs), len(st.ItemIDs))
	}

	restored, err := st.Scorer()
	if err != nil {
		t.Fatalf("Scorer() error = %v", err)
	}
	if restored.Users() != trained.Users() || restored.Items() != trained.Items() {
		t.Errorf("restored Users/Items = %d/%d", restored.Users(), restored.Items())
	}
	for u := 0; u < 10; u++ {
		user := fmt.Sprintf("u%d", u)
		for _, item := range []string{"a0", "a3", "b2", "unknown"} {
			if got, want := restored.Score(user, item), trained.Score(user, item); got != want {
				t.Fatalf("Score(%s, %s) = %v after restore, want %v", user, item, got, want)
			}
		}
	}

	// The export is a copy.
	st.UserFactors[0][0] += 100
	if restored.Score("u0", "a0") != trained.Score("u0", "a0") {
		t.Error("mutating the exported state changed a scorer")
	}
}

func TestExportState_NotExportable(t *testing.T) {
	if _, err := ExportState(constScorer{}); !errors.Is(err, ErrNotExportable) {
		t.Errorf("ExportState() error = %v, want ErrNotExportable", err)
	}
}

func TestALSState_ScorerRejectsCorruptState(t *testing.T) {
	valid := func() *ALSState {
		return &ALSState{
			UserIDs:     []string{"u1"},
			ItemIDs:     []string{"p1", "p2"},
			UserBias:    []float64{0.1},
			ItemBias:    []float64{0.2, -0.2},
			UserFactors: [][]float64{{1, 2}},
			ItemFactors: [][]float64{{1, 0}, {0, 1}},
			MinRating:   1,
			MaxRating:   3,
		}
	}

	tests := []struct {
		name   string
		mutate func(st *ALSState)
	}{
		{"missing user bias", func(st *ALSState) { st.UserBias = nil }},
		{"extra item factor row", func(st *ALSState) { st.ItemFactors = append(st.ItemFactors, []float64{0, 0}) }},
		{"ragged factors", func(st *ALSState) { st.ItemFactors[1] = []float64{1} }},
		{"duplicate item id", func(st *ALSState) { st.ItemIDs[1] = "p1" }},
		{"inverted range", func(st *ALSState) { st.MinRating, st.MaxRating = 3, 1 }},
	}

	if _, err := valid().Scorer(); err != nil {
		t.Fatalf("valid state rejected: %v", err)
	}
	var nilState *ALSState
	if _, err := nilState.Scorer(); err == nil {
		t.Error("nil state should be rejected")
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := valid()
			tt.mutate(st)
			if _, err := st.Scorer(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
