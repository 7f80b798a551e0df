// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package algorithms

import (
	"errors"
	"fmt"
)

// ErrNotExportable is returned by ExportState for scorers without a
// serializable form.
var ErrNotExportable = errors.New("algorithms: scorer state cannot be exported")

// ALSState is the serializable form of a trained ALS scorer. Row i of
// UserFactors and UserBias belongs to UserIDs[i]; items likewise.
type ALSState struct {
	GlobalMean  float64
	UserIDs     []string
	ItemIDs     []string
	UserBias    []float64
	ItemBias    []float64
	UserFactors [][]float64
	ItemFactors [][]float64
	MinRating   float64
	MaxRating   float64
}

// ExportState copies the state out of a scorer returned by ALS.Train.
func ExportState(s Scorer) (*ALSState, error) {
	als, ok := s.(*alsScorer)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotExportable, s)
	}
	return &ALSState{
		GlobalMean:  als.mu,
		UserIDs:     append([]string(nil), als.users.ids...),
		ItemIDs:     append([]string(nil), als.items.ids...),
		UserBias:    append([]float64(nil), als.bu...),
		ItemBias:    append([]float64(nil), als.bi...),
		UserFactors: copyMatrix(als.P),
		ItemFactors: copyMatrix(als.Q),
		MinRating:   als.min,
		MaxRating:   als.max,
	}, nil
}

// Scorer rebuilds a scorer from the state after checking that every
// dimension lines up.
func (st *ALSState) Scorer() (Scorer, error) {
	if st == nil {
		return nil, errors.New("algorithms: nil ALS state")
	}
	if len(st.UserIDs) != len(st.UserBias) || len(st.UserIDs) != len(st.UserFactors) {
		return nil, fmt.Errorf("algorithms: user dimensions disagree (%d ids, %d biases, %d factors)",
			len(st.UserIDs), len(st.UserBias), len(st.UserFactors))
	}
	if len(st.ItemIDs) != len(st.ItemBias) || len(st.ItemIDs) != len(st.ItemFactors) {
		return nil, fmt.Errorf("algorithms: item dimensions disagree (%d ids, %d biases, %d factors)",
			len(st.ItemIDs), len(st.ItemBias), len(st.ItemFactors))
	}
	if st.MinRating > st.MaxRating {
		return nil, fmt.Errorf("algorithms: rating range [%v, %v] is empty", st.MinRating, st.MaxRating)
	}

	k := -1
	for _, rows := range [][][]float64{st.UserFactors, st.ItemFactors} {
		for _, row := range rows {
			if k < 0 {
				k = len(row)
			}
			if len(row) != k {
				return nil, fmt.Errorf("algorithms: factor rows have mixed lengths %d and %d", k, len(row))
			}
		}
	}

	users, err := indexerFrom(st.UserIDs)
	if err != nil {
		return nil, err
	}
	items, err := indexerFrom(st.ItemIDs)
	if err != nil {
		return nil, err
	}

	return &alsScorer{
		mu:    st.GlobalMean,
		bu:    append([]float64(nil), st.UserBias...),
		bi:    append([]float64(nil), st.ItemBias...),
		P:     copyMatrix(st.UserFactors),
		Q:     copyMatrix(st.ItemFactors),
		users: users,
		items: items,
		min:   st.MinRating,
		max:   st.MaxRating,
	}, nil
}

func indexerFrom(ids []string) (*indexer, error) {
	x := newIndexer()
	for _, id := range ids {
		if _, dup := x.lookup(id); dup {
			return nil, fmt.Errorf("algorithms: duplicate id %q in state", id)
		}
		x.add(id)
	}
	return x, nil
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
