// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomtom215/recommender/internal/recommend/algorithms"
)

// CandidatesForUser returns all product ids minus those userID has
// interacted with, in the replica's listing order.
func CandidatesForUser(ctx context.Context, data DataSource, userID string) ([]string, error) {
	all, err := data.ListProductIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	seen, err := data.InteractedProductIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", userID, err)
	}
	return exclude(all, seen), nil
}

// CandidatesForViewed returns all product ids minus the viewed ids that
// have any recorded interaction.
func CandidatesForViewed(ctx context.Context, data DataSource, viewed []string) ([]string, error) {
	all, err := data.ListProductIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	interacted, err := data.InteractedAmong(ctx, viewed)
	if err != nil {
		return nil, fmt.Errorf("load viewed interactions: %w", err)
	}
	return exclude(all, interacted), nil
}

func exclude(ids, drop []string) []string {
	if len(drop) == 0 {
		return ids
	}
	skip := make(map[string]struct{}, len(drop))
	for _, id := range drop {
		skip[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Rank scores candidates for userID and sorts them by descending score.
// Ties keep candidate order.
func Rank(scorer algorithms.Scorer, userID string, candidates []string) []ScoredItem {
	scored := make([]ScoredItem, len(candidates))
	for i, id := range candidates {
		scored[i] = ScoredItem{ProductID: id, Score: scorer.Score(userID, id)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// Paginate drops the first skip items and returns up to take of the rest.
// Negative arguments are treated as zero.
func Paginate(items []ScoredItem, skip, take int) []ScoredItem {
	if skip < 0 {
		skip = 0
	}
	if take < 0 {
		take = 0
	}
	if skip >= len(items) {
		return []ScoredItem{}
	}
	end := len(items)
	if take < end-skip {
		end = skip + take
	}
	return items[skip:end]
}

// ProductIDs extracts the ids in rank order.
func ProductIDs(items []ScoredItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	return ids
}
