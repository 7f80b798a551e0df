// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package replica

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/recommender/internal/metrics"
)

// Interaction is one recorded user action on a product. Rows are never
// updated or deleted; Seq gives insertion order.
type Interaction struct {
	Seq        int64     `json:"seq"`
	UserID     string    `json:"user_id"`
	ProductID  string    `json:"product_id"`
	Type       string    `json:"type"`
	ObservedAt time.Time `json:"observed_at"`
}

// AppendInteraction inserts a new interaction row.
func (s *Store) AppendInteraction(ctx context.Context, userID, productID, interactionType string) (err error) {
	if userID == "" || productID == "" {
		return fmt.Errorf("append interaction: user_id and product_id are required")
	}
	start := time.Now()
	defer func() { metrics.RecordDBQuery("INSERT", "interactions", time.Since(start), err) }()

	if _, err = s.execWithConflictRetry(ctx,
		`INSERT INTO interactions (user_id, product_id, interaction_type) VALUES (?, ?, ?)`,
		userID, productID, interactionType,
	); err != nil {
		return fmt.Errorf("append interaction %s->%s: %w", userID, productID, err)
	}
	return nil
}

// Interactions returns the full interaction history in insertion order.
func (s *Store) Interactions(ctx context.Context) (out []Interaction, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("SELECT", "interactions", time.Since(start), err) }()

	rows, err := s.conn.QueryContext(ctx,
		`SELECT seq, user_id, product_id, interaction_type, observed_at FROM interactions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	out = []Interaction{}
	for rows.Next() {
		var in Interaction
		if err = rows.Scan(&in.Seq, &in.UserID, &in.ProductID, &in.Type, &in.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, in)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return out, nil
}

// InteractedProductIDs returns the distinct product ids userID has any
// interaction with.
func (s *Store) InteractedProductIDs(ctx context.Context, userID string) (ids []string, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("SELECT", "interactions", time.Since(start), err) }()

	rows, err := s.conn.QueryContext(ctx,
		`SELECT DISTINCT product_id FROM interactions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("interacted products for %s: %w", userID, err)
	}
	defer rows.Close()

	if ids, err = scanStrings(rows); err != nil {
		return nil, fmt.Errorf("interacted products for %s: %w", userID, err)
	}
	return ids, nil
}

// InteractedAmong returns the subset of productIDs that have at least one
// interaction from any user.
func (s *Store) InteractedAmong(ctx context.Context, productIDs []string) (ids []string, err error) {
	if len(productIDs) == 0 {
		return []string{}, nil
	}
	start := time.Now()
	defer func() { metrics.RecordDBQuery("SELECT", "interactions", time.Since(start), err) }()

	query := `SELECT DISTINCT product_id FROM interactions WHERE product_id IN (` + placeholders(len(productIDs)) + `)`
	rows, err := s.conn.QueryContext(ctx, query, stringArgs(productIDs)...)
	if err != nil {
		return nil, fmt.Errorf("interacted among viewed: %w", err)
	}
	defer rows.Close()

	if ids, err = scanStrings(rows); err != nil {
		return nil, fmt.Errorf("interacted among viewed: %w", err)
	}
	return ids, nil
}
