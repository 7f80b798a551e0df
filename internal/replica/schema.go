// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package replica

import (
	"context"
	"fmt"
)

// schemaStatements are applied in order on every Open. All are idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id VARCHAR PRIMARY KEY,
		name VARCHAR NOT NULL DEFAULT '',
		description VARCHAR NOT NULL DEFAULT '',
		price DECIMAL(18,2) NOT NULL DEFAULT 0,
		account_id BIGINT NOT NULL DEFAULT 0,
		category VARCHAR NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE SEQUENCE IF NOT EXISTS interactions_seq START 1`,
	`CREATE TABLE IF NOT EXISTS interactions (
		seq BIGINT PRIMARY KEY DEFAULT nextval('interactions_seq'),
		user_id VARCHAR NOT NULL,
		product_id VARCHAR NOT NULL,
		interaction_type VARCHAR NOT NULL,
		observed_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_product ON interactions (product_id)`,
}

func (s *Store) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
