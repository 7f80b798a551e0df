// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package replica

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/recommender/internal/metrics"
)

// Product is a catalog item as held in the replica. Price is stored as
// DECIMAL(18,2), so it comes back rounded to cents.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	AccountID   int64     `json:"account_id"`
	Category    string    `json:"category,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// productColumns reads price back as DOUBLE; the driver's DECIMAL value
// does not scan into float64.
const productColumns = `id, name, description, CAST(price AS DOUBLE) AS price, account_id, category, updated_at`

const upsertProductSQL = `INSERT INTO products (id, name, description, price, account_id, category, updated_at)
VALUES (?, ?, ?, ?, ?, ?, current_timestamp)
ON CONFLICT (id) DO UPDATE SET
	name = excluded.name,
	description = excluded.description,
	price = excluded.price,
	account_id = excluded.account_id,
	category = COALESCE(NULLIF(excluded.category, ''), category),
	updated_at = excluded.updated_at`

// UpsertProduct inserts p or overwrites the mutable fields of the existing
// row with the same id. An empty Category keeps the stored category.
func (s *Store) UpsertProduct(ctx context.Context, p *Product) (err error) {
	if p == nil || p.ID == "" {
		return fmt.Errorf("upsert product: id is required")
	}
	start := time.Now()
	defer func() { metrics.RecordDBQuery("UPSERT", "products", time.Since(start), err) }()

	if _, err = s.execWithConflictRetry(ctx, upsertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.AccountID, p.Category,
	); err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

// DeleteProduct removes the product with the given id. It reports whether a
// row was removed; deleting an unknown id is not an error.
func (s *Store) DeleteProduct(ctx context.Context, id string) (deleted bool, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("DELETE", "products", time.Since(start), err) }()

	res, err := s.execWithConflictRetry(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete product %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete product %s: rows affected: %w", id, err)
	}
	return n > 0, nil
}

// ProductExists reports whether a product row with id is present.
func (s *Store) ProductExists(ctx context.Context, id string) (exists bool, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("SELECT", "products", time.Since(start), err) }()

	err = s.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = ?)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check product %s: %w", id, err)
	}
	return exists, nil
}

// GetProduct returns a single product or ErrNotFound.
func (s *Store) GetProduct(ctx context.Context, id string) (_ *Product, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("SELECT", "products", time.Since(start), err) }()

	var p Product
	err = s.conn.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.AccountID, &p.Category, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return &p, nil
}

// ListProductIDs returns every product id ordered by id. The order is the
// candidate iteration order used to break ranking ties.
func (s *Store) ListProductIDs(ctx context.Context) (ids []string, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("SELECT", "products", time.Since(start), err) }()

	rows, err := s.conn.QueryContext(ctx, `SELECT id FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list product ids: %w", err)
	}
	defer rows.Close()

	ids, err = scanStrings(rows)
	if err != nil {
		return nil, fmt.Errorf("list product ids: %w", err)
	}
	return ids, nil
}

// ProductsByIDs fetches the products for ids in a single query. The result
// order is unspecified and unknown ids are simply absent.
func (s *Store) ProductsByIDs(ctx context.Context, ids []string) (products []Product, err error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}
	start := time.Now()
	defer func() { metrics.RecordDBQuery("SELECT", "products", time.Since(start), err) }()

	query := `SELECT ` + productColumns + `
FROM products WHERE id IN (` + placeholders(len(ids)) + `)`

	rows, err := s.conn.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	defer rows.Close()

	products = make([]Product, 0, len(ids))
	for rows.Next() {
		var p Product
		if err = rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.AccountID, &p.Category, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
