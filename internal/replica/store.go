// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

// Package replica is the local DuckDB copy of catalog products and user
// interactions. It is the only store the serving path reads from.
//
// Every write touches a single row with a single statement (upsert, delete or
// append), so the two event consumers and the request path can share one
// Store without cross-row transactions.
package replica

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/recommender/internal/config"
	"github.com/tomtom215/recommender/internal/logging"
	"github.com/tomtom215/recommender/internal/metrics"
)

// ErrNotFound is returned by point lookups for an unknown product id.
var ErrNotFound = errors.New("replica: product not found")

const (
	maxConflictRetries = 4
)

// Store is the replica. It is safe for concurrent use.
type Store struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// Open opens (or creates) the DuckDB database described by cfg and ensures
// the schema exists.
func Open(cfg *config.DatabaseConfig) (*Store, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{conn: conn, cfg: cfg}
	s.configureConnectionPool()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.createSchema(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Str("max_memory", maxMemory).
		Msg("Replica store opened")
	return s, nil
}

func (s *Store) configureConnectionPool() {
	s.conn.SetMaxOpenConns(runtime.NumCPU())
	s.conn.SetMaxIdleConns(2)
	s.conn.SetConnMaxLifetime(time.Hour)
	s.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close releases the database.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Stats are row counts used by health and status reporting.
type Stats struct {
	Products     int64 `json:"products"`
	Interactions int64 `json:"interactions"`
}

// Stats returns current row counts.
func (s *Store) Stats(ctx context.Context) (st Stats, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("SELECT", "stats", time.Since(start), err) }()

	err = s.conn.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM products), (SELECT COUNT(*) FROM interactions)`,
	).Scan(&st.Products, &st.Interactions)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count rows: %w", err)
	}
	return st, nil
}

// execWithConflictRetry runs a single write statement, retrying DuckDB
// optimistic-concurrency conflicts with a short exponential backoff.
func (s *Store) execWithConflictRetry(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		res, err := s.conn.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("operation timed out or canceled: %w", ctx.Err())
		}
		if !isTransactionConflict(err) || attempt == maxConflictRetries-1 {
			break
		}

		backoff := time.Millisecond * time.Duration(1<<uint(attempt)) // 1ms, 2ms, 4ms
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// isTransactionConflict reports whether err is a DuckDB write-write conflict.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Transaction conflict") ||
		strings.Contains(errStr, "Conflict on update") ||
		strings.Contains(errStr, "Conflict on tuple deletion")
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// closeQuietly closes a resource in error paths where Close errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
