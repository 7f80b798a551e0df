// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

// Package dedup remembers transport message ids that have already been
// applied, so a redelivered interaction event does not append a second row.
//
// Ids are stored in BadgerDB with a TTL; once an entry expires a redelivery
// is treated as new. Product events are idempotent upserts and do not need
// the store, but it is harmless to use it for both topics.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/recommender/internal/config"
	"github.com/tomtom215/recommender/internal/logging"
	"github.com/tomtom215/recommender/internal/metrics"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("dedup store is closed")

const (
	keyPrefix  = "msg:"
	gcInterval = 10 * time.Minute
	gcRatio    = 0.5
)

// Store is a BadgerDB-backed set of seen message ids.
type Store struct {
	db       *badger.DB
	ttl      time.Duration
	inMemory bool

	mu     sync.RWMutex
	closed bool
}

// Open opens the store described by cfg.
func Open(cfg *config.DedupConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for dedup: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("ttl", cfg.TTL).
		Msg("Dedup store opened")

	return &Store{db: db, ttl: cfg.TTL, inMemory: cfg.InMemory}, nil
}

func makeKey(id string) []byte {
	return []byte(keyPrefix + id)
}

// Seen reports whether id was marked and has not expired.
func (s *Store) Seen(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}

	var seen bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(makeKey(id))
		switch {
		case err == nil:
			seen = true
			return nil
		case errors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	if err != nil {
		metrics.RecordDedup("check", "error")
		return false, fmt.Errorf("dedup check %s: %w", id, err)
	}
	if seen {
		metrics.RecordDedup("check", "hit")
	} else {
		metrics.RecordDedup("check", "miss")
	}
	return seen, nil
}

// Mark records id as applied for the configured TTL.
func (s *Store) Mark(_ context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(makeKey(id), stamp).WithTTL(s.ttl))
	})
	if err != nil {
		metrics.RecordDedup("mark", "error")
		return fmt.Errorf("dedup mark %s: %w", id, err)
	}
	metrics.RecordDedup("mark", "success")
	return nil
}

// Serve runs value-log garbage collection until ctx is done. It lets the
// store run as a supervised service next to the consumers.
func (s *Store) Serve(ctx context.Context) error {
	if s.inMemory {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.runGC(); err != nil {
				logging.Warn().Err(err).Msg("Dedup value log GC failed")
			}
		}
	}
}

func (s *Store) runGC() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	for {
		err := s.db.RunValueLogGC(gcRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// String names the service in supervisor logs.
func (s *Store) String() string {
	return "dedup-gc"
}

// Close releases the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
