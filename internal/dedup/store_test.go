// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/recommender/internal/config"
)

func openTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	s, err := Open(&config.DedupConfig{Enabled: true, InMemory: true, TTL: ttl})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SeenAfterMark(t *testing.T) {
	s := openTestStore(t, time.Hour)
	ctx := context.Background()

	seen, err := s.Seen(ctx, "interaction_events/0/42")
	if err != nil || seen {
		t.Fatalf("Seen() before Mark = %v, %v; want false, nil", seen, err)
	}
	if err := s.Mark(ctx, "interaction_events/0/42"); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	seen, err = s.Seen(ctx, "interaction_events/0/42")
	if err != nil || !seen {
		t.Fatalf("Seen() after Mark = %v, %v; want true, nil", seen, err)
	}
	if seen, _ := s.Seen(ctx, "interaction_events/0/43"); seen {
		t.Error("a different offset must not be reported as seen")
	}
}

func TestStore_Expiry(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for badger TTL expiry")
	}
	s := openTestStore(t, time.Second)
	ctx := context.Background()

	if err := s.Mark(ctx, "m1"); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	time.Sleep(2100 * time.Millisecond)
	if seen, err := s.Seen(ctx, "m1"); err != nil || seen {
		t.Errorf("Seen() after TTL = %v, %v; want false, nil", seen, err)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.DedupConfig{Enabled: true, Path: dir, TTL: time.Hour}
	ctx := context.Background()

	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Mark(ctx, "m1"); err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s2.Close()
	if seen, err := s2.Seen(ctx, "m1"); err != nil || !seen {
		t.Errorf("Seen() after reopen = %v, %v; want true, nil", seen, err)
	}
}

func TestStore_Closed(t *testing.T) {
	s := openTestStore(t, time.Hour)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := s.Seen(context.Background(), "m1"); !errors.Is(err, ErrClosed) {
		t.Errorf("Seen() after Close error = %v, want ErrClosed", err)
	}
	if err := s.Mark(context.Background(), "m1"); !errors.Is(err, ErrClosed) {
		t.Errorf("Mark() after Close error = %v, want ErrClosed", err)
	}
}

func TestStore_ServeStopsOnCancel(t *testing.T) {
	s := openTestStore(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
	if s.String() != "dedup-gc" {
		t.Errorf("String() = %q", s.String())
	}
}
