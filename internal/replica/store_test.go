// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package replica

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/tomtom215/recommender/internal/config"
)

// testDBSemaphore limits concurrent DuckDB instances across parallel tests.
var testDBSemaphore = make(chan struct{}, 2)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	s, err := Open(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", Threads: 2})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func TestOpen_CreatesFileAndIsReopenable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "replica.duckdb")
	cfg := &config.DatabaseConfig{Path: path, MaxMemory: "256MB"}

	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ctx := context.Background()
	if err := s.UpsertProduct(ctx, &Product{ID: "p1", Name: "Lamp"}); err != nil {
		t.Fatalf("UpsertProduct() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s2.Close()

	p, err := s2.GetProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProduct() after reopen error = %v", err)
	}
	if p.Name != "Lamp" {
		t.Errorf("Name = %q, want Lamp", p.Name)
	}
}

func TestUpsertProduct_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := &Product{ID: "p1", Name: "Chair", Description: "oak", Price: 10, AccountID: 7, Category: "furniture"}
	second := &Product{ID: "p1", Name: "Chair v2", Description: "walnut", Price: 12.5, AccountID: 8}

	for _, p := range []*Product{first, first, second} {
		if err := s.UpsertProduct(ctx, p); err != nil {
			t.Fatalf("UpsertProduct() error = %v", err)
		}
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Products != 1 {
		t.Fatalf("Products = %d, want 1", st.Products)
	}

	got, err := s.GetProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if got.Name != "Chair v2" || got.Description != "walnut" || got.Price != 12.5 || got.AccountID != 8 {
		t.Errorf("GetProduct() = %+v, want latest values", got)
	}
	if got.Category != "furniture" {
		t.Errorf("Category = %q, empty update must keep stored category", got.Category)
	}
}

func TestUpsertProduct_PriceIsDecimal(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	tests := []struct {
		id    string
		price float64
		want  float64
	}{
		{"cents", 199.99, 199.99},
		{"float noise", 0.1 + 0.2, 0.3},
		{"sub-cent rounds", 19.999, 20},
		{"whole", 150, 150},
	}
	for _, tt := range tests {
		if err := s.UpsertProduct(ctx, &Product{ID: tt.id, Price: tt.price}); err != nil {
			t.Fatalf("UpsertProduct(%s) error = %v", tt.id, err)
		}
		got, err := s.GetProduct(ctx, tt.id)
		if err != nil {
			t.Fatalf("GetProduct(%s) error = %v", tt.id, err)
		}
		if got.Price != tt.want {
			t.Errorf("%s: Price = %v, want %v", tt.id, got.Price, tt.want)
		}
	}

	batch, err := s.ProductsByIDs(ctx, []string{"float noise"})
	if err != nil || len(batch) != 1 || batch[0].Price != 0.3 {
		t.Errorf("ProductsByIDs() = %+v, %v; want price 0.3", batch, err)
	}
}

func TestUpsertProduct_RequiresID(t *testing.T) {
	s := setupTestStore(t)
	if err := s.UpsertProduct(context.Background(), &Product{Name: "nameless"}); err == nil {
		t.Error("UpsertProduct() without id should fail")
	}
}

func TestDeleteProduct(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	deleted, err := s.DeleteProduct(ctx, "ghost")
	if err != nil {
		t.Fatalf("DeleteProduct(unknown) error = %v", err)
	}
	if deleted {
		t.Error("DeleteProduct(unknown) reported a deletion")
	}

	if err := s.UpsertProduct(ctx, &Product{ID: "p1"}); err != nil {
		t.Fatalf("UpsertProduct() error = %v", err)
	}
	deleted, err = s.DeleteProduct(ctx, "p1")
	if err != nil || !deleted {
		t.Fatalf("DeleteProduct(p1) = %v, %v; want true, nil", deleted, err)
	}
	if _, err := s.GetProduct(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProduct() after delete error = %v, want ErrNotFound", err)
	}
}

func TestInteractions_AppendOnlyHistory(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	inputs := []struct{ user, product, kind string }{
		{"u1", "p1", "view"},
		{"u1", "p2", "purchase"},
		{"u1", "p2", "purchase"},
		{"u2", "p3", "view"},
	}
	for _, in := range inputs {
		if err := s.AppendInteraction(ctx, in.user, in.product, in.kind); err != nil {
			t.Fatalf("AppendInteraction() error = %v", err)
		}
	}

	all, err := s.Interactions(ctx)
	if err != nil {
		t.Fatalf("Interactions() error = %v", err)
	}
	if len(all) != len(inputs) {
		t.Fatalf("len(Interactions()) = %d, want %d", len(all), len(inputs))
	}
	for i := range all {
		if all[i].UserID != inputs[i].user || all[i].ProductID != inputs[i].product || all[i].Type != inputs[i].kind {
			t.Errorf("Interactions()[%d] = %+v, want %+v", i, all[i], inputs[i])
		}
		if i > 0 && all[i].Seq <= all[i-1].Seq {
			t.Errorf("seq not increasing at %d: %d <= %d", i, all[i].Seq, all[i-1].Seq)
		}
	}

	ids, err := s.InteractedProductIDs(ctx, "u1")
	if err != nil {
		t.Fatalf("InteractedProductIDs() error = %v", err)
	}
	sort.Strings(ids)
	if fmt.Sprint(ids) != "[p1 p2]" {
		t.Errorf("InteractedProductIDs(u1) = %v, want [p1 p2]", ids)
	}

	among, err := s.InteractedAmong(ctx, []string{"p2", "p3", "p9"})
	if err != nil {
		t.Fatalf("InteractedAmong() error = %v", err)
	}
	sort.Strings(among)
	if fmt.Sprint(among) != "[p2 p3]" {
		t.Errorf("InteractedAmong() = %v, want [p2 p3]", among)
	}

	empty, err := s.InteractedAmong(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("InteractedAmong(nil) = %v, %v; want empty", empty, err)
	}
}

func TestProductsByIDs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"p3", "p1", "p2"} {
		if err := s.UpsertProduct(ctx, &Product{ID: id, Name: "name-" + id, Price: 1}); err != nil {
			t.Fatalf("UpsertProduct() error = %v", err)
		}
	}

	got, err := s.ProductsByIDs(ctx, []string{"p2", "missing", "p3"})
	if err != nil {
		t.Fatalf("ProductsByIDs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(ProductsByIDs()) = %d, want 2", len(got))
	}
	byID := map[string]Product{}
	for _, p := range got {
		byID[p.ID] = p
	}
	if byID["p2"].Name != "name-p2" || byID["p3"].Name != "name-p3" {
		t.Errorf("ProductsByIDs() = %+v", got)
	}

	ids, err := s.ListProductIDs(ctx)
	if err != nil {
		t.Fatalf("ListProductIDs() error = %v", err)
	}
	if fmt.Sprint(ids) != "[p1 p2 p3]" {
		t.Errorf("ListProductIDs() = %v, want sorted ids", ids)
	}

	none, err := s.ProductsByIDs(ctx, nil)
	if err != nil || len(none) != 0 {
		t.Errorf("ProductsByIDs(nil) = %v, %v; want empty", none, err)
	}
}

func TestConcurrentWriters_NoLostUpdates(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	const products = 20
	const rounds = 5
	const interactions = 200

	var wg sync.WaitGroup
	errCh := make(chan error, products*rounds+interactions)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for r := 0; r < rounds; r++ {
			for i := 0; i < products; i++ {
				p := &Product{ID: fmt.Sprintf("p%02d", i), Name: fmt.Sprintf("round-%d", r), Price: float64(r)}
				if err := s.UpsertProduct(ctx, p); err != nil {
					errCh <- err
				}
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < interactions; i++ {
			if err := s.AppendInteraction(ctx, fmt.Sprintf("u%d", i%7), fmt.Sprintf("p%02d", i%products), "view"); err != nil {
				errCh <- err
			}
		}
	}()

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent write error: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Products != products || st.Interactions != interactions {
		t.Errorf("Stats() = %+v, want %d products and %d interactions", st, products, interactions)
	}
	for i := 0; i < products; i++ {
		p, err := s.GetProduct(ctx, fmt.Sprintf("p%02d", i))
		if err != nil {
			t.Fatalf("GetProduct() error = %v", err)
		}
		if p.Name != fmt.Sprintf("round-%d", rounds-1) {
			t.Errorf("%s Name = %q, want last applied value", p.ID, p.Name)
		}
	}
}

func TestPlaceholders(t *testing.T) {
	tests := map[int]string{0: "", 1: "?", 3: "?, ?, ?"}
	for n, want := range tests {
		if got := placeholders(n); got != want {
			t.Errorf("placeholders(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestIsTransactionConflict(t *testing.T) {
	if isTransactionConflict(nil) {
		t.Error("nil is not a conflict")
	}
	if !isTransactionConflict(errors.New("TransactionContext Error: Transaction conflict: cannot update")) {
		t.Error("expected conflict to be detected")
	}
	if isTransactionConflict(errors.New("syntax error")) {
		t.Error("syntax error is not a conflict")
	}
}
