// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/recommender/internal/bus"
	"github.com/tomtom215/recommender/internal/catalog"
	"github.com/tomtom215/recommender/internal/config"
	"github.com/tomtom215/recommender/internal/models"
	"github.com/tomtom215/recommender/internal/replica"
)

var testDBSemaphore = make(chan struct{}, 2)

func setupStore(t *testing.T) *replica.Store {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	s, err := replica.Open(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", Threads: 2})
	if err != nil {
		t.Fatalf("replica.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func envelope(t *testing.T, eventType, data string) *models.EventEnvelope {
	t.Helper()
	env, err := models.DecodeEnvelope([]byte(fmt.Sprintf(`{"type":%q,"data":%s}`, eventType, data)))
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	return env
}

// stubFetcher returns a fixed product or error and counts calls.
type stubFetcher struct {
	mu      sync.Mutex
	product *models.ProductPayload
	err     error
	calls   int
}

func (f *stubFetcher) FetchProduct(_ context.Context, id string) (*models.ProductPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p := *f.product
	return &p, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestProductHandler_RedeliveredCreateIsIdempotent(t *testing.T) {
	store := setupStore(t)
	h := NewProductHandler(store)
	ctx := context.Background()

	created := envelope(t, models.EventProductCreated, `{"product_id":"p1","name":"Lamp","description":"Desk lamp","price":19.5,"accountID":7}`)
	for i := 0; i < 3; i++ {
		if err := h.Apply(ctx, created); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}
	updated := envelope(t, models.EventProductUpdated, `{"product_id":"p1","name":"Lamp v2","description":"LED","price":"21.00","account_id":9}`)
	if err := h.Apply(ctx, updated); err != nil {
		t.Fatalf("Apply(update) error = %v", err)
	}

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Products != 1 {
		t.Fatalf("Products = %d, want 1", st.Products)
	}
	p, err := store.GetProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if p.Name != "Lamp v2" || p.Description != "LED" || p.Price != 21 || p.AccountID != 9 {
		t.Errorf("product = %+v, want latest values", p)
	}
}

func TestProductHandler_Delete(t *testing.T) {
	store := setupStore(t)
	h := NewProductHandler(store)
	ctx := context.Background()

	if err := h.Apply(ctx, envelope(t, models.EventProductDeleted, `{"product_id":"ghost"}`)); err != nil {
		t.Errorf("deleting unknown id should be a no-op, got %v", err)
	}

	if err := h.Apply(ctx, envelope(t, models.EventProductCreated, `{"product_id":"p1","name":"a","price":1}`)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := h.Apply(ctx, envelope(t, models.EventProductDeleted, `{"product_id":"p1"}`)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := store.ProductExists(ctx, "p1"); ok {
		t.Error("p1 should be gone")
	}
}

func TestProductHandler_Errors(t *testing.T) {
	store := setupStore(t)
	h := NewProductHandler(store)
	ctx := context.Background()

	tests := []struct {
		name          string
		env           *models.EventEnvelope
		wantPermanent bool
	}{
		{"unknown type is skipped", envelope(t, "product_archived", `{"product_id":"p1"}`), false},
		{"missing id", envelope(t, models.EventProductCreated, `{"name":"x"}`), true},
		{"bad price", envelope(t, models.EventProductCreated, `{"product_id":"p1","price":"cheap"}`), true},
		{"data not an object", envelope(t, models.EventProductUpdated, `[1,2]`), true},
		{"delete without id", envelope(t, models.EventProductDeleted, `{}`), true},
		{"blank id", envelope(t, models.EventProductCreated, `{"product_id":"  ","name":"x"}`), true},
		{"id too long", envelope(t, models.EventProductCreated, `{"product_id":"`+strings.Repeat("p", models.MaxIDLength+1)+`"}`), true},
		{"slash in id is opaque", envelope(t, models.EventProductCreated, `{"product_id":"sku/1","name":"x"}`), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Apply(ctx, tt.env)
			if tt.wantPermanent {
				if !IsPermanent(err) || !errors.Is(err, ErrMalformedEvent) {
					t.Errorf("Apply() error = %v, want permanent malformed error", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Apply() error = %v, want nil", err)
			}
		})
	}
}

func TestInteractionHandler_FailedBackfillStillRecordsInteraction(t *testing.T) {
	store := setupStore(t)
	fetcher := &stubFetcher{err: catalog.ErrUnavailable}
	h := NewInteractionHandler(store, fetcher)
	ctx := context.Background()

	if err := h.Apply(ctx, envelope(t, "view", `{"user_id":"u1","product_id":"p9"}`)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Interactions != 1 || st.Products != 0 {
		t.Errorf("Stats() = %+v, want 1 interaction and 0 products", st)
	}
	if fetcher.callCount() != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.callCount())
	}
}

func TestInteractionHandler_BackfillsFromCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/p9" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"p9","name":"Kettle","description":"Steel","price":30,"accountId":4,"category":"kitchen"}`))
	}))
	defer srv.Close()

	store := setupStore(t)
	client := catalog.NewClient(&config.CatalogConfig{
		BaseURL:             srv.URL + "/products",
		Timeout:             5 * time.Second,
		BreakerMaxRequests:  1,
		BreakerInterval:     time.Minute,
		BreakerTimeout:      time.Minute,
		BreakerMinRequests:  3,
		BreakerFailureRatio: 0.5,
	})
	h := NewInteractionHandler(store, client)
	ctx := context.Background()

	if err := h.Apply(ctx, envelope(t, "purchase", `{"user_id":"u1","product_id":"p9"}`)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	p, err := store.GetProduct(ctx, "p9")
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if p.Name != "Kettle" || p.AccountID != 4 || p.Category != "kitchen" {
		t.Errorf("backfilled product = %+v", p)
	}

	// Known product: no second fetch, interaction appended with the event type.
	if err := h.Apply(ctx, envelope(t, "view", `{"user_id":"u2","product_id":"p9"}`)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	history, err := store.Interactions(ctx)
	if err != nil {
		t.Fatalf("Interactions() error = %v", err)
	}
	if len(history) != 2 || history[0].Type != "purchase" || history[1].Type != "view" {
		t.Errorf("history = %+v", history)
	}
}

func TestInteractionHandler_KnownProductSkipsFetch(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	if err := store.UpsertProduct(ctx, &replica.Product{ID: "p1", Name: "x"}); err != nil {
		t.Fatal(err)
	}
	fetcher := &stubFetcher{err: errors.New("must not be called")}
	h := NewInteractionHandler(store, fetcher)

	if err := h.Apply(ctx, envelope(t, "view", `{"user_id":"u1","product_id":"p1"}`)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if fetcher.callCount() != 0 {
		t.Errorf("fetch calls = %d, want 0", fetcher.callCount())
	}

	err := h.Apply(ctx, envelope(t, "view", `{"user_id":"u1"}`))
	if !IsPermanent(err) {
		t.Errorf("missing product_id should be permanent, got %v", err)
	}
}

func TestConcurrentFloods_NoLostUpdates(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	products := NewProcessor("product_events", NewProductHandler(store), nil)
	interactions := NewProcessor("interaction_events", NewInteractionHandler(store, &stubFetcher{err: catalog.ErrNotFound}), nil)

	const nProducts = 25
	const nInteractions = 150

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for round := 0; round < 2; round++ {
			for i := 0; i < nProducts; i++ {
				body := fmt.Sprintf(`{"type":"product_created","data":{"product_id":"p%02d","name":"r%d","price":%d}}`, i, round, round)
				_ = products.Handle(ctx, bus.Message{Value: []byte(body)})
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < nInteractions; i++ {
			body := fmt.Sprintf(`{"type":"view","data":{"user_id":"u%d","product_id":"p%02d"}}`, i%5, i%nProducts)
			_ = interactions.Handle(ctx, bus.Message{Value: []byte(body)})
		}
	}()
	wg.Wait()

	if c := products.Counters(); c.Processed != 2*nProducts || c.Failed != 0 {
		t.Errorf("product counters = %+v", c)
	}
	if c := interactions.Counters(); c.Processed != nInteractions || c.Failed != 0 {
		t.Errorf("interaction counters = %+v", c)
	}

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.Products != nProducts || st.Interactions != nInteractions {
		t.Errorf("Stats() = %+v, want %d products, %d interactions", st, nProducts, nInteractions)
	}
}
