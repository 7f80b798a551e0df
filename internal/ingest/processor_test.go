// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tomtom215/recommender/internal/bus"
	"github.com/tomtom215/recommender/internal/models"
)

type recordingApplier struct {
	mu    sync.Mutex
	types []string
	err   error
}

func (a *recordingApplier) Apply(_ context.Context, env *models.EventEnvelope) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.types = append(a.types, env.Type)
	return a.err
}

type memDeduper struct {
	mu   sync.Mutex
	ids  map[string]bool
	fail bool
}

func (d *memDeduper) Seen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return false, errors.New("dedup down")
	}
	return d.ids[id], nil
}

func (d *memDeduper) Mark(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ids == nil {
		d.ids = make(map[string]bool)
	}
	d.ids[id] = true
	return nil
}

func TestProcessor_SwallowsPerMessageErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		applyErr   error
		wantFailed int64
		wantApply  int
	}{
		{"applied", `{"type":"view","data":{}}`, nil, 0, 1},
		{"not json", `not-json`, nil, 1, 0},
		{"missing type", `{"data":{}}`, nil, 1, 0},
		{"store failure", `{"type":"view","data":{}}`, errors.New("disk full"), 1, 1},
		{"permanent", `{"type":"view","data":{}}`, malformed("bad"), 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applier := &recordingApplier{err: tt.applyErr}
			p := NewProcessor("interaction_events", applier, nil)

			if err := p.Handle(context.Background(), bus.Message{ID: "m1", Value: []byte(tt.body)}); err != nil {
				t.Fatalf("Handle() error = %v, want nil", err)
			}
			c := p.Counters()
			if c.Failed != tt.wantFailed {
				t.Errorf("Failed = %d, want %d", c.Failed, tt.wantFailed)
			}
			if c.Processed+c.Failed != 1 {
				t.Errorf("counters = %+v, want exactly one outcome", c)
			}
			if len(applier.types) != tt.wantApply {
				t.Errorf("Apply calls = %d, want %d", len(applier.types), tt.wantApply)
			}
		})
	}
}

func TestProcessor_CancelledContextIsNotCommitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewProcessor("product_events", &recordingApplier{err: context.Canceled}, nil)
	err := p.Handle(ctx, bus.Message{Value: []byte(`{"type":"product_created","data":{}}`)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Handle() error = %v, want context.Canceled", err)
	}
	if c := p.Counters(); c.Failed != 0 || c.Processed != 0 {
		t.Errorf("counters = %+v, want zero", c)
	}
}

func TestProcessor_Dedup(t *testing.T) {
	applier := &recordingApplier{}
	dedup := &memDeduper{}
	p := NewProcessor("interaction_events", applier, dedup)
	ctx := context.Background()

	msg := bus.Message{ID: "interaction_events/0/42", Value: []byte(`{"type":"view","data":{}}`)}
	for i := 0; i < 3; i++ {
		if err := p.Handle(ctx, msg); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
	}
	if len(applier.types) != 1 {
		t.Errorf("Apply calls = %d, want 1", len(applier.types))
	}
	if c := p.Counters(); c.Processed != 1 || c.Duplicates != 2 {
		t.Errorf("counters = %+v, want 1 processed, 2 duplicates", c)
	}

	// Messages without an id are never deduplicated.
	anon := bus.Message{Value: msg.Value}
	_ = p.Handle(ctx, anon)
	_ = p.Handle(ctx, anon)
	if len(applier.types) != 3 {
		t.Errorf("Apply calls = %d, want 3", len(applier.types))
	}
}

func TestProcessor_FailedMessageIsNotMarked(t *testing.T) {
	dedup := &memDeduper{}
	p := NewProcessor("interaction_events", &recordingApplier{err: errors.New("boom")}, dedup)

	_ = p.Handle(context.Background(), bus.Message{ID: "m1", Value: []byte(`{"type":"view","data":{}}`)})
	if seen, _ := dedup.Seen(context.Background(), "m1"); seen {
		t.Error("failed message must not be recorded as seen")
	}
}

func TestProcessor_DedupOutageFallsThrough(t *testing.T) {
	applier := &recordingApplier{}
	p := NewProcessor("interaction_events", applier, &memDeduper{fail: true})

	_ = p.Handle(context.Background(), bus.Message{ID: "m1", Value: []byte(`{"type":"view","data":{}}`)})
	if len(applier.types) != 1 {
		t.Errorf("Apply calls = %d, want 1", len(applier.types))
	}
}
