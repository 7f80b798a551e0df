// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recommender/internal/bus"
)

// scriptedConsumer delivers its messages then returns runErr, or blocks
// until ctx is done when block is set.
type scriptedConsumer struct {
	messages []bus.Message
	runErr   error
	block    bool
	closed   atomic.Bool
}

func (c *scriptedConsumer) Run(ctx context.Context, h bus.Handler) error {
	for _, m := range c.messages {
		if err := h.Handle(ctx, m); err != nil {
			return err
		}
	}
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return c.runErr
}

func (c *scriptedConsumer) Close() error {
	c.closed.Store(true)
	return nil
}

type scriptedDialer struct {
	mu        sync.Mutex
	steps     []func() (bus.Consumer, error)
	dials     int
	consumers []*scriptedConsumer
}

func (d *scriptedDialer) dial(context.Context) (bus.Consumer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	step := d.steps[len(d.steps)-1]
	if d.dials < len(d.steps) {
		step = d.steps[d.dials]
	}
	d.dials++
	c, err := step()
	if sc, ok := c.(*scriptedConsumer); ok {
		d.consumers = append(d.consumers, sc)
	}
	return c, err
}

func (d *scriptedDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func TestConsumerService_ReconnectsAfterTransportFailures(t *testing.T) {
	msg := bus.Message{ID: "m", Value: []byte(`{"type":"view","data":{}}`)}
	dialer := &scriptedDialer{steps: []func() (bus.Consumer, error){
		func() (bus.Consumer, error) { return nil, errors.New("connection refused") },
		func() (bus.Consumer, error) {
			return &scriptedConsumer{messages: []bus.Message{msg}, runErr: errors.New("group rebalanced away")}, nil
		},
		func() (bus.Consumer, error) { return &scriptedConsumer{messages: []bus.Message{msg}, block: true}, nil },
	}}

	applier := &recordingApplier{}
	svc := NewConsumerService("interaction-consumer", dialer.dial,
		NewProcessor("interaction_events", applier, nil),
		ConsumerConfig{Topic: "interaction_events", ReconnectBackoff: 10 * time.Millisecond, HeartbeatInterval: 5 * time.Millisecond},
		zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !svc.Connected() || dialer.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("consumer did not reconnect, dials = %d", dialer.count())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	if got := svc.Counters().Processed; got != 2 {
		t.Errorf("Processed = %d, want 2", got)
	}
	dialer.mu.Lock()
	defer dialer.mu.Unlock()
	for i, c := range dialer.consumers {
		if !c.closed.Load() {
			t.Errorf("consumer %d not closed", i)
		}
	}
	if svc.Connected() {
		t.Error("Connected() should be false after shutdown")
	}
}

func TestConsumerService_StopsDuringBackoff(t *testing.T) {
	dialer := &scriptedDialer{steps: []func() (bus.Consumer, error){
		func() (bus.Consumer, error) { return nil, errors.New("no brokers") },
	}}
	svc := NewConsumerService("product-consumer", dialer.dial,
		NewProcessor("product_events", &recordingApplier{}, nil),
		ConsumerConfig{Topic: "product_events", ReconnectBackoff: time.Hour},
		zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Serve() should not wait out the backoff after cancel")
	}
	if dialer.count() != 1 {
		t.Errorf("dials = %d, want 1", dialer.count())
	}
}

func TestConsumerService_String(t *testing.T) {
	svc := NewConsumerService("product-consumer", nil, NewProcessor("product_events", &recordingApplier{}, nil), ConsumerConfig{}, zerolog.Nop())
	if svc.String() != "product-consumer" {
		t.Errorf("String() = %q", svc.String())
	}
	if svc.cfg.ReconnectBackoff != 5*time.Second || svc.cfg.HeartbeatInterval != time.Minute {
		t.Errorf("defaults = %+v", svc.cfg)
	}
}
