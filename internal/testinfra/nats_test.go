// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

//go:build integration

package testinfra

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/recommender/internal/bus"
	"github.com/tomtom215/recommender/internal/config"
	"github.com/tomtom215/recommender/internal/ingest"
	"github.com/tomtom215/recommender/internal/replica"
)

func event(topic, key, body string) bus.Message {
	return bus.Message{Topic: topic, Key: []byte(key), Value: []byte(body)}
}

// TestNATSContainer_IngestEndToEnd publishes catalog and interaction events
// to a real JetStream server and waits for both consumers to apply them.
func TestNATSContainer_IngestEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	nc, err := NewNATSContainer(ctx)
	if err != nil {
		t.Fatalf("Failed to create NATS container: %v", err)
	}
	CleanupContainer(t, nc.Container)
	t.Logf("NATS container started at: %s", nc.URL)

	store, err := replica.Open(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 2})
	if err != nil {
		t.Fatalf("replica.Open() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	const productTopic, interactionTopic = "product_events", "interaction_events"

	pub, err := bus.NewNATSPublisher(nc.URL)
	if err != nil {
		t.Fatalf("NewNATSPublisher() error = %v", err)
	}
	defer pub.Close()

	events := []bus.Message{
		event(productTopic, "p1", `{"type":"product_created","data":{"product_id":"p1","name":"Lamp","price":19.5,"accountID":7}}`),
		event(productTopic, "p2", `{"type":"product_created","data":{"product_id":"p2","name":"Desk","price":"120"}}`),
		event(productTopic, "p2", `{"type":"product_updated","data":{"product_id":"p2","name":"Standing desk","price":150}}`),
		event(productTopic, "p3", `{"type":"product_created","data":{"product_id":"p3","name":"Chair"}}`),
		event(productTopic, "p3", `{"type":"product_deleted","data":{"product_id":"p3"}}`),
		event(productTopic, "bad", `not json`),
		event(interactionTopic, "u1", `{"type":"view","data":{"user_id":"u1","product_id":"p1"}}`),
		event(interactionTopic, "u1", `{"type":"purchase","data":{"user_id":"u1","product_id":"p2"}}`),
		event(interactionTopic, "u2", `{"type":"view","data":{"user_id":"u2","product_id":"p1"}}`),
	}
	for i, msg := range events {
		if err := pub.Publish(ctx, msg); err != nil {
			t.Fatalf("Publish(%d) error = %v", i, err)
		}
	}

	natsCfg := &config.NATSConfig{
		AckWait:      5 * time.Second,
		MaxDeliver:   5,
		CloseTimeout: 5 * time.Second,
	}
	consumerCfg := func(topic string) ingest.ConsumerConfig {
		return ingest.ConsumerConfig{Topic: topic, ReconnectBackoff: time.Second, HeartbeatInterval: time.Minute}
	}

	products := ingest.NewConsumerService("product-consumer",
		bus.NewNATSDialer(natsCfg, nc.URL, "it-products", productTopic),
		ingest.NewProcessor(productTopic, ingest.NewProductHandler(store), nil),
		consumerCfg(productTopic), zerolog.Nop())
	interactions := ingest.NewConsumerService("interaction-consumer",
		bus.NewNATSDialer(natsCfg, nc.URL, "it-interactions", interactionTopic),
		ingest.NewProcessor(interactionTopic, ingest.NewInteractionHandler(store, nil), nil),
		consumerCfg(interactionTopic), zerolog.Nop())

	sup := suture.NewSimple("ingest-it")
	sup.Add(products)
	sup.Add(interactions)
	serveCtx, stop := context.WithCancel(ctx)
	defer stop()
	errCh := sup.ServeBackground(serveCtx)

	err = WaitFor(ctx, func() bool {
		return products.Counters().Processed+products.Counters().Failed >= 6 &&
			interactions.Counters().Processed >= 3
	}, 60*time.Second)
	if err != nil {
		t.Fatalf("consumers did not drain: products=%+v interactions=%+v\n%s",
			products.Counters(), interactions.Counters(), ContainerLogs(ctx, nc.Container))
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Products != 2 || stats.Interactions != 3 {
		t.Errorf("Stats() = %+v, want 2 products and 3 interactions", stats)
	}

	desk, err := store.GetProduct(ctx, "p2")
	if err != nil {
		t.Fatalf("GetProduct(p2) error = %v", err)
	}
	if desk == nil || desk.Name != "Standing desk" || desk.Price != 150 {
		t.Errorf("p2 = %+v, want the updated record", desk)
	}

	stop()
	select {
	case <-errCh:
	case <-time.After(30 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
