// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recommender/internal/bus"
	"github.com/tomtom215/recommender/internal/catalog"
	"github.com/tomtom215/recommender/internal/config"
	"github.com/tomtom215/recommender/internal/dedup"
	"github.com/tomtom215/recommender/internal/ingest"
	"github.com/tomtom215/recommender/internal/logging"
	"github.com/tomtom215/recommender/internal/replica"
	"github.com/tomtom215/recommender/internal/supervisor"
)

// BusComponents owns the resources that outlive the supervisor tree and
// must be released after it stops.
type BusComponents struct {
	embedded *bus.EmbeddedServer
	dedup    *dedup.Store
	catalog  *catalog.Client
}

// initBus wires the product and interaction consumers for the configured
// driver and adds them, plus the dedup GC loop, to the tree.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func initBus(cfg *config.Config, store *replica.Store, logger zerolog.Logger, tree *supervisor.SupervisorTree) (*BusComponents, error) {
	c := &BusComponents{}

	productDial, interactionDial, err := c.dialers(cfg)
	if err != nil {
		c.Shutdown()
		return nil, err
	}

	var deduper ingest.Deduper
	if cfg.Dedup.Enabled {
		c.dedup, err = dedup.Open(&cfg.Dedup)
		if err != nil {
			c.Shutdown()
			return nil, fmt.Errorf("open dedup store: %w", err)
		}
		deduper = c.dedup
		tree.AddDataService(c.dedup)
	}

	c.catalog = catalog.NewClient(&cfg.Catalog)

	consumerCfg := func(topic string) ingest.ConsumerConfig {
		return ingest.ConsumerConfig{
			Topic:             topic,
			ReconnectBackoff:  cfg.Bus.ReconnectBackoff,
			HeartbeatInterval: cfg.Ingest.HeartbeatInterval,
		}
	}

	productProc := ingest.NewProcessor(cfg.Bus.ProductTopic, ingest.NewProductHandler(store), deduper)
	tree.AddIngestService(ingest.NewConsumerService(
		"product-consumer", productDial, productProc, consumerCfg(cfg.Bus.ProductTopic), logger))

	interactionProc := ingest.NewProcessor(cfg.Bus.InteractionTopic, ingest.NewInteractionHandler(store, c.catalog), deduper)
	tree.AddIngestService(ingest.NewConsumerService(
		"interaction-consumer", interactionDial, interactionProc, consumerCfg(cfg.Bus.InteractionTopic), logger))

	logging.Info().
		Str("driver", cfg.Bus.Driver).
		Str("product_topic", cfg.Bus.ProductTopic).
		Str("interaction_topic", cfg.Bus.InteractionTopic).
		Bool("dedup", cfg.Dedup.Enabled).
		Msg("Event consumers configured")

	return c, nil
}

func (c *BusComponents) dialers(cfg *config.Config) (product, interaction bus.Dialer, err error) {
	b := &cfg.Bus
	switch b.Driver {
	case config.BusDriverKafka:
		return bus.NewKafkaDialer(&b.Kafka, b.Kafka.ProductGroup, b.ProductTopic),
			bus.NewKafkaDialer(&b.Kafka, b.Kafka.InteractionGroup, b.InteractionTopic),
			nil

	case config.BusDriverNATS:
		url := b.NATS.URL
		if b.NATS.Embedded {
			c.embedded, err = bus.NewEmbeddedServer(&b.NATS)
			if err != nil {
				return nil, nil, fmt.Errorf("start embedded NATS: %w", err)
			}
			url = c.embedded.ClientURL()
		}
		return bus.NewNATSDialer(&b.NATS, url, b.NATS.ProductDurable, b.ProductTopic),
			bus.NewNATSDialer(&b.NATS, url, b.NATS.InteractionDurable, b.InteractionTopic),
			nil

	default:
		return nil, nil, fmt.Errorf("unknown bus driver %q", b.Driver)
	}
}

// Shutdown releases the dedup store and the embedded broker. Call it only
// after the consumers have stopped.
func (c *BusComponents) Shutdown() {
	if c.dedup != nil {
		if err := c.dedup.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing dedup store")
		}
	}
	if c.embedded != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.embedded.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error stopping embedded NATS server")
		}
	}
}
