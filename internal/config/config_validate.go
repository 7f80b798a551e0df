// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/IBM/sarama"
)

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateBus(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateDedup(); err != nil {
		return err
	}
	if err := c.validateRecommend(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxConcurrent < 1 {
		return fmt.Errorf("MAX_WORKERS must be at least 1, got %d", c.Server.MaxConcurrent)
	}
	if c.Server.MaxBacklog < 0 {
		return fmt.Errorf("MAX_BACKLOG must not be negative, got %d", c.Server.MaxBacklog)
	}
	if !c.Server.RateLimitDisabled && (c.Server.RateLimitRequests < 1 || c.Server.RateLimitWindow <= 0) {
		return fmt.Errorf("rate limiting requires RATE_LIMIT_REQUESTS >= 1 and a positive RATE_LIMIT_WINDOW")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("DUCKDB_PATH is required (use :memory: for an ephemeral replica)")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative, got %d", c.Database.Threads)
	}
	return nil
}

func (c *Config) validateBus() error {
	if c.Bus.ProductTopic == "" || c.Bus.InteractionTopic == "" {
		return fmt.Errorf("PRODUCT_TOPIC and INTERACTION_TOPIC are required")
	}
	if c.Bus.ProductTopic == c.Bus.InteractionTopic {
		return fmt.Errorf("product and interaction topics must differ, both are %q", c.Bus.ProductTopic)
	}
	if c.Bus.ReconnectBackoff <= 0 {
		return fmt.Errorf("BUS_RECONNECT_BACKOFF must be positive")
	}

	switch c.Bus.Driver {
	case BusDriverKafka:
		return c.validateKafka()
	case BusDriverNATS:
		return c.validateNATS()
	default:
		return fmt.Errorf("BUS_DRIVER must be %q or %q, got %q", BusDriverKafka, BusDriverNATS, c.Bus.Driver)
	}
}

func (c *Config) validateKafka() error {
	k := c.Bus.Kafka
	if len(k.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when BUS_DRIVER=kafka")
	}
	if k.ProductGroup == "" || k.InteractionGroup == "" {
		return fmt.Errorf("kafka consumer group ids are required")
	}
	if k.ProductGroup == k.InteractionGroup {
		return fmt.Errorf("product and interaction consumer groups must differ, both are %q", k.ProductGroup)
	}
	if _, err := sarama.ParseKafkaVersion(k.Version); err != nil {
		return fmt.Errorf("KAFKA_VERSION %q is invalid: %w", k.Version, err)
	}
	switch k.InitialOffset {
	case "oldest", "newest":
	default:
		return fmt.Errorf("KAFKA_INITIAL_OFFSET must be oldest or newest, got %q", k.InitialOffset)
	}
	return nil
}

func (c *Config) validateNATS() error {
	n := c.Bus.NATS
	if !n.Embedded && n.URL == "" {
		return fmt.Errorf("NATS_URL is required when BUS_DRIVER=nats and NATS_EMBEDDED=false")
	}
	if n.Embedded && n.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required for the embedded server")
	}
	if n.ProductDurable == "" || n.InteractionDurable == "" || n.ProductDurable == n.InteractionDurable {
		return fmt.Errorf("NATS durable names must be set and distinct")
	}
	if n.MaxDeliver < 1 {
		return fmt.Errorf("NATS_MAX_DELIVER must be at least 1, got %d", n.MaxDeliver)
	}
	return nil
}

func (c *Config) validateCatalog() error {
	u, err := url.Parse(c.Catalog.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("PRODUCT_API must be an absolute http(s) URL, got %q", c.Catalog.BaseURL)
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("CATALOG_TIMEOUT must be positive")
	}
	if c.Catalog.RateLimit < 0 {
		return fmt.Errorf("CATALOG_RATE_LIMIT must not be negative")
	}
	if c.Catalog.BreakerFailureRatio <= 0 || c.Catalog.BreakerFailureRatio > 1 {
		return fmt.Errorf("catalog breaker failure ratio must be in (0, 1], got %v", c.Catalog.BreakerFailureRatio)
	}
	if c.Catalog.NotFoundTTL < 0 {
		return fmt.Errorf("CATALOG_NOT_FOUND_TTL must not be negative")
	}
	return nil
}

func (c *Config) validateDedup() error {
	if !c.Dedup.Enabled {
		return nil
	}
	if !c.Dedup.InMemory && c.Dedup.Path == "" {
		return fmt.Errorf("DEDUP_PATH is required when DEDUP_ENABLED=true")
	}
	if c.Dedup.TTL <= 0 {
		return fmt.Errorf("DEDUP_TTL must be positive")
	}
	return nil
}

func (c *Config) validateRecommend() error {
	r := c.Recommend
	if r.TrainInterval < 0 {
		return fmt.Errorf("RECOMMEND_TRAIN_INTERVAL must not be negative")
	}
	if r.TrainTimeout <= 0 {
		return fmt.Errorf("RECOMMEND_TRAIN_TIMEOUT must be positive")
	}
	if r.ALS.Factors < 1 || r.ALS.Iterations < 1 {
		return fmt.Errorf("ALS factors and iterations must be at least 1")
	}
	if r.ALS.Regularization < 0 || r.ALS.BiasRegularization < 0 {
		return fmt.Errorf("ALS regularization must not be negative")
	}
	if r.CheckpointDir != "" && r.CheckpointKeep < 1 {
		return fmt.Errorf("RECOMMEND_CHECKPOINT_KEEP must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is invalid", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
