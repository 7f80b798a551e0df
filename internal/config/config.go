// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

// Package config loads recommender configuration with Koanf v2.
//
// Sources are layered, highest priority last:
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, or config.yaml in the working directory)
//  3. Environment variables (explicit mapping table in koanf.go)
//
// Example environment:
//
//	KAFKA_BROKERS=kafka-1:9092,kafka-2:9092
//	PRODUCT_API=http://catalog:8080/products
//	DUCKDB_PATH=/data/replica.duckdb
//	HTTP_PORT=50051
package config

import "time"

// Bus drivers.
const (
	BusDriverKafka = "kafka"
	BusDriverNATS  = "nats"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Bus        BusConfig        `koanf:"bus"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Catalog    CatalogConfig    `koanf:"catalog"`
	Dedup      DedupConfig      `koanf:"dedup"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings for the recommendation RPC surface.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// MaxConcurrent bounds in-flight requests (the serving worker pool).
	MaxConcurrent  int           `koanf:"max_concurrent"`
	MaxBacklog     int           `koanf:"max_backlog"`
	BacklogTimeout time.Duration `koanf:"backlog_timeout"`

	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// CORSOrigins lists allowed browser origins; empty allows any.
	CORSOrigins []string `koanf:"cors_origins"`
}

// DatabaseConfig holds replica store settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"` // ":memory:" for an ephemeral replica
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// BusConfig selects and configures the message transport.
type BusConfig struct {
	Driver           string        `koanf:"driver"`
	ProductTopic     string        `koanf:"product_topic"`
	InteractionTopic string        `koanf:"interaction_topic"`
	ReconnectBackoff time.Duration `koanf:"reconnect_backoff"`
	Kafka            KafkaConfig   `koanf:"kafka"`
	NATS             NATSConfig    `koanf:"nats"`
}

// KafkaConfig configures sarama consumer groups.
type KafkaConfig struct {
	Brokers          []string `koanf:"brokers"`
	ClientID         string   `koanf:"client_id"`
	Version          string   `koanf:"version"`
	ProductGroup     string   `koanf:"product_group"`
	InteractionGroup string   `koanf:"interaction_group"`
	InitialOffset    string   `koanf:"initial_offset"` // oldest | newest
}

// NATSConfig configures the JetStream transport.
type NATSConfig struct {
	URL                string        `koanf:"url"`
	Embedded           bool          `koanf:"embedded"`
	StoreDir           string        `koanf:"store_dir"`
	MaxMemory          int64         `koanf:"max_memory"`
	MaxStore           int64         `koanf:"max_store"`
	ProductDurable     string        `koanf:"product_durable"`
	InteractionDurable string        `koanf:"interaction_durable"`
	AckWait            time.Duration `koanf:"ack_wait"`
	MaxDeliver         int           `koanf:"max_deliver"`
	CloseTimeout       time.Duration `koanf:"close_timeout"`
}

// IngestConfig tunes the event consumers.
type IngestConfig struct {
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
}

// CatalogConfig configures the product catalog backfill client.
type CatalogConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit is requests per second (0 disables limiting).
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`

	BreakerMaxRequests  uint32        `koanf:"breaker_max_requests"`
	BreakerInterval     time.Duration `koanf:"breaker_interval"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`

	// NotFoundTTL is how long a 404 for a product id is remembered; zero
	// disables the negative cache.
	NotFoundTTL       time.Duration `koanf:"not_found_ttl"`
	NotFoundCacheSize int           `koanf:"not_found_cache_size"`
}

// DedupConfig enables redelivery suppression by transport message id.
type DedupConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Path     string        `koanf:"path"`
	InMemory bool          `koanf:"in_memory"`
	TTL      time.Duration `koanf:"ttl"`
}

// RecommendConfig holds ranking model and training settings.
type RecommendConfig struct {
	TrainOnStartup bool          `koanf:"train_on_startup"`
	TrainInterval  time.Duration `koanf:"train_interval"` // 0 disables periodic retraining
	TrainTimeout   time.Duration `koanf:"train_timeout"`
	ALS            ALSConfig     `koanf:"als"`

	// CheckpointDir holds saved models for warm restarts; empty disables.
	CheckpointDir  string `koanf:"checkpoint_dir"`
	CheckpointKeep int    `koanf:"checkpoint_keep"`
}

// ALSConfig holds matrix factorization hyperparameters.
type ALSConfig struct {
	Factors            int     `koanf:"factors"`
	Iterations         int     `koanf:"iterations"`
	Regularization     float64 `koanf:"regularization"`
	BiasRegularization float64 `koanf:"bias_regularization"`
	NumWorkers         int     `koanf:"num_workers"` // 0 = runtime.NumCPU()
}

// SupervisorConfig mirrors supervisor.TreeConfig.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
