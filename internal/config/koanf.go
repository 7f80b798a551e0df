// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/recommender/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              50051,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxConcurrent:     10,
			MaxBacklog:        50,
			BacklogTimeout:    30 * time.Second,
			RateLimitRequests: 600,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: true,
		},
		Database: DatabaseConfig{
			Path:      "/data/replica.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Bus: BusConfig{
			Driver:           BusDriverKafka,
			ProductTopic:     "product_events",
			InteractionTopic: "interaction_events",
			ReconnectBackoff: 5 * time.Second,
			Kafka: KafkaConfig{
				Brokers:          []string{"kafka:9092"},
				ClientID:         "recommender",
				Version:          "2.8.0",
				ProductGroup:     "recommender-product-group",
				InteractionGroup: "recommender-interaction-group",
				InitialOffset:    "oldest",
			},
			NATS: NATSConfig{
				URL:                "nats://127.0.0.1:4222",
				Embedded:           false,
				StoreDir:           "/data/nats",
				MaxMemory:          256 << 20,
				MaxStore:           4 << 30,
				ProductDurable:     "recommender-product",
				InteractionDurable: "recommender-interaction",
				AckWait:            30 * time.Second,
				MaxDeliver:         5,
				CloseTimeout:       10 * time.Second,
			},
		},
		Ingest: IngestConfig{
			HeartbeatInterval: 60 * time.Second,
		},
		Catalog: CatalogConfig{
			BaseURL:             "http://product:8080/products",
			Timeout:             5 * time.Second,
			RateLimit:           50,
			Burst:               10,
			BreakerMaxRequests:  3,
			BreakerInterval:     time.Minute,
			BreakerTimeout:      30 * time.Second,
			BreakerMinRequests:  10,
			BreakerFailureRatio: 0.6,
			NotFoundTTL:         time.Minute,
			NotFoundCacheSize:   10000,
		},
		Dedup: DedupConfig{
			Enabled:  false,
			Path:     "/data/dedup",
			InMemory: false,
			TTL:      72 * time.Hour,
		},
		Recommend: RecommendConfig{
			TrainOnStartup: true,
			TrainInterval:  time.Hour,
			TrainTimeout:   30 * time.Minute,
			ALS: ALSConfig{
				Factors:            50,
				Iterations:         15,
				Regularization:     0.02,
				BiasRegularization: 5.0,
				NumWorkers:         0,
			},
			CheckpointKeep: 3,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration with precedence ENV > file > defaults,
// then validates it.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns CONFIG_PATH if it exists, else the first default path found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set via env.
var sliceConfigPaths = []string{
	"bus.kafka.brokers",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"max_workers":           "server.max_concurrent",
	"max_backlog":           "server.max_backlog",
	"rate_limit_requests":   "server.rate_limit_requests",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",
	"cors_origins":          "server.cors_origins",

	// Replica
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// Bus
	"bus_driver":              "bus.driver",
	"product_topic":           "bus.product_topic",
	"interaction_topic":       "bus.interaction_topic",
	"bus_reconnect_backoff":   "bus.reconnect_backoff",
	"kafka_server":            "bus.kafka.brokers",
	"kafka_brokers":           "bus.kafka.brokers",
	"kafka_client_id":         "bus.kafka.client_id",
	"kafka_version":           "bus.kafka.version",
	"kafka_product_group":     "bus.kafka.product_group",
	"kafka_interaction_group": "bus.kafka.interaction_group",
	"kafka_initial_offset":    "bus.kafka.initial_offset",
	"nats_url":                "bus.nats.url",
	"nats_embedded":           "bus.nats.embedded",
	"nats_store_dir":          "bus.nats.store_dir",
	"nats_max_memory":         "bus.nats.max_memory",
	"nats_max_store":          "bus.nats.max_store",
	"nats_ack_wait":           "bus.nats.ack_wait",
	"nats_max_deliver":        "bus.nats.max_deliver",

	// Ingest
	"ingest_heartbeat_interval": "ingest.heartbeat_interval",

	// Catalog
	"product_api":             "catalog.base_url",
	"catalog_base_url":        "catalog.base_url",
	"catalog_timeout":         "catalog.timeout",
	"catalog_rate_limit":      "catalog.rate_limit",
	"catalog_burst":           "catalog.burst",
	"catalog_breaker_timeout": "catalog.breaker_timeout",
	"catalog_not_found_ttl":   "catalog.not_found_ttl",

	// Dedup
	"dedup_enabled":   "dedup.enabled",
	"dedup_path":      "dedup.path",
	"dedup_in_memory": "dedup.in_memory",
	"dedup_ttl":       "dedup.ttl",

	// Recommend
	"recommend_train_on_startup":        "recommend.train_on_startup",
	"recommend_train_interval":          "recommend.train_interval",
	"recommend_train_timeout":           "recommend.train_timeout",
	"recommend_als_factors":             "recommend.als.factors",
	"recommend_als_iterations":          "recommend.als.iterations",
	"recommend_als_regularization":      "recommend.als.regularization",
	"recommend_als_bias_regularization": "recommend.als.bias_regularization",
	"recommend_als_workers":             "recommend.als.num_workers",
	"recommend_checkpoint_dir":          "recommend.checkpoint_dir",
	"recommend_checkpoint_keep":         "recommend.checkpoint_keep",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to a koanf path, e.g.
// KAFKA_BROKERS -> bus.kafka.brokers and PRODUCT_API -> catalog.base_url.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
