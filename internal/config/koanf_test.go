// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Bus.ProductTopic != "product_events" {
		t.Errorf("Bus.ProductTopic = %q, want product_events", cfg.Bus.ProductTopic)
	}
	if cfg.Bus.InteractionTopic != "interaction_events" {
		t.Errorf("Bus.InteractionTopic = %q, want interaction_events", cfg.Bus.InteractionTopic)
	}
	if cfg.Bus.Kafka.ProductGroup != "recommender-product-group" {
		t.Errorf("Kafka.ProductGroup = %q", cfg.Bus.Kafka.ProductGroup)
	}
	if cfg.Bus.Kafka.InteractionGroup != "recommender-interaction-group" {
		t.Errorf("Kafka.InteractionGroup = %q", cfg.Bus.Kafka.InteractionGroup)
	}
	if cfg.Bus.ReconnectBackoff != 5*time.Second {
		t.Errorf("Bus.ReconnectBackoff = %v, want 5s", cfg.Bus.ReconnectBackoff)
	}
	if cfg.Catalog.Timeout != 5*time.Second {
		t.Errorf("Catalog.Timeout = %v, want 5s", cfg.Catalog.Timeout)
	}
	if cfg.Server.MaxConcurrent != 10 {
		t.Errorf("Server.MaxConcurrent = %d, want 10", cfg.Server.MaxConcurrent)
	}
	if cfg.Dedup.Enabled {
		t.Error("Dedup.Enabled should be false by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"KAFKA_BROKERS", "bus.kafka.brokers"},
		{"KAFKA_SERVER", "bus.kafka.brokers"},
		{"PRODUCT_API", "catalog.base_url"},
		{"HTTP_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},
		{"DEDUP_ENABLED", "dedup.enabled"},
		{"HOME", ""},
		{"PATH", ""},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("PRODUCT_API", "http://catalog.internal:9000/api/products")
	t.Setenv("HTTP_PORT", "8088")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BUS_RECONNECT_BACKOFF", "2s")
	t.Setenv("RECOMMEND_ALS_FACTORS", "16")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if want := []string{"k1:9092", "k2:9092"}; !reflect.DeepEqual(cfg.Bus.Kafka.Brokers, want) {
		t.Errorf("Kafka.Brokers = %v, want %v", cfg.Bus.Kafka.Brokers, want)
	}
	if cfg.Catalog.BaseURL != "http://catalog.internal:9000/api/products" {
		t.Errorf("Catalog.BaseURL = %q", cfg.Catalog.BaseURL)
	}
	if cfg.Server.Port != 8088 {
		t.Errorf("Server.Port = %d, want 8088", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Bus.ReconnectBackoff != 2*time.Second {
		t.Errorf("Bus.ReconnectBackoff = %v, want 2s", cfg.Bus.ReconnectBackoff)
	}
	if cfg.Recommend.ALS.Factors != 16 {
		t.Errorf("ALS.Factors = %d, want 16", cfg.Recommend.ALS.Factors)
	}
	// Unset values keep defaults.
	if cfg.Bus.Kafka.ProductGroup != "recommender-product-group" {
		t.Errorf("Kafka.ProductGroup = %q, want default", cfg.Bus.Kafka.ProductGroup)
	}
}

func TestLoadWithKoanf_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recommender.yaml")
	content := `
bus:
  driver: nats
  nats:
    url: nats://broker:4222
catalog:
  base_url: https://catalog.example.com/products
recommend:
  train_interval: 0s
logging:
  format: console
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Bus.Driver != BusDriverNATS {
		t.Errorf("Bus.Driver = %q, want nats", cfg.Bus.Driver)
	}
	if cfg.Bus.NATS.URL != "nats://broker:4222" {
		t.Errorf("NATS.URL = %q", cfg.Bus.NATS.URL)
	}
	if cfg.Recommend.TrainInterval != 0 {
		t.Errorf("TrainInterval = %v, want 0", cfg.Recommend.TrainInterval)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("env must win over file: Logging.Format = %q", cfg.Logging.Format)
	}
	if cfg.Bus.NATS.ProductDurable != "recommender-product" {
		t.Errorf("nested defaults must survive partial file: ProductDurable = %q", cfg.Bus.NATS.ProductDurable)
	}
}

func TestFindConfigFile_MissingEnvPath(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "/non/existent/config.yaml")
	if got := findConfigFile(); got != "" {
		t.Errorf("findConfigFile() = %q, want empty", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"no workers", func(c *Config) { c.Server.MaxConcurrent = 0 }, "MAX_WORKERS"},
		{"same topics", func(c *Config) { c.Bus.InteractionTopic = c.Bus.ProductTopic }, "topics must differ"},
		{"unknown driver", func(c *Config) { c.Bus.Driver = "rabbit" }, "BUS_DRIVER"},
		{"no brokers", func(c *Config) { c.Bus.Kafka.Brokers = nil }, "KAFKA_BROKERS"},
		{"shared group", func(c *Config) { c.Bus.Kafka.InteractionGroup = c.Bus.Kafka.ProductGroup }, "groups must differ"},
		{"bad kafka version", func(c *Config) { c.Bus.Kafka.Version = "banana" }, "KAFKA_VERSION"},
		{"bad offset", func(c *Config) { c.Bus.Kafka.InitialOffset = "latest" }, "KAFKA_INITIAL_OFFSET"},
		{"nats without url", func(c *Config) {
			c.Bus.Driver = BusDriverNATS
			c.Bus.NATS.URL = ""
		}, "NATS_URL"},
		{"embedded nats without url", func(c *Config) {
			c.Bus.Driver = BusDriverNATS
			c.Bus.NATS.URL = ""
			c.Bus.NATS.Embedded = true
		}, ""},
		{"relative catalog url", func(c *Config) { c.Catalog.BaseURL = "/products" }, "PRODUCT_API"},
		{"zero catalog timeout", func(c *Config) { c.Catalog.Timeout = 0 }, "CATALOG_TIMEOUT"},
		{"negative not-found ttl", func(c *Config) { c.Catalog.NotFoundTTL = -time.Second }, "CATALOG_NOT_FOUND_TTL"},
		{"not-found cache disabled", func(c *Config) { c.Catalog.NotFoundTTL = 0 }, ""},
		{"dedup without path", func(c *Config) {
			c.Dedup.Enabled = true
			c.Dedup.Path = ""
		}, "DEDUP_PATH"},
		{"dedup in memory", func(c *Config) {
			c.Dedup.Enabled = true
			c.Dedup.Path = ""
			c.Dedup.InMemory = true
		}, ""},
		{"zero factors", func(c *Config) { c.Recommend.ALS.Factors = 0 }, "ALS"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
