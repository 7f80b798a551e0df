// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

// Command server runs the product recommendation service.
//
// It keeps a DuckDB replica of the product catalog and user interactions up
// to date from two event topics, trains an ALS ranking model over the
// interactions, and answers GetRecommendations and
// GetRecommendationsBasedOnViewed over HTTP/JSON.
//
// # Startup
//
//  1. Load configuration (defaults, optional YAML file, environment)
//  2. Open the DuckDB replica
//  3. Build the engine; the trainer service trains once at startup
//  4. Start the bus: Kafka consumer groups, or NATS JetStream durables
//     (optionally against an embedded server), plus the optional dedup store
//  5. Serve HTTP under the supervisor tree until SIGINT or SIGTERM
//
// A failed startup training is logged and the first recommendation request
// trains instead. Bus outages never stop the process: each consumer
// reconnects with a fixed backoff.
//
// # Example
//
//	export KAFKA_BROKERS=kafka:9092
//	export PRODUCT_API=http://product:8080/products
//	export DUCKDB_PATH=/data/replica.duckdb
//	./recommender
//
// Single node with an embedded JetStream server:
//
//	export BUS_DRIVER=nats NATS_EMBEDDED=true NATS_STORE_DIR=/data/nats
//	./recommender
package main
