// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

// Package testinfra runs external brokers in Docker for integration tests.
//
// Everything here is behind the integration build tag:
//
//	go test -tags integration ./internal/testinfra/...
//
// Tests skip when Docker is unavailable or -short is set. The first run
// pulls images; later runs use the local cache.
//
// # NATS
//
// NewNATSContainer starts a JetStream-enabled server. The end-to-end test
// publishes events with bus.NATSPublisher and checks that the ingest
// consumers apply them to a DuckDB replica:
//
//	nc, err := testinfra.NewNATSContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	testinfra.CleanupContainer(t, nc.Container)
//	pub, _ := bus.NewNATSPublisher(nc.URL)
package testinfra
