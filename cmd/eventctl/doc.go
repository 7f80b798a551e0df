// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

// Command eventctl publishes product and interaction events to the bus the
// recommender consumes, using the same configuration (BUS_DRIVER,
// KAFKA_BROKERS, NATS_URL, topic names).
//
// Examples:
//
//	eventctl product created --id p1 --name Lamp --price 19.99 --account 7
//	eventctl product deleted --id p1
//	eventctl interaction purchase --user u1 --product p1
//	eventctl seed --products 50 --users 20 --interactions 1000
//
// Product events are keyed by product id and interactions by user id.
package main
