// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

// Package cache provides a bounded, TTL-expiring LRU map.
//
// The catalog client uses it to remember product ids the catalog answered
// 404 for, so replaying a burst of interactions for a deleted product costs
// one catalog request instead of one per event.
package cache
