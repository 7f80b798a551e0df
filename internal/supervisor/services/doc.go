// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

/*
Package services adapts recommender components to suture.Service.

  - HTTPServerService binds the listener, serves the RPC router and drains
    it on shutdown.
  - TrainerService trains the ranking model at startup and on a fixed
    interval.

The event consumers (ingest.ConsumerService) and the dedup store's GC loop
(dedup.Store) implement suture.Service themselves and are added to the tree
directly.
*/
package services
