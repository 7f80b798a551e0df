// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

// Package recommend ranks catalog products for a user or for a set of
// recently viewed products.
//
// # Pipeline
//
//  1. Candidate selection reads the replica: every product id minus the ids
//     the context has interacted with.
//  2. Each candidate is scored by the current model snapshot.
//  3. Candidates are stably sorted by descending score, so ties keep the
//     replica's id order, then paginated with skip/take.
//
// # Snapshots
//
// The Engine trains an algorithms.Model from the full interaction history
// and publishes the result as an immutable Snapshot behind an atomic
// pointer. Requests load the pointer once and never block on training. A
// failed run keeps the previous snapshot. Only one run happens at a time:
// Train returns ErrTrainingInProgress instead of queueing, while
// EnsureTrained joins the first run so that concurrent requests against an
// untrained engine wait for exactly one training pass.
//
// # Usage
//
//	engine := recommend.NewEngine(store, algorithms.NewALS(algorithms.DefaultALSConfig()), recommend.DefaultConfig(), logger)
//	if err := engine.Train(ctx); err != nil {
//	    logger.Warn().Err(err).Msg("initial training failed")
//	}
//	page, err := engine.RecommendForUser(ctx, "u1", 0, 5)
package recommend
