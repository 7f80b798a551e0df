// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

// Package algorithms implements the rating models behind the ranking engine.
//
// A Model turns a batch of (user, item, rating) observations into an
// immutable Scorer. The engine keeps the Scorer behind an atomic pointer and
// replaces it wholesale on retrain, so a Scorer never changes after Train
// returns and is safe for concurrent use without locks.
//
// # Models
//
//   - ALS: biased matrix factorization fit by alternating least squares.
//     prediction = mu + b_u + b_i + p_u . q_i, clamped to the rating scale.
//
// # Cold Start
//
// Scores for unknown users or items drop the terms that need them: an
// unknown user scores mu + b_i, an unknown item mu + b_u, and both unknown
// score the global mean mu.
package algorithms
