// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

// Package storage persists trained ALS models so a restarted service can
// answer from the last model while it retrains.
//
// # Storage Format
//
// One file per generation:
//
//	filename: {model}_v{version}.gob.gz
//
//	structure:
//	  - Metadata (ModelMetadata, including a SHA-256 of the state)
//	  - CompressedData (gzip-compressed gob-encoded algorithms.ALSState)
//
// Files are written to a temp name and renamed into place. On load the
// checksum is verified; LoadLatest falls back to older generations when the
// newest is damaged.
//
// # Usage
//
//	store, err := storage.NewStore("/data/models")
//	if err != nil {
//	    return err
//	}
//	state, meta, err := store.LoadLatest(ctx, "als")
//	if errors.Is(err, storage.ErrNoModel) {
//	    // cold start
//	}
package storage
