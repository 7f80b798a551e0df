// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/recommender/internal/recommend/algorithms"
	"github.com/tomtom215/recommender/internal/recommend/storage"
)

// Checkpointer persists trained models across restarts. *storage.Store
// satisfies it.
type Checkpointer interface {
	Save(ctx context.Context, state *algorithms.ALSState, meta storage.ModelMetadata) error
	LoadLatest(ctx context.Context, name string) (*algorithms.ALSState, *storage.ModelMetadata, error)
	Prune(ctx context.Context, name string, keep int) (int, error)
}

// SetCheckpointer makes every successful run save its model and keeps the
// newest keep generations. Call it before training starts.
func (e *Engine) SetCheckpointer(cp Checkpointer, keep int) {
	if keep < 1 {
		keep = 1
	}
	e.checkpoints = cp
	e.checkpointKeep = keep
}

// Restore publishes the newest saved model as the current snapshot and
// continues version numbering after it. It reports false, without error,
// when no checkpointer is set, nothing usable is saved, or a snapshot
// already exists.
func (e *Engine) Restore(ctx context.Context) (bool, error) {
	if e.checkpoints == nil {
		return false, nil
	}

	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	if e.snapshot.Load() != nil {
		return false, nil
	}

	state, meta, err := e.checkpoints.LoadLatest(ctx, e.model.Name())
	if err != nil {
		if errors.Is(err, storage.ErrNoModel) {
			e.logger.Info().Err(err).Msg("no saved model to restore")
			return false, nil
		}
		return false, fmt.Errorf("load checkpoint: %w", err)
	}

	scorer, err := state.Scorer()
	if err != nil {
		return false, fmt.Errorf("rebuild checkpoint v%d: %w", meta.Version, err)
	}

	snap := &Snapshot{
		Scorer:       scorer,
		Model:        meta.Name,
		Version:      meta.Version,
		Interactions: meta.Interactions,
		TrainedAt:    meta.TrainedAt,
		Duration:     time.Duration(meta.TrainingDurationMS) * time.Millisecond,
		Restored:     true,
	}
	for {
		cur := e.version.Load()
		if cur >= meta.Version || e.version.CompareAndSwap(cur, meta.Version) {
			break
		}
	}
	e.snapshot.Store(snap)

	e.logger.Info().
		Int64("version", snap.Version).
		Int("users", scorer.Users()).
		Int("items", scorer.Items()).
		Time("trained_at", snap.TrainedAt).
		Msg("restored model from checkpoint")
	return true, nil
}

// checkpoint saves snap and prunes old generations. Failures are logged;
// the snapshot is already serving.
func (e *Engine) checkpoint(ctx context.Context, snap *Snapshot) {
	if e.checkpoints == nil {
		return
	}

	state, err := algorithms.ExportState(snap.Scorer)
	if err != nil {
		e.logger.Debug().Err(err).Msg("model has no checkpoint form")
		return
	}

	meta := storage.ModelMetadata{
		Name:               snap.Model,
		Version:            snap.Version,
		TrainedAt:          snap.TrainedAt,
		Interactions:       snap.Interactions,
		Users:              snap.Scorer.Users(),
		Items:              snap.Scorer.Items(),
		TrainingDurationMS: snap.Duration.Milliseconds(),
	}
	if err := e.checkpoints.Save(ctx, state, meta); err != nil {
		e.logger.Warn().Err(err).Int64("version", snap.Version).Msg("failed to save model checkpoint")
		return
	}
	if removed, err := e.checkpoints.Prune(ctx, snap.Model, e.checkpointKeep); err != nil {
		e.logger.Warn().Err(err).Msg("failed to prune model checkpoints")
	} else if removed > 0 {
		e.logger.Debug().Int("removed", removed).Msg("pruned old model checkpoints")
	}
}
