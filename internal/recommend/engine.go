// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/recommender/internal/metrics"
	"github.com/tomtom215/recommender/internal/recommend/algorithms"
	"github.com/tomtom215/recommender/internal/replica"
)

// ErrTrainingInProgress is returned by Train while another run is active.
var ErrTrainingInProgress = errors.New("training already in progress")

// DataSource is the replica surface the engine reads. It is satisfied by
// *replica.Store.
type DataSource interface {
	// Interactions returns the full history in insertion order.
	Interactions(ctx context.Context) ([]replica.Interaction, error)

	// ListProductIDs returns every product id in a stable order.
	ListProductIDs(ctx context.Context) ([]string, error)

	// InteractedProductIDs returns the ids userID has interacted with.
	InteractedProductIDs(ctx context.Context, userID string) ([]string, error)

	// InteractedAmong returns the subset of ids with any interaction.
	InteractedAmong(ctx context.Context, productIDs []string) ([]string, error)
}

// Engine trains the ranking model and serves rankings from the latest
// snapshot. It is safe for concurrent use.
type Engine struct {
	config Config
	model  algorithms.Model
	data   DataSource
	logger zerolog.Logger

	snapshot atomic.Pointer[Snapshot]
	version  atomic.Int64

	// trainMu serializes runs. Train only ever TryLocks it.
	trainMu    sync.Mutex
	inProgress atomic.Bool
	lazy       singleflight.Group

	errMu     sync.RWMutex
	lastError string

	checkpoints    Checkpointer
	checkpointKeep int
}

// NewEngine creates an engine. Call Train or EnsureTrained before the first
// request to avoid paying for training on the request path.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(data DataSource, model algorithms.Model, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.Validate() != nil {
		cfg = DefaultConfig()
	}
	return &Engine{
		config: cfg,
		model:  model,
		data:   data,
		logger: logger.With().Str("component", "recommend").Logger(),
	}
}

// Train runs one training pass and publishes a new snapshot. If a pass is
// already running it returns ErrTrainingInProgress immediately.
func (e *Engine) Train(ctx context.Context) error {
	if !e.trainMu.TryLock() {
		metrics.RecordTrainingSkipped()
		e.logger.Debug().Msg("training request ignored, run in progress")
		return ErrTrainingInProgress
	}
	defer e.trainMu.Unlock()

	_, err := e.train(ctx)
	return err
}

// StartTraining launches a training pass in the background and returns
// once the run holds the training lock. The returned channel receives the
// run's result. ErrTrainingInProgress is returned, and nothing is started,
// when a pass is already running.
func (e *Engine) StartTraining(ctx context.Context) (<-chan error, error) {
	if !e.trainMu.TryLock() {
		metrics.RecordTrainingSkipped()
		return nil, ErrTrainingInProgress
	}

	done := make(chan error, 1)
	go func() {
		defer e.trainMu.Unlock()
		_, err := e.train(ctx)
		done <- err
	}()
	return done, nil
}

// EnsureTrained returns the current snapshot, training first if there is
// none. Concurrent callers share one run. The run is detached from the
// caller's cancellation so one impatient request cannot fail the others.
func (e *Engine) EnsureTrained(ctx context.Context) (*Snapshot, error) {
	if s := e.snapshot.Load(); s != nil {
		return s, nil
	}

	ch := e.lazy.DoChan("train", func() (interface{}, error) {
		// Wait behind any Train call already running.
		e.trainMu.Lock()
		defer e.trainMu.Unlock()

		if s := e.snapshot.Load(); s != nil {
			return s, nil
		}
		e.logger.Info().Msg("no model snapshot, training on demand")
		return e.train(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// train must be called with trainMu held.
func (e *Engine) train(ctx context.Context) (*Snapshot, error) {
	e.inProgress.Store(true)
	defer e.inProgress.Store(false)

	start := time.Now()
	trainCtx, cancel := context.WithTimeout(ctx, e.config.TrainTimeout)
	defer cancel()

	snap, err := e.buildSnapshot(trainCtx, start)
	if err != nil {
		metrics.RecordTraining(time.Since(start), 0, 0, 0, err)
		e.setLastError(err)
		e.logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("model training failed")
		return nil, err
	}

	e.snapshot.Store(snap)
	e.setLastError(nil)
	metrics.RecordTraining(snap.Duration, snap.Scorer.Users(), snap.Scorer.Items(), snap.Version, nil)
	e.checkpoint(ctx, snap)

	e.logger.Info().
		Str("model", snap.Model).
		Int64("version", snap.Version).
		Int("users", snap.Scorer.Users()).
		Int("items", snap.Scorer.Items()).
		Int("interactions", snap.Interactions).
		Dur("duration", snap.Duration).
		Msg("model training complete")
	return snap, nil
}

func (e *Engine) buildSnapshot(ctx context.Context, start time.Time) (*Snapshot, error) {
	history, err := e.data.Interactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load interactions: %w", err)
	}

	ratings := make([]algorithms.Rating, 0, len(history))
	for _, in := range history {
		ratings = append(ratings, algorithms.Rating{
			UserID: in.UserID,
			ItemID: in.ProductID,
			Value:  RatingFor(in.Type),
		})
	}
	if len(ratings) == 0 {
		e.logger.Info().Msg("no interactions yet, training on synthetic rating")
		ratings = dummyRatings()
	}

	scorer, err := e.model.Train(ctx, ratings)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", e.model.Name(), err)
	}

	return &Snapshot{
		Scorer:       scorer,
		Model:        e.model.Name(),
		Version:      e.version.Add(1),
		Interactions: len(history),
		TrainedAt:    time.Now(),
		Duration:     time.Since(start),
	}, nil
}

func (e *Engine) setLastError(err error) {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	if err == nil {
		e.lastError = ""
		return
	}
	e.lastError = err.Error()
}

// Snapshot returns the current snapshot, or nil before the first run.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// Status reports the training state.
func (e *Engine) Status() Status {
	st := Status{
		InProgress: e.inProgress.Load(),
		Model:      e.model.Name(),
	}
	e.errMu.RLock()
	st.LastError = e.lastError
	e.errMu.RUnlock()

	if s := e.snapshot.Load(); s != nil {
		st.IsTrained = true
		st.Version = s.Version
		st.Users = s.Scorer.Users()
		st.Items = s.Scorer.Items()
		st.Interactions = s.Interactions
		st.TrainedAt = s.TrainedAt
		st.DurationMS = s.Duration.Milliseconds()
		st.Restored = s.Restored
	}
	return st
}

// RecommendForUser ranks every product the user has not interacted with.
func (e *Engine) RecommendForUser(ctx context.Context, userID string, skip, take int) ([]ScoredItem, error) {
	start := time.Now()
	items, n, err := e.recommendForUser(ctx, userID, skip, take)
	metrics.RecordRecommendation("by_user", outcome(err), n, time.Since(start))
	return items, err
}

func (e *Engine) recommendForUser(ctx context.Context, userID string, skip, take int) ([]ScoredItem, int, error) {
	candidates, err := CandidatesForUser(ctx, e.data, userID)
	if err != nil {
		return nil, -1, err
	}
	if len(candidates) == 0 {
		return []ScoredItem{}, 0, nil
	}

	snap, err := e.EnsureTrained(ctx)
	if err != nil {
		return nil, len(candidates), fmt.Errorf("ensure trained: %w", err)
	}
	return Paginate(Rank(snap.Scorer, userID, candidates), skip, take), len(candidates), nil
}

// RecommendForViewed ranks products for an anonymous visitor who viewed
// the given ids. An empty list yields an empty result without touching the
// replica.
func (e *Engine) RecommendForViewed(ctx context.Context, viewed []string, skip, take int) ([]ScoredItem, error) {
	start := time.Now()
	items, n, err := e.recommendForViewed(ctx, viewed, skip, take)
	metrics.RecordRecommendation("by_viewed", outcome(err), n, time.Since(start))
	return items, err
}

func (e *Engine) recommendForViewed(ctx context.Context, viewed []string, skip, take int) ([]ScoredItem, int, error) {
	if len(viewed) == 0 {
		return []ScoredItem{}, 0, nil
	}
	candidates, err := CandidatesForViewed(ctx, e.data, viewed)
	if err != nil {
		return nil, -1, err
	}
	if len(candidates) == 0 {
		return []ScoredItem{}, 0, nil
	}

	snap, err := e.EnsureTrained(ctx)
	if err != nil {
		return nil, len(candidates), fmt.Errorf("ensure trained: %w", err)
	}
	return Paginate(Rank(snap.Scorer, AnonymousUser, candidates), skip, take), len(candidates), nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
