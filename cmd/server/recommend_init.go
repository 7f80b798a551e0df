// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recommender/internal/config"
	"github.com/tomtom215/recommender/internal/recommend"
	"github.com/tomtom215/recommender/internal/recommend/algorithms"
	"github.com/tomtom215/recommender/internal/recommend/storage"
	"github.com/tomtom215/recommender/internal/replica"
	"github.com/tomtom215/recommender/internal/supervisor"
	"github.com/tomtom215/recommender/internal/supervisor/services"
)

// initRecommend builds the ALS engine over the replica, restores the last
// checkpoint when one is configured, and registers the trainer with the
// model layer. The startup run happens inside the trainer so the HTTP server
// is up while it trains; a request that arrives first is answered from the
// restored model or joins the run instead of starting another.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func initRecommend(ctx context.Context, cfg *config.Config, store *replica.Store, logger zerolog.Logger, tree *supervisor.SupervisorTree) (*recommend.Engine, error) {
	engineCfg, alsCfg := recommend.FromAppConfig(&cfg.Recommend)
	model := algorithms.NewALS(alsCfg)
	engine := recommend.NewEngine(store, model, engineCfg, logger)

	applied := model.Config()
	logger.Info().
		Int("factors", applied.NumFactors).
		Int("iterations", applied.NumIterations).
		Float64("regularization", applied.Regularization).
		Int("workers", applied.NumWorkers).
		Bool("train_on_startup", cfg.Recommend.TrainOnStartup).
		Dur("train_interval", cfg.Recommend.TrainInterval).
		Dur("train_timeout", engineCfg.TrainTimeout).
		Msg("Recommendation engine initialized")

	if dir := cfg.Recommend.CheckpointDir; dir != "" {
		checkpoints, err := storage.NewStore(dir)
		if err != nil {
			return nil, fmt.Errorf("open checkpoint store: %w", err)
		}
		engine.SetCheckpointer(checkpoints, cfg.Recommend.CheckpointKeep)

		if _, err := engine.Restore(ctx); err != nil {
			logger.Warn().Err(err).Str("dir", dir).Msg("Could not restore model checkpoint, starting cold")
		}
	}

	tree.AddModelService(services.NewTrainerService(engine, services.TrainerConfig{
		TrainOnStartup: cfg.Recommend.TrainOnStartup,
		Interval:       cfg.Recommend.TrainInterval,
	}, logger))

	return engine, nil
}
