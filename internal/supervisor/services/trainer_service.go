// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recommender/internal/recommend"
)

// Trainer is the training side of *recommend.Engine.
type Trainer interface {
	Train(ctx context.Context) error
}

// TrainerConfig controls when the model is retrained.
type TrainerConfig struct {
	// TrainOnStartup trains once as soon as the service starts. A failure
	// is logged; the first recommendation request will train instead.
	TrainOnStartup bool

	// Interval between scheduled runs. Zero disables scheduled retraining.
	Interval time.Duration
}

// TrainerService keeps the ranking model fresh under supervision.
type TrainerService struct {
	engine Trainer
	config TrainerConfig
	logger zerolog.Logger
	name   string
}

// NewTrainerService creates a trainer service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewTrainerService(engine Trainer, cfg TrainerConfig, logger zerolog.Logger) *TrainerService {
	return &TrainerService{
		engine: engine,
		config: cfg,
		logger: logger.With().Str("service", "trainer").Logger(),
		name:   "model-trainer",
	}
}

// Serve implements suture.Service. Training errors never stop the service.
func (s *TrainerService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("train_on_startup", s.config.TrainOnStartup).
		Dur("train_interval", s.config.Interval).
		Msg("trainer starting")

	if s.config.TrainOnStartup {
		s.train(ctx, "startup")
	}

	if s.config.Interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("trainer shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.train(ctx, "scheduled")
		}
	}
}

// train runs one pass. The engine applies its own training timeout.
func (s *TrainerService) train(ctx context.Context, trigger string) {
	start := time.Now()
	err := s.engine.Train(ctx)
	switch {
	case err == nil:
		s.logger.Info().
			Str("trigger", trigger).
			Dur("duration", time.Since(start)).
			Msg("model training complete")
	case errors.Is(err, recommend.ErrTrainingInProgress):
		s.logger.Debug().Str("trigger", trigger).Msg("training skipped, run already in progress")
	case ctx.Err() != nil:
		s.logger.Debug().Str("trigger", trigger).Msg("training interrupted by shutdown")
	default:
		s.logger.Warn().Err(err).Str("trigger", trigger).Msg("model training failed")
	}
}

// String implements fmt.Stringer.
func (s *TrainerService) String() string {
	return s.name
}
