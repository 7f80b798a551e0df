// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package recommend

import (
	"fmt"
	"time"

	"github.com/tomtom215/recommender/internal/config"
	"github.com/tomtom215/recommender/internal/recommend/algorithms"
)

// Config contains engine settings.
type Config struct {
	// TrainTimeout bounds one training run, including the history read.
	TrainTimeout time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{TrainTimeout: 30 * time.Minute}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.TrainTimeout <= 0 {
		return fmt.Errorf("train timeout must be positive, got %v", c.TrainTimeout)
	}
	return nil
}

// FromAppConfig derives the engine config and ALS settings from the
// application configuration.
func FromAppConfig(cfg *config.RecommendConfig) (Config, algorithms.ALSConfig) {
	als := algorithms.DefaultALSConfig()
	als.NumFactors = cfg.ALS.Factors
	als.NumIterations = cfg.ALS.Iterations
	als.Regularization = cfg.ALS.Regularization
	als.BiasRegularization = cfg.ALS.BiasRegularization
	if cfg.ALS.NumWorkers > 0 {
		als.NumWorkers = cfg.ALS.NumWorkers
	}
	return Config{TrainTimeout: cfg.TrainTimeout}, als
}
