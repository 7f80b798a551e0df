// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recommender/internal/bus"
	"github.com/tomtom215/recommender/internal/metrics"
)

// ConsumerConfig tunes a ConsumerService.
type ConsumerConfig struct {
	Topic             string
	ReconnectBackoff  time.Duration
	HeartbeatInterval time.Duration
}

// ConsumerService keeps one topic subscription alive for suture. Transport
// failures never escape Serve: the connection is closed, the service waits
// ReconnectBackoff and dials again, without limit.
type ConsumerService struct {
	name      string
	dial      bus.Dialer
	processor *Processor
	cfg       ConsumerConfig
	logger    zerolog.Logger

	connected atomic.Bool
}

// NewConsumerService creates a consumer service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewConsumerService(name string, dial bus.Dialer, processor *Processor, cfg ConsumerConfig, logger zerolog.Logger) *ConsumerService {
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = 5 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 60 * time.Second
	}
	return &ConsumerService{
		name:      name,
		dial:      dial,
		processor: processor,
		cfg:       cfg,
		logger:    logger.With().Str("service", name).Str("topic", cfg.Topic).Logger(),
	}
}

// Serve implements suture.Service. It returns only when ctx is done.
func (s *ConsumerService) Serve(ctx context.Context) error {
	s.logger.Info().Dur("reconnect_backoff", s.cfg.ReconnectBackoff).Msg("consumer starting")

	go s.heartbeat(ctx)

	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			s.logger.Info().Msg("consumer shutting down")
			return ctx.Err()
		}

		metrics.RecordReconnect(s.cfg.Topic)
		s.logger.Warn().Err(err).
			Dur("retry_in", s.cfg.ReconnectBackoff).
			Msg("consumer connection lost, reconnecting")

		timer := time.NewTimer(s.cfg.ReconnectBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *ConsumerService) runOnce(ctx context.Context) error {
	consumer, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		s.connected.Store(false)
		metrics.SetConsumerConnected(s.cfg.Topic, false)
		if cerr := consumer.Close(); cerr != nil {
			s.logger.Debug().Err(cerr).Msg("error closing consumer")
		}
	}()

	s.connected.Store(true)
	metrics.SetConsumerConnected(s.cfg.Topic, true)
	s.logger.Info().Msg("consumer connected")

	if err := consumer.Run(ctx, s.processor); err != nil {
		return err
	}
	return bus.ErrClosed
}

func (s *ConsumerService) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c := s.processor.Counters()
			s.logger.Info().
				Bool("connected", s.connected.Load()).
				Int64("processed", c.Processed).
				Int64("failed", c.Failed).
				Int64("duplicates", c.Duplicates).
				Msg("consumer running")
		}
	}
}

// Connected reports whether a subscription is currently open.
func (s *ConsumerService) Connected() bool {
	return s.connected.Load()
}

// Counters returns the processor totals.
func (s *ConsumerService) Counters() Counters {
	return s.processor.Counters()
}

// String implements fmt.Stringer for suture logs.
func (s *ConsumerService) String() string {
	return s.name
}
