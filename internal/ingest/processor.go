// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tomtom215/recommender/internal/bus"
	"github.com/tomtom215/recommender/internal/logging"
	"github.com/tomtom215/recommender/internal/metrics"
	"github.com/tomtom215/recommender/internal/models"
)

// Deduper remembers transport message ids that were already applied.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

// Counters is a point-in-time copy of a Processor's totals.
type Counters struct {
	Processed  int64
	Failed     int64
	Duplicates int64
}

// Processor adapts an Applier to bus.Handler. It returns an error only when
// ctx is done, so a message interrupted by shutdown is not committed.
type Processor struct {
	topic   string
	applier Applier
	dedup   Deduper

	processed  atomic.Int64
	failed     atomic.Int64
	duplicates atomic.Int64
}

// NewProcessor creates a processor for topic. dedup may be nil.
func NewProcessor(topic string, applier Applier, dedup Deduper) *Processor {
	return &Processor{topic: topic, applier: applier, dedup: dedup}
}

// Handle implements bus.Handler.
func (p *Processor) Handle(ctx context.Context, msg bus.Message) error {
	start := time.Now()

	if p.isDuplicate(ctx, msg.ID) {
		p.duplicates.Add(1)
		metrics.RecordEvent(p.topic, "", "duplicate", time.Since(start))
		logging.Debug().Str("topic", p.topic).Str("message_id", msg.ID).Msg("Skipping redelivered message")
		return nil
	}

	eventType := ""
	env, err := models.DecodeEnvelope(msg.Value)
	if err != nil {
		err = malformed("%v", err)
	} else {
		eventType = env.Type
		err = p.applier.Apply(ctx, env)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.failed.Add(1)

		outcome := "failed"
		event := logging.Error()
		if IsPermanent(err) {
			outcome = "malformed"
			event = logging.Warn()
		}
		metrics.RecordEvent(p.topic, eventType, outcome, time.Since(start))
		event.Err(err).
			Str("topic", p.topic).
			Str("message_id", msg.ID).
			Str("type", eventType).
			Msg("Skipping event that could not be applied")
		return nil
	}

	if p.dedup != nil && msg.ID != "" {
		if err := p.dedup.Mark(ctx, msg.ID); err != nil {
			logging.Warn().Err(err).Str("message_id", msg.ID).Msg("Failed to record message id")
		}
	}
	p.processed.Add(1)
	metrics.RecordEvent(p.topic, eventType, "applied", time.Since(start))
	return nil
}

func (p *Processor) isDuplicate(ctx context.Context, id string) bool {
	if p.dedup == nil || id == "" {
		return false
	}
	seen, err := p.dedup.Seen(ctx, id)
	if err != nil {
		// Applying twice is safer than dropping.
		logging.Warn().Err(err).Str("message_id", id).Msg("Dedup lookup failed")
		return false
	}
	return seen
}

// Counters returns the current totals.
func (p *Processor) Counters() Counters {
	return Counters{
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Duplicates: p.duplicates.Load(),
	}
}
