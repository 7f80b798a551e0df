// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/tomtom215/recommender/internal/config"
	"github.com/tomtom215/recommender/internal/logging"
)

var saramaLoggerOnce sync.Once

// NewSaramaConfig builds the sarama client configuration shared by
// consumers and the publisher.
func NewSaramaConfig(cfg *config.KafkaConfig) (*sarama.Config, error) {
	saramaLoggerOnce.Do(func() {
		sarama.Logger = logging.NewSaramaLogger()
	})

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("parse kafka version %q: %w", cfg.Version, err)
	}

	sc := sarama.NewConfig()
	sc.Version = version
	sc.ClientID = strings.TrimSpace(cfg.ClientID)
	sc.Consumer.Return.Errors = true
	sc.Consumer.Group.Rebalance.Timeout = 30 * time.Second
	sc.Consumer.Group.Session.Timeout = 30 * time.Second
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	if cfg.InitialOffset == "newest" {
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	return sc, nil
}

// NewKafkaDialer returns a Dialer that joins groupID on topic with a new
// consumer group client per call.
func NewKafkaDialer(cfg *config.KafkaConfig, groupID, topic string) Dialer {
	return func(ctx context.Context) (Consumer, error) {
		if len(cfg.Brokers) == 0 {
			return nil, errors.New("kafka brokers is empty")
		}
		if strings.TrimSpace(groupID) == "" {
			return nil, errors.New("kafka consumer group id is empty")
		}
		sc, err := NewSaramaConfig(cfg)
		if err != nil {
			return nil, err
		}
		group, err := sarama.NewConsumerGroup(cfg.Brokers, strings.TrimSpace(groupID), sc)
		if err != nil {
			return nil, fmt.Errorf("join consumer group %s: %w", groupID, err)
		}
		return NewKafkaConsumer(group, groupID, topic), nil
	}
}

// KafkaConsumer consumes one topic through a sarama consumer group.
type KafkaConsumer struct {
	group   sarama.ConsumerGroup
	groupID string
	topic   string
}

// NewKafkaConsumer wraps an existing consumer group.
func NewKafkaConsumer(group sarama.ConsumerGroup, groupID, topic string) *KafkaConsumer {
	return &KafkaConsumer{group: group, groupID: groupID, topic: topic}
}

// Run consumes until ctx is done, Consume fails, or the handler fails.
func (c *KafkaConsumer) Run(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("handler is nil")
	}
	h := &consumerGroupHandler{handler: handler, groupID: c.groupID}

	if errs := c.group.Errors(); errs != nil {
		go func() {
			for err := range errs {
				logging.Warn().Err(err).Str("group", c.groupID).Str("topic", c.topic).Msg("Kafka consumer group error")
			}
		}()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			return fmt.Errorf("consume %s: %w", c.topic, err)
		}
		if err := h.takeErr(); err != nil {
			return err
		}
	}
}

// Close leaves the group and closes the client.
func (c *KafkaConsumer) Close() error {
	if c == nil || c.group == nil {
		return nil
	}
	return c.group.Close()
}

type consumerGroupHandler struct {
	handler Handler
	groupID string

	mu  sync.Mutex
	err error
}

func (h *consumerGroupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	logging.Info().
		Str("group", h.groupID).
		Str("member", sess.MemberID()).
		Int32("generation", sess.GenerationID()).
		Interface("claims", sess.Claims()).
		Msg("Kafka consumer group session started")
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case m, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.handler.Handle(sess.Context(), fromSarama(m)); err != nil {
				h.setErr(err)
				return err
			}
			sess.MarkMessage(m, "")
		case <-sess.Context().Done():
			return nil
		}
	}
}

func (h *consumerGroupHandler) setErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err == nil {
		h.err = err
	}
}

func (h *consumerGroupHandler) takeErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	err := h.err
	h.err = nil
	return err
}

func fromSarama(m *sarama.ConsumerMessage) Message {
	msg := Message{
		ID:    fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset),
		Topic: m.Topic,
		Key:   m.Key,
		Value: m.Value,
	}
	if len(m.Headers) > 0 {
		msg.Headers = make(map[string]string, len(m.Headers))
		for _, hdr := range m.Headers {
			if hdr == nil || len(hdr.Key) == 0 {
				continue
			}
			msg.Headers[string(hdr.Key)] = string(hdr.Value)
		}
	}
	return msg
}
