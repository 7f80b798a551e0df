// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

// Package bus adapts message transports to a single consume/publish contract.
//
// Two drivers are provided:
//   - Kafka via IBM/sarama consumer groups (one group per topic)
//   - NATS JetStream via Watermill, with an optional embedded server
//
// A Consumer delivers messages of one topic in order, one at a time. Progress
// is committed (Kafka MarkMessage, JetStream Ack) only after the handler
// returns nil. A handler error is treated as a connection-level failure: Run
// returns it, and the caller reconnects and receives the message again.
// Handlers that want to skip a bad message must swallow the error.
package bus

import (
	"context"
	"errors"
)

// ErrClosed is returned by Run when the transport closed the delivery
// channel without the context being cancelled.
var ErrClosed = errors.New("bus: subscription closed")

// Message is one delivered event.
type Message struct {
	// ID is unique per delivery position: topic/partition/offset for Kafka,
	// the message UUID for NATS. Redeliveries keep the same ID.
	ID      string
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Handler processes one message.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Consumer is one live subscription to a single topic.
type Consumer interface {
	// Run blocks delivering messages until ctx is done or the transport fails.
	Run(ctx context.Context, handler Handler) error
	Close() error
}

// Dialer opens a fresh Consumer. Each call performs a full handshake, so a
// reconnect loop can call it again after a failure.
type Dialer func(ctx context.Context) (Consumer, error)

// Publisher sends messages. Used by tooling, never by the service itself.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}
