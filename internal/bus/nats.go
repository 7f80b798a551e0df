// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/recommender/internal/config"
	"github.com/tomtom215/recommender/internal/logging"
)

// natsMaxReconnects bounds the client's own reconnect attempts. When they
// are exhausted the subscription closes and the consumer's outer loop
// performs a full reconnect.
const natsMaxReconnects = 10

// NewNATSDialer returns a Dialer that opens a durable JetStream subscription
// to topic on url.
func NewNATSDialer(cfg *config.NATSConfig, url, durable, topic string) Dialer {
	return func(ctx context.Context) (Consumer, error) {
		sub, err := newNATSSubscriber(cfg, url, durable)
		if err != nil {
			return nil, err
		}
		return NewNATSConsumer(sub, topic), nil
	}
}

func natsOptions(logger watermill.LoggerAdapter, role string) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name("recommender-" + role),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(natsMaxReconnects),
		natsgo.ReconnectWait(time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, watermill.LogFields{"role": role})
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"role": role, "url": nc.ConnectedUrl()})
		}),
	}
}

func newNATSSubscriber(cfg *config.NATSConfig, url, durable string) (message.Subscriber, error) {
	logger := logging.NewWatermillLogger()

	// One in-flight message per durable keeps delivery order intact across
	// redeliveries.
	subOpts := []natsgo.SubOpt{
		natsgo.DeliverAll(),
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.MaxAckPending(1),
		natsgo.AckWait(cfg.AckWait),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWait,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOptions(logger, "subscriber"),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    true,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    durable,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	return sub, nil
}

// NATSConsumer consumes one JetStream subject.
type NATSConsumer struct {
	sub   message.Subscriber
	topic string
}

// NewNATSConsumer wraps an existing subscriber.
func NewNATSConsumer(sub message.Subscriber, topic string) *NATSConsumer {
	return &NATSConsumer{sub: sub, topic: topic}
}

// Run acks each message after the handler succeeds. On handler error the
// message is nacked for redelivery and the error is returned.
func (c *NATSConsumer) Run(ctx context.Context, handler Handler) error {
	messages, err := c.sub.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrClosed
			}
			if err := handler.Handle(ctx, fromWatermill(c.topic, msg)); err != nil {
				msg.Nack()
				return err
			}
			msg.Ack()
		}
	}
}

// Close closes the subscriber and its connection.
func (c *NATSConsumer) Close() error {
	if c == nil || c.sub == nil {
		return nil
	}
	return c.sub.Close()
}

// metadataKey carries the partition key through NATS, which has none.
const metadataKey = "key"

func fromWatermill(topic string, msg *message.Message) Message {
	out := Message{
		ID:    msg.UUID,
		Topic: topic,
		Value: msg.Payload,
	}
	if len(msg.Metadata) > 0 {
		out.Headers = make(map[string]string, len(msg.Metadata))
		for k, v := range msg.Metadata {
			if k == metadataKey {
				out.Key = []byte(v)
				continue
			}
			out.Headers[k] = v
		}
	}
	return out
}

// NATSPublisher publishes to JetStream through Watermill.
type NATSPublisher struct {
	pub message.Publisher
}

// NewNATSPublisher connects a publisher to url.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	logger := logging.NewWatermillLogger()

	wmConfig := wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOptions(logger, "publisher"),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return &NATSPublisher{pub: pub}, nil
}

// Publish sends msg. An empty msg.ID gets a fresh UUID.
func (p *NATSPublisher) Publish(ctx context.Context, msg Message) error {
	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}
	wm := message.NewMessage(id, msg.Value)
	wm.SetContext(ctx)
	for k, v := range msg.Headers {
		wm.Metadata.Set(k, v)
	}
	if len(msg.Key) > 0 {
		wm.Metadata.Set(metadataKey, string(msg.Key))
	}
	if err := p.pub.Publish(msg.Topic, wm); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Topic, err)
	}
	return nil
}

// Close closes the publisher.
func (p *NATSPublisher) Close() error {
	if p == nil || p.pub == nil {
		return nil
	}
	return p.pub.Close()
}
