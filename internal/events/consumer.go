// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/aeolus/internal/config"
	"github.com/tomtom215/aeolus/internal/logging"
	"github.com/tomtom215/aeolus/internal/metrics"
)

// ActivityLog consumes the domain events and writes them to the
// structured log as an activity trail.
type ActivityLog struct {
	subscriber message.Subscriber
	owned      bool
	prefix     string
}

// NewActivityLog subscribes through the publisher's in-process subscriber,
// or opens a durable JetStream subscriber for the NATS backend.
func NewActivityLog(p *Publisher, cfg *config.EventsConfig) (*ActivityLog, error) {
	if sub := p.Subscriber(); sub != nil {
		return &ActivityLog{subscriber: sub, prefix: cfg.TopicPrefix}, nil
	}

	logger := NewLoggerAdapter()
	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.NATSURL,
		QueueGroupPrefix: "aeolus-activity",
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     10 * time.Second,
		NatsOptions: []natsgo.Option{
			natsgo.Name("aeolus-activity"),
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(-1),
			natsgo.ReconnectWait(2 * time.Second),
		},
		Unmarshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			DurablePrefix: "aeolus-activity",
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.DeliverNew(),
				natsgo.MaxDeliver(5),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}
	return &ActivityLog{subscriber: sub, owned: true, prefix: cfg.TopicPrefix}, nil
}

func (a *ActivityLog) topic(suffix string) string {
	if a.prefix == "" {
		return suffix
	}
	return a.prefix + "." + suffix
}

// Serve consumes both topics until ctx is canceled.
func (a *ActivityLog) Serve(ctx context.Context) error {
	handlers := map[string]func(*message.Message) error{
		a.topic(TopicTelemetryIngested): handleTelemetryIngested,
		a.topic(TopicPointsAwarded):     handlePointsAwarded,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(handlers))
	for topic, handle := range handlers {
		messages, err := a.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		wg.Add(1)
		go func(topic string, messages <-chan *message.Message, handle func(*message.Message) error) {
			defer wg.Done()
			for msg := range messages {
				if err := handle(msg); err != nil {
					// Malformed payloads never become valid; redelivery would loop.
					metrics.EventsConsumed.WithLabelValues(topic, "invalid").Inc()
					logging.Warn().Err(err).Str("topic", topic).Str("message_uuid", msg.UUID).Msg("Dropping malformed event")
				} else {
					metrics.EventsConsumed.WithLabelValues(topic, "processed").Inc()
				}
				msg.Ack()
			}
			if ctx.Err() == nil {
				errCh <- fmt.Errorf("subscription to %s closed", topic)
			}
		}(topic, messages, handle)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		cancel()
		wg.Wait()
		return err
	}
	wg.Wait()
	return ctx.Err()
}

// String names the service in supervisor logs.
func (a *ActivityLog) String() string {
	return "activity-log"
}

// Close closes a subscriber opened by NewActivityLog. The in-process
// subscriber is closed with the publisher.
func (a *ActivityLog) Close() error {
	if !a.owned {
		return nil
	}
	return a.subscriber.Close()
}

func handleTelemetryIngested(msg *message.Message) error {
	e, err := DecodeTelemetryIngested(msg.Payload)
	if err != nil {
		return err
	}
	logging.Info().
		Str("event_id", e.EventID).
		Str("correlation_id", e.CorrelationID).
		Str("kind", e.Kind).
		Str("stream_id", e.StreamID).
		Str("user_id", e.AuthorUserID).
		Int("inserted", e.Inserted).
		Int("duplicates", e.Duplicates).
		Int("discarded", e.Discarded).
		Msg("Telemetry ingested")
	return nil
}

func handlePointsAwarded(msg *message.Message) error {
	e, err := DecodePointsAwarded(msg.Payload)
	if err != nil {
		return err
	}
	logging.Info().
		Str("event_id", e.EventID).
		Str("correlation_id", e.CorrelationID).
		Str("user_id", e.AuthorUserID).
		Int("amount", e.Amount).
		Bool("frozen", e.Frozen).
		Msg("Points awarded")
	return nil
}
