// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/aeolus/internal/config"
	"github.com/tomtom215/aeolus/internal/logging"
	"github.com/tomtom215/aeolus/internal/metrics"
)

// Backends accepted in events.backend.
const (
	BackendGoChannel = "gochannel"
	BackendNATS      = "nats"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("event publisher is closed")

// Publisher publishes domain events with circuit breaker protection.
type Publisher struct {
	publisher  message.Publisher
	subscriber message.Subscriber // non-nil for the in-process backend only
	breaker    *gobreaker.CircuitBreaker[interface{}]
	prefix     string

	mu     sync.RWMutex
	closed bool
}

// New builds the publisher selected by cfg.Backend.
func New(cfg *config.EventsConfig) (*Publisher, error) {
	logger := NewLoggerAdapter()

	switch cfg.Backend {
	case "", BackendGoChannel:
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
		p := NewWithPublisher(ch, cfg.TopicPrefix)
		p.subscriber = ch
		return p, nil
	case BackendNATS:
		pub, err := newNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			return nil, err
		}
		return NewWithPublisher(pub, cfg.TopicPrefix), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// NewWithPublisher wraps an existing Watermill publisher.
func NewWithPublisher(pub message.Publisher, prefix string) *Publisher {
	return &Publisher{
		publisher: pub,
		breaker:   NewCircuitBreaker(DefaultBreakerConfig()),
		prefix:    prefix,
	}
}

func newNATSPublisher(url string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	natsOpts := []natsgo.Option{
		natsgo.Name("aeolus-events"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}
	return pub, nil
}

// Topic returns the full topic name for a suffix.
func (p *Publisher) Topic(suffix string) string {
	if p.prefix == "" {
		return suffix
	}
	return p.prefix + "." + suffix
}

// Subscriber returns the in-process subscriber, or nil for external brokers.
func (p *Publisher) Subscriber() message.Subscriber {
	return p.subscriber
}

// Publish sends one message through the circuit breaker.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPublisherClosed
	}

	msg.SetContext(ctx)
	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}

	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publisher.Publish(topic, msg)
	})

	switch {
	case err == nil:
		metrics.EventsPublished.WithLabelValues(topic, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.EventsPublished.WithLabelValues(topic, "rejected").Inc()
	default:
		metrics.EventsPublished.WithLabelValues(topic, "failure").Inc()
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishTelemetryIngested publishes a telemetry.ingested event.
func (p *Publisher) PublishTelemetryIngested(ctx context.Context, e TelemetryIngested) error {
	if e.EventID == "" {
		e.EventID = watermill.NewUUID()
	}
	data, err := encode(&e)
	if err != nil {
		return err
	}
	msg := message.NewMessage(e.EventID, data)
	msg.Metadata.Set("kind", e.Kind)
	msg.Metadata.Set("author_user_id", e.AuthorUserID)
	return p.Publish(ctx, p.Topic(TopicTelemetryIngested), msg)
}

// PublishPointsAwarded publishes a points.awarded event.
func (p *Publisher) PublishPointsAwarded(ctx context.Context, e PointsAwarded) error {
	if e.EventID == "" {
		e.EventID = watermill.NewUUID()
	}
	data, err := encode(&e)
	if err != nil {
		return err
	}
	msg := message.NewMessage(e.EventID, data)
	msg.Metadata.Set("author_user_id", e.AuthorUserID)
	return p.Publish(ctx, p.Topic(TopicPointsAwarded), msg)
}

// Close shuts down the publisher. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
