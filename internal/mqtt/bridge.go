// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"

	"github.com/tomtom215/aeolus/internal/auth"
	"github.com/tomtom215/aeolus/internal/config"
	"github.com/tomtom215/aeolus/internal/ingest"
	"github.com/tomtom215/aeolus/internal/logging"
	"github.com/tomtom215/aeolus/internal/metrics"
	"github.com/tomtom215/aeolus/internal/models"
)

// Message outcomes, used as the metrics label and the ack status.
const (
	OutcomeAccepted  = "accepted"
	OutcomeThrottled = "throttled"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// remoteAddr stands in for the client IP recorded on API key use.
const remoteAddr = "mqtt"

// Submitter is the ingestion coordinator.
type Submitter interface {
	Submit(ctx context.Context, req ingest.Request) (*ingest.Result, error)
}

// KeyResolver turns a device API key into the owning subject.
type KeyResolver interface {
	Resolve(ctx context.Context, plaintext, clientIP string) (*auth.AuthSubject, error)
}

// Payload is the body of a message on aeolus/{kind}/{streamID}/data.
type Payload struct {
	APIKey      string              `json:"api_key"`
	Coordinates *models.Coordinates `json:"coordinates"`
	SensorID    string              `json:"sensor_id,omitempty"`
	Data        []models.Reading    `json:"data"`
}

// Ack is published to aeolus/{kind}/{streamID}/ack after each message.
type Ack struct {
	Status       string             `json:"status"`
	Records      []models.IngestAck `json:"records,omitempty"`
	Inserted     int                `json:"inserted"`
	Duplicates   int                `json:"duplicates"`
	Discarded    int                `json:"discarded"`
	PointsEarned int                `json:"points_earned"`
	Error        string             `json:"error,omitempty"`
}

// Bridge subscribes to device topics and feeds batches to the coordinator.
// Serve makes it a suture service.
type Bridge struct {
	cfg       config.MQTTConfig
	submitter Submitter
	keys      KeyResolver
	limiter   *streamLimiter

	// newClient is replaced in tests.
	newClient func(*paho.ClientOptions) paho.Client

	mu     sync.Mutex
	client paho.Client
}

// NewBridge creates an unconnected bridge.
func NewBridge(cfg config.MQTTConfig, submitter Submitter, keys KeyResolver) *Bridge {
	if cfg.Topic == "" {
		cfg.Topic = "aeolus/+/+/data"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &Bridge{
		cfg:       cfg,
		submitter: submitter,
		keys:      keys,
		limiter:   newStreamLimiter(cfg.StreamRate, cfg.StreamBurst),
		newClient: paho.NewClient,
	}
}

// String names the service in supervisor logs.
func (b *Bridge) String() string {
	return "mqtt-bridge"
}

// Serve connects, subscribes and blocks until ctx is cancelled. A failed
// connect is returned so the supervisor restarts the service with backoff.
func (b *Bridge) Serve(ctx context.Context) error {
	log := logging.WithComponent("mqtt")

	opts := paho.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(b.cfg.ClientID).
		SetUsername(b.cfg.Username).
		SetPassword(b.cfg.Password).
		SetConnectTimeout(b.cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetOrderMatters(false)

	opts.SetOnConnectHandler(func(c paho.Client) {
		metrics.MQTTConnected.Set(1)
		token := c.Subscribe(b.cfg.Topic, byte(b.cfg.QoS), func(_ paho.Client, msg paho.Message) {
			b.HandleMessage(ctx, msg.Topic(), msg.Payload())
		})
		if token.WaitTimeout(b.cfg.ConnectTimeout) && token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", b.cfg.Topic).Msg("MQTT subscribe failed")
			return
		}
		log.Info().Str("broker", b.cfg.Broker).Str("topic", b.cfg.Topic).Msg("MQTT bridge subscribed")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		metrics.MQTTConnected.Set(0)
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	client := b.newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(b.cfg.ConnectTimeout) {
		return fmt.Errorf("mqtt: connect to %s timed out", b.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: connect to %s: %w", b.cfg.Broker, err)
	}

	b.mu.Lock()
	b.client = client
	b.mu.Unlock()

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			b.client = nil
			b.mu.Unlock()
			client.Disconnect(250)
			metrics.MQTTConnected.Set(0)
			log.Info().Msg("MQTT bridge stopped")
			return ctx.Err()
		case <-ticker.C:
			if n := b.limiter.prune(); n > 0 {
				log.Debug().Int("pruned", n).Msg("Pruned idle stream limiters")
			}
		}
	}
}

// HandleMessage ingests one device message and publishes its ack. It
// returns the outcome.
func (b *Bridge) HandleMessage(ctx context.Context, topic string, body []byte) string {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx).With().Str("topic", topic).Logger()

	kind, streamID, err := ParseTopic(topic)
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring message on unexpected topic")
		metrics.MQTTMessages.WithLabelValues("unknown", OutcomeRejected).Inc()
		return OutcomeRejected
	}

	outcome, ack := b.handle(ctx, kind, streamID, body)
	metrics.MQTTMessages.WithLabelValues(string(kind), outcome).Inc()
	if outcome != OutcomeAccepted {
		log.Warn().Str("outcome", outcome).Str("reason", ack.Error).Msg("MQTT batch not ingested")
	}
	b.publishAck(topic, ack)
	return outcome
}

func (b *Bridge) handle(ctx context.Context, kind models.StreamKind, streamID string, body []byte) (string, Ack) {
	if !b.limiter.allow(string(kind) + "/" + streamID) {
		return OutcomeThrottled, Ack{Status: OutcomeThrottled, Error: "rate limit exceeded"}
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return OutcomeRejected, Ack{Status: OutcomeRejected, Error: "malformed payload"}
	}

	subject, err := b.keys.Resolve(ctx, p.APIKey, remoteAddr)
	if err != nil {
		return OutcomeRejected, Ack{Status: OutcomeRejected, Error: identityMessage(err)}
	}
	if !subject.HasScope(string(models.ScopeWriteTelemetry)) {
		return OutcomeRejected, Ack{Status: OutcomeRejected, Error: "api key lacks write:telemetry scope"}
	}

	result, err := b.submitter.Submit(ctx, ingest.Request{
		Kind:         kind,
		StreamID:     streamID,
		AuthorUserID: subject.ID,
		Submission: models.BatchSubmission{
			Coordinates: p.Coordinates,
			SensorID:    p.SensorID,
			Data:        p.Data,
		},
	})
	if err != nil {
		if errors.Is(err, ingest.ErrValidation) {
			return OutcomeRejected, Ack{Status: OutcomeRejected, Error: err.Error()}
		}
		return OutcomeFailed, Ack{Status: OutcomeFailed, Error: "internal error"}
	}

	return OutcomeAccepted, Ack{
		Status:       OutcomeAccepted,
		Records:      result.Acks,
		Inserted:     result.Inserted,
		Duplicates:   result.Duplicates,
		Discarded:    result.Discarded,
		PointsEarned: result.Score.Awarded,
	}
}

func (b *Bridge) publishAck(topic string, ack Ack) {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()
	if client == nil {
		return
	}

	body, err := json.Marshal(ack)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to encode MQTT ack")
		return
	}
	// The publish token is not awaited.
	client.Publish(AckTopic(topic), byte(b.cfg.QoS), false, body)
}

// ParseTopic extracts the stream kind and ID from {root}/{kind}/{id}/data.
func ParseTopic(topic string) (models.StreamKind, string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[3] != "data" || parts[2] == "" {
		return "", "", fmt.Errorf("topic %q does not match {root}/{kind}/{stream}/data", topic)
	}
	kind, err := models.ParseStreamKind(parts[1])
	if err != nil {
		return "", "", err
	}
	return kind, parts[2], nil
}

// AckTopic maps a data topic to its ack topic.
func AckTopic(topic string) string {
	return strings.TrimSuffix(topic, "/data") + "/ack"
}

func identityMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredCredentials):
		return "api key expired"
	case errors.Is(err, auth.ErrRevokedCredentials):
		return "api key revoked"
	case errors.Is(err, auth.ErrAuthenticatorUnavailable):
		return "identity service unavailable"
	default:
		return "invalid api key"
	}
}
