// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Topic suffixes, joined to the configured prefix.
const (
	TopicTelemetryIngested = "telemetry.ingested"
	TopicPointsAwarded     = "points.awarded"
)

// TelemetryIngested describes one committed batch.
type TelemetryIngested struct {
	EventID       string    `json:"event_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Kind          string    `json:"kind"`
	StreamID      string    `json:"station_or_player_id"`
	AuthorUserID  string    `json:"author_user_id"`
	Submitted     int       `json:"submitted"`
	Inserted      int       `json:"inserted"`
	Duplicates    int       `json:"duplicates"`
	Discarded     int       `json:"discarded"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PointsAwarded describes a non-zero award. Frozen is set when the balance
// was frozen and the award was recorded only in the log.
type PointsAwarded struct {
	EventID       string    `json:"event_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	AuthorUserID  string    `json:"author_user_id"`
	Amount        int       `json:"amount"`
	Hours         int       `json:"hours"`
	Days          int       `json:"days"`
	Cursor        int64     `json:"cursor"`
	Frozen        bool      `json:"frozen"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (e *TelemetryIngested) validate() error {
	if e.Kind == "" || e.StreamID == "" || e.AuthorUserID == "" {
		return fmt.Errorf("telemetry.ingested requires kind, stream and author")
	}
	return nil
}

func (e *PointsAwarded) validate() error {
	if e.AuthorUserID == "" {
		return fmt.Errorf("points.awarded requires author")
	}
	if e.Amount <= 0 {
		return fmt.Errorf("points.awarded requires a positive amount, got %d", e.Amount)
	}
	return nil
}

type validatable interface {
	validate() error
}

// encode validates and marshals an event payload.
func encode(event validatable) ([]byte, error) {
	if err := event.validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// DecodeTelemetryIngested unmarshals a telemetry.ingested payload.
func DecodeTelemetryIngested(data []byte) (*TelemetryIngested, error) {
	var e TelemetryIngested
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal telemetry.ingested: %w", err)
	}
	return &e, nil
}

// DecodePointsAwarded unmarshals a points.awarded payload.
func DecodePointsAwarded(data []byte) (*PointsAwarded, error) {
	var e PointsAwarded
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal points.awarded: %w", err)
	}
	return &e, nil
}
