// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

// Package models holds the data structures shared between the HTTP API, the
// MQTT bridge, the ingestion coordinator and the telemetry store.
package models

import (
	"fmt"
	"time"
)

// StreamKind distinguishes fixed weather stations from kite-borne sensors.
type StreamKind string

const (
	StreamWeatherStation StreamKind = "weather_station"
	StreamKitePlayer     StreamKind = "kite_player"
)

// Valid reports whether k is a known stream kind.
func (k StreamKind) Valid() bool {
	return k == StreamWeatherStation || k == StreamKitePlayer
}

// ParseStreamKind accepts the kind names used in MQTT topics and URLs.
func ParseStreamKind(s string) (StreamKind, error) {
	switch s {
	case "weather_station", "weather-stations", "station":
		return StreamWeatherStation, nil
	case "kite_player", "kite-players", "kite":
		return StreamKitePlayer, nil
	default:
		return "", fmt.Errorf("unknown stream kind %q", s)
	}
}

// Coordinates locate the station or player when the batch was recorded.
type Coordinates struct {
	Latitude  float64  `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64  `json:"longitude" validate:"gte=-180,lte=180"`
	Altitude  *float64 `json:"altitude,omitempty"`
}

// Reading is one sensor sample in an inbound batch. Every sensor field is
// optional. The timestamp is Unix milliseconds, or derived from TimestampISO.
type Reading struct {
	Timestamp       int64    `json:"timestamp,omitempty" validate:"required_without=TimestampISO,gte=0"`
	TimestampISO    string   `json:"timestamp_iso,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	Humidity        *float64 `json:"humidity,omitempty" validate:"omitempty,gte=0,lte=100"`
	Pressure        *float64 `json:"pressure,omitempty" validate:"omitempty,gte=0"`
	Precipitation   *float64 `json:"precipitation,omitempty" validate:"omitempty,gte=0"`
	SolarIrradiance *float64 `json:"solar_irradiance,omitempty" validate:"omitempty,gte=0"`
	LightIntensity  *float64 `json:"light_intensity,omitempty" validate:"omitempty,gte=0"`
	TVOC            *float64 `json:"tvoc,omitempty" validate:"omitempty,gte=0"`
}

// ResolveTimestamp returns the reading time in Unix milliseconds. An explicit
// millisecond timestamp wins over TimestampISO.
func (r *Reading) ResolveTimestamp() (int64, error) {
	if r.Timestamp != 0 {
		return r.Timestamp, nil
	}
	if r.TimestampISO == "" {
		return 0, fmt.Errorf("reading has neither timestamp nor timestamp_iso")
	}
	t, err := time.Parse(time.RFC3339Nano, r.TimestampISO)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp_iso %q: %w", r.TimestampISO, err)
	}
	return t.UnixMilli(), nil
}

// BatchSubmission is the body of a batch upload. The stream id and author
// come from the URL and the resolved identity, not the body.
type BatchSubmission struct {
	Coordinates *Coordinates `json:"coordinates" validate:"required"`
	SensorID    string       `json:"sensor_id,omitempty" validate:"omitempty,max=128"`
	Data        []Reading    `json:"data" validate:"required,min=1,dive"`
}

// TelemetryMetadata is stamped on every record of a batch.
type TelemetryMetadata struct {
	AuthorUserID string      `json:"author_user_id"`
	StreamID     string      `json:"station_or_player_id"`
	Coordinates  Coordinates `json:"coordinates"`
	SensorID     string      `json:"sensor_id,omitempty"`
}

// TelemetryRecord is a persisted reading. Records are never updated.
type TelemetryRecord struct {
	ID              string            `json:"id"`
	Kind            StreamKind        `json:"kind"`
	Timestamp       int64             `json:"timestamp"`
	Metadata        TelemetryMetadata `json:"metadata"`
	Temperature     *float64          `json:"temperature,omitempty"`
	Humidity        *float64          `json:"humidity,omitempty"`
	Pressure        *float64          `json:"pressure,omitempty"`
	Precipitation   *float64          `json:"precipitation,omitempty"`
	SolarIrradiance *float64          `json:"solar_irradiance,omitempty"`
	LightIntensity  *float64          `json:"light_intensity,omitempty"`
	TVOC            *float64          `json:"tvoc,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// NewTelemetryRecord copies a reading's sensor values into a record.
// ID and CreatedAt are assigned by the store.
func NewTelemetryRecord(kind StreamKind, ts int64, r *Reading, meta TelemetryMetadata) TelemetryRecord {
	return TelemetryRecord{
		Kind:            kind,
		Timestamp:       ts,
		Metadata:        meta,
		Temperature:     r.Temperature,
		Humidity:        r.Humidity,
		Pressure:        r.Pressure,
		Precipitation:   r.Precipitation,
		SolarIrradiance: r.SolarIrradiance,
		LightIntensity:  r.LightIntensity,
		TVOC:            r.TVOC,
	}
}

// IngestAck is one element of a batch submission response. The trailing
// "batch processed" marker has only Timestamp set.
type IngestAck struct {
	ID        string     `json:"id,omitempty"`
	Timestamp int64      `json:"timestamp"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}
