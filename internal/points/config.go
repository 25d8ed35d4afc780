// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package points

import (
	"fmt"
	"time"
)

// Default award values.
const (
	DefaultPerHour = 1
	DefaultPerDay  = 5
)

// Config is the immutable award table. Construct it with NewConfig; the
// fields are unexported so an Engine's table cannot change after creation.
type Config struct {
	perHour  int
	perDay   int
	location *time.Location
}

// NewConfig validates and builds an award table. A nil location means UTC.
func NewConfig(perHour, perDay int, loc *time.Location) (Config, error) {
	if perHour < 0 || perDay < 0 {
		return Config{}, fmt.Errorf("points: negative award (per hour %d, per day %d)", perHour, perDay)
	}
	if loc == nil {
		loc = time.UTC
	}
	return Config{perHour: perHour, perDay: perDay, location: loc}, nil
}

// DefaultConfig returns the default table bucketed in UTC.
func DefaultConfig() Config {
	return Config{perHour: DefaultPerHour, perDay: DefaultPerDay, location: time.UTC}
}

func (c Config) PerHour() int { return c.perHour }

func (c Config) PerDay() int { return c.perDay }

// Location is the zone used for day and hour buckets.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}
