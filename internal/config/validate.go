// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// MinJWTSecretLength is the minimum HS256 secret size in bytes.
const MinJWTSecretLength = 32

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateLedger,
		c.validatePoints,
		c.validateIngest,
		c.validateSecurity,
		c.validateEvents,
		c.validateMQTT,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateLedger() error {
	switch c.Ledger.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("LEDGER_DRIVER must be sqlite or postgres, got %q", c.Ledger.Driver)
	}
	if c.Ledger.DSN == "" {
		return errors.New("LEDGER_DSN is required")
	}
	return nil
}

func (c *Config) validatePoints() error {
	if c.Points.PerHour < 0 || c.Points.PerDay < 0 {
		return fmt.Errorf("point values must not be negative (per_hour=%d, per_day=%d)", c.Points.PerHour, c.Points.PerDay)
	}
	if _, err := c.Points.Location(); err != nil {
		return fmt.Errorf("POINTS_TIMEZONE is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.FutureHorizon <= 0 {
		return errors.New("INGEST_FUTURE_HORIZON must be positive")
	}
	if c.Ingest.MaxBatchSize < 1 {
		return errors.New("INGEST_MAX_BATCH_SIZE must be at least 1")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", MinJWTSecretLength)
	}
	if c.Security.SessionTimeout <= 0 || c.Security.ClientTokenTTL <= 0 {
		return errors.New("SESSION_TIMEOUT and CLIENT_TOKEN_TTL must be positive")
	}
	if !c.Security.RateLimitOff && (c.Security.RateLimitReqs < 1 || c.Security.RateLimitWindow <= 0) {
		return errors.New("rate limiting requires RATE_LIMIT_REQUESTS >= 1 and a positive RATE_LIMIT_WINDOW")
	}
	if c.Server.IsProduction() {
		for _, origin := range c.Security.CORSOrigins {
			if origin == "*" {
				return errors.New("CORS_ORIGINS must not contain * in production")
			}
		}
	}
	if g := c.Security.Google; g.Enabled {
		if g.ClientID == "" {
			return errors.New("GOOGLE_CLIENT_ID is required when Google sign-in is enabled")
		}
		if err := validateHTTPURL(g.Issuer, "GOOGLE_ISSUER"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	switch c.Events.Backend {
	case "gochannel":
	case "nats":
		if c.Events.NATSURL == "" {
			return errors.New("NATS_URL is required when EVENTS_BACKEND=nats")
		}
	default:
		return fmt.Errorf("EVENTS_BACKEND must be gochannel or nats, got %q", c.Events.Backend)
	}
	return nil
}

func (c *Config) validateMQTT() error {
	if !c.MQTT.Enabled {
		return nil
	}
	if c.MQTT.Broker == "" {
		return errors.New("MQTT_BROKER is required when MQTT_ENABLED=true")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.MQTT.StreamRate <= 0 || c.MQTT.StreamBurst < 1 {
		return errors.New("MQTT_STREAM_RATE must be positive and MQTT_STREAM_BURST at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

// Location resolves the configured award timezone.
func (p PointsConfig) Location() (*time.Location, error) {
	if p.Timezone == "" || p.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(p.Timezone)
}

func validateHTTPURL(rawURL, fieldName string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	return nil
}
