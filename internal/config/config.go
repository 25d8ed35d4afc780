// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

// Package config loads Aeolus configuration from built-in defaults, an
// optional YAML file and environment variables (in increasing precedence)
// using koanf v2.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Ledger    LedgerConfig    `koanf:"ledger"`
	Points    PointsConfig    `koanf:"points"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Security  SecurityConfig  `koanf:"security"`
	Events    EventsConfig    `koanf:"events"`
	MQTT      MQTTConfig      `koanf:"mqtt"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development or production
}

// TelemetryConfig configures the DuckDB telemetry store.
type TelemetryConfig struct {
	Path      string `koanf:"path"`       // ":memory:" for an ephemeral store
	MaxMemory string `koanf:"max_memory"` // DuckDB memory_limit, e.g. "1GB"
	Threads   int    `koanf:"threads"`    // 0 = DuckDB default
}

// LedgerConfig configures the relational store holding points, users, API
// keys and clients.
type LedgerConfig struct {
	Driver       string `koanf:"driver"` // sqlite or postgres
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	LogQueries   bool   `koanf:"log_queries"`
}

// PointsConfig is the award table. It is copied into an immutable
// points.Config at startup.
type PointsConfig struct {
	PerHour  int    `koanf:"per_hour"`
	PerDay   int    `koanf:"per_day"`
	Timezone string `koanf:"timezone"` // IANA name; "Local" uses the process zone
}

// IngestConfig tunes the batch submission path.
type IngestConfig struct {
	FutureHorizon    time.Duration `koanf:"future_horizon"`
	MaxBatchSize     int           `koanf:"max_batch_size"`
	TrailingSentinel bool          `koanf:"trailing_sentinel"`
}

// SecurityConfig holds authentication and HTTP hardening settings.
type SecurityConfig struct {
	JWTSecret        string        `koanf:"jwt_secret"`
	SessionTimeout   time.Duration `koanf:"session_timeout"`
	ClientTokenTTL   time.Duration `koanf:"client_token_ttl"`
	SessionStorePath string        `koanf:"session_store_path"` // badger dir; empty keeps revocations in memory
	RateLimitReqs    int           `koanf:"rate_limit_reqs"`
	RateLimitWindow  time.Duration `koanf:"rate_limit_window"`
	RateLimitOff     bool          `koanf:"rate_limit_disabled"`
	CORSOrigins      []string      `koanf:"cors_origins"`
	AdminUserIDs     []string      `koanf:"admin_user_ids"`
	CasbinModelPath  string        `koanf:"casbin_model_path"`
	CasbinPolicyPath string        `koanf:"casbin_policy_path"`
	Google           GoogleConfig  `koanf:"google"`
}

// GoogleConfig configures Google ID token verification.
type GoogleConfig struct {
	Enabled          bool     `koanf:"enabled"`
	Issuer           string   `koanf:"issuer"`
	ClientID         string   `koanf:"client_id"`
	ClientSecret     string   `koanf:"client_secret"`
	AllowedAudiences []string `koanf:"allowed_audiences"`
}

// EventsConfig configures the watermill publisher.
type EventsConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Backend     string `koanf:"backend"` // gochannel or nats
	NATSURL     string `koanf:"nats_url"`
	TopicPrefix string `koanf:"topic_prefix"`
}

// MQTTConfig configures the optional device bridge.
type MQTTConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Broker         string        `koanf:"broker"`
	ClientID       string        `koanf:"client_id"`
	Username       string        `koanf:"username"`
	Password       string        `koanf:"password"`
	Topic          string        `koanf:"topic"`
	QoS            int           `koanf:"qos"`
	StreamRate     float64       `koanf:"stream_rate"` // batches per second per stream
	StreamBurst    int           `koanf:"stream_burst"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// IsProduction reports whether production-only checks apply.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}
