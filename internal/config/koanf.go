// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/aeolus/config.yaml",
	"/etc/aeolus/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Telemetry: TelemetryConfig{
			Path:      "/data/aeolus-telemetry.duckdb",
			MaxMemory: "1GB",
		},
		Ledger: LedgerConfig{
			Driver:       "sqlite",
			DSN:          "/data/aeolus.db",
			MaxOpenConns: 10,
		},
		Points: PointsConfig{
			PerHour:  1,
			PerDay:   5,
			Timezone: "Local",
		},
		Ingest: IngestConfig{
			FutureHorizon:    24 * time.Hour,
			MaxBatchSize:     10000,
			TrailingSentinel: true,
		},
		Security: SecurityConfig{
			SessionTimeout:  24 * time.Hour,
			ClientTokenTTL:  time.Hour,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
			Google: GoogleConfig{
				Issuer: "https://accounts.google.com",
			},
		},
		Events: EventsConfig{
			Enabled:     true,
			Backend:     "gochannel",
			NATSURL:     "nats://127.0.0.1:4222",
			TopicPrefix: "aeolus",
		},
		MQTT: MQTTConfig{
			ClientID:       "aeolus-bridge",
			Topic:          "aeolus/+/+/data",
			QoS:            1,
			StreamRate:     1,
			StreamBurst:    5,
			ConnectTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the first config file found
// and the environment, then validates it.
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile is Load with an explicit file path. An empty path skips the file layer.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths arrive from the environment as comma-separated strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.admin_user_ids",
	"security.google.allowed_audiences",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak in.
var envMappings = map[string]string{
	// Server
	"http_host":    "server.host",
	"http_port":    "server.port",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	// Telemetry (DuckDB)
	"duckdb_path":       "telemetry.path",
	"duckdb_max_memory": "telemetry.max_memory",
	"duckdb_threads":    "telemetry.threads",

	// Ledger (gorm)
	"ledger_driver":         "ledger.driver",
	"ledger_dsn":            "ledger.dsn",
	"ledger_max_open_conns": "ledger.max_open_conns",
	"ledger_log_queries":    "ledger.log_queries",

	// Points
	"points_per_hour": "points.per_hour",
	"points_per_day":  "points.per_day",
	"points_timezone": "points.timezone",

	// Ingest
	"ingest_future_horizon":    "ingest.future_horizon",
	"ingest_max_batch_size":    "ingest.max_batch_size",
	"ingest_trailing_sentinel": "ingest.trailing_sentinel",

	// Security
	"jwt_secret":          "security.jwt_secret",
	"session_timeout":     "security.session_timeout",
	"client_token_ttl":    "security.client_token_ttl",
	"session_store_path":  "security.session_store_path",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",
	"admin_user_ids":      "security.admin_user_ids",
	"casbin_model_path":   "security.casbin_model_path",
	"casbin_policy_path":  "security.casbin_policy_path",

	// Google sign-in
	"google_auth_enabled":      "security.google.enabled",
	"google_issuer":            "security.google.issuer",
	"google_client_id":         "security.google.client_id",
	"google_client_secret":     "security.google.client_secret",
	"google_allowed_audiences": "security.google.allowed_audiences",

	// Events
	"events_enabled":      "events.enabled",
	"events_backend":      "events.backend",
	"nats_url":            "events.nats_url",
	"events_topic_prefix": "events.topic_prefix",

	// MQTT bridge
	"mqtt_enabled":         "mqtt.enabled",
	"mqtt_broker":          "mqtt.broker",
	"mqtt_client_id":       "mqtt.client_id",
	"mqtt_username":        "mqtt.username",
	"mqtt_password":        "mqtt.password",
	"mqtt_topic":           "mqtt.topic",
	"mqtt_qos":             "mqtt.qos",
	"mqtt_stream_rate":     "mqtt.stream_rate",
	"mqtt_stream_burst":    "mqtt.stream_burst",
	"mqtt_connect_timeout": "mqtt.connect_timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
