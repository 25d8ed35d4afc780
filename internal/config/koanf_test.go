// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Points.PerHour != 1 || cfg.Points.PerDay != 5 {
		t.Errorf("Points = %+v, want per_hour=1 per_day=5", cfg.Points)
	}
	if cfg.Ingest.FutureHorizon != 24*time.Hour {
		t.Errorf("Ingest.FutureHorizon = %v, want 24h", cfg.Ingest.FutureHorizon)
	}
	if !cfg.Ingest.TrailingSentinel {
		t.Error("Ingest.TrailingSentinel should default to true")
	}
	if cfg.Ledger.Driver != "sqlite" {
		t.Errorf("Ledger.Driver = %q, want sqlite", cfg.Ledger.Driver)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT bridge should be disabled by default")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"HTTP_PORT", "server.port"},
		{"DUCKDB_PATH", "telemetry.path"},
		{"LEDGER_DSN", "ledger.dsn"},
		{"POINTS_PER_HOUR", "points.per_hour"},
		{"POINTS_TIMEZONE", "points.timezone"},
		{"INGEST_TRAILING_SENTINEL", "ingest.trailing_sentinel"},
		{"GOOGLE_CLIENT_ID", "security.google.client_id"},
		{"MQTT_BROKER", "mqtt.broker"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.input); got != tt.expected {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("POINTS_PER_HOUR", "3")
	t.Setenv("POINTS_PER_DAY", "20")
	t.Setenv("POINTS_TIMEZONE", "UTC")
	t.Setenv("INGEST_TRAILING_SENTINEL", "false")
	t.Setenv("INGEST_FUTURE_HORIZON", "12h")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Points.PerHour != 3 || cfg.Points.PerDay != 20 {
		t.Errorf("Points = %+v", cfg.Points)
	}
	if cfg.Ingest.TrailingSentinel {
		t.Error("TrailingSentinel should be false from env")
	}
	if cfg.Ingest.FutureHorizon != 12*time.Hour {
		t.Errorf("FutureHorizon = %v, want 12h", cfg.Ingest.FutureHorizon)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := strings.Join([]string{
		"server:",
		"  port: 7000",
		"points:",
		"  per_hour: 2",
		"  per_day: 7",
		"ledger:",
		"  driver: postgres",
		"  dsn: postgres://aeolus@localhost/aeolus",
		"security:",
		"  jwt_secret: " + testSecret,
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("POINTS_PER_DAY", "9")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000 from file", cfg.Server.Port)
	}
	if cfg.Points.PerHour != 2 {
		t.Errorf("PerHour = %d, want 2 from file", cfg.Points.PerHour)
	}
	if cfg.Points.PerDay != 9 {
		t.Errorf("PerDay = %d, want 9 from env", cfg.Points.PerDay)
	}
	if cfg.Ledger.Driver != "postgres" {
		t.Errorf("Ledger.Driver = %q, want postgres", cfg.Ledger.Driver)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Security.JWTSecret = testSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults with secret", func(*Config) {}, ""},
		{"short secret", func(c *Config) { c.Security.JWTSecret = "short" }, "JWT_SECRET"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"negative points", func(c *Config) { c.Points.PerDay = -1 }, "must not be negative"},
		{"bad timezone", func(c *Config) { c.Points.Timezone = "Mars/Olympus" }, "POINTS_TIMEZONE"},
		{"unknown ledger driver", func(c *Config) { c.Ledger.Driver = "oracle" }, "LEDGER_DRIVER"},
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true }, "MQTT_BROKER"},
		{"wildcard cors in production", func(c *Config) { c.Server.Environment = "production" }, "CORS_ORIGINS"},
		{"google without client id", func(c *Config) { c.Security.Google.Enabled = true }, "GOOGLE_CLIENT_ID"},
		{"unknown events backend", func(c *Config) { c.Events.Backend = "kafka" }, "EVENTS_BACKEND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
