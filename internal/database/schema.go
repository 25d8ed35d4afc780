// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/aeolus/internal/logging"
	"github.com/tomtom215/aeolus/internal/models"
)

// tableFor maps a stream kind to its table.
func tableFor(kind models.StreamKind) (string, error) {
	switch kind {
	case models.StreamWeatherStation:
		return "weather_data", nil
	case models.StreamKitePlayer:
		return "kite_data", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStreamKind, kind)
	}
}

// Both telemetry tables share one shape. Uniqueness of (stream_id, timestamp)
// is enforced by the ingestion path, not by a constraint.
func telemetryTableStatements(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id VARCHAR PRIMARY KEY,
	stream_id VARCHAR NOT NULL,
	author_user_id VARCHAR NOT NULL,
	sensor_id VARCHAR,
	latitude DOUBLE NOT NULL,
	longitude DOUBLE NOT NULL,
	altitude DOUBLE,
	timestamp BIGINT NOT NULL,
	temperature DOUBLE,
	humidity DOUBLE,
	pressure DOUBLE,
	precipitation DOUBLE,
	solar_irradiance DOUBLE,
	light_intensity DOUBLE,
	tvoc DOUBLE,
	created_at TIMESTAMP NOT NULL
)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_stream_ts ON %[1]s (stream_id, timestamp)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_author ON %[1]s (author_user_id)`, table),
	}
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name VARCHAR NOT NULL,
	applied_at TIMESTAMP NOT NULL
);
`

// Migration is a versioned schema change applied exactly once.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// migrations are append-only. Never edit or remove an applied entry.
func migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_weather_data", Statements: telemetryTableStatements("weather_data")},
		{Version: 2, Name: "create_kite_data", Statements: telemetryTableStatements("kite_data")},
	}
}

func (db *DB) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations() {
		if applied[m.Version] {
			continue
		}
		for _, stmt := range m.Statements {
			if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
			}
		}
		if _, err := db.conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Name, db.now()); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}
		logging.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applied telemetry migration")
	}
	return nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer closeWithLog(rows, "rows")

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// SchemaVersion returns the highest applied migration version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var version int
	if err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
