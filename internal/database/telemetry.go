// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tomtom215/aeolus/internal/logging"
	"github.com/tomtom215/aeolus/internal/metrics"
	"github.com/tomtom215/aeolus/internal/models"
)

const (
	// insertChunkSize bounds the number of rows per INSERT statement.
	insertChunkSize = 250
	// lookupChunkSize bounds the IN list of a timestamp lookup.
	lookupChunkSize = 1000
)

const telemetryColumns = `id, stream_id, author_user_id, sensor_id, latitude, longitude, altitude,
	timestamp, temperature, humidity, pressure, precipitation, solar_irradiance,
	light_intensity, tvoc, created_at`

const telemetryColumnCount = 16

// FindByTimestamps returns the stream's stored records whose timestamp is in
// timestamps.
func (db *DB) FindByTimestamps(ctx context.Context, kind models.StreamKind, streamID string, timestamps []int64) (found []models.TelemetryRecord, err error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	if len(timestamps) == 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("find_by_timestamps", table, time.Since(start), err) }()

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	for lo := 0; lo < len(timestamps); lo += lookupChunkSize {
		chunk := timestamps[lo:min(lo+lookupChunkSize, len(timestamps))]

		args := make([]interface{}, 0, len(chunk)+1)
		args = append(args, streamID)
		for _, ts := range chunk {
			args = append(args, ts)
		}

		query := fmt.Sprintf(`SELECT %s FROM %s WHERE stream_id = ? AND timestamp IN (%s) ORDER BY timestamp`,
			telemetryColumns, table, placeholders(len(chunk)))

		records, qErr := db.queryRecords(ctx, kind, query, args...)
		if qErr != nil {
			err = fmt.Errorf("failed to look up %s timestamps for %s: %w", table, streamID, qErr)
			return nil, err
		}
		found = append(found, records...)
	}
	return found, nil
}

// InsertBatch appends records to the stream kind's table in one DuckDB
// transaction and returns the number of rows written. Missing IDs and
// creation times are assigned in place.
func (db *DB) InsertBatch(ctx context.Context, kind models.StreamKind, records []models.TelemetryRecord) (inserted int64, err error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	began := time.Now()
	defer func() { metrics.RecordDBQuery("insert", table, time.Since(began), err) }()

	now := db.now()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = now
		}
		records[i].Kind = kind
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		err = fmt.Errorf("failed to begin telemetry transaction: %w", err)
		return 0, err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Telemetry rollback failed")
			}
		}
	}()

	for lo := 0; lo < len(records); lo += insertChunkSize {
		chunk := records[lo:min(lo+insertChunkSize, len(records))]

		rowPlaceholder := "(" + placeholders(telemetryColumnCount) + ")"
		values := make([]string, len(chunk))
		args := make([]interface{}, 0, len(chunk)*telemetryColumnCount)
		for i := range chunk {
			values[i] = rowPlaceholder
			args = append(args, recordArgs(&chunk[i])...)
		}

		query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s`, table, telemetryColumns, strings.Join(values, ", "))
		res, execErr := tx.ExecContext(ctx, query, args...)
		if execErr != nil {
			err = fmt.Errorf("failed to insert %s rows: %w", table, execErr)
			return 0, err
		}
		n, raErr := res.RowsAffected()
		if raErr != nil {
			err = fmt.Errorf("failed to count inserted %s rows: %w", table, raErr)
			return 0, err
		}
		inserted += n
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("failed to commit telemetry transaction: %w", err)
		return 0, err
	}
	return inserted, nil
}

// RangeQuery selects a window of one stream.
type RangeQuery struct {
	StreamID string
	From     int64 // inclusive, Unix millis; 0 = unbounded
	To       int64 // inclusive, Unix millis; 0 = unbounded
	Limit    int
}

// ListRange returns a stream's records in timestamp order.
func (db *DB) ListRange(ctx context.Context, kind models.StreamKind, q RangeQuery) ([]models.TelemetryRecord, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where := []string{"stream_id = ?"}
	args := []interface{}{q.StreamID}
	if q.From > 0 {
		where = append(where, "timestamp >= ?")
		args = append(args, q.From)
	}
	if q.To > 0 {
		where = append(where, "timestamp <= ?")
		args = append(args, q.To)
	}
	args = append(args, q.Limit)

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY timestamp LIMIT ?`,
		telemetryColumns, table, strings.Join(where, " AND "))
	records, err := db.queryRecords(ctx, kind, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s for %s: %w", table, q.StreamID, err)
	}
	return records, nil
}

// CountStream returns the number of stored records for a stream.
func (db *DB) CountStream(ctx context.Context, kind models.StreamKind, streamID string) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE stream_id = ?`, table)
	if err := db.conn.QueryRowContext(ctx, query, streamID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s for %s: %w", table, streamID, err)
	}
	return n, nil
}

func (db *DB) queryRecords(ctx context.Context, kind models.StreamKind, query string, args ...interface{}) ([]models.TelemetryRecord, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeWithLog(rows, "rows")

	var records []models.TelemetryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		rec.Kind = kind
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (models.TelemetryRecord, error) {
	var (
		rec      models.TelemetryRecord
		sensorID sql.NullString
	)
	err := rows.Scan(
		&rec.ID, &rec.Metadata.StreamID, &rec.Metadata.AuthorUserID, &sensorID,
		&rec.Metadata.Coordinates.Latitude, &rec.Metadata.Coordinates.Longitude, &rec.Metadata.Coordinates.Altitude,
		&rec.Timestamp, &rec.Temperature, &rec.Humidity, &rec.Pressure, &rec.Precipitation,
		&rec.SolarIrradiance, &rec.LightIntensity, &rec.TVOC, &rec.CreatedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan telemetry row: %w", err)
	}
	rec.Metadata.SensorID = sensorID.String
	return rec, nil
}

func recordArgs(r *models.TelemetryRecord) []interface{} {
	var sensorID interface{}
	if r.Metadata.SensorID != "" {
		sensorID = r.Metadata.SensorID
	}
	return []interface{}{
		r.ID, r.Metadata.StreamID, r.Metadata.AuthorUserID, sensorID,
		r.Metadata.Coordinates.Latitude, r.Metadata.Coordinates.Longitude, nullableFloat(r.Metadata.Coordinates.Altitude),
		r.Timestamp, nullableFloat(r.Temperature), nullableFloat(r.Humidity), nullableFloat(r.Pressure),
		nullableFloat(r.Precipitation), nullableFloat(r.SolarIrradiance), nullableFloat(r.LightIntensity),
		nullableFloat(r.TVOC), r.CreatedAt,
	}
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
