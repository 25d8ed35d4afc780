// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/aeolus/internal/events"
	"github.com/tomtom215/aeolus/internal/ledger"
	"github.com/tomtom215/aeolus/internal/logging"
	"github.com/tomtom215/aeolus/internal/metrics"
	"github.com/tomtom215/aeolus/internal/models"
	"github.com/tomtom215/aeolus/internal/points"
	"github.com/tomtom215/aeolus/internal/validation"
)

// Defaults for Options fields left at zero.
const (
	DefaultFutureHorizon = 24 * time.Hour
	DefaultMaxBatchSize  = 10000
)

// Options tune a Coordinator.
type Options struct {
	// FutureHorizon discards readings stamped further than this ahead of now.
	FutureHorizon time.Duration
	// MaxBatchSize bounds len(Submission.Data).
	MaxBatchSize int
	// TrailingSentinel appends a timestamp-only ack to every response.
	TrailingSentinel bool
}

// Request is one batch submission with its resolved identity.
type Request struct {
	Kind         models.StreamKind
	StreamID     string
	AuthorUserID string
	Submission   models.BatchSubmission
}

// Result is the successful outcome of Submit.
type Result struct {
	// Acks holds one entry per stored reading, new or pre-existing, in
	// submission order, followed by the sentinel when enabled.
	Acks       []models.IngestAck
	Submitted  int
	Inserted   int
	Duplicates int
	Discarded  int
	Score      points.Result
	Outcome    ledger.Outcome
}

// Coordinator runs batch submissions. It is safe for concurrent use; each
// Submit opens its own ledger unit of work.
type Coordinator struct {
	telemetry TelemetryStore
	ledger    Ledger
	engine    *points.Engine
	publisher EventPublisher
	opts      Options
	now       func() time.Time
}

// NewCoordinator wires a coordinator. publisher may be nil.
func NewCoordinator(telemetry TelemetryStore, l Ledger, engine *points.Engine, publisher EventPublisher, opts Options) *Coordinator {
	if opts.FutureHorizon <= 0 {
		opts.FutureHorizon = DefaultFutureHorizon
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultMaxBatchSize
	}
	return &Coordinator{
		telemetry: telemetry,
		ledger:    l,
		engine:    engine,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
	}
}

// timedReading is a submitted reading with its resolved timestamp.
type timedReading struct {
	ts      int64
	reading *models.Reading
}

// Submit ingests one batch. On error no partial result is returned; see the
// package documentation for what an error after persistence leaves behind.
func (c *Coordinator) Submit(ctx context.Context, req Request) (result *Result, err error) {
	start := time.Now()
	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	ctx = logging.ContextWithUserID(ctx, req.AuthorUserID)
	log := logging.Ctx(ctx).With().
		Str("kind", string(req.Kind)).
		Str("stream_id", req.StreamID).
		Logger()

	defer func() {
		rec := metrics.IngestResult{
			Kind:     string(req.Kind),
			Outcome:  outcomeLabel(err),
			Duration: time.Since(start),
		}
		if result != nil {
			rec.Inserted = result.Inserted
			rec.Duplicates = result.Duplicates
			rec.Future = result.Discarded
		}
		metrics.RecordIngest(rec)
	}()

	// RECEIVED
	readings, err := c.validate(&req)
	if err != nil {
		log.Debug().Err(err).Msg("Batch rejected")
		return nil, err
	}
	log.Debug().Int("readings", len(readings)).Msg("Batch received")

	// TELEMETRY_DEDUPED
	horizon := c.now().Add(c.opts.FutureHorizon).UnixMilli()
	accepted := make([]timedReading, 0, len(readings))
	for _, r := range readings {
		if r.ts > horizon {
			continue
		}
		accepted = append(accepted, r)
	}
	discarded := len(readings) - len(accepted)

	existing, err := c.existingByTimestamp(ctx, req, accepted)
	if err != nil {
		return nil, err
	}

	meta := models.TelemetryMetadata{
		AuthorUserID: req.AuthorUserID,
		StreamID:     req.StreamID,
		Coordinates:  *req.Submission.Coordinates,
		SensorID:     req.Submission.SensorID,
	}
	queued := make(map[int64]struct{}, len(accepted))
	toInsert := make([]models.TelemetryRecord, 0, len(accepted))
	for _, r := range accepted {
		if _, ok := existing[r.ts]; ok {
			continue
		}
		if _, ok := queued[r.ts]; ok {
			continue
		}
		queued[r.ts] = struct{}{}
		toInsert = append(toInsert, models.NewTelemetryRecord(req.Kind, r.ts, r.reading, meta))
	}

	// TELEMETRY_PERSISTED
	if len(toInsert) > 0 {
		inserted, insErr := c.telemetry.InsertBatch(ctx, req.Kind, toInsert)
		if insErr != nil {
			return nil, fmt.Errorf("%w: insert: %w", ErrTelemetryStore, insErr)
		}
		if inserted != int64(len(toInsert)) {
			return nil, &InsertionMismatchError{Expected: len(toInsert), Inserted: inserted}
		}
		log.Debug().Int("inserted", len(toInsert)).Msg("Telemetry persisted")
	}

	// TX_OPEN .. TX_COMMITTED
	scoring := make([]int64, len(accepted))
	for i, r := range accepted {
		scoring[i] = r.ts
	}
	score, outcome, err := c.award(ctx, req.AuthorUserID, scoring)
	if err != nil {
		log.Error().Err(err).Msg("Points transaction aborted")
		return nil, err
	}

	result = &Result{
		Acks:       c.acks(accepted, existing, toInsert),
		Submitted:  len(readings),
		Inserted:   len(toInsert),
		Duplicates: len(accepted) - len(toInsert),
		Discarded:  discarded,
		Score:      score,
		Outcome:    outcome,
	}

	c.recordAward(ctx, req.AuthorUserID, result)
	c.publish(ctx, req, result)

	log.Info().
		Int("submitted", result.Submitted).
		Int("inserted", result.Inserted).
		Int("duplicates", result.Duplicates).
		Int("discarded", result.Discarded).
		Int("awarded", score.Awarded).
		Str("outcome", outcome.String()).
		Msg("Batch ingested")

	return result, nil
}

// validate checks the request and resolves every reading's timestamp,
// keeping submission order.
func (c *Coordinator) validate(req *Request) ([]timedReading, error) {
	if !req.Kind.Valid() {
		return nil, newValidationError("kind", "oneof", fmt.Sprintf("unknown stream kind %q", req.Kind), string(req.Kind))
	}
	if req.AuthorUserID == "" {
		return nil, newValidationError("author_user_id", "required", "author_user_id is required", "")
	}
	if verr := validation.ValidateVar("station_or_player_id", req.StreamID, "streamid"); verr != nil {
		return nil, &ValidationError{Details: verr}
	}
	if verr := validation.ValidateStruct(&req.Submission); verr != nil {
		return nil, &ValidationError{Details: verr}
	}
	if n := len(req.Submission.Data); n > c.opts.MaxBatchSize {
		return nil, newValidationError("data", "max",
			fmt.Sprintf("data must contain at most %d items", c.opts.MaxBatchSize), n)
	}

	readings := make([]timedReading, len(req.Submission.Data))
	for i := range req.Submission.Data {
		r := &req.Submission.Data[i]
		ts, err := r.ResolveTimestamp()
		if err != nil {
			return nil, newValidationError(fmt.Sprintf("data[%d].timestamp_iso", i), "datetime", err.Error(), r.TimestampISO)
		}
		readings[i] = timedReading{ts: ts, reading: r}
	}
	return readings, nil
}

func (c *Coordinator) existingByTimestamp(ctx context.Context, req Request, accepted []timedReading) (map[int64]models.TelemetryRecord, error) {
	existing := make(map[int64]models.TelemetryRecord)
	if len(accepted) == 0 {
		return existing, nil
	}

	seen := make(map[int64]struct{}, len(accepted))
	timestamps := make([]int64, 0, len(accepted))
	for _, r := range accepted {
		if _, ok := seen[r.ts]; ok {
			continue
		}
		seen[r.ts] = struct{}{}
		timestamps = append(timestamps, r.ts)
	}

	found, err := c.telemetry.FindByTimestamps(ctx, req.Kind, req.StreamID, timestamps)
	if err != nil {
		return nil, fmt.Errorf("%w: dedupe lookup: %w", ErrTelemetryStore, err)
	}
	for _, rec := range found {
		if _, ok := existing[rec.Timestamp]; !ok {
			existing[rec.Timestamp] = rec
		}
	}
	return existing, nil
}

// award runs the ledger unit of work. Any error rolls it back.
func (c *Coordinator) award(ctx context.Context, userID string, timestamps []int64) (score points.Result, outcome ledger.Outcome, err error) {
	tx, err := c.ledger.Begin(ctx)
	if err != nil {
		return score, outcome, transactionError("begin", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Ctx(ctx).Error().Err(rbErr).AnErr("original_error", err).Msg("Ledger rollback failed")
			}
		}
	}()

	cursor, err := tx.ReadCursor(ctx, userID)
	if err != nil {
		return score, outcome, transactionError("read cursor", err)
	}

	// SCORED
	score = c.engine.Calculate(cursor, timestamps)

	// LEDGER_COMMITTED
	outcome, err = tx.ApplyAward(ctx, userID, int64(score.Awarded), score.Cursor)
	if err != nil {
		return score, outcome, transactionError("apply award", err)
	}

	if err = tx.Commit(); err != nil {
		return score, outcome, transactionError("commit", err)
	}
	return score, outcome, nil
}

// acks lists each distinct accepted timestamp once, in submission order,
// pointing at the stored record (new or pre-existing).
func (c *Coordinator) acks(accepted []timedReading, existing map[int64]models.TelemetryRecord, inserted []models.TelemetryRecord) []models.IngestAck {
	byTS := make(map[int64]*models.TelemetryRecord, len(existing)+len(inserted))
	for ts, rec := range existing {
		byTS[ts] = &rec
	}
	for i := range inserted {
		byTS[inserted[i].Timestamp] = &inserted[i]
	}

	acks := make([]models.IngestAck, 0, len(byTS)+1)
	done := make(map[int64]struct{}, len(byTS))
	for _, r := range accepted {
		if _, ok := done[r.ts]; ok {
			continue
		}
		rec, ok := byTS[r.ts]
		if !ok {
			continue
		}
		done[r.ts] = struct{}{}
		createdAt := rec.CreatedAt
		acks = append(acks, models.IngestAck{ID: rec.ID, Timestamp: rec.Timestamp, CreatedAt: &createdAt})
	}

	if c.opts.TrailingSentinel {
		acks = append(acks, models.IngestAck{Timestamp: c.now().UnixMilli()})
	}
	return acks
}

func (c *Coordinator) recordAward(ctx context.Context, userID string, r *Result) {
	switch r.Outcome {
	case ledger.OutcomeCredited:
		metrics.PointsAwarded.Add(float64(r.Score.Awarded))
		logging.Ctx(ctx).Info().
			Str("author_user_id", userID).
			Int("points", r.Score.Awarded).
			Int("hours", r.Score.Hours).
			Int("days", r.Score.Days).
			Msg("Points awarded")
	case ledger.OutcomeFrozen:
		metrics.PointsFrozen.Inc()
	}
}

func (c *Coordinator) publish(ctx context.Context, req Request, r *Result) {
	if c.publisher == nil {
		return
	}
	now := c.now().UTC()
	correlationID := logging.CorrelationIDFromContext(ctx)

	if err := c.publisher.PublishTelemetryIngested(ctx, events.TelemetryIngested{
		CorrelationID: correlationID,
		Kind:          string(req.Kind),
		StreamID:      req.StreamID,
		AuthorUserID:  req.AuthorUserID,
		Submitted:     r.Submitted,
		Inserted:      r.Inserted,
		Duplicates:    r.Duplicates,
		Discarded:     r.Discarded,
		OccurredAt:    now,
	}); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to publish telemetry.ingested")
	}

	if r.Score.Awarded == 0 {
		return
	}
	if err := c.publisher.PublishPointsAwarded(ctx, events.PointsAwarded{
		CorrelationID: correlationID,
		AuthorUserID:  req.AuthorUserID,
		Amount:        r.Score.Awarded,
		Hours:         r.Score.Hours,
		Days:          r.Score.Days,
		Cursor:        r.Score.Cursor,
		Frozen:        r.Outcome == ledger.OutcomeFrozen,
		OccurredAt:    now,
	}); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to publish points.awarded")
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInsertionMismatch):
		return "insert_mismatch"
	case errors.Is(err, ErrTransaction):
		return "transaction"
	default:
		return "error"
	}
}
