// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tomtom215/aeolus/internal/config"
	"github.com/tomtom215/aeolus/internal/database"
	"github.com/tomtom215/aeolus/internal/events"
	"github.com/tomtom215/aeolus/internal/ledger"
	"github.com/tomtom215/aeolus/internal/models"
	"github.com/tomtom215/aeolus/internal/points"
)

// pinnedNow is 2024-01-05T10:00:00Z.
var pinnedNow = time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)

const (
	hourMs = int64(time.Hour / time.Millisecond)
	userID = "user-1"
)

type harness struct {
	coord     *Coordinator
	telemetry *database.DB
	ledger    *ledger.Store
	events    *recordingPublisher
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	tdb, err := database.New(&config.TelemetryConfig{Path: ":memory:", Threads: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tdb.Close() })

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	store := ledger.NewStore(gdb)
	require.NoError(t, store.AutoMigrate(context.Background()))

	cfg, err := points.NewConfig(points.DefaultPerHour, points.DefaultPerDay, time.UTC)
	require.NoError(t, err)

	pub := &recordingPublisher{}
	coord := NewCoordinator(tdb, LedgerStore(store), points.NewEngine(cfg), pub, opts)
	coord.now = func() time.Time { return pinnedNow }

	return &harness{coord: coord, telemetry: tdb, ledger: store, events: pub}
}

func f64(v float64) *float64 { return &v }

func request(kind models.StreamKind, streamID string, timestamps ...int64) Request {
	data := make([]models.Reading, len(timestamps))
	for i, ts := range timestamps {
		data[i] = models.Reading{Timestamp: ts, Temperature: f64(10 + float64(i))}
	}
	return Request{
		Kind:         kind,
		StreamID:     streamID,
		AuthorUserID: userID,
		Submission: models.BatchSubmission{
			Coordinates: &models.Coordinates{Latitude: 52.52, Longitude: 13.40},
			SensorID:    "bme280",
			Data:        data,
		},
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	ingested []events.TelemetryIngested
	awarded  []events.PointsAwarded
	err      error
}

func (p *recordingPublisher) PublishTelemetryIngested(_ context.Context, e events.TelemetryIngested) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ingested = append(p.ingested, e)
	return p.err
}

func (p *recordingPublisher) PublishPointsAwarded(_ context.Context, e events.PointsAwarded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.awarded = append(p.awarded, e)
	return p.err
}

func TestSubmitCreditsNewBatch(t *testing.T) {
	h := newHarness(t, Options{TrailingSentinel: true})
	ctx := context.Background()
	base := pinnedNow.Add(-3 * time.Hour).UnixMilli()

	res, err := h.coord.Submit(ctx, request(models.StreamWeatherStation, "station-1", base, base+hourMs, base+hourMs+60_000))
	require.NoError(t, err)

	// one day, two hours
	assert.Equal(t, points.DefaultPerDay+2*points.DefaultPerHour, res.Score.Awarded)
	assert.Equal(t, ledger.OutcomeCredited, res.Outcome)
	assert.Equal(t, 3, res.Inserted)
	assert.Zero(t, res.Duplicates)

	require.Len(t, res.Acks, 4)
	for i, ack := range res.Acks[:3] {
		assert.NotEmpty(t, ack.ID, "ack %d", i)
		assert.NotNil(t, ack.CreatedAt, "ack %d", i)
	}
	sentinel := res.Acks[3]
	assert.Empty(t, sentinel.ID)
	assert.Nil(t, sentinel.CreatedAt)
	assert.Equal(t, pinnedNow.UnixMilli(), sentinel.Timestamp)

	balance, err := h.ledger.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(res.Score.Awarded), balance.Amount)

	cursor, err := h.ledger.ReadCursor(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, base+hourMs, cursor)

	require.Len(t, h.events.ingested, 1)
	require.Len(t, h.events.awarded, 1)
	assert.Equal(t, res.Score.Awarded, h.events.awarded[0].Amount)
}

func TestDedupeRoundTrip(t *testing.T) {
	h := newHarness(t, Options{TrailingSentinel: true})
	ctx := context.Background()
	base := pinnedNow.Add(-5 * time.Hour).UnixMilli()
	req := request(models.StreamKitePlayer, "kite-1", base, base+hourMs, base+2*hourMs)

	first, err := h.coord.Submit(ctx, req)
	require.NoError(t, err)
	second, err := h.coord.Submit(ctx, request(models.StreamKitePlayer, "kite-1", base, base+hourMs, base+2*hourMs))
	require.NoError(t, err)

	assert.Zero(t, second.Inserted)
	assert.Equal(t, 3, second.Duplicates)
	assert.Zero(t, second.Score.Awarded)
	assert.Equal(t, ledger.OutcomeCursorOnly, second.Outcome)

	// Same length as the submitted batch, plus the sentinel.
	require.Len(t, second.Acks, len(req.Submission.Data)+1)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first.Acks[i].ID, second.Acks[i].ID)
		assert.Equal(t, first.Acks[i].Timestamp, second.Acks[i].Timestamp)
	}

	count, err := h.telemetry.CountStream(ctx, models.StreamKitePlayer, "kite-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// points.awarded is only published for non-zero awards
	assert.Len(t, h.events.awarded, 1)
	assert.Len(t, h.events.ingested, 2)
}

func TestReconciliationAcrossBatches(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	day := 24 * hourMs
	start := pinnedNow.Add(-10 * 24 * time.Hour).UnixMilli()

	for i := int64(0); i < 5; i++ {
		ts := start + i*day
		_, err := h.coord.Submit(ctx, request(models.StreamWeatherStation, "station-r", ts, ts+hourMs, ts+2*hourMs))
		require.NoError(t, err)
	}
	// an overlapping resubmission must not double-credit
	_, err := h.coord.Submit(ctx, request(models.StreamWeatherStation, "station-r", start, start+hourMs))
	require.NoError(t, err)

	rec, err := h.ledger.Reconcile(ctx, userID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, int64(5), rec.Entries)
	assert.Equal(t, int64(5*(points.DefaultPerDay+3*points.DefaultPerHour)), rec.Balance)
}

func TestFutureReadingsDiscarded(t *testing.T) {
	h := newHarness(t, Options{TrailingSentinel: true})
	ctx := context.Background()
	past := pinnedNow.Add(-time.Hour).UnixMilli()
	nearFuture := pinnedNow.Add(23 * time.Hour).UnixMilli()
	farFuture := pinnedNow.Add(48 * time.Hour).UnixMilli()

	res, err := h.coord.Submit(ctx, request(models.StreamWeatherStation, "station-f", past, farFuture, nearFuture))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Discarded)
	assert.Equal(t, 2, res.Inserted)
	require.Len(t, res.Acks, 3)
	assert.Equal(t, past, res.Acks[0].Timestamp)
	assert.Equal(t, nearFuture, res.Acks[1].Timestamp)

	found, err := h.telemetry.FindByTimestamps(ctx, models.StreamWeatherStation, "station-f", []int64{farFuture})
	require.NoError(t, err)
	assert.Empty(t, found)

	cursor, err := h.ledger.ReadCursor(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, nearFuture, cursor, "discarded readings never move the cursor")
}

func TestIntraBatchDuplicatesStoredOnce(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	ts := pinnedNow.Add(-2 * time.Hour).UnixMilli()

	res, err := h.coord.Submit(ctx, request(models.StreamKitePlayer, "kite-d", ts, ts, ts))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Duplicates)
	require.Len(t, res.Acks, 1)
	assert.Equal(t, points.DefaultPerDay+points.DefaultPerHour, res.Score.Awarded)
}

func TestSentinelDisabled(t *testing.T) {
	h := newHarness(t, Options{TrailingSentinel: false})
	ts := pinnedNow.Add(-time.Hour).UnixMilli()

	res, err := h.coord.Submit(context.Background(), request(models.StreamWeatherStation, "s", ts))
	require.NoError(t, err)
	require.Len(t, res.Acks, 1)
	assert.NotEmpty(t, res.Acks[0].ID)
}

func TestFrozenBalance(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	require.NoError(t, h.ledger.SetFrozen(ctx, userID, true))
	ts := pinnedNow.Add(-time.Hour).UnixMilli()

	res, err := h.coord.Submit(ctx, request(models.StreamWeatherStation, "station-z", ts))
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeFrozen, res.Outcome)

	balance, err := h.ledger.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, balance.Amount)
	assert.True(t, balance.FreezePoints)

	txs, err := h.ledger.Transactions(ctx, userID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, txs)

	cursor, err := h.ledger.ReadCursor(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, ts, cursor)

	require.Len(t, h.events.awarded, 1)
	assert.True(t, h.events.awarded[0].Frozen)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	h := newHarness(t, Options{})
	h.events.err = errors.New("broker down")
	ts := pinnedNow.Add(-time.Hour).UnixMilli()

	_, err := h.coord.Submit(context.Background(), request(models.StreamWeatherStation, "s", ts))
	assert.NoError(t, err)
}

func TestValidationRejectsBeforeStorage(t *testing.T) {
	ts := pinnedNow.Add(-time.Hour).UnixMilli()

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"unknown kind", func(r *Request) { r.Kind = "balloon" }},
		{"missing author", func(r *Request) { r.AuthorUserID = "" }},
		{"bad stream id", func(r *Request) { r.StreamID = "no spaces allowed" }},
		{"empty data", func(r *Request) { r.Submission.Data = []models.Reading{} }},
		{"missing coordinates", func(r *Request) { r.Submission.Coordinates = nil }},
		{"bad iso timestamp", func(r *Request) {
			r.Submission.Data[0] = models.Reading{TimestampISO: "yesterday"}
		}},
		{"batch too large", func(r *Request) {
			r.Submission.Data = append(r.Submission.Data, r.Submission.Data[0], r.Submission.Data[0])
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &stubTelemetry{}
			l := &stubLedger{}
			cfg, err := points.NewConfig(1, 5, time.UTC)
			require.NoError(t, err)
			c := NewCoordinator(store, l, points.NewEngine(cfg), nil, Options{MaxBatchSize: 2})

			req := request(models.StreamWeatherStation, "station-v", ts)
			tt.mutate(&req)

			_, err = c.Submit(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.NotEmpty(t, verr.Details.Errors())

			assert.Zero(t, store.finds)
			assert.Zero(t, store.inserts)
			assert.Zero(t, l.begins)
		})
	}
}

func TestInsertionMismatchSkipsScoring(t *testing.T) {
	store := &stubTelemetry{shortBy: 1}
	l := &stubLedger{}
	cfg, err := points.NewConfig(1, 5, time.UTC)
	require.NoError(t, err)
	c := NewCoordinator(store, l, points.NewEngine(cfg), nil, Options{})
	c.now = func() time.Time { return pinnedNow }
	base := pinnedNow.Add(-3 * time.Hour).UnixMilli()

	_, err = c.Submit(context.Background(), request(models.StreamWeatherStation, "s", base, base+hourMs))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsertionMismatch)

	var mm *InsertionMismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, 2, mm.Expected)
	assert.Equal(t, int64(1), mm.Inserted)
	assert.Zero(t, l.begins, "no transaction may open after a mismatch")
}

func TestTelemetryStoreFailure(t *testing.T) {
	store := &stubTelemetry{findErr: errors.New("duckdb gone")}
	l := &stubLedger{}
	cfg, err := points.NewConfig(1, 5, time.UTC)
	require.NoError(t, err)
	c := NewCoordinator(store, l, points.NewEngine(cfg), nil, Options{})

	_, err = c.Submit(context.Background(), request(models.StreamWeatherStation, "s", pinnedNow.UnixMilli()))
	assert.ErrorIs(t, err, ErrTelemetryStore)
	assert.Zero(t, l.begins)
}

// failingLedger delegates to the real store and fails after ApplyAward has
// written its rows, so only the rollback can undo them.
type failingLedger struct {
	inner Ledger
	err   error
}

func (f failingLedger) Begin(ctx context.Context) (LedgerTx, error) {
	tx, err := f.inner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{LedgerTx: tx, err: f.err}, nil
}

type failingTx struct {
	LedgerTx
	err error
}

func (f *failingTx) ApplyAward(ctx context.Context, userID string, award, cursor int64) (ledger.Outcome, error) {
	outcome, err := f.LedgerTx.ApplyAward(ctx, userID, award, cursor)
	if err != nil {
		return outcome, err
	}
	return outcome, f.err
}

func TestAbortRollbackKeepsTelemetry(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	storageErr := errors.New("disk I/O error")
	h.coord.ledger = failingLedger{inner: LedgerStore(h.ledger), err: storageErr}
	base := pinnedNow.Add(-4 * time.Hour).UnixMilli()

	_, err := h.coord.Submit(ctx, request(models.StreamWeatherStation, "station-a", base, base+hourMs))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransaction)
	assert.ErrorIs(t, err, storageErr)

	count, err := h.telemetry.CountStream(ctx, models.StreamWeatherStation, "station-a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "telemetry persisted before the transaction stays")

	balance, err := h.ledger.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, balance.Amount)

	txs, err := h.ledger.Transactions(ctx, userID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, txs)

	cursor, err := h.ledger.ReadCursor(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, cursor)

	assert.Empty(t, h.events.ingested, "nothing is published for an aborted batch")

	// A retry with a healthy ledger credits the batch.
	h.coord.ledger = LedgerStore(h.ledger)
	res, err := h.coord.Submit(ctx, request(models.StreamWeatherStation, "station-a", base, base+hourMs))
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)
	assert.Equal(t, points.DefaultPerDay+2*points.DefaultPerHour, res.Score.Awarded)
}

type stubTelemetry struct {
	finds, inserts int
	shortBy        int64
	findErr        error
}

func (s *stubTelemetry) FindByTimestamps(context.Context, models.StreamKind, string, []int64) ([]models.TelemetryRecord, error) {
	s.finds++
	return nil, s.findErr
}

func (s *stubTelemetry) InsertBatch(_ context.Context, _ models.StreamKind, records []models.TelemetryRecord) (int64, error) {
	s.inserts++
	return int64(len(records)) - s.shortBy, nil
}

type stubLedger struct {
	begins int
}

func (l *stubLedger) Begin(context.Context) (LedgerTx, error) {
	l.begins++
	return nil, errors.New("stub ledger does not open transactions")
}
