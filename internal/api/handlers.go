// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/aeolus/internal/accounts"
	"github.com/tomtom215/aeolus/internal/auth"
	"github.com/tomtom215/aeolus/internal/database"
	"github.com/tomtom215/aeolus/internal/ingest"
	"github.com/tomtom215/aeolus/internal/ledger"
	"github.com/tomtom215/aeolus/internal/models"
)

// Ingestor runs batch submissions.
type Ingestor interface {
	Submit(ctx context.Context, req ingest.Request) (*ingest.Result, error)
}

// TelemetryReader reads stored telemetry back.
type TelemetryReader interface {
	ListRange(ctx context.Context, kind models.StreamKind, q database.RangeQuery) ([]models.TelemetryRecord, error)
}

// PointsStore is the read and admin side of the points ledger.
type PointsStore interface {
	Balance(ctx context.Context, userID string) (ledger.Point, error)
	ReadCursor(ctx context.Context, userID string) (int64, error)
	Transactions(ctx context.Context, userID string, limit, offset int) ([]ledger.PointTransaction, error)
	Leaderboard(ctx context.Context, limit int) ([]ledger.Point, error)
	SetFrozen(ctx context.Context, userID string, frozen bool) error
	Reconcile(ctx context.Context, userID string) (ledger.Reconciliation, error)
}

// UserReader loads user profiles.
type UserReader interface {
	GetUser(ctx context.Context, id string) (*accounts.User, error)
}

// HealthCheck is one dependency probed by the readiness endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies groups what the handlers need. Logins may be nil when
// Google sign-in is disabled.
type Dependencies struct {
	Ingest    Ingestor
	Telemetry TelemetryReader
	Points    PointsStore
	Users     UserReader
	Logins    *auth.LoginService
	APIKeys   *auth.APIKeyManager
	Clients   *auth.ClientManager
	Checks    []HealthCheck
}

// Handler holds the HTTP handlers. Handler methods are split by area:
//   - handlers_ingest.go: telemetry submission and read-back
//   - handlers_points.go: balances, history, leaderboard, admin
//   - handlers_auth.go: sign-in, logout, token, users/me
//   - handlers_keys.go: API keys and clients
//   - handlers_health.go: liveness and readiness
type Handler struct {
	deps      Dependencies
	startTime time.Time
	secure    bool
}

// NewHandler creates the API handler. secureCookies marks the session
// cookie Secure.
func NewHandler(deps Dependencies, secureCookies bool) *Handler {
	return &Handler{
		deps:      deps,
		startTime: time.Now(),
		secure:    secureCookies,
	}
}

// callerOrReject returns the authenticated caller, or writes 401 and
// returns nil.
func callerOrReject(w http.ResponseWriter, r *http.Request) *auth.AuthSubject {
	s := auth.SubjectFromContext(r.Context())
	if s == nil {
		respondError(w, r, auth.ErrNoCredentials)
	}
	return s
}
