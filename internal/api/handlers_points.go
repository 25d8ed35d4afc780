// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/aeolus/internal/ledger"
	"github.com/tomtom215/aeolus/internal/logging"
	"github.com/tomtom215/aeolus/internal/models"
	"github.com/tomtom215/aeolus/internal/validation"
)

const (
	defaultHistoryLimit     = 50
	maxHistoryLimit         = 500
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// PointsMe returns the caller's balance and crediting cursor.
func (h *Handler) PointsMe(w http.ResponseWriter, r *http.Request) {
	caller := callerOrReject(w, r)
	if caller == nil {
		return
	}
	summary, err := h.pointsSummary(r.Context(), caller.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, summary)
}

// PointsTransactions lists the caller's ledger rows, newest first.
func (h *Handler) PointsTransactions(w http.ResponseWriter, r *http.Request) {
	caller := callerOrReject(w, r)
	if caller == nil {
		return
	}
	limit, err := queryInt(r, "limit", defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0, 0)
	if err != nil {
		respondError(w, r, err)
		return
	}

	rows, err := h.deps.Points.Transactions(r.Context(), caller.ID, limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if rows == nil {
		rows = []ledger.PointTransaction{}
	}
	respondJSON(w, r, http.StatusOK, rows)
}

// Leaderboard returns the highest balances.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultLeaderboardLimit, maxLeaderboardLimit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if limit == 0 {
		limit = defaultLeaderboardLimit
	}
	rows, err := h.deps.Points.Leaderboard(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if rows == nil {
		rows = []ledger.Point{}
	}
	respondJSON(w, r, http.StatusOK, rows)
}

// AdminFreeze sets or clears a user's points freeze. Telemetry from a
// frozen user is still stored; only crediting stops.
func (h *Handler) AdminFreeze(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if verr := validation.ValidateVar("user_id", userID, "required,max=64"); verr != nil {
		respondError(w, r, verr)
		return
	}

	var req models.FreezeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, verr)
		return
	}

	if err := h.deps.Points.SetFrozen(r.Context(), userID, *req.Frozen); err != nil {
		respondError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().
		Str("target_user_id", userID).
		Bool("frozen", *req.Frozen).
		Msg("Points freeze updated")

	summary, err := h.pointsSummary(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, summary)
}

// AdminReconcile compares a user's balance with the sum of their ledger.
func (h *Handler) AdminReconcile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.Points.Reconcile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !rec.Consistent {
		logging.Ctx(r.Context()).Warn().
			Str("target_user_id", rec.AuthorUserID).
			Int64("balance", rec.Balance).
			Int64("ledger_sum", rec.LedgerSum).
			Msg("Balance does not match ledger")
	}
	respondJSON(w, r, http.StatusOK, rec)
}

func (h *Handler) pointsSummary(ctx context.Context, userID string) (models.PointsSummary, error) {
	balance, err := h.deps.Points.Balance(ctx, userID)
	if err != nil {
		return models.PointsSummary{}, err
	}
	cursor, err := h.deps.Points.ReadCursor(ctx, userID)
	if err != nil {
		return models.PointsSummary{}, err
	}
	return models.PointsSummary{
		AuthorUserID:                 userID,
		Amount:                       balance.Amount,
		LastPointCalculatedTimestamp: balance.LastPointCalculatedTimestamp,
		FreezePoints:                 balance.FreezePoints,
		LastProcessedTimestamp:       cursor,
	}, nil
}
