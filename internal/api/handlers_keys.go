// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/aeolus/internal/accounts"
	"github.com/tomtom215/aeolus/internal/auth"
	"github.com/tomtom215/aeolus/internal/logging"
	"github.com/tomtom215/aeolus/internal/models"
	"github.com/tomtom215/aeolus/internal/validation"
)

// CreateAPIKey issues a device API key. The plaintext is only returned here.
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	caller := callerOrReject(w, r)
	if caller == nil {
		return
	}

	var req models.CreateAPIKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, verr)
		return
	}

	key, plaintext, err := h.deps.APIKeys.Create(r.Context(), caller.ID, auth.CreateAPIKeyParams{
		Name:          req.Name,
		Scopes:        req.Scopes,
		ExpiresInDays: req.ExpiresInDays,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("key_id", key.ID).Msg("API key created")
	respondJSON(w, r, http.StatusCreated, models.CreateAPIKeyResponse{
		Token:  plaintext,
		APIKey: apiKeyInfo(key),
	})
}

// ListAPIKeys lists the caller's keys, revoked ones included.
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	caller := callerOrReject(w, r)
	if caller == nil {
		return
	}
	keys, err := h.deps.APIKeys.List(r.Context(), caller.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	infos := make([]models.APIKeyInfo, len(keys))
	for i := range keys {
		infos[i] = apiKeyInfo(&keys[i])
	}
	respondJSON(w, r, http.StatusOK, infos)
}

// RevokeAPIKey revokes one of the caller's keys. Revoking twice succeeds.
func (h *Handler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	caller := callerOrReject(w, r)
	if caller == nil {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.deps.APIKeys.Revoke(r.Context(), caller.ID, id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"id": id, "status": "revoked"})
}

// CreateClient registers a confidential client. The secret is only
// returned here.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	caller := callerOrReject(w, r)
	if caller == nil {
		return
	}

	var req models.CreateClientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, verr)
		return
	}

	client, secret, err := h.deps.Clients.Register(r.Context(), caller.ID, req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, models.CreateClientResponse{
		ClientID:     client.ID,
		ClientSecret: secret,
		Name:         client.Name,
		CreatedAt:    client.CreatedAt,
	})
}

// ListClients lists the caller's clients without secrets.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	caller := callerOrReject(w, r)
	if caller == nil {
		return
	}
	clients, err := h.deps.Clients.List(r.Context(), caller.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if clients == nil {
		clients = []accounts.Client{}
	}
	respondJSON(w, r, http.StatusOK, clients)
}

func apiKeyInfo(k *accounts.APIKey) models.APIKeyInfo {
	scopes := make([]models.TokenScope, len(k.Scopes))
	for i, s := range k.Scopes {
		scopes[i] = models.TokenScope(s)
	}
	return models.APIKeyInfo{
		ID:         k.ID,
		Name:       k.Name,
		Prefix:     k.Prefix,
		Scopes:     scopes,
		CreatedAt:  k.CreatedAt,
		ExpiresAt:  k.ExpiresAt,
		LastUsedAt: k.LastUsedAt,
		RevokedAt:  k.RevokedAt,
	}
}
