// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package models

import "time"

// TokenScope is a permission carried by an API key.
type TokenScope string

const (
	ScopeWriteTelemetry TokenScope = "write:telemetry"
	ScopeReadTelemetry  TokenScope = "read:telemetry"
	ScopeReadPoints     TokenScope = "read:points"
)

// AllScopes lists every scope an API key may carry.
func AllScopes() []TokenScope {
	return []TokenScope{ScopeWriteTelemetry, ScopeReadTelemetry, ScopeReadPoints}
}

// IsValidScope reports whether s is a known scope.
func IsValidScope(s TokenScope) bool {
	for _, known := range AllScopes() {
		if s == known {
			return true
		}
	}
	return false
}

// GoogleLoginRequest exchanges a Google ID token for a session.
type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// SessionResponse is returned by login and token endpoints.
type SessionResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
}

// CreateAPIKeyRequest creates a long-lived device credential.
type CreateAPIKeyRequest struct {
	Name          string       `json:"name" validate:"required,min=1,max=100"`
	Scopes        []TokenScope `json:"scopes,omitempty" validate:"omitempty,dive,oneof=write:telemetry read:telemetry read:points"`
	ExpiresInDays *int         `json:"expires_in_days,omitempty" validate:"omitempty,min=1,max=3650"`
}

// CreateAPIKeyResponse includes the plaintext token exactly once.
type CreateAPIKeyResponse struct {
	Token  string     `json:"token"`
	APIKey APIKeyInfo `json:"api_key"`
}

// APIKeyInfo is the safe, listable view of an API key.
type APIKeyInfo struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Prefix     string       `json:"prefix"`
	Scopes     []TokenScope `json:"scopes"`
	CreatedAt  time.Time    `json:"created_at"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"`
	LastUsedAt *time.Time   `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time   `json:"revoked_at,omitempty"`
}

// CreateClientRequest registers a confidential OAuth client.
type CreateClientRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// CreateClientResponse includes the client secret exactly once.
type CreateClientResponse struct {
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserInfo is the public view of a user.
type UserInfo struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}
