// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tomtom215/aeolus/internal/config"
)

// Issuer is the iss claim of every token this service signs.
const Issuer = "aeolus"

// Token kinds carried in the knd claim.
const (
	KindSession = "session"
	KindClient  = "client"
)

// MinSecretLength is the minimum HMAC secret size in bytes.
const MinSecretLength = 32

// Claims are the claims of session and client access tokens. The subject
// is always the author user ID.
type Claims struct {
	Kind     string   `json:"knd"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
	ClientID string   `json:"client_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates HS256 tokens.
type TokenManager struct {
	secret     []byte
	sessionTTL time.Duration
	clientTTL  time.Duration
	now        func() time.Time
}

// NewTokenManager creates a token manager from the security settings.
//
// The secret must be at least MinSecretLength bytes. Session tokens live
// for SessionTimeout and client access tokens for ClientTokenTTL.
func NewTokenManager(cfg *config.SecurityConfig) (*TokenManager, error) {
	if len(cfg.JWTSecret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	return &TokenManager{
		secret:     []byte(cfg.JWTSecret),
		sessionTTL: cfg.SessionTimeout,
		clientTTL:  cfg.ClientTokenTTL,
		now:        time.Now,
	}, nil
}

// IssueSession signs a session token for a signed-in user. Sessions carry
// every scope; the roles decide what else the user may do.
func (m *TokenManager) IssueSession(userID, email, name string, roles, scopes []string) (string, *Claims, error) {
	claims := m.newClaims(KindSession, userID, m.sessionTTL)
	claims.Email = email
	claims.Name = name
	claims.Roles = roles
	claims.Scopes = scopes
	return m.sign(claims)
}

// IssueClientToken signs a short-lived access token for a confidential
// client acting on behalf of its owner.
func (m *TokenManager) IssueClientToken(userID, clientID string, scopes []string) (string, *Claims, error) {
	claims := m.newClaims(KindClient, userID, m.clientTTL)
	claims.ClientID = clientID
	claims.Scopes = scopes
	return m.sign(claims)
}

func (m *TokenManager) newClaims(kind, subject string, ttl time.Duration) *Claims {
	now := m.now()
	return &Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
}

func (m *TokenManager) sign(claims *Claims) (string, *Claims, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Validate checks the signature, algorithm, issuer and lifetime of a token.
//
// Expired tokens map to ErrExpiredCredentials and every other failure to
// ErrInvalidCredentials. Only HS256 is accepted, which rules out
// algorithm confusion with "none" or RS256 headers.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrExpiredCredentials, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token claims", ErrInvalidCredentials)
	}
	return claims, nil
}

// unverifiedIssuer reads the iss claim without checking the signature. It
// only routes a bearer token to the authenticator that can verify it.
func unverifiedIssuer(tokenString string) (string, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return "", false
	}
	return claims.Issuer, true
}
