// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tomtom215/aeolus/internal/accounts"
	"github.com/tomtom215/aeolus/internal/cache"
	"github.com/tomtom215/aeolus/internal/logging"
	"github.com/tomtom215/aeolus/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// API key format: aeolus_key_<base64url(id)>_<hex secret>
//
// The secret is hex so the last underscore always separates it from the
// encoded ID. Keys are stored as bcrypt(sha256(plaintext)) since bcrypt
// truncates input at 72 bytes.
const (
	// APIKeyPrefix starts every device API key.
	APIKeyPrefix = "aeolus_key_"

	// APIKeyHeader is an alternative to the Authorization header for
	// devices that cannot set a bearer token.
	APIKeyHeader = "X-API-Key"

	apiKeySecretLength        = 32
	apiKeyPrefixDisplayLength = 8

	// DefaultBcryptCost is used for API keys and client secrets.
	DefaultBcryptCost = 12

	verifiedKeyCacheSize = 4096
	verifiedKeyCacheTTL  = 5 * time.Minute
)

// APIKeyStore is the persistence the key manager needs.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *accounts.APIKey) error
	GetAPIKey(ctx context.Context, id string) (*accounts.APIKey, error)
	ListAPIKeys(ctx context.Context, userID string) ([]accounts.APIKey, error)
	RevokeAPIKey(ctx context.Context, userID, id string) error
	TouchAPIKey(ctx context.Context, id, ip string) error
}

// APIKeyManager issues and validates device API keys.
type APIKeyManager struct {
	store APIKeyStore
	cost  int
	now   func() time.Time

	// verified maps sha256(plaintext) to the bcrypt hash it last matched.
	verified *cache.LRU[string]
}

// NewAPIKeyManager creates a key manager. A cost of 0 uses
// DefaultBcryptCost.
func NewAPIKeyManager(store APIKeyStore, cost int) *APIKeyManager {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	return &APIKeyManager{
		store:    store,
		cost:     cost,
		now:      time.Now,
		verified: cache.NewLRU[string](verifiedKeyCacheSize, verifiedKeyCacheTTL),
	}
}

// CreateAPIKeyParams describes a new key.
type CreateAPIKeyParams struct {
	Name          string
	Scopes        []models.TokenScope
	ExpiresInDays *int
}

// Create generates a key for userID. The plaintext is returned once and
// never stored. Keys created without scopes get every scope.
func (m *APIKeyManager) Create(ctx context.Context, userID string, p CreateAPIKeyParams) (*accounts.APIKey, string, error) {
	scopes := p.Scopes
	if len(scopes) == 0 {
		scopes = models.AllScopes()
	}
	scopeNames := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		if !models.IsValidScope(scope) {
			return nil, "", fmt.Errorf("invalid scope: %s", scope)
		}
		scopeNames = append(scopeNames, string(scope))
	}

	id := uuid.NewString()
	secret, err := randomHex(apiKeySecretLength)
	if err != nil {
		return nil, "", err
	}
	plaintext := APIKeyPrefix + base64.RawURLEncoding.EncodeToString([]byte(id)) + "_" + secret

	hash, err := hashSecret(plaintext, m.cost)
	if err != nil {
		return nil, "", err
	}

	key := &accounts.APIKey{
		ID:     id,
		UserID: userID,
		Name:   p.Name,
		Prefix: plaintext[:len(APIKeyPrefix)+apiKeyPrefixDisplayLength],
		Hash:   hash,
		Scopes: scopeNames,
	}
	if p.ExpiresInDays != nil && *p.ExpiresInDays > 0 {
		exp := m.now().UTC().Add(time.Duration(*p.ExpiresInDays) * 24 * time.Hour)
		key.ExpiresAt = &exp
	}

	if err := m.store.CreateAPIKey(ctx, key); err != nil {
		return nil, "", err
	}

	logging.Ctx(ctx).Info().
		Str("key_id", id).
		Str("name", p.Name).
		Int("scopes_count", len(scopeNames)).
		Msg("API key created")
	return key, plaintext, nil
}

// Validate resolves a plaintext key. Usage is recorded asynchronously.
func (m *APIKeyManager) Validate(ctx context.Context, plaintext, clientIP string) (*accounts.APIKey, error) {
	id, ok := parseAPIKeyID(plaintext)
	if !ok {
		return nil, fmt.Errorf("%w: malformed api key", ErrInvalidCredentials)
	}

	key, err := m.store.GetAPIKey(ctx, id)
	if errors.Is(err, accounts.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown api key", ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: api key lookup: %w", ErrAuthenticatorUnavailable, err)
	}

	if !m.matches(plaintext, key.Hash) {
		return nil, fmt.Errorf("%w: api key mismatch", ErrInvalidCredentials)
	}
	if key.IsRevoked() {
		return nil, ErrRevokedCredentials
	}
	if key.IsExpired(m.now()) {
		return nil, ErrExpiredCredentials
	}

	go func(id string) {
		touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.store.TouchAPIKey(touchCtx, id, clientIP); err != nil {
			logging.Warn().Err(err).Str("key_id", id).Msg("Failed to update API key last used")
		}
	}(key.ID)

	return key, nil
}

// matches compares plaintext against hash, skipping bcrypt when the same
// plaintext already matched this hash recently.
func (m *APIKeyManager) matches(plaintext, hash string) bool {
	sum := sha256.Sum256([]byte(plaintext))
	digest := hex.EncodeToString(sum[:])
	if cached, ok := m.verified.Get(digest); ok && cached == hash {
		return true
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), sum[:]) != nil {
		return false
	}
	m.verified.Add(digest, hash)
	return true
}

// Resolve validates plaintext and returns the owning subject.
func (m *APIKeyManager) Resolve(ctx context.Context, plaintext, clientIP string) (*AuthSubject, error) {
	key, err := m.Validate(ctx, plaintext, clientIP)
	if err != nil {
		return nil, err
	}
	s := &AuthSubject{
		ID:      key.UserID,
		Scopes:  key.Scopes,
		Method:  MethodAPIKey,
		TokenID: key.ID,
	}
	if key.ExpiresAt != nil {
		s.ExpiresAt = *key.ExpiresAt
	}
	return s, nil
}

// List returns the user's keys.
func (m *APIKeyManager) List(ctx context.Context, userID string) ([]accounts.APIKey, error) {
	return m.store.ListAPIKeys(ctx, userID)
}

// Revoke revokes one of the user's keys.
func (m *APIKeyManager) Revoke(ctx context.Context, userID, id string) error {
	if err := m.store.RevokeAPIKey(ctx, userID, id); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("key_id", id).Msg("API key revoked")
	return nil
}

// IsAPIKey reports whether token looks like a device API key.
func IsAPIKey(token string) bool {
	return strings.HasPrefix(token, APIKeyPrefix)
}

func parseAPIKeyID(plaintext string) (string, bool) {
	rest, ok := strings.CutPrefix(plaintext, APIKeyPrefix)
	if !ok {
		return "", false
	}
	i := strings.LastIndexByte(rest, '_')
	if i <= 0 || i == len(rest)-1 {
		return "", false
	}
	idBytes, err := base64.RawURLEncoding.DecodeString(rest[:i])
	if err != nil || len(idBytes) == 0 {
		return "", false
	}
	return string(idBytes), true
}

// APIKeyAuthenticator resolves device API keys from the Authorization
// bearer or X-API-Key header.
type APIKeyAuthenticator struct {
	manager *APIKeyManager
}

// NewAPIKeyAuthenticator creates the API key authenticator.
func NewAPIKeyAuthenticator(manager *APIKeyManager) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{manager: manager}
}

// Authenticate resolves the request's API key.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*AuthSubject, error) {
	token := r.Header.Get(APIKeyHeader)
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" || !IsAPIKey(token) {
		return nil, ErrNoCredentials
	}
	return a.manager.Resolve(ctx, token, clientIP(r))
}

// Name returns the authenticator name.
func (a *APIKeyAuthenticator) Name() string {
	return string(MethodAPIKey)
}

// Priority returns 10; API keys are recognised by prefix without I/O.
func (a *APIKeyAuthenticator) Priority() int {
	return 10
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashSecret(plaintext string, cost int) (string, error) {
	sum := sha256.Sum256([]byte(plaintext))
	hash, err := bcrypt.GenerateFromPassword(sum[:], cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt failed: %w", err)
	}
	return string(hash), nil
}

func verifySecret(plaintext, storedHash string) bool {
	sum := sha256.Sum256([]byte(plaintext))
	return bcrypt.CompareHashAndPassword([]byte(storedHash), sum[:]) == nil
}
