// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tomtom215/aeolus/internal/accounts"
	"github.com/tomtom215/aeolus/internal/logging"
)

// ClientIDPrefix starts every confidential client ID.
const ClientIDPrefix = "aeolus_client_"

// GrantClientCredentials is the only grant the token endpoint supports.
const GrantClientCredentials = "client_credentials"

// ErrUnsupportedGrant is returned for any grant_type other than
// client_credentials.
var ErrUnsupportedGrant = errors.New("unsupported grant type")

// ClientStore is the persistence the client manager needs.
type ClientStore interface {
	CreateClient(ctx context.Context, c *accounts.Client) error
	GetClient(ctx context.Context, id string) (*accounts.Client, error)
	ListClients(ctx context.Context, userID string) ([]accounts.Client, error)
}

// ClientManager registers confidential clients and exchanges their
// credentials for access tokens.
type ClientManager struct {
	store  ClientStore
	tokens *TokenManager
	cost   int
}

// NewClientManager creates a client manager. A cost of 0 uses
// DefaultBcryptCost.
func NewClientManager(store ClientStore, tokens *TokenManager, cost int) *ClientManager {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	return &ClientManager{store: store, tokens: tokens, cost: cost}
}

// Register creates a client owned by userID. The secret is returned once.
func (m *ClientManager) Register(ctx context.Context, userID, name string) (*accounts.Client, string, error) {
	suffix, err := randomHex(12)
	if err != nil {
		return nil, "", err
	}
	secret, err := randomHex(32)
	if err != nil {
		return nil, "", err
	}
	hash, err := hashSecret(secret, m.cost)
	if err != nil {
		return nil, "", err
	}

	client := &accounts.Client{
		ID:         ClientIDPrefix + suffix,
		UserID:     userID,
		Name:       name,
		SecretHash: hash,
		Scopes:     allScopeNames(),
	}
	if err := m.store.CreateClient(ctx, client); err != nil {
		return nil, "", err
	}

	logging.Ctx(ctx).Info().Str("client_id", client.ID).Str("name", name).Msg("OAuth client registered")
	return client, secret, nil
}

// List returns the user's clients.
func (m *ClientManager) List(ctx context.Context, userID string) ([]accounts.Client, error) {
	return m.store.ListClients(ctx, userID)
}

// Exchange verifies client credentials and issues an access token whose
// subject is the client's owner.
func (m *ClientManager) Exchange(ctx context.Context, clientID, secret string) (string, *Claims, error) {
	if clientID == "" || secret == "" {
		return "", nil, ErrNoCredentials
	}

	client, err := m.store.GetClient(ctx, clientID)
	if errors.Is(err, accounts.ErrNotFound) {
		return "", nil, fmt.Errorf("%w: unknown client", ErrInvalidCredentials)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%w: client lookup: %w", ErrAuthenticatorUnavailable, err)
	}
	if !verifySecret(secret, client.SecretHash) {
		return "", nil, fmt.Errorf("%w: client secret mismatch", ErrInvalidCredentials)
	}
	if client.RevokedAt != nil {
		return "", nil, ErrRevokedCredentials
	}

	return m.tokens.IssueClientToken(client.UserID, client.ID, client.Scopes)
}

// ClientCredentialsFromRequest reads client_id and client_secret from HTTP
// basic auth, falling back to form fields.
func ClientCredentialsFromRequest(r *http.Request) (clientID, secret string) {
	if id, s, ok := r.BasicAuth(); ok {
		return id, s
	}
	return r.PostFormValue("client_id"), r.PostFormValue("client_secret")
}
