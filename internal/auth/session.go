// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/aeolus/internal/accounts"
	"github.com/tomtom215/aeolus/internal/logging"
	"github.com/tomtom215/aeolus/internal/models"
)

// UserStore is the user persistence sign-in needs.
type UserStore interface {
	UpsertGoogleUser(ctx context.Context, p accounts.GoogleProfile) (*accounts.User, error)
}

// RoleResolver returns the roles of a user.
type RoleResolver interface {
	RolesForUser(userID string) ([]string, error)
}

// LoginService turns a verified Google identity into a local user and a
// session token, and ends sessions on logout.
type LoginService struct {
	verifier    IDTokenVerifier
	users       UserStore
	roles       RoleResolver
	tokens      *TokenManager
	revocations RevocationStore
}

// NewLoginService wires the sign-in collaborators.
func NewLoginService(verifier IDTokenVerifier, users UserStore, roles RoleResolver, tokens *TokenManager, revocations RevocationStore) *LoginService {
	return &LoginService{
		verifier:    verifier,
		users:       users,
		roles:       roles,
		tokens:      tokens,
		revocations: revocations,
	}
}

// Session is the result of a successful sign-in.
type Session struct {
	Token  string
	Claims *Claims
	User   *accounts.User
}

// ResolveGoogle verifies the ID token and upserts the user.
func (s *LoginService) ResolveGoogle(ctx context.Context, idToken string) (*AuthSubject, *accounts.User, error) {
	if s.verifier == nil {
		return nil, nil, fmt.Errorf("%w: google sign-in is disabled", ErrAuthenticatorUnavailable)
	}
	identity, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.UpsertGoogleUser(ctx, accounts.GoogleProfile{
		Subject:       identity.Subject,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		Name:          identity.Name,
		Picture:       identity.Picture,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record user: %w", err)
	}

	roles, err := s.roles.RolesForUser(user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve roles: %w", err)
	}

	return &AuthSubject{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Roles:     roles,
		Scopes:    allScopeNames(),
		Method:    MethodGoogle,
		ExpiresAt: identity.ExpiresAt,
	}, user, nil
}

// LoginWithGoogle signs the user in and issues a session token.
func (s *LoginService) LoginWithGoogle(ctx context.Context, idToken string) (*Session, error) {
	subject, user, err := s.ResolveGoogle(ctx, idToken)
	if err != nil {
		return nil, err
	}

	token, claims, err := s.tokens.IssueSession(subject.ID, subject.Email, subject.Name, subject.Roles, subject.Scopes)
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().Str("user_id", user.ID).Msg("User signed in")
	return &Session{Token: token, Claims: claims, User: user}, nil
}

// ErrNotASession is returned when logout is attempted with a credential
// other than a session token.
var ErrNotASession = errors.New("credential is not a session token")

// Logout revokes the subject's session token until it expires.
func (s *LoginService) Logout(ctx context.Context, subject *AuthSubject) error {
	if subject == nil || subject.Method != MethodSession || subject.TokenID == "" {
		return ErrNotASession
	}
	if err := s.revocations.Revoke(ctx, subject.TokenID, subject.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	logging.Ctx(ctx).Info().Str("user_id", subject.ID).Msg("Session revoked")
	return nil
}

func allScopeNames() []string {
	scopes := models.AllScopes()
	names := make([]string, len(scopes))
	for i, s := range scopes {
		names[i] = string(s)
	}
	return names
}
