// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

// Package accounts stores users, device API keys and OAuth clients in the
// relational database shared with the points ledger.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a user, key or client does not exist or is
// not owned by the caller.
var ErrNotFound = errors.New("accounts: not found")

// Store persists account records.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore wraps an open gorm database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// AutoMigrate creates or updates the account tables.
func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&User{}, &APIKey{}, &Client{}); err != nil {
		return fmt.Errorf("failed to migrate account tables: %w", err)
	}
	return nil
}

// GoogleProfile is the subset of verified ID token claims kept on a user.
type GoogleProfile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// UpsertGoogleUser creates the user on first sign-in and refreshes the
// profile and login time afterwards. The user ID never changes.
func (s *Store) UpsertGoogleUser(ctx context.Context, p GoogleProfile) (*User, error) {
	if p.Subject == "" {
		return nil, errors.New("accounts: google subject is required")
	}
	now := s.now()
	user := User{
		ID:            uuid.NewString(),
		GoogleSubject: p.Subject,
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
		Name:          p.Name,
		PictureURL:    p.Picture,
		LastLoginAt:   &now,
	}

	db := s.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "google_subject"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "email_verified", "name", "picture_url", "last_login_at", "updated_at",
		}),
	}).Create(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	var stored User
	if err := db.Where("google_subject = ?", p.Subject).Take(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &stored, nil
}

// GetUser loads a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

// CreateAPIKey inserts a key row. ID and Hash must already be set.
func (s *Store) CreateAPIKey(ctx context.Context, key *APIKey) error {
	if key.ID == "" || key.Hash == "" {
		return errors.New("accounts: api key id and hash are required")
	}
	if err := s.db.WithContext(ctx).Create(key).Error; err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// GetAPIKey loads a key by ID, including revoked and expired keys.
func (s *Store) GetAPIKey(ctx context.Context, id string) (*APIKey, error) {
	var key APIKey
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&key).Error; err != nil {
		return nil, notFound(err, "api key")
	}
	return &key, nil
}

// ListAPIKeys returns the user's keys, newest first.
func (s *Store) ListAPIKeys(ctx context.Context, userID string) ([]APIKey, error) {
	var keys []APIKey
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey marks the user's key revoked. Revoking twice keeps the
// first revocation time.
func (s *Store) RevokeAPIKey(ctx context.Context, userID, id string) error {
	key, err := s.GetAPIKey(ctx, id)
	if err != nil {
		return err
	}
	if key.UserID != userID {
		return fmt.Errorf("api key: %w", ErrNotFound)
	}
	if key.IsRevoked() {
		return nil
	}
	err = s.db.WithContext(ctx).Model(&APIKey{}).
		Where("id = ?", id).
		Update("revoked_at", s.now()).Error
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	return nil
}

// TouchAPIKey records a successful use.
func (s *Store) TouchAPIKey(ctx context.Context, id, ip string) error {
	err := s.db.WithContext(ctx).Model(&APIKey{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_used_at": s.now(),
			"last_used_ip": ip,
			"use_count":    gorm.Expr("use_count + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update api key usage: %w", err)
	}
	return nil
}

// CreateClient inserts a client row. ID and SecretHash must already be set.
func (s *Store) CreateClient(ctx context.Context, c *Client) error {
	if c.ID == "" || c.SecretHash == "" {
		return errors.New("accounts: client id and secret hash are required")
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// GetClient loads a client by client ID.
func (s *Store) GetClient(ctx context.Context, id string) (*Client, error) {
	var c Client
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		return nil, notFound(err, "client")
	}
	return &c, nil
}

// ListClients returns the user's clients, newest first.
func (s *Store) ListClients(ctx context.Context, userID string) ([]Client, error) {
	var clients []Client
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&clients).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
