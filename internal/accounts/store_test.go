// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package accounts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	s := NewStore(db)
	require.NoError(t, s.AutoMigrate(context.Background()))
	return s
}

func TestUpsertGoogleUserKeepsID(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertGoogleUser(ctx, GoogleProfile{Subject: "g-123", Email: "old@example.com", Name: "Ada"})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := s.UpsertGoogleUser(ctx, GoogleProfile{Subject: "g-123", Email: "new@example.com", Name: "Ada L", EmailVerified: true})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "new@example.com", second.Email)
	assert.Equal(t, "Ada L", second.Name)
	assert.True(t, second.EmailVerified)
	assert.NotNil(t, second.LastLoginAt)

	loaded, err := s.GetUser(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", loaded.Email)
}

func TestUpsertGoogleUserRequiresSubject(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)

	_, err := s.UpsertGoogleUser(context.Background(), GoogleProfile{Email: "x@example.com"})
	assert.Error(t, err)
}

func TestGetUserNotFound(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)

	_, err := s.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAPIKeyLifecycle(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	ctx := context.Background()

	key := &APIKey{ID: uuid.NewString(), UserID: "u1", Name: "station", Hash: "hash", Scopes: []string{"write:telemetry"}}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	loaded, err := s.GetAPIKey(ctx, key.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"write:telemetry"}, loaded.Scopes)
	assert.False(t, loaded.IsRevoked())

	require.NoError(t, s.TouchAPIKey(ctx, key.ID, "10.0.0.1"))
	require.NoError(t, s.TouchAPIKey(ctx, key.ID, "10.0.0.2"))
	loaded, err = s.GetAPIKey(ctx, key.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, loaded.UseCount)
	assert.Equal(t, "10.0.0.2", loaded.LastUsedIP)
	assert.NotNil(t, loaded.LastUsedAt)

	keys, err := s.ListAPIKeys(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	assert.ErrorIs(t, s.RevokeAPIKey(ctx, "someone-else", key.ID), ErrNotFound)

	require.NoError(t, s.RevokeAPIKey(ctx, "u1", key.ID))
	loaded, err = s.GetAPIKey(ctx, key.ID)
	require.NoError(t, err)
	require.True(t, loaded.IsRevoked())
	revokedAt := *loaded.RevokedAt

	require.NoError(t, s.RevokeAPIKey(ctx, "u1", key.ID))
	loaded, err = s.GetAPIKey(ctx, key.ID)
	require.NoError(t, err)
	assert.True(t, revokedAt.Equal(*loaded.RevokedAt))
}

func TestCreateAPIKeyRequiresHash(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)

	err := s.CreateAPIKey(context.Background(), &APIKey{ID: "k", UserID: "u1", Name: "n"})
	assert.Error(t, err)
}

func TestAPIKeyExpiry(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&APIKey{}).IsExpired(now))
	assert.True(t, (&APIKey{ExpiresAt: &past}).IsExpired(now))
	assert.False(t, (&APIKey{ExpiresAt: &future}).IsExpired(now))
}

func TestClients(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateClient(ctx, &Client{ID: "aeolus_client_1", UserID: "u1", Name: "uploader", SecretHash: "h"}))
	require.NoError(t, s.CreateClient(ctx, &Client{ID: "aeolus_client_2", UserID: "u2", Name: "other", SecretHash: "h"}))

	c, err := s.GetClient(ctx, "aeolus_client_1")
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)

	list, err := s.ListClients(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "uploader", list[0].Name)

	_, err = s.GetClient(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
