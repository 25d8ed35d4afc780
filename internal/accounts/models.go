// Aeolus - Citizen Science Weather and Kite Telemetry Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/aeolus

package accounts

import "time"

// User is a contributor identified by their Google subject.
type User struct {
	ID            string     `gorm:"primaryKey;size:64" json:"id"`
	GoogleSubject string     `gorm:"size:255;uniqueIndex" json:"-"`
	Email         string     `gorm:"size:320" json:"email"`
	EmailVerified bool       `json:"email_verified"`
	Name          string     `gorm:"size:255" json:"name"`
	PictureURL    string     `gorm:"size:1024" json:"picture_url,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// APIKey is a long-lived device credential. Only a hash of the secret is
// stored.
type APIKey struct {
	ID         string     `gorm:"primaryKey;size:64" json:"id"`
	UserID     string     `gorm:"size:64;not null;index:idx_api_keys_user" json:"user_id"`
	Name       string     `gorm:"size:100;not null" json:"name"`
	Prefix     string     `gorm:"size:32" json:"prefix"`
	Hash       string     `gorm:"size:100;not null" json:"-"`
	Scopes     []string   `gorm:"serializer:json" json:"scopes"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	LastUsedIP string     `gorm:"size:64" json:"last_used_ip,omitempty"`
	UseCount   int64      `gorm:"not null;default:0" json:"use_count"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (APIKey) TableName() string {
	return "api_keys"
}

// IsRevoked reports whether the key was revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// IsExpired reports whether the key expired before now.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// Client is a confidential OAuth client that acts on behalf of its owner.
type Client struct {
	ID         string     `gorm:"primaryKey;size:64" json:"client_id"`
	UserID     string     `gorm:"size:64;not null;index:idx_clients_user" json:"user_id"`
	Name       string     `gorm:"size:100;not null" json:"name"`
	SecretHash string     `gorm:"size:100;not null" json:"-"`
	Scopes     []string   `gorm:"serializer:json" json:"scopes"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Client) TableName() string {
	return "oauth_clients"
}
