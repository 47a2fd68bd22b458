// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package session issues opaque login tokens and resolves them back to the
// caller's access.Principal. Sessions are stored as JSON in the cache with a
// fixed TTL.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"forum/internal/access"
	"forum/internal/models"
)

const (
	// DefaultTTL is how long a session lives before automatic expiry.
	DefaultTTL = 24 * time.Hour

	keyPrefix = "session:"

	// idLength is the byte length of the random token (32 bytes = 64 hex chars).
	idLength = 32
)

// Cache is the key/value store sessions live in.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Data is the session payload.
type Data struct {
	UserID    uuid.UUID         `json:"user_id"`
	Username  string            `json:"username"`
	Role      models.Role       `json:"role"`
	Status    models.UserStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// Principal returns the identity the session was created for.
func (d *Data) Principal() *access.Principal {
	return &access.Principal{ID: d.UserID, Username: d.Username, Role: d.Role, Status: d.Status}
}

// Store manages session lifecycle.
type Store struct {
	cache Cache
	ttl   time.Duration
}

// NewStore creates a session store. A zero ttl uses DefaultTTL.
func NewStore(cache Cache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cache: cache, ttl: ttl}
}

// Create starts a session for p and returns its token.
func (s *Store) Create(ctx context.Context, p *access.Principal) (string, error) {
	token, err := generateID()
	if err != nil {
		return "", fmt.Errorf("session create: %w", err)
	}

	payload, err := json.Marshal(&Data{
		UserID:    p.ID,
		Username:  p.Username,
		Role:      p.Role,
		Status:    p.Status,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("session marshal: %w", err)
	}

	if err := s.cache.Set(ctx, keyPrefix+token, string(payload), s.ttl); err != nil {
		return "", fmt.Errorf("session store: %w", err)
	}
	return token, nil
}

// Get returns the session for token, or nil if it does not exist.
func (s *Store) Get(ctx context.Context, token string) (*Data, error) {
	if token == "" {
		return nil, nil
	}
	payload, ok, err := s.cache.Get(ctx, keyPrefix+token)
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var data Data
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, fmt.Errorf("session unmarshal: %w", err)
	}
	return &data, nil
}

// Principal resolves token to the caller's identity. An unknown or expired
// token yields a nil principal, which the forum treats as a guest.
func (s *Store) Principal(ctx context.Context, token string) (*access.Principal, error) {
	data, err := s.Get(ctx, token)
	if err != nil || data == nil {
		return nil, err
	}
	return data.Principal(), nil
}

// Destroy ends a session.
func (s *Store) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.cache.Delete(ctx, keyPrefix+token); err != nil {
		return fmt.Errorf("session destroy: %w", err)
	}
	return nil
}

// generateID creates a cryptographically random session token.
func generateID() (string, error) {
	b := make([]byte, idLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
