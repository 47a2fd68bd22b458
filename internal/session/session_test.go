// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forum/internal/access"
	"forum/internal/models"
)

type mapCache struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMapCache() *mapCache {
	return &mapCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool, error) {
	if c.err != nil {
		return "", false, c.err
	}
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if c.err != nil {
		return c.err
	}
	c.values[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	if c.err != nil {
		return c.err
	}
	delete(c.values, key)
	return nil
}

func TestSessionCreateAndResolve(t *testing.T) {
	cache := newMapCache()
	store := NewStore(cache, 0)
	ctx := context.Background()

	p := &access.Principal{ID: uuid.New(), Username: "alice", Role: models.RoleModerator, Status: models.StatusActive}
	token, err := store.Create(ctx, p)
	require.NoError(t, err)
	assert.Len(t, token, idLength*2)
	assert.Equal(t, DefaultTTL, cache.ttls[keyPrefix+token])

	got, err := store.Principal(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	data, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.False(t, data.CreatedAt.IsZero())
}

func TestSessionUnknownTokenIsGuest(t *testing.T) {
	store := NewStore(newMapCache(), time.Hour)
	ctx := context.Background()

	for _, token := range []string{"", "deadbeef"} {
		p, err := store.Principal(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, p)
	}
}

func TestSessionDestroy(t *testing.T) {
	store := NewStore(newMapCache(), time.Hour)
	ctx := context.Background()

	token, err := store.Create(ctx, &access.Principal{ID: uuid.New(), Username: "bob", Role: models.RoleUser, Status: models.StatusActive})
	require.NoError(t, err)
	require.NoError(t, store.Destroy(ctx, token))

	p, err := store.Principal(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSessionCacheErrors(t *testing.T) {
	cache := newMapCache()
	store := NewStore(cache, time.Hour)
	cache.err = errors.New("connection refused")

	_, err := store.Create(context.Background(), &access.Principal{ID: uuid.New()})
	assert.Error(t, err)
	_, err = store.Principal(context.Background(), "abc")
	assert.Error(t, err)
}

func TestSessionCorruptPayload(t *testing.T) {
	cache := newMapCache()
	cache.values[keyPrefix+"bad"] = "{not json"
	_, err := NewStore(cache, time.Hour).Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestGenerateIDUnique(t *testing.T) {
	a, err := generateID()
	require.NoError(t, err)
	b, err := generateID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
