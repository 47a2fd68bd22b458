// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forum/internal/access"
	"forum/internal/apperr"
	"forum/internal/models"
)

func principal() *access.Principal {
	return &access.Principal{ID: uuid.New(), Username: "alice", Role: models.RoleModerator, Status: models.StatusActive}
}

func TestIssueAndVerify(t *testing.T) {
	iss, err := NewIssuer("s3cret", time.Hour)
	require.NoError(t, err)

	p := principal()
	raw, err := iss.Issue(p)
	require.NoError(t, err)

	got, err := iss.Principal(raw)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestRejectsOtherSecret(t *testing.T) {
	a, err := NewIssuer("first", time.Hour)
	require.NoError(t, err)
	b, err := NewIssuer("second", time.Hour)
	require.NoError(t, err)

	raw, err := a.Issue(principal())
	require.NoError(t, err)

	_, err = b.Principal(raw)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestRejectsExpired(t *testing.T) {
	iss, err := NewIssuer("s3cret", time.Minute)
	require.NoError(t, err)
	start := time.Now()
	iss.now = func() time.Time { return start }

	raw, err := iss.Issue(principal())
	require.NoError(t, err)

	iss.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, err = iss.Principal(raw)
	require.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestRejectsOtherAlgorithms(t *testing.T) {
	iss, err := NewIssuer("s3cret", time.Hour)
	require.NoError(t, err)

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.Principal(raw)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestRejectsGarbage(t *testing.T) {
	iss, err := NewIssuer("s3cret", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, iss.ttl)

	_, err = iss.Principal("not.a.token")
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))
}

func TestNewIssuerNeedsSecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	assert.Error(t, err)
}
