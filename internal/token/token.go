// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package token issues and verifies signed HS256 access tokens carrying a
// caller's identity. It is the stateless counterpart of package session.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"forum/internal/access"
	"forum/internal/apperr"
	"forum/internal/models"
)

// DefaultTTL is how long an access token stays valid.
const DefaultTTL = 24 * time.Hour

// Claims is the token payload. The subject is the user ID.
type Claims struct {
	Username string            `json:"username"`
	Role     models.Role       `json:"role"`
	Status   models.UserStatus `json:"status"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies access tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer. A zero ttl uses DefaultTTL.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for p.
func (i *Issuer) Issue(p *access.Principal) (string, error) {
	now := i.now()
	claims := Claims{
		Username: p.Username,
		Role:     p.Role,
		Status:   p.Status,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", errors.New("can't create token")
	}
	return signed, nil
}

// Principal verifies raw and returns the identity it carries. Any invalid,
// expired or foreign token is Unauthorized.
func (i *Issuer) Principal(raw string) (*access.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.KindUnauthorized, err, "access token expired")
		}
		return nil, apperr.Wrap(apperr.KindUnauthorized, err, "invalid access token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, err, "invalid access token subject")
	}
	return &access.Principal{ID: id, Username: claims.Username, Role: claims.Role, Status: claims.Status}, nil
}
