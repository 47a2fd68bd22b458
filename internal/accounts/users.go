// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package accounts

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"forum/internal/access"
	"forum/internal/apperr"
	"forum/internal/models"
	"forum/internal/validate"
)

// Page size default and limit for the user listing.
const (
	DefaultUserLimit = 20
	MaxUserLimit     = 100
)

// UserPage is one page of the admin user listing.
type UserPage = models.Page[models.User]

// ProfileInput edits the caller's public profile. A nil field is kept and
// an empty string clears it.
type ProfileInput struct {
	AvatarURL *string `json:"avatar_url" validate:"omitnil,url,max=255"`
	Location  *string `json:"location" validate:"omitnil,max=100"`
	Signature *string `json:"signature" validate:"omitnil,max=100"`
}

// AccessInput is an admin change to a user's role and/or status.
type AccessInput struct {
	Role   *models.Role       `json:"role" validate:"omitnil,oneof=admin moderator user guest"`
	Status *models.UserStatus `json:"status" validate:"omitnil,oneof=active pending_verification suspended banned"`
}

func requireAdmin(p *access.Principal) error {
	if err := access.RequireActive(p); err != nil {
		return err
	}
	return access.Require(models.RoleAdmin, p, "manage users")
}

// ListUsers returns one page of accounts, newest first. Admin only.
func (s *Service) ListUsers(ctx context.Context, p *access.Principal, page, limit int) (*UserPage, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = DefaultUserLimit
	}
	if page < 1 {
		return nil, apperr.Invalid("page must be at least 1")
	}
	if limit < 1 || limit > MaxUserLimit {
		return nil, apperr.Invalid("limit must be between 1 and %d", MaxUserLimit)
	}

	items, total, err := s.users.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	return &UserPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Profile returns the public profile of username. Anyone may read it.
func (s *Service) Profile(ctx context.Context, username string) (*models.Profile, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user %q not found", username)
	}
	profile := u.Profile()
	return &profile, nil
}

// UpdateProfile edits the caller's own profile fields.
func (s *Service) UpdateProfile(ctx context.Context, p *access.Principal, in ProfileInput) (*models.User, error) {
	if err := access.RequireActive(p); err != nil {
		return nil, err
	}
	if err := validate.Struct(ProfileInput{
		AvatarURL: nonEmpty(in.AvatarURL),
		Location:  nonEmpty(in.Location),
		Signature: nonEmpty(in.Signature),
	}); err != nil {
		return nil, err
	}

	u, err := s.users.FindByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user %s not found", p.ID)
	}
	avatar, location, signature := overlay(u.AvatarURL, in.AvatarURL), overlay(u.Location, in.Location), overlay(u.Signature, in.Signature)

	updated, err := s.users.UpdateProfile(ctx, u.ID, avatar, location, signature)
	if err != nil {
		return nil, err
	}
	slog.Info("profile updated", "user_id", u.ID)
	return updated, nil
}

// SetAccess changes a user's role and/or status. Admin only; at least one
// of the two must be given.
func (s *Service) SetAccess(ctx context.Context, p *access.Principal, id uuid.UUID, in AccessInput) (*models.User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if in.Role == nil && in.Status == nil {
		return nil, apperr.Invalid("role or status is required")
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	if in.Role != nil {
		if err := s.users.SetRole(ctx, id, *in.Role); err != nil {
			return nil, err
		}
	}
	if in.Status != nil {
		if err := s.users.SetStatus(ctx, id, *in.Status); err != nil {
			return nil, err
		}
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user %s not found", id)
	}
	slog.Info("user access changed", "user_id", id, "role", u.Role, "status", u.Status, "by", p.Username)
	return u, nil
}

// nonEmpty drops empty strings so they skip validation.
func nonEmpty(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}

// overlay applies a profile edit: nil keeps current, empty clears.
func overlay(current, edit *string) *string {
	switch {
	case edit == nil:
		return current
	case *edit == "":
		return nil
	default:
		return edit
	}
}
