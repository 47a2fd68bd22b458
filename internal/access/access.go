// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package access evaluates the role hierarchy used for category
// permissions and content ownership checks.
package access

import (
	"github.com/google/uuid"

	"forum/internal/apperr"
	"forum/internal/models"
)

// ranks orders roles from most to least privileged. Lower is stronger.
var ranks = map[models.Role]int{
	models.RoleAdmin:     0,
	models.RoleModerator: 1,
	models.RoleUser:      2,
	models.RoleGuest:     3,
}

// unknownRank sits below GUEST so unrecognised roles never gain access.
const unknownRank = 4

// Rank returns the numeric rank of a role.
func Rank(r models.Role) int {
	if n, ok := ranks[r]; ok {
		return n
	}
	return unknownRank
}

// HasPermission reports whether actual satisfies the required role.
// ADMIN always passes, independent of its rank.
func HasPermission(required, actual models.Role) bool {
	if actual == models.RoleAdmin {
		return true
	}
	return Rank(actual) <= Rank(required)
}

// Principal is the verified identity of the caller, as supplied by the
// identity provider. A nil *Principal is an anonymous guest.
type Principal struct {
	ID       uuid.UUID
	Username string
	Role     models.Role
	Status   models.UserStatus
}

// FromUser builds a principal from a stored user.
func FromUser(u *models.User) *Principal {
	return &Principal{ID: u.ID, Username: u.Username, Role: u.Role, Status: u.Status}
}

// RoleOf returns the effective role; anonymous callers are guests.
func RoleOf(p *Principal) models.Role {
	if p == nil {
		return models.RoleGuest
	}
	return p.Role
}

// Require fails with Forbidden when p does not hold the required role.
// action describes what was attempted, e.g. "create threads in this category".
func Require(required models.Role, p *Principal, action string) error {
	if HasPermission(required, RoleOf(p)) {
		return nil
	}
	return apperr.Forbidden("role %q or higher is required to %s", required, action)
}

// RequireActive fails unless p is an authenticated ACTIVE account.
// Every mutation passes through here before any role check.
func RequireActive(p *Principal) error {
	if p == nil {
		return apperr.Unauthorized("authentication required")
	}
	if p.Status != models.StatusActive {
		return apperr.Forbidden("account is %s", p.Status)
	}
	return nil
}

// CanModerate reports whether p is an admin or moderator.
func CanModerate(p *Principal) bool {
	if p == nil {
		return false
	}
	return p.Role == models.RoleAdmin || p.Role == models.RoleModerator
}

// IsOwner reports whether p authored the object.
func IsOwner(p *Principal, authorID *uuid.UUID) bool {
	return p != nil && authorID != nil && *authorID == p.ID
}

// RequireOwnerOrModerator fails unless p owns the object or can moderate.
func RequireOwnerOrModerator(p *Principal, authorID *uuid.UUID, action string) error {
	if IsOwner(p, authorID) || CanModerate(p) {
		return nil
	}
	return apperr.Forbidden("you do not have permission to %s", action)
}
