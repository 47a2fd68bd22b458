// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a user's permission level in the forum.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
	RoleGuest     Role = "guest"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleUser, RoleGuest:
		return true
	}
	return false
}

// UserStatus is the account lifecycle state.
type UserStatus string

const (
	StatusActive              UserStatus = "active"
	StatusPendingVerification UserStatus = "pending_verification"
	StatusSuspended           UserStatus = "suspended"
	StatusBanned              UserStatus = "banned"
)

// User represents a forum account.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never serialize the hash
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	AvatarURL    *string    `json:"avatar_url,omitempty"`
	Location     *string    `json:"location,omitempty"`
	Signature    *string    `json:"signature,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Profile is the public view of a user. It carries no email, status or id.
type Profile struct {
	Username    string     `json:"username"`
	AvatarURL   *string    `json:"avatar_url"`
	Location    *string    `json:"location"`
	Signature   *string    `json:"signature"`
	Role        Role       `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

// Profile returns the public view of u.
func (u *User) Profile() Profile {
	return Profile{
		Username:    u.Username,
		AvatarURL:   u.AvatarURL,
		Location:    u.Location,
		Signature:   u.Signature,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// Valid reports whether s is one of the known statuses.
func (s UserStatus) Valid() bool {
	switch s {
	case StatusActive, StatusPendingVerification, StatusSuspended, StatusBanned:
		return true
	}
	return false
}

// IsAdmin returns true if the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsActive returns true if the account may log in and write.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}
