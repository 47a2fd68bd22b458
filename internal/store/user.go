// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"forum/internal/apperr"
	"forum/internal/models"
)

// UserStore handles all user-related database operations.
type UserStore struct {
	db DBTX
}

// NewUserStore creates a new UserStore with the given database connection.
func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, username, email, password_hash, role, status,
	avatar_url, location, signature, last_login_at, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Status,
		&u.AvatarURL, &u.Location, &u.Signature,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// FindByEmail retrieves a user by their email address. Returns nil if not found.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.find(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// FindByID retrieves a user by their UUID. Returns nil if not found.
func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.find(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByUsername retrieves a user by exact username. Returns nil if not found.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.find(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// FindByLogin matches either the username or the email (case-insensitive
// for email). Returns nil if not found.
func (s *UserStore) FindByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error) {
	return s.find(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE username = $1 OR LOWER(email) = LOWER($1)
		LIMIT 1
	`, usernameOrEmail)
}

func (s *UserStore) find(ctx context.Context, query string, arg any) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// Create inserts a new user with a bcrypt-hashed password.
func (s *UserStore) Create(ctx context.Context, username, email, password string, role models.Role, status models.UserStatus) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, role, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		username, email, string(hash), role, status,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, conflictOr(err, "create user", "username or email is already registered")
	}
	return u, nil
}

// SetStatus changes a user's account status.
func (s *UserStore) SetStatus(ctx context.Context, id uuid.UUID, status models.UserStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("user %s not found", id)
	}
	return nil
}

// SetRole changes a user's role.
func (s *UserStore) SetRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2
	`, role, id)
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("user %s not found", id)
	}
	return nil
}

// UpdateProfile replaces the public profile fields. A nil value clears the
// field.
func (s *UserStore) UpdateProfile(ctx context.Context, id uuid.UUID, avatarURL, location, signature *string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users SET avatar_url = $1, location = $2, signature = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING `+userColumns,
		avatarURL, location, signature, id,
	)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	return u, nil
}

// List returns one page of users, newest first, and the total count.
func (s *UserStore) List(ctx context.Context, page, limit int) ([]models.User, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, limit, offset(page, limit))
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// TouchLastLogin stamps last_login_at with the current time.
func (s *UserStore) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// CheckPassword verifies a plaintext password against the user's stored hash.
func (s *UserStore) CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}
