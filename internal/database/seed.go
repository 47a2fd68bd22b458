// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// Seed populates the database with initial development data: an active
// admin account and a "General" root category. It is a no-op once an admin
// exists.
func Seed(db *sql.DB, adminPassword string) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users WHERE role = 'admin'").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO users (username, email, password_hash, role, status)
		VALUES ($1, $2, $3, 'admin', 'active')
		ON CONFLICT DO NOTHING
	`, "admin", "admin@forum.local", string(hash))
	if err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	var categoryID string
	err = tx.QueryRow(`
		INSERT INTO categories (name, slug, description)
		VALUES ('General', 'general', 'Anything that does not fit elsewhere.')
		ON CONFLICT (slug) DO NOTHING
		RETURNING id
	`).Scan(&categoryID)
	switch {
	case err == sql.ErrNoRows:
		// Category already present from an earlier run.
	case err != nil:
		return fmt.Errorf("seed insert category: %w", err)
	default:
		if _, err := tx.Exec(`
			INSERT INTO category_closure (ancestor_id, descendant_id, depth)
			VALUES ($1, $1, 0)
		`, categoryID); err != nil {
			return fmt.Errorf("seed category closure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with default admin user",
		"username", "admin",
		"email", "admin@forum.local",
	)
	return nil
}
