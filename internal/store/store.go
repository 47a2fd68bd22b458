// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store provides database access methods for all forum entities.
// Each store struct wraps a DBTX (a *sql.DB or a *sql.Tx) and exposes typed
// query methods; WithTx rebinds a store to a caller-owned transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"forum/internal/apperr"
)

// uniqueViolation is the SQLSTATE PostgreSQL reports for duplicate keys.
const uniqueViolation = "23505"

// DBTX is the subset of *sql.DB and *sql.Tx the stores need.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise, so a failed counter update undoes
// the mutation that triggered it.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// inTx runs fn in a fresh transaction when db is a pool, or directly on db
// when it is already a transaction.
func inTx(ctx context.Context, db DBTX, fn func(DBTX) error) error {
	pool, ok := db.(*sql.DB)
	if !ok {
		return fn(db)
	}
	return WithTx(ctx, pool, func(tx *sql.Tx) error { return fn(tx) })
}

// IsUniqueViolation reports whether err is a PostgreSQL duplicate-key error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// conflictOr maps a duplicate-key error to apperr.Conflict and wraps
// anything else with the operation name.
func conflictOr(err error, op, format string, args ...any) error {
	if IsUniqueViolation(err) {
		return apperr.Wrap(apperr.KindConflict, err, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("%s: %w", op, err)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Identifier resolves a route-style identifier: UUID-shaped strings are
// looked up by id, anything else by slug.
func Identifier(idOrSlug string) (uuid.UUID, bool) {
	id, err := uuid.Parse(idOrSlug)
	return id, err == nil
}

// offset converts a 1-based page into a row offset.
func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
