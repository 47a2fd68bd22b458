// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package dbtest hands integration tests a migrated PostgreSQL database.
// It uses the server named by the POSTGRES_* variables when it answers,
// starts a throwaway container through testcontainers otherwise, and skips
// the calling test when neither is possible.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"forum/internal/database"
)

// migrateLockKey keeps parallel test binaries from migrating at once.
const migrateLockKey = 7302

var (
	once      sync.Once
	shared    *sql.DB
	container *postgres.PostgresContainer
	setupErr  error
)

// Open returns the shared test database, skipping t when none is available.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	once.Do(func() { shared, setupErr = setup(context.Background()) })
	if setupErr != nil {
		t.Skipf("skipping integration test: %v", setupErr)
	}
	return shared
}

// Terminate closes the pool and stops the container, if one was started.
// Call it from TestMain after m.Run.
func Terminate() {
	if shared != nil {
		shared.Close()
	}
	if container != nil {
		if err := container.Terminate(context.Background()); err != nil {
			slog.Warn("terminate postgres container", "error", err)
		}
	}
}

// Main is a TestMain body: run the tests, tear down, exit.
func Main(m *testing.M) {
	code := m.Run()
	Terminate()
	os.Exit(code)
}

func setup(ctx context.Context) (*sql.DB, error) {
	db, envErr := connect(ctx, envDSN())
	if envErr != nil {
		dsn, err := startContainer(ctx)
		if err != nil {
			return nil, fmt.Errorf("postgres not reachable (%v) and no container: %w", envErr, err)
		}
		if db, err = connect(ctx, dsn); err != nil {
			return nil, err
		}
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// envDSN uses environment variables with defaults matching docker-compose.yml.
func envDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "forum")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "forum")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func startContainer(ctx context.Context) (dsn string, err error) {
	// The docker provider panics on some hosts without a daemon.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("testcontainers: %v", r)
		}
	}()

	c, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("forum"),
		postgres.WithUsername("forum"),
		postgres.WithPassword("forum"),
		testcontainers.WithWaitStrategy(
			// The image restarts once after initdb, so wait for the second ready line.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return "", err
	}
	container = c
	return c.ConnectionString(ctx, "sslmode=disable")
}

func migrate(ctx context.Context, db *sql.DB) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrateLockKey); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	defer conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, migrateLockKey)

	return database.Migrate(db)
}
