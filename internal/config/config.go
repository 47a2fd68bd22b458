// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// devJWTSecret signs access tokens when JWT_SECRET is unset outside production.
const devJWTSecret = "dev-only-jwt-secret"

// Config holds all application configuration values loaded from the environment.
type Config struct {
	Env       string // "development", "production", "testing"
	LogLevel  string // "debug", "info", "warn", "error"
	LogFormat string // "text" or "json"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string
	CacheNamespace string

	// Forum behaviour
	ViewUniquenessTTL       time.Duration // window during which an IP counts once per thread
	RegistrationLimitPerDay int           // registrations per IP per calendar day
	VerificationTokenTTL    time.Duration
	SeedAdminPassword       string

	// Identity
	SessionTTL     time.Duration
	JWTSecret      string
	AccessTokenTTL time.Duration
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode or a value cannot be parsed.
func Load() (*Config, error) {
	cfg := &Config{
		Env:       envOrDefault("APP_ENV", "development"),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "text"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "forum"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "forum"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),
		CacheNamespace: envOrDefault("CACHE_NAMESPACE", "forum"),

		SeedAdminPassword: envOrDefault("SEED_ADMIN_PASSWORD", "admin"),
		JWTSecret:         envOrDefault("JWT_SECRET", devJWTSecret),
	}

	var err error
	if cfg.ViewUniquenessTTL, err = durationOrDefault("THREAD_VIEW_UNIQUENESS_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.VerificationTokenTTL, err = durationOrDefault("VERIFICATION_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RegistrationLimitPerDay, err = intOrDefault("REGISTRATION_LIMIT_PER_IP_PER_DAY", 2); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = durationOrDefault("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AccessTokenTTL, err = durationOrDefault("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if cfg.JWTSecret == devJWTSecret {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// durationOrDefault accepts Go durations ("36h") or plain seconds ("86400").
func durationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func intOrDefault(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}
