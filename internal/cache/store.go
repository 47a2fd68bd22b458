// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"forum/internal/metrics"
)

// BreakerSettings tunes the circuit breaker in front of Valkey.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings trips after five straight failures and probes
// again after ten seconds.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 10 * time.Second}
}

// Store is a namespaced key/value store with TTLs on top of Valkey. Every
// call goes through a circuit breaker so an unreachable cache costs one
// fast error instead of a network timeout per request.
type Store struct {
	client    *redis.Client
	namespace string
	breaker   *gobreaker.CircuitBreaker
}

// NewStore wraps client. Keys are prefixed with "<namespace>:".
func NewStore(client *redis.Client, namespace string, bs BreakerSettings) *Store {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "valkey",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("cache circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Store{client: client, namespace: namespace, breaker: breaker}
}

// Key returns the namespaced form of key.
func (s *Store) Key(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}

// do runs fn through the breaker and counts failures per operation.
func (s *Store) do(op string, fn func() (any, error)) (any, error) {
	v, err := s.breaker.Execute(fn)
	if err != nil {
		metrics.CacheFailures.WithLabelValues(op).Inc()
		return nil, fmt.Errorf("cache %s: %w", op, err)
	}
	return v, nil
}

// Get returns the value stored at key and whether it was present.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.do("get", func() (any, error) {
		val, err := s.client.Get(ctx, s.Key(key)).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return val, err
	})
	if err != nil || v == nil {
		return "", false, err
	}
	return v.(string), true, nil
}

// Set stores value at key for ttl.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := s.do("set", func() (any, error) {
		return nil, s.client.Set(ctx, s.Key(key), value, ttl).Err()
	})
	return err
}

// SetNX stores value only when key is absent and reports whether it did.
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	v, err := s.do("setnx", func() (any, error) {
		return s.client.SetNX(ctx, s.Key(key), value, ttl).Result()
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Incr increments the counter at key. A counter without an expiry gets
// ttl; existing expiries are kept. INCR and EXPIRE NX run in one
// MULTI/EXEC.
func (s *Store) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	v, err := s.do("incr", func() (any, error) {
		k := s.Key(key)
		var incr *redis.IntCmd
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, k)
			if ttl > 0 {
				pipe.ExpireNX(ctx, k, ttl)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return incr.Val(), nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.do("delete", func() (any, error) {
		return nil, s.client.Del(ctx, s.Key(key)).Err()
	})
	return err
}

// State reports the breaker state ("closed", "half-open", "open").
func (s *Store) State() string {
	return s.breaker.State().String()
}
