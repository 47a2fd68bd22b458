// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package views counts thread views once per client IP within a
// configurable window.
package views

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"forum/internal/metrics"
)

// DefaultWindow is how long a (thread, IP) pair counts as already seen.
const DefaultWindow = 24 * time.Hour

// incrementTimeout bounds the background view_count update.
const incrementTimeout = 5 * time.Second

// Cache is the presence set the tracker records seen pairs in.
type Cache interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// Incrementer bumps a thread's view counter.
type Incrementer interface {
	IncrementViewCount(ctx context.Context, threadID uuid.UUID) error
}

// Tracker records thread views. The counter update runs in the background
// and never fails the read that triggered it.
type Tracker struct {
	cache   Cache
	threads Incrementer
	window  time.Duration
	wg      sync.WaitGroup
}

// NewTracker returns a Tracker. A zero window uses DefaultWindow.
func NewTracker(cache Cache, threads Incrementer, window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{cache: cache, threads: threads, window: window}
}

// Key is the cache key marking that ip has viewed threadID.
func Key(threadID uuid.UUID, ip string) string {
	return fmt.Sprintf("viewed_thread:%s:%s", threadID, ip)
}

// RecordView counts a view of threadID from ip unless that pair was seen
// within the window. Requests without an IP are never counted. When the
// cache is unavailable the view is counted.
func (t *Tracker) RecordView(ctx context.Context, threadID uuid.UUID, ip string) {
	if ip == "" {
		slog.Debug("thread view without client ip not counted", "thread_id", threadID)
		return
	}

	first, err := t.cache.SetNX(ctx, Key(threadID, ip), "1", t.window)
	if err != nil {
		slog.Warn("view tracker cache unavailable, counting view", "thread_id", threadID, "error", err)
		first = true
	}
	if !first {
		return
	}

	metrics.ViewsRecorded.Inc()
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), incrementTimeout)
		defer cancel()
		if err := t.threads.IncrementViewCount(bg, threadID); err != nil {
			metrics.ViewIncrementFailures.Inc()
			slog.Error("failed to increment thread views", "thread_id", threadID, "error", err)
		}
	}()
}

// Wait blocks until every background increment has finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
