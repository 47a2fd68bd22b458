// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package views

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	mu   sync.Mutex
	keys map[string]time.Duration
	err  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{keys: make(map[string]time.Duration)}
}

func (c *fakeCache) SetNX(_ context.Context, key, _ string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if _, ok := c.keys[key]; ok {
		return false, nil
	}
	c.keys[key] = ttl
	return true, nil
}

type fakeThreads struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int
	err    error
}

func newFakeThreads() *fakeThreads {
	return &fakeThreads{counts: make(map[uuid.UUID]int)}
}

func (f *fakeThreads) IncrementViewCount(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.counts[id]++
	return nil
}

func (f *fakeThreads) count(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[id]
}

func TestKey(t *testing.T) {
	id := uuid.MustParse("7b0c2c4e-59a4-4b57-9f0e-3d5b2b0e8a11")
	assert.Equal(t, "viewed_thread:7b0c2c4e-59a4-4b57-9f0e-3d5b2b0e8a11:10.0.0.1", Key(id, "10.0.0.1"))
}

func TestRecordViewCountsOncePerIP(t *testing.T) {
	cache, threads := newFakeCache(), newFakeThreads()
	tr := NewTracker(cache, threads, time.Hour)
	ctx := context.Background()
	thread := uuid.New()

	tr.RecordView(ctx, thread, "10.0.0.1")
	tr.RecordView(ctx, thread, "10.0.0.1")
	tr.RecordView(ctx, thread, "10.0.0.2")
	tr.Wait()

	assert.Equal(t, 2, threads.count(thread))
	assert.Equal(t, time.Hour, cache.keys[Key(thread, "10.0.0.1")])
}

func TestRecordViewWithoutIPIsIgnored(t *testing.T) {
	cache, threads := newFakeCache(), newFakeThreads()
	tr := NewTracker(cache, threads, 0)
	thread := uuid.New()

	tr.RecordView(context.Background(), thread, "")
	tr.Wait()

	assert.Zero(t, threads.count(thread))
	assert.Empty(t, cache.keys)
}

func TestRecordViewFailsOpenWhenCacheErrors(t *testing.T) {
	cache, threads := newFakeCache(), newFakeThreads()
	cache.err = errors.New("connection refused")
	tr := NewTracker(cache, threads, 0)
	thread := uuid.New()

	tr.RecordView(context.Background(), thread, "10.0.0.1")
	tr.Wait()

	assert.Equal(t, 1, threads.count(thread))
}

func TestRecordViewSwallowsIncrementErrors(t *testing.T) {
	threads := newFakeThreads()
	threads.err = errors.New("db down")
	tr := NewTracker(newFakeCache(), threads, 0)

	require.NotPanics(t, func() {
		tr.RecordView(context.Background(), uuid.New(), "10.0.0.1")
		tr.Wait()
	})
}

func TestRecordViewSurvivesCanceledRequest(t *testing.T) {
	threads := newFakeThreads()
	tr := NewTracker(newFakeCache(), threads, 0)
	thread := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	tr.RecordView(ctx, thread, "10.0.0.1")
	cancel()
	tr.Wait()

	assert.Equal(t, 1, threads.count(thread))
}

func TestNewTrackerDefaultWindow(t *testing.T) {
	tr := NewTracker(newFakeCache(), newFakeThreads(), 0)
	assert.Equal(t, DefaultWindow, tr.window)
}
