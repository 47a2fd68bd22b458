// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package forum implements the category, thread, post, vote and comment
// operations. Every mutation checks the caller, runs in a single database
// transaction and updates the denormalized counters on that transaction.
package forum

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"forum/internal/apperr"
	"forum/internal/metrics"
	"forum/internal/store"
)

// Page size defaults and limits per listing.
const (
	DefaultThreadLimit  = 15
	DefaultPostLimit    = 20
	DefaultCommentLimit = 10
	MaxLimit            = 100
	MaxCommentLimit     = 50
)

// ViewRecorder counts a thread view for a client address.
type ViewRecorder interface {
	RecordView(ctx context.Context, threadID uuid.UUID, ip string)
}

// Options tunes the service. The zero value uses the defaults.
type Options struct {
	// VoteRetries is how often a vote is retried after losing an insert
	// race on the (user, post) unique key.
	VoteRetries uint64
	// VoteBackoff is the constant pause between vote retries.
	VoteBackoff time.Duration
}

// Service is the forum lifecycle manager.
type Service struct {
	db         *sql.DB
	categories *store.CategoryStore
	threads    *store.ThreadStore
	posts      *store.PostStore
	votes      *store.VoteStore
	comments   *store.CommentStore
	views      ViewRecorder
	opts       Options
}

// New creates a Service. views may be nil, in which case reads never count
// views.
func New(db *sql.DB, views ViewRecorder, opts Options) *Service {
	if opts.VoteRetries == 0 {
		opts.VoteRetries = 3
	}
	if opts.VoteBackoff == 0 {
		opts.VoteBackoff = 10 * time.Millisecond
	}
	return &Service{
		db:         db,
		categories: store.NewCategoryStore(db),
		threads:    store.NewThreadStore(db),
		posts:      store.NewPostStore(db),
		votes:      store.NewVoteStore(db),
		comments:   store.NewCommentStore(db),
		views:      views,
		opts:       opts,
	}
}

// mutate runs fn in a transaction and records its duration under op.
func (s *Service) mutate(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	start := time.Now()
	err := store.WithTx(ctx, s.db, fn)
	metrics.MutationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	return err
}

// counted bumps the counter-event metric once a mutation has committed.
func counted(event string) {
	metrics.CounterEvents.WithLabelValues(event).Inc()
}

// paging normalizes a 1-based page and a limit. Zero selects the first page
// or the default limit.
func paging(page, limit, defaultLimit, maxLimit int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultLimit
	}
	if page < 1 {
		return 0, 0, apperr.Invalid("page must be at least 1")
	}
	if limit < 1 || limit > maxLimit {
		return 0, 0, apperr.Invalid("limit must be between 1 and %d", maxLimit)
	}
	return page, limit, nil
}
