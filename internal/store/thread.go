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

	"forum/internal/apperr"
	"forum/internal/models"
)

// ThreadStore handles thread rows. Counter columns are only written through
// the functions in counters.go.
type ThreadStore struct {
	db DBTX
}

// NewThreadStore creates a new ThreadStore.
func NewThreadStore(db DBTX) *ThreadStore {
	return &ThreadStore{db: db}
}

// WithTx returns a ThreadStore bound to tx.
func (s *ThreadStore) WithTx(tx *sql.Tx) *ThreadStore {
	return &ThreadStore{db: tx}
}

const threadColumns = `id, title, slug, category_id, author_id, is_locked, is_pinned,
	view_count, reply_count, last_post_id, last_post_at, last_post_by_id,
	created_at, updated_at`

func scanThread(row scanner) (*models.Thread, error) {
	var t models.Thread
	err := row.Scan(
		&t.ID, &t.Title, &t.Slug, &t.CategoryID, &t.AuthorID, &t.IsLocked, &t.IsPinned,
		&t.ViewCount, &t.ReplyCount, &t.LastPostID, &t.LastPostAt, &t.LastPostByID,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a thread. Counters start at their column defaults.
func (s *ThreadStore) Create(ctx context.Context, t *models.Thread) (*models.Thread, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO threads (title, slug, category_id, author_id, is_locked, is_pinned)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+threadColumns,
		t.Title, t.Slug, t.CategoryID, t.AuthorID, t.IsLocked, t.IsPinned,
	)
	created, err := scanThread(row)
	if err != nil {
		return nil, conflictOr(err, "create thread", "thread slug %q already exists", t.Slug)
	}
	return created, nil
}

// FindByID retrieves a thread by ID.
func (s *ThreadStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	return s.findOne(ctx, `SELECT `+threadColumns+` FROM threads WHERE id = $1`, id)
}

// FindBySlug retrieves a thread by slug.
func (s *ThreadStore) FindBySlug(ctx context.Context, slugValue string) (*models.Thread, error) {
	return s.findOne(ctx, `SELECT `+threadColumns+` FROM threads WHERE slug = $1`, slugValue)
}

// FindOne looks a thread up by id or slug.
func (s *ThreadStore) FindOne(ctx context.Context, idOrSlug string) (*models.Thread, error) {
	if id, ok := Identifier(idOrSlug); ok {
		return s.FindByID(ctx, id)
	}
	return s.FindBySlug(ctx, idOrSlug)
}

// FindForUpdate reads a thread and row-locks it until the transaction ends.
func (s *ThreadStore) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	return s.findOne(ctx, `SELECT `+threadColumns+` FROM threads WHERE id = $1 FOR UPDATE`, id)
}

func (s *ThreadStore) findOne(ctx context.Context, query string, arg any) (*models.Thread, error) {
	t, err := scanThread(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("thread %v not found", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("find thread: %w", err)
	}
	return t, nil
}

// ListByCategory returns one page of a category's threads: pinned first,
// then by most recent activity.
func (s *ThreadStore) ListByCategory(ctx context.Context, categoryID uuid.UUID, page, limit int) ([]models.Thread, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM threads WHERE category_id = $1`, categoryID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count threads: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+threadColumns+`
		FROM threads
		WHERE category_id = $1
		ORDER BY is_pinned DESC, last_post_at DESC NULLS LAST, created_at DESC
		LIMIT $2 OFFSET $3
	`, categoryID, limit, offset(page, limit))
	if err != nil {
		return nil, 0, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var items []models.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan thread: %w", err)
		}
		items = append(items, *t)
	}
	return items, total, rows.Err()
}

// Update writes title, slug and the moderation flags.
func (s *ThreadStore) Update(ctx context.Context, t *models.Thread) (*models.Thread, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE threads SET
			title = $1, slug = $2, is_locked = $3, is_pinned = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING `+threadColumns,
		t.Title, t.Slug, t.IsLocked, t.IsPinned, t.ID,
	)
	updated, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("thread %s not found", t.ID)
	}
	if err != nil {
		return nil, conflictOr(err, "update thread", "thread slug %q already exists", t.Slug)
	}
	return updated, nil
}

// Delete removes a thread; its posts, votes and comments cascade.
func (s *ThreadStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("thread %s not found", id)
	}
	return nil
}

// IncrementViewCount bumps view_count by one.
func (s *ThreadStore) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE threads SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment thread views: %w", err)
	}
	return nil
}
