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

// PostStore handles post rows.
type PostStore struct {
	db DBTX
}

// NewPostStore creates a new PostStore.
func NewPostStore(db DBTX) *PostStore {
	return &PostStore{db: db}
}

// WithTx returns a PostStore bound to tx.
func (s *PostStore) WithTx(tx *sql.Tx) *PostStore {
	return &PostStore{db: tx}
}

const postColumns = `id, content, thread_id, author_id, parent_post_id, is_thread_starter,
	is_edited, upvotes, downvotes, score, comment_count, created_at, updated_at`

func scanPost(row scanner) (*models.Post, error) {
	var p models.Post
	err := row.Scan(
		&p.ID, &p.Content, &p.ThreadID, &p.AuthorID, &p.ParentPostID, &p.IsThreadStarter,
		&p.IsEdited, &p.Upvotes, &p.Downvotes, &p.Score, &p.CommentCount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a post.
func (s *PostStore) Create(ctx context.Context, p *models.Post) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO posts (content, thread_id, author_id, parent_post_id, is_thread_starter)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+postColumns,
		p.Content, p.ThreadID, p.AuthorID, p.ParentPostID, p.IsThreadStarter,
	)
	created, err := scanPost(row)
	if err != nil {
		return nil, conflictOr(err, "create post", "thread %s already has a starter post", p.ThreadID)
	}
	return created, nil
}

// FindByID retrieves a post by ID.
func (s *PostStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("post %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find post by id: %w", err)
	}
	return p, nil
}

// ExistsInThread reports whether post id belongs to threadID.
func (s *PostStore) ExistsInThread(ctx context.Context, id, threadID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM posts WHERE id = $1 AND thread_id = $2)`, id, threadID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check post in thread: %w", err)
	}
	return exists, nil
}

// ListByThread returns one page of a thread's posts, oldest first.
func (s *PostStore) ListByThread(ctx context.Context, threadID uuid.UUID, page, limit int) ([]models.Post, int, error) {
	total, err := s.CountByThread(ctx, threadID)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE thread_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, threadID, limit, offset(page, limit))
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var items []models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, *p)
	}
	return items, total, rows.Err()
}

// CountByThread counts every post of a thread, starter included.
func (s *PostStore) CountByThread(ctx context.Context, threadID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE thread_id = $1`, threadID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// UpdateContent replaces a post's content and marks it edited.
func (s *PostStore) UpdateContent(ctx context.Context, id uuid.UUID, content string) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE posts SET content = $1, is_edited = TRUE, updated_at = clock_timestamp()
		WHERE id = $2
		RETURNING `+postColumns,
		content, id,
	)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("post %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return p, nil
}

// Delete removes a post; its votes and comments cascade.
func (s *PostStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("post %s not found", id)
	}
	return nil
}
