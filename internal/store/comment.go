// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"forum/internal/models"
)

// CommentStore handles post_comments rows.
type CommentStore struct {
	db DBTX
}

// NewCommentStore creates a new CommentStore.
func NewCommentStore(db DBTX) *CommentStore {
	return &CommentStore{db: db}
}

// WithTx returns a CommentStore bound to tx.
func (s *CommentStore) WithTx(tx *sql.Tx) *CommentStore {
	return &CommentStore{db: tx}
}

const commentColumns = `id, content, post_id, author_id, created_at`

// Create inserts a comment.
func (s *CommentStore) Create(ctx context.Context, c *models.PostComment) (*models.PostComment, error) {
	var out models.PostComment
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO post_comments (content, post_id, author_id)
		VALUES ($1, $2, $3)
		RETURNING `+commentColumns,
		c.Content, c.PostID, c.AuthorID,
	).Scan(&out.ID, &out.Content, &out.PostID, &out.AuthorID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return &out, nil
}

// ListByPost returns one page of a post's comments, oldest first.
func (s *CommentStore) ListByPost(ctx context.Context, postID uuid.UUID, page, limit int) ([]models.PostComment, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM post_comments WHERE post_id = $1`, postID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM post_comments
		WHERE post_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, postID, limit, offset(page, limit))
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var items []models.PostComment
	for rows.Next() {
		var c models.PostComment
		if err := rows.Scan(&c.ID, &c.Content, &c.PostID, &c.AuthorID, &c.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}
