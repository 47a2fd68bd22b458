// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package forum

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"forum/internal/access"
	"forum/internal/models"
	"forum/internal/store"
	"forum/internal/validate"
)

// CommentInput is a short remark attached to a post.
type CommentInput struct {
	Content string `json:"content" validate:"notblank,max=1000"`
}

// CommentPage is one page of a post's comments.
type CommentPage = models.Page[models.PostComment]

// AddComment attaches a comment to a post and counts it.
func (s *Service) AddComment(ctx context.Context, p *access.Principal, postID uuid.UUID, in CommentInput) (*models.PostComment, error) {
	if err := access.RequireActive(p); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	_, _, category, err := s.postScope(ctx, p, postID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(category.MinPostRole, p, "comment in this category"); err != nil {
		return nil, err
	}

	var comment *models.PostComment
	err = s.mutate(ctx, "add_comment", func(tx *sql.Tx) error {
		var err error
		comment, err = s.comments.WithTx(tx).Create(ctx, &models.PostComment{
			Content:  in.Content,
			PostID:   postID,
			AuthorID: &p.ID,
		})
		if err != nil {
			return err
		}
		return store.OnCommentCreated(ctx, tx, postID)
	})
	if err != nil {
		return nil, err
	}
	counted("comment_created")
	return comment, nil
}

// ListComments returns one page of a post's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, p *access.Principal, postID uuid.UUID, page, limit int) (*CommentPage, error) {
	page, limit, err := paging(page, limit, DefaultCommentLimit, MaxCommentLimit)
	if err != nil {
		return nil, err
	}
	if _, _, _, err := s.postScope(ctx, p, postID); err != nil {
		return nil, err
	}
	items, total, err := s.comments.ListByPost(ctx, postID, page, limit)
	if err != nil {
		return nil, err
	}
	return &CommentPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}
