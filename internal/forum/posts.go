// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package forum

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"

	"forum/internal/access"
	"forum/internal/apperr"
	"forum/internal/models"
	"forum/internal/store"
	"forum/internal/validate"
)

// ReplyInput is a new post in an existing thread.
type ReplyInput struct {
	Content      string     `json:"content" validate:"notblank,max=50000"`
	ParentPostID *uuid.UUID `json:"parent_post_id"`
}

// UpdatePostInput replaces a post's content.
type UpdatePostInput struct {
	Content string `json:"content" validate:"notblank,max=50000"`
}

// PostPage is one page of a thread's posts.
type PostPage = models.Page[models.Post]

// postScope loads a post with its thread and category after checking the
// caller may view the category.
func (s *Service) postScope(ctx context.Context, p *access.Principal, postID uuid.UUID) (*models.Post, *models.Thread, *models.Category, error) {
	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, nil, nil, err
	}
	thread, err := s.threads.FindByID(ctx, post.ThreadID)
	if err != nil {
		return nil, nil, nil, err
	}
	category, err := s.categoryFor(ctx, p, thread.CategoryID)
	if err != nil {
		return nil, nil, nil, err
	}
	return post, thread, category, nil
}

// CreateReply adds a post to a thread and counts it. Locked threads accept
// no replies from anyone.
func (s *Service) CreateReply(ctx context.Context, p *access.Principal, threadID uuid.UUID, in ReplyInput) (*models.Post, error) {
	if err := access.RequireActive(p); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	var reply *models.Post
	err := s.mutate(ctx, "create_reply", func(tx *sql.Tx) error {
		thread, err := s.threads.WithTx(tx).FindForUpdate(ctx, threadID)
		if err != nil {
			return err
		}
		category, err := viewableCategory(ctx, s.categories.WithTx(tx), p, thread.CategoryID)
		if err != nil {
			return err
		}
		if err := access.Require(category.MinPostRole, p, "post in this category"); err != nil {
			return err
		}
		if thread.IsLocked {
			return apperr.Forbidden("thread is locked")
		}

		posts := s.posts.WithTx(tx)
		if in.ParentPostID != nil {
			ok, err := posts.ExistsInThread(ctx, *in.ParentPostID, thread.ID)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NotFound("parent post %s not found in this thread", *in.ParentPostID)
			}
		}

		reply, err = posts.Create(ctx, &models.Post{
			Content:      in.Content,
			ThreadID:     thread.ID,
			AuthorID:     &p.ID,
			ParentPostID: in.ParentPostID,
		})
		if err != nil {
			return err
		}
		return store.OnReplyCreated(ctx, tx, reply)
	})
	if err != nil {
		return nil, err
	}

	counted("reply_created")
	slog.Info("reply created", "post_id", reply.ID, "thread_id", threadID, "author", p.Username)
	return reply, nil
}

// GetPost returns a single post the caller may see.
func (s *Service) GetPost(ctx context.Context, p *access.Principal, id uuid.UUID) (*models.Post, error) {
	post, _, _, err := s.postScope(ctx, p, id)
	return post, err
}

// ListPosts returns one page of a thread's posts, oldest first.
func (s *Service) ListPosts(ctx context.Context, p *access.Principal, threadIDOrSlug string, page, limit int) (*PostPage, error) {
	page, limit, err := paging(page, limit, DefaultPostLimit, MaxLimit)
	if err != nil {
		return nil, err
	}
	thread, err := s.threads.FindOne(ctx, threadIDOrSlug)
	if err != nil {
		return nil, err
	}
	if _, err := s.categoryFor(ctx, p, thread.CategoryID); err != nil {
		return nil, err
	}
	items, total, err := s.posts.ListByThread(ctx, thread.ID, page, limit)
	if err != nil {
		return nil, err
	}
	return &PostPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// UpdatePost replaces the content of a post the caller owns or moderates.
func (s *Service) UpdatePost(ctx context.Context, p *access.Principal, id uuid.UUID, in UpdatePostInput) (*models.Post, error) {
	if err := access.RequireActive(p); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	post, _, _, err := s.postScope(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwnerOrModerator(p, post.AuthorID, "edit this post"); err != nil {
		return nil, err
	}

	updated, err := s.posts.UpdateContent(ctx, id, in.Content)
	if err != nil {
		return nil, err
	}
	slog.Info("post updated", "post_id", id, "by", p.Username)
	return updated, nil
}

// DeletePost removes a reply and uncounts it. A starter post can only go
// with its thread.
func (s *Service) DeletePost(ctx context.Context, p *access.Principal, id uuid.UUID) error {
	if err := access.RequireActive(p); err != nil {
		return err
	}

	err := s.mutate(ctx, "delete_post", func(tx *sql.Tx) error {
		posts := s.posts.WithTx(tx)
		post, err := posts.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := access.RequireOwnerOrModerator(p, post.AuthorID, "delete this post"); err != nil {
			return err
		}
		if post.IsThreadStarter {
			return apperr.Invalid("the first post of a thread cannot be deleted; delete the thread instead")
		}
		if err := posts.Delete(ctx, id); err != nil {
			return err
		}
		return store.OnReplyRemoved(ctx, tx, post.ThreadID, post.ID)
	})
	if err != nil {
		return err
	}

	counted("reply_removed")
	slog.Info("post deleted", "post_id", id, "by", p.Username)
	return nil
}
