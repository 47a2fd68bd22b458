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
	"forum/internal/slug"
	"forum/internal/store"
	"forum/internal/validate"
)

// CreateThreadInput opens a thread with its starter post. The flags are
// honoured only for moderators.
type CreateThreadInput struct {
	CategoryID uuid.UUID `json:"category_id" validate:"required"`
	Title      string    `json:"title" validate:"notblank,min=5,max=255"`
	Content    string    `json:"content" validate:"notblank,max=50000"`
	IsPinned   bool      `json:"is_pinned"`
	IsLocked   bool      `json:"is_locked"`
}

// UpdateThreadInput changes a thread. Nil fields are left alone.
type UpdateThreadInput struct {
	Title    *string `json:"title" validate:"omitnil,notblank,min=5,max=255"`
	IsLocked *bool   `json:"is_locked"`
	IsPinned *bool   `json:"is_pinned"`
}

// ThreadPage is one page of a category's threads.
type ThreadPage = models.Page[models.Thread]

// threadSlug derives the slug for a title.
func threadSlug(title string) (string, error) {
	s := slug.Generate(title)
	if s == "" {
		return "", apperr.Invalid("title %q does not produce a usable slug", title)
	}
	return s, nil
}

// CreateThread opens a thread in a category together with its starter post
// and counts both.
func (s *Service) CreateThread(ctx context.Context, p *access.Principal, in CreateThreadInput) (*models.Thread, *models.Post, error) {
	if err := access.RequireActive(p); err != nil {
		return nil, nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, nil, err
	}
	threadSlugValue, err := threadSlug(in.Title)
	if err != nil {
		return nil, nil, err
	}

	category, err := s.categories.FindByID(ctx, in.CategoryID)
	if err != nil {
		return nil, nil, err
	}
	if err := access.Require(category.MinViewRole, p, "view this category"); err != nil {
		return nil, nil, err
	}
	if err := access.Require(category.MinThreadRole, p, "create threads in this category"); err != nil {
		return nil, nil, err
	}

	moderator := access.CanModerate(p)
	var (
		thread  *models.Thread
		starter *models.Post
	)
	err = s.mutate(ctx, "create_thread", func(tx *sql.Tx) error {
		var err error
		thread, err = s.threads.WithTx(tx).Create(ctx, &models.Thread{
			Title:      in.Title,
			Slug:       threadSlugValue,
			CategoryID: category.ID,
			AuthorID:   &p.ID,
			IsPinned:   in.IsPinned && moderator,
			IsLocked:   in.IsLocked && moderator,
		})
		if err != nil {
			return err
		}
		starter, err = s.posts.WithTx(tx).Create(ctx, &models.Post{
			Content:         in.Content,
			ThreadID:        thread.ID,
			AuthorID:        &p.ID,
			IsThreadStarter: true,
		})
		if err != nil {
			return err
		}
		return store.OnThreadCreated(ctx, tx, thread, starter)
	})
	if err != nil {
		return nil, nil, err
	}

	counted("thread_created")
	slog.Info("thread created", "thread_id", thread.ID, "category_id", category.ID, "author", p.Username)
	return thread, starter, nil
}

// GetThread returns a thread the caller may see and counts the view for ip.
func (s *Service) GetThread(ctx context.Context, p *access.Principal, idOrSlug, ip string) (*models.Thread, error) {
	thread, err := s.threads.FindOne(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if _, err := s.categoryFor(ctx, p, thread.CategoryID); err != nil {
		return nil, err
	}
	if s.views != nil {
		s.views.RecordView(ctx, thread.ID, ip)
	}
	return thread, nil
}

// categoryFor loads a category and checks the caller may view it.
func (s *Service) categoryFor(ctx context.Context, p *access.Principal, categoryID uuid.UUID) (*models.Category, error) {
	return viewableCategory(ctx, s.categories, p, categoryID)
}

// viewableCategory is categoryFor on a given store. Inside a transaction
// pass the tx-bound store so the lookup does not wait on a second pool
// connection.
func viewableCategory(ctx context.Context, categories *store.CategoryStore, p *access.Principal, categoryID uuid.UUID) (*models.Category, error) {
	category, err := categories.FindByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(category.MinViewRole, p, "view this category"); err != nil {
		return nil, err
	}
	return category, nil
}

// ListThreads returns one page of a category's threads, pinned first and
// then by latest activity.
func (s *Service) ListThreads(ctx context.Context, p *access.Principal, categoryIDOrSlug string, page, limit int) (*ThreadPage, error) {
	page, limit, err := paging(page, limit, DefaultThreadLimit, MaxLimit)
	if err != nil {
		return nil, err
	}
	category, err := s.ViewCategory(ctx, p, categoryIDOrSlug)
	if err != nil {
		return nil, err
	}
	items, total, err := s.threads.ListByCategory(ctx, category.ID, page, limit)
	if err != nil {
		return nil, err
	}
	return &ThreadPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// UpdateThread edits a thread. The author or a moderator may retitle it;
// lock and pin changes from anyone but a moderator are ignored.
func (s *Service) UpdateThread(ctx context.Context, p *access.Principal, id uuid.UUID, in UpdateThreadInput) (*models.Thread, error) {
	if err := access.RequireActive(p); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	var updated *models.Thread
	err := s.mutate(ctx, "update_thread", func(tx *sql.Tx) error {
		threads := s.threads.WithTx(tx)
		thread, err := threads.FindForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := access.RequireOwnerOrModerator(p, thread.AuthorID, "update this thread"); err != nil {
			return err
		}

		if in.Title != nil {
			thread.Slug, err = threadSlug(*in.Title)
			if err != nil {
				return err
			}
			thread.Title = *in.Title
		}
		if access.CanModerate(p) {
			if in.IsLocked != nil {
				thread.IsLocked = *in.IsLocked
			}
			if in.IsPinned != nil {
				thread.IsPinned = *in.IsPinned
			}
		}
		updated, err = threads.Update(ctx, thread)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("thread updated", "thread_id", id, "by", p.Username)
	return updated, nil
}

// DeleteThread removes a thread with all its posts and uncounts them.
func (s *Service) DeleteThread(ctx context.Context, p *access.Principal, id uuid.UUID) error {
	if err := access.RequireActive(p); err != nil {
		return err
	}

	err := s.mutate(ctx, "delete_thread", func(tx *sql.Tx) error {
		thread, err := s.threads.WithTx(tx).FindForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := access.RequireOwnerOrModerator(p, thread.AuthorID, "delete this thread"); err != nil {
			return err
		}

		// Count before the cascade removes the posts.
		postCount, err := s.posts.WithTx(tx).CountByThread(ctx, id)
		if err != nil {
			return err
		}
		if err := s.threads.WithTx(tx).Delete(ctx, id); err != nil {
			return err
		}
		return store.OnThreadRemoved(ctx, tx, thread.CategoryID, postCount)
	})
	if err != nil {
		return err
	}

	counted("thread_removed")
	slog.Info("thread deleted", "thread_id", id, "by", p.Username)
	return nil
}
