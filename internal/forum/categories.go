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
	"forum/internal/models"
	"forum/internal/store"
	"forum/internal/validate"
)

// CategoryInput is the admin-editable part of a category.
type CategoryInput struct {
	Name          string      `json:"name" validate:"notblank,min=2,max=100"`
	Description   string      `json:"description" validate:"max=2000"`
	ParentID      *uuid.UUID  `json:"parent_id"`
	DisplayOrder  int         `json:"display_order" validate:"gte=0"`
	MinViewRole   models.Role `json:"min_view_role" validate:"omitempty,oneof=admin moderator user guest"`
	MinThreadRole models.Role `json:"min_thread_role" validate:"omitempty,oneof=admin moderator user guest"`
	MinPostRole   models.Role `json:"min_post_role" validate:"omitempty,oneof=admin moderator user guest"`
}

func (in CategoryInput) storeInput() store.CategoryInput {
	return store.CategoryInput{
		Name:          in.Name,
		Description:   in.Description,
		ParentID:      in.ParentID,
		DisplayOrder:  in.DisplayOrder,
		MinViewRole:   in.MinViewRole,
		MinThreadRole: in.MinThreadRole,
		MinPostRole:   in.MinPostRole,
	}
}

// UpdateCategoryInput is a partial category edit. Nil fields keep their
// current value. A nil ParentID leaves the category where it is; use
// MoveCategory to make it a root.
type UpdateCategoryInput struct {
	Name          *string      `json:"name" validate:"omitnil,notblank,min=2,max=100"`
	Description   *string      `json:"description" validate:"omitnil,max=2000"`
	ParentID      *uuid.UUID   `json:"parent_id"`
	DisplayOrder  *int         `json:"display_order" validate:"omitnil,gte=0"`
	MinViewRole   *models.Role `json:"min_view_role" validate:"omitnil,oneof=admin moderator user guest"`
	MinThreadRole *models.Role `json:"min_thread_role" validate:"omitnil,oneof=admin moderator user guest"`
	MinPostRole   *models.Role `json:"min_post_role" validate:"omitnil,oneof=admin moderator user guest"`
}

// merge overlays the set fields of in on c.
func (in UpdateCategoryInput) merge(c *models.Category) store.CategoryInput {
	out := store.CategoryInput{
		Name:          c.Name,
		Description:   c.Description,
		ParentID:      c.ParentID,
		DisplayOrder:  c.DisplayOrder,
		MinViewRole:   c.MinViewRole,
		MinThreadRole: c.MinThreadRole,
		MinPostRole:   c.MinPostRole,
	}
	if in.Name != nil {
		out.Name = *in.Name
	}
	if in.Description != nil {
		out.Description = *in.Description
	}
	if in.DisplayOrder != nil {
		out.DisplayOrder = *in.DisplayOrder
	}
	if in.MinViewRole != nil {
		out.MinViewRole = *in.MinViewRole
	}
	if in.MinThreadRole != nil {
		out.MinThreadRole = *in.MinThreadRole
	}
	if in.MinPostRole != nil {
		out.MinPostRole = *in.MinPostRole
	}
	return out
}

func requireAdmin(p *access.Principal, action string) error {
	if err := access.RequireActive(p); err != nil {
		return err
	}
	return access.Require(models.RoleAdmin, p, action)
}

// ViewCategory returns a category the caller is allowed to see.
func (s *Service) ViewCategory(ctx context.Context, p *access.Principal, idOrSlug string) (*models.Category, error) {
	c, err := s.categories.FindOne(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if err := access.Require(c.MinViewRole, p, "view this category"); err != nil {
		return nil, err
	}
	return c, nil
}

// CategoryTree returns the forest of categories visible to the caller. A
// hidden category hides its whole subtree.
func (s *Service) CategoryTree(ctx context.Context, p *access.Principal) ([]models.Category, error) {
	tree, err := s.categories.Tree(ctx)
	if err != nil {
		return nil, err
	}
	return visible(tree, access.RoleOf(p)), nil
}

func visible(nodes []models.Category, role models.Role) []models.Category {
	out := make([]models.Category, 0, len(nodes))
	for _, c := range nodes {
		if !access.HasPermission(c.MinViewRole, role) {
			continue
		}
		c.Children = visible(c.Children, role)
		out = append(out, c)
	}
	return out
}

// CategoryPath returns the visible ancestors of a category, root first,
// followed by the category itself.
func (s *Service) CategoryPath(ctx context.Context, p *access.Principal, idOrSlug string) ([]models.Category, error) {
	c, err := s.ViewCategory(ctx, p, idOrSlug)
	if err != nil {
		return nil, err
	}
	ancestors, err := s.categories.Ancestors(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	role := access.RoleOf(p)
	path := make([]models.Category, 0, len(ancestors)+1)
	for _, a := range ancestors {
		if access.HasPermission(a.MinViewRole, role) {
			path = append(path, a)
		}
	}
	return append(path, *c), nil
}

// Subcategories returns every category below idOrSlug that the caller can
// see, nearest levels first.
func (s *Service) Subcategories(ctx context.Context, p *access.Principal, idOrSlug string) ([]models.Category, error) {
	c, err := s.ViewCategory(ctx, p, idOrSlug)
	if err != nil {
		return nil, err
	}
	all, err := s.categories.Descendants(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	role := access.RoleOf(p)
	hidden := make(map[uuid.UUID]bool)
	out := make([]models.Category, 0, len(all))
	for _, d := range all {
		if (d.ParentID != nil && hidden[*d.ParentID]) || !access.HasPermission(d.MinViewRole, role) {
			hidden[d.ID] = true
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// CreateCategory adds a category. Admin only.
func (s *Service) CreateCategory(ctx context.Context, p *access.Principal, in CategoryInput) (*models.Category, error) {
	if err := requireAdmin(p, "manage categories"); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	c, err := s.categories.Create(ctx, in.storeInput())
	if err != nil {
		return nil, err
	}
	slog.Info("category created", "category_id", c.ID, "slug", c.Slug, "by", p.Username)
	return c, nil
}

// UpdateCategory applies a partial edit; a given ParentID moves the
// category. Admin only.
func (s *Service) UpdateCategory(ctx context.Context, p *access.Principal, id uuid.UUID, in UpdateCategoryInput) (*models.Category, error) {
	if err := requireAdmin(p, "manage categories"); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	var updated *models.Category
	err := s.mutate(ctx, "update_category", func(tx *sql.Tx) error {
		categories := s.categories.WithTx(tx)
		// Move takes the tree lock before any row lock.
		if in.ParentID != nil {
			if _, err := categories.Move(ctx, id, in.ParentID); err != nil {
				return err
			}
		}
		current, err := categories.FindForUpdate(ctx, id)
		if err != nil {
			return err
		}
		updated, err = categories.Update(ctx, id, in.merge(current))
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("category updated", "category_id", id, "by", p.Username)
	return updated, nil
}

// MoveCategory re-parents a category; nil makes it a root. Admin only.
func (s *Service) MoveCategory(ctx context.Context, p *access.Principal, id uuid.UUID, newParentID *uuid.UUID) (*models.Category, error) {
	if err := requireAdmin(p, "manage categories"); err != nil {
		return nil, err
	}
	c, err := s.categories.Move(ctx, id, newParentID)
	if err != nil {
		return nil, err
	}
	slog.Info("category moved", "category_id", id, "parent_id", newParentID, "by", p.Username)
	return c, nil
}

// DeleteCategory removes a category and, by cascade, its threads. Child
// categories become roots. Admin only.
func (s *Service) DeleteCategory(ctx context.Context, p *access.Principal, id uuid.UUID) error {
	if err := requireAdmin(p, "manage categories"); err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("category deleted", "category_id", id, "by", p.Username)
	return nil
}
