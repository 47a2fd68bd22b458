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
	"forum/internal/slug"
)

// treeLockKey serializes structural changes to the category tree
// (pg_advisory_xact_lock) so concurrent moves cannot build a cycle.
const treeLockKey = 7301

// CategoryStore manages categories and their closure table.
type CategoryStore struct {
	db DBTX
}

// NewCategoryStore returns a new CategoryStore.
func NewCategoryStore(db DBTX) *CategoryStore {
	return &CategoryStore{db: db}
}

// WithTx returns a CategoryStore bound to tx.
func (s *CategoryStore) WithTx(tx *sql.Tx) *CategoryStore {
	return &CategoryStore{db: tx}
}

const categoryColumns = `id, name, slug, description, parent_id, display_order,
	thread_count, post_count, min_view_role, min_thread_role, min_post_role,
	created_at, updated_at`

const qualifiedCategoryColumns = `c.id, c.name, c.slug, c.description, c.parent_id, c.display_order,
	c.thread_count, c.post_count, c.min_view_role, c.min_thread_role, c.min_post_role,
	c.created_at, c.updated_at`

// scanCategory scans a row into a Category struct.
func scanCategory(row scanner) (*models.Category, error) {
	var c models.Category
	err := row.Scan(
		&c.ID, &c.Name, &c.Slug, &c.Description, &c.ParentID, &c.DisplayOrder,
		&c.ThreadCount, &c.PostCount, &c.MinViewRole, &c.MinThreadRole, &c.MinPostRole,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CategoryInput carries the writable fields of a category.
type CategoryInput struct {
	Name          string
	Description   string
	ParentID      *uuid.UUID
	DisplayOrder  int
	MinViewRole   models.Role
	MinThreadRole models.Role
	MinPostRole   models.Role
}

func (in *CategoryInput) applyRoleDefaults() {
	if in.MinViewRole == "" {
		in.MinViewRole = models.RoleGuest
	}
	if in.MinThreadRole == "" {
		in.MinThreadRole = models.RoleUser
	}
	if in.MinPostRole == "" {
		in.MinPostRole = models.RoleUser
	}
}

// Create inserts a category under in.ParentID (nil for a root) together with
// its closure rows.
func (s *CategoryStore) Create(ctx context.Context, in CategoryInput) (*models.Category, error) {
	in.applyRoleDefaults()
	slugValue := slug.Generate(in.Name)
	if slugValue == "" {
		return nil, apperr.Invalid("category name %q does not produce a usable slug", in.Name)
	}

	var created *models.Category
	err := inTx(ctx, s.db, func(tx DBTX) error {
		if err := lockTree(ctx, tx); err != nil {
			return err
		}
		if in.ParentID != nil {
			if err := categoryExists(ctx, tx, *in.ParentID, "parent category"); err != nil {
				return err
			}
		}

		row := tx.QueryRowContext(ctx, `
			INSERT INTO categories (name, slug, description, parent_id, display_order,
				min_view_role, min_thread_role, min_post_role)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+categoryColumns,
			in.Name, slugValue, in.Description, in.ParentID, in.DisplayOrder,
			in.MinViewRole, in.MinThreadRole, in.MinPostRole,
		)
		c, err := scanCategory(row)
		if err != nil {
			return conflictOr(err, "create category", "category slug %q already exists", slugValue)
		}

		// Self row plus one row per ancestor of the parent.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO category_closure (ancestor_id, descendant_id, depth)
			SELECT $1::uuid, $1::uuid, 0
			UNION ALL
			SELECT ancestor_id, $1::uuid, depth + 1
			FROM category_closure
			WHERE descendant_id = $2
		`, c.ID, in.ParentID)
		if err != nil {
			return fmt.Errorf("insert category closure: %w", err)
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// List returns all categories ordered by display_order, then name.
func (s *CategoryStore) List(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		ORDER BY display_order, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	return collectCategories(rows)
}

func collectCategories(rows *sql.Rows) ([]models.Category, error) {
	var items []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// Tree returns categories as a nested tree structure.
func (s *CategoryStore) Tree(ctx context.Context) ([]models.Category, error) {
	flat, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTree(flat), nil
}

// BuildTree nests a flat, already ordered list by parent_id. Nodes whose
// parent is missing from the list are treated as roots.
func BuildTree(flat []models.Category) []models.Category {
	present := make(map[uuid.UUID]bool, len(flat))
	for _, c := range flat {
		present[c.ID] = true
	}
	byParent := make(map[uuid.UUID][]models.Category)
	var roots []models.Category
	for _, c := range flat {
		if c.ParentID == nil || !present[*c.ParentID] {
			roots = append(roots, c)
			continue
		}
		byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
	}
	return attachChildren(roots, byParent, 0)
}

func attachChildren(nodes []models.Category, byParent map[uuid.UUID][]models.Category, depth int) []models.Category {
	for i := range nodes {
		nodes[i].Depth = depth
		if kids := byParent[nodes[i].ID]; len(kids) > 0 {
			nodes[i].Children = attachChildren(kids, byParent, depth+1)
		}
	}
	return nodes
}

// FindByID retrieves a category by ID.
func (s *CategoryStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("category %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find category by id: %w", err)
	}
	return c, nil
}

// FindForUpdate reads a category and row-locks it until the transaction
// ends.
func (s *CategoryStore) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1 FOR UPDATE`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("category %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find category for update: %w", err)
	}
	return c, nil
}

// FindBySlug retrieves a category by slug.
func (s *CategoryStore) FindBySlug(ctx context.Context, slugValue string) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE slug = $1`, slugValue)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("category %q not found", slugValue)
	}
	if err != nil {
		return nil, fmt.Errorf("find category by slug: %w", err)
	}
	return c, nil
}

// FindOne looks a category up by id or slug.
func (s *CategoryStore) FindOne(ctx context.Context, idOrSlug string) (*models.Category, error) {
	if id, ok := Identifier(idOrSlug); ok {
		return s.FindByID(ctx, id)
	}
	return s.FindBySlug(ctx, idOrSlug)
}

// Descendants returns every category below id (not id itself), nearest
// levels first. Depth is relative to id.
func (s *CategoryStore) Descendants(ctx context.Context, id uuid.UUID) ([]models.Category, error) {
	return s.related(ctx, id, `
		SELECT `+qualifiedCategoryColumns+`, cc.depth
		FROM category_closure cc
		JOIN categories c ON c.id = cc.descendant_id
		WHERE cc.ancestor_id = $1 AND cc.depth > 0
		ORDER BY cc.depth, c.display_order, c.name
	`)
}

// Ancestors returns the path from the root down to id's parent. Depth is
// the distance from id.
func (s *CategoryStore) Ancestors(ctx context.Context, id uuid.UUID) ([]models.Category, error) {
	return s.related(ctx, id, `
		SELECT `+qualifiedCategoryColumns+`, cc.depth
		FROM category_closure cc
		JOIN categories c ON c.id = cc.ancestor_id
		WHERE cc.descendant_id = $1 AND cc.depth > 0
		ORDER BY cc.depth DESC
	`)
}

func (s *CategoryStore) related(ctx context.Context, id uuid.UUID, query string) ([]models.Category, error) {
	if _, err := s.FindByID(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query category closure: %w", err)
	}
	defer rows.Close()

	var items []models.Category
	for rows.Next() {
		var c models.Category
		err := rows.Scan(
			&c.ID, &c.Name, &c.Slug, &c.Description, &c.ParentID, &c.DisplayOrder,
			&c.ThreadCount, &c.PostCount, &c.MinViewRole, &c.MinThreadRole, &c.MinPostRole,
			&c.CreatedAt, &c.UpdatedAt, &c.Depth,
		)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// descendantIDs returns the full subtree of id, id included.
func descendantIDs(ctx context.Context, db DBTX, id uuid.UUID) (map[uuid.UUID]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT descendant_id FROM category_closure WHERE ancestor_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query descendants: %w", err)
	}
	defer rows.Close()

	set := map[uuid.UUID]bool{id: true}
	for rows.Next() {
		var d uuid.UUID
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan descendant: %w", err)
		}
		set[d] = true
	}
	return set, rows.Err()
}

// Move re-parents a category (nil makes it a root) and rewrites the closure
// rows of its whole subtree.
func (s *CategoryStore) Move(ctx context.Context, id uuid.UUID, newParentID *uuid.UUID) (*models.Category, error) {
	if newParentID != nil && *newParentID == id {
		return nil, apperr.Invalid("a category cannot be its own parent")
	}

	var moved *models.Category
	err := inTx(ctx, s.db, func(tx DBTX) error {
		if err := lockTree(ctx, tx); err != nil {
			return err
		}
		current, err := NewCategoryStore(tx).FindByID(ctx, id)
		if err != nil {
			return err
		}
		if newParentID != nil {
			if err := categoryExists(ctx, tx, *newParentID, "target parent category"); err != nil {
				return err
			}
			subtree, err := descendantIDs(ctx, tx, id)
			if err != nil {
				return err
			}
			if subtree[*newParentID] {
				return apperr.Invalid("cannot move category %q under its own descendant", current.Name)
			}
		}
		if sameParent(current.ParentID, newParentID) {
			moved = current
			return nil
		}

		// Detach the subtree from its old ancestors.
		_, err = tx.ExecContext(ctx, `
			DELETE FROM category_closure
			WHERE descendant_id IN (SELECT descendant_id FROM category_closure WHERE ancestor_id = $1)
			  AND ancestor_id IN (SELECT ancestor_id FROM category_closure WHERE descendant_id = $1 AND ancestor_id <> $1)
		`, id)
		if err != nil {
			return fmt.Errorf("detach category subtree: %w", err)
		}

		if newParentID != nil {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO category_closure (ancestor_id, descendant_id, depth)
				SELECT p.ancestor_id, sub.descendant_id, p.depth + sub.depth + 1
				FROM category_closure p
				CROSS JOIN category_closure sub
				WHERE p.descendant_id = $1 AND sub.ancestor_id = $2
			`, *newParentID, id)
			if err != nil {
				return fmt.Errorf("attach category subtree: %w", err)
			}
		}

		row := tx.QueryRowContext(ctx, `
			UPDATE categories SET parent_id = $1, updated_at = NOW()
			WHERE id = $2
			RETURNING `+categoryColumns,
			newParentID, id,
		)
		moved, err = scanCategory(row)
		if err != nil {
			return fmt.Errorf("move category: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// Update modifies the descriptive fields and role thresholds of a category.
// The slug follows the name. Parent changes go through Move.
func (s *CategoryStore) Update(ctx context.Context, id uuid.UUID, in CategoryInput) (*models.Category, error) {
	in.applyRoleDefaults()
	slugValue := slug.Generate(in.Name)
	if slugValue == "" {
		return nil, apperr.Invalid("category name %q does not produce a usable slug", in.Name)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE categories SET
			name = $1, slug = $2, description = $3, display_order = $4,
			min_view_role = $5, min_thread_role = $6, min_post_role = $7,
			updated_at = NOW()
		WHERE id = $8
		RETURNING `+categoryColumns,
		in.Name, slugValue, in.Description, in.DisplayOrder,
		in.MinViewRole, in.MinThreadRole, in.MinPostRole, id,
	)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("category %s not found", id)
	}
	if err != nil {
		return nil, conflictOr(err, "update category", "category slug %q already exists", slugValue)
	}
	return c, nil
}

// Delete removes a category. Its children become roots (ON DELETE SET NULL)
// and keep their own subtrees; its threads are removed by cascade.
func (s *CategoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	return inTx(ctx, s.db, func(tx DBTX) error {
		if err := lockTree(ctx, tx); err != nil {
			return err
		}
		if err := categoryExists(ctx, tx, id, "category"); err != nil {
			return err
		}

		// Sever every path that runs through id.
		_, err := tx.ExecContext(ctx, `
			DELETE FROM category_closure
			WHERE descendant_id IN (SELECT descendant_id FROM category_closure WHERE ancestor_id = $1)
			  AND ancestor_id IN (SELECT ancestor_id FROM category_closure WHERE descendant_id = $1)
		`, id)
		if err != nil {
			return fmt.Errorf("detach category closure: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		return nil
	})
}

func lockTree(ctx context.Context, db DBTX) error {
	if _, err := db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, treeLockKey); err != nil {
		return fmt.Errorf("lock category tree: %w", err)
	}
	return nil
}

func categoryExists(ctx context.Context, db DBTX, id uuid.UUID, what string) error {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if !exists {
		return apperr.NotFound("%s %s not found", what, id)
	}
	return nil
}

// sameParent compares two *uuid.UUID for equality (both nil or same value).
func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
