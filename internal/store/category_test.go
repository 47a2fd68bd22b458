// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forum/internal/apperr"
	"forum/internal/models"
)

func TestBuildTree(t *testing.T) {
	root := models.Category{ID: uuid.New(), Name: "Root"}
	child := models.Category{ID: uuid.New(), Name: "Child", ParentID: &root.ID}
	grandchild := models.Category{ID: uuid.New(), Name: "Grandchild", ParentID: &child.ID}
	other := models.Category{ID: uuid.New(), Name: "Other"}
	missing := uuid.New()
	orphan := models.Category{ID: uuid.New(), Name: "Orphan", ParentID: &missing}

	tree := BuildTree([]models.Category{root, child, grandchild, other, orphan})

	require.Len(t, tree, 3)
	assert.Equal(t, "Root", tree[0].Name)
	assert.Equal(t, "Other", tree[1].Name)
	assert.Equal(t, "Orphan", tree[2].Name)

	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, 1, tree[0].Children[0].Depth)
	require.Len(t, tree[0].Children[0].Children, 1)
	assert.Equal(t, "Grandchild", tree[0].Children[0].Children[0].Name)
	assert.Equal(t, 2, tree[0].Children[0].Children[0].Depth)
	assert.Empty(t, tree[1].Children)
}

func TestBuildTreeEmpty(t *testing.T) {
	assert.Empty(t, BuildTree(nil))
}

func TestCategoryStoreCreate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := NewCategoryStore(db)

	root := newCategory(t, db, nil)
	assert.Equal(t, models.RoleGuest, root.MinViewRole)
	assert.Equal(t, models.RoleUser, root.MinThreadRole)
	assert.Equal(t, models.RoleUser, root.MinPostRole)
	assert.NotEmpty(t, root.Slug)

	child := newCategory(t, db, &root.ID)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, root.ID, *child.ParentID)

	t.Run("missing parent", func(t *testing.T) {
		missing := uuid.New()
		_, err := s.Create(ctx, CategoryInput{Name: "Nowhere", ParentID: &missing})
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
	})

	t.Run("duplicate slug", func(t *testing.T) {
		_, err := s.Create(ctx, CategoryInput{Name: root.Name})
		assert.True(t, apperr.IsKind(err, apperr.KindConflict), "got %v", err)
	})

	t.Run("unusable name", func(t *testing.T) {
		_, err := s.Create(ctx, CategoryInput{Name: "!!!"})
		assert.True(t, apperr.IsKind(err, apperr.KindInvalid), "got %v", err)
	})
}

func TestCategoryStoreFindOne(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := NewCategoryStore(db)
	c := newCategory(t, db, nil)

	byID, err := s.FindOne(ctx, c.ID.String())
	require.NoError(t, err)
	assert.Equal(t, c.Slug, byID.Slug)

	bySlug, err := s.FindOne(ctx, c.Slug)
	require.NoError(t, err)
	assert.Equal(t, c.ID, bySlug.ID)

	_, err = s.FindOne(ctx, "no-such-category-"+uuid.NewString())
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = s.FindOne(ctx, uuid.NewString())
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestCategoryStoreAncestorsAndDescendants(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := NewCategoryStore(db)

	a := newCategory(t, db, nil)
	b := newCategory(t, db, &a.ID)
	c := newCategory(t, db, &b.ID)

	desc, err := s.Descendants(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, b.ID, desc[0].ID)
	assert.Equal(t, 1, desc[0].Depth)
	assert.Equal(t, c.ID, desc[1].ID)
	assert.Equal(t, 2, desc[1].Depth)

	anc, err := s.Ancestors(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, anc, 2)
	assert.Equal(t, a.ID, anc[0].ID, "ancestors run root first")
	assert.Equal(t, b.ID, anc[1].ID)
}

func TestCategoryStoreMove(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := NewCategoryStore(db)

	a := newCategory(t, db, nil)
	b := newCategory(t, db, &a.ID)
	c := newCategory(t, db, &b.ID)
	d := newCategory(t, db, nil)

	t.Run("self parent", func(t *testing.T) {
		_, err := s.Move(ctx, a.ID, &a.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindInvalid), "got %v", err)
	})

	t.Run("under descendant", func(t *testing.T) {
		_, err := s.Move(ctx, a.ID, &c.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindInvalid), "got %v", err)
	})

	t.Run("missing target", func(t *testing.T) {
		missing := uuid.New()
		_, err := s.Move(ctx, a.ID, &missing)
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
	})

	t.Run("subtree follows", func(t *testing.T) {
		moved, err := s.Move(ctx, b.ID, &d.ID)
		require.NoError(t, err)
		require.NotNil(t, moved.ParentID)
		assert.Equal(t, d.ID, *moved.ParentID)

		anc, err := s.Ancestors(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, anc, 2)
		assert.Equal(t, d.ID, anc[0].ID)
		assert.Equal(t, b.ID, anc[1].ID)

		desc, err := s.Descendants(ctx, a.ID)
		require.NoError(t, err)
		assert.Empty(t, desc)

		// The old root may now go under the moved node's subtree.
		_, err = s.Move(ctx, a.ID, &c.ID)
		require.NoError(t, err)
	})

	t.Run("to root", func(t *testing.T) {
		moved, err := s.Move(ctx, b.ID, nil)
		require.NoError(t, err)
		assert.Nil(t, moved.ParentID)

		anc, err := s.Ancestors(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, anc, 1)
		assert.Equal(t, b.ID, anc[0].ID)
	})

	t.Run("tree reflects move", func(t *testing.T) {
		tree, err := s.Tree(ctx)
		require.NoError(t, err)
		node := findInTree(tree, c.ID)
		require.NotNil(t, node)
		require.NotNil(t, node.ParentID)
		assert.Equal(t, b.ID, *node.ParentID)
	})
}

func TestCategoryStoreUpdate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := NewCategoryStore(db)
	c := newCategory(t, db, nil)
	other := newCategory(t, db, nil)

	name := unique("Renamed")
	updated, err := s.Update(ctx, c.ID, CategoryInput{
		Name: name, Description: "members only", MinViewRole: models.RoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.NotEqual(t, c.Slug, updated.Slug)
	assert.Equal(t, models.RoleUser, updated.MinViewRole)

	_, err = s.Update(ctx, c.ID, CategoryInput{Name: other.Name})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict), "got %v", err)

	_, err = s.Update(ctx, uuid.New(), CategoryInput{Name: unique("Ghost")})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
}

func TestCategoryStoreDeleteDetachesChildren(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	s := NewCategoryStore(db)
	author := newUser(t, db, models.RoleUser)

	a := newCategory(t, db, nil)
	b := newCategory(t, db, &a.ID)
	c := newCategory(t, db, &b.ID)
	thread, _ := newThread(t, db, b.ID, author)

	require.NoError(t, s.Delete(ctx, b.ID))

	got, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentID, "child becomes a root")

	anc, err := s.Ancestors(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, anc)

	desc, err := s.Descendants(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, desc)

	_, err = NewThreadStore(db).FindByID(ctx, thread.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "threads cascade with their category")

	assert.True(t, apperr.IsKind(s.Delete(ctx, b.ID), apperr.KindNotFound))
}

func findInTree(nodes []models.Category, id uuid.UUID) *models.Category {
	for i := range nodes {
		if nodes[i].ID == id {
			return &nodes[i]
		}
		if found := findInTree(nodes[i].Children, id); found != nil {
			return found
		}
	}
	return nil
}
