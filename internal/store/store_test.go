// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// store_test.go provides shared fixtures for the store integration tests.
// Tests are skipped if PostgreSQL is not available.
package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"forum/internal/database/dbtest"
	"forum/internal/models"
	"forum/internal/slug"
)

func TestMain(m *testing.M) {
	dbtest.Main(m)
}

// testDB returns the shared migrated database or skips the test.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	return dbtest.Open(t)
}

// unique returns a short random suffix for names that must not collide
// with rows left by other tests.
func unique(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// newUser creates an active user with the given role and removes it after the test.
func newUser(t *testing.T, db *sql.DB, role models.Role) *models.User {
	t.Helper()
	name := unique("user")
	u, err := NewUserStore(db).Create(context.Background(), name, name+"@store-test.local", "password123", role, models.StatusActive)
	require.NoError(t, err)
	t.Cleanup(func() { db.Exec("DELETE FROM users WHERE id = $1", u.ID) })
	return u
}

// newCategory creates a category (under parent when non-nil) and removes it
// after the test.
func newCategory(t *testing.T, db *sql.DB, parent *uuid.UUID) *models.Category {
	t.Helper()
	c, err := NewCategoryStore(db).Create(context.Background(), CategoryInput{
		Name:     unique("Category"),
		ParentID: parent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Exec("DELETE FROM categories WHERE id = $1", c.ID) })
	return c
}

// newThread creates a thread with its starter post the same way the forum
// service does, inside one transaction.
func newThread(t *testing.T, db *sql.DB, categoryID uuid.UUID, author *models.User) (*models.Thread, *models.Post) {
	t.Helper()
	ctx := context.Background()
	title := unique("Thread title")

	var (
		thread  *models.Thread
		starter *models.Post
	)
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		thread, err = NewThreadStore(tx).Create(ctx, &models.Thread{
			Title: title, Slug: slug.Generate(title), CategoryID: categoryID, AuthorID: &author.ID,
		})
		if err != nil {
			return err
		}
		starter, err = NewPostStore(tx).Create(ctx, &models.Post{
			Content: "hello world, this is a test thread", ThreadID: thread.ID,
			AuthorID: &author.ID, IsThreadStarter: true,
		})
		if err != nil {
			return err
		}
		return OnThreadCreated(ctx, tx, thread, starter)
	})
	require.NoError(t, err)
	return thread, starter
}

// newReply adds a reply and propagates its counters in one transaction.
func newReply(t *testing.T, db *sql.DB, threadID uuid.UUID, author *models.User, content string) *models.Post {
	t.Helper()
	ctx := context.Background()
	var reply *models.Post
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		reply, err = NewPostStore(tx).Create(ctx, &models.Post{
			Content: content, ThreadID: threadID, AuthorID: &author.ID,
		})
		if err != nil {
			return err
		}
		return OnReplyCreated(ctx, tx, reply)
	})
	require.NoError(t, err)
	return reply
}
