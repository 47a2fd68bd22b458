// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package forum

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forum/internal/access"
	"forum/internal/apperr"
	"forum/internal/database/dbtest"
	"forum/internal/models"
	"forum/internal/store"
)

func TestMain(m *testing.M) {
	dbtest.Main(m)
}

type fixture struct {
	t   *testing.T
	db  *sql.DB
	svc *Service
	ctx context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	return &fixture{t: t, db: db, svc: New(db, nil, Options{VoteRetries: 10}), ctx: context.Background()}
}

func (f *fixture) principal(role models.Role) *access.Principal {
	f.t.Helper()
	name := "forum-" + uuid.NewString()[:8]
	u, err := store.NewUserStore(f.db).Create(f.ctx, name, name+"@forum-test.local", "password123", role, models.StatusActive)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { f.db.Exec("DELETE FROM users WHERE id = $1", u.ID) })
	return access.FromUser(u)
}

func (f *fixture) category(admin *access.Principal, in CategoryInput) *models.Category {
	f.t.Helper()
	if in.Name == "" {
		in.Name = "Category " + uuid.NewString()[:8]
	}
	c, err := f.svc.CreateCategory(f.ctx, admin, in)
	require.NoError(f.t, err)
	f.t.Cleanup(func() { f.db.Exec("DELETE FROM categories WHERE id = $1", c.ID) })
	return c
}

func (f *fixture) thread(p *access.Principal, categoryID uuid.UUID) (*models.Thread, *models.Post) {
	f.t.Helper()
	thread, starter, err := f.svc.CreateThread(f.ctx, p, CreateThreadInput{
		CategoryID: categoryID,
		Title:      "Thread " + uuid.NewString()[:8],
		Content:    "opening post",
	})
	require.NoError(f.t, err)
	return thread, starter
}

func (f *fixture) reloadCategory(id uuid.UUID) *models.Category {
	f.t.Helper()
	c, err := store.NewCategoryStore(f.db).FindByID(f.ctx, id)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) reloadThread(id uuid.UUID) *models.Thread {
	f.t.Helper()
	th, err := store.NewThreadStore(f.db).FindByID(f.ctx, id)
	require.NoError(f.t, err)
	return th
}

func (f *fixture) countVotes(userID, postID uuid.UUID) (int, error) {
	var n int
	err := f.db.QueryRowContext(f.ctx,
		`SELECT COUNT(*) FROM post_votes WHERE user_id = $1 AND post_id = $2`, userID, postID,
	).Scan(&n)
	return n, err
}

func TestThreadReplyLifecycle(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(models.RoleAdmin)
	author := f.principal(models.RoleUser)
	replier := f.principal(models.RoleUser)
	cat := f.category(admin, CategoryInput{})

	thread, starter := f.thread(author, cat.ID)
	assert.True(t, starter.IsThreadStarter)

	c := f.reloadCategory(cat.ID)
	assert.Equal(t, 1, c.ThreadCount)
	assert.Equal(t, 1, c.PostCount)

	reply, err := f.svc.CreateReply(f.ctx, replier, thread.ID, ReplyInput{Content: "first reply"})
	require.NoError(t, err)

	th := f.reloadThread(thread.ID)
	assert.Equal(t, 1, th.ReplyCount)
	require.NotNil(t, th.LastPostByID)
	assert.Equal(t, replier.ID, *th.LastPostByID)
	assert.Equal(t, 2, f.reloadCategory(cat.ID).PostCount)

	require.NoError(t, f.svc.DeletePost(f.ctx, replier, reply.ID))

	th = f.reloadThread(thread.ID)
	assert.Equal(t, 0, th.ReplyCount)
	require.NotNil(t, th.LastPostID)
	assert.Equal(t, starter.ID, *th.LastPostID)
	assert.Equal(t, 1, f.reloadCategory(cat.ID).PostCount)

	page, err := f.svc.ListPosts(f.ctx, nil, thread.Slug, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, DefaultPostLimit, page.Limit)

	require.NoError(t, f.svc.DeleteThread(f.ctx, author, thread.ID))
	c = f.reloadCategory(cat.ID)
	assert.Equal(t, 0, c.ThreadCount)
	assert.Equal(t, 0, c.PostCount)
}

func TestCategoryRoleRequirements(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(models.RoleAdmin)
	user := f.principal(models.RoleUser)

	adminsOnly := f.category(admin, CategoryInput{MinThreadRole: models.RoleAdmin})
	_, _, err := f.svc.CreateThread(f.ctx, user, CreateThreadInput{
		CategoryID: adminsOnly.ID, Title: "Not allowed here", Content: "x",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
	f.thread(admin, adminsOnly.ID)

	membersOnly := f.category(admin, CategoryInput{MinViewRole: models.RoleUser})
	_, err = f.svc.ViewCategory(f.ctx, nil, membersOnly.Slug)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
	_, err = f.svc.ViewCategory(f.ctx, admin, membersOnly.Slug)
	assert.NoError(t, err)

	hidden := f.category(admin, CategoryInput{MinViewRole: models.RoleModerator})
	_, err = f.svc.ViewCategory(f.ctx, nil, hidden.ID.String())
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
	_, err = f.svc.ViewCategory(f.ctx, user, hidden.ID.String())
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
	_, err = f.svc.ViewCategory(f.ctx, admin, hidden.ID.String())
	assert.NoError(t, err)

	_, err = f.svc.CreateCategory(f.ctx, user, CategoryInput{Name: "Sneaky"})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
}

func TestGuestCannotMutate(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(models.RoleAdmin)
	cat := f.category(admin, CategoryInput{})
	thread, _ := f.thread(admin, cat.ID)

	_, err := f.svc.CreateReply(f.ctx, nil, thread.ID, ReplyInput{Content: "anonymous"})
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))

	got, err := f.svc.GetThread(f.ctx, nil, thread.ID.String(), "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, thread.ID, got.ID)
}

func TestStarterPostCannotBeDeleted(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(models.RoleAdmin)
	cat := f.category(admin, CategoryInput{})
	thread, starter := f.thread(admin, cat.ID)

	err := f.svc.DeletePost(f.ctx, admin, starter.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalid))

	page, err := f.svc.ListPosts(f.ctx, admin, thread.ID.String(), 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].IsThreadStarter)
}

func TestOnlyOwnerOrModeratorEditsPost(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(models.RoleAdmin)
	author := f.principal(models.RoleUser)
	other := f.principal(models.RoleUser)
	mod := f.principal(models.RoleModerator)
	cat := f.category(admin, CategoryInput{})
	thread, _ := f.thread(author, cat.ID)

	reply, err := f.svc.CreateReply(f.ctx, author, thread.ID, ReplyInput{Content: "draft"})
	require.NoError(t, err)

	_, err = f.svc.UpdatePost(f.ctx, other, reply.ID, UpdatePostInput{Content: "hijacked"})
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))

	edited, err := f.svc.UpdatePost(f.ctx, author, reply.ID, UpdatePostInput{Content: "final"})
	require.NoError(t, err)
	assert.Equal(t, "final", edited.Content)
	assert.True(t, edited.IsEdited)

	assert.True(t, apperr.IsKind(f.svc.DeletePost(f.ctx, other, reply.ID), apperr.KindForbidden))
	assert.NoError(t, f.svc.DeletePost(f.ctx, mod, reply.ID))
}

func TestLockedThreadRejectsReplies(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(models.RoleAdmin)
	author := f.principal(models.RoleUser)
	mod := f.principal(models.RoleModerator)
	cat := f.category(admin, CategoryInput{})
	thread, _ := f.thread(author, cat.ID)

	locked := true
	th, err := f.svc.UpdateThread(f.ctx, mod, thread.ID, UpdateThreadInput{IsLocked: &locked})
	require.NoError(t, err)
	assert.True(t, th.IsLocked)

	for _, p := range []*access.Principal{author, mod, admin} {
		_, err := f.svc.CreateReply(f.ctx, p, thread.ID, ReplyInput{Content: "too late"})
		assert.True(t, apperr.IsKind(err, apperr.KindForbidden), "role %s", p.Role)
	}
	assert.Equal(t, 0, f.reloadThread(thread.ID).ReplyCount)
}

func TestLockAndPinIgnoredForOwner(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(models.RoleAdmin)
	author := f.principal(models.RoleUser)
	cat := f.category(admin, CategoryInput{})

	thread, _, err := f.svc.CreateThread(f.ctx, author, CreateThreadInput{
		CategoryID: cat.ID, Title: "Please pin me", Content: "x", IsPinned: true, IsLocked: true,
	})
	require.NoError(t, err)
	assert.False(t, thread.IsPinned)
	assert.False(t, thread.IsLocked)

	yes := true
	title := "A better title"
	th, err := f.svc.UpdateThread(f.ctx, author, thread.ID, UpdateThreadInput{Title: &title, IsPinned: &yes, IsLocked: &yes})
	require.NoError(t, err)
	assert.Equal(t, title, th.Title)
	assert.Equal(t, "a-better-title", th.Slug)
	assert.False(t, th.IsPinned)
	assert.False(t, th.IsLocked)
}

func TestReplyParentMustBeInSameThread(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(models.RoleAdmin)
	cat := f.category(admin, CategoryInput{})
	first, firstStarter := f.thread(admin, cat.ID)
	second, _ := f.thread(admin, cat.ID)

	_, err := f.svc.CreateReply(f.ctx, admin, second.ID, ReplyInput{Content: "wrong parent", ParentPostID: &firstStarter.ID})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	nested, err := f.svc.CreateReply(f.ctx, admin, first.ID, ReplyInput{Content: "right parent", ParentPostID: &firstStarter.ID})
	require.NoError(t, err)
	require.NotNil(t, nested.ParentPostID)
	assert.Equal(t, firstStarter.ID, *nested.ParentPostID)
}

func TestVoteToggleAndSwitch(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(models.RoleAdmin)
	voter := f.principal(models.RoleUser)
	cat := f.category(admin, CategoryInput{})
	_, starter := f.thread(admin, cat.ID)

	res, err := f.svc.Vote(f.ctx, voter, starter.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
	require.NotNil(t, res.UserVote)
	assert.Equal(t, 1, *res.UserVote)

	res, err = f.svc.Vote(f.ctx, voter, starter.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, -1, res.Score)
	n, err := f.countVotes(voter.ID, starter.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err = f.svc.Vote(f.ctx, voter, starter.ID, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.Nil(t, res.UserVote)
	n, err = f.countVotes(voter.ID, starter.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = f.svc.Vote(f.ctx, voter, starter.ID, 0)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalid))
}

func TestConcurrentVotesBySameUser(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(models.RoleAdmin)
	voter := f.principal(models.RoleUser)
	cat := f.category(admin, CategoryInput{})
	_, starter := f.thread(admin, cat.ID)

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Vote(f.ctx, voter, starter.ID, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	post, err := store.NewPostStore(f.db).FindByID(f.ctx, starter.ID)
	require.NoError(t, err)
	// Five serialized toggles leave one upvote.
	assert.Equal(t, 1, post.Score)
	assert.Equal(t, 1, post.Upvotes)
	assert.Equal(t, 0, post.Downvotes)
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(models.RoleAdmin)
	user := f.principal(models.RoleUser)
	cat := f.category(admin, CategoryInput{})
	_, starter := f.thread(admin, cat.ID)

	for i := range 3 {
		_, err := f.svc.AddComment(f.ctx, user, starter.ID, CommentInput{Content: "nice " + string(rune('a'+i))})
		require.NoError(t, err)
	}

	_, err := f.svc.AddComment(f.ctx, user, starter.ID, CommentInput{Content: "   "})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalid))

	page, err := f.svc.ListComments(f.ctx, nil, starter.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.TotalPages())

	post, err := f.svc.GetPost(f.ctx, nil, starter.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, post.CommentCount)
	assert.Equal(t, "opening post", post.Content)
}

func TestCategoryTreeOperations(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(models.RoleAdmin)
	root := f.category(admin, CategoryInput{})
	child := f.category(admin, CategoryInput{ParentID: &root.ID})
	other := f.category(admin, CategoryInput{})

	path, err := f.svc.CategoryPath(f.ctx, nil, child.Slug)
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, root.ID, path[0].ID)
	assert.Equal(t, child.ID, path[1].ID)

	_, err = f.svc.MoveCategory(f.ctx, admin, root.ID, &child.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalid))

	moved, err := f.svc.UpdateCategory(f.ctx, admin, child.ID, UpdateCategoryInput{ParentID: &other.ID})
	require.NoError(t, err)
	require.NotNil(t, moved.ParentID)
	assert.Equal(t, other.ID, *moved.ParentID)

	subs, err := f.svc.Subcategories(f.ctx, admin, other.ID.String())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, child.ID, subs[0].ID)

	require.NoError(t, f.svc.DeleteCategory(f.ctx, admin, other.ID))
	detached := f.reloadCategory(child.ID)
	assert.Nil(t, detached.ParentID)
}

func TestUpdateCategoryKeepsUnsetFields(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(models.RoleAdmin)
	root := f.category(admin, CategoryInput{})
	child := f.category(admin, CategoryInput{
		ParentID:      &root.ID,
		DisplayOrder:  4,
		MinViewRole:   models.RoleUser,
		MinThreadRole: models.RoleModerator,
		MinPostRole:   models.RoleModerator,
	})

	desc := "members talk shop here"
	updated, err := f.svc.UpdateCategory(f.ctx, admin, child.ID, UpdateCategoryInput{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)
	assert.Equal(t, child.Name, updated.Name)
	assert.Equal(t, child.Slug, updated.Slug)
	require.NotNil(t, updated.ParentID)
	assert.Equal(t, root.ID, *updated.ParentID)
	assert.Equal(t, 4, updated.DisplayOrder)
	assert.Equal(t, models.RoleUser, updated.MinViewRole)
	assert.Equal(t, models.RoleModerator, updated.MinThreadRole)
	assert.Equal(t, models.RoleModerator, updated.MinPostRole)

	path, err := f.svc.CategoryPath(f.ctx, admin, child.Slug)
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, root.ID, path[0].ID)

	blank := "   "
	_, err = f.svc.UpdateCategory(f.ctx, admin, child.ID, UpdateCategoryInput{Name: &blank})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalid))
	bogus := models.Role("owner")
	_, err = f.svc.UpdateCategory(f.ctx, admin, child.ID, UpdateCategoryInput{MinPostRole: &bogus})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalid))
}

func TestConcurrentRepliesOnSmallPool(t *testing.T) {
	f := newFixture(t)
	admin := f.principal(models.RoleAdmin)
	cat := f.category(admin, CategoryInput{})
	thread, _ := f.thread(admin, cat.ID)
	before := f.reloadThread(thread.ID).ReplyCount
	beforePosts := f.reloadCategory(cat.ID).PostCount

	repliers := make([]*access.Principal, 4)
	for i := range repliers {
		repliers[i] = f.principal(models.RoleUser)
	}

	// Two connections: each reply holds one for its transaction and must
	// not need the other.
	prev := f.db.Stats().MaxOpenConnections
	f.db.SetMaxOpenConns(2)
	t.Cleanup(func() { f.db.SetMaxOpenConns(prev) })

	ctx, cancel := context.WithTimeout(f.ctx, 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, len(repliers))
	for _, p := range repliers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateReply(ctx, p, thread.ID, ReplyInput{Content: "me too"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, before+len(repliers), f.reloadThread(thread.ID).ReplyCount)
	assert.Equal(t, beforePosts+len(repliers), f.reloadCategory(cat.ID).PostCount)
}
