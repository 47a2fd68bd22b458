// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package forum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forum/internal/apperr"
	"forum/internal/models"
	"forum/internal/store"
)

func intp(v int) *int { return &v }

func TestTransition(t *testing.T) {
	tests := []struct {
		name     string
		existing *int
		value    int
		action   VoteAction
		after    *int
		delta    store.VoteDelta
	}{
		{"first upvote", nil, 1, VoteInsert, intp(1), store.VoteDelta{Score: 1, Upvotes: 1}},
		{"first downvote", nil, -1, VoteInsert, intp(-1), store.VoteDelta{Score: -1, Downvotes: 1}},
		{"repeat upvote clears", intp(1), 1, VoteDelete, nil, store.VoteDelta{Score: -1, Upvotes: -1}},
		{"repeat downvote clears", intp(-1), -1, VoteDelete, nil, store.VoteDelta{Score: 1, Downvotes: -1}},
		{"up to down", intp(1), -1, VoteUpdate, intp(-1), store.VoteDelta{Score: -2, Upvotes: -1, Downvotes: 1}},
		{"down to up", intp(-1), 1, VoteUpdate, intp(1), store.VoteDelta{Score: 2, Upvotes: 1, Downvotes: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := Transition(tt.existing, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.action, tr.Action)
			assert.Equal(t, tt.after, tr.Value)
			assert.Equal(t, tt.delta, tr.Delta)
			assert.NotEmpty(t, tr.Name)
		})
	}
}

func TestTransitionToggleNetsZero(t *testing.T) {
	first, err := Transition(nil, models.VoteUp)
	require.NoError(t, err)
	second, err := Transition(first.Value, models.VoteUp)
	require.NoError(t, err)

	assert.Nil(t, second.Value)
	assert.Equal(t, 0, first.Delta.Score+second.Delta.Score)
	assert.Equal(t, 0, first.Delta.Upvotes+second.Delta.Upvotes)
}

func TestTransitionRejectsOtherValues(t *testing.T) {
	for _, v := range []int{0, 2, -2} {
		_, err := Transition(nil, v)
		assert.True(t, apperr.IsKind(err, apperr.KindInvalid), "value %d", v)
	}
}

func TestPaging(t *testing.T) {
	page, limit, err := paging(0, 0, DefaultPostLimit, MaxLimit)
	require.NoError(t, err)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPostLimit, limit)

	page, limit, err = paging(3, 50, DefaultPostLimit, MaxLimit)
	require.NoError(t, err)
	assert.Equal(t, 3, page)
	assert.Equal(t, 50, limit)

	for _, c := range [][2]int{{-1, 10}, {1, -5}, {1, MaxLimit + 1}} {
		_, _, err := paging(c[0], c[1], DefaultPostLimit, MaxLimit)
		assert.True(t, apperr.IsKind(err, apperr.KindInvalid), "page %d limit %d", c[0], c[1])
	}

	_, _, err = paging(1, 51, DefaultCommentLimit, MaxCommentLimit)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalid))
}

func TestVisiblePrunesHiddenSubtrees(t *testing.T) {
	tree := []models.Category{
		{Name: "General", MinViewRole: models.RoleGuest, Children: []models.Category{
			{Name: "Staff", MinViewRole: models.RoleModerator, Children: []models.Category{
				{Name: "Open under staff", MinViewRole: models.RoleGuest},
			}},
			{Name: "Members", MinViewRole: models.RoleUser},
		}},
		{Name: "Admins", MinViewRole: models.RoleAdmin},
	}

	guest := visible(tree, models.RoleGuest)
	require.Len(t, guest, 1)
	assert.Empty(t, guest[0].Children)

	user := visible(tree, models.RoleUser)
	require.Len(t, user, 1)
	require.Len(t, user[0].Children, 1)
	assert.Equal(t, "Members", user[0].Children[0].Name)

	mod := visible(tree, models.RoleModerator)
	require.Len(t, mod, 1)
	require.Len(t, mod[0].Children, 2)
	assert.Len(t, mod[0].Children[0].Children, 1)

	assert.Len(t, visible(tree, models.RoleAdmin), 2)
	// The input tree is left untouched.
	assert.Len(t, tree[0].Children, 2)
}
