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

	"forum/internal/models"
)

// VoteStore handles post_votes rows. At most one row exists per
// (user, post); a concurrent duplicate insert fails with apperr.Conflict.
type VoteStore struct {
	db DBTX
}

// NewVoteStore creates a new VoteStore.
func NewVoteStore(db DBTX) *VoteStore {
	return &VoteStore{db: db}
}

// WithTx returns a VoteStore bound to tx.
func (s *VoteStore) WithTx(tx *sql.Tx) *VoteStore {
	return &VoteStore{db: tx}
}

const voteColumns = `id, user_id, post_id, value, created_at, updated_at`

func scanVote(row scanner) (*models.PostVote, error) {
	var v models.PostVote
	if err := row.Scan(&v.ID, &v.UserID, &v.PostID, &v.Value, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

// FindForUpdate returns the user's vote on a post, locked for the rest of
// the transaction, or nil when there is none.
func (s *VoteStore) FindForUpdate(ctx context.Context, userID, postID uuid.UUID) (*models.PostVote, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+voteColumns+` FROM post_votes
		WHERE user_id = $1 AND post_id = $2
		FOR UPDATE
	`, userID, postID)
	v, err := scanVote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find vote: %w", err)
	}
	return v, nil
}

// Insert records a new vote.
func (s *VoteStore) Insert(ctx context.Context, userID, postID uuid.UUID, value int) (*models.PostVote, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO post_votes (user_id, post_id, value)
		VALUES ($1, $2, $3)
		RETURNING `+voteColumns,
		userID, postID, value,
	)
	v, err := scanVote(row)
	if err != nil {
		return nil, conflictOr(err, "insert vote", "user %s already voted on post %s", userID, postID)
	}
	return v, nil
}

// SetValue flips an existing vote.
func (s *VoteStore) SetValue(ctx context.Context, id uuid.UUID, value int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE post_votes SET value = $1, updated_at = NOW() WHERE id = $2
	`, value, id)
	if err != nil {
		return fmt.Errorf("update vote: %w", err)
	}
	return nil
}

// Delete removes a vote row.
func (s *VoteStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM post_votes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete vote: %w", err)
	}
	return nil
}
