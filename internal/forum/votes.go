// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package forum

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"forum/internal/access"
	"forum/internal/apperr"
	"forum/internal/metrics"
	"forum/internal/models"
	"forum/internal/store"
)

// VoteAction is the write a vote transition needs.
type VoteAction int

const (
	VoteInsert VoteAction = iota
	VoteUpdate
	VoteDelete
)

// VoteTransition describes how one submitted vote changes the ledger.
type VoteTransition struct {
	Action VoteAction
	// Value is the caller's vote afterwards; nil means no vote.
	Value *int
	Delta store.VoteDelta
	// Name labels the transition in metrics.
	Name string
}

// Transition decides what a vote of value does given the caller's existing
// vote (nil when there is none). Repeating a vote withdraws it.
func Transition(existing *int, value int) (VoteTransition, error) {
	if value != models.VoteUp && value != models.VoteDown {
		return VoteTransition{}, apperr.Invalid("vote value must be 1 or -1, got %d", value)
	}
	v := value

	switch {
	case existing == nil && value == models.VoteUp:
		return VoteTransition{VoteInsert, &v, store.VoteDelta{Score: 1, Upvotes: 1}, "up"}, nil
	case existing == nil:
		return VoteTransition{VoteInsert, &v, store.VoteDelta{Score: -1, Downvotes: 1}, "down"}, nil
	case *existing == value && value == models.VoteUp:
		return VoteTransition{VoteDelete, nil, store.VoteDelta{Score: -1, Upvotes: -1}, "clear_up"}, nil
	case *existing == value:
		return VoteTransition{VoteDelete, nil, store.VoteDelta{Score: 1, Downvotes: -1}, "clear_down"}, nil
	case value == models.VoteDown:
		return VoteTransition{VoteUpdate, &v, store.VoteDelta{Score: -2, Upvotes: -1, Downvotes: 1}, "up_to_down"}, nil
	default:
		return VoteTransition{VoteUpdate, &v, store.VoteDelta{Score: 2, Upvotes: 1, Downvotes: -1}, "down_to_up"}, nil
	}
}

// VoteResult is the post's score after a vote and the caller's current vote.
type VoteResult struct {
	Score    int  `json:"score"`
	UserVote *int `json:"user_vote"`
}

// Vote applies an upvote (1) or downvote (-1) from the caller to a post.
// The decision and its writes share one transaction; losing an insert race
// to a concurrent vote by the same user retries against the winner's row.
func (s *Service) Vote(ctx context.Context, p *access.Principal, postID uuid.UUID, value int) (*VoteResult, error) {
	if err := access.RequireActive(p); err != nil {
		return nil, err
	}
	if _, err := Transition(nil, value); err != nil {
		return nil, err
	}

	_, _, category, err := s.postScope(ctx, p, postID)
	if err != nil {
		return nil, err
	}
	if err := access.Require(category.MinPostRole, p, "vote in this category"); err != nil {
		return nil, err
	}

	var (
		result VoteResult
		name   string
	)
	backoff := retry.WithMaxRetries(s.opts.VoteRetries, retry.NewConstant(s.opts.VoteBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.mutate(ctx, "vote", func(tx *sql.Tx) error {
			votes := s.votes.WithTx(tx)
			existing, err := votes.FindForUpdate(ctx, p.ID, postID)
			if err != nil {
				return err
			}
			var current *int
			if existing != nil {
				current = &existing.Value
			}
			tr, err := Transition(current, value)
			if err != nil {
				return err
			}

			switch tr.Action {
			case VoteInsert:
				_, err = votes.Insert(ctx, p.ID, postID, value)
			case VoteUpdate:
				err = votes.SetValue(ctx, existing.ID, value)
			case VoteDelete:
				err = votes.Delete(ctx, existing.ID)
			}
			if err != nil {
				return err
			}

			score, err := store.ApplyVoteDelta(ctx, tx, postID, tr.Delta)
			if err != nil {
				return err
			}
			result = VoteResult{Score: score, UserVote: tr.Value}
			name = tr.Name
			return nil
		})
		if apperr.IsKind(err, apperr.KindConflict) {
			metrics.VoteRetries.Inc()
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.VoteTransitions.WithLabelValues(name).Inc()
	counted("vote")
	return &result, nil
}
