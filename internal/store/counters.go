// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// counters.go keeps the denormalized statistics on categories, threads and
// posts in step with the rows they summarize. Every function runs on the
// caller's transaction and only issues atomic column expressions, so
// concurrent writers never lose an update and a rollback of the triggering
// mutation also rolls back its counters.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"forum/internal/apperr"
	"forum/internal/models"
)

// OnThreadCreated points the thread's last-post fields at its starter post
// and counts the thread and the starter in the category.
func OnThreadCreated(ctx context.Context, db DBTX, t *models.Thread, starter *models.Post) error {
	_, err := db.ExecContext(ctx, `
		UPDATE threads SET
			reply_count = 0,
			last_post_id = $2, last_post_at = $3, last_post_by_id = $4
		WHERE id = $1
	`, t.ID, starter.ID, starter.CreatedAt, starter.AuthorID)
	if err != nil {
		return fmt.Errorf("init thread counters: %w", err)
	}

	if err := bumpCategory(ctx, db, t.CategoryID, 1, 1); err != nil {
		return err
	}

	t.ReplyCount = 0
	t.LastPostID = &starter.ID
	t.LastPostAt = &starter.CreatedAt
	t.LastPostByID = starter.AuthorID
	return nil
}

// OnReplyCreated counts a new reply in its thread and category and makes it
// the thread's last post, unless a newer post already holds that slot.
func OnReplyCreated(ctx context.Context, db DBTX, reply *models.Post) error {
	var categoryID uuid.UUID
	err := db.QueryRowContext(ctx, `
		UPDATE threads SET
			reply_count = reply_count + 1,
			last_post_id    = CASE WHEN last_post_at IS NULL OR last_post_at <= $3 THEN $2 ELSE last_post_id END,
			last_post_by_id = CASE WHEN last_post_at IS NULL OR last_post_at <= $3 THEN $4 ELSE last_post_by_id END,
			last_post_at    = GREATEST(last_post_at, $3),
			updated_at = NOW()
		WHERE id = $1
		RETURNING category_id
	`, reply.ThreadID, reply.ID, reply.CreatedAt, reply.AuthorID).Scan(&categoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("thread %s not found", reply.ThreadID)
	}
	if err != nil {
		return fmt.Errorf("count reply: %w", err)
	}

	return bumpCategory(ctx, db, categoryID, 0, 1)
}

// OnReplyRemoved uncounts a deleted reply. When the reply was the thread's
// last post (or the FK already nulled it), the newest remaining post takes
// its place; the starter post guarantees one exists.
func OnReplyRemoved(ctx context.Context, db DBTX, threadID, postID uuid.UUID) error {
	var (
		categoryID uuid.UUID
		lastPostID *uuid.UUID
	)
	err := db.QueryRowContext(ctx, `
		UPDATE threads SET reply_count = GREATEST(reply_count - 1, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING category_id, last_post_id
	`, threadID).Scan(&categoryID, &lastPostID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("thread %s not found", threadID)
	}
	if err != nil {
		return fmt.Errorf("uncount reply: %w", err)
	}

	if lastPostID == nil || *lastPostID == postID {
		if err := recomputeLastPost(ctx, db, threadID, postID); err != nil {
			return err
		}
	}

	return bumpCategory(ctx, db, categoryID, 0, -1)
}

func recomputeLastPost(ctx context.Context, db DBTX, threadID, excludeID uuid.UUID) error {
	var (
		id       *uuid.UUID
		at       *time.Time
		authorID *uuid.UUID
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, created_at, author_id
		FROM posts
		WHERE thread_id = $1 AND id <> $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, threadID, excludeID).Scan(&id, &at, &authorID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("find latest post: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		UPDATE threads SET last_post_id = $2, last_post_at = $3, last_post_by_id = $4
		WHERE id = $1
	`, threadID, id, at, authorID)
	if err != nil {
		return fmt.Errorf("set last post: %w", err)
	}
	return nil
}

// OnThreadRemoved uncounts a deleted thread and the postCount posts it held.
// postCount must be read before the cascade removes them.
func OnThreadRemoved(ctx context.Context, db DBTX, categoryID uuid.UUID, postCount int) error {
	return bumpCategory(ctx, db, categoryID, -1, -postCount)
}

// OnCommentCreated counts a new comment on its post.
func OnCommentCreated(ctx context.Context, db DBTX, postID uuid.UUID) error {
	res, err := db.ExecContext(ctx, `
		UPDATE posts SET comment_count = comment_count + 1 WHERE id = $1
	`, postID)
	if err != nil {
		return fmt.Errorf("count comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("post %s not found", postID)
	}
	return nil
}

// VoteDelta is the change a vote transition applies to a post's tallies.
type VoteDelta struct {
	Score     int
	Upvotes   int
	Downvotes int
}

// IsZero reports whether the delta changes nothing.
func (d VoteDelta) IsZero() bool {
	return d == VoteDelta{}
}

// ApplyVoteDelta adds d to the post's tallies and returns the new score.
func ApplyVoteDelta(ctx context.Context, db DBTX, postID uuid.UUID, d VoteDelta) (int, error) {
	var score int
	err := db.QueryRowContext(ctx, `
		UPDATE posts SET
			score = score + $2,
			upvotes = GREATEST(upvotes + $3, 0),
			downvotes = GREATEST(downvotes + $4, 0)
		WHERE id = $1
		RETURNING score
	`, postID, d.Score, d.Upvotes, d.Downvotes).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFound("post %s not found", postID)
	}
	if err != nil {
		return 0, fmt.Errorf("apply vote delta: %w", err)
	}
	return score, nil
}

// bumpCategory shifts a category's counters, clamping at zero.
func bumpCategory(ctx context.Context, db DBTX, categoryID uuid.UUID, threads, posts int) error {
	_, err := db.ExecContext(ctx, `
		UPDATE categories SET
			thread_count = GREATEST(thread_count + $2, 0),
			post_count = GREATEST(post_count + $3, 0)
		WHERE id = $1
	`, categoryID, threads, posts)
	if err != nil {
		return fmt.Errorf("update category counters: %w", err)
	}
	return nil
}

// RecountStats reports how many rows RecountAll touched.
type RecountStats struct {
	Categories int64
	Threads    int64
	Posts      int64
}

// RecountAll recomputes every counter from the underlying rows. It is the
// repair path for counters that drifted (manual SQL, restored backups).
func RecountAll(ctx context.Context, db *sql.DB) (RecountStats, error) {
	var stats RecountStats
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE threads t SET
				reply_count = (SELECT COUNT(*) FROM posts p WHERE p.thread_id = t.id AND NOT p.is_thread_starter),
				last_post_id = latest.id,
				last_post_at = latest.created_at,
				last_post_by_id = latest.author_id
			FROM threads t2
			LEFT JOIN LATERAL (
				SELECT id, created_at, author_id FROM posts
				WHERE thread_id = t2.id
				ORDER BY created_at DESC, id DESC
				LIMIT 1
			) latest ON TRUE
			WHERE t2.id = t.id
		`)
		if err != nil {
			return fmt.Errorf("recount threads: %w", err)
		}
		stats.Threads, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, `
			UPDATE categories c SET
				thread_count = (SELECT COUNT(*) FROM threads t WHERE t.category_id = c.id),
				post_count = (
					SELECT COUNT(*) FROM posts p
					JOIN threads t ON t.id = p.thread_id
					WHERE t.category_id = c.id
				)
		`)
		if err != nil {
			return fmt.Errorf("recount categories: %w", err)
		}
		stats.Categories, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, `
			UPDATE posts p SET
				upvotes = COALESCE(v.up, 0),
				downvotes = COALESCE(v.down, 0),
				score = COALESCE(v.up, 0) - COALESCE(v.down, 0),
				comment_count = (SELECT COUNT(*) FROM post_comments pc WHERE pc.post_id = p.id)
			FROM posts p2
			LEFT JOIN (
				SELECT post_id,
				       COUNT(*) FILTER (WHERE value = 1) AS up,
				       COUNT(*) FILTER (WHERE value = -1) AS down
				FROM post_votes
				GROUP BY post_id
			) v ON v.post_id = p2.id
			WHERE p2.id = p.id
		`)
		if err != nil {
			return fmt.Errorf("recount posts: %w", err)
		}
		stats.Posts, _ = res.RowsAffected()
		return nil
	})
	return stats, err
}
