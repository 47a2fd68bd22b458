// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// Post is a message inside a thread. Exactly one post per thread has
// IsThreadStarter set; it is created together with the thread.
type Post struct {
	ID              uuid.UUID  `json:"id"`
	Content         string     `json:"content"`
	ThreadID        uuid.UUID  `json:"thread_id"`
	AuthorID        *uuid.UUID `json:"author_id"`
	ParentPostID    *uuid.UUID `json:"parent_post_id"`
	IsThreadStarter bool       `json:"is_thread_starter"`
	IsEdited        bool       `json:"is_edited"`
	Upvotes         int        `json:"upvotes"`
	Downvotes       int        `json:"downvotes"`
	Score           int        `json:"score"`
	CommentCount    int        `json:"comment_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Vote values accepted by the vote ledger.
const (
	VoteUp   = 1
	VoteDown = -1
)

// PostVote is a single user's live vote on a post.
type PostVote struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	PostID    uuid.UUID `json:"post_id"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostComment is a short append-only comment attached to a post.
type PostComment struct {
	ID        uuid.UUID  `json:"id"`
	Content   string     `json:"content"`
	PostID    uuid.UUID  `json:"post_id"`
	AuthorID  *uuid.UUID `json:"author_id"`
	CreatedAt time.Time  `json:"created_at"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// TotalPages returns the number of pages for the listing.
func (p Page[T]) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}
