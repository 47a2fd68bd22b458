// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// Thread is a discussion opened with a starter post. ReplyCount counts only
// non-starter posts; the LastPost* fields point at the newest post.
type Thread struct {
	ID         uuid.UUID  `json:"id"`
	Title      string     `json:"title"`
	Slug       string     `json:"slug"`
	CategoryID uuid.UUID  `json:"category_id"`
	AuthorID   *uuid.UUID `json:"author_id"`
	IsLocked   bool       `json:"is_locked"`
	IsPinned   bool       `json:"is_pinned"`
	ViewCount  int        `json:"view_count"`
	ReplyCount int        `json:"reply_count"`

	LastPostID   *uuid.UUID `json:"last_post_id"`
	LastPostAt   *time.Time `json:"last_post_at"`
	LastPostByID *uuid.UUID `json:"last_post_by_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
