// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package metrics declares the Prometheus collectors the forum core updates.
// They register with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ViewsRecorded counts thread views that passed the uniqueness window.
	ViewsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forum_thread_views_recorded_total",
			Help: "Thread views counted after de-duplication by IP",
		},
	)

	// ViewIncrementFailures counts background view_count updates that failed.
	ViewIncrementFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forum_thread_view_increment_failures_total",
			Help: "Background thread view increments that failed",
		},
	)

	// VoteTransitions counts vote state changes by kind
	// (up, down, clear_up, clear_down, up_to_down, down_to_up).
	VoteTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_vote_transitions_total",
			Help: "Vote state transitions applied",
		},
		[]string{"transition"},
	)

	// VoteRetries counts vote transactions retried after a duplicate insert.
	VoteRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forum_vote_retries_total",
			Help: "Vote transactions retried after a unique violation",
		},
	)

	// CacheFailures counts cache operations that errored or were short-circuited.
	CacheFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_cache_failures_total",
			Help: "Cache operations that failed and were treated as a miss",
		},
		[]string{"operation"},
	)

	// CounterEvents counts committed counter propagation events.
	CounterEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_counter_events_total",
			Help: "Denormalized counter updates committed, by triggering event",
		},
		[]string{"event"},
	)

	// Registrations counts registration attempts by outcome
	// (created, rate_limited, conflict).
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_registrations_total",
			Help: "Account registration attempts by outcome",
		},
		[]string{"outcome"},
	)

	// MutationDuration observes how long each forum mutation transaction takes.
	MutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forum_mutation_duration_seconds",
			Help:    "Duration of forum mutation transactions in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)
)
