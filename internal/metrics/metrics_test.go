// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounterVecsAcceptLabels(t *testing.T) {
	before := testutil.ToFloat64(VoteTransitions.WithLabelValues("up"))
	VoteTransitions.WithLabelValues("up").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(VoteTransitions.WithLabelValues("up")))

	before = testutil.ToFloat64(CacheFailures.WithLabelValues("get"))
	CacheFailures.WithLabelValues("get").Add(2)
	assert.Equal(t, before+2, testutil.ToFloat64(CacheFailures.WithLabelValues("get")))
}

func TestCollectorsLint(t *testing.T) {
	ViewsRecorded.Inc()
	MutationDuration.WithLabelValues("create_thread").Observe(0.01)

	for name, c := range map[string]prometheus.Collector{
		"views":     ViewsRecorded,
		"votes":     VoteTransitions,
		"cache":     CacheFailures,
		"counters":  CounterEvents,
		"mutations": MutationDuration,
	} {
		problems, err := testutil.CollectAndLint(c)
		assert.NoError(t, err, name)
		assert.Empty(t, problems, name)
	}
}
