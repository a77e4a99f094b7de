// Package metrics registers the Prometheus collectors shared across
// components, following the ambient-metrics convention of registering
// package-level collectors against the default registry rather than
// threading a recorder through every constructor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLoaderElections counts C2 election outcomes by role (winner/loser).
	CacheLoaderElections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medcore_cache_loader_elections_total",
		Help: "Number of list-cache election outcomes by role.",
	}, []string{"role"})

	// CacheFollowerTimeouts counts C2 followers that hit T_follow_max.
	CacheFollowerTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medcore_cache_follower_timeouts_total",
		Help: "Number of list-cache followers that timed out waiting for a loader.",
	})

	// IdempotencyOutcomes counts C3 gate outcomes by role (winner/loser/conflict).
	IdempotencyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medcore_idempotency_outcomes_total",
		Help: "Number of idempotency gate outcomes by role.",
	}, []string{"outcome"})

	// SessionsConnected is the live WebSocket session count (C4).
	SessionsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "medcore_sessions_connected",
		Help: "Current number of registered WebSocket sessions.",
	})

	// BehaviorEventsPublished counts C5 publisher successes.
	BehaviorEventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medcore_behavior_events_published_total",
		Help: "Number of behavior events published to the queue.",
	})

	// BehaviorEventsConsumed counts C5 consumer outcomes by result (acked/nacked/malformed).
	BehaviorEventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medcore_behavior_events_consumed_total",
		Help: "Number of behavior events consumed from the queue, by outcome.",
	}, []string{"outcome"})
)
