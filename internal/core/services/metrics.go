package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// remoteFallbackTotal counts snapshot loads served from the local tier only.
	remoteFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kanso_remote_fallback_total",
		Help: "Snapshot loads that fell back to local data, by reason",
	}, []string{"reason"})

	// commitTotal counts draft saves by outcome.
	commitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kanso_checkin_commit_total",
		Help: "Check-in save attempts by outcome",
	}, []string{"outcome"})

	snapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kanso_snapshot_load_duration_seconds",
		Help:    "Time to fetch plan, local and remote tiers for one reconciliation",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	cacheRefreshTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kanso_local_refresh_total",
		Help: "Committed remote records copied into the local tier",
	})
)
