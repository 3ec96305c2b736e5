package repository

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// corruptDroppedTotal counts stored records discarded at the store boundary.
	corruptDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kanso_corrupt_records_dropped_total",
		Help: "Corrupt check-in records dropped while reading a local tier",
	}, []string{"store"})

	localStoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kanso_local_store_errors_total",
		Help: "Local tier read failures answered with an empty result",
	}, []string{"store"})

	planCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kanso_plan_cache_total",
		Help: "Plan cache lookups by result",
	}, []string{"result"})
)
