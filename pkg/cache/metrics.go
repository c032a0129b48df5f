package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by namespace
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	// CacheMisses tracks cache misses by namespace
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"namespace"},
	)

	// PopulateErrors tracks populate failures by namespace
	PopulateErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_cache_populate_errors_total",
			Help: "Total number of populate failures",
		},
		[]string{"namespace"},
	)

	// PopulateDuration tracks populate latency by namespace
	PopulateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recipe_cache_populate_duration_seconds",
			Help:    "Populate duration in seconds by namespace",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"namespace"},
	)

	// DegradedResults tracks degraded fallback results that skipped persistence
	DegradedResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_cache_degraded_results_total",
			Help: "Total number of degraded populate results not persisted",
		},
		[]string{"namespace"},
	)
)
