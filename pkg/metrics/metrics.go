// Package metrics provides the centralized Prometheus registry reference for
// the recipe cache. All metrics are defined in their owning packages (cache,
// store, imagecache, fetch, pipeline, batch, recipeapi) to maintain
// modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the service.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - recipe_cache_hits_total{namespace} (Counter): Cache hits by namespace
//   - recipe_cache_misses_total{namespace} (Counter): Cache misses by namespace
//   - recipe_cache_populate_errors_total{namespace} (Counter): Populate failures by namespace
//   - recipe_cache_populate_duration_seconds{namespace} (Histogram): Populate duration
//   - recipe_cache_degraded_results_total{namespace} (Counter): Degraded results served
//
// Store Metrics (pkg/store):
//   - recipe_store_errors_total{operation} (Counter): Store operation errors
//   - recipe_store_expired_deleted_total (Counter): Expired records removed by sweeps
//
// Image Cache Metrics (pkg/imagecache):
//   - recipe_image_cache_hits_total (Counter): Image URLs served from the cache
//   - recipe_image_cache_fetches_total{outcome} (Counter): Image fetches by outcome
//   - recipe_image_cache_evictions_total (Counter): Entries evicted when over capacity
//
// Fetch Metrics (pkg/fetch):
//   - recipe_fetch_strategy_wins_total{strategy} (Counter): Race wins by strategy
//   - recipe_fetch_strategy_failures_total{strategy} (Counter): Strategy failures
//   - recipe_fetch_race_duration_seconds (Histogram): Fetch race duration
//
// Pipeline Metrics (pkg/pipeline):
//   - recipe_pipeline_requests_total{source, cached} (Counter): Instruction requests
//   - recipe_pipeline_duration_seconds (Histogram): Pipeline duration
//
// Batch Metrics (pkg/batch):
//   - recipe_batch_items_total{outcome} (Counter): Batch populator items by outcome
//   - recipe_batch_duration_seconds (Histogram): Batch run duration
//
// Upstream API Metrics (pkg/recipeapi):
//   - recipe_api_retries_total{error_class} (Counter): Retry attempts by error class
//   - recipe_api_retry_exhausted_total{error_class} (Counter): Exhausted retry sequences
//   - recipe_api_budget_remaining (Gauge): Calls remaining in the daily budget
//   - recipe_api_budget_blocks_total (Counter): Requests blocked by the budget
//   - recipe_api_budget_throttles_total (Counter): Requests throttled near the budget
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate per namespace
//   sum by (namespace) (rate(recipe_cache_hits_total[5m])) /
//   (sum by (namespace) (rate(recipe_cache_hits_total[5m])) +
//    sum by (namespace) (rate(recipe_cache_misses_total[5m])))
//
//   # Fallback share of instruction requests
//   rate(recipe_pipeline_requests_total{source="fallback-template"}[5m]) /
//   rate(recipe_pipeline_requests_total[5m])
//
//   # Daily budget alarm
//   recipe_api_budget_remaining < 100
//
//   # P95 pipeline latency
//   histogram_quantile(0.95, rate(recipe_pipeline_duration_seconds_bucket[5m]))
