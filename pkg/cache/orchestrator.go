package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pantryworks/recipe-cache/pkg/store"
)

// PopulateFunc computes the value for a missing key. It may call the
// primary recipe API or the acquisition pipeline.
type PopulateFunc func(ctx context.Context) (Result, error)

// Result is the outcome of a populate call.
type Result struct {
	// Payload is the value to return and, normally, persist.
	Payload json.RawMessage

	// Degraded marks a low-confidence fallback value. Degraded results are
	// returned to the caller but never written to the durable store.
	Degraded bool

	// TTL overrides the caller's TTL when positive. Used to give
	// heuristic-sourced instruction sets a shorter lifetime.
	TTL time.Duration
}

// Value is a cache read result.
type Value struct {
	// Payload is the cached or freshly populated value.
	Payload json.RawMessage

	// Cached reports whether the value was served from the store.
	Cached bool

	// Age is how long ago the value was written. Zero for fresh values.
	Age time.Duration
}

// Orchestrator implements get-or-populate over the durable store with
// hit/miss/error accounting.
type Orchestrator struct {
	store  store.Store
	stats  *Stats
	logger zerolog.Logger
}

// NewOrchestrator creates a cache-aside orchestrator.
func NewOrchestrator(st store.Store, logger zerolog.Logger) *Orchestrator {
	if st == nil {
		panic("store cannot be nil")
	}
	return &Orchestrator{
		store:  st,
		stats:  NewStats(),
		logger: logger,
	}
}

// Stats returns the process-lifetime hit/miss/error counters.
func (o *Orchestrator) Stats() Snapshot {
	return o.stats.Snapshot()
}

// GetOrPopulate returns the live cached value for key, or invokes populate
// and writes the result through with expiresAt = now + ttl.
//
// A store read failure is treated as a miss: caching is best-effort and
// must never block the read path. A populate failure is returned to the
// caller unchanged; the orchestrator does not synthesize values.
func (o *Orchestrator) GetOrPopulate(ctx context.Context, ns Namespace, key string, ttl time.Duration, populate PopulateFunc) (Value, error) {
	now := time.Now()

	rec, err := o.store.GetLive(ctx, ns.String(), key, now)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		o.logger.Warn().Err(err).
			Str("namespace", ns.String()).
			Str("key", key).
			Msg("Store read failed, treating as miss")
	}

	if rec != nil {
		o.stats.Hit()
		CacheHits.WithLabelValues(ns.String()).Inc()
		o.logger.Debug().
			Str("namespace", ns.String()).
			Str("key", key).
			Dur("age", rec.Age(now)).
			Msg("Cache hit")

		// Best-effort access tracking, never on the read path
		go o.trackAccess(ns, key)

		return Value{Payload: rec.Payload, Cached: true, Age: rec.Age(now)}, nil
	}

	o.stats.Miss()
	CacheMisses.WithLabelValues(ns.String()).Inc()

	start := time.Now()
	res, err := populate(ctx)
	PopulateDuration.WithLabelValues(ns.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		o.stats.Error()
		PopulateErrors.WithLabelValues(ns.String()).Inc()
		o.logger.Warn().Err(err).
			Str("namespace", ns.String()).
			Str("key", key).
			Msg("Populate failed")
		return Value{}, fmt.Errorf("populate %s/%s: %w", ns, key, err)
	}

	if res.Degraded {
		DegradedResults.WithLabelValues(ns.String()).Inc()
		o.logger.Debug().
			Str("namespace", ns.String()).
			Str("key", key).
			Msg("Degraded result, skipping persistence")
		return Value{Payload: res.Payload}, nil
	}

	effTTL := ttl
	if res.TTL > 0 {
		effTTL = res.TTL
	}

	if err := o.store.Put(ctx, ns.String(), key, res.Payload, time.Now().Add(effTTL)); err != nil {
		// Persistence is best-effort; the caller still gets the value
		o.logger.Warn().Err(err).
			Str("namespace", ns.String()).
			Str("key", key).
			Msg("Store write failed")
	} else {
		o.logger.Debug().
			Str("namespace", ns.String()).
			Str("key", key).
			Dur("ttl", effTTL).
			Msg("Cached populate result")
	}

	return Value{Payload: res.Payload}, nil
}

// trackAccess bumps the access counter with a short deadline of its own,
// detached from the request context.
func (o *Orchestrator) trackAccess(ns Namespace, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := o.store.IncrementAccessCount(ctx, ns.String(), key); err != nil {
		o.logger.Debug().Err(err).
			Str("namespace", ns.String()).
			Str("key", key).
			Msg("Access count update failed")
	}
}

// SweepExpired removes expired records from every namespace. Intended to be
// run periodically by the service.
func (o *Orchestrator) SweepExpired(ctx context.Context) {
	for _, ns := range []Namespace{NamespacePopular, NamespaceSearch, NamespaceSimilar, NamespaceInstructions} {
		deleted, err := o.store.DeleteExpired(ctx, ns.String(), time.Now())
		if err != nil {
			o.logger.Warn().Err(err).Str("namespace", ns.String()).Msg("Expiry sweep failed")
			continue
		}
		if deleted > 0 {
			o.logger.Info().
				Str("namespace", ns.String()).
				Int("deleted", deleted).
				Msg("Expiry sweep complete")
		}
	}
}
