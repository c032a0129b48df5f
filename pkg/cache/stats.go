package cache

import "sync/atomic"

// Stats holds process-lifetime cache counters. Counters reset only on
// process restart.
type Stats struct {
	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewStats creates a zeroed counter set.
func NewStats() *Stats {
	return &Stats{}
}

// Hit records a cache hit.
func (s *Stats) Hit() { s.hits.Add(1) }

// Miss records a cache miss.
func (s *Stats) Miss() { s.misses.Add(1) }

// Error records a populate failure.
func (s *Stats) Error() { s.errors.Add(1) }

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// Snapshot returns the current counter values and derived hit rate.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Errors: s.errors.Load(),
	}
	if total := snap.Hits + snap.Misses; total > 0 {
		snap.HitRate = float64(snap.Hits) / float64(total)
	}
	return snap
}
