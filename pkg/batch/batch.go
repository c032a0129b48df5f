// Package batch runs cache population jobs over many items in small
// concurrent groups with a pause between groups, keeping load on upstream
// sites and the recipe API polite.
package batch

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	batchItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_batch_items_total",
		Help: "Total batch populator items by outcome",
	}, []string{"outcome"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recipe_batch_duration_seconds",
		Help:    "Batch populator run duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})
)

// Config holds batch populator settings.
type Config struct {
	// GroupSize is how many items run concurrently per group.
	GroupSize int

	// GroupDelay is the pause between groups.
	GroupDelay time.Duration
}

// DefaultConfig returns the production batch settings.
func DefaultConfig() Config {
	return Config{GroupSize: 3, GroupDelay: 500 * time.Millisecond}
}

// Summary reports the outcome of a batch run.
type Summary struct {
	Succeeded int
	Failed    int
}

// Worker processes a single item. Errors are counted, logged, and do not
// stop the remaining items.
type Worker func(ctx context.Context, item string) error

// Populator runs workers over item lists in delayed groups.
type Populator struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates a batch populator.
func New(cfg Config, logger zerolog.Logger) *Populator {
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = 3
	}
	return &Populator{cfg: cfg, logger: logger}
}

// Populate runs worker over each item. Items execute concurrently within a
// group; groups run sequentially with GroupDelay between them. A worker
// failure only skips that item. Context cancellation stops before the next
// group and returns the context error alongside the partial summary.
func (p *Populator) Populate(ctx context.Context, items []string, worker Worker) (Summary, error) {
	start := time.Now()
	defer func() {
		batchDuration.Observe(time.Since(start).Seconds())
	}()

	var sum Summary
	for offset := 0; offset < len(items); offset += p.cfg.GroupSize {
		if offset > 0 && p.cfg.GroupDelay > 0 {
			select {
			case <-time.After(p.cfg.GroupDelay):
			case <-ctx.Done():
				return sum, ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		end := offset + p.cfg.GroupSize
		if end > len(items) {
			end = len(items)
		}
		group := items[offset:end]
		results := make([]error, len(group))

		var g errgroup.Group
		for i, item := range group {
			g.Go(func() error {
				results[i] = worker(ctx, item)
				return nil
			})
		}
		g.Wait()

		for i, err := range results {
			if err != nil {
				sum.Failed++
				batchItems.WithLabelValues("failure").Inc()
				p.logger.Warn().Err(err).Str("item", group[i]).Msg("Batch item failed")
				continue
			}
			sum.Succeeded++
			batchItems.WithLabelValues("success").Inc()
		}
	}

	p.logger.Info().
		Int("total", len(items)).
		Int("succeeded", sum.Succeeded).
		Int("failed", sum.Failed).
		Msg("Batch population finished")
	return sum, nil
}
