package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	strategyWins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_fetch_strategy_wins_total",
		Help: "Total number of fetch races won by strategy",
	}, []string{"strategy"})

	strategyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_fetch_strategy_failures_total",
		Help: "Total number of fetch strategy failures",
	}, []string{"strategy"})

	raceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recipe_fetch_race_duration_seconds",
		Help:    "Fetch race duration in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10},
	})
)

// ErrAllStrategiesFailed indicates no strategy returned usable content.
var ErrAllStrategiesFailed = errors.New("all fetch strategies failed")

// Config holds racer settings.
type Config struct {
	// Strategies are raced concurrently. Order does not imply priority;
	// the first usable result wins.
	Strategies []Strategy

	// StrategyTimeout bounds each individual attempt.
	StrategyTimeout time.Duration

	// MinContentLength rejects results that are too short to be a real
	// page (error stubs, empty relay responses).
	MinContentLength int

	// HTTPClient performs the requests.
	HTTPClient *http.Client
}

// DefaultConfig returns the production racer settings.
func DefaultConfig() Config {
	return Config{
		Strategies:       DefaultStrategies(),
		StrategyTimeout:  4 * time.Second,
		MinContentLength: 200,
		HTTPClient:       &http.Client{Timeout: 12 * time.Second},
	}
}

// Racer races fetch strategies and commits to the first usable result.
type Racer struct {
	cfg    Config
	logger zerolog.Logger
}

// NewRacer creates a fetch racer.
func NewRacer(cfg Config, logger zerolog.Logger) *Racer {
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = DefaultStrategies()
	}
	if cfg.StrategyTimeout <= 0 {
		cfg.StrategyTimeout = 4 * time.Second
	}
	if cfg.MinContentLength <= 0 {
		cfg.MinContentLength = 200
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 12 * time.Second}
	}
	return &Racer{cfg: cfg, logger: logger}
}

type raceResult struct {
	strategy string
	content  []byte
}

// Fetch races all strategies for pageURL and returns the first result
// whose content length crosses the minimum threshold, along with the name
// of the winning strategy. Losing attempts are cancelled. Individual
// strategy failures are silent; only total exhaustion is an error.
func (r *Racer) Fetch(ctx context.Context, pageURL string) ([]byte, string, error) {
	start := time.Now()
	defer func() {
		raceDuration.Observe(time.Since(start).Seconds())
	}()

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan raceResult, len(r.cfg.Strategies))
	failures := make(chan struct{}, len(r.cfg.Strategies))

	for _, strat := range r.cfg.Strategies {
		go r.attempt(raceCtx, strat, pageURL, results, failures)
	}

	failed := 0
	for {
		select {
		case res := <-results:
			// First usable result wins; cancel the rest
			cancel()
			strategyWins.WithLabelValues(res.strategy).Inc()
			r.logger.Debug().
				Str("strategy", res.strategy).
				Int("bytes", len(res.content)).
				Dur("duration", time.Since(start)).
				Msg("Fetch race won")
			return res.content, res.strategy, nil

		case <-failures:
			failed++
			if failed == len(r.cfg.Strategies) {
				return nil, "", ErrAllStrategiesFailed
			}

		case <-ctx.Done():
			// Pipeline-wide deadline: abandon in-flight attempts
			return nil, "", fmt.Errorf("fetch race: %w", ctx.Err())
		}
	}
}

// attempt runs one strategy under its own timeout.
func (r *Racer) attempt(ctx context.Context, strat Strategy, pageURL string, results chan<- raceResult, failures chan<- struct{}) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.StrategyTimeout)
	defer cancel()

	fail := func(err error) {
		strategyFailures.WithLabelValues(strat.Name).Inc()
		r.logger.Debug().Err(err).Str("strategy", strat.Name).Msg("Fetch strategy failed")
		select {
		case failures <- struct{}{}:
		case <-ctx.Done():
		}
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, strat.URL(pageURL), nil)
	if err != nil {
		fail(err)
		return
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := r.cfg.HTTPClient.Do(req)
	if err != nil {
		fail(err)
		return
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		fail(fmt.Errorf("status %d", resp.StatusCode))
		return
	}

	body, err := readBody(resp)
	if err != nil {
		fail(err)
		return
	}
	if len(body) < r.cfg.MinContentLength {
		fail(fmt.Errorf("content too short: %d bytes", len(body)))
		return
	}

	select {
	case results <- raceResult{strategy: strat.Name, content: body}:
	case <-ctx.Done():
		// A sibling already won; discard
	}
}
