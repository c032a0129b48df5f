// Package pipeline implements the instruction acquisition pipeline: cache
// check, fetch race, extractor chain, and fallback generation.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/pantryworks/recipe-cache/pkg/cache"
	"github.com/pantryworks/recipe-cache/pkg/extract"
	"github.com/pantryworks/recipe-cache/pkg/fetch"
)

var (
	pipelineRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_pipeline_requests_total",
		Help: "Total instruction pipeline requests by source and cache outcome",
	}, []string{"source", "cached"})

	pipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recipe_pipeline_duration_seconds",
		Help:    "Instruction pipeline duration in seconds",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 15},
	})
)

// Config holds pipeline settings.
type Config struct {
	// Timeout is the pipeline-wide fetch budget. When it elapses the
	// pipeline abandons in-flight fetches and falls back.
	Timeout time.Duration

	// SiteRules is the per-domain extraction registry.
	SiteRules []extract.SiteRule
}

// DefaultConfig returns the production pipeline settings.
func DefaultConfig() Config {
	return Config{
		Timeout:   10 * time.Second,
		SiteRules: extract.DefaultSiteRules,
	}
}

// Result is the pipeline outcome. The caller always receives a usable
// instruction set; Success is false only for unexpected internal errors.
type Result struct {
	Instructions extract.InstructionSet `json:"instructions"`
	Cached       bool                   `json:"cached"`
	Success      bool                   `json:"success"`
}

// Pipeline acquires cooking instructions for recipe page URLs.
type Pipeline struct {
	cache  *cache.Orchestrator
	racer  *fetch.Racer
	cfg    Config
	logger zerolog.Logger
}

// New creates an acquisition pipeline.
func New(orch *cache.Orchestrator, racer *fetch.Racer, cfg Config, logger zerolog.Logger) *Pipeline {
	if orch == nil {
		panic("orchestrator cannot be nil")
	}
	if racer == nil {
		panic("racer cannot be nil")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if len(cfg.SiteRules) == 0 {
		cfg.SiteRules = extract.DefaultSiteRules
	}
	return &Pipeline{cache: orch, racer: racer, cfg: cfg, logger: logger}
}

// PageKey derives the instruction cache key for a page URL. Scheme and
// host are case-insensitive per RFC 3986, but the path and query are not:
// many sites serve case-sensitive slugs, so those keep their case.
func PageKey(pageURL string) string {
	trimmed := strings.TrimSpace(pageURL)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed + "::"
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String() + "::"
}

// Instructions returns the instruction set for a recipe page, consulting
// the cache first and otherwise running the full acquisition pipeline.
// Fallback results are served but not persisted.
func (p *Pipeline) Instructions(ctx context.Context, pageURL string) Result {
	start := time.Now()
	defer func() {
		pipelineDuration.Observe(time.Since(start).Seconds())
	}()

	key := PageKey(pageURL)

	val, err := p.cache.GetOrPopulate(ctx, cache.NamespaceInstructions, key, cache.TTLInstructions,
		func(ctx context.Context) (cache.Result, error) {
			return p.acquire(ctx, pageURL)
		})
	if err != nil {
		// The populate path always returns a fallback result, so any
		// error here is an unexpected programming error.
		p.logger.Error().Err(err).Str("url", pageURL).Msg("Instruction pipeline failed unexpectedly")
		return Result{Success: false}
	}

	var set extract.InstructionSet
	if err := json.Unmarshal(val.Payload, &set); err != nil {
		p.logger.Error().Err(err).Str("url", pageURL).Msg("Corrupt instruction payload")
		return Result{Success: false}
	}

	cachedLabel := "false"
	if val.Cached {
		cachedLabel = "true"
	}
	pipelineRequests.WithLabelValues(string(set.Source), cachedLabel).Inc()

	return Result{Instructions: set, Cached: val.Cached, Success: true}
}

// acquire runs the fetch race and extractor chain for one page. It always
// returns a usable result; exhaustion produces a degraded fallback set.
func (p *Pipeline) acquire(ctx context.Context, pageURL string) (cache.Result, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	content, strategy, err := p.racer.Fetch(fetchCtx, pageURL)
	if err != nil {
		p.logger.Warn().Err(err).Str("url", pageURL).Msg("All fetch strategies failed, generating fallback")
		return degraded(extract.Fallback(pageURL))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		p.logger.Warn().Err(err).Str("url", pageURL).Msg("Unparseable page content, generating fallback")
		return degraded(extract.Fallback(pageURL))
	}

	set := p.extractChain(doc, pageURL)
	if set.Empty() {
		p.logger.Info().
			Str("url", pageURL).
			Str("strategy", strategy).
			Msg("All extractors came up empty, generating fallback")
		return degraded(extract.Fallback(pageURL))
	}

	p.logger.Info().
		Str("url", pageURL).
		Str("strategy", strategy).
		Str("source", string(set.Source)).
		Int("steps", len(set.Steps)).
		Msg("Instructions extracted")

	payload, err := json.Marshal(set)
	if err != nil {
		return cache.Result{}, err
	}

	res := cache.Result{Payload: payload}
	if set.Source == extract.SourceHeuristic {
		// Weakest structural evidence gets the shortest lifetime
		res.TTL = cache.TTLInstructionsHeuristic
	}
	return res, nil
}

// extractChain applies the extractors in strict priority order.
func (p *Pipeline) extractChain(doc *goquery.Document, pageURL string) extract.InstructionSet {
	host := ""
	if u, err := url.Parse(pageURL); err == nil {
		host = u.Hostname()
	}

	if steps := extract.StructuredMetadata(doc); len(steps) > 0 {
		return extract.InstructionSet{Steps: steps, Source: extract.SourceStructuredMetadata}
	}
	if steps := extract.SitePattern(doc, host, p.cfg.SiteRules); len(steps) > 0 {
		return extract.InstructionSet{Steps: steps, Source: extract.SourceSitePattern}
	}
	if steps := extract.GenericPattern(doc); len(steps) > 0 {
		return extract.InstructionSet{Steps: steps, Source: extract.SourceGenericPattern}
	}
	if steps := extract.Heuristic(doc); len(steps) > 0 {
		return extract.InstructionSet{Steps: steps, Source: extract.SourceHeuristic}
	}
	return extract.InstructionSet{}
}

func degraded(set extract.InstructionSet) (cache.Result, error) {
	payload, err := json.Marshal(set)
	if err != nil {
		return cache.Result{}, err
	}
	return cache.Result{Payload: payload, Degraded: true}, nil
}
