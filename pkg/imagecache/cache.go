// Package imagecache deduplicates and persists fetched recipe images,
// keyed by a hash of the source URL, with a count-bounded local index.
package imagecache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/pantryworks/recipe-cache/pkg/blob"
)

var (
	imageHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recipe_image_cache_hits_total",
		Help: "Total number of image cache hits",
	})

	imageFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_image_cache_fetches_total",
		Help: "Total number of image fetch attempts by outcome",
	}, []string{"outcome"}) // "stored", "skipped", "failed", "inflight"

	imageEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recipe_image_cache_evictions_total",
		Help: "Total number of index entries evicted",
	})
)

// Config holds image cache settings.
type Config struct {
	// MaxEntries bounds the index size; exceeding it triggers eviction.
	MaxEntries int

	// EvictFraction is the share of oldest entries removed per sweep.
	EvictFraction float64

	// EntryTTL is how long a stored image is trusted before re-fetching.
	EntryTTL time.Duration

	// PathPrefix is the blob storage prefix for stored images.
	PathPrefix string

	// HTTPClient fetches image bytes. Defaults to a 15s-timeout client.
	HTTPClient *http.Client
}

// DefaultConfig returns the production image cache settings.
func DefaultConfig() Config {
	return Config{
		MaxEntries:    500,
		EvictFraction: 0.2,
		EntryTTL:      30 * 24 * time.Hour,
		PathPrefix:    "recipe-images",
		HTTPClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Cache is the content-addressed image cache.
type Cache struct {
	index  *Index
	blobs  blob.Storage
	cfg    Config
	logger zerolog.Logger

	// inflight guarantees at most one physical fetch per source URL.
	// Concurrent callers for an in-flight URL get the original URL back
	// instead of queuing.
	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates an image cache over the given index and blob storage.
func New(index *Index, blobs blob.Storage, cfg Config, logger zerolog.Logger) *Cache {
	if index == nil {
		panic("index cannot be nil")
	}
	if blobs == nil {
		panic("blob storage cannot be nil")
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 500
	}
	if cfg.EvictFraction <= 0 || cfg.EvictFraction >= 1 {
		cfg.EvictFraction = 0.2
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * 24 * time.Hour
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "recipe-images"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Cache{
		index:    index,
		blobs:    blobs,
		cfg:      cfg,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// cacheKey derives a stable object name from a source URL: query params
// stripped, SHA-1 hashed and truncated, with a length suffix against
// truncation collisions and the original extension preserved.
func cacheKey(sourceURL string) string {
	trimmed := sourceURL
	if u, err := url.Parse(sourceURL); err == nil {
		u.RawQuery = ""
		u.Fragment = ""
		trimmed = u.String()
	}

	sum := sha1.Sum([]byte(trimmed))
	hash := hex.EncodeToString(sum[:])[:16]

	ext := strings.ToLower(path.Ext(trimmed))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		ext = ".jpg"
	}

	return fmt.Sprintf("%s-%d%s", hash, len(trimmed), ext)
}

// CachedImageURL returns a servable URL for sourceURL: the stored copy when
// cached, otherwise the source URL. It never fails; on any fetch or
// persistence problem the caller simply gets the original URL.
func (c *Cache) CachedImageURL(ctx context.Context, sourceURL string) string {
	if strings.TrimSpace(sourceURL) == "" {
		return sourceURL
	}

	entry, err := c.index.Get(ctx, sourceURL)
	if err != nil && err != ErrNotFound {
		c.logger.Warn().Err(err).Str("source_url", sourceURL).Msg("Index read failed")
	}

	if entry != nil {
		// Permanent avoidance for sources that rejected access
		if entry.Skipped {
			imageHits.Inc()
			return entry.StoredURL
		}
		if entry.StoredURL != "" && time.Since(entry.Timestamp) <= c.cfg.EntryTTL {
			imageHits.Inc()
			return entry.StoredURL
		}
	}

	// At most one concurrent fetch per URL; everyone else gets the
	// original immediately.
	c.mu.Lock()
	if _, busy := c.inflight[sourceURL]; busy {
		c.mu.Unlock()
		imageFetches.WithLabelValues("inflight").Inc()
		return sourceURL
	}
	c.inflight[sourceURL] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, sourceURL)
		c.mu.Unlock()
	}()

	return c.fetchAndStore(ctx, sourceURL)
}

func (c *Cache) fetchAndStore(ctx context.Context, sourceURL string) string {
	data, contentType, status, err := c.fetch(ctx, sourceURL)
	if err != nil {
		imageFetches.WithLabelValues("failed").Inc()
		c.logger.Debug().Err(err).Str("source_url", sourceURL).Msg("Image fetch failed")
		return sourceURL
	}

	if status == http.StatusForbidden || status == http.StatusUnauthorized {
		// Access denied: mark permanently so this source is never retried
		imageFetches.WithLabelValues("skipped").Inc()
		if err := c.index.Put(ctx, Entry{
			SourceURL: sourceURL,
			StoredURL: sourceURL,
			Skipped:   true,
			Timestamp: time.Now(),
		}); err != nil {
			c.logger.Warn().Err(err).Str("source_url", sourceURL).Msg("Index write failed")
		}
		c.logger.Info().Str("source_url", sourceURL).Int("status", status).Msg("Image source denied access, marked skipped")
		// Skipped entries count toward the index bound too
		c.maybeEvict(ctx)
		return sourceURL
	}

	if status != http.StatusOK {
		// Other failures may be transient; leave the entry unmarked
		imageFetches.WithLabelValues("failed").Inc()
		return sourceURL
	}

	storagePath := path.Join(c.cfg.PathPrefix, cacheKey(sourceURL))
	storedURL, err := c.blobs.Upload(ctx, storagePath, data, contentType)
	if err != nil {
		imageFetches.WithLabelValues("failed").Inc()
		c.logger.Warn().Err(err).Str("source_url", sourceURL).Msg("Image upload failed")
		return sourceURL
	}

	if err := c.index.Put(ctx, Entry{
		SourceURL:   sourceURL,
		StoredURL:   storedURL,
		StoragePath: storagePath,
		Timestamp:   time.Now(),
	}); err != nil {
		c.logger.Warn().Err(err).Str("source_url", sourceURL).Msg("Index write failed")
		return storedURL
	}

	imageFetches.WithLabelValues("stored").Inc()
	c.logger.Debug().
		Str("source_url", sourceURL).
		Str("stored_url", storedURL).
		Int("bytes", len(data)).
		Msg("Image cached")

	c.maybeEvict(ctx)

	return storedURL
}

// fetch downloads the image bytes with browser-like headers.
func (c *Cache) fetch(ctx context.Context, sourceURL string) (data []byte, contentType string, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	req.Header.Set("Accept", "image/avif,image/webp,image/png,image/jpeg,*/*;q=0.8")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, "", 0, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", resp.StatusCode, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, "", resp.StatusCode, fmt.Errorf("read image body: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "image/jpeg"
	}
	return body, ct, resp.StatusCode, nil
}

// maybeEvict removes the oldest entries when the index exceeds MaxEntries.
// Insertion-time LRU: access-time bookkeeping would add write amplification
// disproportionate to the benefit for this workload.
func (c *Cache) maybeEvict(ctx context.Context) {
	count, err := c.index.Count(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Index count failed")
		return
	}
	if count <= c.cfg.MaxEntries {
		return
	}

	n := int(float64(count) * c.cfg.EvictFraction)
	if n < 1 {
		n = 1
	}

	oldest, err := c.index.Oldest(ctx, n)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Index oldest query failed")
		return
	}

	urls := make([]string, 0, len(oldest))
	paths := make([]string, 0, len(oldest))
	for _, e := range oldest {
		urls = append(urls, e.SourceURL)
		if e.StoragePath != "" {
			paths = append(paths, e.StoragePath)
		}
	}

	if err := c.index.Delete(ctx, urls); err != nil {
		c.logger.Warn().Err(err).Msg("Index eviction failed")
		return
	}
	if len(paths) > 0 {
		if err := c.blobs.Remove(ctx, paths); err != nil {
			c.logger.Warn().Err(err).Msg("Blob eviction failed")
		}
	}

	imageEvictions.Add(float64(len(urls)))
	c.logger.Info().
		Int("evicted", len(urls)).
		Int("remaining", count-len(urls)).
		Msg("Image index eviction sweep complete")
}
