// Command recipe-cached serves the recipe caching layer over HTTP: cached
// search, popular, and similar lookups against the paid recipe API, the
// instruction acquisition pipeline, the image cache, and a batch warmup
// endpoint.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pantryworks/recipe-cache/pkg/batch"
	"github.com/pantryworks/recipe-cache/pkg/blob"
	"github.com/pantryworks/recipe-cache/pkg/cache"
	"github.com/pantryworks/recipe-cache/pkg/config"
	"github.com/pantryworks/recipe-cache/pkg/fetch"
	"github.com/pantryworks/recipe-cache/pkg/imagecache"
	"github.com/pantryworks/recipe-cache/pkg/logging"
	"github.com/pantryworks/recipe-cache/pkg/pipeline"
	"github.com/pantryworks/recipe-cache/pkg/recipeapi"
	"github.com/pantryworks/recipe-cache/pkg/store"
)

const sweepInterval = 1 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")

	app, err := buildApp(ctx, cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build service")
	}
	defer app.Close()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           app.routes(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go app.sweepLoop(ctx)

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("Starting recipe-cached server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Shutdown incomplete")
	}
}

// app bundles the wired subsystems behind the HTTP handlers.
type app struct {
	orch     *cache.Orchestrator
	pipeline *pipeline.Pipeline
	images   *imagecache.Cache
	imageIdx *imagecache.Index
	api      *recipeapi.Client
	batch    *batch.Populator
	logger   zerolog.Logger
}

func buildApp(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (*app, error) {
	logger := logging.NewLogger("service")

	st := store.NewRedisStore(redisClient)
	orch := cache.NewOrchestrator(st, logging.NewLogger("cache"))

	var blobs blob.Storage
	var err error
	switch cfg.BlobBackend {
	case "s3":
		blobs, err = blob.NewS3Storage(ctx, blob.S3Config{
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			Secure:        cfg.S3UseSSL,
			PublicBaseURL: cfg.S3PublicURL,
		})
	default:
		blobs, err = blob.NewFSStorage(cfg.BlobDir, cfg.BlobBaseURL)
	}
	if err != nil {
		return nil, err
	}

	imageIdx, err := imagecache.OpenIndex(cfg.ImageIndexPath)
	if err != nil {
		return nil, err
	}

	imageCfg := imagecache.DefaultConfig()
	if cfg.ImageMaxEntries > 0 {
		imageCfg.MaxEntries = cfg.ImageMaxEntries
	}
	images := imagecache.New(imageIdx, blobs, imageCfg, logging.NewLogger("imagecache"))

	racer := fetch.NewRacer(fetch.Config{Strategies: fetch.DefaultStrategies()}, logging.NewLogger("fetch"))
	pipe := pipeline.New(orch, racer, pipeline.DefaultConfig(), logging.NewLogger("pipeline"))

	budget := recipeapi.NewBudget(redisClient, recipeapi.BudgetConfig{
		DailyLimit:        cfg.APIDailyBudget,
		CriticalRemaining: 50,
		WarningRemaining:  500,
		ThrottleDelay:     1 * time.Second,
	}, logging.NewLogger("budget"))

	api := recipeapi.NewClient(recipeapi.Config{
		ClientID:     cfg.APIClientID,
		ClientSecret: cfg.APIClientSecret,
		TokenURL:     cfg.APITokenURL,
		APIURL:       cfg.APIURL,
		Budget:       budget,
	}, logging.NewLogger("recipeapi"))

	populator := batch.New(batch.DefaultConfig(), logging.NewLogger("batch"))

	return &app{
		orch:     orch,
		pipeline: pipe,
		images:   images,
		imageIdx: imageIdx,
		api:      api,
		batch:    populator,
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	if err := a.imageIdx.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Image index close failed")
	}
}

func (a *app) routes(cfg *config.Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/search", a.handleSearch)
	mux.HandleFunc("GET /v1/popular", a.handlePopular)
	mux.HandleFunc("GET /v1/similar", a.handleSimilar)
	mux.HandleFunc("GET /v1/instructions", a.handleInstructions)
	mux.HandleFunc("GET /v1/image", a.handleImage)
	mux.HandleFunc("POST /v1/warmup", a.handleWarmup)

	if cfg.BlobBackend == "fs" {
		prefix := cfg.BlobBaseURL
		if prefix == "" || prefix[0] != '/' {
			prefix = "/blobs"
		}
		mux.Handle("GET "+prefix+"/", http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.BlobDir))))
	}

	return mux
}

// sweepLoop removes expired cache records periodically.
func (a *app) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.orch.SweepExpired(ctx)
		}
	}
}

// cachedResponse is the envelope for all cached lookup endpoints.
type cachedResponse struct {
	Cached     bool            `json:"cached"`
	AgeSeconds int             `json:"age_seconds"`
	Data       json.RawMessage `json:"data"`
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := a.orch.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"cache_hits":     stats.Hits,
		"cache_misses":   stats.Misses,
		"cache_errors":   stats.Errors,
		"cache_hit_rate": stats.HitRate,
	})
}

func (a *app) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing q parameter", http.StatusBadRequest)
		return
	}

	filters := map[string]any{}
	for name, values := range r.URL.Query() {
		if name == "q" {
			continue
		}
		if len(values) == 1 {
			filters[name] = values[0]
		} else {
			filters[name] = values
		}
	}

	key := cache.Key(query, filters)
	val, err := a.orch.GetOrPopulate(r.Context(), cache.NamespaceSearch, key, cache.TTLSearch,
		func(ctx context.Context) (cache.Result, error) {
			payload, err := a.api.Search(ctx, query, 0, 20)
			if err != nil {
				return cache.Result{}, err
			}
			return cache.Result{Payload: payload}, nil
		})
	if err != nil {
		a.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cachedResponse{Cached: val.Cached, AgeSeconds: int(val.Age.Seconds()), Data: val.Payload})
}

func (a *app) handlePopular(w http.ResponseWriter, r *http.Request) {
	region := r.URL.Query().Get("region")

	key := cache.Key("popular", map[string]any{"region": region})
	val, err := a.orch.GetOrPopulate(r.Context(), cache.NamespacePopular, key, cache.TTLPopular,
		func(ctx context.Context) (cache.Result, error) {
			payload, err := a.api.Popular(ctx, region, 20)
			if err != nil {
				return cache.Result{}, err
			}
			return cache.Result{Payload: payload}, nil
		})
	if err != nil {
		a.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cachedResponse{Cached: val.Cached, AgeSeconds: int(val.Age.Seconds()), Data: val.Payload})
}

func (a *app) handleSimilar(w http.ResponseWriter, r *http.Request) {
	recipeID := r.URL.Query().Get("recipe_id")
	if recipeID == "" {
		http.Error(w, "missing recipe_id parameter", http.StatusBadRequest)
		return
	}

	key := cache.Key("similar", map[string]any{"recipe_id": recipeID})
	val, err := a.orch.GetOrPopulate(r.Context(), cache.NamespaceSimilar, key, cache.TTLSimilar,
		func(ctx context.Context) (cache.Result, error) {
			payload, err := a.api.Similar(ctx, recipeID, 10)
			if err != nil {
				return cache.Result{}, err
			}
			return cache.Result{Payload: payload}, nil
		})
	if err != nil {
		a.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cachedResponse{Cached: val.Cached, AgeSeconds: int(val.Age.Seconds()), Data: val.Payload})
}

func (a *app) handleInstructions(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}

	res := a.pipeline.Instructions(r.Context(), pageURL)
	if !res.Success {
		http.Error(w, "instruction acquisition failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *app) handleImage(w http.ResponseWriter, r *http.Request) {
	sourceURL := r.URL.Query().Get("url")
	if sourceURL == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}

	url := a.images.CachedImageURL(r.Context(), sourceURL)
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

type warmupRequest struct {
	Queries []string `json:"queries"`
}

func (a *app) handleWarmup(w http.ResponseWriter, r *http.Request) {
	var req warmupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if len(req.Queries) == 0 {
		http.Error(w, "queries must not be empty", http.StatusBadRequest)
		return
	}

	sum, err := a.batch.Populate(r.Context(), req.Queries, func(ctx context.Context, query string) error {
		key := cache.Key(query, nil)
		_, err := a.orch.GetOrPopulate(ctx, cache.NamespaceSearch, key, cache.TTLSearch,
			func(ctx context.Context) (cache.Result, error) {
				payload, err := a.api.Search(ctx, query, 0, 20)
				if err != nil {
					return cache.Result{}, err
				}
				return cache.Result{Payload: payload}, nil
			})
		return err
	})
	if err != nil {
		a.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"succeeded": sum.Succeeded,
		"failed":    sum.Failed,
	})
}

func (a *app) writeUpstreamError(w http.ResponseWriter, err error) {
	a.logger.Warn().Err(err).Msg("Upstream request failed")
	status := http.StatusBadGateway
	if errors.Is(err, recipeapi.ErrBudgetExhausted) {
		status = http.StatusTooManyRequests
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
