//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pantryworks/recipe-cache/internal/testutil"
	"github.com/pantryworks/recipe-cache/pkg/cache"
	"github.com/pantryworks/recipe-cache/pkg/extract"
	"github.com/pantryworks/recipe-cache/pkg/fetch"
	"github.com/pantryworks/recipe-cache/pkg/pipeline"
	"github.com/pantryworks/recipe-cache/pkg/recipeapi"
	"github.com/pantryworks/recipe-cache/pkg/store"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	t.Cleanup(func() {
		client.Close()
		redisContainer.Terminate(context.Background())
	})

	return client
}

func newIntegrationPipeline(redisClient *redis.Client) (*pipeline.Pipeline, store.Store) {
	st := store.NewRedisStore(redisClient)
	orch := cache.NewOrchestrator(st, zerolog.Nop())
	racer := fetch.NewRacer(fetch.Config{
		Strategies:      []fetch.Strategy{fetch.DirectStrategy()},
		StrategyTimeout: 3 * time.Second,
	}, zerolog.Nop())
	return pipeline.New(orch, racer, pipeline.Config{Timeout: 8 * time.Second}, zerolog.Nop()), st
}

func TestIntegration_OrchestratorFlow(t *testing.T) {
	redisClient := setupRedisContainer(t)
	st := store.NewRedisStore(redisClient)
	orch := cache.NewOrchestrator(st, zerolog.Nop())

	ctx := context.Background()
	populates := 0
	populate := func(ctx context.Context) (cache.Result, error) {
		populates++
		return cache.Result{Payload: json.RawMessage(`{"recipes":[1,2,3]}`)}, nil
	}

	key := cache.Key("chicken adobo", map[string]any{"course": "dinner"})

	val, err := orch.GetOrPopulate(ctx, cache.NamespaceSearch, key, cache.TTLSearch, populate)
	if err != nil {
		t.Fatalf("first GetOrPopulate: %v", err)
	}
	if val.Cached {
		t.Error("first call should populate")
	}

	val, err = orch.GetOrPopulate(ctx, cache.NamespaceSearch, key, cache.TTLSearch, populate)
	if err != nil {
		t.Fatalf("second GetOrPopulate: %v", err)
	}
	if !val.Cached {
		t.Error("second call should hit the cache")
	}
	if populates != 1 {
		t.Errorf("populates = %d, want 1", populates)
	}

	// Redis carries the record across an orchestrator restart.
	orch2 := cache.NewOrchestrator(store.NewRedisStore(redisClient), zerolog.Nop())
	val, err = orch2.GetOrPopulate(ctx, cache.NamespaceSearch, key, cache.TTLSearch, populate)
	if err != nil {
		t.Fatalf("GetOrPopulate after restart: %v", err)
	}
	if !val.Cached {
		t.Error("record should survive orchestrator restart")
	}
}

func TestIntegration_PipelineCachesExtraction(t *testing.T) {
	redisClient := setupRedisContainer(t)
	p, _ := newIntegrationPipeline(redisClient)

	site := testutil.NewMockSite()
	t.Cleanup(site.Close)

	steps := []string{
		"Combine the chicken, soy sauce, and garlic in a bowl.",
		"Marinate the chicken for at least thirty minutes.",
		"Heat oil in a pot over medium heat until shimmering.",
		"Brown the chicken pieces on all sides in batches.",
		"Pour in the vinegar and simmer uncovered for ten minutes.",
		"Reduce the sauce until thickened and serve over rice.",
	}
	site.SetPage("/chicken-adobo", testutil.NewRecipePage("Chicken Adobo", steps))

	ctx := context.Background()
	pageURL := site.PageURL("/chicken-adobo")

	res := p.Instructions(ctx, pageURL)
	if !res.Success {
		t.Fatal("expected success")
	}
	if res.Instructions.Source != extract.SourceStructuredMetadata {
		t.Fatalf("source = %q", res.Instructions.Source)
	}
	if len(res.Instructions.Steps) != len(steps) {
		t.Fatalf("steps = %d, want %d", len(res.Instructions.Steps), len(steps))
	}

	requestsAfterFirst := site.RequestCount()

	res2 := p.Instructions(ctx, pageURL)
	if !res2.Cached {
		t.Error("second request should be served from cache")
	}
	if site.RequestCount() != requestsAfterFirst {
		t.Error("cached request must not hit the site again")
	}
}

func TestIntegration_BlockedSiteFallbackNotPersisted(t *testing.T) {
	redisClient := setupRedisContainer(t)
	p, st := newIntegrationPipeline(redisClient)

	site := testutil.NewMockSite()
	t.Cleanup(site.Close)
	site.SetPage("/blocked", testutil.NewBlockedPage())

	ctx := context.Background()
	pageURL := site.PageURL("/blocked")

	res := p.Instructions(ctx, pageURL)
	if !res.Success {
		t.Fatal("fallback should still succeed")
	}
	if res.Instructions.Source != extract.SourceFallback {
		t.Fatalf("source = %q, want fallback", res.Instructions.Source)
	}

	key := pipeline.PageKey(pageURL)
	if _, err := st.GetLive(ctx, cache.NamespaceInstructions.String(), key, time.Now()); err != store.ErrNotFound {
		t.Errorf("fallback persisted: err = %v, want ErrNotFound", err)
	}
}

func TestIntegration_BudgetSharedAcrossClients(t *testing.T) {
	redisClient := setupRedisContainer(t)

	cfg := recipeapi.BudgetConfig{
		DailyLimit:        10,
		CriticalRemaining: 2,
		WarningRemaining:  3,
		ThrottleDelay:     time.Millisecond,
	}
	b1 := recipeapi.NewBudget(redisClient, cfg, zerolog.Nop())
	b2 := recipeapi.NewBudget(redisClient, cfg, zerolog.Nop())

	ctx := context.Background()
	allowed := 0
	for i := 0; i < 5; i++ {
		if ok, err := b1.Allow(ctx); err != nil {
			t.Fatalf("b1 Allow: %v", err)
		} else if ok {
			allowed++
		}
		if ok, err := b2.Allow(ctx); err != nil {
			t.Fatalf("b2 Allow: %v", err)
		} else if ok {
			allowed++
		}
	}

	// Both instances draw from one counter, so only 7 calls fit.
	if allowed != 7 {
		t.Errorf("allowed = %d, want 7", allowed)
	}
}
