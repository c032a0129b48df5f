package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pantryworks/recipe-cache/pkg/batch"
	"github.com/pantryworks/recipe-cache/pkg/blob"
	"github.com/pantryworks/recipe-cache/pkg/cache"
	"github.com/pantryworks/recipe-cache/pkg/config"
	"github.com/pantryworks/recipe-cache/pkg/fetch"
	"github.com/pantryworks/recipe-cache/pkg/imagecache"
	"github.com/pantryworks/recipe-cache/pkg/pipeline"
	"github.com/pantryworks/recipe-cache/pkg/recipeapi"
	"github.com/pantryworks/recipe-cache/pkg/store"
)

// newTestApp wires the service against in-memory and temp-dir backends plus
// a mock upstream recipe API.
func newTestApp(t *testing.T) (*app, *atomicUpstream) {
	t.Helper()

	upstream := newAtomicUpstream(t)

	st := store.NewMemoryStore()
	orch := cache.NewOrchestrator(st, zerolog.Nop())

	dir := t.TempDir()
	blobs, err := blob.NewFSStorage(filepath.Join(dir, "blobs"), "/blobs")
	if err != nil {
		t.Fatalf("NewFSStorage: %v", err)
	}
	idx, err := imagecache.OpenIndex(filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	racer := fetch.NewRacer(fetch.Config{
		Strategies:      []fetch.Strategy{fetch.DirectStrategy()},
		StrategyTimeout: 2 * time.Second,
	}, zerolog.Nop())

	api := recipeapi.NewClient(recipeapi.Config{
		ClientID:     "test-id",
		ClientSecret: "test-secret",
		TokenURL:     upstream.server.URL + "/connect/token",
		APIURL:       upstream.server.URL + "/rest/server.api",
	}, zerolog.Nop())

	return &app{
		orch:     orch,
		pipeline: pipeline.New(orch, racer, pipeline.Config{Timeout: 5 * time.Second}, zerolog.Nop()),
		images:   imagecache.New(idx, blobs, imagecache.DefaultConfig(), zerolog.Nop()),
		imageIdx: idx,
		api:      api,
		batch:    batch.New(batch.Config{GroupSize: 3}, zerolog.Nop()),
		logger:   zerolog.Nop(),
	}, upstream
}

// atomicUpstream is a minimal token + method-dispatch upstream.
type atomicUpstream struct {
	server *httptest.Server
	calls  atomic.Int32
}

func newAtomicUpstream(t *testing.T) *atomicUpstream {
	t.Helper()
	u := &atomicUpstream{}

	mux := http.NewServeMux()
	mux.HandleFunc("/connect/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "t", "expires_in": 3600})
	})
	mux.HandleFunc("/rest/server.api", func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"recipes":{"recipe":[{"recipe_id":"1","recipe_name":"Test"}]}}`))
	})

	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)
	return u
}

func testRoutes(t *testing.T, a *app) http.Handler {
	t.Helper()
	return a.routes(&config.Config{BlobBackend: "fs", BlobBaseURL: "/blobs", BlobDir: t.TempDir()})
}

func TestHealthHandler(t *testing.T) {
	a, _ := newTestApp(t)
	handler := testRoutes(t, a)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
}

func TestSearchHandler_CachesSecondRequest(t *testing.T) {
	a, upstream := newTestApp(t)
	handler := testRoutes(t, a)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest("GET", "/v1/search?q=adobo", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d: %s", first.Code, first.Body.String())
	}

	var resp cachedResponse
	if err := json.Unmarshal(first.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Cached {
		t.Error("first request should be a miss")
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest("GET", "/v1/search?q=adobo", nil))
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Cached {
		t.Error("second request should be a hit")
	}
	if upstream.calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", upstream.calls.Load())
	}
}

func TestSearchHandler_FilterChangesCacheKey(t *testing.T) {
	a, upstream := newTestApp(t)
	handler := testRoutes(t, a)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/search?q=adobo", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/search?q=adobo&course=dinner", nil))

	if upstream.calls.Load() != 2 {
		t.Errorf("upstream calls = %d, want 2 (different filters, different keys)", upstream.calls.Load())
	}
}

func TestSearchHandler_MissingQuery(t *testing.T) {
	a, _ := newTestApp(t)
	handler := testRoutes(t, a)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/search", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestImageHandler_MissingURL(t *testing.T) {
	a, _ := newTestApp(t)
	handler := testRoutes(t, a)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/image", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWarmupHandler(t *testing.T) {
	a, upstream := newTestApp(t)
	handler := testRoutes(t, a)

	body := strings.NewReader(`{"queries":["adobo","sinigang","pancit"]}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/warmup", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var sum map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sum["succeeded"] != 3 {
		t.Errorf("succeeded = %d, want 3", sum["succeeded"])
	}
	if upstream.calls.Load() != 3 {
		t.Errorf("upstream calls = %d, want 3", upstream.calls.Load())
	}
}

func TestWarmupHandler_RejectsEmptyBody(t *testing.T) {
	a, _ := newTestApp(t)
	handler := testRoutes(t, a)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/warmup", strings.NewReader(`{"queries":[]}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
