package recipeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// newTestUpstream serves a token endpoint and a method-dispatch endpoint in
// the upstream platform's shape.
func newTestUpstream(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var tokenRequests atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/connect/token", func(w http.ResponseWriter, r *http.Request) {
		tokenRequests.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "test-id" || pass != "test-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/rest/server.api", handler)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &tokenRequests
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	return NewClient(Config{
		ClientID:     "test-id",
		ClientSecret: "test-secret",
		TokenURL:     server.URL + "/connect/token",
		APIURL:       server.URL + "/rest/server.api",
		Timeout:      5 * time.Second,
		Retry: RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    10 * time.Millisecond,
			MaxBackoff:        50 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	}, zerolog.Nop())
}

func TestClient_SearchSendsMethodAndToken(t *testing.T) {
	server, tokenRequests := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if got := r.PostFormValue("method"); got != "recipes.search" {
			t.Errorf("method = %q, want recipes.search", got)
		}
		if got := r.PostFormValue("search_expression"); got != "chicken adobo" {
			t.Errorf("search_expression = %q", got)
		}
		if got := r.PostFormValue("format"); got != "json" {
			t.Errorf("format = %q, want json", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"recipes":{"recipe":[{"recipe_id":"91","recipe_name":"Chicken Adobo"}]}}`))
	})

	c := newTestClient(t, server)
	payload, err := c.Search(context.Background(), "chicken adobo", 0, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	var parsed struct {
		Recipes struct {
			Recipe []struct {
				RecipeID string `json:"recipe_id"`
			} `json:"recipe"`
		} `json:"recipes"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(parsed.Recipes.Recipe) != 1 || parsed.Recipes.Recipe[0].RecipeID != "91" {
		t.Errorf("unexpected payload: %s", payload)
	}
	if got := tokenRequests.Load(); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}
}

func TestClient_TokenCachedAcrossCalls(t *testing.T) {
	server, tokenRequests := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	c := newTestClient(t, server)
	for range 3 {
		if _, err := c.Recipe(context.Background(), "91"); err != nil {
			t.Fatalf("Recipe: %v", err)
		}
	}
	if got := tokenRequests.Load(); got != 1 {
		t.Errorf("token requests = %d, want 1 (token should be cached)", got)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server, _ := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})

	c := newTestClient(t, server)
	if _, err := c.Recipe(context.Background(), "91"); err != nil {
		t.Fatalf("Recipe after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server, _ := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	c := newTestClient(t, server)
	_, err := c.Recipe(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (no retry on 4xx)", got)
	}
}

func TestClient_MissingCredentials(t *testing.T) {
	c := NewClient(Config{}, zerolog.Nop())
	_, err := c.Search(context.Background(), "anything", 0, 0)
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
}
