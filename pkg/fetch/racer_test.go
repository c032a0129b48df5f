package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func pageBody(marker string) string {
	return "<html><body>" + marker + strings.Repeat(" filler", 100) + "</body></html>"
}

func TestRacer_FastStrategyWins(t *testing.T) {
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pageBody("fast")))
	}))
	defer fast.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(pageBody("slow")))
	}))
	defer slow.Close()

	racer := NewRacer(Config{
		Strategies: []Strategy{
			{Name: "slow", URL: func(string) string { return slow.URL }},
			{Name: "fast", URL: func(string) string { return fast.URL }},
		},
		StrategyTimeout:  2 * time.Second,
		MinContentLength: 200,
		HTTPClient:       &http.Client{Timeout: 5 * time.Second},
	}, zerolog.Nop())

	content, winner, err := racer.Fetch(context.Background(), "https://example.com/recipe")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if winner != "fast" {
		t.Errorf("winner = %q, want fast", winner)
	}
	if !strings.Contains(string(content), "fast") {
		t.Error("content should come from the winning strategy")
	}
}

func TestRacer_ShortContentLoses(t *testing.T) {
	short := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tiny"))
	}))
	defer short.Close()

	full := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(pageBody("full")))
	}))
	defer full.Close()

	racer := NewRacer(Config{
		Strategies: []Strategy{
			{Name: "short", URL: func(string) string { return short.URL }},
			{Name: "full", URL: func(string) string { return full.URL }},
		},
		StrategyTimeout:  2 * time.Second,
		MinContentLength: 200,
		HTTPClient:       &http.Client{Timeout: 5 * time.Second},
	}, zerolog.Nop())

	_, winner, err := racer.Fetch(context.Background(), "https://example.com/recipe")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if winner != "full" {
		t.Errorf("winner = %q, want full (short content must not win)", winner)
	}
}

func TestRacer_AllStrategiesFailed(t *testing.T) {
	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer denied.Close()

	racer := NewRacer(Config{
		Strategies: []Strategy{
			{Name: "a", URL: func(string) string { return denied.URL }},
			{Name: "b", URL: func(string) string { return denied.URL }},
		},
		StrategyTimeout:  time.Second,
		MinContentLength: 200,
		HTTPClient:       &http.Client{Timeout: 5 * time.Second},
	}, zerolog.Nop())

	_, _, err := racer.Fetch(context.Background(), "https://example.com/recipe")
	if !errors.Is(err, ErrAllStrategiesFailed) {
		t.Errorf("Fetch error = %v, want ErrAllStrategiesFailed", err)
	}
}

func TestRacer_ContextDeadline(t *testing.T) {
	var started atomic.Int32
	hang := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started.Add(1)
		<-r.Context().Done()
	}))
	defer hang.Close()

	racer := NewRacer(Config{
		Strategies: []Strategy{
			{Name: "hang", URL: func(string) string { return hang.URL }},
		},
		StrategyTimeout:  10 * time.Second,
		MinContentLength: 200,
		HTTPClient:       &http.Client{},
	}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := racer.Fetch(ctx, "https://example.com/recipe")
	if err == nil {
		t.Fatal("Fetch should fail on context deadline")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Fetch took %v, should respect the deadline", elapsed)
	}
	if started.Load() != 1 {
		t.Errorf("server saw %d requests, want 1", started.Load())
	}
}

func TestRelayStrategy_EncodesTarget(t *testing.T) {
	strat := RelayStrategy("relay", "https://relay.example/raw?url=%s")
	got := strat.URL("https://example.com/recipe?id=1&x=2")
	want := "https://relay.example/raw?url=https%3A%2F%2Fexample.com%2Frecipe%3Fid%3D1%26x%3D2"
	if got != want {
		t.Errorf("relay URL = %q, want %q", got, want)
	}
}

func TestDefaultStrategies(t *testing.T) {
	strategies := DefaultStrategies()
	if len(strategies) < 3 {
		t.Fatalf("DefaultStrategies returned %d strategies, want at least 3", len(strategies))
	}
	if strategies[0].Name != "direct" {
		t.Errorf("first strategy = %q, want direct", strategies[0].Name)
	}
}
