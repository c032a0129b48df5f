// Package testutil provides testing utilities for the recipe cache.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockPage defines the behavior of one mock recipe-site page.
type MockPage struct {
	StatusCode  int
	Body        string
	ContentType string
	Delay       time.Duration
}

// MockSite is a configurable mock recipe website for testing fetch and
// extraction paths.
type MockSite struct {
	server *httptest.Server
	mu     sync.RWMutex
	pages  map[string]MockPage

	// Tracking
	requestCount      int
	lastRequestHeader http.Header
}

// NewMockSite creates a mock recipe site. Unknown paths return 404.
func NewMockSite() *MockSite {
	mock := &MockSite{
		pages: make(map[string]MockPage),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.lastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		page, exists := mock.pages[r.URL.Path]
		mock.mu.RUnlock()

		if !exists {
			http.NotFound(w, r)
			return
		}

		if page.Delay > 0 {
			time.Sleep(page.Delay)
		}

		contentType := page.ContentType
		if contentType == "" {
			contentType = "text/html; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		status := page.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if page.Body != "" {
			w.Write([]byte(page.Body))
		}
	}))

	return mock
}

// URL returns the mock site base URL.
func (m *MockSite) URL() string {
	return m.server.URL
}

// PageURL returns the absolute URL for a path on the mock site.
func (m *MockSite) PageURL(path string) string {
	return m.server.URL + path
}

// Close shuts down the mock site.
func (m *MockSite) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSite) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.lastRequestHeader = nil
}

// SetPage configures the response for a path.
func (m *MockSite) SetPage(path string, page MockPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[path] = page
}

// RequestCount returns the number of requests the site has served.
func (m *MockSite) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockSite) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// NewRecipePage builds an HTML page carrying the steps as structured
// metadata, padded past typical minimum-content thresholds.
func NewRecipePage(title string, steps []string) MockPage {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html><html><head><script type="application/ld+json">`)
	sb.WriteString(`{"@type":"Recipe","name":"` + title + `","recipeInstructions":[`)
	for i, step := range steps {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf(`{"@type":"HowToStep","text":%q}`, step))
	}
	sb.WriteString(`]}</script></head><body><h1>`)
	sb.WriteString(title)
	sb.WriteString(`</h1><p>Recipe page</p>`)
	sb.WriteString(strings.Repeat("<!-- padding -->", 40))
	sb.WriteString(`</body></html>`)

	return MockPage{StatusCode: http.StatusOK, Body: sb.String()}
}

// NewBlockedPage builds a 403 bot-block response.
func NewBlockedPage() MockPage {
	return MockPage{
		StatusCode: http.StatusForbidden,
		Body:       `<html><body>Access denied</body></html>`,
	}
}

// NewImagePage builds a fake JPEG response for image cache tests.
func NewImagePage(size int) MockPage {
	return MockPage{
		StatusCode:  http.StatusOK,
		ContentType: "image/jpeg",
		Body:        strings.Repeat("x", size),
	}
}
