// Package fetch retrieves recipe pages by racing multiple network
// strategies under timeouts.
package fetch

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// browserHeaders makes direct requests look like an ordinary browser;
// several recipe sites reject obvious bot user agents.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}

// Strategy is one way to retrieve a page.
type Strategy struct {
	// Name identifies the strategy in logs and metrics.
	Name string

	// URL rewrites the target page URL into the URL this strategy
	// actually requests.
	URL func(pageURL string) string
}

// DirectStrategy requests the page URL as-is with browser-like headers.
func DirectStrategy() Strategy {
	return Strategy{
		Name: "direct",
		URL:  func(pageURL string) string { return pageURL },
	}
}

// RelayStrategy requests the page through a proxy relay. The template must
// contain exactly one %s for the encoded page URL.
func RelayStrategy(name, template string) Strategy {
	return Strategy{
		Name: name,
		URL: func(pageURL string) string {
			return fmt.Sprintf(template, url.QueryEscape(pageURL))
		},
	}
}

// DefaultStrategies returns the production strategy set: a direct fetch
// plus independent proxy relays for sources that block direct requests.
func DefaultStrategies() []Strategy {
	return []Strategy{
		DirectStrategy(),
		RelayStrategy("allorigins", "https://api.allorigins.win/raw?url=%s"),
		RelayStrategy("corsproxy", "https://corsproxy.io/?url=%s"),
		RelayStrategy("codetabs", "https://api.codetabs.com/v1/proxy?quest=%s"),
	}
}

// readBody drains a response body up to a sanity limit.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, 5<<20))
}
