// Package recipeapi is the client for the paid upstream recipe platform.
// Calls authenticate with OAuth2 client credentials, retry transient
// failures with backoff, and draw from a shared daily call budget.
package recipeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"
)

const (
	// DefaultTokenURL is the OAuth2 token endpoint.
	DefaultTokenURL = "https://oauth.recipeplatform.example/connect/token"

	// DefaultAPIURL is the method-dispatch API endpoint.
	DefaultAPIURL = "https://platform.recipeplatform.example/rest/server.api"

	// tokenRefreshMargin refreshes the token this long before expiry.
	tokenRefreshMargin = 30 * time.Second
)

// Config holds client settings.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIURL       string
	Timeout      time.Duration
	Retry        RetryConfig

	// Budget optionally gates calls against the daily allowance.
	Budget *Budget
}

// Client talks to the upstream recipe platform.
type Client struct {
	http   *resty.Client
	cfg    Config
	logger zerolog.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewClient creates a recipe platform client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	return &Client{
		http:   resty.New().SetTimeout(cfg.Timeout),
		cfg:    cfg,
		logger: logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a valid access token, fetching a fresh one when the cached
// token is missing or within the refresh margin of expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.expiresAt.Add(-tokenRefreshMargin)) {
		return c.accessToken, nil
	}
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", ErrMissingCredentials
	}

	var tok tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
			"scope":      "basic",
		}).
		SetResult(&tok).
		Post(c.cfg.TokenURL)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	if resp.IsError() {
		return "", &APIError{
			StatusCode: resp.StatusCode(),
			ErrorClass: classifyStatus(resp.StatusCode()),
			Message:    "token request failed",
		}
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.accessToken = tok.AccessToken
	expiresIn := tok.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	c.expiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)

	c.logger.Debug().Time("expires_at", c.expiresAt).Msg("Refreshed recipe API token")
	return c.accessToken, nil
}

// call invokes one upstream API method with retry and budget gating.
func (c *Client) call(ctx context.Context, method string, params map[string]string) (json.RawMessage, error) {
	if c.cfg.Budget != nil {
		ok, err := c.cfg.Budget.Allow(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrBudgetExhausted
		}
	}

	form := map[string]string{
		"method": method,
		"format": "json",
	}
	for k, v := range params {
		form[k] = v
	}

	var payload json.RawMessage
	err := retryWithBackoff(ctx, c.cfg.Retry, func() error {
		token, err := c.token(ctx)
		if err != nil {
			if errors.Is(err, ErrMissingCredentials) {
				return &APIError{ErrorClass: ErrorClassClient, Message: "missing credentials", Err: err}
			}
			return err
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetFormData(form).
			Post(c.cfg.APIURL)
		if err != nil {
			return &APIError{ErrorClass: ErrorClassNetwork, Message: method, Err: err}
		}
		if resp.IsError() {
			if resp.StatusCode() == 401 {
				// Expired or revoked token, force a refresh on retry
				c.mu.Lock()
				c.accessToken = ""
				c.mu.Unlock()
				return &APIError{
					StatusCode: resp.StatusCode(),
					ErrorClass: ErrorClassServer,
					Message:    "token rejected",
				}
			}
			return &APIError{
				StatusCode: resp.StatusCode(),
				ErrorClass: classifyStatus(resp.StatusCode()),
				Message:    method,
			}
		}

		payload = json.RawMessage(resp.Bytes())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Search queries recipes matching the expression.
func (c *Client) Search(ctx context.Context, expression string, page, maxResults int) (json.RawMessage, error) {
	params := map[string]string{"search_expression": expression}
	if page > 0 {
		params["page_number"] = fmt.Sprint(page)
	}
	if maxResults > 0 {
		params["max_results"] = fmt.Sprint(maxResults)
	}
	return c.call(ctx, "recipes.search", params)
}

// Recipe fetches full detail for one recipe.
func (c *Client) Recipe(ctx context.Context, recipeID string) (json.RawMessage, error) {
	return c.call(ctx, "recipe.get", map[string]string{"recipe_id": recipeID})
}

// FindByBarcode resolves a product barcode to a food identifier.
func (c *Client) FindByBarcode(ctx context.Context, barcode string) (json.RawMessage, error) {
	return c.call(ctx, "food.find_id_for_barcode", map[string]string{"barcode": barcode})
}

// Popular lists trending recipes, optionally filtered by region.
func (c *Client) Popular(ctx context.Context, region string, maxResults int) (json.RawMessage, error) {
	params := map[string]string{}
	if region != "" {
		params["region"] = region
	}
	if maxResults > 0 {
		params["max_results"] = fmt.Sprint(maxResults)
	}
	return c.call(ctx, "recipes.popular", params)
}

// Similar lists recipes related to the given recipe.
func (c *Client) Similar(ctx context.Context, recipeID string, maxResults int) (json.RawMessage, error) {
	params := map[string]string{"recipe_id": recipeID}
	if maxResults > 0 {
		params["max_results"] = fmt.Sprint(maxResults)
	}
	return c.call(ctx, "recipes.similar", params)
}
