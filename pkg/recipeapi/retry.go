package recipeapi

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	apiRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_api_retries_total",
		Help: "Total number of recipe API retry attempts by error class",
	}, []string{"error_class"})

	apiRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_api_retry_exhausted_total",
		Help: "Total number of times recipe API retries were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the retry logic settings.
type RetryConfig struct {
	// MaxAttempts includes the initial request.
	MaxAttempts int

	// InitialBackoff is the first backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration

	// BackoffMultiplier is the exponential factor.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        15 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// retryWithBackoff executes fn with exponential backoff and jitter. Client
// errors return immediately; context cancellation aborts the backoff wait.
func retryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("Recipe API request succeeded after retry")
			}
			return nil
		}
		lastErr = err

		class := ErrorClassNetwork
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			class = apiErr.ErrorClass
		}
		if !shouldRetry(class) {
			return lastErr
		}
		if attempt >= config.MaxAttempts {
			apiRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
			break
		}

		apiRetriesTotal.WithLabelValues(string(class)).Inc()

		// ±20% jitter keeps parallel populators from herding
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))

		log.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying recipe API request after backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, config.MaxAttempts, lastErr)
}
