package recipeapi

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	budgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recipe_api_budget_remaining",
		Help: "Recipe API calls remaining in the current daily budget",
	})

	budgetBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recipe_api_budget_blocks_total",
		Help: "Total number of requests blocked by the daily call budget",
	})

	budgetThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recipe_api_budget_throttles_total",
		Help: "Total number of requests throttled near the daily call budget",
	})
)

// BudgetConfig holds the daily call budget settings for the paid API.
type BudgetConfig struct {
	// DailyLimit is the number of upstream calls allowed per UTC day.
	DailyLimit int

	// CriticalRemaining blocks requests when this few calls remain.
	CriticalRemaining int

	// WarningRemaining throttles requests when this few calls remain.
	WarningRemaining int

	// ThrottleDelay is applied per request in the warning zone.
	ThrottleDelay time.Duration
}

// DefaultBudgetConfig returns the production budget settings.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		DailyLimit:        5000,
		CriticalRemaining: 50,
		WarningRemaining:  500,
		ThrottleDelay:     1 * time.Second,
	}
}

// Budget gates upstream calls against a Redis-held daily counter so that
// every service instance draws from the same allowance.
type Budget struct {
	redis  *redis.Client
	cfg    BudgetConfig
	logger zerolog.Logger
}

// NewBudget creates a daily call-budget gate.
func NewBudget(redisClient *redis.Client, cfg BudgetConfig, logger zerolog.Logger) *Budget {
	if cfg.DailyLimit <= 0 {
		cfg = DefaultBudgetConfig()
	}
	return &Budget{redis: redisClient, cfg: cfg, logger: logger}
}

// key returns the counter key for the current UTC day.
func (b *Budget) key(now time.Time) string {
	return fmt.Sprintf("recipe:budget:%s", now.UTC().Format("2006-01-02"))
}

// Allow consumes one call from today's budget. It blocks the request when
// the critical threshold is crossed and sleeps briefly in the warning zone.
// Redis failures allow the request; the budget is protection, not a ledger
// of record.
func (b *Budget) Allow(ctx context.Context) (bool, error) {
	key := b.key(time.Now())

	used, err := b.redis.Incr(ctx, key).Result()
	if err != nil {
		b.logger.Warn().Err(err).Msg("Budget counter unavailable, allowing request")
		return true, nil
	}
	if used == 1 {
		// First call of the day sets the expiry; 48h keeps the key
		// readable for a day after rollover.
		b.redis.Expire(ctx, key, 48*time.Hour)
	}

	remaining := int64(b.cfg.DailyLimit) - used
	if remaining < 0 {
		remaining = 0
	}
	budgetRemaining.Set(float64(remaining))

	if remaining <= int64(b.cfg.CriticalRemaining) {
		b.logger.Error().
			Int64("used", used).
			Int64("remaining", remaining).
			Msg("Daily call budget critical, blocking request")
		budgetBlocksTotal.Inc()
		// Hand the call back so a later request can use it.
		b.redis.Decr(ctx, key)
		return false, nil
	}

	if remaining <= int64(b.cfg.WarningRemaining) {
		b.logger.Warn().
			Int64("used", used).
			Int64("remaining", remaining).
			Msg("Daily call budget low, throttling request")
		budgetThrottlesTotal.Inc()
		select {
		case <-time.After(b.cfg.ThrottleDelay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	return true, nil
}

// Remaining reports how many calls are left in today's budget.
func (b *Budget) Remaining(ctx context.Context) (int, error) {
	used, err := b.redis.Get(ctx, b.key(time.Now())).Int()
	if err == redis.Nil {
		return b.cfg.DailyLimit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get budget counter: %w", err)
	}
	remaining := b.cfg.DailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
