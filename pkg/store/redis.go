package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// Prometheus metrics for durable store operations.
var (
	storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_store_errors_total",
		Help: "Total number of durable store operation errors",
	}, []string{"operation"})

	storeExpiredDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recipe_store_expired_deleted_total",
		Help: "Total number of expired records removed by sweeps",
	}, []string{"namespace"})
)

// RedisStore implements Store on a Redis backend. Records are stored as
// JSON under "recipe:<namespace>:<key>" with a Redis TTL mirroring
// ExpiresAt, so Redis reclaims stale rows even without sweeps.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: redisClient}
}

func redisKey(namespace, key string) string {
	return fmt.Sprintf("recipe:%s:%s", namespace, key)
}

func redisNamespacePattern(namespace string) string {
	return fmt.Sprintf("recipe:%s:*", namespace)
}

// Put writes a record with the given expiry.
func (s *RedisStore) Put(ctx context.Context, namespace, key string, payload json.RawMessage, expiresAt time.Time) error {
	now := time.Now()
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Already expired, don't persist
		return nil
	}

	rec := Record{
		Key:       key,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}

	data, err := json.Marshal(&rec)
	if err != nil {
		storeErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal record: %w", err)
	}

	if err := s.redis.Set(ctx, redisKey(namespace, key), data, ttl).Err(); err != nil {
		storeErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// GetLive retrieves the record if it is live at now.
func (s *RedisStore) GetLive(ctx context.Context, namespace, key string, now time.Time) (*Record, error) {
	data, err := s.redis.Get(ctx, redisKey(namespace, key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		storeErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		storeErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}

	// Redis TTL normally reclaims stale rows, but check again so a row
	// with a drifted expiry never counts as a hit.
	if !rec.IsLive(now) {
		_ = s.redis.Del(ctx, redisKey(namespace, key)).Err()
		return nil, ErrNotFound
	}

	return &rec, nil
}

// DeleteExpired scans the namespace and removes records expired before now.
func (s *RedisStore) DeleteExpired(ctx context.Context, namespace string, now time.Time) (int, error) {
	deleted := 0

	iter := s.redis.Scan(ctx, 0, redisNamespacePattern(namespace), 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()

		data, err := s.redis.Get(ctx, k).Bytes()
		if err != nil {
			continue
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			// Unreadable row, drop it
			if s.redis.Del(ctx, k).Err() == nil {
				deleted++
			}
			continue
		}

		if !rec.IsLive(now) {
			if s.redis.Del(ctx, k).Err() == nil {
				deleted++
			}
		}
	}
	if err := iter.Err(); err != nil {
		storeErrors.WithLabelValues("delete_expired").Inc()
		return deleted, fmt.Errorf("redis scan: %w", err)
	}

	storeExpiredDeleted.WithLabelValues(namespace).Add(float64(deleted))
	return deleted, nil
}

// IncrementAccessCount bumps the access counter while preserving the TTL.
func (s *RedisStore) IncrementAccessCount(ctx context.Context, namespace, key string) error {
	k := redisKey(namespace, key)

	data, err := s.redis.Get(ctx, k).Bytes()
	if err != nil {
		if err == redis.Nil {
			// Expired between the read and the async increment; not an error
			return nil
		}
		storeErrors.WithLabelValues("increment_access").Inc()
		return fmt.Errorf("redis get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		storeErrors.WithLabelValues("increment_access").Inc()
		return fmt.Errorf("unmarshal record: %w", err)
	}

	rec.AccessCount++
	rec.LastAccessedAt = time.Now()

	updated, err := json.Marshal(&rec)
	if err != nil {
		storeErrors.WithLabelValues("increment_access").Inc()
		return fmt.Errorf("marshal record: %w", err)
	}

	if err := s.redis.Set(ctx, k, updated, redis.KeepTTL).Err(); err != nil {
		storeErrors.WithLabelValues("increment_access").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Clear removes every record in the namespace.
func (s *RedisStore) Clear(ctx context.Context, namespace string) error {
	iter := s.redis.Scan(ctx, 0, redisNamespacePattern(namespace), 100).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			storeErrors.WithLabelValues("clear").Inc()
			return fmt.Errorf("redis del: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		storeErrors.WithLabelValues("clear").Inc()
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}
