// Package store defines the durable key/value store contract used by the
// cache namespaces, plus Redis and in-memory implementations.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested key has no live record.
	ErrNotFound = errors.New("record not found")
)

// Record is a durable cache row. A record is live iff now < ExpiresAt.
type Record struct {
	// Key is the record key within its namespace.
	Key string `json:"key"`

	// Payload is the opaque cached value.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is when the record was written.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the record becomes stale. Always after CreatedAt.
	ExpiresAt time.Time `json:"expires_at"`

	// AccessCount is the number of cache hits served from this record.
	AccessCount int64 `json:"access_count"`

	// LastAccessedAt is when the record was last read.
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// IsLive returns true if the record has not expired at the given time.
func (r *Record) IsLive(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// Age returns how long ago the record was written.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// Store is the durable key/value contract. Namespaces behave like
// independent tables; keys only collide within one namespace.
type Store interface {
	// Put writes a record with the given expiry, replacing any previous
	// record for the key.
	Put(ctx context.Context, namespace, key string, payload json.RawMessage, expiresAt time.Time) error

	// GetLive returns the record for key if it is live at now.
	// Returns ErrNotFound for missing or expired records.
	GetLive(ctx context.Context, namespace, key string, now time.Time) (*Record, error)

	// DeleteExpired removes all records in the namespace that expired
	// before now. Returns the number of records removed.
	DeleteExpired(ctx context.Context, namespace string, now time.Time) (int, error)

	// IncrementAccessCount bumps the access counter and last-accessed
	// timestamp for a record. Best-effort; missing records are not an error.
	IncrementAccessCount(ctx context.Context, namespace, key string) error

	// Clear removes every record in the namespace.
	Clear(ctx context.Context, namespace string) error
}
