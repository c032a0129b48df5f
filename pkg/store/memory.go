package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. It is intended for tests
// and for running the service without a Redis backend.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		namespaces: make(map[string]map[string]*Record),
	}
}

// table lazily creates the namespace map. Callers must hold the write lock;
// read paths use a plain lookup instead.
func (s *MemoryStore) table(namespace string) map[string]*Record {
	tbl, ok := s.namespaces[namespace]
	if !ok {
		tbl = make(map[string]*Record)
		s.namespaces[namespace] = tbl
	}
	return tbl
}

// Put writes a record with the given expiry.
func (s *MemoryStore) Put(ctx context.Context, namespace, key string, payload json.RawMessage, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy the payload so callers can reuse their buffer
	buf := make(json.RawMessage, len(payload))
	copy(buf, payload)

	s.table(namespace)[key] = &Record{
		Key:       key,
		Payload:   buf,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	return nil
}

// GetLive retrieves the record if it is live at now.
func (s *MemoryStore) GetLive(ctx context.Context, namespace, key string, now time.Time) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tbl, ok := s.namespaces[namespace]
	if !ok {
		return nil, ErrNotFound
	}
	rec, ok := tbl[key]
	if !ok || !rec.IsLive(now) {
		return nil, ErrNotFound
	}

	// Copy under the lock; access tracking mutates records in place
	cp := *rec
	return &cp, nil
}

// DeleteExpired removes records expired before now.
func (s *MemoryStore) DeleteExpired(ctx context.Context, namespace string, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, rec := range s.table(namespace) {
		if !rec.IsLive(now) {
			delete(s.namespaces[namespace], key)
			deleted++
		}
	}
	return deleted, nil
}

// IncrementAccessCount bumps the access counter for a record.
func (s *MemoryStore) IncrementAccessCount(ctx context.Context, namespace, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.table(namespace)[key]; ok {
		rec.AccessCount++
		rec.LastAccessedAt = time.Now()
	}
	return nil
}

// Clear removes every record in the namespace.
func (s *MemoryStore) Clear(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.namespaces, namespace)
	return nil
}
