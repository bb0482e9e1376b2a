// Package memstore provides the in-process Store implementation. Entries
// live in a patrickmn/go-cache instance, which handles TTL expiry; a
// single mutex serializes the read-modify-write window of IncrementUsage
// and UpdateLatency.
package memstore

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/blueberrycongee/llmroute/pkg/store"
	"github.com/blueberrycongee/llmroute/pkg/window"
)

const cleanupInterval = 5 * time.Minute

// Store is the in-memory state store.
type Store struct {
	mu     sync.Mutex
	cache  *gocache.Cache
	clock  window.Clock
	closed bool
}

// Option configures the Store.
type Option func(*Store)

// WithClock injects a clock. Tests use a fake clock to cross window
// boundaries deterministically.
func WithClock(clock window.Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New creates an in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
		clock: window.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetUsage returns the usage record for key, or nil if absent.
func (s *Store) GetUsage(ctx context.Context, key string) (*store.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	rec, ok := s.getUsageLocked(key)
	if !ok {
		return nil, nil
	}
	cloned := rec
	return &cloned, nil
}

// SetUsage overwrites the usage record for key.
func (s *Store) SetUsage(ctx context.Context, key string, rec store.UsageRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	s.cache.Set(key, rec, ttl)
	return nil
}

// IncrementUsage adds the deltas under the mutex, resetting when the
// stored window start differs from the argument.
func (s *Store) IncrementUsage(ctx context.Context, key string, deltaRequests, deltaTokens int64, windowStart time.Time, ttl time.Duration) (*store.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	rec, ok := s.getUsageLocked(key)
	if !ok || !rec.WindowStart.Equal(windowStart) {
		rec = store.UsageRecord{WindowStart: windowStart}
	}
	rec.Requests += deltaRequests
	rec.Tokens += deltaTokens

	s.cache.Set(key, rec, ttl)
	cloned := rec
	return &cloned, nil
}

// GetCooldown returns the active cooldown for the pair, pruning expired
// entries on read.
func (s *Store) GetCooldown(ctx context.Context, provider, model string) (*store.CooldownRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	key := window.CooldownKey(provider, model)
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, nil
	}
	rec, ok := v.(store.CooldownRecord)
	if !ok {
		return nil, nil
	}
	if !s.clock.Now().Before(rec.ExpiresAt) {
		s.cache.Delete(key)
		return nil, nil
	}
	cloned := rec
	return &cloned, nil
}

// SetCooldown overwrites the cooldown for the pair.
func (s *Store) SetCooldown(ctx context.Context, rec store.CooldownRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	ttl := rec.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		s.cache.Delete(window.CooldownKey(rec.Provider, rec.Model))
		return nil
	}
	s.cache.Set(window.CooldownKey(rec.Provider, rec.Model), rec, ttl)
	return nil
}

// RemoveCooldown deletes the cooldown for the pair.
func (s *Store) RemoveCooldown(ctx context.Context, provider, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	s.cache.Delete(window.CooldownKey(provider, model))
	return nil
}

// GetLatency returns the latency record for the pair, or nil if none.
func (s *Store) GetLatency(ctx context.Context, provider, model string) (*store.LatencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	v, ok := s.cache.Get(window.LatencyKey(provider, model))
	if !ok {
		return nil, nil
	}
	rec, ok := v.(store.LatencyRecord)
	if !ok {
		return nil, nil
	}
	cloned := rec
	return &cloned, nil
}

// UpdateLatency folds a sample into the EMA under the mutex.
func (s *Store) UpdateLatency(ctx context.Context, provider, model string, sampleMS float64) (*store.LatencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	key := window.LatencyKey(provider, model)
	var prev *store.LatencyRecord
	if v, ok := s.cache.Get(key); ok {
		if rec, ok := v.(store.LatencyRecord); ok {
			prev = &rec
		}
	}

	next := store.FoldLatency(prev, sampleMS, s.clock.Now())
	s.cache.Set(key, next, gocache.NoExpiration)
	return &next, nil
}

// Clear removes all state.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	s.cache.Flush()
	return nil
}

// Close marks the store closed. Safe to call multiple times.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cache.Flush()
	return nil
}

// getUsageLocked reads and type-asserts a usage record. go-cache expires
// entries lazily, so a TTL that elapsed since the last write is already
// handled; window-start mismatches are the caller's concern.
func (s *Store) getUsageLocked(key string) (store.UsageRecord, bool) {
	v, ok := s.cache.Get(key)
	if !ok {
		return store.UsageRecord{}, false
	}
	rec, ok := v.(store.UsageRecord)
	return rec, ok
}
