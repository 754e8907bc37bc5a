package cache

import (
	"context"
	"log"
	"sync"
	"time"

	"portal-rest-api/internal/failure"
	"portal-rest-api/internal/metrics"
)

// Entry is the last successful fetch for one key. Entries are replaced
// wholesale and never modified after creation.
type Entry[V any] struct {
	Value     V
	FetchedAt time.Time
}

// Fetch loads the current value for a key from the backend.
type Fetch[V any] func(ctx context.Context) (V, error)

// SlotConfig configures a Slot.
type SlotConfig[V any] struct {
	// Name labels logs and metrics.
	Name string

	// TTL is how long an entry stays fresh.
	TTL time.Duration

	// IsEmpty reports whether a fetched value should be treated as an empty
	// result. Empty results never replace a cached value.
	// Default: never empty.
	IsEmpty func(V) bool

	// Now overrides the clock. Used by tests.
	Now func() time.Time
}

// Slot is a read-through cache for one entity kind. Keys identify items for
// per-item kinds; list kinds use a single key.
//
// Concurrent misses for the same key may fetch twice; whichever fetch
// completes last owns the entry.
type Slot[V any] struct {
	name    string
	ttl     time.Duration
	isEmpty func(V) bool
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]*Entry[V]
}

// NewSlot creates an empty slot.
func NewSlot[V any](cfg SlotConfig[V]) *Slot[V] {
	if cfg.IsEmpty == nil {
		cfg.IsEmpty = func(V) bool { return false }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Slot[V]{
		name:    cfg.Name,
		ttl:     cfg.TTL,
		isEmpty: cfg.IsEmpty,
		now:     cfg.Now,
		entries: make(map[string]*Entry[V]),
	}
}

// Name returns the slot name.
func (s *Slot[V]) Name() string {
	return s.name
}

// TTL returns the freshness window.
func (s *Slot[V]) TTL() time.Duration {
	return s.ttl
}

// Get returns the cached value for key while it is fresh. Otherwise it calls
// fetch and caches a non-empty result.
//
// When fetch fails or comes back empty and an older entry exists, the older
// value is returned without error. With no older entry, a not-found failure
// yields the zero value and nil error; any other failure is returned
// classified.
func (s *Slot[V]) Get(ctx context.Context, key string, fetch Fetch[V]) (V, error) {
	prev := s.lookup(key)
	if prev != nil && s.fresh(prev) {
		metrics.CacheLookups.WithLabelValues(s.name, "hit").Inc()
		return prev.Value, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		if prev != nil {
			log.Printf("[Cache:%s] Refresh of %q failed, serving stale entry: %v", s.name, key, err)
			metrics.CacheLookups.WithLabelValues(s.name, "stale").Inc()
			return prev.Value, nil
		}
		metrics.CacheLookups.WithLabelValues(s.name, "miss").Inc()
		var zero V
		classified := failure.Classify(err)
		if classified.Category == failure.CategoryNotFound {
			return zero, nil
		}
		return zero, classified
	}

	if s.isEmpty(value) {
		metrics.CacheLookups.WithLabelValues(s.name, "empty").Inc()
		if prev != nil {
			return prev.Value, nil
		}
		return value, nil
	}

	metrics.CacheLookups.WithLabelValues(s.name, "miss").Inc()
	s.store(key, &Entry[V]{Value: value, FetchedAt: s.now()})
	return value, nil
}

// Peek returns the entry for key regardless of freshness.
func (s *Slot[V]) Peek(key string) (*Entry[V], bool) {
	entry := s.lookup(key)
	return entry, entry != nil
}

// Invalidate removes the entry for key.
func (s *Slot[V]) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
}

// InvalidateAll removes every entry in the slot.
func (s *Slot[V]) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*Entry[V])
}

// Len returns the number of entries, fresh or stale.
func (s *Slot[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

func (s *Slot[V]) lookup(key string) *Entry[V] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.entries[key]
}

func (s *Slot[V]) store(key string, entry *Entry[V]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry
}

func (s *Slot[V]) fresh(entry *Entry[V]) bool {
	return s.now().Sub(entry.FetchedAt) < s.ttl
}
