package offline

import (
	"sort"
	"sync"
)

// MemoryStorage is a process-local Storage.
type MemoryStorage struct {
	mu     sync.Mutex
	caches map[string]*memoryCache
}

// NewMemoryStorage creates an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{caches: make(map[string]*memoryCache)}
}

func (s *MemoryStorage) Open(name string) (Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[name]
	if !ok {
		c = &memoryCache{entries: make(map[string][]byte)}
		s.caches[name] = c
	}
	return c, nil
}

func (s *MemoryStorage) Names() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.caches))
	for name := range s.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStorage) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.caches, name)
	return nil
}

func (s *MemoryStorage) Close() error { return nil }

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	order   []string
}

func (c *memoryCache) Match(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (c *memoryCache) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.removeKey(key)
	}
	c.entries[key] = append([]byte(nil), value...)
	c.order = append(c.order, key)
	return nil
}

func (c *memoryCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return nil
	}
	delete(c.entries, key)
	c.removeKey(key)
	return nil
}

func (c *memoryCache) Keys() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...), nil
}

func (c *memoryCache) removeKey(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

var _ Storage = (*MemoryStorage)(nil)
