// Package offline keeps named response caches for the edge proxy and serves
// requests from them network-first or stale-while-revalidate.
package offline

import "errors"

// ErrNotFound is returned by Cache.Match when no entry exists for a key.
var ErrNotFound = errors.New("offline: entry not found")

// Storage holds named caches.
type Storage interface {
	// Open returns the named cache, creating it if needed.
	Open(name string) (Cache, error)

	// Names lists every existing cache.
	Names() ([]string, error)

	// Delete removes a cache and all of its entries.
	Delete(name string) error

	Close() error
}

// Cache is one named cache of serialized responses. Keys returns entries in
// insertion order; putting an existing key moves it to the end.
type Cache interface {
	Match(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Keys() ([]string, error)
}
