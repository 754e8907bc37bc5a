package offline

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	entriesBucket = []byte("entries")
	orderBucket   = []byte("order")
	indexBucket   = []byte("index")
)

// BoltStorage persists named caches in a bbolt file. Each cache is a
// top-level bucket holding three nested buckets:
//
//	entries: key -> serialized response
//	order:   sequence -> key, iterated for insertion order
//	index:   key -> sequence, so a re-put can drop its old position
type BoltStorage struct {
	db *bolt.DB
}

// OpenBoltStorage opens or creates the database at path.
func OpenBoltStorage(path string) (*BoltStorage, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open offline store: %w", err)
	}
	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) Open(name string) (Cache, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return err
		}
		for _, b := range [][]byte{entriesBucket, orderBucket, indexBucket} {
			if _, err := root.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %q: %w", name, err)
	}
	return &boltCache{db: s.db, name: []byte(name)}, nil
}

func (s *BoltStorage) Names() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, err
}

func (s *BoltStorage) Delete(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(name))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

func (s *BoltStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type boltCache struct {
	db   *bolt.DB
	name []byte
}

// buckets returns the nested buckets, or an error when the cache was deleted
// out from under this handle.
func (c *boltCache) buckets(tx *bolt.Tx) (entries, order, index *bolt.Bucket, err error) {
	root := tx.Bucket(c.name)
	if root == nil {
		return nil, nil, nil, fmt.Errorf("cache %q was deleted", c.name)
	}
	return root.Bucket(entriesBucket), root.Bucket(orderBucket), root.Bucket(indexBucket), nil
}

func (c *boltCache) Match(key string) ([]byte, error) {
	var out []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		entries, _, _, err := c.buckets(tx)
		if err != nil {
			return err
		}
		v := entries.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (c *boltCache) Put(key string, value []byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		entries, order, index, err := c.buckets(tx)
		if err != nil {
			return err
		}
		k := []byte(key)
		if old := index.Get(k); old != nil {
			if err := order.Delete(old); err != nil {
				return err
			}
		}

		seq, err := order.NextSequence()
		if err != nil {
			return err
		}
		seqKey := make([]byte, 8)
		binary.BigEndian.PutUint64(seqKey, seq)

		if err := order.Put(seqKey, k); err != nil {
			return err
		}
		if err := index.Put(k, seqKey); err != nil {
			return err
		}
		return entries.Put(k, value)
	})
}

func (c *boltCache) Delete(key string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		entries, order, index, err := c.buckets(tx)
		if err != nil {
			return err
		}
		k := []byte(key)
		if seq := index.Get(k); seq != nil {
			if err := order.Delete(seq); err != nil {
				return err
			}
		}
		if err := index.Delete(k); err != nil {
			return err
		}
		return entries.Delete(k)
	})
}

func (c *boltCache) Keys() ([]string, error) {
	var keys []string
	err := c.db.View(func(tx *bolt.Tx) error {
		_, order, _, err := c.buckets(tx)
		if err != nil {
			return err
		}
		return order.ForEach(func(_, v []byte) error {
			keys = append(keys, string(v))
			return nil
		})
	})
	return keys, err
}

var _ Storage = (*BoltStorage)(nil)
