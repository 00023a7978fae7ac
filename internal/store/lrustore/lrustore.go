// Package lrustore implements a capacity-bounded store that evicts the
// least recently used key. It models a node with finite memory.
package lrustore

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/discochess/faultkv/internal/stats"
	"github.com/discochess/faultkv/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Store is an LRU-bounded store.
type Store struct {
	cache     *lru.Cache[string, []byte]
	collector stats.Collector
	bytes     int
	evicted   int64
	closing   bool // purge on Close is not eviction
}

// New creates a store holding at most capacity keys.
// The collector is optional; if nil, a no-op collector is used.
func New(capacity int, collector stats.Collector) (*Store, error) {
	if collector == nil {
		collector = stats.NewNoop()
	}
	s := &Store{collector: collector}
	c, err := lru.NewWithEvict[string, []byte](capacity, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}
	s.cache = c
	return s, nil
}

// Factory returns a store.Factory producing stores of the given capacity.
func Factory(capacity int, collector stats.Collector) store.Factory {
	return func(int) (store.Store, error) {
		return New(capacity, collector)
	}
}

// Get returns the value for key and marks it recently used.
func (s *Store) Get(key string) ([]byte, bool) {
	return s.cache.Get(key)
}

// Set stores value under key, evicting the oldest key if full.
func (s *Store) Set(key string, value []byte) {
	if old, ok := s.cache.Peek(key); ok {
		s.bytes -= len(old)
	}
	s.cache.Add(key, value)
	s.bytes += len(value)
}

// Stats returns the key count, total value size and eviction count.
func (s *Store) Stats() store.Stats {
	return store.Stats{
		Keys:    s.cache.Len(),
		Bytes:   s.bytes,
		Evicted: s.evicted,
	}
}

// Close purges the cache. Purged keys do not count as evictions.
func (s *Store) Close() error {
	s.closing = true
	s.cache.Purge()
	s.bytes = 0
	return nil
}

func (s *Store) onEvict(_ string, value []byte) {
	if s.closing {
		return
	}
	s.bytes -= len(value)
	s.evicted++
	s.collector.IncCounter(stats.MetricShardEvicted, 1)
}
