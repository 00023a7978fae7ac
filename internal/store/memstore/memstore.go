// Package memstore provides an unbounded map-backed store.
package memstore

import (
	"github.com/discochess/faultkv/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Store is an in-memory map store.
type Store struct {
	data  map[string][]byte
	bytes int
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

// Factory returns a store.Factory producing memory stores.
func Factory() store.Factory {
	return func(int) (store.Store, error) {
		return New(), nil
	}
}

// Get returns the value for key.
func (s *Store) Get(key string) ([]byte, bool) {
	v, ok := s.data[key]
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key string, value []byte) {
	if old, ok := s.data[key]; ok {
		s.bytes -= len(old)
	}
	s.data[key] = value
	s.bytes += len(value)
}

// Stats returns the key count and total value size.
func (s *Store) Stats() store.Stats {
	return store.Stats{
		Keys:  len(s.data),
		Bytes: s.bytes,
	}
}

// Close is a no-op for the memory store.
func (s *Store) Close() error {
	return nil
}
