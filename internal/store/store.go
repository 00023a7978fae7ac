// Package store defines the key-value mapping backend owned by one shard.
package store

import "errors"

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("store: key not found")

// Store is the mapping a shard keeps for the keys it owns.
//
// Implementations are not required to be safe for concurrent use: the
// owning shard serializes every call.
type Store interface {
	// Get returns the stored value and true, or nil and false if absent.
	// The returned slice must not be modified by the caller.
	Get(key string) ([]byte, bool)

	// Set inserts or overwrites the value for key. The store takes
	// ownership of value.
	Set(key string, value []byte)

	// Stats returns storage statistics.
	Stats() Stats

	// Close releases any resources held by the store.
	Close() error
}

// Stats contains statistics about a store.
type Stats struct {
	Keys    int   // Number of keys.
	Bytes   int   // Total size of stored values in bytes.
	Evicted int64 // Keys dropped to stay within capacity.
}

// Factory builds the store for the shard with the given ID.
type Factory func(shardID int) (Store, error)
