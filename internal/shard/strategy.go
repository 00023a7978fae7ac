// Package shard defines the shard node that owns a partition of the key
// space, and the routing strategy that maps keys onto shards.
package shard

// Strategy defines a routing algorithm that maps keys to shard IDs.
type Strategy interface {
	// Name returns a human-readable name for this strategy.
	Name() string

	// ShardID computes the shard ID for key.
	// The returned value is in the range [0, totalShards).
	//
	// Implementations must be pure: the same key and shard count always
	// produce the same ID, across calls and across process runs.
	ShardID(key string, totalShards int) int
}
