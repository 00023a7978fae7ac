// Package fnvshard implements FNV-1a hash-based key routing.
//
// FNV-1a is fixed and unseeded, so routes are stable across process
// restarts. Go's map hash is randomized per process and cannot be used.
package fnvshard

import (
	"github.com/discochess/faultkv/internal/shard"
)

// Strategy implements FNV-1a hash-based sharding.
type Strategy struct{}

// Ensure Strategy implements shard.Strategy.
var _ shard.Strategy = (*Strategy)(nil)

// New creates a new FNV-based sharding strategy.
func New() *Strategy {
	return &Strategy{}
}

// Name returns the strategy name.
func (s *Strategy) Name() string {
	return "fnv32"
}

// ShardID computes fnv1a32(key) mod totalShards.
func (s *Strategy) ShardID(key string, totalShards int) int {
	return int(Sum32(key) % uint32(totalShards))
}

// Sum32 computes the FNV-1a 32-bit hash of a string.
func Sum32(s string) uint32 {
	var h uint32 = 2166136261 // FNV offset basis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619 // FNV prime
	}
	return h
}
