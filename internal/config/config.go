// Package config holds the tunable parameters of a simulation run and
// validates them before any component is constructed.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a construction parameter is out of range.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config describes one simulation run.
type Config struct {
	// ShardCount is the fixed number of shards. Must be >= 1.
	ShardCount int `yaml:"shard_count"`

	// FailureRate is the probability an operation is rejected. Must be in [0, 1].
	FailureRate float64 `yaml:"failure_rate"`

	// MaxLatency bounds the injected network delay. Must be >= 0.
	MaxLatency time.Duration `yaml:"max_latency"`

	// ShardMinLatency and ShardMaxLatency bound the per-shard processing delay.
	ShardMinLatency time.Duration `yaml:"shard_min_latency"`
	ShardMaxLatency time.Duration `yaml:"shard_max_latency"`

	// Iterations is the number of fuzz trials. Must be >= 0.
	Iterations int `yaml:"iterations"`

	// Workers is the number of concurrent fuzz workers.
	Workers int `yaml:"workers"`

	// RateLimit caps trials per second. Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit"`

	// Codec selects value encoding inside shards: "none", "gzip" or "zstd".
	Codec string `yaml:"codec"`

	// Capacity bounds keys per shard using an LRU backend. Zero means unbounded.
	Capacity int `yaml:"capacity"`

	// Seed seeds all random sources. Zero picks a time-based seed.
	Seed uint64 `yaml:"seed"`
}

// Default returns the stock fuzz configuration: 3 shards, 20% failures,
// up to 1s of injected latency and 1000 trials.
func Default() Config {
	return Config{
		ShardCount:  3,
		FailureRate: 0.2,
		MaxLatency:  time.Second,
		Iterations:  1000,
		Workers:     1,
		Codec:       "none",
	}
}

// Load reads a YAML config file on top of Default and validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal renders c as a YAML document that Load accepts.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

// Validate reports the first out-of-range parameter.
func (c Config) Validate() error {
	if err := ValidateShardCount(c.ShardCount); err != nil {
		return err
	}
	if err := ValidateFailureRate(c.FailureRate); err != nil {
		return err
	}
	if err := ValidateLatency("max_latency", c.MaxLatency); err != nil {
		return err
	}
	if err := ValidateLatencyRange(c.ShardMinLatency, c.ShardMaxLatency); err != nil {
		return err
	}
	if err := ValidateIterations(c.Iterations); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers %d < 1", ErrInvalidConfig, c.Workers)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate_limit %v < 0", ErrInvalidConfig, c.RateLimit)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("%w: capacity %d < 0", ErrInvalidConfig, c.Capacity)
	}
	switch c.Codec {
	case "", "none", "gzip", "zstd":
	default:
		return fmt.Errorf("%w: unknown codec %q", ErrInvalidConfig, c.Codec)
	}
	return nil
}

// ValidateShardCount checks shardCount >= 1.
func ValidateShardCount(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: shard count %d < 1", ErrInvalidConfig, n)
	}
	return nil
}

// ValidateFailureRate checks 0 <= rate <= 1. NaN is rejected.
func ValidateFailureRate(rate float64) error {
	if !(rate >= 0 && rate <= 1) {
		return fmt.Errorf("%w: failure rate %v outside [0, 1]", ErrInvalidConfig, rate)
	}
	return nil
}

// ValidateLatency checks d >= 0.
func ValidateLatency(name string, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: %s %v < 0", ErrInvalidConfig, name, d)
	}
	return nil
}

// ValidateLatencyRange checks 0 <= lo <= hi.
func ValidateLatencyRange(lo, hi time.Duration) error {
	if lo < 0 || hi < lo {
		return fmt.Errorf("%w: latency range [%v, %v]", ErrInvalidConfig, lo, hi)
	}
	return nil
}

// ValidateIterations checks n >= 0.
func ValidateIterations(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: iterations %d < 0", ErrInvalidConfig, n)
	}
	return nil
}
