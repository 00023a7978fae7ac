package faultkv

import (
	"time"

	"go.uber.org/zap"

	"github.com/discochess/faultkv/internal/clock"
	"github.com/discochess/faultkv/internal/codec"
	"github.com/discochess/faultkv/internal/codec/noopcodec"
	"github.com/discochess/faultkv/internal/fault"
	"github.com/discochess/faultkv/internal/shard"
	"github.com/discochess/faultkv/internal/shard/fnvshard"
	"github.com/discochess/faultkv/internal/stats"
	"github.com/discochess/faultkv/internal/store"
	"github.com/discochess/faultkv/internal/store/memstore"
)

// Option configures a Store.
type Option interface {
	apply(*options)
}

// options holds the store configuration.
type options struct {
	shardCount    int
	shardStrategy shard.Strategy
	storeFactory  store.Factory
	codec         codec.Codec
	injector      *fault.Injector
	minLatency    time.Duration
	maxLatency    time.Duration
	clock         clock.Clock
	seed          uint64
	stats         stats.Collector
	logger        *zap.Logger
}

// defaultOptions returns the default configuration: three shards routed by
// FNV-1a, unbounded memory stores, no latency and no fault injection.
func defaultOptions() options {
	return options{
		shardCount:    3,
		shardStrategy: fnvshard.New(),
		storeFactory:  memstore.Factory(),
		codec:         noopcodec.New(),
		clock:         clock.Real{},
		stats:         stats.NewNoop(),
		logger:        zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithShardCount sets the fixed number of shards. Must be >= 1.
// Default is 3.
func WithShardCount(n int) Option {
	return optionFunc(func(o *options) {
		o.shardCount = n
	})
}

// WithShardStrategy sets the routing strategy.
// If not set, FNV-1a routing is used.
func WithShardStrategy(s shard.Strategy) Option {
	return optionFunc(func(o *options) {
		o.shardStrategy = s
	})
}

// WithStoreFactory sets how each shard's mapping is built.
// If not set, every shard gets an unbounded memory store.
func WithStoreFactory(f store.Factory) Option {
	return optionFunc(func(o *options) {
		o.storeFactory = f
	})
}

// WithCodec sets the codec shards use for stored values.
func WithCodec(c codec.Codec) Option {
	return optionFunc(func(o *options) {
		o.codec = c
	})
}

// WithInjector places a fault injector in front of Get and Set.
// If not set, operations are never rejected.
func WithInjector(i *fault.Injector) Option {
	return optionFunc(func(o *options) {
		o.injector = i
	})
}

// WithShardLatency sets the per-shard processing delay range [lo, hi].
// A realistic node range is 100ms to 300ms. Default is no delay.
func WithShardLatency(lo, hi time.Duration) Option {
	return optionFunc(func(o *options) {
		o.minLatency = lo
		o.maxLatency = hi
	})
}

// WithClock sets the clock shards use for simulated delays.
func WithClock(c clock.Clock) Option {
	return optionFunc(func(o *options) {
		o.clock = c
	})
}

// WithSeed seeds the per-shard latency generators.
// Zero picks a time-based seed.
func WithSeed(seed uint64) Option {
	return optionFunc(func(o *options) {
		o.seed = seed
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}
