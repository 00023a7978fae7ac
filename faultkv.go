// Package faultkv is an in-process sharded key-value store used to
// exercise correctness and performance under injected network faults.
//
// Example usage:
//
//	inj, err := fault.New(fault.Policy{FailureRate: 0.2, MaxLatency: time.Second})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	st, err := faultkv.New(faultkv.WithShardCount(3), faultkv.WithInjector(inj))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//
//	if err := st.Set(ctx, "key1", []byte("value1")); errors.Is(err, faultkv.ErrNetworkFault) {
//	    // expected under fault injection
//	}
package faultkv

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/faultkv/internal/config"
	"github.com/discochess/faultkv/internal/fault"
	"github.com/discochess/faultkv/internal/randsrc"
	"github.com/discochess/faultkv/internal/shard"
	"github.com/discochess/faultkv/internal/stats"
	"github.com/discochess/faultkv/internal/store"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrNotFound indicates the key has never been set.
	ErrNotFound = store.ErrNotFound

	// ErrNetworkFault indicates the fault injector rejected the operation.
	// No shard state was changed.
	ErrNetworkFault = fault.ErrNetworkFault

	// ErrInvalidConfig indicates an out-of-range construction parameter.
	ErrInvalidConfig = config.ErrInvalidConfig

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("faultkv: store closed")
)

// Store routes each key to exactly one shard and forwards Get and Set.
// The shard count is fixed at construction. A Store is safe for
// concurrent use by multiple goroutines.
type Store struct {
	shards   []*shard.Shard
	strategy shard.Strategy
	injector *fault.Injector
	stats    stats.Collector
	logger   *zap.Logger
	closed   atomic.Bool
}

// New creates a Store with the given options.
// It returns an error wrapping ErrInvalidConfig for out-of-range parameters.
func New(opts ...Option) (*Store, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if err := config.ValidateShardCount(cfg.shardCount); err != nil {
		return nil, err
	}
	if err := config.ValidateLatencyRange(cfg.minLatency, cfg.maxLatency); err != nil {
		return nil, err
	}

	seed := cfg.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	s := &Store{
		shards:   make([]*shard.Shard, cfg.shardCount),
		strategy: cfg.shardStrategy,
		injector: cfg.injector,
		stats:    cfg.stats,
		logger:   cfg.logger,
	}

	for i := range s.shards {
		st, err := cfg.storeFactory(i)
		if err != nil {
			return nil, fmt.Errorf("creating store for shard %d: %w", i, err)
		}
		s.shards[i] = shard.New(i, st,
			shard.WithCodec(cfg.codec),
			shard.WithLatency(cfg.minLatency, cfg.maxLatency),
			shard.WithClock(cfg.clock),
			shard.WithRand(randsrc.New(randsrc.Derive(seed, i))),
			shard.WithStats(cfg.stats),
			shard.WithLogger(cfg.logger.With(zap.Int("shard", i))),
		)
	}

	s.logger.Debug("store initialized",
		zap.Int("shardCount", len(s.shards)),
		zap.String("shardStrategy", s.strategy.Name()),
		zap.String("codec", cfg.codec.Name()),
		zap.Bool("faultInjection", s.injector != nil),
	)

	return s, nil
}

// Route returns the index of the shard that owns key.
// It is a pure function of the key and the shard count.
func (s *Store) Route(key string) int {
	return s.strategy.ShardID(key, len(s.shards))
}

// Set stores value under key on its owning shard.
// It returns an error wrapping ErrNetworkFault if the injector rejected the
// operation; in that case nothing was written.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.admit(ctx); err != nil {
		return fmt.Errorf("set: %w", err)
	}

	s.stats.IncCounter(stats.MetricStoreSets, 1)
	id := s.Route(key)
	if err := s.shards[id].Set(ctx, key, value); err != nil {
		return fmt.Errorf("set on shard %d: %w", id, err)
	}
	return nil
}

// Get returns the value stored for key.
// It returns ErrNotFound if the key is absent, and an error wrapping
// ErrNetworkFault if the injector rejected the operation.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := s.admit(ctx); err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}

	s.stats.IncCounter(stats.MetricStoreGets, 1)
	id := s.Route(key)
	value, ok, err := s.shards[id].Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get on shard %d: %w", id, err)
	}
	if !ok {
		s.stats.IncCounter(stats.MetricStoreMisses, 1)
		return nil, ErrNotFound
	}
	return value, nil
}

// ShardCount returns the fixed number of shards.
func (s *Store) ShardCount() int {
	return len(s.shards)
}

// Shard returns the shard at index id.
func (s *Store) Shard(id int) *shard.Shard {
	return s.shards[id]
}

// ShardStrategy returns the routing strategy used by this store.
func (s *Store) ShardStrategy() shard.Strategy {
	return s.strategy
}

// Injector returns the configured fault injector, or nil.
func (s *Store) Injector() *fault.Injector {
	return s.injector
}

// Stats returns a snapshot of every shard's counters.
func (s *Store) Stats() []shard.Info {
	infos := make([]shard.Info, len(s.shards))
	for i, sh := range s.shards {
		infos[i] = sh.Info()
	}
	return infos
}

// Close releases all shard stores.
// After Close, operations return ErrClosed.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	var errs []error
	for _, sh := range s.shards {
		if err := sh.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing shard %d: %w", sh.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *Store) admit(ctx context.Context) error {
	if s.injector == nil {
		return nil
	}
	if err := s.injector.Admit(ctx); err != nil {
		if errors.Is(err, ErrNetworkFault) {
			s.stats.IncCounter(stats.MetricStoreFaults, 1)
		}
		return err
	}
	return nil
}
