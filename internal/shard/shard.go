package shard

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/faultkv/internal/clock"
	"github.com/discochess/faultkv/internal/codec"
	"github.com/discochess/faultkv/internal/codec/noopcodec"
	"github.com/discochess/faultkv/internal/randsrc"
	"github.com/discochess/faultkv/internal/stats"
	"github.com/discochess/faultkv/internal/store"
)

// Shard is one addressable node. It owns the keys routed to it and
// serializes every read and write against its store, so operations on the
// same key are linearizable. The simulated processing delay is taken
// before the lock, so a slow operation never blocks other keys.
type Shard struct {
	id    int
	store store.Store
	codec codec.Codec

	clock      clock.Clock
	rand       randsrc.Source
	minLatency time.Duration
	maxLatency time.Duration

	stats  stats.Collector
	logger *zap.Logger

	mu   sync.Mutex // serializes store access
	gets atomic.Uint64
	sets atomic.Uint64
}

// Option configures a Shard.
type Option func(*Shard)

// WithCodec sets the value codec. Default stores values verbatim.
func WithCodec(c codec.Codec) Option {
	return func(s *Shard) { s.codec = c }
}

// WithLatency sets the simulated processing delay range [lo, hi].
// A zero range disables the delay.
func WithLatency(lo, hi time.Duration) Option {
	return func(s *Shard) {
		s.minLatency = lo
		s.maxLatency = hi
	}
}

// WithClock sets the clock used for delays.
func WithClock(c clock.Clock) Option {
	return func(s *Shard) { s.clock = c }
}

// WithRand sets the random source used for delays.
func WithRand(src randsrc.Source) Option {
	return func(s *Shard) { s.rand = src }
}

// WithStats sets the stats collector.
func WithStats(c stats.Collector) Option {
	return func(s *Shard) { s.stats = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Shard) { s.logger = l }
}

// New creates a shard with the given ID backed by st.
func New(id int, st store.Store, opts ...Option) *Shard {
	s := &Shard{
		id:     id,
		store:  st,
		codec:  noopcodec.New(),
		clock:  clock.Real{},
		stats:  stats.NewNoop(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rand == nil {
		s.rand = randsrc.New(0)
	}
	return s
}

// ID returns the shard index.
func (s *Shard) ID() int {
	return s.id
}

// Get returns the value stored for key, or false if absent.
// An error is only returned if ctx ends during the simulated delay or the
// stored value cannot be decoded.
func (s *Shard) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.delay(ctx); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	stored, ok := s.store.Get(key)
	s.mu.Unlock()

	s.gets.Add(1)
	s.stats.IncCounter(stats.MetricShardGets, 1)
	if !ok {
		return nil, false, nil
	}

	// Stored slices are replaced on write, never mutated, so decoding
	// outside the lock is safe.
	value, err := s.codec.Decode(stored)
	if err != nil {
		return nil, false, fmt.Errorf("shard %d: decoding %q: %w", s.id, key, err)
	}
	return value, true, nil
}

// Set inserts or overwrites the value for key. value is not retained.
// Nothing is written if ctx ends during the simulated delay.
func (s *Shard) Set(ctx context.Context, key string, value []byte) error {
	if err := s.delay(ctx); err != nil {
		return err
	}

	encoded, err := s.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("shard %d: encoding %q: %w", s.id, key, err)
	}

	s.mu.Lock()
	s.store.Set(key, encoded)
	s.mu.Unlock()

	s.sets.Add(1)
	s.stats.IncCounter(stats.MetricShardSets, 1)
	return nil
}

// Info contains metadata about a shard.
type Info struct {
	ID       int    // Shard identifier.
	Gets     uint64 // Completed get operations.
	Sets     uint64 // Completed set operations.
	KeyCount int    // Number of keys.
	ByteSize int    // Stored size of values in bytes.
	Evicted  int64  // Keys evicted by a bounded store.
}

// Info returns a snapshot of the shard's counters and storage stats.
func (s *Shard) Info() Info {
	s.mu.Lock()
	st := s.store.Stats()
	s.mu.Unlock()

	return Info{
		ID:       s.id,
		Gets:     s.gets.Load(),
		Sets:     s.sets.Load(),
		KeyCount: st.Keys,
		ByteSize: st.Bytes,
		Evicted:  st.Evicted,
	}
}

// Close closes the underlying store.
func (s *Shard) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Close()
}

func (s *Shard) delay(ctx context.Context) error {
	if s.maxLatency <= 0 {
		return ctx.Err()
	}
	d := s.minLatency + time.Duration(s.rand.Float64()*float64(s.maxLatency-s.minLatency))
	s.stats.ObserveHistogram(stats.MetricShardLatency, d.Seconds())
	if err := s.clock.Sleep(ctx, d); err != nil {
		return fmt.Errorf("shard %d: %w", s.id, err)
	}
	return nil
}
