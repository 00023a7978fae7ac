// Package property checks store invariants over generated inputs.
//
// Every property is a uniform callable: it receives a fresh store and a
// generated Input and returns a Violation when the invariant does not hold.
// Properties run without fault injection so they test store correctness
// independently of the fault model.
package property

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/discochess/faultkv/internal/config"
	"github.com/discochess/faultkv/internal/randsrc"
	"github.com/discochess/faultkv/internal/stats"
	"github.com/discochess/faultkv/internal/store"
)

// Store is the surface a property exercises. Each case gets a fresh one.
type Store interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// Factory builds an empty store with the given shard count.
type Factory func(shardCount int) (Store, error)

// GeneratorConfig bounds the generated inputs.
type GeneratorConfig struct {
	Cases       int    // Cases per property.
	MaxKeyLen   int    // Keys have length in [0, MaxKeyLen].
	MaxValueLen int    // Values have length in [0, MaxValueLen].
	MaxKeys     int    // Multi-key cases use [1, MaxKeys] distinct keys.
	ShardCount  int    // Shards in each fresh store.
	Seed        uint64 // Zero picks a time-based seed.
}

// DefaultGeneratorConfig returns the default bounds.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Cases:       100,
		MaxKeyLen:   64,
		MaxValueLen: 256,
		MaxKeys:     16,
		ShardCount:  3,
	}
}

// Validate checks the bounds.
func (g GeneratorConfig) Validate() error {
	if g.Cases < 0 {
		return fmt.Errorf("%w: cases %d < 0", config.ErrInvalidConfig, g.Cases)
	}
	if g.MaxKeyLen < 0 || g.MaxValueLen < 0 {
		return fmt.Errorf("%w: negative length bound", config.ErrInvalidConfig)
	}
	if g.MaxKeys < 1 {
		return fmt.Errorf("%w: max keys %d < 1", config.ErrInvalidConfig, g.MaxKeys)
	}
	return config.ValidateShardCount(g.ShardCount)
}

// Input is one generated case.
type Input struct {
	Key   string
	Value []byte
	Keys  []string // Distinct, non-empty.
}

// Violation reports a property that did not hold.
type Violation struct {
	Property string
	Case     int
	Seed     uint64
	Key      string
	Want     []byte
	Got      []byte
	Found    bool
}

// Error implements error.
func (v *Violation) Error() string {
	got := fmt.Sprintf("%q", v.Got)
	if !v.Found {
		got = "<absent>"
	}
	return fmt.Sprintf("property %s: case %d (seed %d): key %q: want %q, got %s",
		v.Property, v.Case, v.Seed, v.Key, v.Want, got)
}

// Property is a named invariant.
type Property struct {
	Name  string
	Check func(ctx context.Context, st Store, in Input) (*Violation, error)
}

// RoundTrip: set(k, v) followed by get(k) returns v.
var RoundTrip = Property{
	Name: "round-trip",
	Check: func(ctx context.Context, st Store, in Input) (*Violation, error) {
		if err := st.Set(ctx, in.Key, in.Value); err != nil {
			return nil, fmt.Errorf("set: %w", err)
		}
		got, err := st.Get(ctx, in.Key)
		return expect(in.Key, in.Value, got, err)
	},
}

// MultiKeyConsistency: after setting every key to one value sequentially,
// reading all keys concurrently returns that value for each key.
var MultiKeyConsistency = Property{
	Name: "multi-key-consistency",
	Check: func(ctx context.Context, st Store, in Input) (*Violation, error) {
		for _, k := range in.Keys {
			if err := st.Set(ctx, k, in.Value); err != nil {
				return nil, fmt.Errorf("set %q: %w", k, err)
			}
		}

		violations := make([]*Violation, len(in.Keys))
		g, gctx := errgroup.WithContext(ctx)
		for i, k := range in.Keys {
			g.Go(func() error {
				got, err := st.Get(gctx, k)
				v, err := expect(k, in.Value, got, err)
				violations[i] = v
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, v := range violations {
			if v != nil {
				return v, nil
			}
		}
		return nil, nil
	},
}

// All lists the built-in properties in run order.
var All = []Property{RoundTrip, MultiKeyConsistency}

func expect(key string, want, got []byte, getErr error) (*Violation, error) {
	found := true
	if getErr != nil {
		if !errors.Is(getErr, store.ErrNotFound) {
			return nil, fmt.Errorf("get %q: %w", key, getErr)
		}
		found = false
	}
	if found && bytes.Equal(want, got) {
		return nil, nil
	}
	return &Violation{
		Key:   key,
		Want:  bytes.Clone(want),
		Got:   bytes.Clone(got),
		Found: found,
	}, nil
}

// Checks runs properties against fresh stores.
type Checks struct {
	newStore   Factory
	properties []Property
	stats      stats.Collector
	logger     *zap.Logger
	tracer     trace.Tracer
}

// Option configures Checks.
type Option func(*Checks)

// WithProperties replaces the property list. Default is All.
func WithProperties(ps ...Property) Option {
	return func(c *Checks) { c.properties = ps }
}

// WithStats sets the stats collector.
func WithStats(s stats.Collector) Option {
	return func(c *Checks) { c.stats = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Checks) { c.logger = l }
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Checks) { c.tracer = tp.Tracer(tracerName) }
}

const tracerName = "github.com/discochess/faultkv/internal/property"

// New creates Checks that build a fresh store per case with factory.
func New(factory Factory, opts ...Option) (*Checks, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: nil store factory", config.ErrInvalidConfig)
	}
	c := &Checks{
		newStore:   factory,
		properties: All,
		stats:      stats.NewNoop(),
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run checks every property for cfg.Cases generated inputs. It returns the
// first *Violation found, any store or context error, or nil.
func (c *Checks) Run(ctx context.Context, cfg GeneratorConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}

	for pi, p := range c.properties {
		gen := newGenerator(randsrc.New(randsrc.Derive(cfg.Seed, pi)), cfg)
		for i := 0; i < cfg.Cases; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := c.runCase(ctx, p, cfg, i, gen.next())
			if err != nil {
				return fmt.Errorf("property %s: case %d: %w", p.Name, i, err)
			}
			if v != nil {
				v.Property = p.Name
				v.Case = i
				v.Seed = cfg.Seed
				c.stats.IncCounter(stats.MetricPropertyViolations, 1)
				c.logger.Warn("property violated", zap.Error(v))
				return v
			}
		}
		c.logger.Info("property held",
			zap.String("property", p.Name),
			zap.Int("cases", cfg.Cases),
			zap.Uint64("seed", cfg.Seed),
		)
	}
	return nil
}

func (c *Checks) runCase(ctx context.Context, p Property, cfg GeneratorConfig, i int, in Input) (v *Violation, err error) {
	ctx, span := c.tracer.Start(ctx, "property.case", trace.WithAttributes(
		attribute.String("property", p.Name),
		attribute.Int("case", i),
		attribute.Int("keys", len(in.Keys)),
	))
	defer span.End()

	st, err := c.newStore(cfg.ShardCount)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing store: %w", cerr)
		}
	}()

	c.stats.IncCounter(stats.MetricPropertyCases, 1)
	v, err = p.Check(ctx, st, in)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "case aborted")
	case v != nil:
		span.SetStatus(codes.Error, "property violated")
	}
	return v, err
}
