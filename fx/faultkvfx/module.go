// Package faultkvfx provides an fx module wiring a store, a fault injector,
// a fuzz driver and property checks from a config.Config.
package faultkvfx

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/faultkv"
	"github.com/discochess/faultkv/internal/codec"
	"github.com/discochess/faultkv/internal/codec/gzipcodec"
	"github.com/discochess/faultkv/internal/codec/noopcodec"
	"github.com/discochess/faultkv/internal/codec/zstdcodec"
	"github.com/discochess/faultkv/internal/config"
	"github.com/discochess/faultkv/internal/fault"
	"github.com/discochess/faultkv/internal/fuzz"
	"github.com/discochess/faultkv/internal/property"
	"github.com/discochess/faultkv/internal/randsrc"
	"github.com/discochess/faultkv/internal/stats"
	"github.com/discochess/faultkv/internal/store/lrustore"
	"github.com/discochess/faultkv/internal/store/memstore"
)

// Module provides a *faultkv.Store, a *fault.Injector, a *fuzz.Driver and
// *property.Checks. Requires a config.Config, a *zap.Logger and a
// stats.Collector to be provided.
//
// The provided Store has no injector of its own; the Driver samples the
// Injector before each operation.
var Module = fx.Module("faultkv",
	fx.Provide(
		newInjector,
		newStore,
		newDriver,
		newChecks,
	),
)

// NewCodec returns the codec registered under name. Empty means "none".
func NewCodec(name string) (codec.Codec, error) {
	switch name {
	case "", "none":
		return noopcodec.New(), nil
	case "gzip":
		return gzipcodec.New(), nil
	case "zstd":
		return zstdcodec.New()
	default:
		return nil, fmt.Errorf("%w: unknown codec %q", config.ErrInvalidConfig, name)
	}
}

// StoreOptions translates cfg into store options. The injector is not
// included.
func StoreOptions(cfg config.Config, collector stats.Collector, logger *zap.Logger) ([]faultkv.Option, error) {
	c, err := NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}

	factory := memstore.Factory()
	if cfg.Capacity > 0 {
		factory = lrustore.Factory(cfg.Capacity, collector)
	}

	return []faultkv.Option{
		faultkv.WithShardCount(cfg.ShardCount),
		faultkv.WithShardLatency(cfg.ShardMinLatency, cfg.ShardMaxLatency),
		faultkv.WithStoreFactory(factory),
		faultkv.WithCodec(c),
		faultkv.WithSeed(cfg.Seed),
		faultkv.WithStats(collector),
		faultkv.WithLogger(logger),
	}, nil
}

// injectorStream keeps the injector's draws apart from the per-shard and
// per-worker streams derived from the same seed.
const injectorStream = -1

// NewInjector builds the injector described by cfg.
func NewInjector(cfg config.Config, collector stats.Collector, logger *zap.Logger) (*fault.Injector, error) {
	opts := []fault.Option{
		fault.WithStats(collector),
		fault.WithLogger(logger),
	}
	if cfg.Seed != 0 {
		opts = append(opts, fault.WithRand(randsrc.New(randsrc.Derive(cfg.Seed, injectorStream))))
	}
	return fault.New(fault.Policy{FailureRate: cfg.FailureRate, MaxLatency: cfg.MaxLatency}, opts...)
}

// Params holds the shared dependencies.
type Params struct {
	fx.In

	Config    config.Config
	Logger    *zap.Logger
	Collector stats.Collector
}

func newInjector(p Params) (*fault.Injector, error) {
	return NewInjector(p.Config, p.Collector, p.Logger.Named("fault"))
}

// StoreParams holds dependencies for creating the store.
type StoreParams struct {
	fx.In

	Params
	Lifecycle fx.Lifecycle
}

func newStore(p StoreParams) (*faultkv.Store, error) {
	if err := p.Config.Validate(); err != nil {
		return nil, err
	}
	opts, err := StoreOptions(p.Config, p.Collector, p.Logger.Named("faultkv"))
	if err != nil {
		return nil, err
	}
	st, err := faultkv.New(opts...)
	if err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return st.Close()
		},
	})
	return st, nil
}

// FuzzOption adds a driver option on top of those derived from the config.
func FuzzOption(opt fuzz.Option) fx.Option {
	return fx.Provide(fx.Annotate(
		func() fuzz.Option { return opt },
		fx.ResultTags(`group:"fuzz_options"`),
	))
}

// DriverParams holds dependencies for creating the fuzz driver.
type DriverParams struct {
	fx.In

	Params
	Store    *faultkv.Store
	Injector *fault.Injector
	Options  []fuzz.Option `group:"fuzz_options"`
}

func newDriver(p DriverParams) (*fuzz.Driver, error) {
	opts := []fuzz.Option{
		fuzz.WithSeed(p.Config.Seed),
		fuzz.WithWorkers(p.Config.Workers),
		fuzz.WithRateLimit(p.Config.RateLimit),
		fuzz.WithStats(p.Collector),
		fuzz.WithLogger(p.Logger.Named("fuzz")),
	}
	return fuzz.New(p.Store, p.Injector, append(opts, p.Options...)...)
}

func newChecks(p Params) (*property.Checks, error) {
	// Property stores run without shard latency, eviction or metrics.
	cfg := p.Config
	cfg.ShardMinLatency, cfg.ShardMaxLatency = 0, 0
	cfg.Capacity = 0
	factory := func(shardCount int) (property.Store, error) {
		cfg := cfg
		cfg.ShardCount = shardCount
		opts, err := StoreOptions(cfg, stats.NewNoop(), zap.NewNop())
		if err != nil {
			return nil, err
		}
		st, err := faultkv.New(opts...)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	return property.New(factory,
		property.WithStats(p.Collector),
		property.WithLogger(p.Logger.Named("property")),
	)
}
