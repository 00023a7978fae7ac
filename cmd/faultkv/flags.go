package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/discochess/faultkv/internal/config"
)

// storeFlags override config file values when set on the command line.
// Without a config file the flag defaults apply.
type storeFlags struct {
	shards      int
	failureRate float64
	maxLatency  time.Duration
	codec       string
	capacity    int
	seed        uint64
}

func (f *storeFlags) register(fs *pflag.FlagSet, def config.Config) {
	fs.IntVar(&f.shards, "shards", def.ShardCount, "number of shards")
	fs.Float64Var(&f.failureRate, "failure-rate", def.FailureRate, "probability in [0, 1] that an operation is rejected")
	fs.DurationVar(&f.maxLatency, "max-latency", def.MaxLatency, "upper bound of injected latency")
	fs.StringVar(&f.codec, "codec", def.Codec, "value codec: none, gzip, zstd")
	fs.IntVar(&f.capacity, "capacity", def.Capacity, "max keys per shard, 0 for unbounded")
	fs.Uint64Var(&f.seed, "seed", def.Seed, "random seed, 0 for time-based")
}

func (f *storeFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if flagSet(cmd, "shards") {
		cfg.ShardCount = f.shards
	}
	if flagSet(cmd, "failure-rate") {
		cfg.FailureRate = f.failureRate
	}
	if flagSet(cmd, "max-latency") {
		cfg.MaxLatency = f.maxLatency
	}
	if flagSet(cmd, "codec") {
		cfg.Codec = f.codec
	}
	if flagSet(cmd, "capacity") {
		cfg.Capacity = f.capacity
	}
	if flagSet(cmd, "seed") {
		cfg.Seed = f.seed
	}
}

// flagSet reports whether a flag's value should override the config.
func flagSet(cmd *cobra.Command, name string) bool {
	return configFile == "" || cmd.Flags().Changed(name)
}
