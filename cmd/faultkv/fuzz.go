package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/discochess/faultkv/fx/faultkvfx"
	"github.com/discochess/faultkv/internal/config"
	"github.com/discochess/faultkv/internal/fuzz"
)

var fuzzCmd = &cobra.Command{
	Use:   "fuzz",
	Short: "Run randomized set-then-get trials under fault injection",
	Long: `Run randomized trials. Each trial writes a random value under a random key
and reads it back, with the fault injector sampled before both operations.

Trials end in one of three outcomes:
- passed: the read returned the written value
- faulted: an injected network fault stopped the trial (expected)
- failed: the read disagreed with the write (a consistency violation)

Examples:
  faultkv fuzz --iterations 1000 --failure-rate 0.2
  faultkv fuzz --workers 8 --seed 42 --max-latency 10ms`,
	Args: cobra.NoArgs,
	RunE: withEnv(runFuzz),
}

var (
	fuzzStore      storeFlags
	fuzzIterations int
	fuzzWorkers    int
	fuzzRateLimit  float64
)

func init() {
	fuzzStore.register(fuzzCmd.Flags(), config.Default())
	fuzzCmd.Flags().IntVarP(&fuzzIterations, "iterations", "n", 1000, "number of trials")
	fuzzCmd.Flags().IntVarP(&fuzzWorkers, "workers", "w", 1, "concurrent trials")
	fuzzCmd.Flags().Float64Var(&fuzzRateLimit, "rate-limit", 0, "max trials per second, 0 for unlimited")
	rootCmd.AddCommand(fuzzCmd)
}

func runFuzz(ctx context.Context, cmd *cobra.Command, _ []string, e *env) error {
	fuzzStore.apply(cmd, &e.cfg)
	if flagSet(cmd, "iterations") {
		e.cfg.Iterations = fuzzIterations
	}
	if flagSet(cmd, "workers") {
		e.cfg.Workers = fuzzWorkers
	}
	if flagSet(cmd, "rate-limit") {
		e.cfg.RateLimit = fuzzRateLimit
	}

	var opts []fx.Option
	if verbose {
		every := max(e.cfg.Iterations/10, 1)
		opts = append(opts, faultkvfx.FuzzOption(fuzz.WithProgress(every, func(p fuzz.Progress) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] passed=%d faulted=%d failed=%d (%s)\n",
				p.Completed, p.Total, p.Passed, p.Faulted, p.Failed, p.Elapsed.Round(time.Millisecond))
		})))
	}

	var driver *fuzz.Driver
	stop, err := e.start(ctx, append(opts, fx.Populate(&driver))...)
	if err != nil {
		return err
	}
	defer stop()

	summary, runErr := driver.Run(ctx, e.cfg.Iterations)
	printSummary(cmd, summary)
	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d consistency violations", summary.Failed)
	}
	return nil
}

func printSummary(cmd *cobra.Command, s fuzz.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:          %s\n", s.RunID)
	fmt.Fprintf(out, "Trials:       %d/%d\n", s.Completed(), s.Iterations)
	fmt.Fprintf(out, "Passed:       %d\n", s.Passed)
	fmt.Fprintf(out, "Faulted:      %d (before set: %d, before get: %d)\n", s.Faulted, s.FaultsBeforeSet, s.FaultsBeforeGet)
	fmt.Fprintf(out, "Failed:       %d\n", s.Failed)
	fmt.Fprintf(out, "Elapsed:      %s\n", s.Elapsed)
	for _, v := range s.Violations {
		fmt.Fprintf(out, "  violation: %v\n", v)
	}
}
