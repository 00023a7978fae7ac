package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/faultkv"
	"github.com/discochess/faultkv/benchmark/analysis"
	"github.com/discochess/faultkv/benchmark/perf"
	"github.com/discochess/faultkv/benchmark/reporting"
	"github.com/discochess/faultkv/fx/faultkvfx"
	"github.com/discochess/faultkv/internal/config"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure set/get latency and error rates",
	Long: `Perform set/get pairs on keys key_0 .. key_N-1 through the fault injector
and report per-operation latency and error rate.

With --compare-codec the workload runs a second time using that codec and
the report includes a statistical comparison of set latencies.

Examples:
  faultkv bench --ops 1000
  faultkv bench --format markdown --output report.md --compare-codec zstd`,
	Args: cobra.NoArgs,
	RunE: withEnv(runBench),
}

var (
	benchStore        storeFlags
	benchOps          int
	benchFormat       string
	benchOutput       string
	benchCompareCodec string
)

// benchDefaults is the stock performance workload: fewer
// faults and a shorter worst-case latency than the fuzz defaults.
func benchDefaults() config.Config {
	cfg := config.Default()
	cfg.FailureRate = 0.05
	cfg.MaxLatency = 500 * time.Millisecond
	return cfg
}

func init() {
	benchStore.register(benchCmd.Flags(), benchDefaults())
	benchCmd.Flags().IntVar(&benchOps, "ops", 1000, "number of set/get pairs")
	benchCmd.Flags().StringVarP(&benchFormat, "format", "f", "text", "output format: text, markdown")
	benchCmd.Flags().StringVarP(&benchOutput, "output", "o", "", "output file (default: stdout)")
	benchCmd.Flags().StringVar(&benchCompareCodec, "compare-codec", "", "second codec to compare against")
	rootCmd.AddCommand(benchCmd)
}

func runBench(ctx context.Context, cmd *cobra.Command, _ []string, e *env) error {
	benchStore.apply(cmd, &e.cfg)
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	if benchFormat != "text" && benchFormat != "markdown" {
		return fmt.Errorf("%w: unknown format %q", config.ErrInvalidConfig, benchFormat)
	}

	base, err := measure(ctx, e, e.cfg)
	if err != nil {
		return err
	}

	var comp *analysis.Comparison
	if benchCompareCodec != "" {
		alt := e.cfg
		alt.Codec = benchCompareCodec
		other, err := measure(ctx, e, alt)
		if err != nil {
			return err
		}
		comp = analysis.Compare(
			codecName(e.cfg.Codec), base.Samples(perf.OpSet),
			codecName(alt.Codec), other.Samples(perf.OpSet),
			1000, 0.95, e.cfg.Seed,
		)
	}

	var w io.Writer = cmd.OutOrStdout()
	if benchOutput != "" {
		f, err := os.Create(benchOutput)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	rep := base.Report()
	if benchFormat == "markdown" {
		md := reporting.NewMarkdownReport(w)
		md.WriteHeader("faultkv Performance Report")
		md.WriteMethodology(reporting.Workload{
			Operations:  benchOps,
			ShardCount:  e.cfg.ShardCount,
			FailureRate: e.cfg.FailureRate,
			MaxLatency:  e.cfg.MaxLatency,
			Codec:       codecName(e.cfg.Codec),
		})
		md.WriteSummaryTable(rep)
		for _, op := range rep.Ops {
			md.WriteDistributionChart(op.Name, base.Samples(op.Name))
		}
		if comp != nil {
			md.WriteComparison(comp)
		}
		md.WriteFooter()
	} else {
		reporting.WriteText(w, rep)
		if comp != nil {
			fmt.Fprintln(w, comp.Summary())
		}
	}

	if benchOutput != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", benchOutput)
	}
	return nil
}

// measure runs the workload against a fresh store built from cfg.
func measure(ctx context.Context, e *env, cfg config.Config) (*perf.Monitor, error) {
	inj, err := faultkvfx.NewInjector(cfg, e.collector, e.logger)
	if err != nil {
		return nil, err
	}
	opts, err := faultkvfx.StoreOptions(cfg, e.collector, e.logger)
	if err != nil {
		return nil, err
	}
	st, err := faultkv.New(append(opts, faultkv.WithInjector(inj))...)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	m := perf.NewMonitor(perf.WithStats(e.collector))
	e.logger.Info("running workload", zap.Int("ops", benchOps), zap.String("codec", codecName(cfg.Codec)))
	if err := perf.Run(ctx, st, benchOps, m, e.logger); err != nil {
		return nil, err
	}
	return m, nil
}

func codecName(name string) string {
	if name == "" {
		return "none"
	}
	return name
}
