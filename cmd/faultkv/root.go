package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/discochess/faultkv/fx/faultkvfx"
	"github.com/discochess/faultkv/internal/config"
	"github.com/discochess/faultkv/internal/stats"
	"github.com/discochess/faultkv/internal/stats/logger"
	"github.com/discochess/faultkv/internal/stats/prometheus"
)

var (
	// Global flags.
	configFile  string
	verbose     bool
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "faultkv",
	Short: "Exercise a sharded key-value store under injected network faults",
	Long: `faultkv runs an in-process sharded key-value store behind a simulated
unreliable network and checks that reads return what was written.

Injected faults are expected and counted separately from consistency
violations. Any violation makes the command exit with status 1.

Examples:
  # Fuzz with the default 20% failure rate
  faultkv fuzz --iterations 1000

  # Check store properties
  faultkv props --cases 500

  # Measure latency and write a markdown report
  faultkv bench --ops 1000 --format markdown --output report.md

  # Set and read a key
  faultkv kv greeting hello
  faultkv kv greeting`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
}

// env holds what every command needs.
type env struct {
	cfg       config.Config
	logger    *zap.Logger
	collector stats.Collector
	closers   []func()
}

// withEnv builds the logger, stats collector and config before running fn
// and tears them down afterwards.
func withEnv(fn func(ctx context.Context, cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		return fn(cmd.Context(), cmd, args, e)
	}
}

func newEnv(cmd *cobra.Command) (*env, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}

	log, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	e := &env{cfg: cfg, logger: log}
	e.closers = append(e.closers, func() { _ = log.Sync() })

	var collectors []stats.Collector
	if metricsAddr != "" {
		prom := prometheus.New(nil)
		if err := e.serveMetrics(prom.Handler()); err != nil {
			e.close()
			return nil, err
		}
		collectors = append(collectors, prom)
	}
	if verbose {
		lc := logger.New(log)
		collectors = append(collectors, lc)
		e.closers = append(e.closers, lc.Flush)
	}
	e.collector = stats.Tee(collectors...)
	return e, nil
}

func newLogger() (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zcfg.DisableStacktrace = true
	return zcfg.Build()
}

func (e *env) serveMetrics(h http.Handler) error {
	ln, err := net.Listen("tcp", metricsAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", metricsAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	e.logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))

	e.closers = append(e.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return nil
}

// close runs closers in reverse order.
func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// start builds the faultkv fx module from e.cfg plus opts and starts the
// app. The returned stop function closes the store.
func (e *env) start(ctx context.Context, opts ...fx.Option) (func(), error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	app := fx.New(
		faultkvfx.Module,
		fx.Supply(e.cfg, e.logger),
		fx.Provide(func() stats.Collector { return e.collector }),
		fx.Options(opts...),
		fx.NopLogger,
	)
	if err := app.Start(ctx); err != nil {
		return nil, err
	}
	return func() {
		if err := app.Stop(context.Background()); err != nil {
			e.logger.Warn("stopping", zap.Error(err))
		}
	}, nil
}
