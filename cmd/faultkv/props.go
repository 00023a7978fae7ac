package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/discochess/faultkv/internal/config"
	"github.com/discochess/faultkv/internal/property"
)

var propsCmd = &cobra.Command{
	Use:   "props",
	Short: "Check store properties over generated inputs",
	Long: `Check store properties without fault injection. Each case runs against a
fresh store:
- round-trip: set(k, v) then get(k) returns v, for arbitrary bytes
- multi-key-consistency: after setting many keys, concurrent reads all agree

Examples:
  faultkv props --cases 500 --seed 7`,
	Args: cobra.NoArgs,
	RunE: withEnv(runProps),
}

var (
	propsStore storeFlags
	propsGen   = property.DefaultGeneratorConfig()
)

func init() {
	propsStore.register(propsCmd.Flags(), config.Default())
	propsCmd.Flags().IntVar(&propsGen.Cases, "cases", propsGen.Cases, "cases per property")
	propsCmd.Flags().IntVar(&propsGen.MaxKeyLen, "max-key-len", propsGen.MaxKeyLen, "max generated key length")
	propsCmd.Flags().IntVar(&propsGen.MaxValueLen, "max-value-len", propsGen.MaxValueLen, "max generated value length")
	propsCmd.Flags().IntVar(&propsGen.MaxKeys, "max-keys", propsGen.MaxKeys, "max keys per multi-key case")
	rootCmd.AddCommand(propsCmd)
}

func runProps(ctx context.Context, cmd *cobra.Command, _ []string, e *env) error {
	propsStore.apply(cmd, &e.cfg)

	var checks *property.Checks
	stop, err := e.start(ctx, fx.Populate(&checks))
	if err != nil {
		return err
	}
	defer stop()

	gen := propsGen
	gen.ShardCount = e.cfg.ShardCount
	gen.Seed = e.cfg.Seed
	if err := checks.Run(ctx, gen); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "All %d properties held for %d cases each.\n", len(property.All), gen.Cases)
	return nil
}
