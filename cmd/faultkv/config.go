package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/discochess/faultkv/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration a run would use, after applying the config file
and any flag overrides. The output is valid input for --config.

Examples:
  faultkv config --shards 5 --codec zstd > run.yaml
  faultkv fuzz --config run.yaml`,
	Args: cobra.NoArgs,
	RunE: withEnv(runConfig),
}

var configStore storeFlags

func init() {
	configStore.register(configCmd.Flags(), config.Default())
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ context.Context, cmd *cobra.Command, _ []string, e *env) error {
	configStore.apply(cmd, &e.cfg)
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	data, err := e.cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
