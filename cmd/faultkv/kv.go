package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discochess/faultkv"
	"github.com/discochess/faultkv/fx/faultkvfx"
	"github.com/discochess/faultkv/internal/config"
)

var kvCmd = &cobra.Command{
	Use:   "kv KEY [VALUE]",
	Short: "Set or get a single key through the fault injector",
	Long: `Set KEY to VALUE, or print the value of KEY when VALUE is omitted.

The store lives only for the duration of the command, so a get on its own
always reports the key as absent. The operation passes through the fault
injector and may fail with a simulated network fault.

Examples:
  faultkv kv greeting hello
  faultkv kv greeting --failure-rate 0`,
	Args: cobra.RangeArgs(1, 2),
	RunE: withEnv(runKV),
}

var kvStore storeFlags

func init() {
	kvStore.register(kvCmd.Flags(), config.Default())
	rootCmd.AddCommand(kvCmd)
}

func runKV(ctx context.Context, cmd *cobra.Command, args []string, e *env) error {
	kvStore.apply(cmd, &e.cfg)
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	inj, err := faultkvfx.NewInjector(e.cfg, e.collector, e.logger)
	if err != nil {
		return err
	}
	opts, err := faultkvfx.StoreOptions(e.cfg, e.collector, e.logger)
	if err != nil {
		return err
	}
	st, err := faultkv.New(append(opts, faultkv.WithInjector(inj))...)
	if err != nil {
		return err
	}
	defer st.Close()

	key := args[0]
	out := cmd.OutOrStdout()
	if len(args) == 2 {
		if err := st.Set(ctx, key, []byte(args[1])); err != nil {
			return fmt.Errorf("operation failed: %w", err)
		}
		fmt.Fprintf(out, "Set %s to %s\n", key, args[1])
		return nil
	}

	value, err := st.Get(ctx, key)
	switch {
	case errors.Is(err, faultkv.ErrNotFound):
		fmt.Fprintf(out, "Key %s not found\n", key)
		return nil
	case err != nil:
		return fmt.Errorf("operation failed: %w", err)
	}
	fmt.Fprintf(out, "Value for %s: %s\n", key, value)
	return nil
}
