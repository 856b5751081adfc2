package main

import (
	"context"

	"mm_backtest/internal/infra"

	"github.com/spf13/cobra"
)

// Execute builds the command tree and runs it.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:           "backtest",
		Short:         "Market-making backtest replay engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", infra.DefaultConfigPath, "path to the YAML config file")

	root.AddCommand(runCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(importCmd())
	return root.ExecuteContext(ctx)
}
