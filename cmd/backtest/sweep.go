package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"mm_backtest/internal/app"
	"mm_backtest/internal/engine"
	"mm_backtest/internal/infra"
	"mm_backtest/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the configured window over several symbols",
		RunE:  runSweep,
	}
	cmd.Flags().StringSlice("symbols", nil, "symbols to replay (required)")
	cmd.Flags().Int("parallel", 2, "maximum concurrent runs")
	cmd.Flags().String("out-dir", "", "directory for per-symbol CSV reports")
	return cmd
}

func runSweep(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	symbols, _ := cmd.Flags().GetStringSlice("symbols")
	parallel, _ := cmd.Flags().GetInt("parallel")
	outDir, _ := cmd.Flags().GetString("out-dir")
	if len(symbols) == 0 {
		return fmt.Errorf("--symbols is required")
	}

	b := app.NewBootstrap()
	defer b.Close()

	err := b.Initialize(configPath, func(cfg *infra.Config) error {
		// Symbol comes from the flag; validate everything else.
		cfg.Backtest.Symbol = symbols[0]
		return cfg.Validate()
	})
	if err != nil {
		return err
	}

	bt := b.Config.Backtest
	reqs := make([]engine.RunRequest, 0, len(symbols))
	for _, sym := range symbols {
		req := engine.RunRequest{
			RunID:            uuid.NewString(),
			Exchange:         bt.Exchange,
			Symbol:           strings.TrimSpace(sym),
			StartMs:          bt.Start.UnixMilli(),
			EndMs:            bt.End.UnixMilli(),
			TickIntervalMs:   bt.TickIntervalMs,
			WindowHorizonMs:  bt.WindowHorizonMs,
			MarkoutHorizonMs: bt.MarkoutHorizonMs,
			Risk:             b.Config.Risk,
		}
		if outDir != "" {
			req.ReportPath = filepath.Join(outDir, req.Symbol+"_fills.csv")
			req.DumpDir = outDir
		}
		reqs = append(reqs, req)
	}

	svc := service.NewBatchService(func() *engine.Runner { return b.NewRunner(nil) }, parallel)
	runErr := svc.RunAll(cmd.Context(), reqs)

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-12s %8s %8s %8s %14s %14s\n", "SYMBOL", "FILLS", "CANCELS", "PAUSES", "AVG_MARKOUT", "POSITION")
	for _, res := range svc.All() {
		s := res.Summary
		avg := "-"
		if s.AvgMarkoutBps != nil {
			avg = s.AvgMarkoutBps.StringFixed(4)
		}
		fmt.Fprintf(w, "%-12s %8d %8d %8d %14s %14s\n", s.Symbol, s.TotalFills, s.TotalCancels, s.PauseCount, avg, s.FinalPosition.String())
	}
	return runErr
}
