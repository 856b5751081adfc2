package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"mm_backtest/internal/app"
	"mm_backtest/internal/engine"
	"mm_backtest/internal/infra"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay stored market data through the quoting strategy",
		RunE:  runBacktest,
	}
	cmd.Flags().String("exchange", "", "exchange name (overrides config)")
	cmd.Flags().String("symbol", "", "symbol (overrides config)")
	cmd.Flags().String("start", "", "start time, RFC3339 (overrides config)")
	cmd.Flags().String("end", "", "end time, RFC3339 (overrides config)")
	cmd.Flags().Int64("tick", 0, "tick interval in ms (overrides config)")
	cmd.Flags().String("out", "", "CSV report path (overrides config)")
	cmd.Flags().String("run-id", "", "run id; random when empty")
	return cmd
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	b := app.NewBootstrap()
	defer b.Close()

	err := b.Initialize(configPath, func(cfg *infra.Config) error {
		if err := applyRunFlags(cmd, cfg); err != nil {
			return err
		}
		return cfg.Validate()
	})
	if err != nil {
		return err
	}

	runID, _ := cmd.Flags().GetString("run-id")
	if runID == "" {
		runID = uuid.NewString()
	}

	bt := b.Config.Backtest
	req := engine.RunRequest{
		RunID:            runID,
		Exchange:         bt.Exchange,
		Symbol:           bt.Symbol,
		StartMs:          bt.Start.UnixMilli(),
		EndMs:            bt.End.UnixMilli(),
		TickIntervalMs:   bt.TickIntervalMs,
		WindowHorizonMs:  bt.WindowHorizonMs,
		MarkoutHorizonMs: bt.MarkoutHorizonMs,
		Risk:             b.Config.Risk,
		ReportPath:       bt.ReportPath,
	}

	started := time.Now()
	res, err := b.NewRunner(nil).Run(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}
	slog.Info("Backtest completed", slog.Duration("elapsed", time.Since(started)))

	out, err := json.MarshalIndent(res.Summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func applyRunFlags(cmd *cobra.Command, cfg *infra.Config) error {
	flags := cmd.Flags()
	if v, _ := flags.GetString("exchange"); v != "" {
		cfg.Backtest.Exchange = v
	}
	if v, _ := flags.GetString("symbol"); v != "" {
		cfg.Backtest.Symbol = v
	}
	if v, _ := flags.GetString("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		cfg.Backtest.Start = t
	}
	if v, _ := flags.GetString("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
		cfg.Backtest.End = t
	}
	if v, _ := flags.GetInt64("tick"); v != 0 {
		cfg.Backtest.TickIntervalMs = v
	}
	if v, _ := flags.GetString("out"); v != "" {
		cfg.Backtest.ReportPath = v
	}
	return nil
}
