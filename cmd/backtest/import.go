package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"mm_backtest/internal/app"
	"mm_backtest/internal/domain"
	"mm_backtest/internal/infra"
	"mm_backtest/internal/infra/storage"

	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load recorded quote, trade and price CSV files into the store",
		RunE:  runImport,
	}
	cmd.Flags().String("exchange", "", "exchange name (overrides config)")
	cmd.Flags().String("symbol", "", "symbol (overrides config)")
	cmd.Flags().String("quotes", "", "quotes CSV file")
	cmd.Flags().String("trades", "", "trades CSV file")
	cmd.Flags().String("prices", "", "mark/index prices CSV file")
	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	quotesPath, _ := cmd.Flags().GetString("quotes")
	tradesPath, _ := cmd.Flags().GetString("trades")
	pricesPath, _ := cmd.Flags().GetString("prices")
	if quotesPath == "" && tradesPath == "" && pricesPath == "" {
		return errors.New("nothing to import: set --quotes, --trades or --prices")
	}

	b := app.NewBootstrap()
	defer b.Close()

	err := b.Initialize(configPath, func(cfg *infra.Config) error {
		if v, _ := cmd.Flags().GetString("exchange"); v != "" {
			cfg.Backtest.Exchange = v
		}
		if v, _ := cmd.Flags().GetString("symbol"); v != "" {
			cfg.Backtest.Symbol = v
		}
		if cfg.Backtest.Exchange == "" || cfg.Backtest.Symbol == "" {
			return &domain.ConfigError{Field: "backtest.symbol", Err: domain.ErrInvalidSymbol}
		}
		return nil
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store := b.Storage
	exchange, symbol := b.Config.Backtest.Exchange, b.Config.Backtest.Symbol

	if quotesPath != "" {
		quotes, err := readFile(quotesPath, storage.ReadQuotesCSV)
		if err != nil {
			return err
		}
		if err := store.SaveQuotes(ctx, exchange, symbol, quotes); err != nil {
			return err
		}
		slog.Info("Quotes imported", slog.String("file", quotesPath), slog.Int("count", len(quotes)))
	}
	if tradesPath != "" {
		trades, err := readFile(tradesPath, storage.ReadTradesCSV)
		if err != nil {
			return err
		}
		if err := store.SaveTrades(ctx, exchange, symbol, trades); err != nil {
			return err
		}
		slog.Info("Trades imported", slog.String("file", tradesPath), slog.Int("count", len(trades)))
	}
	if pricesPath != "" {
		prices, err := readFile(pricesPath, storage.ReadPricesCSV)
		if err != nil {
			return err
		}
		if err := store.SavePrices(ctx, exchange, symbol, prices); err != nil {
			return err
		}
		slog.Info("Prices imported", slog.String("file", pricesPath), slog.Int("count", len(prices)))
	}
	return nil
}

func readFile[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	recs, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}
