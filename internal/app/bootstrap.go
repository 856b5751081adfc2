package app

import (
	"errors"
	"fmt"
	"log/slog"

	"mm_backtest/internal/domain"
	"mm_backtest/internal/engine"
	"mm_backtest/internal/infra"
	"mm_backtest/internal/infra/storage"
	"mm_backtest/internal/strategy"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Logger  *slog.Logger
	Storage *storage.Storage
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration, installs the logger and opens storage.
// A missing config file falls back to DefaultConfig. prepare, when non-nil,
// may adjust and check the config before anything is opened.
func (b *Bootstrap) Initialize(configPath string, prepare func(*infra.Config) error) error {
	if configPath == "" {
		configPath = infra.DefaultConfigPath
	}

	// 1. Load Config
	cfg, err := infra.ReadConfig(configPath)
	if errors.Is(err, domain.ErrConfigNotFound) {
		cfg, err = infra.DefaultConfig(), nil
		infra.ApplyEnv(cfg)
	}
	if err != nil {
		return err // Let main handle the error
	}
	if prepare != nil {
		if err := prepare(cfg); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	b.Config = cfg

	// 2. Setup Logger
	b.Logger = infra.NewLogger(cfg)
	slog.SetDefault(b.Logger)
	slog.Info("Bootstrapping backtester",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("config", configPath),
	)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("Database initialized", slog.String("path", cfg.Storage.Path))

	return nil
}

// NewRunner wires storage as both data loader and run sink.
func (b *Bootstrap) NewRunner(strat strategy.Strategy) *engine.Runner {
	return engine.NewRunner(b.Storage, strat, b.Storage, b.Logger)
}

// Close releases resources opened by Initialize.
func (b *Bootstrap) Close() error {
	if b.Storage == nil {
		return nil
	}
	return b.Storage.Close()
}
