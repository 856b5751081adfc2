package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"mm_backtest/internal/domain"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the CLI looks for configuration.
const DefaultConfigPath = "configs/backtest.yaml"

// MinWindowHorizonMs is the longest feature window (10s trades and mids).
// A shorter retention horizon would truncate it.
const MinWindowHorizonMs int64 = 10_000

// BacktestConfig selects the replay window and timing.
type BacktestConfig struct {
	Exchange         string    `yaml:"exchange"`
	Symbol           string    `yaml:"symbol"`
	Start            time.Time `yaml:"start"`
	End              time.Time `yaml:"end"`
	TickIntervalMs   int64     `yaml:"tick_interval_ms"`
	WindowHorizonMs  int64     `yaml:"window_horizon_ms"`
	MarkoutHorizonMs int64     `yaml:"markout_horizon_ms"`
	ReportPath       string    `yaml:"report_path"`
}

// Config holds every setting of a backtest run.
// LoadConfig overlays the YAML file on DefaultConfig, then applies
// environment overrides.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Backtest BacktestConfig    `yaml:"backtest"`
	Risk     domain.RiskParams `yaml:"risk"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns the configuration used when a field is not set.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "mm-backtest"
	cfg.App.Version = "dev"
	cfg.Backtest.TickIntervalMs = 200
	cfg.Backtest.WindowHorizonMs = 10_000
	cfg.Backtest.MarkoutHorizonMs = 10_000
	cfg.Backtest.ReportPath = "out/fills.csv"
	cfg.Risk = domain.DefaultRiskParams()
	cfg.Storage.Path = "data/marketdata.db"
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return cfg
}

// LoadConfig reads and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ReadConfig reads the configuration file and applies environment overrides
// without validating, so callers can layer flags on top first.
// A missing file wraps domain.ErrConfigNotFound.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(cfg)
	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	b := c.Backtest
	if b.Exchange == "" {
		return &domain.ConfigError{Field: "backtest.exchange", Err: domain.ErrInvalidSymbol}
	}
	if b.Symbol == "" {
		return &domain.ConfigError{Field: "backtest.symbol", Err: domain.ErrInvalidSymbol}
	}
	if b.Start.IsZero() || b.End.IsZero() || b.End.Before(b.Start) {
		return &domain.ConfigError{Field: "backtest.end", Err: domain.ErrInvalidTimeRange}
	}
	if b.TickIntervalMs <= 0 {
		return &domain.ConfigError{Field: "backtest.tick_interval_ms", Err: errors.New("must be positive")}
	}
	if b.WindowHorizonMs < MinWindowHorizonMs {
		return &domain.ConfigError{Field: "backtest.window_horizon_ms", Err: fmt.Errorf("must be at least %d", MinWindowHorizonMs)}
	}
	if b.MarkoutHorizonMs <= 0 {
		return &domain.ConfigError{Field: "backtest.markout_horizon_ms", Err: errors.New("must be positive")}
	}

	r := c.Risk
	if !r.OrderSize.IsPositive() {
		return &domain.ConfigError{Field: "risk.order_size", Err: errors.New("must be positive")}
	}
	if r.BaseSpreadBps.IsNegative() || r.MinRequoteBps.IsNegative() || r.MaxPosition.IsNegative() {
		return &domain.ConfigError{Field: "risk", Err: errors.New("bps and position limits must not be negative")}
	}
	if r.RefreshIntervalMs < 0 || r.StaleCancelMs < 0 || r.PauseCooldownMs < 0 || r.MinModeDurationMs < 0 {
		return &domain.ConfigError{Field: "risk", Err: errors.New("durations must not be negative")}
	}
	return nil
}

// ApplyEnv applies environment overrides when set.
func ApplyEnv(cfg *Config) {
	if path := os.Getenv("MMBT_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if level := os.Getenv("MMBT_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if out := os.Getenv("MMBT_REPORT_PATH"); out != "" {
		cfg.Backtest.ReportPath = out
	}
	if tick := os.Getenv("MMBT_TICK_MS"); tick != "" {
		if v, err := strconv.ParseInt(tick, 10, 64); err == nil {
			cfg.Backtest.TickIntervalMs = v
		}
	}
}
