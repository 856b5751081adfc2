package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"mm_backtest/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const batchSize = 500

// Storage is the SQLite-backed market data repository and run store.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite database at path. An empty path
// selects DefaultDBPath.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		var err error
		path, err = DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows a single writer; serialize access across concurrent runs.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		return nil, err
	}
	return &Storage{db: db}, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&quoteRow{}, &tradeRow{}, &priceRow{}, &runRow{}, &fillRow{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// DefaultDBPath resolves the database file path based on OS
func DefaultDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "MMBacktest", "data", "marketdata.db"), nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Market Data
// ======================================================================================

// Load returns all quotes, trades and price updates for exchange/symbol with
// startMs <= ts <= endMs. Each series is ordered by timestamp, then by
// insertion order, so same-timestamp records keep their recorded order.
func (s *Storage) Load(ctx context.Context, exchange, symbol string, startMs, endMs int64) (*domain.MarketData, error) {
	db := s.db.WithContext(ctx).
		Where("exchange = ? AND symbol = ? AND ts_ms BETWEEN ? AND ?", exchange, symbol, startMs, endMs).
		Order("ts_ms ASC, id ASC").
		Session(&gorm.Session{})

	var quotes []quoteRow
	if err := db.Find(&quotes).Error; err != nil {
		return nil, domain.NewDataError("load quotes", err)
	}
	var trades []tradeRow
	if err := db.Find(&trades).Error; err != nil {
		return nil, domain.NewDataError("load trades", err)
	}
	var prices []priceRow
	if err := db.Find(&prices).Error; err != nil {
		return nil, domain.NewDataError("load prices", err)
	}

	data := &domain.MarketData{
		Quotes: make([]domain.Quote, 0, len(quotes)),
		Trades: make([]domain.Trade, 0, len(trades)),
		Prices: make([]domain.PriceUpdate, 0, len(prices)),
	}
	for _, r := range quotes {
		data.Quotes = append(data.Quotes, r.toDomain())
	}
	for _, r := range trades {
		data.Trades = append(data.Trades, r.toDomain())
	}
	for _, r := range prices {
		data.Prices = append(data.Prices, r.toDomain())
	}
	return data, nil
}

// SaveQuotes appends quote records.
func (s *Storage) SaveQuotes(ctx context.Context, exchange, symbol string, quotes []domain.Quote) error {
	if len(quotes) == 0 {
		return nil
	}
	rows := make([]quoteRow, 0, len(quotes))
	for _, q := range quotes {
		rows = append(rows, newQuoteRow(exchange, symbol, q))
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, batchSize).Error; err != nil {
		return domain.NewDataError("save quotes", err)
	}
	return nil
}

// SaveTrades appends trade records.
func (s *Storage) SaveTrades(ctx context.Context, exchange, symbol string, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	rows := make([]tradeRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, newTradeRow(exchange, symbol, t))
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, batchSize).Error; err != nil {
		return domain.NewDataError("save trades", err)
	}
	return nil
}

// SavePrices appends mark/index price records.
func (s *Storage) SavePrices(ctx context.Context, exchange, symbol string, prices []domain.PriceUpdate) error {
	if len(prices) == 0 {
		return nil
	}
	rows := make([]priceRow, 0, len(prices))
	for _, p := range prices {
		rows = append(rows, newPriceRow(exchange, symbol, p))
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, batchSize).Error; err != nil {
		return domain.NewDataError("save prices", err)
	}
	return nil
}

// ======================================================================================
// Runs
// ======================================================================================

// SaveRun stores a run summary and its enriched fills atomically.
func (s *Storage) SaveRun(ctx context.Context, run *domain.RunSummary, fills []domain.EnrichedFill) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(newRunRow(run)).Error; err != nil {
			return err
		}
		if len(fills) == 0 {
			return nil
		}
		rows := make([]fillRow, 0, len(fills))
		for _, f := range fills {
			rows = append(rows, newFillRow(run.RunID, f))
		}
		return tx.CreateInBatches(rows, batchSize).Error
	})
	if err != nil {
		return domain.NewDataError("save run", err)
	}
	return nil
}

// GetRun retrieves a run summary by id. A missing run is not an error.
func (s *Storage) GetRun(ctx context.Context, runID string) (*domain.RunSummary, error) {
	var row runRow
	err := s.db.WithContext(ctx).First(&row, "run_id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, domain.NewDataError("get run", err)
	}
	return row.toDomain(), nil
}

// GetRunFills retrieves the enriched fills of a run in fill order.
func (s *Storage) GetRunFills(ctx context.Context, runID string) ([]domain.EnrichedFill, error) {
	var rows []fillRow
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, domain.NewDataError("get run fills", err)
	}
	fills := make([]domain.EnrichedFill, 0, len(rows))
	for _, r := range rows {
		fills = append(fills, r.toDomain())
	}
	return fills, nil
}
