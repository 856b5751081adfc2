package storage

import (
	"strings"
	"time"

	"mm_backtest/internal/domain"

	"github.com/shopspring/decimal"
)

const reasonSeparator = "|"

type quoteRow struct {
	ID       uint            `gorm:"primaryKey"`
	Exchange string          `gorm:"index:idx_quotes_key,priority:1;not null"`
	Symbol   string          `gorm:"index:idx_quotes_key,priority:2;not null"`
	TsMs     int64           `gorm:"index:idx_quotes_key,priority:3;not null"`
	BidPrice decimal.Decimal `gorm:"type:text;not null"`
	BidSize  decimal.Decimal `gorm:"type:text;not null"`
	AskPrice decimal.Decimal `gorm:"type:text;not null"`
	AskSize  decimal.Decimal `gorm:"type:text;not null"`
	Mid      decimal.Decimal `gorm:"type:text;not null"`
}

func (quoteRow) TableName() string { return "quotes" }

func newQuoteRow(exchange, symbol string, q domain.Quote) quoteRow {
	return quoteRow{
		Exchange: exchange,
		Symbol:   symbol,
		TsMs:     q.TsMs,
		BidPrice: q.BidPrice,
		BidSize:  q.BidSize,
		AskPrice: q.AskPrice,
		AskSize:  q.AskSize,
		Mid:      q.Mid,
	}
}

// toDomain derives the mid from the BBO when the source did not record one.
func (r quoteRow) toDomain() domain.Quote {
	mid := r.Mid
	if mid.IsZero() {
		mid = r.BidPrice.Add(r.AskPrice).Div(decimal.NewFromInt(2))
	}
	return domain.Quote{
		TsMs:     r.TsMs,
		BidPrice: r.BidPrice,
		BidSize:  r.BidSize,
		AskPrice: r.AskPrice,
		AskSize:  r.AskSize,
		Mid:      mid,
	}
}

type tradeRow struct {
	ID            uint            `gorm:"primaryKey"`
	Exchange      string          `gorm:"index:idx_trades_key,priority:1;not null"`
	Symbol        string          `gorm:"index:idx_trades_key,priority:2;not null"`
	TsMs          int64           `gorm:"index:idx_trades_key,priority:3;not null"`
	Price         decimal.Decimal `gorm:"type:text;not null"`
	Size          decimal.Decimal `gorm:"type:text;not null"`
	Side          string          `gorm:"size:4;not null"`
	IsLiquidation bool
}

func (tradeRow) TableName() string { return "trades" }

func newTradeRow(exchange, symbol string, t domain.Trade) tradeRow {
	return tradeRow{
		Exchange:      exchange,
		Symbol:        symbol,
		TsMs:          t.TsMs,
		Price:         t.Price,
		Size:          t.Size,
		Side:          string(t.Side),
		IsLiquidation: t.IsLiquidation,
	}
}

func (r tradeRow) toDomain() domain.Trade {
	side, _ := domain.ParseSide(r.Side)
	return domain.Trade{
		TsMs:          r.TsMs,
		Price:         r.Price,
		Size:          r.Size,
		Side:          side,
		IsLiquidation: r.IsLiquidation,
	}
}

type priceRow struct {
	ID         uint                `gorm:"primaryKey"`
	Exchange   string              `gorm:"index:idx_prices_key,priority:1;not null"`
	Symbol     string              `gorm:"index:idx_prices_key,priority:2;not null"`
	TsMs       int64               `gorm:"index:idx_prices_key,priority:3;not null"`
	MarkPrice  decimal.NullDecimal `gorm:"type:text"`
	IndexPrice decimal.NullDecimal `gorm:"type:text"`
}

func (priceRow) TableName() string { return "prices" }

func newPriceRow(exchange, symbol string, p domain.PriceUpdate) priceRow {
	return priceRow{
		Exchange:   exchange,
		Symbol:     symbol,
		TsMs:       p.TsMs,
		MarkPrice:  p.MarkPrice,
		IndexPrice: p.IndexPrice,
	}
}

func (r priceRow) toDomain() domain.PriceUpdate {
	return domain.PriceUpdate{TsMs: r.TsMs, MarkPrice: r.MarkPrice, IndexPrice: r.IndexPrice}
}

type runRow struct {
	RunID          string `gorm:"primaryKey"`
	Exchange       string `gorm:"index"`
	Symbol         string `gorm:"index"`
	StartMs        int64
	EndMs          int64
	TickIntervalMs int64
	HorizonMs      int64
	TotalFills     int
	TotalCancels   int
	PauseCount     int
	AvgMarkoutBps  decimal.NullDecimal `gorm:"type:text"`
	FinalPosition  decimal.Decimal     `gorm:"type:text"`
	DataStartMs    int64
	DataEndMs      int64
	EventsApplied  int
	Ticks          int
	SkippedTicks   int
	CreatedAt      time.Time
}

func (runRow) TableName() string { return "runs" }

func newRunRow(run *domain.RunSummary) *runRow {
	row := &runRow{
		RunID:          run.RunID,
		Exchange:       run.Exchange,
		Symbol:         run.Symbol,
		StartMs:        run.StartMs,
		EndMs:          run.EndMs,
		TickIntervalMs: run.TickIntervalMs,
		HorizonMs:      run.HorizonMs,
		TotalFills:     run.TotalFills,
		TotalCancels:   run.TotalCancels,
		PauseCount:     run.PauseCount,
		FinalPosition:  run.FinalPosition,
		DataStartMs:    run.DataStartMs,
		DataEndMs:      run.DataEndMs,
		EventsApplied:  run.EventsApplied,
		Ticks:          run.Ticks,
		SkippedTicks:   run.SkippedTicks,
		CreatedAt:      run.CreatedAt,
	}
	if run.AvgMarkoutBps != nil {
		row.AvgMarkoutBps = decimal.NewNullDecimal(*run.AvgMarkoutBps)
	}
	return row
}

func (r runRow) toDomain() *domain.RunSummary {
	run := &domain.RunSummary{
		RunID:          r.RunID,
		Exchange:       r.Exchange,
		Symbol:         r.Symbol,
		StartMs:        r.StartMs,
		EndMs:          r.EndMs,
		TickIntervalMs: r.TickIntervalMs,
		HorizonMs:      r.HorizonMs,
		TotalFills:     r.TotalFills,
		TotalCancels:   r.TotalCancels,
		PauseCount:     r.PauseCount,
		FinalPosition:  r.FinalPosition,
		DataStartMs:    r.DataStartMs,
		DataEndMs:      r.DataEndMs,
		EventsApplied:  r.EventsApplied,
		Ticks:          r.Ticks,
		SkippedTicks:   r.SkippedTicks,
		CreatedAt:      r.CreatedAt,
	}
	if r.AvgMarkoutBps.Valid {
		avg := r.AvgMarkoutBps.Decimal
		run.AvgMarkoutBps = &avg
	}
	return run
}

type fillRow struct {
	ID           uint   `gorm:"primaryKey"`
	RunID        string `gorm:"index;not null"`
	TsMs         int64
	OrderID      string
	Side         string
	Price        decimal.Decimal     `gorm:"type:text"`
	Size         decimal.Decimal     `gorm:"type:text"`
	MidAtFill    decimal.Decimal     `gorm:"type:text"`
	MidAtHorizon decimal.NullDecimal `gorm:"type:text"`
	MarkoutBps   decimal.NullDecimal `gorm:"type:text"`
	Mode         string
	ReasonCodes  string
}

func (fillRow) TableName() string { return "run_fills" }

func newFillRow(runID string, f domain.EnrichedFill) fillRow {
	row := fillRow{
		RunID:       runID,
		TsMs:        f.TsMs,
		OrderID:     f.OrderID,
		Side:        string(f.Side),
		Price:       f.Price,
		Size:        f.Size,
		MidAtFill:   f.MidAtFill,
		Mode:        string(f.Mode),
		ReasonCodes: strings.Join(f.ReasonCodes, reasonSeparator),
	}
	if f.MidAtHorizon != nil {
		row.MidAtHorizon = decimal.NewNullDecimal(*f.MidAtHorizon)
	}
	if f.MarkoutBps != nil {
		row.MarkoutBps = decimal.NewNullDecimal(*f.MarkoutBps)
	}
	return row
}

func (r fillRow) toDomain() domain.EnrichedFill {
	side, _ := domain.ParseSide(r.Side)
	f := domain.EnrichedFill{
		SimulatedFill: domain.SimulatedFill{
			TsMs:      r.TsMs,
			OrderID:   r.OrderID,
			Side:      side,
			Price:     r.Price,
			Size:      r.Size,
			MidAtFill: r.MidAtFill,
			Mode:      domain.Mode(r.Mode),
		},
	}
	if r.ReasonCodes != "" {
		f.ReasonCodes = strings.Split(r.ReasonCodes, reasonSeparator)
	}
	if r.MidAtHorizon.Valid {
		mid := r.MidAtHorizon.Decimal
		f.MidAtHorizon = &mid
	}
	if r.MarkoutBps.Valid {
		m := r.MarkoutBps.Decimal
		f.MarkoutBps = &m
	}
	return f
}
