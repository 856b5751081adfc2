package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunSummary is the aggregate outcome of one backtest run.
type RunSummary struct {
	RunID          string           `json:"run_id"`
	Exchange       string           `json:"exchange"`
	Symbol         string           `json:"symbol"`
	StartMs        int64            `json:"start"`
	EndMs          int64            `json:"end"`
	TickIntervalMs int64            `json:"tick_interval_ms"`
	HorizonMs      int64            `json:"markout_horizon_ms"`
	TotalFills     int              `json:"total_fills"`
	TotalCancels   int              `json:"total_cancels"`
	PauseCount     int              `json:"pause_transitions"`
	AvgMarkoutBps  *decimal.Decimal `json:"avg_markout_bps"`
	FinalPosition  decimal.Decimal  `json:"final_position"`
	DataStartMs    int64            `json:"data_start"`
	DataEndMs      int64            `json:"data_end"`
	EventsApplied  int              `json:"events_applied"`
	Ticks          int              `json:"ticks"`
	SkippedTicks   int              `json:"skipped_ticks"`
	CreatedAt      time.Time        `json:"created_at"`
}
