package domain

import "context"

// MarketDataLoader loads every record needed for a run, once, up front.
type MarketDataLoader interface {
	Load(ctx context.Context, exchange, symbol string, startMs, endMs int64) (*MarketData, error)
}

// RunSink persists the outcome of a run.
type RunSink interface {
	SaveRun(ctx context.Context, run *RunSummary, fills []EnrichedFill) error
}
