package strategy

import (
	"mm_backtest/internal/domain"

	"github.com/shopspring/decimal"
)

// FeatureInput is everything feature computation may look at for one tick.
type FeatureInput struct {
	Snapshot  domain.MarketSnapshot
	Trades1s  []domain.Trade
	Trades10s []domain.Trade
	Mids10s   []domain.MidSample
	Params    domain.RiskParams
}

// Decision is the output of one decision call.
type Decision struct {
	Next        domain.StrategyState
	Intents     []domain.OrderIntent
	ReasonCodes []string
}

// Strategy is the interface that all quoting strategies must implement.
// It is called synchronously by the replay loop, once per valid tick, and
// must be a pure function of its arguments.
type Strategy interface {
	// ComputeFeatures derives decision inputs from market state.
	ComputeFeatures(in FeatureInput) domain.Features

	// Decide returns the next strategy state and the order intents.
	Decide(nowMs int64, state domain.StrategyState, f domain.Features, params domain.RiskParams, position decimal.Decimal) Decision
}
