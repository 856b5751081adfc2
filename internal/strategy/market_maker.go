package strategy

import (
	"mm_backtest/internal/domain"

	"github.com/shopspring/decimal"
)

const pricePrecision = 8

var two = decimal.NewFromInt(2)

// MarketMaker is the reference two-sided quoting strategy. It holds no state
// of its own; everything it remembers lives in domain.StrategyState.
type MarketMaker struct{}

// NewMarketMaker creates the reference strategy.
func NewMarketMaker() *MarketMaker {
	return &MarketMaker{}
}

// ComputeFeatures implements Strategy.
func (m *MarketMaker) ComputeFeatures(in FeatureInput) domain.Features {
	return ComputeFeatures(in)
}

// Decide implements Strategy.
//
// Escalation to a more restrictive mode is immediate. Relaxation waits for
// the pause cooldown and the minimum mode dwell time.
func (m *MarketMaker) Decide(nowMs int64, state domain.StrategyState, f domain.Features, p domain.RiskParams, position decimal.Decimal) Decision {
	assess := EvaluateRisk(f.Snapshot, f, p, state.Mode)
	reasons := append([]string(nil), assess.ReasonCodes...)

	target := assess.RecommendedMode
	atLimit := p.MaxPosition.IsPositive() && position.Abs().GreaterThanOrEqual(p.MaxPosition)
	if atLimit {
		reasons = append(reasons, ReasonInventoryLimit)
		if severity(target) < severity(domain.ModeDefensive) {
			target = domain.ModeDefensive
		}
	}

	if severity(target) < severity(state.Mode) {
		switch {
		case state.Mode == domain.ModePause && nowMs < state.PauseUntilMs:
			target = state.Mode
			reasons = append(reasons, ReasonPauseCooldown)
		case nowMs-state.ModeSinceMs < p.MinModeDurationMs:
			target = state.Mode
			reasons = append(reasons, ReasonModeDwell)
		}
	}

	next := state
	if target != state.Mode {
		next.Mode = target
		next.ModeSinceMs = nowMs
	}
	if assess.ShouldPause {
		next.PauseUntilMs = nowMs + p.PauseCooldownMs
	}

	if next.Mode == domain.ModePause {
		return Decision{Next: next, Intents: []domain.OrderIntent{domain.CancelAllIntent()}, ReasonCodes: reasons}
	}

	bid, ask := quotePrices(f.Mid, next.Mode, p, position)
	return Decision{
		Next:        next,
		Intents:     []domain.OrderIntent{domain.QuoteIntent(bid, ask, p.OrderSize)},
		ReasonCodes: reasons,
	}
}

// quotePrices centres the quote on mid, widens it in DEFENSIVE mode and
// shifts both sides against inventory.
func quotePrices(mid decimal.Decimal, mode domain.Mode, p domain.RiskParams, position decimal.Decimal) (bid, ask decimal.Decimal) {
	spreadBps := p.BaseSpreadBps
	if mode == domain.ModeDefensive && p.DefensiveSpreadMultiplier.IsPositive() {
		spreadBps = spreadBps.Mul(p.DefensiveSpreadMultiplier)
	}
	half := mid.Mul(spreadBps).Div(bps).Div(two)

	skew := decimal.Zero
	if p.MaxPosition.IsPositive() && !position.IsZero() {
		ratio := position.Div(p.MaxPosition)
		if ratio.GreaterThan(decimal.NewFromInt(1)) {
			ratio = decimal.NewFromInt(1)
		} else if ratio.LessThan(decimal.NewFromInt(-1)) {
			ratio = decimal.NewFromInt(-1)
		}
		skew = mid.Mul(p.InventorySkewBps).Div(bps).Mul(ratio)
	}

	bid = mid.Sub(half).Sub(skew).Round(pricePrecision)
	ask = mid.Add(half).Sub(skew).Round(pricePrecision)
	return bid, ask
}
