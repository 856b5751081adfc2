package strategy

import (
	"math"

	"mm_backtest/internal/domain"
)

// Reason codes attached to risk assessments and, through them, to fills.
const (
	ReasonWideSpread         = "WIDE_SPREAD"
	ReasonHighVolatility     = "HIGH_VOLATILITY"
	ReasonLiquidationBurst   = "LIQUIDATION_BURST"
	ReasonElevatedVolatility = "ELEVATED_VOLATILITY"
	ReasonOneSidedFlow       = "ONE_SIDED_FLOW"
	ReasonInventoryLimit     = "INVENTORY_LIMIT"
	ReasonPauseCooldown      = "PAUSE_COOLDOWN"
	ReasonModeDwell          = "MODE_DWELL"
)

const (
	oneSidedImbalance = 0.8
	oneSidedMinTrades = 5

	// Once out of NORMAL, volatility must fall below this fraction of the
	// defensive threshold before NORMAL is recommended again.
	volatilityHysteresis = 0.8
)

// RiskAssessment is the outcome of EvaluateRisk.
type RiskAssessment struct {
	ShouldPause     bool
	RecommendedMode domain.Mode
	ReasonCodes     []string
}

// EvaluateRisk maps market conditions to a recommended mode. Pause
// conditions take precedence over defensive ones.
func EvaluateRisk(snap domain.MarketSnapshot, f domain.Features, p domain.RiskParams, mode domain.Mode) RiskAssessment {
	var pause, defensive []string

	if !snap.BestBid.IsPositive() || !snap.BestAsk.IsPositive() || snap.BestAsk.LessThan(snap.BestBid) {
		pause = append(pause, ReasonWideSpread)
	} else if p.MaxSpreadBps > 0 && f.SpreadBps > p.MaxSpreadBps {
		pause = append(pause, ReasonWideSpread)
	}
	if p.MaxVolatilityBps > 0 && f.VolatilityBps > p.MaxVolatilityBps {
		pause = append(pause, ReasonHighVolatility)
	}
	if p.LiquidationPauseCount > 0 && f.Liquidations >= p.LiquidationPauseCount {
		pause = append(pause, ReasonLiquidationBurst)
	}
	if len(pause) > 0 {
		return RiskAssessment{ShouldPause: true, RecommendedMode: domain.ModePause, ReasonCodes: pause}
	}

	defensiveVol := p.DefensiveVolatilityBps
	if mode != domain.ModeNormal {
		defensiveVol *= volatilityHysteresis
	}
	if defensiveVol > 0 && f.VolatilityBps > defensiveVol {
		defensive = append(defensive, ReasonElevatedVolatility)
	}
	if f.TradeCount10s >= oneSidedMinTrades && math.Abs(f.Imbalance10s) >= oneSidedImbalance {
		defensive = append(defensive, ReasonOneSidedFlow)
	}
	if len(defensive) > 0 {
		return RiskAssessment{RecommendedMode: domain.ModeDefensive, ReasonCodes: defensive}
	}

	return RiskAssessment{RecommendedMode: domain.ModeNormal}
}

// severity orders modes from least to most restrictive.
func severity(m domain.Mode) int {
	switch m {
	case domain.ModePause:
		return 2
	case domain.ModeDefensive:
		return 1
	default:
		return 0
	}
}
