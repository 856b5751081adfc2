package domain

import "github.com/shopspring/decimal"

// Mode is the strategy's risk posture.
type Mode string

const (
	ModeNormal    Mode = "NORMAL"
	ModeDefensive Mode = "DEFENSIVE"
	ModePause     Mode = "PAUSE"
)

// StrategyState is the decision function's memory. It is passed by value and
// replaced wholesale by each decision, never mutated in place by the engine.
type StrategyState struct {
	Mode         Mode  `json:"mode"`
	ModeSinceMs  int64 `json:"mode_since"`
	PauseUntilMs int64 `json:"pause_until"`
	LastQuoteMs  int64 `json:"last_quote"`
	HasLastQuote bool  `json:"has_last_quote"`
}

// WithLastQuote returns a copy of s that records a quote action at nowMs.
func (s StrategyState) WithLastQuote(nowMs int64) StrategyState {
	s.LastQuoteMs = nowMs
	s.HasLastQuote = true
	return s
}

// InitialStrategyState returns the state a run starts from.
func InitialStrategyState(nowMs int64) StrategyState {
	return StrategyState{Mode: ModeNormal, ModeSinceMs: nowMs}
}

// RiskParams configure both the decision function and the order planner.
type RiskParams struct {
	OrderSize                 decimal.Decimal `yaml:"order_size" json:"order_size"`
	BaseSpreadBps             decimal.Decimal `yaml:"base_spread_bps" json:"base_spread_bps"`
	DefensiveSpreadMultiplier decimal.Decimal `yaml:"defensive_spread_multiplier" json:"defensive_spread_multiplier"`
	InventorySkewBps          decimal.Decimal `yaml:"inventory_skew_bps" json:"inventory_skew_bps"`
	MaxPosition               decimal.Decimal `yaml:"max_position" json:"max_position"`

	MinRequoteBps     decimal.Decimal `yaml:"min_requote_bps" json:"min_requote_bps"`
	RefreshIntervalMs int64           `yaml:"refresh_interval_ms" json:"refresh_interval_ms"`
	StaleCancelMs     int64           `yaml:"stale_cancel_ms" json:"stale_cancel_ms"`

	MaxSpreadBps           float64 `yaml:"max_spread_bps" json:"max_spread_bps"`
	MaxVolatilityBps       float64 `yaml:"max_volatility_bps" json:"max_volatility_bps"`
	DefensiveVolatilityBps float64 `yaml:"defensive_volatility_bps" json:"defensive_volatility_bps"`
	LiquidationPauseCount  int     `yaml:"liquidation_pause_count" json:"liquidation_pause_count"`
	PauseCooldownMs        int64   `yaml:"pause_cooldown_ms" json:"pause_cooldown_ms"`
	MinModeDurationMs      int64   `yaml:"min_mode_duration_ms" json:"min_mode_duration_ms"`
}

// DefaultRiskParams returns conservative defaults.
func DefaultRiskParams() RiskParams {
	return RiskParams{
		OrderSize:                 decimal.RequireFromString("0.001"),
		BaseSpreadBps:             decimal.NewFromInt(5),
		DefensiveSpreadMultiplier: decimal.NewFromInt(2),
		InventorySkewBps:          decimal.NewFromInt(2),
		MaxPosition:               decimal.RequireFromString("0.01"),
		MinRequoteBps:             decimal.NewFromInt(1),
		RefreshIntervalMs:         1000,
		StaleCancelMs:             30_000,
		MaxSpreadBps:              50,
		MaxVolatilityBps:          40,
		DefensiveVolatilityBps:    15,
		LiquidationPauseCount:     3,
		PauseCooldownMs:           10_000,
		MinModeDurationMs:         2_000,
	}
}

// Features are the decision function's inputs derived from market state.
type Features struct {
	Snapshot      MarketSnapshot  `json:"snapshot"`
	NowMs         int64           `json:"now"`
	Mid           decimal.Decimal `json:"mid"`
	SpreadBps     float64         `json:"spread_bps"`
	VolatilityBps float64         `json:"volatility_bps"`

	TradeCount1s  int     `json:"trade_count_1s"`
	TradeCount10s int     `json:"trade_count_10s"`
	Volume1s      float64 `json:"volume_1s"`
	Volume10s     float64 `json:"volume_10s"`
	Imbalance10s  float64 `json:"imbalance_10s"` // (buy-sell)/(buy+sell) volume
	Liquidations  int     `json:"liquidations_10s"`

	MarkDeviationBps float64 `json:"mark_deviation_bps"`
}
