package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order or fill.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide accepts "buy"/"sell" in any case, plus the "bid"/"ask" aliases
// used by some trade feeds.
func ParseSide(s string) (Side, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "BID", "B":
		return SideBuy, true
	case "SELL", "ASK", "S":
		return SideSell, true
	default:
		return "", false
	}
}

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() decimal.Decimal {
	if s == SideSell {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// SyntheticOrder is one side of the simulated resting quote.
type SyntheticOrder struct {
	ID          string          `json:"id"`
	Side        Side            `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Size        decimal.Decimal `json:"size"`
	CreatedAtMs int64           `json:"created_at"`
}

// AgeMs returns how long the order has been resting at nowMs.
func (o *SyntheticOrder) AgeMs(nowMs int64) int64 {
	return nowMs - o.CreatedAtMs
}

// SimulatedFill is an append-only record of a synthetic maker execution.
// Price is always the resting order's price, never the trade price.
type SimulatedFill struct {
	TsMs        int64           `json:"ts"`
	OrderID     string          `json:"order_id"`
	Side        Side            `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Size        decimal.Decimal `json:"size"`
	MidAtFill   decimal.Decimal `json:"mid_at_fill"`
	Mode        Mode            `json:"mode"`
	ReasonCodes []string        `json:"reason_codes"`
}

// SignedSize is +Size for buys and -Size for sells.
func (f SimulatedFill) SignedSize() decimal.Decimal {
	return f.Size.Mul(f.Side.Sign())
}

// EnrichedFill is a fill plus its forward markout. MidAtHorizon and
// MarkoutBps are nil when no forward quote exists.
type EnrichedFill struct {
	SimulatedFill
	MidAtHorizon *decimal.Decimal `json:"mid_at_horizon"`
	MarkoutBps   *decimal.Decimal `json:"markout_bps"`
}

// IntentKind distinguishes quote intents from cancel-all intents.
type IntentKind int

const (
	IntentQuote IntentKind = iota + 1
	IntentCancelAll
)

// String returns the string representation of IntentKind
func (k IntentKind) String() string {
	switch k {
	case IntentQuote:
		return "QUOTE"
	case IntentCancelAll:
		return "CANCEL_ALL"
	default:
		return "UNKNOWN"
	}
}

// OrderIntent is what the decision function wants on the book.
type OrderIntent struct {
	Kind     IntentKind
	BidPrice decimal.Decimal
	AskPrice decimal.Decimal
	Size     decimal.Decimal
}

// QuoteIntent builds a two-sided quote intent.
func QuoteIntent(bid, ask, size decimal.Decimal) OrderIntent {
	return OrderIntent{Kind: IntentQuote, BidPrice: bid, AskPrice: ask, Size: size}
}

// CancelAllIntent builds a cancel-everything intent.
func CancelAllIntent() OrderIntent {
	return OrderIntent{Kind: IntentCancelAll}
}
