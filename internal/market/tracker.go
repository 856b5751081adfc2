package market

import (
	"sort"

	"mm_backtest/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultHorizonMs is how long trades and mid samples are retained.
const DefaultHorizonMs int64 = 10_000

// MidPrecision is the number of decimal places of MidPrice.
const MidPrecision = 8

var two = decimal.NewFromInt(2)

// Tracker is the incremental view of what is known about one market at the
// current simulated time. It is owned by a single goroutine; no locking.
//
// Windows are kept in arrival order. Events are applied in timestamp order,
// so both windows are sorted by timestamp.
type Tracker struct {
	exchange string
	symbol   string

	bestBid     decimal.Decimal
	bestBidSize decimal.Decimal
	bestAsk     decimal.Decimal
	bestAskSize decimal.Decimal
	markPrice   decimal.NullDecimal
	indexPrice  decimal.NullDecimal

	lastUpdateMs int64
	quoteSeen    bool

	horizonMs int64
	trades    []domain.Trade
	mids      []domain.MidSample
}

// NewTracker creates a tracker. A non-positive horizon selects DefaultHorizonMs.
func NewTracker(exchange, symbol string, horizonMs int64) *Tracker {
	if horizonMs <= 0 {
		horizonMs = DefaultHorizonMs
	}
	return &Tracker{
		exchange:  exchange,
		symbol:    symbol,
		horizonMs: horizonMs,
	}
}

// HorizonMs returns the retention horizon.
func (t *Tracker) HorizonMs() int64 {
	return t.horizonMs
}

// ApplyQuoteUpdate replaces the BBO and records the quote's own mid.
func (t *Tracker) ApplyQuoteUpdate(q domain.Quote) {
	t.bestBid = q.BidPrice
	t.bestBidSize = q.BidSize
	t.bestAsk = q.AskPrice
	t.bestAskSize = q.AskSize
	t.quoteSeen = true
	t.advance(q.TsMs)
	t.mids = append(t.mids, domain.MidSample{TsMs: q.TsMs, Mid: q.Mid})
}

// ApplyTrade appends a trade to the trade window.
func (t *Tracker) ApplyTrade(tr domain.Trade) {
	t.trades = append(t.trades, tr)
}

// ApplyPriceUpdate updates mark and/or index price. Absent fields keep their
// previous value.
func (t *Tracker) ApplyPriceUpdate(p domain.PriceUpdate) {
	if p.MarkPrice.Valid {
		t.markPrice = p.MarkPrice
	}
	if p.IndexPrice.Valid {
		t.indexPrice = p.IndexPrice
	}
	t.advance(p.TsMs)
}

func (t *Tracker) advance(tsMs int64) {
	if tsMs > t.lastUpdateMs {
		t.lastUpdateMs = tsMs
	}
}

// Prune evicts window entries older than nowMs - horizon.
func (t *Tracker) Prune(nowMs int64) {
	cutoff := nowMs - t.horizonMs

	n := sort.Search(len(t.trades), func(i int) bool { return t.trades[i].TsMs >= cutoff })
	if n > 0 {
		t.trades = append(t.trades[:0], t.trades[n:]...)
	}

	n = sort.Search(len(t.mids), func(i int) bool { return t.mids[i].TsMs >= cutoff })
	if n > 0 {
		t.mids = append(t.mids[:0], t.mids[n:]...)
	}
}

// Snapshot returns the current BBO and mark/index as of nowMs.
func (t *Tracker) Snapshot(nowMs int64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		BestBid:      t.bestBid,
		BestBidSize:  t.bestBidSize,
		BestAsk:      t.bestAsk,
		BestAskSize:  t.bestAskSize,
		MarkPrice:    t.markPrice,
		IndexPrice:   t.indexPrice,
		LastUpdateMs: t.lastUpdateMs,
		NowMs:        nowMs,
		Exchange:     t.exchange,
		Symbol:       t.symbol,
	}
}

// TradesInWindow returns a copy of retained trades with timestamp >= nowMs - windowMs.
// windowMs may be narrower than the retention horizon.
func (t *Tracker) TradesInWindow(nowMs, windowMs int64) []domain.Trade {
	cutoff := nowMs - windowMs
	i := sort.Search(len(t.trades), func(i int) bool { return t.trades[i].TsMs >= cutoff })
	return append([]domain.Trade(nil), t.trades[i:]...)
}

// MidSamplesInWindow returns a copy of retained mid samples with timestamp >= nowMs - windowMs.
func (t *Tracker) MidSamplesInWindow(nowMs, windowMs int64) []domain.MidSample {
	cutoff := nowMs - windowMs
	i := sort.Search(len(t.mids), func(i int) bool { return t.mids[i].TsMs >= cutoff })
	return append([]domain.MidSample(nil), t.mids[i:]...)
}

// HasValidData reports whether a quote has been applied and both sides of
// the book are strictly positive.
func (t *Tracker) HasValidData() bool {
	return t.quoteSeen && t.bestBid.IsPositive() && t.bestAsk.IsPositive()
}

// MidPrice is (bestBid + bestAsk) / 2 rounded to MidPrecision places.
// Only meaningful when HasValidData is true.
func (t *Tracker) MidPrice() decimal.Decimal {
	return t.bestBid.Add(t.bestAsk).Div(two).Round(MidPrecision)
}

// MidPriceString is MidPrice formatted with exactly MidPrecision decimals.
func (t *Tracker) MidPriceString() string {
	return t.MidPrice().StringFixed(MidPrecision)
}
