package report

import (
	"cmp"
	"slices"
	"sort"

	"mm_backtest/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultHorizonMs is the forward markout horizon.
const DefaultHorizonMs int64 = 10_000

var bps = decimal.NewFromInt(10_000)

// MidSeries is the historical quote mid series, sorted by timestamp.
type MidSeries struct {
	ts   []int64
	mids []decimal.Decimal
}

// NewMidSeries indexes quotes by timestamp. The input is not modified; a
// sorted copy is indexed, keeping recorded order for equal timestamps.
func NewMidSeries(quotes []domain.Quote) *MidSeries {
	sorted := slices.Clone(quotes)
	slices.SortStableFunc(sorted, func(a, b domain.Quote) int {
		return cmp.Compare(a.TsMs, b.TsMs)
	})

	s := &MidSeries{
		ts:   make([]int64, len(sorted)),
		mids: make([]decimal.Decimal, len(sorted)),
	}
	for i, q := range sorted {
		s.ts[i] = q.TsMs
		s.mids[i] = q.Mid
	}
	return s
}

// MidAt returns the latest mid with afterMs < ts <= atMs. There is no
// extrapolation and no nearest-after fallback.
func (s *MidSeries) MidAt(afterMs, atMs int64) (decimal.Decimal, bool) {
	i := sort.Search(len(s.ts), func(i int) bool { return s.ts[i] > atMs }) - 1
	if i < 0 || s.ts[i] <= afterMs {
		return decimal.Zero, false
	}
	return s.mids[i], true
}

// Enrich attaches the forward mid at fill time + horizonMs and the markout
// in bps to each fill. Positive markout means the fill was favourable.
func Enrich(fills []domain.SimulatedFill, series *MidSeries, horizonMs int64) []domain.EnrichedFill {
	out := make([]domain.EnrichedFill, 0, len(fills))
	for _, f := range fills {
		ef := domain.EnrichedFill{SimulatedFill: f}
		if mid, ok := series.MidAt(f.TsMs, f.TsMs+horizonMs); ok {
			ef.MidAtHorizon = &mid
			ef.MarkoutBps = MarkoutBps(f.Side, f.MidAtFill, mid)
		}
		out = append(out, ef)
	}
	return out
}

// MarkoutBps computes the signed forward drift: (h-t0)/t0 for buys and
// (t0-h)/t0 for sells, in bps. A zero reference mid yields nil.
func MarkoutBps(side domain.Side, midT0, midHorizon decimal.Decimal) *decimal.Decimal {
	if midT0.IsZero() {
		return nil
	}
	drift := midHorizon.Sub(midT0)
	if side == domain.SideSell {
		drift = drift.Neg()
	}
	m := drift.Div(midT0).Mul(bps)
	return &m
}

// AverageMarkout averages the non-nil markouts. It is nil when none exist.
func AverageMarkout(fills []domain.EnrichedFill) *decimal.Decimal {
	sum := decimal.Zero
	n := 0
	for _, f := range fills {
		if f.MarkoutBps == nil {
			continue
		}
		sum = sum.Add(*f.MarkoutBps)
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum.Div(decimal.NewFromInt(int64(n)))
	return &avg
}
