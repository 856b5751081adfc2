package strategy

import (
	"math"

	"mm_backtest/internal/domain"

	"github.com/shopspring/decimal"
)

var bps = decimal.NewFromInt(10_000)

// ComputeFeatures is the reference feature set.
func ComputeFeatures(in FeatureInput) domain.Features {
	snap := in.Snapshot
	mid := snap.Mid()

	f := domain.Features{
		Snapshot:      snap,
		NowMs:         snap.NowMs,
		Mid:           mid,
		TradeCount1s:  len(in.Trades1s),
		TradeCount10s: len(in.Trades10s),
		Volume1s:      volume(in.Trades1s),
		Volume10s:     volume(in.Trades10s),
		VolatilityBps: volatilityBps(in.Mids10s),
	}

	if mid.IsPositive() {
		f.SpreadBps = snap.BestAsk.Sub(snap.BestBid).Div(mid).Mul(bps).InexactFloat64()
		if snap.MarkPrice.Valid {
			f.MarkDeviationBps = snap.MarkPrice.Decimal.Sub(mid).Div(mid).Mul(bps).InexactFloat64()
		}
	}

	var buyVol, sellVol float64
	for _, tr := range in.Trades10s {
		size := tr.Size.InexactFloat64()
		if tr.Side == domain.SideBuy {
			buyVol += size
		} else {
			sellVol += size
		}
		if tr.IsLiquidation {
			f.Liquidations++
		}
	}
	if total := buyVol + sellVol; total > 0 {
		f.Imbalance10s = (buyVol - sellVol) / total
	}
	return f
}

func volume(trades []domain.Trade) float64 {
	sum := decimal.Zero
	for _, tr := range trades {
		sum = sum.Add(tr.Size)
	}
	return sum.InexactFloat64()
}

// volatilityBps is the sample standard deviation of consecutive log mid
// returns, in bps. Fewer than three samples yield zero.
func volatilityBps(mids []domain.MidSample) float64 {
	if len(mids) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(mids)-1)
	for i := 1; i < len(mids); i++ {
		prev, cur := mids[i-1].Mid.InexactFloat64(), mids[i].Mid.InexactFloat64()
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	return math.Sqrt(ss/float64(len(returns)-1)) * 10_000
}
