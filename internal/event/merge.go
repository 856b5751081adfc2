package event

import (
	"cmp"
	"slices"

	"mm_backtest/internal/domain"
)

// Merge flattens quotes, trades and price updates into one stream sorted
// ascending by timestamp.
//
// The sort is stable: records sharing a timestamp keep their order within
// their source slice. Cross-source ties resolve quote, then trade, then price,
// which is fixed for a given input.
func Merge(data *domain.MarketData) []Event {
	if data == nil {
		return nil
	}

	events := make([]Event, 0, len(data.Quotes)+len(data.Trades)+len(data.Prices))
	for _, q := range data.Quotes {
		events = append(events, QuoteEvent(q))
	}
	for _, t := range data.Trades {
		events = append(events, TradeEvent(t))
	}
	for _, p := range data.Prices {
		events = append(events, PriceEvent(p))
	}

	slices.SortStableFunc(events, func(a, b Event) int {
		return cmp.Compare(a.TsMs, b.TsMs)
	})
	return events
}

// TimeRange returns the first and last timestamps of a merged stream.
// ok is false for an empty stream.
func TimeRange(events []Event) (startMs, endMs int64, ok bool) {
	if len(events) == 0 {
		return 0, 0, false
	}
	return events[0].TsMs, events[len(events)-1].TsMs, true
}
