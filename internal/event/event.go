package event

import "mm_backtest/internal/domain"

// Kind tags the payload carried by an Event.
type Kind uint8

const (
	KindQuote Kind = iota + 1
	KindTrade
	KindPrice
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindQuote:
		return "quote"
	case KindTrade:
		return "trade"
	case KindPrice:
		return "price"
	default:
		return "unknown"
	}
}

// Event is one timestamped market fact. Exactly one payload pointer is set,
// matching Kind. Events are immutable once merged.
type Event struct {
	TsMs  int64
	Kind  Kind
	Quote *domain.Quote
	Trade *domain.Trade
	Price *domain.PriceUpdate
}

// QuoteEvent tags a quote record.
func QuoteEvent(q domain.Quote) Event {
	return Event{TsMs: q.TsMs, Kind: KindQuote, Quote: &q}
}

// TradeEvent tags a trade record.
func TradeEvent(t domain.Trade) Event {
	return Event{TsMs: t.TsMs, Kind: KindTrade, Trade: &t}
}

// PriceEvent tags a mark/index price record.
func PriceEvent(p domain.PriceUpdate) Event {
	return Event{TsMs: p.TsMs, Kind: KindPrice, Price: &p}
}
