package domain

import "github.com/shopspring/decimal"

// Quote is one top-of-book update. Mid is supplied by the quote source.
type Quote struct {
	TsMs     int64           `json:"ts"`
	BidPrice decimal.Decimal `json:"bid_price"`
	BidSize  decimal.Decimal `json:"bid_size"`
	AskPrice decimal.Decimal `json:"ask_price"`
	AskSize  decimal.Decimal `json:"ask_size"`
	Mid      decimal.Decimal `json:"mid"`
}

// Trade is one public trade print.
type Trade struct {
	TsMs          int64           `json:"ts"`
	Price         decimal.Decimal `json:"price"`
	Size          decimal.Decimal `json:"size"`
	Side          Side            `json:"side"` // aggressor side
	IsLiquidation bool            `json:"is_liquidation"`
}

// PriceUpdate carries mark and/or index price. Either may be absent.
type PriceUpdate struct {
	TsMs       int64               `json:"ts"`
	MarkPrice  decimal.NullDecimal `json:"mark_price"`
	IndexPrice decimal.NullDecimal `json:"index_price"`
}

// MidSample is a mid price observation kept for volatility features.
type MidSample struct {
	TsMs int64           `json:"ts"`
	Mid  decimal.Decimal `json:"mid"`
}

// MarketData is the full historical input of one run.
type MarketData struct {
	Quotes []Quote
	Trades []Trade
	Prices []PriceUpdate
}

// MarketSnapshot is the market state as of a given tick.
type MarketSnapshot struct {
	BestBid      decimal.Decimal     `json:"best_bid"`
	BestBidSize  decimal.Decimal     `json:"best_bid_size"`
	BestAsk      decimal.Decimal     `json:"best_ask"`
	BestAskSize  decimal.Decimal     `json:"best_ask_size"`
	MarkPrice    decimal.NullDecimal `json:"mark_price"`
	IndexPrice   decimal.NullDecimal `json:"index_price"`
	LastUpdateMs int64               `json:"last_update"`
	NowMs        int64               `json:"now"`

	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
}

// Mid returns the arithmetic mean of best bid and best ask.
func (s MarketSnapshot) Mid() decimal.Decimal {
	return s.BestBid.Add(s.BestAsk).Div(decimal.NewFromInt(2))
}
