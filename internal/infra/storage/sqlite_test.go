package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mm_backtest/internal/domain"

	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestLoad_RangeAndOrder(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	quotes := []domain.Quote{
		{TsMs: 2_000, BidPrice: dec("100"), BidSize: dec("1"), AskPrice: dec("101"), AskSize: dec("1"), Mid: dec("100.5")},
		{TsMs: 1_000, BidPrice: dec("99"), BidSize: dec("1"), AskPrice: dec("100"), AskSize: dec("1"), Mid: dec("99.5")},
		{TsMs: 1_000, BidPrice: dec("98"), BidSize: dec("1"), AskPrice: dec("99"), AskSize: dec("1"), Mid: dec("98.5")},
		{TsMs: 9_000, BidPrice: dec("1"), BidSize: dec("1"), AskPrice: dec("2"), AskSize: dec("1"), Mid: dec("1.5")},
	}
	if err := s.SaveQuotes(ctx, "binance", "BTCUSDT", quotes); err != nil {
		t.Fatalf("SaveQuotes failed: %v", err)
	}
	// Another symbol must not leak into the result.
	if err := s.SaveQuotes(ctx, "binance", "ETHUSDT", quotes[:1]); err != nil {
		t.Fatalf("SaveQuotes failed: %v", err)
	}

	data, err := s.Load(ctx, "binance", "BTCUSDT", 1_000, 2_000)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(data.Quotes) != 3 {
		t.Fatalf("expected 3 quotes, got %d", len(data.Quotes))
	}

	// Same-timestamp records keep insertion order.
	wantBids := []string{"99", "98", "100"}
	for i, want := range wantBids {
		if !data.Quotes[i].BidPrice.Equal(dec(want)) {
			t.Errorf("quote %d: expected bid %s, got %s", i, want, data.Quotes[i].BidPrice)
		}
	}
}

func TestLoad_DerivesMissingMid(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	q := domain.Quote{TsMs: 1_000, BidPrice: dec("100"), BidSize: dec("1"), AskPrice: dec("102"), AskSize: dec("2")}
	if err := s.SaveQuotes(ctx, "x", "y", []domain.Quote{q}); err != nil {
		t.Fatalf("SaveQuotes failed: %v", err)
	}

	data, err := s.Load(ctx, "x", "y", 0, 10_000)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := data.Quotes[0].Mid; !got.Equal(dec("101")) {
		t.Errorf("expected derived mid 101, got %s", got)
	}
}

func TestLoad_TradesAndPrices(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	trades := []domain.Trade{
		{TsMs: 1_500, Price: dec("100.5"), Size: dec("0.2"), Side: domain.SideSell, IsLiquidation: true},
		{TsMs: 1_200, Price: dec("100.4"), Size: dec("0.1"), Side: domain.SideBuy},
	}
	prices := []domain.PriceUpdate{
		{TsMs: 1_100, MarkPrice: decimal.NewNullDecimal(dec("100.45"))},
	}
	if err := s.SaveTrades(ctx, "x", "y", trades); err != nil {
		t.Fatalf("SaveTrades failed: %v", err)
	}
	if err := s.SavePrices(ctx, "x", "y", prices); err != nil {
		t.Fatalf("SavePrices failed: %v", err)
	}

	data, err := s.Load(ctx, "x", "y", 0, 10_000)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(data.Trades) != 2 || data.Trades[0].TsMs != 1_200 {
		t.Fatalf("unexpected trades: %+v", data.Trades)
	}
	if data.Trades[1].Side != domain.SideSell || !data.Trades[1].IsLiquidation {
		t.Errorf("trade fields not preserved: %+v", data.Trades[1])
	}
	if len(data.Prices) != 1 {
		t.Fatalf("expected 1 price update, got %d", len(data.Prices))
	}
	p := data.Prices[0]
	if !p.MarkPrice.Valid || !p.MarkPrice.Decimal.Equal(dec("100.45")) {
		t.Errorf("unexpected mark price: %+v", p.MarkPrice)
	}
	if p.IndexPrice.Valid {
		t.Error("index price should stay null")
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	avg := dec("12.5")
	run := &domain.RunSummary{
		RunID:          "run-1",
		Exchange:       "binance",
		Symbol:         "BTCUSDT",
		StartMs:        0,
		EndMs:          60_000,
		TickIntervalMs: 200,
		HorizonMs:      10_000,
		TotalFills:     2,
		TotalCancels:   5,
		PauseCount:     1,
		AvgMarkoutBps:  &avg,
		FinalPosition:  dec("-0.001"),
		CreatedAt:      time.UnixMilli(1_700_000_000_000).UTC(),
	}
	mk := dec("25")
	fwd := dec("100.25")
	fills := []domain.EnrichedFill{
		{
			SimulatedFill: domain.SimulatedFill{
				TsMs: 1_000, OrderID: "a", Side: domain.SideBuy, Price: dec("100"), Size: dec("0.001"),
				MidAtFill: dec("100"), Mode: domain.ModeNormal, ReasonCodes: []string{"ELEVATED_VOLATILITY", "MODE_DWELL"},
			},
			MidAtHorizon: &fwd,
			MarkoutBps:   &mk,
		},
		{
			SimulatedFill: domain.SimulatedFill{
				TsMs: 2_000, OrderID: "b", Side: domain.SideSell, Price: dec("100.1"), Size: dec("0.002"),
				MidAtFill: dec("100.05"), Mode: domain.ModeDefensive,
			},
		},
	}

	if err := s.SaveRun(ctx, run, fills); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("run should exist")
	}
	if got.TotalFills != 2 || got.TotalCancels != 5 || got.PauseCount != 1 {
		t.Errorf("unexpected counters: %+v", got)
	}
	if got.AvgMarkoutBps == nil || !got.AvgMarkoutBps.Equal(avg) {
		t.Errorf("expected avg markout %s, got %v", avg, got.AvgMarkoutBps)
	}
	if !got.FinalPosition.Equal(dec("-0.001")) {
		t.Errorf("expected final position -0.001, got %s", got.FinalPosition)
	}

	gotFills, err := s.GetRunFills(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRunFills failed: %v", err)
	}
	if len(gotFills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(gotFills))
	}
	if gotFills[0].MarkoutBps == nil || !gotFills[0].MarkoutBps.Equal(mk) {
		t.Errorf("markout not preserved: %v", gotFills[0].MarkoutBps)
	}
	if len(gotFills[0].ReasonCodes) != 2 || gotFills[0].ReasonCodes[1] != "MODE_DWELL" {
		t.Errorf("reason codes not preserved: %v", gotFills[0].ReasonCodes)
	}
	if gotFills[1].MidAtHorizon != nil || gotFills[1].MarkoutBps != nil {
		t.Error("null markout should stay null")
	}
	if gotFills[1].ReasonCodes != nil {
		t.Errorf("expected no reason codes, got %v", gotFills[1].ReasonCodes)
	}
	if gotFills[1].Side != domain.SideSell || gotFills[1].Mode != domain.ModeDefensive {
		t.Errorf("unexpected fill: %+v", gotFills[1])
	}
}

func TestSaveRun_NullAverage(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, &domain.RunSummary{RunID: "empty", FinalPosition: decimal.Zero}, nil); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	got, err := s.GetRun(ctx, "empty")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.AvgMarkoutBps != nil {
		t.Errorf("expected null average, got %s", got.AvgMarkoutBps)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := setupTestDB(t)

	got, err := s.GetRun(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing run, got %+v", got)
	}
}
