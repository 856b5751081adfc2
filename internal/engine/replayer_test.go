package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"mm_backtest/internal/domain"
	"mm_backtest/internal/event"
	"mm_backtest/internal/strategy"
)

func newTestReplayer(t *testing.T, events []event.Event) *Replayer {
	t.Helper()
	return NewReplayer(ReplayConfig{
		Exchange:       "binance",
		Symbol:         "BTCUSDT",
		TickIntervalMs: 200,
		Risk:           domain.DefaultRiskParams(),
		RunID:          "replay",
		DumpFile:       filepath.Join(t.TempDir(), "dump.json"),
	}, events, strategy.NewMarketMaker(), nil, quietLogger())
}

func TestReplayer_CursorNeverRevisits(t *testing.T) {
	events := event.Merge(&domain.MarketData{Quotes: []domain.Quote{
		quote(0, "99.99", "100.01"),
		quote(300, "99.98", "100.02"),
		quote(900, "99.97", "100.03"),
	}})
	r := newTestReplayer(t, events)
	r.Run(0, 400)

	_, _, applied := r.Progress()
	if applied != 2 {
		t.Errorf("expected 2 events consumed by t=400, got %d", applied)
	}
}

func TestReplayer_PauseStopsQuoting(t *testing.T) {
	// 100 bps spread is far over the 50 bps pause threshold.
	events := event.Merge(&domain.MarketData{Quotes: []domain.Quote{quote(0, "99.5", "100.5")}})
	r := newTestReplayer(t, events)
	r.Run(0, 1_000)

	if got := r.State().Mode; got != domain.ModePause {
		t.Fatalf("expected PAUSE, got %s", got)
	}
	if m := r.Metrics(); m.PauseTransitions != 1 {
		t.Errorf("PAUSE->PAUSE must not be recounted, got %d transitions", m.PauseTransitions)
	}
	if book := r.sim.Book(); book.Bid != nil || book.Ask != nil {
		t.Error("no orders should rest while paused")
	}
}

func TestReplayer_OrderViolationHalts(t *testing.T) {
	// Out-of-order stream bypassing Merge.
	events := []event.Event{
		event.QuoteEvent(quote(100, "99.99", "100.01")),
		event.QuoteEvent(quote(50, "99.99", "100.01")),
	}
	r := newTestReplayer(t, events)

	defer func() {
		if rec := recover(); rec == nil {
			t.Fatal("replayer should have panicked on an out-of-order event")
		}
		b, err := os.ReadFile(r.cfg.DumpFile)
		if err != nil {
			t.Fatalf("state dump not written: %v", err)
		}
		var dump map[string]any
		if err := json.Unmarshal(b, &dump); err != nil {
			t.Fatalf("state dump is not JSON: %v", err)
		}
		if dump["cursor"].(float64) != 1 {
			t.Errorf("expected cursor 1 in dump, got %v", dump["cursor"])
		}
	}()
	r.Run(0, 200)
}

func TestReplayer_EmptiedSideRequotedAfterRefresh(t *testing.T) {
	events := event.Merge(&domain.MarketData{
		Quotes: []domain.Quote{quote(0, "99.99", "100.01")},
		Trades: []domain.Trade{
			trade(100, "99.97", domain.SideSell),
			trade(1_300, "99.97", domain.SideSell),
		},
	})
	r := newTestReplayer(t, events)
	r.Run(0, 1_400)

	fills := r.Fills()
	if len(fills) != 2 {
		t.Fatalf("expected the bid to fill, be re-placed and fill again, got %d fills", len(fills))
	}
	if !fills[0].Price.Equal(dec("99.975")) {
		t.Errorf("first fill at %s, want 99.975", fills[0].Price)
	}
	// Re-placed at the 1000 tick with the inventory skew applied.
	if fills[1].TsMs != 1_300 || !fills[1].Price.Equal(dec("99.973")) {
		t.Errorf("unexpected second fill: ts=%d price=%s", fills[1].TsMs, fills[1].Price)
	}

	// Quote intents that placed nothing left the clock at the last placement.
	st := r.State()
	if !st.HasLastQuote || st.LastQuoteMs != 1_000 {
		t.Errorf("expected last quote at 1000, got %d (known=%v)", st.LastQuoteMs, st.HasLastQuote)
	}
}

func TestReplayer_CancelAllKeepsLastQuoteTime(t *testing.T) {
	events := event.Merge(&domain.MarketData{Quotes: []domain.Quote{
		quote(0, "99.99", "100.01"),
		quote(500, "99.5", "100.5"), // 100 bps spread pauses
	}})
	r := newTestReplayer(t, events)
	r.Run(0, 2_000)

	st := r.State()
	if st.Mode != domain.ModePause {
		t.Fatalf("expected PAUSE, got %s", st.Mode)
	}
	if !st.HasLastQuote || st.LastQuoteMs != 0 {
		t.Errorf("cancel-all must not move the last quote time, got %d", st.LastQuoteMs)
	}
	if m := r.Metrics(); m.Cancels != 2 {
		t.Errorf("expected both resting orders cancelled once, got %d", m.Cancels)
	}
}

func TestNewReplayer_Defaults(t *testing.T) {
	r := NewReplayer(ReplayConfig{
		Exchange:        "binance",
		Symbol:          "BTCUSDT",
		WindowHorizonMs: 1_000,
		Risk:            domain.DefaultRiskParams(),
	}, nil, strategy.NewMarketMaker(), nil, quietLogger())

	if r.cfg.TickIntervalMs != DefaultTickIntervalMs {
		t.Errorf("expected default tick %d, got %d", DefaultTickIntervalMs, r.cfg.TickIntervalMs)
	}
	if got := r.tracker.HorizonMs(); got != featureWindow10sMs {
		t.Errorf("expected horizon clamped to %d, got %d", featureWindow10sMs, got)
	}

	// Terminates instead of spinning on a zero step.
	r.Run(0, 1_000)
	if ticks, _, _ := r.Progress(); ticks != 6 {
		t.Errorf("expected 6 ticks, got %d", ticks)
	}
}
