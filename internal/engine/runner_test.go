package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"mm_backtest/internal/domain"
	"mm_backtest/internal/strategy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	data *domain.MarketData
	err  error

	gotStart, gotEnd int64
}

func (l *stubLoader) Load(_ context.Context, _, _ string, startMs, endMs int64) (*domain.MarketData, error) {
	l.gotStart, l.gotEnd = startMs, endMs
	if l.err != nil {
		return nil, l.err
	}
	return l.data, nil
}

type captureSink struct {
	run   *domain.RunSummary
	fills []domain.EnrichedFill
}

func (s *captureSink) SaveRun(_ context.Context, run *domain.RunSummary, fills []domain.EnrichedFill) error {
	s.run = run
	s.fills = fills
	return nil
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func quote(ts int64, bid, ask string) domain.Quote {
	b, a := dec(bid), dec(ask)
	return domain.Quote{TsMs: ts, BidPrice: b, BidSize: dec("1"), AskPrice: a, AskSize: dec("1"), Mid: b.Add(a).Div(decimal.NewFromInt(2))}
}

func trade(ts int64, price string, side domain.Side) domain.Trade {
	return domain.Trade{TsMs: ts, Price: dec(price), Size: dec("0.5"), Side: side}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func baseRequest() RunRequest {
	return RunRequest{
		RunID:            "test-run",
		Exchange:         "binance",
		Symbol:           "BTCUSDT",
		StartMs:          0,
		EndMs:            1_000,
		TickIntervalMs:   200,
		MarkoutHorizonMs: 10_000,
		Risk:             domain.DefaultRiskParams(),
	}
}

func TestRun_QuotesOnlyFlatSpread(t *testing.T) {
	var quotes []domain.Quote
	for ts := int64(0); ts <= 1_000; ts += 100 {
		quotes = append(quotes, quote(ts, "99.99", "100.01"))
	}
	sink := &captureSink{}
	runner := NewRunner(&stubLoader{data: &domain.MarketData{Quotes: quotes}}, nil, sink, quietLogger())

	res, err := runner.Run(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Summary.TotalFills)
	assert.Equal(t, 0, res.Summary.TotalCancels, "flat market never requotes after the first placement")
	assert.Equal(t, 0, res.Summary.PauseCount)
	assert.Nil(t, res.Summary.AvgMarkoutBps)
	assert.Empty(t, res.Fills)
	assert.True(t, res.FinalPosition.IsZero())
	assert.Equal(t, 6, res.Summary.Ticks)
	assert.Equal(t, 0, res.Summary.SkippedTicks)
	assert.Equal(t, len(quotes), res.Summary.EventsApplied)

	assert.Equal(t, uint64(6), res.Metrics.TicksAdvanced)
	assert.Equal(t, uint64(2), res.Metrics.ActionsPlanned, "one bid and one ask placed on the first tick")

	require.NotNil(t, sink.run)
	assert.Equal(t, "test-run", sink.run.RunID)
}

func TestRun_FillWithForwardQuote(t *testing.T) {
	data := &domain.MarketData{
		Quotes: []domain.Quote{
			quote(0, "99.99", "100.01"),
			quote(5_000, "100.49", "100.51"),
		},
		Trades: []domain.Trade{
			trade(500, "99.97", domain.SideSell),
		},
	}
	req := baseRequest()
	req.EndMs = 6_000
	req.ReportPath = filepath.Join(t.TempDir(), "out", "fills.csv")

	res, err := NewRunner(&stubLoader{data: data}, nil, nil, quietLogger()).Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, res.Fills, 1)
	f := res.Fills[0]
	assert.Equal(t, domain.SideBuy, f.Side)
	assert.Equal(t, int64(500), f.TsMs)
	assert.True(t, dec("99.975").Equal(f.Price), "fills at the resting bid, not the trade price: %s", f.Price)
	assert.True(t, dec("100").Equal(f.MidAtFill))
	assert.Equal(t, domain.ModeNormal, f.Mode)

	require.NotNil(t, f.MidAtHorizon)
	assert.True(t, dec("100.5").Equal(*f.MidAtHorizon))
	require.NotNil(t, f.MarkoutBps)
	assert.True(t, dec("50").Equal(*f.MarkoutBps), "got %s", f.MarkoutBps)

	require.NotNil(t, res.Summary.AvgMarkoutBps)
	assert.True(t, dec("50").Equal(*res.Summary.AvgMarkoutBps))
	assert.True(t, dec("0.001").Equal(res.FinalPosition))

	_, err = os.Stat(req.ReportPath)
	assert.NoError(t, err, "report should be written")
}

func TestRun_LoadsPastEndForMarkout(t *testing.T) {
	loader := &stubLoader{data: &domain.MarketData{Quotes: []domain.Quote{quote(0, "99.99", "100.01")}}}
	_, err := NewRunner(loader, nil, nil, quietLogger()).Run(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, int64(0), loader.gotStart)
	assert.Equal(t, int64(11_000), loader.gotEnd)
}

func TestRun_SkipsTicksBeforeFirstQuote(t *testing.T) {
	data := &domain.MarketData{Quotes: []domain.Quote{quote(500, "99.99", "100.01")}}

	res, err := NewRunner(&stubLoader{data: data}, nil, nil, quietLogger()).Run(context.Background(), baseRequest())
	require.NoError(t, err)

	// Ticks at 0, 200 and 400 precede the first quote.
	assert.Equal(t, 3, res.Summary.SkippedTicks)
	assert.Equal(t, uint64(3), res.Metrics.TicksSkipped)
	assert.Equal(t, uint64(3), res.Metrics.DecisionsMade)
}

func TestRun_NoQuotes(t *testing.T) {
	tests := []struct {
		name string
		data *domain.MarketData
	}{
		{"nil data", nil},
		{"trades only", &domain.MarketData{Trades: []domain.Trade{trade(100, "100", domain.SideBuy)}}},
		{"quotes only after end", &domain.MarketData{Quotes: []domain.Quote{quote(5_000, "99", "101")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &captureSink{}
			_, err := NewRunner(&stubLoader{data: tt.data}, nil, sink, quietLogger()).Run(context.Background(), baseRequest())
			assert.ErrorIs(t, err, domain.ErrNoQuotes)
			assert.Nil(t, sink.run, "nothing is persisted")
		})
	}
}

func TestRun_LoaderErrorSurfaced(t *testing.T) {
	cause := errors.New("disk gone")
	loader := &stubLoader{err: domain.NewDataError("load quotes", cause)}

	_, err := NewRunner(loader, nil, nil, quietLogger()).Run(context.Background(), baseRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var de *domain.DataError
	assert.True(t, errors.As(err, &de))
}

func TestRun_InvalidRequest(t *testing.T) {
	runner := NewRunner(&stubLoader{}, nil, nil, quietLogger())

	req := baseRequest()
	req.EndMs = -1
	_, err := runner.Run(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)

	req = baseRequest()
	req.TickIntervalMs = 0
	_, err = runner.Run(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)

	req = baseRequest()
	req.Symbol = ""
	_, err = runner.Run(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidSymbol)
}

func TestRun_Deterministic(t *testing.T) {
	data := &domain.MarketData{
		Quotes: []domain.Quote{
			quote(0, "99.99", "100.01"),
			quote(1_500, "100.09", "100.11"),
			quote(3_000, "99.89", "99.91"),
		},
		Trades: []domain.Trade{
			trade(700, "99.96", domain.SideSell),
			trade(1_700, "100.2", domain.SideBuy),
			trade(3_100, "99.8", domain.SideSell),
		},
	}
	req := baseRequest()
	req.EndMs = 4_000

	run := func() *Result {
		res, err := NewRunner(&stubLoader{data: data}, nil, nil, quietLogger()).Run(context.Background(), req)
		require.NoError(t, err)
		return res
	}
	a, b := run(), run()

	require.NotEmpty(t, a.Fills)
	assert.Equal(t, a.Fills, b.Fills)
	assert.Equal(t, a.Summary.TotalCancels, b.Summary.TotalCancels)
	assert.True(t, a.FinalPosition.Equal(b.FinalPosition))
}

type haltingStrategy struct{}

func (haltingStrategy) ComputeFeatures(in strategy.FeatureInput) domain.Features {
	return strategy.ComputeFeatures(in)
}

func (haltingStrategy) Decide(int64, domain.StrategyState, domain.Features, domain.RiskParams, decimal.Decimal) strategy.Decision {
	panic("STRATEGY_INVARIANT")
}

func TestRun_HaltWritesPerRunDump(t *testing.T) {
	dir := t.TempDir()
	req := baseRequest()
	req.DumpDir = dir

	data := &domain.MarketData{Quotes: []domain.Quote{quote(0, "99.99", "100.01")}}
	runner := NewRunner(&stubLoader{data: data}, haltingStrategy{}, nil, quietLogger())

	require.Panics(t, func() { _, _ = runner.Run(context.Background(), req) })

	_, err := os.Stat(filepath.Join(dir, "replay_test-run_dump.json"))
	assert.NoError(t, err, "dump file is named after the run id")
}
