package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"mm_backtest/internal/domain"
	"mm_backtest/internal/event"
	"mm_backtest/internal/infra"
	"mm_backtest/internal/report"
	"mm_backtest/internal/strategy"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RunRequest describes one backtest.
type RunRequest struct {
	RunID            string
	Exchange         string
	Symbol           string
	StartMs          int64
	EndMs            int64
	TickIntervalMs   int64
	WindowHorizonMs  int64
	MarkoutHorizonMs int64
	Risk             domain.RiskParams

	// ReportPath, when set, receives the enriched fills as CSV.
	ReportPath string

	// DumpDir receives replay_<run id>_dump.json if the replay halts.
	// Empty means the working directory.
	DumpDir string
}

// Validate checks the request before any data is loaded.
func (r RunRequest) Validate() error {
	if r.Exchange == "" || r.Symbol == "" {
		return domain.ErrInvalidSymbol
	}
	if r.EndMs < r.StartMs {
		return fmt.Errorf("%w: end %d before start %d", domain.ErrInvalidTimeRange, r.EndMs, r.StartMs)
	}
	if r.TickIntervalMs <= 0 {
		return fmt.Errorf("%w: tick interval must be positive, got %d", domain.ErrInvalidTimeRange, r.TickIntervalMs)
	}
	return nil
}

// Result is everything a run produces.
type Result struct {
	Summary       *domain.RunSummary
	Fills         []domain.EnrichedFill
	FinalPosition decimal.Decimal
	Metrics       infra.MetricsSnapshot
}

// Runner loads data, replays it and reports on the fills.
type Runner struct {
	loader  domain.MarketDataLoader
	sink    domain.RunSink
	strat   strategy.Strategy
	metrics *infra.Metrics
	logger  *slog.Logger
}

// NewRunner creates a runner. sink and logger may be nil; a nil strategy
// selects the reference market maker.
func NewRunner(loader domain.MarketDataLoader, strat strategy.Strategy, sink domain.RunSink, logger *slog.Logger) *Runner {
	if strat == nil {
		strat = strategy.NewMarketMaker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		loader:  loader,
		sink:    sink,
		strat:   strat,
		metrics: &infra.Metrics{},
		logger:  logger,
	}
}

// Metrics exposes live run metrics, readable while Run is in progress.
func (r *Runner) Metrics() *infra.Metrics {
	return r.metrics
}

// Run executes one backtest. Data-loading failures and a window without
// quotes abort the run before the first tick.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.MarkoutHorizonMs <= 0 {
		req.MarkoutHorizonMs = report.DefaultHorizonMs
	}

	log := r.logger.With(
		slog.String("run_id", req.RunID),
		slog.String("exchange", req.Exchange),
		slog.String("symbol", req.Symbol),
	)

	// Quotes past the end are only used to look up forward mids.
	data, err := r.loader.Load(ctx, req.Exchange, req.Symbol, req.StartMs, req.EndMs+req.MarkoutHorizonMs)
	if err != nil {
		log.Error("Failed to load market data", slog.Any("error", err))
		return nil, fmt.Errorf("load market data: %w", err)
	}
	if !hasQuoteIn(data, req.StartMs, req.EndMs) {
		log.Error("No quotes in requested window",
			slog.Int64("start", req.StartMs),
			slog.Int64("end", req.EndMs),
		)
		return nil, domain.ErrNoQuotes
	}

	events := event.Merge(data)
	log.Info("Replay started",
		slog.Int("events", len(events)),
		slog.Int("quotes", len(data.Quotes)),
		slog.Int("trades", len(data.Trades)),
		slog.Int("prices", len(data.Prices)),
	)

	r.metrics.Reset()
	rp := NewReplayer(ReplayConfig{
		Exchange:        req.Exchange,
		Symbol:          req.Symbol,
		TickIntervalMs:  req.TickIntervalMs,
		WindowHorizonMs: req.WindowHorizonMs,
		Risk:            req.Risk,
		RunID:           req.RunID,
		DumpFile:        filepath.Join(req.DumpDir, "replay_"+req.RunID+"_dump.json"),
	}, events, r.strat, r.metrics, log)
	rp.Run(req.StartMs, req.EndMs)

	fills := report.Enrich(rp.Fills(), report.NewMidSeries(data.Quotes), req.MarkoutHorizonMs)
	simMetrics := rp.Metrics()
	ticks, skipped, applied := rp.Progress()

	summary := &domain.RunSummary{
		RunID:          req.RunID,
		Exchange:       req.Exchange,
		Symbol:         req.Symbol,
		StartMs:        req.StartMs,
		EndMs:          req.EndMs,
		TickIntervalMs: req.TickIntervalMs,
		HorizonMs:      req.MarkoutHorizonMs,
		TotalFills:     simMetrics.Fills,
		TotalCancels:   simMetrics.Cancels,
		PauseCount:     simMetrics.PauseTransitions,
		AvgMarkoutBps:  report.AverageMarkout(fills),
		FinalPosition:  rp.Position(),
		EventsApplied:  applied,
		Ticks:          ticks,
		SkippedTicks:   skipped,
		CreatedAt:      time.Now().UTC(),
	}
	if first, last, ok := event.TimeRange(events); ok {
		summary.DataStartMs = first
		summary.DataEndMs = last
	}

	attrs := []any{
		slog.Int("fills", summary.TotalFills),
		slog.Int("cancels", summary.TotalCancels),
		slog.Int("pauses", summary.PauseCount),
		slog.Int("ticks", summary.Ticks),
		slog.Int("skipped_ticks", summary.SkippedTicks),
		slog.String("final_position", summary.FinalPosition.String()),
	}
	if summary.AvgMarkoutBps != nil {
		attrs = append(attrs, slog.String("avg_markout_bps", summary.AvgMarkoutBps.StringFixed(4)))
	}
	log.Info("Replay finished", attrs...)

	res := &Result{
		Summary:       summary,
		Fills:         fills,
		FinalPosition: summary.FinalPosition,
		Metrics:       r.metrics.Snapshot(),
	}

	var errs []error
	if req.ReportPath != "" {
		if err := report.WriteCSVFile(req.ReportPath, fills); err != nil {
			errs = append(errs, fmt.Errorf("write report: %w", err))
		} else {
			log.Info("Report written", slog.String("path", req.ReportPath))
		}
	}
	if r.sink != nil {
		if err := r.sink.SaveRun(ctx, summary, fills); err != nil {
			errs = append(errs, fmt.Errorf("save run: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Error("Failed to publish run results", slog.Any("error", err))
		return res, err
	}
	return res, nil
}

func hasQuoteIn(data *domain.MarketData, startMs, endMs int64) bool {
	if data == nil {
		return false
	}
	for _, q := range data.Quotes {
		if q.TsMs >= startMs && q.TsMs <= endMs {
			return true
		}
	}
	return false
}
