package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"mm_backtest/internal/domain"
	"mm_backtest/internal/event"
	"mm_backtest/internal/execution"
	"mm_backtest/internal/infra"
	"mm_backtest/internal/market"
	"mm_backtest/internal/strategy"

	"github.com/shopspring/decimal"
)

const (
	featureWindow1sMs  int64 = 1_000
	featureWindow10sMs int64 = 10_000

	// DefaultTickIntervalMs replaces a non-positive tick interval.
	DefaultTickIntervalMs int64 = 200

	// DefaultDumpFile receives the replay state when the loop halts.
	DefaultDumpFile = "replay_panic_dump.json"
)

// ReplayConfig parameterises one Replayer.
type ReplayConfig struct {
	Exchange        string
	Symbol          string
	TickIntervalMs  int64
	WindowHorizonMs int64
	Risk            domain.RiskParams
	RunID           string
	DumpFile        string
}

// Replayer is the single-threaded tick loop. It owns the market tracker,
// the execution simulator and the strategy state; nothing else holds a
// reference to them while a replay is running.
type Replayer struct {
	cfg    ReplayConfig
	policy execution.Policy

	tracker *market.Tracker
	sim     *execution.Simulator
	strat   strategy.Strategy

	state   domain.StrategyState
	reasons []string

	events      []event.Event
	cursor      int
	lastEventMs int64
	matchBuf    []domain.Trade

	ticks   int
	skipped int

	metrics *infra.Metrics
	logger  *slog.Logger
}

// NewReplayer creates a replayer over an already merged event stream.
// metrics and logger may be nil. A non-positive tick interval selects
// DefaultTickIntervalMs; the window horizon is never shorter than the
// longest feature window.
func NewReplayer(cfg ReplayConfig, events []event.Event, strat strategy.Strategy, metrics *infra.Metrics, logger *slog.Logger) *Replayer {
	if cfg.TickIntervalMs <= 0 {
		cfg.TickIntervalMs = DefaultTickIntervalMs
	}
	if cfg.WindowHorizonMs < featureWindow10sMs {
		cfg.WindowHorizonMs = featureWindow10sMs
	}
	if cfg.DumpFile == "" {
		cfg.DumpFile = DefaultDumpFile
	}
	if logger == nil {
		logger = slog.Default()
	}
	var ids execution.IDGenerator
	if cfg.RunID != "" {
		ids = execution.SequentialIDs(cfg.RunID)
	}
	return &Replayer{
		cfg:     cfg,
		policy:  execution.PolicyFromRisk(cfg.Risk),
		tracker: market.NewTracker(cfg.Exchange, cfg.Symbol, cfg.WindowHorizonMs),
		sim:     execution.NewSimulator(ids),
		strat:   strat,
		events:  events,
		metrics: metrics,
		logger:  logger,
	}
}

// Run advances simulated time from startMs to endMs inclusive in steps of the
// tick interval. An internal invariant breach halts the loop: the state is
// dumped to disk and the panic is re-raised.
func (r *Replayer) Run(startMs, endMs int64) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", rec))
			r.DumpState(r.cfg.DumpFile)
			panic(fmt.Sprintf("HALTED: %v", rec))
		}
	}()

	r.state = domain.InitialStrategyState(startMs)
	for t := startMs; t <= endMs; t += r.cfg.TickIntervalMs {
		r.Step(t)
	}
}

// Step runs one tick at simulated time nowMs.
func (r *Replayer) Step(nowMs int64) {
	r.ticks++
	r.drain(nowMs)
	r.tracker.Prune(nowMs)

	if !r.tracker.HasValidData() {
		r.skipped++
		if r.metrics != nil {
			r.metrics.RecordSkippedTick()
		}
		return
	}
	if r.metrics != nil {
		r.metrics.RecordTick(nowMs)
	}

	mid := r.tracker.MidPrice()

	// Trades that arrived during this tick are matched before deciding, so
	// the decision sees the resulting position.
	r.sim.CheckTouchFill(r.matchBuf, mid, r.state.Mode, r.reasons)

	in := strategy.FeatureInput{
		Snapshot:  r.tracker.Snapshot(nowMs),
		Trades1s:  r.tracker.TradesInWindow(nowMs, featureWindow1sMs),
		Trades10s: r.tracker.TradesInWindow(nowMs, featureWindow10sMs),
		Mids10s:   r.tracker.MidSamplesInWindow(nowMs, featureWindow10sMs),
		Params:    r.cfg.Risk,
	}
	features := r.strat.ComputeFeatures(in)
	decision := r.strat.Decide(nowMs, r.state, features, r.cfg.Risk, r.sim.Position())

	r.sim.TrackModeTransition(decision.Next.Mode)
	r.state = decision.Next
	r.reasons = decision.ReasonCodes

	planned := 0
	for _, intent := range decision.Intents {
		clock := execution.QuoteClock{LastQuoteMs: r.state.LastQuoteMs, Known: r.state.HasLastQuote}
		actions := execution.Plan(intent, r.sim.Book(), clock, nowMs, r.policy, mid)
		r.sim.Execute(actions, nowMs)
		planned += len(actions)

		if intent.Kind == domain.IntentQuote && len(actions) > 0 {
			r.state = r.state.WithLastQuote(nowMs)
		}
	}
	if r.metrics != nil {
		r.metrics.RecordDecision(planned)
	}

	r.logger.Debug("tick",
		slog.Int64("ts", nowMs),
		slog.String("mid", mid.StringFixed(market.MidPrecision)),
		slog.String("mode", string(r.state.Mode)),
		slog.Int("actions", planned),
	)
}

// drain applies every queued event with timestamp <= nowMs and collects the
// trades among them for matching.
func (r *Replayer) drain(nowMs int64) {
	r.matchBuf = r.matchBuf[:0]
	applied := 0

	for r.cursor < len(r.events) && r.events[r.cursor].TsMs <= nowMs {
		ev := r.events[r.cursor]
		if ev.TsMs < r.lastEventMs {
			panic(fmt.Sprintf("REPLAY_ORDER_VIOLATION: event %d at %d precedes %d", r.cursor, ev.TsMs, r.lastEventMs))
		}

		switch ev.Kind {
		case event.KindQuote:
			r.tracker.ApplyQuoteUpdate(*ev.Quote)
		case event.KindTrade:
			r.tracker.ApplyTrade(*ev.Trade)
			r.matchBuf = append(r.matchBuf, *ev.Trade)
		case event.KindPrice:
			r.tracker.ApplyPriceUpdate(*ev.Price)
		default:
			panic(fmt.Sprintf("UNKNOWN_EVENT_KIND: %d", ev.Kind))
		}

		r.lastEventMs = ev.TsMs
		r.cursor++
		applied++
	}

	if applied > 0 && r.metrics != nil {
		r.metrics.RecordEvents(applied)
	}
}

// Fills returns the fills recorded so far.
func (r *Replayer) Fills() []domain.SimulatedFill {
	return r.sim.Fills()
}

// Metrics returns the simulator aggregates.
func (r *Replayer) Metrics() execution.Metrics {
	return r.sim.Metrics()
}

// Position returns the simulated net inventory.
func (r *Replayer) Position() decimal.Decimal {
	return r.sim.Position()
}

// State returns the held strategy state.
func (r *Replayer) State() domain.StrategyState {
	return r.state
}

// Progress reports ticks run, ticks skipped for missing market state and
// events consumed.
func (r *Replayer) Progress() (ticks, skipped, events int) {
	return r.ticks, r.skipped, r.cursor
}

// DumpState writes the replay state to a file (for post-mortem).
func (r *Replayer) DumpState(filename string) {
	r.logger.Info("Dumping replay state...", slog.String("file", filename))

	data := struct {
		Cursor      int                   `json:"cursor"`
		TotalEvents int                   `json:"total_events"`
		LastEventMs int64                 `json:"last_event_ts"`
		Snapshot    domain.MarketSnapshot `json:"snapshot"`
		State       domain.StrategyState  `json:"strategy_state"`
		Book        execution.BookView    `json:"book"`
		Position    decimal.Decimal       `json:"position"`
		Metrics     execution.Metrics     `json:"metrics"`
	}{
		Cursor:      r.cursor,
		TotalEvents: len(r.events),
		LastEventMs: r.lastEventMs,
		Snapshot:    r.tracker.Snapshot(r.lastEventMs),
		State:       r.state,
		Book:        r.sim.Book(),
		Position:    r.sim.Position(),
		Metrics:     r.sim.Metrics(),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		r.logger.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		r.logger.Error("Failed to write state dump", slog.Any("error", err))
	}
}
