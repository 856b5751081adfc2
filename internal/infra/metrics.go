package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight run observability without external dependencies.
// The replay loop is the only writer; atomics let a host goroutine read
// progress between ticks.
type Metrics struct {
	// Counters
	ticksAdvanced  atomic.Uint64
	ticksSkipped   atomic.Uint64
	eventsApplied  atomic.Uint64
	decisionsMade  atomic.Uint64
	actionsPlanned atomic.Uint64

	// Gauges
	lastTickMs atomic.Int64
}

// RecordTick records one advanced tick at simulated time tickMs.
func (m *Metrics) RecordTick(tickMs int64) {
	m.ticksAdvanced.Add(1)
	m.lastTickMs.Store(tickMs)
}

// RecordSkippedTick records a tick skipped for lack of valid market state.
func (m *Metrics) RecordSkippedTick() {
	m.ticksSkipped.Add(1)
}

// RecordEvents records market events applied to state.
func (m *Metrics) RecordEvents(n int) {
	m.eventsApplied.Add(uint64(n))
}

// RecordDecision records one decision call and the actions it produced.
func (m *Metrics) RecordDecision(actions int) {
	m.decisionsMade.Add(1)
	m.actionsPlanned.Add(uint64(actions))
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	TicksAdvanced  uint64
	TicksSkipped   uint64
	EventsApplied  uint64
	DecisionsMade  uint64
	ActionsPlanned uint64
	LastTickMs     int64
	Timestamp      time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TicksAdvanced:  m.ticksAdvanced.Load(),
		TicksSkipped:   m.ticksSkipped.Load(),
		EventsApplied:  m.eventsApplied.Load(),
		DecisionsMade:  m.decisionsMade.Load(),
		ActionsPlanned: m.actionsPlanned.Load(),
		LastTickMs:     m.lastTickMs.Load(),
		Timestamp:      time.Now(),
	}
}

// Reset clears all metrics before a new run.
func (m *Metrics) Reset() {
	m.ticksAdvanced.Store(0)
	m.ticksSkipped.Store(0)
	m.eventsApplied.Store(0)
	m.decisionsMade.Store(0)
	m.actionsPlanned.Store(0)
	m.lastTickMs.Store(0)
}
