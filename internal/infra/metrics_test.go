package infra

import (
	"testing"
)

func TestMetrics_RecordTick(t *testing.T) {
	m := &Metrics{}

	m.RecordTick(1000)
	m.RecordTick(1200)
	m.RecordSkippedTick()

	snap := m.Snapshot()

	if snap.TicksAdvanced != 2 {
		t.Errorf("Expected 2 ticks, got %d", snap.TicksAdvanced)
	}
	if snap.TicksSkipped != 1 {
		t.Errorf("Expected 1 skipped tick, got %d", snap.TicksSkipped)
	}
	if snap.LastTickMs != 1200 {
		t.Errorf("Expected last tick 1200, got %d", snap.LastTickMs)
	}
}

func TestMetrics_EventsAndDecisions(t *testing.T) {
	m := &Metrics{}

	m.RecordEvents(3)
	m.RecordEvents(0)
	m.RecordEvents(4)
	m.RecordDecision(2)
	m.RecordDecision(0)

	snap := m.Snapshot()
	if snap.EventsApplied != 7 {
		t.Errorf("Expected 7 events, got %d", snap.EventsApplied)
	}
	if snap.DecisionsMade != 2 {
		t.Errorf("Expected 2 decisions, got %d", snap.DecisionsMade)
	}
	if snap.ActionsPlanned != 2 {
		t.Errorf("Expected 2 actions, got %d", snap.ActionsPlanned)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordTick(5)
	m.RecordEvents(10)
	m.RecordDecision(1)

	m.Reset()
	snap := m.Snapshot()

	if snap.TicksAdvanced != 0 {
		t.Error("Expected 0 ticks after reset")
	}
	if snap.EventsApplied != 0 {
		t.Error("Expected 0 events after reset")
	}
	if snap.DecisionsMade != 0 {
		t.Error("Expected 0 decisions after reset")
	}
	if snap.LastTickMs != 0 {
		t.Error("Expected last tick cleared after reset")
	}
}
