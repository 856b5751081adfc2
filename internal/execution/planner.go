package execution

import (
	"mm_backtest/internal/domain"

	"github.com/shopspring/decimal"
)

var bpsFactor = decimal.NewFromInt(10_000)

// ActionType defines the type of planned order action
type ActionType int

const (
	ActionPlaceBid ActionType = iota + 1
	ActionPlaceAsk
	ActionCancelAll
)

// String returns the string representation of ActionType
func (a ActionType) String() string {
	switch a {
	case ActionPlaceBid:
		return "PLACE_BID"
	case ActionPlaceAsk:
		return "PLACE_ASK"
	case ActionCancelAll:
		return "CANCEL_ALL"
	default:
		return "UNKNOWN"
	}
}

// Action is one concrete step against the simulator. A place action on a
// side that already rests an order replaces it.
type Action struct {
	Type  ActionType
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Policy holds the anti-churn parameters.
type Policy struct {
	MinRequoteBps     decimal.Decimal
	RefreshIntervalMs int64
	StaleCancelMs     int64
}

// PolicyFromRisk extracts the planner policy from risk parameters.
func PolicyFromRisk(p domain.RiskParams) Policy {
	return Policy{
		MinRequoteBps:     p.MinRequoteBps,
		RefreshIntervalMs: p.RefreshIntervalMs,
		StaleCancelMs:     p.StaleCancelMs,
	}
}

// BookView is the planner's read-only view of the resting orders.
// A nil side has no resting order.
type BookView struct {
	Bid *domain.SyntheticOrder
	Ask *domain.SyntheticOrder
}

// QuoteClock carries the time of the last quote action, if any.
type QuoteClock struct {
	LastQuoteMs int64
	Known       bool
}

// Plan converts an intent into the minimal set of actions. It is a pure
// function of its inputs and never touches the simulator.
func Plan(intent domain.OrderIntent, book BookView, clock QuoteClock, nowMs int64, policy Policy, mid decimal.Decimal) []Action {
	if intent.Kind == domain.IntentCancelAll {
		return []Action{{Type: ActionCancelAll}}
	}
	if intent.Kind != domain.IntentQuote {
		return nil
	}

	refreshOpen := !clock.Known || nowMs-clock.LastQuoteMs >= policy.RefreshIntervalMs

	var actions []Action
	if planSide(book.Bid, intent.BidPrice, refreshOpen, nowMs, policy, mid) {
		actions = append(actions, Action{Type: ActionPlaceBid, Price: intent.BidPrice, Size: intent.Size})
	}
	if planSide(book.Ask, intent.AskPrice, refreshOpen, nowMs, policy, mid) {
		actions = append(actions, Action{Type: ActionPlaceAsk, Price: intent.AskPrice, Size: intent.Size})
	}
	return actions
}

// planSide decides whether one side needs a (re)placement.
// Staleness bypasses the refresh gate; price deviation does not.
func planSide(current *domain.SyntheticOrder, target decimal.Decimal, refreshOpen bool, nowMs int64, policy Policy, mid decimal.Decimal) bool {
	if current == nil {
		return refreshOpen
	}
	if current.AgeMs(nowMs) > policy.StaleCancelMs {
		return true
	}
	return refreshOpen && exceedsRequote(current.Price, target, mid, policy.MinRequoteBps)
}

// exceedsRequote reports |target-current|/mid*1e4 >= minBps. A zero mid
// always forces the update.
func exceedsRequote(current, target, mid, minBps decimal.Decimal) bool {
	if mid.IsZero() {
		return true
	}
	deviationBps := target.Sub(current).Abs().Div(mid).Mul(bpsFactor)
	return deviationBps.GreaterThanOrEqual(minBps)
}
