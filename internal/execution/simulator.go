package execution

import (
	"strconv"

	"mm_backtest/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IDGenerator produces synthetic order ids.
type IDGenerator func() string

// SequentialIDs returns a generator of name-based (v5) UUIDs derived from
// runID and a counter, so ids are unique yet identical across reruns.
func SequentialIDs(runID string) IDGenerator {
	ns := uuid.NewSHA1(uuid.NameSpaceOID, []byte(runID))
	var n uint64
	return func() string {
		n++
		return uuid.NewSHA1(ns, strconv.AppendUint(nil, n, 10)).String()
	}
}

// Metrics are read-only aggregates over the whole run.
type Metrics struct {
	Fills            int `json:"fills"`
	Cancels          int `json:"cancels"`
	PauseTransitions int `json:"pause_transitions"`
}

// Simulator owns the synthetic resting orders, the running position and the
// fill log. Each side is either empty (nil) or resting exactly one order.
// Not safe for concurrent use; the replay loop is its only owner.
type Simulator struct {
	bid *domain.SyntheticOrder
	ask *domain.SyntheticOrder

	position decimal.Decimal
	fills    []domain.SimulatedFill

	cancels          int
	pauseTransitions int
	lastMode         domain.Mode

	nextID IDGenerator
}

// NewSimulator creates an empty simulator. A nil generator falls back to
// random UUIDs.
func NewSimulator(ids IDGenerator) *Simulator {
	if ids == nil {
		ids = uuid.NewString
	}
	return &Simulator{nextID: ids}
}

// PlaceBid installs a resting bid, cancelling any existing one.
func (s *Simulator) PlaceBid(price, size decimal.Decimal, nowMs int64) {
	s.bid = s.place(s.bid, domain.SideBuy, price, size, nowMs)
}

// PlaceAsk installs a resting ask, cancelling any existing one.
func (s *Simulator) PlaceAsk(price, size decimal.Decimal, nowMs int64) {
	s.ask = s.place(s.ask, domain.SideSell, price, size, nowMs)
}

// place is the per-side transition:
//
//	Empty           -> Resting(new)
//	Resting(old)    -> Resting(new), counting one cancel
func (s *Simulator) place(current *domain.SyntheticOrder, side domain.Side, price, size decimal.Decimal, nowMs int64) *domain.SyntheticOrder {
	if current != nil {
		s.cancels++
	}
	return &domain.SyntheticOrder{
		ID:          s.nextID(),
		Side:        side,
		Price:       price,
		Size:        size,
		CreatedAtMs: nowMs,
	}
}

// CancelAll clears both sides, counting one cancel per resting order.
func (s *Simulator) CancelAll() {
	if s.bid != nil {
		s.cancels++
		s.bid = nil
	}
	if s.ask != nil {
		s.cancels++
		s.ask = nil
	}
}

// Execute applies planned actions in order.
func (s *Simulator) Execute(actions []Action, nowMs int64) {
	for _, a := range actions {
		switch a.Type {
		case ActionPlaceBid:
			s.PlaceBid(a.Price, a.Size, nowMs)
		case ActionPlaceAsk:
			s.PlaceAsk(a.Price, a.Size, nowMs)
		case ActionCancelAll:
			s.CancelAll()
		}
	}
}

// CheckTouchFill matches trades, in order, against the resting orders.
// A bid fills when trade price <= bid, an ask when trade price >= ask, both
// at the order's own price. Both sides may fill on the same trade.
func (s *Simulator) CheckTouchFill(trades []domain.Trade, mid decimal.Decimal, mode domain.Mode, reasonCodes []string) {
	for _, tr := range trades {
		if s.bid != nil && tr.Price.LessThanOrEqual(s.bid.Price) {
			s.fill(s.bid, tr.TsMs, mid, mode, reasonCodes)
			s.bid = nil
		}
		if s.ask != nil && tr.Price.GreaterThanOrEqual(s.ask.Price) {
			s.fill(s.ask, tr.TsMs, mid, mode, reasonCodes)
			s.ask = nil
		}
	}
}

func (s *Simulator) fill(o *domain.SyntheticOrder, tsMs int64, mid decimal.Decimal, mode domain.Mode, reasonCodes []string) {
	f := domain.SimulatedFill{
		TsMs:        tsMs,
		OrderID:     o.ID,
		Side:        o.Side,
		Price:       o.Price,
		Size:        o.Size,
		MidAtFill:   mid,
		Mode:        mode,
		ReasonCodes: append([]string(nil), reasonCodes...),
	}
	s.fills = append(s.fills, f)
	s.position = s.position.Add(f.SignedSize())
}

// TrackModeTransition counts entries into PAUSE from any other mode.
func (s *Simulator) TrackModeTransition(mode domain.Mode) {
	if mode == domain.ModePause && s.lastMode != domain.ModePause {
		s.pauseTransitions++
	}
	s.lastMode = mode
}

// Book returns copies of the resting orders.
func (s *Simulator) Book() BookView {
	return BookView{Bid: cloneOrder(s.bid), Ask: cloneOrder(s.ask)}
}

func cloneOrder(o *domain.SyntheticOrder) *domain.SyntheticOrder {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}

// Position returns the net signed inventory.
func (s *Simulator) Position() decimal.Decimal {
	return s.position
}

// Fills returns a copy of the fill log.
func (s *Simulator) Fills() []domain.SimulatedFill {
	return append([]domain.SimulatedFill(nil), s.fills...)
}

// Metrics returns the run aggregates.
func (s *Simulator) Metrics() Metrics {
	return Metrics{
		Fills:            len(s.fills),
		Cancels:          s.cancels,
		PauseTransitions: s.pauseTransitions,
	}
}
