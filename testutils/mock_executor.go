package testutils

import (
	"sync"

	"github.com/quantforge/backtestgo/types"
)

// RecordingExecutionHandler is a deterministic executor.ExecutionHandler
// stand-in for engine-level tests: it fills each submitted order on the
// next OnBar for its symbol, at that bar's price (no slippage, no
// commission), and records every submitted order for later assertion.
type RecordingExecutionHandler struct {
	mu sync.Mutex

	submitted []types.OrderEvent
	pending   map[string][]types.OrderEvent
}

// NewRecordingExecutionHandler returns a ready-to-use handler.
func NewRecordingExecutionHandler() *RecordingExecutionHandler {
	return &RecordingExecutionHandler{pending: make(map[string][]types.OrderEvent)}
}

// Submit implements executor.ExecutionHandler.
func (r *RecordingExecutionHandler) Submit(order types.OrderEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, order)
	r.pending[order.Symbol] = append(r.pending[order.Symbol], order)
}

// OnBar implements executor.ExecutionHandler: every pending order for
// bar.Symbol fills at bar.Open, unconditionally (MOC orders fill at
// bar.Close when isLastIntervalOfDay, matching the real executor's
// scheduling rule).
func (r *RecordingExecutionHandler) OnBar(bar types.Bar, isLastIntervalOfDay bool) []types.FillEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	orders := r.pending[bar.Symbol]
	if len(orders) == 0 {
		return nil
	}

	var fills []types.FillEvent
	var remaining []types.OrderEvent
	for _, o := range orders {
		if o.Type == types.MOC && !isLastIntervalOfDay {
			remaining = append(remaining, o)
			continue
		}
		price := bar.Open
		if o.Type == types.MOC {
			price = bar.Close
		}
		fills = append(fills, types.FillEvent{
			OrderID:   o.ID,
			Symbol:    o.Symbol,
			Side:      o.Side,
			Quantity:  o.Quantity,
			FillPrice: price,
			Timestamp: bar.Timestamp,
		})
	}
	r.pending[bar.Symbol] = remaining
	return fills
}

// Submitted returns a copy of every order ever submitted, for assertions.
func (r *RecordingExecutionHandler) Submitted() []types.OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.OrderEvent, len(r.submitted))
	copy(out, r.submitted)
	return out
}
