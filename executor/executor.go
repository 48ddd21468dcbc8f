// Package executor implements the spec §4.4 simulated Execution Handler:
// MKT orders fill at the next base-frequency bar's open, MOC orders fill
// at the close of the last interval of the trading day, both passed
// through the slippage model and commission schedule. No partial fills.
package executor

import (
	"sync"

	"github.com/quantforge/backtestgo/config"
	"github.com/quantforge/backtestgo/logger"
	"github.com/quantforge/backtestgo/metrics"
	"github.com/quantforge/backtestgo/slippage"
	"github.com/quantforge/backtestgo/types"
)

// ExecutionHandler is the capability interface the engine drives per tick,
// matching spec §9's "pick an implementation at startup from config" note.
type ExecutionHandler interface {
	Submit(order types.OrderEvent)
	OnBar(bar types.Bar, isLastIntervalOfDay bool) []types.FillEvent
}

// SimulatedExecutor is this package's ExecutionHandler implementation: it never
// talks to a real venue, matching the teacher's PaperExecutor in spirit
// (in-memory, mutex-protected) but replacing immediate fills with the
// spec's deferred-fill queue.
type SimulatedExecutor struct {
	mu sync.Mutex

	log        logger.Logger
	commission config.CommissionConfig
	slip       slippage.Model

	historyWindow int
	history       map[string][]types.Bar

	pendingMKT map[string][]types.OrderEvent
	pendingMOC map[string][]types.OrderEvent
}

var _ ExecutionHandler = (*SimulatedExecutor)(nil)

// NewSimulatedExecutor returns a ready-to-drive executor. historyWindow
// bounds how many trailing bars are kept per symbol to feed the slippage
// model (spec §4.8's "rolling OHLC history, window ~ 21 bars").
func NewSimulatedExecutor(commission config.CommissionConfig, slip slippage.Model, log logger.Logger, historyWindow int) *SimulatedExecutor {
	if historyWindow <= 0 {
		historyWindow = 21
	}
	return &SimulatedExecutor{
		log:           log,
		commission:    commission,
		slip:          slip,
		historyWindow: historyWindow,
		history:       make(map[string][]types.Bar),
		pendingMKT:    make(map[string][]types.OrderEvent),
		pendingMOC:    make(map[string][]types.OrderEvent),
	}
}

// Submit queues order for its scheduled fill: MKT orders fill on the next
// call to OnBar for the same symbol; MOC orders fill on the next call to
// OnBar flagged isLastIntervalOfDay.
func (e *SimulatedExecutor) Submit(order types.OrderEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	metrics.OrdersSubmitted.WithLabelValues(order.Symbol).Inc()

	switch order.Type {
	case types.MOC:
		e.pendingMOC[order.Symbol] = append(e.pendingMOC[order.Symbol], order)
	default:
		e.pendingMKT[order.Symbol] = append(e.pendingMKT[order.Symbol], order)
	}
}

// OnBar advances bar.Symbol's base-frequency clock by one bar, filling any
// orders scheduled against it, and returns the resulting fills in
// submission order (MKT orders before MOC orders, matching spec §9's
// "fills-before-next-market-event" ordering guarantee upstream in the
// engine).
func (e *SimulatedExecutor) OnBar(bar types.Bar, isLastIntervalOfDay bool) []types.FillEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.recordHistory(bar)

	var fills []types.FillEvent

	if orders := e.pendingMKT[bar.Symbol]; len(orders) > 0 {
		for _, o := range orders {
			fills = append(fills, e.fill(o, bar.Open, bar))
		}
		delete(e.pendingMKT, bar.Symbol)
	}

	if isLastIntervalOfDay {
		if orders := e.pendingMOC[bar.Symbol]; len(orders) > 0 {
			for _, o := range orders {
				fills = append(fills, e.fill(o, bar.Close, bar))
			}
			delete(e.pendingMOC, bar.Symbol)
		}
	}

	return fills
}

func (e *SimulatedExecutor) recordHistory(bar types.Bar) {
	h := append(e.history[bar.Symbol], bar)
	if len(h) > e.historyWindow {
		h = h[len(h)-e.historyWindow:]
	}
	e.history[bar.Symbol] = h
}

// fill applies the slippage model and commission schedule to order at
// refPrice, per spec §4.8 step 6's sign convention.
func (e *SimulatedExecutor) fill(order types.OrderEvent, refPrice float64, bar types.Bar) types.FillEvent {
	frac, err := e.slip.Estimate(e.history[order.Symbol], order.Side, order.Quantity)
	if err != nil {
		e.log.Warn("slippage estimate fell back to spread-only", logger.String("symbol", order.Symbol), logger.Err(err))
	}
	metrics.SlippageFraction.Observe(frac)

	slippageAmount := frac * refPrice
	fillPrice := refPrice + slippageAmount
	if order.Side == types.Sell {
		fillPrice = refPrice - slippageAmount
	}

	notional := fillPrice * order.Quantity
	commission := e.commission.Amount(order.Quantity, notional)

	metrics.FillsTotal.WithLabelValues(order.Symbol, string(order.Side)).Inc()

	return types.FillEvent{
		OrderID:    order.ID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		FillPrice:  fillPrice,
		Commission: commission,
		Slippage:   slippageAmount,
		Timestamp:  bar.Timestamp,
	}
}
