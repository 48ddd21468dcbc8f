// Package portfolio implements the spec §4.3 accounting state machine:
// cash, reserved cash, margin, positions, and the equity curve. Equity is
// always cash plus the sum of each position's mark value — reserved cash
// and margin_locked are usable-cash bookkeeping, not equity components
// (see DESIGN.md's open-question resolution).
package portfolio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/quantforge/backtestgo/config"
	"github.com/quantforge/backtestgo/logger"
	"github.com/quantforge/backtestgo/types"
)

// InsufficientCashError is raised by CheckSolvency when usable cash is
// negative and the config does not tolerate it (spec §4.3's
// "negative-usable-cash policy").
type InsufficientCashError struct {
	UsableCash float64
}

func (e *InsufficientCashError) Error() string {
	return fmt.Sprintf("portfolio: usable cash is negative (%.4f)", e.UsableCash)
}

// Portfolio is the sole owner of cash/position/margin state.
type Portfolio struct {
	mu sync.Mutex

	log      logger.Logger
	shorting config.ShortingConfig

	continueOnNegativeCash bool
	estimateGuard          float64

	cash         float64
	reservedCash float64
	marginLocked float64

	positions  map[string]types.Position
	lastClose  map[string]float64
	lastVolume map[string]float64

	inFlight      map[string]float64 // order id -> reserved estimated cost (buys only)
	equityHistory []types.EquityPoint
}

// New creates a Portfolio seeded with initialCash and no open positions.
func New(initialCash float64, shorting config.ShortingConfig, continueOnNegativeCash bool, estimateGuard float64, log logger.Logger) *Portfolio {
	return &Portfolio{
		log:                    log,
		shorting:               shorting,
		continueOnNegativeCash: continueOnNegativeCash,
		estimateGuard:          estimateGuard,
		cash:                   initialCash,
		positions:              make(map[string]types.Position),
		lastClose:              make(map[string]float64),
		lastVolume:             make(map[string]float64),
		inFlight:               make(map[string]float64),
	}
}

// OnBarClose records the latest close/volume for bar.Symbol, feeding later
// OnSignal cost estimates, risk context, and MarkToMarket.
func (p *Portfolio) OnBarClose(bar types.Bar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastClose[bar.Symbol] = bar.Close
	p.lastVolume[bar.Symbol] = bar.Volume
}

// OnSignal computes the order needed to move the current position to
// signal.TargetHolding, per spec §4.3. Returns ok=false if no order is
// needed (target already matches the current position, or no price is
// known yet for the symbol).
func (p *Portfolio) OnSignal(signal types.SignalEvent) (types.OrderEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	lastClose, known := p.lastClose[signal.Symbol]
	if !known || lastClose <= 0 {
		return types.OrderEvent{}, false
	}

	currentQty := p.positions[signal.Symbol].Quantity
	delta := signal.TargetHolding - currentQty
	if delta == 0 {
		return types.OrderEvent{}, false
	}

	side := types.Buy
	qty := delta
	if delta < 0 {
		side = types.Sell
		qty = -delta
	}

	estimatedCost := qty * lastClose * (1 + p.estimateGuard)

	order := types.OrderEvent{
		ID:            types.NewOrderID(),
		Symbol:        signal.Symbol,
		Type:          types.MKT,
		Side:          side,
		Quantity:      qty,
		EstimatedCost: estimatedCost,
		Timestamp:     signal.Timestamp,
	}

	if side == types.Buy {
		p.reservedCash += estimatedCost
		p.inFlight[order.ID] = estimatedCost
	}

	return order, true
}

// ReleaseReservation drops order's reserved-cash ledger entry without a
// fill (e.g. the risk manager rejected it), per spec §9's "remove the
// entire entry" reservation policy.
func (p *Portfolio) ReleaseReservation(orderID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cost, ok := p.inFlight[orderID]; ok {
		p.reservedCash -= cost
		delete(p.inFlight, orderID)
	}
}

// OnFill books a fill against the affected position and cash, and clears
// the order's reservation (spec §9: remove the entire entry regardless of
// estimate-vs-actual; the fill itself is authoritative).
func (p *Portfolio) OnFill(fill types.FillEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cost, ok := p.inFlight[fill.OrderID]; ok {
		p.reservedCash -= cost
		delete(p.inFlight, fill.OrderID)
	}

	delta := fill.Quantity
	if fill.Side == types.Sell {
		delta = -delta
	}

	pos := p.positions[fill.Symbol]
	newQty := pos.Quantity + delta

	switch {
	case pos.Quantity == 0 || sameSign(pos.Quantity, delta):
		// Opening or adding to a position: roll the weighted-average cost.
		pos.AvgCost = (pos.AvgCost*math.Abs(pos.Quantity) + fill.FillPrice*math.Abs(delta)) / math.Abs(newQty)
	case !sameSign(newQty, pos.Quantity) && newQty != 0:
		// Flipped through flat: the excess opens a fresh position at the
		// fill price.
		pos.AvgCost = fill.FillPrice
	}
	// Pure reduction (same sign, smaller magnitude, or exactly flat):
	// average cost basis of the remaining position is unchanged.

	pos.Symbol = fill.Symbol
	pos.Quantity = newQty

	// Cash: buys (delta>0) pay qty*price; sells (delta<0) receive it —
	// one signed formula covers both sides.
	p.cash -= delta * fill.FillPrice
	p.cash -= fill.Commission

	if pos.IsFlat() {
		delete(p.positions, fill.Symbol)
	} else {
		p.positions[fill.Symbol] = pos
	}
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

// UsableCash is cash not reserved for in-flight buys or locked as margin.
func (p *Portfolio) UsableCash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usableCashLocked()
}

func (p *Portfolio) usableCashLocked() float64 {
	return p.cash - p.reservedCash - p.marginLocked
}

// CheckSolvency implements spec §4.3's negative-usable-cash policy: called
// by the engine at the start of each bar.
func (p *Portfolio) CheckSolvency() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	usable := p.usableCashLocked()
	if usable >= 0 {
		return nil
	}
	if !p.continueOnNegativeCash {
		return &InsufficientCashError{UsableCash: usable}
	}
	p.log.Warn("usable cash negative, continuing per config", logger.Float64("usable_cash", usable))
	return nil
}

// MarkToMarket recomputes margin against current short positions, appends
// an EquityPoint for ts (or overwrites the existing same-timestamp point,
// satisfying P5's idempotent-repeat-call property and I4's strict
// monotonicity), and returns the point.
func (p *Portfolio) MarkToMarket(ts time.Time) types.EquityPoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.recomputeMarginLocked()

	var markValue float64
	for symbol, pos := range p.positions {
		markValue += pos.MarkValue(p.lastClose[symbol])
	}

	point := types.EquityPoint{
		Timestamp:     ts,
		Cash:          p.cash,
		ReservedCash:  p.reservedCash,
		MarginLocked:  p.marginLocked,
		PositionValue: markValue,
		Equity:        p.cash + markValue,
	}

	if n := len(p.equityHistory); n > 0 && p.equityHistory[n-1].Timestamp.Equal(ts) {
		p.equityHistory[n-1] = point
	} else {
		p.equityHistory = append(p.equityHistory, point)
	}
	return point
}

// EndOfDay accrues one day's borrow cost on every short position and
// recomputes margin, per spec §4.3.
func (p *Portfolio) EndOfDay() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for symbol, pos := range p.positions {
		if pos.Quantity >= 0 {
			continue
		}
		close := p.lastClose[symbol]
		borrow := math.Abs(pos.Quantity) * close * p.shorting.AnnualBorrowRate / p.shorting.TradingDaysPerYear
		pos.AccruedBorrow += borrow
		p.cash -= borrow
		p.positions[symbol] = pos
	}
	p.recomputeMarginLocked()
}

func (p *Portfolio) recomputeMarginLocked() {
	var margin float64
	for symbol, pos := range p.positions {
		if pos.Quantity >= 0 {
			continue
		}
		margin += math.Abs(pos.Quantity) * p.lastClose[symbol] * p.shorting.MaintenanceMarginMultiplier
	}
	p.marginLocked = margin
}

// Position returns a copy of the current position in symbol (zero value if
// flat).
func (p *Portfolio) Position(symbol string) types.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positions[symbol]
}

// Cash returns the current raw cash balance.
func (p *Portfolio) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}

// Equity returns the current mark-to-market equity without appending an
// EquityPoint, for callers (the risk manager, the sizer) that need a
// live equity read mid-tick, before the bar's official MarkToMarket call.
func (p *Portfolio) Equity() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var markValue float64
	for symbol, pos := range p.positions {
		markValue += pos.MarkValue(p.lastClose[symbol])
	}
	return p.cash + markValue
}

// EquityHistory returns a copy of the recorded equity curve.
func (p *Portfolio) EquityHistory() []types.EquityPoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.EquityPoint, len(p.equityHistory))
	copy(out, p.equityHistory)
	return out
}

// GrossExposure and NetExposure implement the inputs risk.Context needs
// (spec §4.7), excluding symbol (the order's own target symbol, whose
// existing position the risk manager adds back separately, combined with
// the order's own quantity).
func (p *Portfolio) GrossExposure(equity float64, excludeSymbol string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if equity <= 0 {
		return 0
	}
	var gross float64
	for symbol, pos := range p.positions {
		if symbol == excludeSymbol {
			continue
		}
		gross += math.Abs(pos.MarkValue(p.lastClose[symbol]))
	}
	return gross / equity
}

func (p *Portfolio) NetExposure(equity float64, excludeSymbol string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if equity <= 0 {
		return 0
	}
	var net float64
	for symbol, pos := range p.positions {
		if symbol == excludeSymbol {
			continue
		}
		net += pos.MarkValue(p.lastClose[symbol])
	}
	return net / equity
}

// Positions returns a copy of every currently open (non-flat) position.
func (p *Portfolio) Positions() []types.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	return out
}

// LastClose returns the most recently observed bar close for symbol.
func (p *Portfolio) LastClose(symbol string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastClose[symbol]
}

// LastVolume returns the most recently observed bar volume for symbol.
func (p *Portfolio) LastVolume(symbol string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastVolume[symbol]
}
