// Package engine implements the spec §4.1 Backtest Loop: the single-
// threaded cooperative driver that pulls bars, aggregates, dispatches
// signals, sizes, risk-checks, defers orders to the next bar's open, and
// marks the portfolio to market exactly once per base-interval close.
package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/quantforge/backtestgo/aggregator"
	"github.com/quantforge/backtestgo/barsource"
	"github.com/quantforge/backtestgo/barstore"
	"github.com/quantforge/backtestgo/config"
	"github.com/quantforge/backtestgo/executor"
	"github.com/quantforge/backtestgo/logger"
	"github.com/quantforge/backtestgo/metrics"
	"github.com/quantforge/backtestgo/portfolio"
	"github.com/quantforge/backtestgo/risk"
	"github.com/quantforge/backtestgo/sizer"
	"github.com/quantforge/backtestgo/strategy"
	"github.com/quantforge/backtestgo/types"
)

// Process exit codes, per spec §6.
const (
	ExitOK                = 0
	ExitInsufficientCash  = 2
	ExitBadConfig         = 3
	ExitDataGap           = 4
)

// ExitCode maps a terminal error from Run (or from Load/New) to the exit
// code a cmd/ entry point should return.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var insufficientCash *portfolio.InsufficientCashError
	var configErr *config.ConfigError
	var dataGap *barstore.DataGapError
	switch {
	case errors.As(err, &insufficientCash):
		return ExitInsufficientCash
	case errors.As(err, &configErr):
		return ExitBadConfig
	case errors.As(err, &dataGap):
		return ExitDataGap
	default:
		return ExitBadConfig
	}
}

// StrategyBinding wires one live strategy instance to the (symbol,
// interval) pair it subscribes to. The core never constructs strategies
// itself (spec §4.5 names them external collaborators) — the caller
// supplies the instances and their subscriptions.
type StrategyBinding struct {
	Symbol   string
	Interval types.Interval
	Strategy strategy.Strategy
}

// RejectedOrder pairs an order with the risk-manager reason it never
// reached the execution handler.
type RejectedOrder struct {
	Order  types.OrderEvent
	Reason string
}

// BacktestResult is everything Run accumulates over a full replay.
type BacktestResult struct {
	EquityCurve []types.EquityPoint
	Fills       []types.FillEvent
	Rejected    []RejectedOrder
	Diagnostics []string
}

// diagnosticsSource is implemented by logger.CollectingLogger; Run copies
// its accumulated warnings into BacktestResult if the logger supports it.
type diagnosticsSource interface {
	Diagnostics() []string
}

// queuedEvent is the engine's internal event-queue element: exactly one
// of the two pointers is set (spec §4.1 step 5's Signal/Order handling).
type queuedEvent struct {
	signal *types.SignalEvent
	order  *types.OrderEvent
}

// Loop is the stateful driver. Construct with New, wire strategies with
// Bind, then call Run once.
type Loop struct {
	log logger.Logger

	baseInterval types.Interval
	store        *barstore.BarStore
	agg          *aggregator.Aggregator
	sizers       map[string]sizer.Sizer
	riskMgr      *risk.RiskManager
	exec         executor.ExecutionHandler
	book         *portfolio.Portfolio

	queue    []queuedEvent
	barIndex int

	lastQty map[string]float64

	lastDay       string
	dayOpenEquity float64

	result BacktestResult
}

// New returns a Loop ready to have strategies bound and then be run. sizers
// maps symbol to the Sizer instance that owns that symbol's position
// sizing (one ATRSizer/FixedSizer per symbol — sizers carry per-symbol
// state, per spec §4.6). log is wrapped in a logger.CollectingLogger so
// Run's result carries the diagnostics log (spec §7): every warning the
// loop itself logs, including its start-of-tick negative-usable-cash
// warning. Warnings that the portfolio or the execution handler write to
// their own loggers (e.g. slippage fallbacks) are not collected.
func New(log logger.Logger, baseInterval types.Interval, store *barstore.BarStore, agg *aggregator.Aggregator,
	sizers map[string]sizer.Sizer, riskMgr *risk.RiskManager, exec executor.ExecutionHandler, book *portfolio.Portfolio) *Loop {
	return &Loop{
		log:          logger.NewCollectingLogger(log),
		baseInterval: baseInterval,
		store:        store,
		agg:          agg,
		sizers:       sizers,
		riskMgr:      riskMgr,
		exec:         exec,
		book:         book,
		lastQty:      make(map[string]float64),
	}
}

// Bind registers each binding as an aggregator subscriber: whenever the
// bound (symbol, interval) closes, the strategy is asked for a signal and
// any signal produced is queued (spec §4.1 step 3/5).
func (l *Loop) Bind(bindings []StrategyBinding) {
	for _, b := range bindings {
		b := b
		l.agg.Subscribe(aggregator.SubscriberFunc(func(symbol string, interval types.Interval, bar types.Bar) {
			if symbol != b.Symbol || interval != b.Interval {
				return
			}
			if signal, ok := b.Strategy.OnInterval(symbol, interval, bar); ok {
				l.queue = append(l.queue, queuedEvent{signal: &signal})
			}
		}))
	}
}

// Run drives source to completion (or until ctx is cancelled), returning
// the accumulated result. Cancellation finishes the current tick before
// returning, per spec §5.
func (l *Loop) Run(ctx context.Context, source barsource.BarSource) (BacktestResult, error) {
	var pending *types.Bar

	for {
		select {
		case <-ctx.Done():
			return l.finish(), nil
		default:
		}

		tick, next, err := l.nextTick(source, pending)
		if err != nil {
			return l.finish(), err
		}
		if tick == nil {
			return l.finish(), nil
		}
		pending = next

		isLastIntervalOfDay := isDailyOrCoarser(l.baseInterval) || pending == nil ||
			dayKey(pending.Timestamp) != dayKey(tick[0].Timestamp)

		if err := l.processTick(tick, isLastIntervalOfDay); err != nil {
			return l.finish(), err
		}
		l.barIndex++
	}
}

// finish attaches any accumulated diagnostics to the result before
// returning it.
func (l *Loop) finish() BacktestResult {
	if src, ok := l.log.(diagnosticsSource); ok {
		l.result.Diagnostics = src.Diagnostics()
	}
	return l.result
}

// nextTick pulls every bar sharing the next timestamp (the merged source
// already yields them in lexicographic-symbol order for a shared
// timestamp), returning nil when the source is exhausted.
func (l *Loop) nextTick(source barsource.BarSource, pending *types.Bar) ([]types.Bar, *types.Bar, error) {
	var tick []types.Bar
	if pending != nil {
		tick = append(tick, *pending)
	} else {
		b, ok, err := source.Next()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, nil
		}
		tick = append(tick, b)
	}

	for {
		b, ok, err := source.Next()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return tick, nil, nil
		}
		if !b.Timestamp.Equal(tick[0].Timestamp) {
			return tick, &b, nil
		}
		tick = append(tick, b)
	}
}

// processTick runs the full spec §4.1 seven-step algorithm for every bar
// sharing one timestamp, then marks to market exactly once for the tick.
func (l *Loop) processTick(tick []types.Bar, isLastIntervalOfDay bool) error {
	sort.Slice(tick, func(i, j int) bool { return tick[i].Symbol < tick[j].Symbol })

	if err := l.book.CheckSolvency(); err != nil {
		return err
	}
	if usable := l.book.UsableCash(); usable < 0 {
		// CheckSolvency tolerated it (continue_on_negative_cash); record the
		// warning on the loop's own logger so it reaches the diagnostics log.
		l.log.Warn("usable cash negative at start of tick, continuing per config", logger.Float64("usable_cash", usable))
	}

	for _, bar := range tick {
		// Step 1: drain deferred fills scheduled against this bar.
		for _, fill := range l.exec.OnBar(bar, isLastIntervalOfDay) {
			l.book.OnFill(fill)
			l.result.Fills = append(l.result.Fills, fill)
		}

		// Step 2: ingest.
		if err := l.store.Append(bar); err != nil {
			return err
		}
		l.book.OnBarClose(bar)

		// Step 3: aggregate + notify subscribers (ATR sizers, strategies).
		if _, err := l.agg.OnBaseBar(bar); err != nil {
			return err
		}

		// Step 4: MarketEvent is implicit — every subscriber notification
		// above already carries the closed bar; nothing further to drive.
	}

	// Step 5: drain the event queue to fixpoint.
	l.drainQueue()

	// Step 6/7: mark-to-market once per tick, then append the equity point.
	point := l.book.MarkToMarket(tick[0].Timestamp)
	l.result.EquityCurve = append(l.result.EquityCurve, point)
	metrics.EquityGauge.Set(point.Equity)
	metrics.DrawdownGauge.Set(l.drawdownPct(point.Equity))
	metrics.PositionsOpen.Reset()
	for _, pos := range l.book.Positions() {
		metrics.PositionsOpen.WithLabelValues(pos.Symbol).Set(1)
	}

	if isLastIntervalOfDay {
		l.book.EndOfDay()
	}
	l.rollDayOpenEquity(tick[0], point.Equity, isLastIntervalOfDay)

	return nil
}

func (l *Loop) drainQueue() {
	for len(l.queue) > 0 {
		ev := l.queue[0]
		l.queue = l.queue[1:]

		switch {
		case ev.signal != nil:
			l.handleSignal(*ev.signal)
		case ev.order != nil:
			l.handleOrder(*ev.order)
		}
	}
}

func (l *Loop) handleSignal(signal types.SignalEvent) {
	sz, ok := l.sizers[signal.Symbol]
	if !ok {
		l.log.Warn("signal for symbol with no bound sizer", logger.String("symbol", signal.Symbol))
		return
	}
	qty, ok := sz.TargetQuantity(l.book.Equity())
	if ok {
		l.lastQty[signal.Symbol] = qty
	} else {
		// Spec §4.6: before warm-up completes, reuse the previous target
		// size rather than dropping the signal outright.
		qty, ok = l.lastQty[signal.Symbol]
		if !ok {
			return
		}
	}

	target := 0.0
	switch signal.Direction {
	case types.Bullish:
		target = qty
	case types.Bearish:
		target = -qty
	}
	signal.TargetHolding = target

	order, ok := l.book.OnSignal(signal)
	if !ok {
		return
	}
	l.queue = append(l.queue, queuedEvent{order: &order})
}

func (l *Loop) handleOrder(order types.OrderEvent) {
	equity := l.book.Equity()
	ctx := risk.Context{
		Equity:             equity,
		LastClose:          l.book.LastClose(order.Symbol),
		LastVolume:         l.book.LastVolume(order.Symbol),
		DailyDrawdownPct:   l.drawdownPct(equity),
		CurrentPositionQty: l.book.Position(order.Symbol).Quantity,
		GrossExposureExcl:  l.book.GrossExposure(equity, order.Symbol),
		NetExposureExcl:    l.book.NetExposure(equity, order.Symbol),
		BarIndex:           l.barIndex,
	}

	verdict := l.riskMgr.Evaluate(order, ctx)
	if !verdict.Approved {
		l.book.ReleaseReservation(order.ID)
		l.result.Rejected = append(l.result.Rejected, RejectedOrder{Order: order, Reason: verdict.Reason})
		metrics.OrdersRejected.WithLabelValues(verdict.Reason).Inc()
		return
	}

	l.exec.Submit(order)
	l.riskMgr.RecordAccepted(l.barIndex)
}

func (l *Loop) drawdownPct(currentEquity float64) float64 {
	if l.dayOpenEquity <= 0 {
		return 0
	}
	decline := (l.dayOpenEquity - currentEquity) / l.dayOpenEquity
	if decline < 0 {
		return 0
	}
	return decline
}

func (l *Loop) rollDayOpenEquity(bar types.Bar, equity float64, isLastIntervalOfDay bool) {
	key := dayKey(bar.Timestamp)
	if key != l.lastDay {
		l.lastDay = key
		l.dayOpenEquity = equity
	}
	if isLastIntervalOfDay {
		l.lastDay = ""
	}
}

func dayKey(ts time.Time) string { return ts.UTC().Format("2006-01-02") }

func isDailyOrCoarser(i types.Interval) bool {
	switch i {
	case "1d", "1w", "1mo":
		return true
	default:
		return false
	}
}
