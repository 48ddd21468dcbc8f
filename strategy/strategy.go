// Package strategy defines the external-collaborator interface the
// backtest loop dispatches MarketEvents to (spec §4.5), plus a small
// composition scaffold (BaseStrategy) and two reference implementations
// used only to exercise that interface in tests. Real strategies live
// outside this module; the core never introspects their internal state.
package strategy

import "github.com/quantforge/backtestgo/types"

// Strategy is the interface every strategy implementation must satisfy.
// OnInterval is called once per closed interval the strategy subscribed
// to; it returns a signal and true, or an empty signal and false if no
// opinion is formed for this bar. Strategies set Direction and Strength
// only — the position sizer, not the strategy, decides TargetHolding.
type Strategy interface {
	OnInterval(symbol string, interval types.Interval, bar types.Bar) (types.SignalEvent, bool)
}
