// Package risk implements the spec §4.7 Risk Manager: seven sequential
// checks on an outgoing order, first failure wins. A rejection is an
// ordinary returned value (RiskVerdict), never a Go error — risk
// rejections are an expected part of the control flow, not a failure.
package risk

import (
	"math"

	"github.com/quantforge/backtestgo/config"
	"github.com/quantforge/backtestgo/types"
)

// Rejection reasons, recorded verbatim in the trade log (spec §8 scenario 5
// names "pov_exceeded" literally).
const (
	ReasonMaxOrderQuantity = "max_order_quantity_exceeded"
	ReasonMaxNotional      = "max_notional_exceeded"
	ReasonDrawdownGuard    = "drawdown_reducing_only"
	ReasonGrossExposure    = "gross_exposure_exceeded"
	ReasonNetExposure      = "net_exposure_exceeded"
	ReasonPOV              = "pov_exceeded"
	ReasonRateLimit        = "order_rate_exceeded"
)

// RiskVerdict is the outcome of evaluating one order.
type RiskVerdict struct {
	Approved bool
	Reason   string
}

// Approved is a convenience constructor for the passing verdict.
func Approved() RiskVerdict { return RiskVerdict{Approved: true} }

// Rejected is a convenience constructor for a failing verdict.
func Rejected(reason string) RiskVerdict { return RiskVerdict{Approved: false, Reason: reason} }

// Context carries the portfolio/market state the RiskManager needs to
// evaluate one order; the caller (engine/portfolio) assembles it fresh per
// order from current state, pre-order.
type Context struct {
	Equity             float64
	LastClose          float64
	LastVolume         float64
	DailyDrawdownPct   float64 // e.g. 0.05 for a 5% decline since the start of the trading day
	CurrentPositionQty float64 // signed, before this order
	GrossExposureExcl  float64 // Σ|qty·price|/equity across all other open positions
	NetExposureExcl    float64 // Σ(qty·price)/equity, signed, across all other open positions
	BarIndex           int     // monotonically increasing tick counter, for the rate-limit window
}

// RiskManager evaluates orders against config.RiskConfig, the only part of
// the seven checks that is stateful across calls (the order-rate window).
type RiskManager struct {
	cfg          config.RiskConfig
	acceptedBars []int
}

// NewRiskManager returns a ready-to-use manager for cfg.
func NewRiskManager(cfg config.RiskConfig) *RiskManager {
	return &RiskManager{cfg: cfg}
}

// Evaluate runs the seven sequential checks of spec §4.7 against order,
// given ctx, returning the first rejection encountered (or Approved()).
// It does not itself mutate state for an approved order — call
// RecordAccepted once the order is actually submitted.
func (r *RiskManager) Evaluate(order types.OrderEvent, ctx Context) RiskVerdict {
	if r.cfg.MaxOrderQuantity != config.Disabled && order.Quantity > r.cfg.MaxOrderQuantity {
		return Rejected(ReasonMaxOrderQuantity)
	}

	notional := order.Quantity * ctx.LastClose
	if r.cfg.MaxNotional != config.Disabled && notional > r.cfg.MaxNotional {
		return Rejected(ReasonMaxNotional)
	}

	if r.cfg.MaxDailyDrawdown != config.Disabled && ctx.DailyDrawdownPct >= r.cfg.MaxDailyDrawdown {
		if !isReducingOrder(order, ctx.CurrentPositionQty) {
			return Rejected(ReasonDrawdownGuard)
		}
	}

	if ctx.Equity > 0 {
		// Value of this symbol's holding once the order fills: the existing
		// position plus the order's signed quantity, at the last close.
		signedQty := order.Quantity
		if order.Side == types.Sell {
			signedQty = -signedQty
		}
		postValue := (ctx.CurrentPositionQty + signedQty) * ctx.LastClose
		if r.cfg.MaxGrossExposure != config.Disabled {
			grossAfter := ctx.GrossExposureExcl + math.Abs(postValue)/ctx.Equity
			if grossAfter > r.cfg.MaxGrossExposure {
				return Rejected(ReasonGrossExposure)
			}
		}
		if r.cfg.MaxNetExposure != config.Disabled {
			netAfter := ctx.NetExposureExcl + postValue/ctx.Equity
			if math.Abs(netAfter) > r.cfg.MaxNetExposure {
				return Rejected(ReasonNetExposure)
			}
		}
	}

	if r.cfg.POVCap != config.Disabled && ctx.LastVolume > 0 {
		if order.Quantity/ctx.LastVolume > r.cfg.POVCap {
			return Rejected(ReasonPOV)
		}
	}

	if r.cfg.MaxOrdersPerWindow != config.Disabled {
		count := r.countInWindow(ctx.BarIndex)
		if count >= r.cfg.MaxOrdersPerWindow {
			return Rejected(ReasonRateLimit)
		}
	}

	return Approved()
}

// RecordAccepted registers that an order was actually submitted at
// barIndex, feeding the order-rate window for future Evaluate calls.
func (r *RiskManager) RecordAccepted(barIndex int) {
	r.acceptedBars = append(r.acceptedBars, barIndex)
	r.pruneBefore(barIndex - r.cfg.RateWindowBars + 1)
}

func (r *RiskManager) countInWindow(barIndex int) int {
	cutoff := barIndex - r.cfg.RateWindowBars + 1
	count := 0
	for _, b := range r.acceptedBars {
		if b >= cutoff {
			count++
		}
	}
	return count
}

func (r *RiskManager) pruneBefore(cutoff int) {
	kept := r.acceptedBars[:0]
	for _, b := range r.acceptedBars {
		if b >= cutoff {
			kept = append(kept, b)
		}
	}
	r.acceptedBars = kept
}

// isReducingOrder reports whether applying order to currentQty strictly
// decreases the position's absolute magnitude (spec §4.7's daily-drawdown
// guard: "only reducing orders are allowed").
func isReducingOrder(order types.OrderEvent, currentQty float64) bool {
	delta := order.Quantity
	if order.Side == types.Sell {
		delta = -delta
	}
	newQty := currentQty + delta
	return math.Abs(newQty) < math.Abs(currentQty)
}
