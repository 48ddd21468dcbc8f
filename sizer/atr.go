// Package sizer implements the position sizers of spec §2(f)/§4.6: an
// ATR/Wilder-smoothed sizer and a trivial fixed-size sizer, both behind
// the Sizer interface so the engine can pick one from config (spec §9's
// "dynamic dispatch... pick an implementation at startup from config").
package sizer

import (
	"fmt"
	"math"

	"github.com/quantforge/backtestgo/aggregator"
	"github.com/quantforge/backtestgo/config"
	"github.com/quantforge/backtestgo/types"
	"github.com/shopspring/decimal"
)

// Sizer turns the current equity into a target absolute share count; the
// caller applies the signal's direction. A false second return means "no
// opinion yet" (warm-up incomplete); the caller (engine.Loop) reuses the
// previous size.
type Sizer interface {
	TargetQuantity(equity float64) (qty float64, ok bool)
}

// ATRSizer implements spec §4.6: Wilder-smoothed Average True Range
// converted into a share count from a fixed fractional risk budget. It
// also implements aggregator.Subscriber so the engine can wire it
// directly as a per-symbol-frequency ATR updater (spec §4.1 step 3).
type ATRSizer struct {
	cfg config.SizerConfig

	trBuffer []float64
	atr      float64
	warmed   bool

	hasPrevClose bool
	prevClose    float64

	firstCallDone bool
}

var _ aggregator.Subscriber = (*ATRSizer)(nil)

// NewATRSizer validates cfg and returns a ready-to-feed sizer.
func NewATRSizer(cfg config.SizerConfig) (*ATRSizer, error) {
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("sizer: period must be positive")
	}
	if cfg.ATRMultiplier <= 0 {
		return nil, fmt.Errorf("sizer: atr_multiplier must be positive")
	}
	if cfg.RiskPerTrade <= 0 {
		return nil, fmt.Errorf("sizer: risk_per_trade must be positive")
	}
	return &ATRSizer{cfg: cfg}, nil
}

// OnInterval implements aggregator.Subscriber: every closed bar on the
// subscribed frequency feeds the True Range / ATR update.
func (s *ATRSizer) OnInterval(symbol string, interval types.Interval, bar types.Bar) {
	s.Update(bar)
}

// Update folds one closed bar's True Range into the ATR estimate,
// following spec §4.6's warm-up-then-Wilder-smoothing rule exactly.
func (s *ATRSizer) Update(bar types.Bar) {
	var tr float64
	if s.hasPrevClose {
		tr = math.Max(bar.High-bar.Low, math.Max(
			math.Abs(bar.High-s.prevClose),
			math.Abs(bar.Low-s.prevClose),
		))
	} else {
		tr = bar.High - bar.Low
	}
	s.prevClose = bar.Close
	s.hasPrevClose = true

	if !s.warmed {
		s.trBuffer = append(s.trBuffer, tr)
		if len(s.trBuffer) < s.cfg.Period {
			return
		}
		sum := 0.0
		for _, v := range s.trBuffer {
			sum += v
		}
		s.atr = sum / float64(len(s.trBuffer))
		s.warmed = true
		return
	}

	n := float64(s.cfg.Period)
	s.atr = ((n-1)*s.atr + tr) / n
}

// TargetQuantity implements Sizer. The very first ever call always
// returns InitialPositionSize regardless of warm-up state (spec §4.6);
// thereafter it returns (0,false) until the ATR has warmed up.
func (s *ATRSizer) TargetQuantity(equity float64) (float64, bool) {
	if !s.firstCallDone {
		s.firstCallDone = true
		return s.cfg.InitialPositionSize, true
	}
	if !s.warmed {
		return 0, false
	}
	capitalToRisk := s.cfg.RiskPerTrade * equity
	stopDistance := s.atr * s.cfg.ATRMultiplier
	if stopDistance <= 0 {
		return 0, false
	}
	raw := capitalToRisk / stopDistance
	qty, _ := decimal.NewFromFloat(raw).Truncate(int32(s.cfg.DecimalPlaces)).Float64()
	return qty, true
}

// ATR exposes the current smoothed estimate, mainly for tests/metrics.
func (s *ATRSizer) ATR() float64 { return s.atr }

// Warmed reports whether the ATR estimate has completed its warm-up.
func (s *ATRSizer) Warmed() bool { return s.warmed }

// FixedSizer always targets the same absolute share count, for the
// config.SizerFixed method.
type FixedSizer struct {
	size float64
}

// NewFixedSizer returns a Sizer that always targets size shares.
func NewFixedSizer(size float64) *FixedSizer { return &FixedSizer{size: size} }

// TargetQuantity implements Sizer.
func (s *FixedSizer) TargetQuantity(float64) (float64, bool) { return s.size, true }
