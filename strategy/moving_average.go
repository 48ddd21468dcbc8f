package strategy

import (
	"github.com/evdnx/goti"
	"github.com/quantforge/backtestgo/config"
	"github.com/quantforge/backtestgo/logger"
	"github.com/quantforge/backtestgo/types"
)

// MovingAverage is a minimal trend-following reference strategy: bullish
// while the rolling price buffer's slope is positive and its Trend()
// score agrees, bearish on the mirror condition, flat otherwise. Kept
// only to exercise Strategy with a non-trivial signal (spec §1 places
// real strategy implementations out of core scope).
type MovingAverage struct {
	*BaseStrategy
	lastDirection types.Direction
}

// NewMovingAverage constructs a MovingAverage for symbol with a rolling
// window of the given depth (bars).
func NewMovingAverage(symbol string, window int, log logger.Logger) (*MovingAverage, error) {
	cfg := config.StrategyConfig{
		RSIOverbought:     1e9,
		RSIOversold:       -1e9,
		MFIOverbought:     1e9,
		MFIOversold:       -1e9,
		VWAOStrongTrend:   1e9,
		HMAPeriod:         9,
		ATSEMAperiod:      5,
		MaxRiskPerTrade:   0.01,
		StopLossPct:       0.015,
		QuantityPrecision: 2,
		MinQty:            0.001,
		StepSize:          0.0001,
	}
	suiteFactory := func() (*goti.IndicatorSuite, error) {
		ic := goti.DefaultConfig()
		return goti.NewIndicatorSuiteWithConfig(ic)
	}
	base, err := NewBaseStrategy(symbol, cfg, suiteFactory, log, window)
	if err != nil {
		return nil, err
	}
	return &MovingAverage{BaseStrategy: base, lastDirection: types.Flat}, nil
}

// OnInterval implements Strategy.
func (s *MovingAverage) OnInterval(symbol string, interval types.Interval, bar types.Bar) (types.SignalEvent, bool) {
	s.observe(bar.Close)
	if s.prices.Len() < 3 {
		return types.SignalEvent{}, false
	}

	trend := s.prices.Trend()
	slope := s.prices.Slope()

	dir := types.Flat
	switch {
	case trend > 0 && slope > 0:
		dir = types.Bullish
	case trend < 0 && slope < 0:
		dir = types.Bearish
	}

	if dir == s.lastDirection {
		return types.SignalEvent{}, false
	}
	s.lastDirection = dir

	strength := slope
	if strength < 0 {
		strength = -strength
	}
	return types.SignalEvent{
		Symbol:    symbol,
		Direction: dir,
		Strength:  strength,
		Timestamp: bar.Timestamp,
	}, true
}
