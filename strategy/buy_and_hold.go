package strategy

import (
	"github.com/evdnx/goti"
	"github.com/quantforge/backtestgo/config"
	"github.com/quantforge/backtestgo/logger"
	"github.com/quantforge/backtestgo/types"
)

// BuyAndHold emits a single bullish signal on the first bar it sees and
// stays silent afterwards. It is the simplest possible Strategy
// implementation, kept only to exercise the interface in engine tests —
// spec §1 places real strategy implementations out of core scope.
type BuyAndHold struct {
	*BaseStrategy
	entered bool
}

// NewBuyAndHold constructs a BuyAndHold for symbol using an extreme-
// threshold indicator config, matching the teacher's
// always-permissive-thresholds test convention.
func NewBuyAndHold(symbol string, log logger.Logger) (*BuyAndHold, error) {
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
	base, err := NewBaseStrategy(symbol, cfg, suiteFactory, log, 1)
	if err != nil {
		return nil, err
	}
	return &BuyAndHold{BaseStrategy: base}, nil
}

// OnInterval implements Strategy.
func (s *BuyAndHold) OnInterval(symbol string, interval types.Interval, bar types.Bar) (types.SignalEvent, bool) {
	s.observe(bar.Close)
	if s.entered {
		return types.SignalEvent{}, false
	}
	s.entered = true
	return types.SignalEvent{
		Symbol:    symbol,
		Direction: types.Bullish,
		Strength:  1,
		Timestamp: bar.Timestamp,
	}, true
}
