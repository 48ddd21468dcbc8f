package strategy

import (
	"github.com/evdnx/goti"
	"github.com/quantforge/backtestgo/config"
	"github.com/quantforge/backtestgo/logger"
)

// BaseStrategy bundles the dependencies common to every reference
// strategy: the validated indicator thresholds, a rolling price buffer
// and the structured logger. Concrete strategies embed it and implement
// Strategy.OnInterval on top.
type BaseStrategy struct {
	Log    logger.Logger
	Cfg    config.StrategyConfig
	Suite  *goti.IndicatorSuite
	Symbol string

	prices *priceBuffer
}

// NewBaseStrategy validates cfg, builds the indicator suite via the
// supplied factory, and wires a rolling price buffer of the given depth.
func NewBaseStrategy(symbol string, cfg config.StrategyConfig,
	suiteFactory func() (*goti.IndicatorSuite, error),
	log logger.Logger, bufferDepth int) (*BaseStrategy, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	suite, err := suiteFactory()
	if err != nil {
		return nil, err
	}
	return &BaseStrategy{
		Log:    log,
		Cfg:    cfg,
		Suite:  suite,
		Symbol: symbol,
		prices: newPriceBuffer(bufferDepth),
	}, nil
}

// observe feeds the bar's close into the rolling buffer; concrete
// strategies call this at the top of OnInterval before reading trend
// statistics off b.prices.
func (b *BaseStrategy) observe(close float64) {
	b.prices.Add(close)
}
