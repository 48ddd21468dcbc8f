package config

import (
	"fmt"

	"github.com/quantforge/backtestgo/types"
	"go.uber.org/multierr"
)

// SizerMethod selects the position-sizing algorithm.
type SizerMethod string

const (
	SizerATR   SizerMethod = "atr"
	SizerFixed SizerMethod = "fixed"
)

// SlippageKind selects the slippage model.
type SlippageKind string

const (
	SlippageNone        SlippageKind = "none"
	SlippageMultiFactor SlippageKind = "multi_factor"
)

// Disabled is the sentinel that switches off an individual risk cap.
const Disabled = -1

// SizerConfig parametrizes the ATR position sizer (spec §4.6).
type SizerConfig struct {
	Method            SizerMethod
	Period            int     // N, the ATR lookback
	ATRMultiplier     float64
	RiskPerTrade      float64 // fraction of equity risked per trade
	InitialPositionSize float64
	DecimalPlaces     int
}

// SlippageConfig parametrizes the multi-factor slippage model (spec §4.8).
type SlippageConfig struct {
	Model               SlippageKind
	ShortWindow         int
	MediumWindow        int
	LongWindow          int
	NoiseSigma          float64
	Floor               float64
	Cap                 float64
	AnnualizationFactor float64
	ImpactCoefficient   float64 // k in market_impact formula
	EstimateGuard       float64 // buffer added to Portfolio.OnSignal's estimated_cost ahead of the real fill
}

// CommissionConfig parametrizes commission charged per fill.
type CommissionConfig struct {
	PerShare float64
	PerTrade float64
	BPS      float64 // basis points of notional
}

// Amount returns the commission owed for a fill of the given quantity and
// notional value.
func (c CommissionConfig) Amount(qty, notional float64) float64 {
	fee := c.PerShare*qty + c.PerTrade
	if c.BPS != 0 {
		fee += notional * c.BPS / 10000.0
	}
	return fee
}

// RiskConfig holds the seven sequential caps of spec §4.7. Any field set to
// Disabled (-1) is skipped.
type RiskConfig struct {
	MaxOrderQuantity  float64
	MaxNotional       float64
	MaxDailyDrawdown  float64
	MaxGrossExposure  float64
	MaxNetExposure    float64
	POVCap            float64
	MaxOrdersPerWindow int
	RateWindowBars    int
}

// ShortingConfig parametrizes margin/borrow accounting (spec §4.3).
type ShortingConfig struct {
	AnnualBorrowRate          float64
	MaintenanceMarginMultiplier float64
	TradingDaysPerYear        float64
}

// StrategyBinding names a strategy implementation and the frequencies it
// subscribes to; params are strategy-specific and opaque to the core.
type StrategyBinding struct {
	Name        string
	Params      map[string]float64
	Frequencies []types.Interval
}

// BacktestConfig is the full enumerated configuration of spec §6.
type BacktestConfig struct {
	BaseInterval            types.Interval
	Strategies              []StrategyBinding
	PositionSizer           SizerConfig
	Slippage                SlippageConfig
	Commissions             CommissionConfig
	Risk                    RiskConfig
	Shorting                ShortingConfig
	ContinueOnNegativeCash  bool
	RNGSeed                 int64
}

// ConfigError wraps a configuration validation failure. Per spec §7 it is
// always fatal at startup.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %v", e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// Validate returns the first configuration problem found, wrapped in a
// ConfigError, matching the teacher's StrategyConfig.Validate first-error
// idiom.
func (c *BacktestConfig) Validate() error {
	if errs := c.collectErrors(); len(errs) > 0 {
		return &ConfigError{Err: errs[0]}
	}
	return nil
}

// ValidateAll returns every configuration problem found at once (using
// multierr, a dependency the teacher already carries indirectly), for
// friendlier startup diagnostics than Validate's first-error-wins.
func (c *BacktestConfig) ValidateAll() error {
	errs := c.collectErrors()
	if len(errs) == 0 {
		return nil
	}
	var combined error
	for _, e := range errs {
		combined = multierr.Append(combined, e)
	}
	return &ConfigError{Err: combined}
}

func (c *BacktestConfig) collectErrors() []error {
	var errs []error
	if c.BaseInterval == "" {
		errs = append(errs, fmt.Errorf("base_interval must be set"))
	}
	if len(c.Strategies) == 0 {
		errs = append(errs, fmt.Errorf("at least one strategy binding is required"))
	}
	switch c.PositionSizer.Method {
	case SizerATR:
		if c.PositionSizer.Period <= 0 {
			errs = append(errs, fmt.Errorf("position_sizer.period must be positive"))
		}
		if c.PositionSizer.ATRMultiplier <= 0 {
			errs = append(errs, fmt.Errorf("position_sizer.atr_multiplier must be positive"))
		}
		if c.PositionSizer.RiskPerTrade <= 0 || c.PositionSizer.RiskPerTrade > 1 {
			errs = append(errs, fmt.Errorf("position_sizer.risk_per_trade must be in (0,1]"))
		}
		if c.PositionSizer.DecimalPlaces < 0 {
			errs = append(errs, fmt.Errorf("position_sizer.decimal_places cannot be negative"))
		}
	case SizerFixed:
		if c.PositionSizer.InitialPositionSize <= 0 {
			errs = append(errs, fmt.Errorf("position_sizer.initial_position_size must be positive for fixed sizing"))
		}
	default:
		errs = append(errs, fmt.Errorf("position_sizer.method %q is unknown", c.PositionSizer.Method))
	}

	switch c.Slippage.Model {
	case SlippageNone:
	case SlippageMultiFactor:
		if c.Slippage.AnnualizationFactor == 0 && !isDailyOrCoarser(c.BaseInterval) {
			errs = append(errs, fmt.Errorf("slippage.annualization_factor must be set explicitly when base_interval %q is sub-daily", c.BaseInterval))
		}
		if c.Slippage.Floor > c.Slippage.Cap {
			errs = append(errs, fmt.Errorf("slippage.floor (%v) cannot exceed slippage.cap (%v)", c.Slippage.Floor, c.Slippage.Cap))
		}
		if c.Slippage.NoiseSigma < 0 {
			errs = append(errs, fmt.Errorf("slippage.noise_sigma cannot be negative"))
		}
		if c.Slippage.EstimateGuard < 0 {
			errs = append(errs, fmt.Errorf("slippage.estimate_guard cannot be negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("slippage.model %q is unknown", c.Slippage.Model))
	}

	if c.Shorting.MaintenanceMarginMultiplier < 1 {
		errs = append(errs, fmt.Errorf("shorting.maintenance_margin_multiplier must be >= 1"))
	}
	if c.Shorting.TradingDaysPerYear <= 0 {
		errs = append(errs, fmt.Errorf("shorting.trading_days_per_year must be positive"))
	}
	if c.Shorting.AnnualBorrowRate < 0 {
		errs = append(errs, fmt.Errorf("shorting.annual_borrow_rate cannot be negative"))
	}

	if c.Risk.POVCap != Disabled && (c.Risk.POVCap <= 0 || c.Risk.POVCap > 1) {
		errs = append(errs, fmt.Errorf("risk.pov_cap must be in (0,1] or %v to disable", Disabled))
	}
	if c.Risk.MaxGrossExposure != Disabled && c.Risk.MaxGrossExposure <= 0 {
		errs = append(errs, fmt.Errorf("risk.max_gross_exposure must be positive or %v to disable", Disabled))
	}
	return errs
}

// isDailyOrCoarser reports whether interval i is "1d" or coarser, matching
// spec §9's sub-daily slippage guard.
func isDailyOrCoarser(i types.Interval) bool {
	switch i {
	case "1d", "1w", "1mo":
		return true
	default:
		return false
	}
}

// DefaultShorting returns the conventional daily-equity shorting defaults
// referenced throughout spec §4.3's worked examples.
func DefaultShorting() ShortingConfig {
	return ShortingConfig{
		AnnualBorrowRate:            0.03,
		MaintenanceMarginMultiplier: 1.5,
		TradingDaysPerYear:          252,
	}
}
