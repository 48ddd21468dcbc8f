package config

import (
	"fmt"

	"github.com/quantforge/backtestgo/types"
	"github.com/spf13/viper"
)

// Load reads a BacktestConfig from a YAML/TOML/JSON file at path using
// viper. File-format parsing is an external-collaborator concern per spec
// §1 — this is the thin ambient surface the core still exposes so a real
// entry point has somewhere to call.
func Load(path string) (*BacktestConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("continue_on_negative_cash", false)
	v.SetDefault("rng_seed", 1)
	v.SetDefault("shorting.trading_days_per_year", 252)
	v.SetDefault("shorting.maintenance_margin_multiplier", 1.5)

	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("reading %s: %w", path, err)}
	}

	cfg := &BacktestConfig{
		BaseInterval: types.Interval(v.GetString("base_interval")),
		PositionSizer: SizerConfig{
			Method:              SizerMethod(v.GetString("position_sizer.method")),
			Period:              v.GetInt("position_sizer.period"),
			ATRMultiplier:       v.GetFloat64("position_sizer.atr_multiplier"),
			RiskPerTrade:        v.GetFloat64("position_sizer.risk_per_trade"),
			InitialPositionSize: v.GetFloat64("position_sizer.initial_position_size"),
			DecimalPlaces:       v.GetInt("position_sizer.decimal_places"),
		},
		Slippage: SlippageConfig{
			Model:               SlippageKind(v.GetString("slippage.model")),
			ShortWindow:         v.GetInt("slippage.short_window"),
			MediumWindow:        v.GetInt("slippage.medium_window"),
			LongWindow:          v.GetInt("slippage.long_window"),
			NoiseSigma:          v.GetFloat64("slippage.noise_sigma"),
			Floor:               v.GetFloat64("slippage.floor"),
			Cap:                 v.GetFloat64("slippage.cap"),
			AnnualizationFactor: v.GetFloat64("slippage.annualization_factor"),
			ImpactCoefficient:   v.GetFloat64("slippage.impact_coefficient"),
			EstimateGuard:       v.GetFloat64("slippage.estimate_guard"),
		},
		Commissions: CommissionConfig{
			PerShare: v.GetFloat64("commissions.per_share"),
			PerTrade: v.GetFloat64("commissions.per_trade"),
			BPS:      v.GetFloat64("commissions.bps"),
		},
		Risk: RiskConfig{
			MaxOrderQuantity:   v.GetFloat64("risk.max_order_quantity"),
			MaxNotional:        v.GetFloat64("risk.max_notional"),
			MaxDailyDrawdown:   v.GetFloat64("risk.max_daily_drawdown"),
			MaxGrossExposure:   v.GetFloat64("risk.max_gross_exposure"),
			MaxNetExposure:     v.GetFloat64("risk.max_net_exposure"),
			POVCap:             v.GetFloat64("risk.pov_cap"),
			MaxOrdersPerWindow: v.GetInt("risk.max_orders_per_window"),
			RateWindowBars:     v.GetInt("risk.rate_window_bars"),
		},
		Shorting: ShortingConfig{
			AnnualBorrowRate:            v.GetFloat64("shorting.annual_borrow_rate"),
			MaintenanceMarginMultiplier: v.GetFloat64("shorting.maintenance_margin_multiplier"),
			TradingDaysPerYear:          v.GetFloat64("shorting.trading_days_per_year"),
		},
		ContinueOnNegativeCash: v.GetBool("continue_on_negative_cash"),
		RNGSeed:                v.GetInt64("rng_seed"),
	}

	for name := range v.GetStringMap("strategies") {
		key := "strategies." + name
		var freqs []types.Interval
		for _, f := range v.GetStringSlice(key + ".frequencies") {
			freqs = append(freqs, types.Interval(f))
		}
		params := map[string]float64{}
		for k, val := range v.GetStringMap(key + ".params") {
			if f, ok := val.(float64); ok {
				params[k] = f
			}
		}
		cfg.Strategies = append(cfg.Strategies, StrategyBinding{
			Name:        name,
			Params:      params,
			Frequencies: freqs,
		})
	}

	if err := cfg.ValidateAll(); err != nil {
		return nil, err
	}
	return cfg, nil
}
