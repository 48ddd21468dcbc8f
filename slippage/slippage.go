// Package slippage implements the multi-factor slippage estimator of
// spec §2(d)/§4.8: an EDGE bid-ask spread estimate blended with a
// market-impact term, a momentum/liquidity cost, and a deterministic
// lognormal noise factor.
package slippage

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/quantforge/backtestgo/config"
	"github.com/quantforge/backtestgo/types"
)

// Model estimates the fractional slippage cost of filling a trade, given
// the recent OHLCV history for the symbol (oldest first, most recent
// last) and the trade's own qty/side. The returned fraction already
// carries the sign of any momentum discount/premium (spec §4.8 step 5);
// callers apply it to price per spec §4.8 step 6 (buy: +, sell: -).
type Model interface {
	Estimate(history []types.Bar, side types.Side, qty float64) (frac float64, err error)
}

// NoneModel always returns zero slippage, for config.SlippageNone.
type NoneModel struct{}

// Estimate implements Model.
func (NoneModel) Estimate([]types.Bar, types.Side, float64) (float64, error) { return 0, nil }

// SlippageNumericalError is returned when a degenerate input (zero
// volume, a single-bar history) prevents the full multi-factor formula
// from being evaluated. Per spec §7 this is never fatal: Estimate returns
// it alongside the spread-only fraction it fell back to, and the caller
// still uses that fraction.
type SlippageNumericalError struct {
	Cause error
}

func (e *SlippageNumericalError) Error() string {
	return fmt.Sprintf("slippage: numerical fallback to spread-only: %v", e.Cause)
}
func (e *SlippageNumericalError) Unwrap() error { return e.Cause }

// MultiFactorModel implements spec §4.8 in full. Its RNG is seeded once
// at construction and must never be driven by any other component (spec
// §5's reproducibility requirement).
type MultiFactorModel struct {
	cfg config.SlippageConfig
	rng *rand.Rand
}

// NewMultiFactorModel validates cfg and seeds the model's private RNG.
func NewMultiFactorModel(cfg config.SlippageConfig, seed int64) (*MultiFactorModel, error) {
	if cfg.ShortWindow <= 0 || cfg.MediumWindow <= 0 || cfg.LongWindow <= 0 {
		return nil, fmt.Errorf("slippage: short/medium/long windows must be positive")
	}
	if cfg.ImpactCoefficient == 0 {
		cfg.ImpactCoefficient = 0.1
	}
	return &MultiFactorModel{cfg: cfg, rng: rand.New(rand.NewSource(seed))}, nil
}

// Estimate implements Model, following spec §4.8 steps 1-6.
func (m *MultiFactorModel) Estimate(history []types.Bar, side types.Side, qty float64) (float64, error) {
	spread, err := edgeSpread(history)
	if err != nil {
		return m.spreadOnly(history, err)
	}

	n := len(history)
	if n < 2 {
		return m.spreadOnly(history, fmt.Errorf("need at least 2 bars of history"))
	}
	today := history[n-1]
	yesterday := history[n-2]

	if today.Close <= 0 || today.Volume <= 0 || yesterday.Close <= 0 {
		return m.spreadOnly(history, fmt.Errorf("non-positive close or zero volume"))
	}

	returnToday := math.Log(today.Close / yesterday.Close)

	volMedium := annualizedVolatility(closes(history), m.cfg.MediumWindow, m.cfg.AnnualizationFactor)
	volLong := annualizedVolatility(closes(history), m.cfg.LongWindow, m.cfg.AnnualizationFactor)

	volumes := volumesOf(history)
	turnoverCV := coefficientOfVariation(lastN(volumes, m.cfg.MediumWindow))
	volumeSurge := volumeSurgeOf(volumes, m.cfg.ShortWindow)

	amihud := math.Abs(returnToday) / (today.Close * today.Volume)
	liquidityCost := liquidityCostOf(amihud, turnoverCV, volumeSurge)

	directionSign := 1.0
	if side == types.Sell {
		directionSign = -1.0
	}
	momentumCost := sign(directionSign*returnToday) * math.Abs(returnToday)

	// Blend the medium-window volatility (the primary impact driver) with
	// the long-window level as a regime floor, so a quiet recent stretch
	// inside a historically volatile name doesn't understate impact.
	volForImpact := math.Max(volMedium, 0.5*volLong)

	participation := qty / today.Volume
	marketImpact := m.cfg.ImpactCoefficient * volForImpact * math.Pow(math.Abs(participation), 0.6) * math.Exp(-turnoverCV)

	fracBeforeNoise := spread/2 + marketImpact + momentumCost*liquidityCost

	noise := math.Exp(m.rng.NormFloat64() * m.cfg.NoiseSigma)
	frac := fracBeforeNoise * noise

	return clamp(frac, m.cfg.Floor, m.cfg.Cap), nil
}

// spreadOnly implements the spec §7 fallback: on any numerical edge case
// (zero volume, too-short history) return half the EDGE spread alone,
// clamped, rather than failing the fill, together with a
// SlippageNumericalError naming cause so the caller can warn. If even the
// spread cannot be estimated, the fraction is 0.
func (m *MultiFactorModel) spreadOnly(history []types.Bar, cause error) (float64, error) {
	spread, err := edgeSpread(history)
	if err != nil {
		return 0, &SlippageNumericalError{Cause: err}
	}
	return clamp(spread/2, m.cfg.Floor, m.cfg.Cap), &SlippageNumericalError{Cause: cause}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func clamp(v, floor, cap float64) float64 {
	if cap != 0 && v > cap {
		v = cap
	}
	if v < floor {
		v = floor
	}
	return v
}

// liquidityCostOf is the "monotone increasing blend" of spec §4.8 step 4,
// a simple configurable-free linear combination, increasing in amihud and
// in turnoverCV. A volumeSurge above 1 discounts the result (down to a
// quarter at most), so the cost is not increasing in volumeSurge.
func liquidityCostOf(amihud, turnoverCV, volumeSurge float64) float64 {
	const amihudWeight = 1e6 // amihud is naturally tiny (a ratio of a return to a notional); rescale it into the same order of magnitude as turnoverCV.
	surgeDiscount := 1.0
	if volumeSurge > 1 {
		// A genuine volume surge means more resting liquidity was
		// actually available today; discount the cost accordingly,
		// floored so it can never flip the sign of the blend.
		surgeDiscount = math.Max(0.25, 1/volumeSurge)
	}
	return (amihudWeight*amihud + turnoverCV) * surgeDiscount
}

// volumeSurgeOf returns today's volume relative to the trailing short-window
// moving average volume (clamped to [0,5] per spec §4.8's surge definition).
func volumeSurgeOf(volumes []float64, shortWindow int) float64 {
	if len(volumes) < 2 {
		return 1
	}
	today := volumes[len(volumes)-1]
	window := lastN(volumes[:len(volumes)-1], shortWindow)
	avg := meanOf(window)
	if avg <= 0 {
		return 1
	}
	return clamp(today/avg, 0, 5)
}
