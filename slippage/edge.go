package slippage

import (
	"fmt"
	"math"

	"github.com/quantforge/backtestgo/types"
)

// edgeSpread estimates the effective bid-ask spread as a fraction of price,
// following the Discrete Generalized Estimator (EDGE) approach of Ardia,
// Guidotti & Kroencke: several noisy estimators of the same underlying
// spread, conditioned on where the open/close sit relative to the bar's
// high/low, combined by inverse-variance weighting. Always >= 0.
func edgeSpread(bars []types.Bar) (float64, error) {
	if len(bars) < 2 {
		return 0, fmt.Errorf("slippage: need at least 2 bars for a spread estimate")
	}

	type subset struct {
		cond func(b types.Bar) bool
	}
	subsets := []subset{
		{cond: func(b types.Bar) bool { return touchesHigh(b.Open, b) }},
		{cond: func(b types.Bar) bool { return touchesLow(b.Open, b) }},
		{cond: func(b types.Bar) bool { return touchesHigh(b.Close, b) }},
		{cond: func(b types.Bar) bool { return touchesLow(b.Close, b) }},
	}

	var weightedSum, weightTotal float64
	for _, s := range subsets {
		var sqRanges []float64
		for _, b := range bars {
			if b.High <= 0 || b.Low <= 0 || !s.cond(b) {
				continue
			}
			logRange := math.Log(b.High) - math.Log(b.Low)
			sqRanges = append(sqRanges, 2*logRange*logRange)
		}
		if len(sqRanges) == 0 {
			continue
		}
		estimate := meanOf(sqRanges)
		variance := sampleStdDev(sqRanges)
		variance = variance * variance
		weight := 1.0
		if variance > 0 {
			weight = 1.0 / variance
		}
		weightedSum += weight * estimate
		weightTotal += weight
	}

	var combined float64
	if weightTotal > 0 {
		combined = weightedSum / weightTotal
	} else {
		// No bar in the window ever touched its own high/low with
		// open/close (common for continuously-quoted synthetic data):
		// fall back to the plain range-based estimator over the full
		// window so the spread estimate still responds to dispersion.
		var sqRanges []float64
		for _, b := range bars {
			if b.High <= 0 || b.Low <= 0 {
				continue
			}
			logRange := math.Log(b.High) - math.Log(b.Low)
			sqRanges = append(sqRanges, 2*logRange*logRange)
		}
		if len(sqRanges) == 0 {
			return 0, fmt.Errorf("slippage: no usable high/low data in window")
		}
		combined = meanOf(sqRanges)
	}

	if combined < 0 {
		combined = 0
	}
	return math.Sqrt(combined), nil
}

func touchesHigh(price float64, b types.Bar) bool { return almostEqual(price, b.High) }
func touchesLow(price float64, b types.Bar) bool  { return almostEqual(price, b.Low) }

func almostEqual(a, b float64) bool {
	const eps = 1e-9
	return math.Abs(a-b) <= eps*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
