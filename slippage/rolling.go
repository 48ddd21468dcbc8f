package slippage

import (
	"math"

	"github.com/quantforge/backtestgo/types"
)

// closes extracts the close-price series from a bar history, oldest first.
func closes(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// volumesOf extracts the volume series from a bar history, oldest first.
func volumesOf(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// lastN returns the trailing n elements of xs (or all of xs if shorter).
func lastN(xs []float64, n int) []float64 {
	if n <= 0 || n >= len(xs) {
		return xs
	}
	return xs[len(xs)-n:]
}

// logReturns converts a close-price series into log returns, one shorter.
func logReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		out = append(out, math.Log(closes[i]/closes[i-1]))
	}
	return out
}

// sampleStdDev computes the (n-1)-denominator standard deviation of xs.
func sampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := meanOf(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// annualizedVolatility returns the sample std-dev of log returns over the
// trailing window, scaled by sqrt(annualizationFactor) per spec §4.8 step 2.
func annualizedVolatility(closeSeries []float64, window int, annualizationFactor float64) float64 {
	rets := logReturns(lastN(closeSeries, window+1))
	if annualizationFactor <= 0 {
		annualizationFactor = 1
	}
	return sampleStdDev(rets) * math.Sqrt(annualizationFactor)
}

// coefficientOfVariation returns std/mean of xs, or 0 when the mean is zero
// or too few samples exist to be meaningful.
func coefficientOfVariation(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := meanOf(xs)
	if mean == 0 {
		return 0
	}
	return sampleStdDev(xs) / mean
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
