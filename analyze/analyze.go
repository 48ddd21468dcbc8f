// Package analyze computes the spec §4.9 performance summary from a
// completed backtest's equity curve and fills: CAGR, Sharpe, max drawdown
// (value and duration), turnover, and win rate.
package analyze

import (
	"math"

	"github.com/quantforge/backtestgo/types"
)

// Summary is the structured metrics result emitted after a backtest loop,
// shaped after the teacher pack's PerformanceMetrics conventions.
type Summary struct {
	CAGR               float64
	SharpeRatio        float64
	MaxDrawdown        float64 // absolute currency units
	MaxDrawdownPercent float64
	MaxDrawdownBars    int // duration in trading intervals
	Turnover           float64
	WinRate            float64
	WinningTrades      int
	LosingTrades       int
}

// Compute derives Summary from curve (one EquityPoint per base-interval
// close, in chronological order) and fills (the trade log), given how
// many intervals make up one trading year (e.g. 252 for daily data).
func Compute(curve []types.EquityPoint, fills []types.FillEvent, annualizationFactor float64) Summary {
	var s Summary
	if len(curve) == 0 {
		return s
	}

	s.CAGR = cagr(curve, annualizationFactor)
	s.SharpeRatio = sharpe(curve, annualizationFactor)
	s.MaxDrawdown, s.MaxDrawdownPercent, s.MaxDrawdownBars = maxDrawdown(curve)
	s.Turnover = turnover(fills, curve)
	s.WinRate, s.WinningTrades, s.LosingTrades = winRate(fills)
	return s
}

// cagr annualizes the total return over the curve's span using
// annualizationFactor trading intervals per year.
func cagr(curve []types.EquityPoint, annualizationFactor float64) float64 {
	start := curve[0].Equity
	end := curve[len(curve)-1].Equity
	if start <= 0 || annualizationFactor <= 0 {
		return 0
	}
	years := float64(len(curve)-1) / annualizationFactor
	if years <= 0 {
		return 0
	}
	return math.Pow(end/start, 1/years) - 1
}

// sharpe is the annualized Sharpe ratio of the curve's interval returns,
// annualized by sqrt(annualizationFactor) per spec §4.9.
func sharpe(curve []types.EquityPoint, annualizationFactor float64) float64 {
	rets := returns(curve)
	if len(rets) < 2 {
		return 0
	}
	mean := meanOf(rets)
	sd := sampleStdDev(rets, mean)
	if sd == 0 {
		return 0
	}
	return (mean / sd) * math.Sqrt(annualizationFactor)
}

func returns(curve []types.EquityPoint) []float64 {
	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		rets = append(rets, (curve[i].Equity-prev)/prev)
	}
	return rets
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

func sampleStdDev(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// maxDrawdown walks the curve tracking the running peak, returning the
// largest peak-to-trough decline (absolute and percent) and how many
// intervals separate that peak from its trough. Time to recover is not
// measured.
func maxDrawdown(curve []types.EquityPoint) (abs, pct float64, bars int) {
	peak := curve[0].Equity
	peakIdx := 0
	var worstAbs, worstPct float64
	var worstBars int

	for i, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
			peakIdx = i
		}
		decline := peak - p.Equity
		if decline > worstAbs {
			worstAbs = decline
			if peak > 0 {
				worstPct = decline / peak
			}
			worstBars = i - peakIdx
		}
	}
	return worstAbs, worstPct, worstBars
}

// turnover is Σ|fill notional| / average equity, a dimensionless measure
// of how much capital was traded relative to the portfolio's size.
func turnover(fills []types.FillEvent, curve []types.EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	var avgEquity float64
	for _, p := range curve {
		avgEquity += p.Equity
	}
	avgEquity /= float64(len(curve))
	if avgEquity <= 0 {
		return 0
	}

	var traded float64
	for _, f := range fills {
		traded += math.Abs(f.Quantity * f.FillPrice)
	}
	return traded / avgEquity
}

// winRate pairs consecutive same-symbol fills as open/close round trips
// and reports the fraction that realized a profit.
func winRate(fills []types.FillEvent) (rate float64, wins, losses int) {
	open := map[string]types.FillEvent{}
	for _, f := range fills {
		prior, has := open[f.Symbol]
		if !has {
			open[f.Symbol] = f
			continue
		}
		pnl := roundTripPnL(prior, f)
		if pnl > 0 {
			wins++
		} else if pnl < 0 {
			losses++
		}
		delete(open, f.Symbol)
	}
	total := wins + losses
	if total == 0 {
		return 0, wins, losses
	}
	return float64(wins) / float64(total), wins, losses
}

func roundTripPnL(open, close types.FillEvent) float64 {
	direction := 1.0
	if open.Side == types.Sell {
		direction = -1.0
	}
	gross := direction * (close.FillPrice - open.FillPrice) * math.Min(open.Quantity, close.Quantity)
	return gross - open.Commission - close.Commission
}
