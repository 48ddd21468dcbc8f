package analyze

import (
	"testing"
	"time"

	"github.com/quantforge/backtestgo/types"
)

func point(day int, equity float64) types.EquityPoint {
	return types.EquityPoint{Timestamp: time.Date(2024, 1, 1+day, 0, 0, 0, 0, time.UTC), Equity: equity}
}

func TestComputeEmptyCurve(t *testing.T) {
	s := Compute(nil, nil, 252)
	if s != (Summary{}) {
		t.Fatalf("expected zero-value summary for empty curve, got %+v", s)
	}
}

func TestMaxDrawdownFindsPeakToTrough(t *testing.T) {
	curve := []types.EquityPoint{
		point(0, 1000),
		point(1, 1200),
		point(2, 900),
		point(3, 1100),
	}
	abs, pct, bars := maxDrawdown(curve)
	if abs != 300 {
		t.Fatalf("expected max drawdown abs=300, got %v", abs)
	}
	wantPct := 300.0 / 1200.0
	if pct != wantPct {
		t.Fatalf("expected max drawdown pct=%v, got %v", wantPct, pct)
	}
	if bars != 1 {
		t.Fatalf("expected drawdown duration=1 bar (peak at index1, trough at index2), got %d", bars)
	}
}

func TestCAGRDoublingOverOneYear(t *testing.T) {
	curve := make([]types.EquityPoint, 253)
	for i := range curve {
		curve[i] = point(i, 1000)
	}
	curve[252].Equity = 2000
	got := cagr(curve, 252)
	want := 1.0
	if diff := got - want; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("expected CAGR~1.0 (100%% over one year), got %v", got)
	}
}

func TestWinRateCountsProfitableRoundTrips(t *testing.T) {
	fills := []types.FillEvent{
		{Symbol: "AAPL", Side: types.Buy, Quantity: 10, FillPrice: 100},
		{Symbol: "AAPL", Side: types.Sell, Quantity: 10, FillPrice: 110}, // win
		{Symbol: "AAPL", Side: types.Buy, Quantity: 10, FillPrice: 100},
		{Symbol: "AAPL", Side: types.Sell, Quantity: 10, FillPrice: 90}, // loss
	}
	rate, wins, losses := winRate(fills)
	if wins != 1 || losses != 1 {
		t.Fatalf("expected 1 win and 1 loss, got wins=%d losses=%d", wins, losses)
	}
	if rate != 0.5 {
		t.Fatalf("expected win rate=0.5, got %v", rate)
	}
}

func TestTurnoverScalesWithTradedNotional(t *testing.T) {
	curve := []types.EquityPoint{point(0, 1000), point(1, 1000)}
	fills := []types.FillEvent{{Symbol: "AAPL", Quantity: 5, FillPrice: 100}}
	got := turnover(fills, curve)
	want := 500.0 / 1000.0
	if got != want {
		t.Fatalf("expected turnover=%v, got %v", want, got)
	}
}
