package executor

import (
	"testing"
	"time"

	"github.com/quantforge/backtestgo/config"
	"github.com/quantforge/backtestgo/slippage"
	"github.com/quantforge/backtestgo/testutils"
	"github.com/quantforge/backtestgo/types"
)

func bar(symbol string, sec int64, open, high, low, close, vol float64) types.Bar {
	return types.Bar{
		Symbol: symbol, Timestamp: time.Unix(sec, 0),
		Open: open, High: high, Low: low, Close: close, Volume: vol,
	}
}

// TestMKTFillsAtNextBarOpen reproduces spec §8 scenario 1's fill timing:
// an order submitted while processing bar N fills at bar N+1's open, not
// bar N's own price.
func TestMKTFillsAtNextBarOpen(t *testing.T) {
	ex := NewSimulatedExecutor(config.CommissionConfig{}, slippage.NoneModel{}, testutils.NewMockLogger(), 21)

	// Decision bar: no pending orders yet, so OnBar produces no fills.
	fills := ex.OnBar(bar("AAPL", 0, 100, 101, 99, 101, 1000), false)
	if len(fills) != 0 {
		t.Fatalf("expected no fills on the decision bar, got %+v", fills)
	}

	ex.Submit(types.OrderEvent{ID: "o1", Symbol: "AAPL", Type: types.MKT, Side: types.Buy, Quantity: 5})

	fills = ex.OnBar(bar("AAPL", 86400, 101, 104, 100, 103, 1000), false)
	if len(fills) != 1 {
		t.Fatalf("expected exactly 1 fill on the next bar, got %d", len(fills))
	}
	if fills[0].FillPrice != 101 {
		t.Fatalf("expected fill at next bar's open (101), got %v", fills[0].FillPrice)
	}
}

func TestMOCFillsOnlyOnLastIntervalOfDay(t *testing.T) {
	ex := NewSimulatedExecutor(config.CommissionConfig{}, slippage.NoneModel{}, testutils.NewMockLogger(), 21)
	ex.Submit(types.OrderEvent{ID: "o1", Symbol: "AAPL", Type: types.MOC, Side: types.Sell, Quantity: 3})

	notLast := ex.OnBar(bar("AAPL", 0, 100, 101, 99, 100, 1000), false)
	if len(notLast) != 0 {
		t.Fatalf("expected no MOC fill on a non-final interval, got %+v", notLast)
	}

	last := ex.OnBar(bar("AAPL", 60, 100, 101, 99, 102, 1000), true)
	if len(last) != 1 {
		t.Fatalf("expected exactly 1 MOC fill on the day's last interval, got %d", len(last))
	}
	if last[0].FillPrice != 102 {
		t.Fatalf("expected MOC fill at close (102), got %v", last[0].FillPrice)
	}
}

func TestCommissionAppliedToFill(t *testing.T) {
	commission := config.CommissionConfig{PerShare: 0.01, PerTrade: 1.0}
	ex := NewSimulatedExecutor(commission, slippage.NoneModel{}, testutils.NewMockLogger(), 21)

	ex.Submit(types.OrderEvent{ID: "o1", Symbol: "AAPL", Type: types.MKT, Side: types.Buy, Quantity: 10})
	ex.OnBar(bar("AAPL", 0, 100, 100, 100, 100, 1000), false)
	fills := ex.OnBar(bar("AAPL", 60, 50, 51, 49, 50, 1000), false)

	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	wantCommission := 0.01*10 + 1.0
	if fills[0].Commission != wantCommission {
		t.Fatalf("expected commission %v, got %v", wantCommission, fills[0].Commission)
	}
}

func TestSellFillPriceSubtractsSlippage(t *testing.T) {
	fixed := fixedFracModel{frac: 0.01}
	ex := NewSimulatedExecutor(config.CommissionConfig{}, fixed, testutils.NewMockLogger(), 21)

	ex.Submit(types.OrderEvent{ID: "o1", Symbol: "AAPL", Type: types.MKT, Side: types.Sell, Quantity: 1})
	ex.OnBar(bar("AAPL", 0, 100, 100, 100, 100, 1000), false)
	fills := ex.OnBar(bar("AAPL", 60, 100, 101, 99, 100, 1000), false)

	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	want := 100 - 0.01*100
	if fills[0].FillPrice != want {
		t.Fatalf("expected sell fill price %v (ref - slippage), got %v", want, fills[0].FillPrice)
	}
}

// fixedFracModel is a tiny slippage.Model test double returning a constant
// fraction regardless of input, so fill-price sign conventions can be
// asserted precisely.
type fixedFracModel struct{ frac float64 }

func (f fixedFracModel) Estimate([]types.Bar, types.Side, float64) (float64, error) {
	return f.frac, nil
}
