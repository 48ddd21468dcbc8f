package strategy

import (
	"testing"
	"time"

	"github.com/quantforge/backtestgo/testutils"
	"github.com/quantforge/backtestgo/types"
)

func TestBuyAndHoldSignalsOnceThenSilent(t *testing.T) {
	s, err := NewBuyAndHold("AAPL", testutils.NewMockLogger())
	if err != nil {
		t.Fatalf("NewBuyAndHold: %v", err)
	}
	bar := types.Bar{Symbol: "AAPL", Close: 100, Timestamp: time.Unix(0, 0)}

	sig, ok := s.OnInterval("AAPL", "1d", bar)
	if !ok || sig.Direction != types.Bullish {
		t.Fatalf("expected bullish signal on first bar, got %+v ok=%v", sig, ok)
	}

	_, ok = s.OnInterval("AAPL", "1d", bar)
	if ok {
		t.Fatal("expected no further signal after entering")
	}
}
