package strategy

import (
	"testing"
	"time"

	"github.com/quantforge/backtestgo/testutils"
	"github.com/quantforge/backtestgo/types"
)

func feedCloses(t *testing.T, s *MovingAverage, closes []float64) (last types.SignalEvent, lastOK bool) {
	t.Helper()
	for i, c := range closes {
		bar := types.Bar{Symbol: "AAPL", Close: c, Timestamp: time.Unix(int64(i), 0)}
		if sig, ok := s.OnInterval("AAPL", "1d", bar); ok {
			last, lastOK = sig, true
		}
	}
	return
}

func TestMovingAverageBullishOnUptrend(t *testing.T) {
	s, err := NewMovingAverage("AAPL", 10, testutils.NewMockLogger())
	if err != nil {
		t.Fatalf("NewMovingAverage: %v", err)
	}
	closes := []float64{100, 101, 102, 103, 104, 105, 106, 107}
	sig, ok := feedCloses(t, s, closes)
	if !ok {
		t.Fatal("expected a signal on a clean uptrend")
	}
	if sig.Direction != types.Bullish {
		t.Fatalf("expected bullish, got %v", sig.Direction)
	}
}

func TestMovingAverageBearishOnDowntrend(t *testing.T) {
	s, err := NewMovingAverage("AAPL", 10, testutils.NewMockLogger())
	if err != nil {
		t.Fatalf("NewMovingAverage: %v", err)
	}
	closes := []float64{107, 106, 105, 104, 103, 102, 101, 100}
	sig, ok := feedCloses(t, s, closes)
	if !ok {
		t.Fatal("expected a signal on a clean downtrend")
	}
	if sig.Direction != types.Bearish {
		t.Fatalf("expected bearish, got %v", sig.Direction)
	}
}

func TestMovingAverageNoRepeatSignal(t *testing.T) {
	s, err := NewMovingAverage("AAPL", 10, testutils.NewMockLogger())
	if err != nil {
		t.Fatalf("NewMovingAverage: %v", err)
	}
	closes := []float64{100, 101, 102, 103, 104, 105}
	feedCloses(t, s, closes)
	// Feeding one more bar in the same direction should not re-signal.
	bar := types.Bar{Symbol: "AAPL", Close: 106, Timestamp: time.Unix(99, 0)}
	_, ok := s.OnInterval("AAPL", "1d", bar)
	if ok {
		t.Fatal("expected no repeat signal while trend direction is unchanged")
	}
}
