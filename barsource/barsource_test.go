package barsource

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/quantforge/backtestgo/types"
)

func bar(symbol string, sec int64) types.Bar {
	return types.Bar{Symbol: symbol, Timestamp: time.Unix(sec, 0)}
}

func TestMergingSourceChronologicalOrder(t *testing.T) {
	a := NewSliceSource([]types.Bar{bar("AAPL", 0), bar("AAPL", 120)})
	b := NewSliceSource([]types.Bar{bar("MSFT", 60), bar("MSFT", 120)})

	m, err := NewMergingSource([]BarSource{a, b})
	if err != nil {
		t.Fatalf("NewMergingSource: %v", err)
	}

	var order []string
	for {
		bar, ok, err := m.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		order = append(order, bar.Symbol)
	}

	want := []string{"AAPL", "MSFT", "AAPL", "MSFT"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestMergingSourceLexicographicTieBreak(t *testing.T) {
	a := NewSliceSource([]types.Bar{bar("MSFT", 0)})
	b := NewSliceSource([]types.Bar{bar("AAPL", 0)})

	m, err := NewMergingSource([]BarSource{a, b})
	if err != nil {
		t.Fatalf("NewMergingSource: %v", err)
	}
	first, ok, err := m.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if first.Symbol != "AAPL" {
		t.Fatalf("expected AAPL to win the same-timestamp tie-break, got %s", first.Symbol)
	}
}

func TestLoadCSVSortsByTimestamp(t *testing.T) {
	csvData := "2024-01-02T00:00:00Z,101,102,99,100,1000\n2024-01-01T00:00:00Z,99,101,98,100,1500\n"
	src, err := LoadCSV("AAPL", "1d", strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	first, ok, _ := src.Next()
	if !ok || first.Timestamp.Day() != 1 {
		t.Fatalf("expected Jan 1 bar first, got %+v", first)
	}
	second, ok, _ := src.Next()
	if !ok || second.Timestamp.Day() != 2 {
		t.Fatalf("expected Jan 2 bar second, got %+v", second)
	}
}

func TestLoadAllMergesAcrossSymbols(t *testing.T) {
	aaplCSV := strings.NewReader("2024-01-01T00:00:00Z,100,101,99,100,1000\n")
	msftCSV := strings.NewReader("2024-01-01T00:00:00Z,200,201,199,200,2000\n")

	src, err := LoadAll("1d", map[string]io.Reader{"AAPL": aaplCSV, "MSFT": msftCSV})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	var symbols []string
	for {
		b, ok, err := src.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		symbols = append(symbols, b.Symbol)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "MSFT" {
		t.Fatalf("expected [AAPL MSFT] (tie-break order), got %v", symbols)
	}
}
