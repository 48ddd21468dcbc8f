// Package barstore implements the append-only, per-(symbol,interval) OHLCV
// history component of spec §2(b): O(1) access to the last N bars, with
// the sortedness/no-duplicate-timestamp invariant (spec I5) enforced on
// every append.
package barstore

import (
	"fmt"
	"sync"

	"github.com/quantforge/backtestgo/types"
)

// DataGapError is raised when a bar arrives out of order or duplicates an
// existing timestamp for its (symbol, interval). Per spec §7 this is
// always fatal — ordering is the core invariant the whole engine rests on.
type DataGapError struct {
	Symbol   string
	Interval types.Interval
	Prev     types.Bar
	Got      types.Bar
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap for %s/%s: previous bar at %s, got bar at %s",
		e.Symbol, e.Interval, e.Prev.Timestamp, e.Got.Timestamp)
}

type key struct {
	symbol   string
	interval types.Interval
}

// BarStore holds an append-only slice of bars per (symbol, interval). It
// is mutated only by the backtest loop; every other component only reads
// from it (spec §5).
type BarStore struct {
	mu   sync.RWMutex
	bars map[key][]types.Bar
}

// New returns an empty BarStore.
func New() *BarStore {
	return &BarStore{bars: make(map[key][]types.Bar)}
}

// Append adds b to the store, rejecting any bar whose timestamp does not
// strictly increase over the previous bar for the same (symbol,interval).
func (s *BarStore) Append(b types.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{b.Symbol, b.Interval}
	series := s.bars[k]
	if len(series) > 0 {
		prev := series[len(series)-1]
		if !b.Timestamp.After(prev.Timestamp) {
			return &DataGapError{Symbol: b.Symbol, Interval: b.Interval, Prev: prev, Got: b}
		}
	}
	s.bars[k] = append(series, b)
	return nil
}

// Last returns up to n most recent bars for (symbol, interval), oldest
// first. It never returns a bar with a timestamp greater than the most
// recently appended one for that key (spec I6 — look-ahead prevention is
// structural: the store simply never holds future bars at the time a
// decision is made).
func (s *BarStore) Last(symbol string, interval types.Interval, n int) []types.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.bars[key{symbol, interval}]
	if n <= 0 || n >= len(series) {
		out := make([]types.Bar, len(series))
		copy(out, series)
		return out
	}
	out := make([]types.Bar, n)
	copy(out, series[len(series)-n:])
	return out
}

// LastBar returns the most recently appended bar for (symbol, interval).
func (s *BarStore) LastBar(symbol string, interval types.Interval) (types.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.bars[key{symbol, interval}]
	if len(series) == 0 {
		return types.Bar{}, false
	}
	return series[len(series)-1], true
}

// Len reports how many bars are stored for (symbol, interval).
func (s *BarStore) Len(symbol string, interval types.Interval) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars[key{symbol, interval}])
}
