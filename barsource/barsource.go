// Package barsource supplies the engine with a single chronological bar
// stream merged across symbols, with ties broken lexicographically by
// symbol (spec §4.1's tie-break rule). Loading multiple per-symbol sources
// may happen concurrently (spec §5); iterating the merged stream itself
// never does.
package barsource

import (
	"container/heap"

	"github.com/quantforge/backtestgo/types"
)

// BarSource yields bars one at a time. Ok is false once the source is
// exhausted; a non-nil error is fatal and aborts the backtest.
type BarSource interface {
	Next() (bar types.Bar, ok bool, err error)
}

// SliceSource is the simplest BarSource: a fixed, pre-sorted slice.
type SliceSource struct {
	bars []types.Bar
	pos  int
}

// NewSliceSource returns a BarSource over bars, which must already be
// sorted by Timestamp.
func NewSliceSource(bars []types.Bar) *SliceSource { return &SliceSource{bars: bars} }

// Next implements BarSource.
func (s *SliceSource) Next() (types.Bar, bool, error) {
	if s.pos >= len(s.bars) {
		return types.Bar{}, false, nil
	}
	b := s.bars[s.pos]
	s.pos++
	return b, true, nil
}

type heapItem struct {
	bar    types.Bar
	source BarSource
}

type barHeap []heapItem

func (h barHeap) Len() int { return len(h) }
func (h barHeap) Less(i, j int) bool {
	if !h[i].bar.Timestamp.Equal(h[j].bar.Timestamp) {
		return h[i].bar.Timestamp.Before(h[j].bar.Timestamp)
	}
	return h[i].bar.Symbol < h[j].bar.Symbol // spec §4.1 lexicographic tie-break
}
func (h barHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *barHeap) Push(x any)        { *h = append(*h, x.(heapItem)) }
func (h *barHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergingSource merges several per-symbol BarSources into a single
// chronological stream, breaking same-timestamp ties by symbol.
type MergingSource struct {
	h *barHeap
}

// NewMergingSource primes a merge over sources, pulling one bar from each
// to seed the heap.
func NewMergingSource(sources []BarSource) (*MergingSource, error) {
	h := &barHeap{}
	heap.Init(h)
	for _, s := range sources {
		b, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if ok {
			heap.Push(h, heapItem{bar: b, source: s})
		}
	}
	return &MergingSource{h: h}, nil
}

// Next implements BarSource, returning bars across all merged sources in
// strict chronological (then lexicographic-symbol) order.
func (m *MergingSource) Next() (types.Bar, bool, error) {
	if m.h.Len() == 0 {
		return types.Bar{}, false, nil
	}
	top := heap.Pop(m.h).(heapItem)

	next, ok, err := top.source.Next()
	if err != nil {
		return types.Bar{}, false, err
	}
	if ok {
		heap.Push(m.h, heapItem{bar: next, source: top.source})
	}
	return top.bar, true, nil
}
