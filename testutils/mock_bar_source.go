package testutils

import "github.com/quantforge/backtestgo/types"

// MockBarSource is a deterministic, pre-scripted barsource.BarSource for
// engine-level tests: it simply replays bars in the order given.
type MockBarSource struct {
	bars []types.Bar
	pos  int
}

// NewMockBarSource returns a BarSource that replays bars verbatim.
func NewMockBarSource(bars []types.Bar) *MockBarSource {
	return &MockBarSource{bars: bars}
}

// Next implements barsource.BarSource.
func (m *MockBarSource) Next() (types.Bar, bool, error) {
	if m.pos >= len(m.bars) {
		return types.Bar{}, false, nil
	}
	b := m.bars[m.pos]
	m.pos++
	return b, true, nil
}
