package barsource

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/quantforge/backtestgo/types"
	"golang.org/x/sync/errgroup"
)

// csvColumns is the fixed column order this loader understands:
// timestamp (RFC3339), open, high, low, close, volume.
const csvColumns = 6

// LoadCSV parses one symbol's OHLCV history from r into a sorted SliceSource.
func LoadCSV(symbol string, interval types.Interval, r io.Reader) (*SliceSource, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = csvColumns

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("barsource: reading %s csv: %w", symbol, err)
	}

	bars := make([]types.Bar, 0, len(records))
	for i, rec := range records {
		b, err := parseRow(symbol, interval, rec)
		if err != nil {
			return nil, fmt.Errorf("barsource: %s row %d: %w", symbol, i, err)
		}
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return NewSliceSource(bars), nil
}

func parseRow(symbol string, interval types.Interval, rec []string) (types.Bar, error) {
	ts, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return types.Bar{}, fmt.Errorf("timestamp: %w", err)
	}
	fields := make([]float64, 5)
	for i, s := range rec[1:] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return types.Bar{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		fields[i] = v
	}
	return types.Bar{
		Symbol: symbol, Interval: interval, Timestamp: ts,
		Open: fields[0], High: fields[1], Low: fields[2], Close: fields[3], Volume: fields[4],
	}, nil
}

// LoadAll concurrently parses one CSV reader per symbol (spec §5 allows
// the loading phase, as opposed to the replay loop, to run in parallel)
// and returns a single merged, chronologically-ordered BarSource.
func LoadAll(interval types.Interval, readers map[string]io.Reader) (BarSource, error) {
	sources := make([]BarSource, len(readers))
	symbols := make([]string, 0, len(readers))
	for symbol := range readers {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols) // deterministic indexing regardless of map iteration order

	var g errgroup.Group
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			src, err := LoadCSV(symbol, interval, readers[symbol])
			if err != nil {
				return err
			}
			sources[i] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return NewMergingSource(sources)
}
