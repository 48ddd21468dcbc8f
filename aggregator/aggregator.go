// Package aggregator implements the dual(multi)-frequency bar resampler
// of spec §2(c)/§4.2: it folds a base-frequency bar stream into a
// building bar per (symbol, higher-frequency) and finalizes it into the
// BarStore whenever that bar closes on the frequency's boundary.
package aggregator

import (
	"fmt"
	"sync"
	"time"

	"github.com/quantforge/backtestgo/barstore"
	"github.com/quantforge/backtestgo/types"
)

// Subscriber receives a callback whenever a higher-frequency interval
// closes. Per spec §4.2, "only objects exposing that capability may
// subscribe" — i.e. this interface is the sole admission ticket.
type Subscriber interface {
	OnInterval(symbol string, interval types.Interval, bar types.Bar)
}

// SubscriberFunc adapts a plain function to Subscriber.
type SubscriberFunc func(symbol string, interval types.Interval, bar types.Bar)

func (f SubscriberFunc) OnInterval(symbol string, interval types.Interval, bar types.Bar) {
	f(symbol, interval, bar)
}

type key struct {
	symbol   string
	interval types.Interval
}

// Aggregator resamples a base-frequency stream into a fixed set of higher
// frequencies, one building bar per (symbol, frequency).
type Aggregator struct {
	mu   sync.Mutex
	base types.Interval

	// SessionEnd is the UTC clock time (since midnight) that marks the
	// last sub-daily bar of a trading day, used to align daily+ targets
	// when Base is itself sub-daily. New sets it to 16:00 UTC (a
	// cash-equity close); zero makes every sub-daily bar close the day.
	SessionEnd time.Duration

	targets  []types.Interval
	store    *barstore.BarStore
	building map[key]*types.Bar
	subs     []Subscriber
}

// New creates an Aggregator that finalizes targets into store.
func New(base types.Interval, targets []types.Interval, store *barstore.BarStore) *Aggregator {
	return &Aggregator{
		base:       base,
		SessionEnd: 16 * time.Hour,
		targets:    targets,
		store:      store,
		building:   make(map[key]*types.Bar),
	}
}

// Subscribe registers s to be notified of every future interval close
// across all target frequencies.
func (a *Aggregator) Subscribe(s Subscriber) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs = append(a.subs, s)
}

// OnBaseBar folds b into every target frequency's building bar and
// finalizes any that close on b's timestamp, appending the finalized bar
// to the BarStore and notifying subscribers. It returns the bars that
// closed on this tick (possibly none), in target-declaration order.
func (a *Aggregator) OnBaseBar(b types.Bar) ([]types.Bar, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var closed []types.Bar
	for _, target := range a.targets {
		if target == a.base {
			// Identity pass-through: the base bar IS this target's bar, so
			// it closes on every tick. The loop's own step 2 already
			// appended it to the store, so the aggregator must only
			// notify, never re-append (that would collide on timestamp).
			closed = append(closed, b)
			for _, sub := range a.subs {
				sub.OnInterval(b.Symbol, target, b)
			}
			continue
		}

		k := key{b.Symbol, target}
		cur, exists := a.building[k]
		if !exists {
			// No building bar for this (symbol,target) — the first-ever
			// base bar, or the first after a close: start the building bar
			// but never close on it (spec §4.2 edge case).
			nb := b
			nb.Interval = target
			a.building[k] = &nb
			continue
		}

		cur.High = max(cur.High, b.High)
		cur.Low = min(cur.Low, b.Low)
		cur.Close = b.Close
		cur.Volume += b.Volume
		cur.Timestamp = b.Timestamp

		if a.aligned(target, b.Timestamp) {
			finalized := *cur
			if err := a.store.Append(finalized); err != nil {
				return closed, fmt.Errorf("aggregator: finalizing %s/%s: %w", b.Symbol, target, err)
			}
			closed = append(closed, finalized)
			for _, sub := range a.subs {
				sub.OnInterval(b.Symbol, target, finalized)
			}
			delete(a.building, k)
		}
	}
	return closed, nil
}

// aligned reports whether a base bar timestamped ts closes the given
// target frequency, per spec §4.2's two alignment rules. Callers never
// invoke this for target == a.base — OnBaseBar handles that as an
// identity pass-through before reaching here.
func (a *Aggregator) aligned(target types.Interval, ts time.Time) bool {
	if dur, ok := subDailyDuration(target); ok {
		return ts.Unix()%int64(dur.Seconds()) == 0
	}
	// Daily+ target: calendar alignment.
	if baseDur, ok := subDailyDuration(a.base); ok {
		midnight := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		sinceMidnight := ts.UTC().Sub(midnight)
		_ = baseDur
		return sinceMidnight >= a.SessionEnd
	}
	// Base is itself daily+ (e.g. "1d" base, "1w" target): every base bar
	// represents a full trading day, so a daily target always closes and
	// a weekly/monthly target closes on the calendar boundary.
	switch target {
	case "1w":
		return ts.UTC().Weekday() == time.Friday
	case "1mo":
		return isLastDayOfMonth(ts.UTC())
	default:
		return true
	}
}

// subDailyDuration parses the handful of sub-daily interval spellings the
// engine understands. Daily-and-coarser spellings ("1d","1w","1mo") are
// deliberately not parseable here — they are calendar-aligned, not
// duration-aligned.
func subDailyDuration(i types.Interval) (time.Duration, bool) {
	switch i {
	case "1d", "1w", "1mo", "":
		return 0, false
	}
	d, err := time.ParseDuration(string(i))
	if err != nil {
		return 0, false
	}
	return d, true
}

func isLastDayOfMonth(ts time.Time) bool {
	return ts.AddDate(0, 0, 1).Month() != ts.Month()
}
