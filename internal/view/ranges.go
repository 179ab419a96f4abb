// Package view turns a raw transaction snapshot into the table and chart
// shown on an account page. Every stage is a pure function over an
// immutable slice; callers recompute from the snapshot whenever the table
// state changes.
package view

import (
	"errors"
	"fmt"
	"time"

	"finboard/internal/core"
)

// RangeKey is a symbolic date range.
type RangeKey string

const (
	Range7D  RangeKey = "7D"
	Range1M  RangeKey = "1M"
	Range3M  RangeKey = "3M"
	Range6M  RangeKey = "6M"
	Range1Y  RangeKey = "1Y"
	RangeAll RangeKey = "ALL"
)

// DefaultRange is the range selected when a page is first opened.
const DefaultRange = Range1M

var ErrUnknownRange = errors.New("unknown date range")

// DateRange describes a range key. Days == 0 means unbounded.
type DateRange struct {
	Key   RangeKey
	Label string
	Days  int
}

var dateRanges = []DateRange{
	{Range7D, "7 Days", 7},
	{Range1M, "1 Month", 30},
	{Range3M, "3 Months", 90},
	{Range6M, "6 Months", 180},
	{Range1Y, "1 Year", 365},
	{RangeAll, "All Time", 0},
}

// Ranges returns every range in display order.
func Ranges() []DateRange {
	out := make([]DateRange, len(dateRanges))
	copy(out, dateRanges)
	return out
}

// ParseRangeKey validates untrusted input. The empty string selects the
// default range.
func ParseRangeKey(s string) (RangeKey, error) {
	if s == "" {
		return DefaultRange, nil
	}
	for _, r := range dateRanges {
		if string(r.Key) == s {
			return r.Key, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRange, s)
}

// Range returns the descriptor for the key. It panics on keys that did
// not come from ParseRangeKey or the constants above.
func (k RangeKey) Range() DateRange {
	for _, r := range dateRanges {
		if r.Key == k {
			return r
		}
	}
	panic(fmt.Sprintf("view: unknown range key %q", string(k)))
}

func (k RangeKey) Bounded() bool { return k.Range().Days > 0 }

// Window is an inclusive instant interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Window resolves the key against now. End is the end of now's day; Start
// is the start of the day Days before now, or the epoch day when
// unbounded. Both bounds are in now's location.
func (k RangeKey) Window(now time.Time) Window {
	r := k.Range()
	start := time.Unix(0, 0).In(now.Location())
	if r.Days > 0 {
		start = now.AddDate(0, 0, -r.Days)
	}
	return Window{
		Start: core.StartOfDay(start),
		End:   core.EndOfDay(now),
	}
}

// Contains reports whether t lies within the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}
