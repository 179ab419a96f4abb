// Package core holds the domain types shared by the dashboard.
//
// This file implements the Strategy Pattern for projecting the next
// occurrence of a recurring transaction. Each interval has its own
// strategy so month-end clamping stays local to the intervals that need it.

package core

import (
	"fmt"
	"time"
)

// Scheduler computes the next run of a recurring transaction.
type Scheduler interface {
	// Next returns the first occurrence strictly after from.
	Next(from time.Time) time.Time
}

type DailyScheduler struct{}

func (DailyScheduler) Next(from time.Time) time.Time { return from.AddDate(0, 0, 1) }

type WeeklyScheduler struct{}

func (WeeklyScheduler) Next(from time.Time) time.Time { return from.AddDate(0, 0, 7) }

// MonthlyScheduler keeps the day of month, clamped to the last day of
// shorter months (Jan 31 -> Feb 28).
type MonthlyScheduler struct{}

func (MonthlyScheduler) Next(from time.Time) time.Time { return addMonthsClamped(from, 1) }

// YearlyScheduler clamps Feb 29 to Feb 28 on non-leap years.
type YearlyScheduler struct{}

func (YearlyScheduler) Next(from time.Time) time.Time { return addMonthsClamped(from, 12) }

var schedulers = map[RecurringInterval]Scheduler{
	Daily:   DailyScheduler{},
	Weekly:  WeeklyScheduler{},
	Monthly: MonthlyScheduler{},
	Yearly:  YearlyScheduler{},
}

// SchedulerFor returns the strategy for an interval.
func SchedulerFor(interval RecurringInterval) (Scheduler, error) {
	s, ok := schedulers[interval]
	if !ok {
		return nil, fmt.Errorf("unknown recurring interval: %q", interval)
	}
	return s, nil
}

// NextOccurrence returns the next date after from for the interval.
func NextOccurrence(from time.Time, interval RecurringInterval) (time.Time, error) {
	s, err := SchedulerFor(interval)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(from), nil
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}
