package report

import (
	"fmt"
	"time"
)

// Interval is the length of a report window.
type Interval string

// Supported intervals.
const (
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
)

// indexingDelay leaves time for running jobs to finish and be scraped
// before they fall into a weekly window.
const indexingDelay = 6 * time.Hour

// ParseInterval validates an interval name.
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case IntervalWeek, IntervalMonth:
		return Interval(s), nil
	}
	return "", fmt.Errorf("unknown report interval %q (want %q or %q)", s, IntervalWeek, IntervalMonth)
}

// Window returns the report window [from, to) ending before now.
//
// A weekly window ends at the hour six hours before now; a monthly window
// ends at today's midnight UTC.
func (i Interval) Window(now time.Time) (from, to time.Time) {
	now = now.UTC()
	if i == IntervalMonth {
		to = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return monthBefore(to), to
	}
	to = now.Add(-indexingDelay).Truncate(time.Hour)
	return to.AddDate(0, 0, -7), to
}

// Previous returns the window immediately preceding [from, to).
func (i Interval) Previous(from time.Time) (time.Time, time.Time) {
	if i == IntervalMonth {
		return monthBefore(from), from
	}
	return from.AddDate(0, 0, -7), from
}

// monthBefore returns t one calendar month earlier, clamping the day to the
// length of the target month.
func monthBefore(t time.Time) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month-1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}
