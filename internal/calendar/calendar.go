// Package calendar holds the day-granularity date helpers shared by the
// fetchers, the store and the CLI. Every date it returns is midnight UTC.
package calendar

import (
	"fmt"
	"time"
)

// Layout is the ISO-8601 date format used on disk and on the command line.
const Layout = "2006-01-02"

// readLayout also accepts single-digit months and days, e.g. 2025-7-1.
const readLayout = "2006-1-2"

// Day drops the time of day, keeping the calendar date as seen in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current local calendar date.
func Today() time.Time { return Day(time.Now()) }

// Parse reads a date in YYYY-MM-DD form.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(readLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q want format %q: %w", s, Layout, err)
	}
	return Day(t), nil
}

// Format renders a date in YYYY-MM-DD form.
func Format(t time.Time) string { return t.Format(Layout) }

// WeekendSafeEnd returns the latest weekday on or before d. Holidays are not
// considered.
func WeekendSafeEnd(d time.Time) time.Time {
	d = Day(d)
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, -2)
	}
	return d
}

// Between reports whether d falls within [start, end], inclusive.
func Between(d, start, end time.Time) bool {
	return !d.Before(start) && !d.After(end)
}
