package clock

import (
	"fmt"
	"time"
)

// Date is a calendar day with no time-of-day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day t falls on in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// Midnight returns the first instant of d in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays shifts d by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Midnight(time.UTC).AddDate(0, 0, n), time.UTC)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Window answers whether a (start, end) period is active, past or future.
// Instant comparisons are exact; the Day variants truncate both sides to the
// calendar day in the display location. A range with start after end is
// never active.
type Window struct {
	loc *time.Location
}

// NewWindow returns a Window evaluating days in loc. A nil loc means UTC.
func NewWindow(loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	return Window{loc: loc}
}

func (w Window) Location() *time.Location {
	if w.loc == nil {
		return time.UTC
	}
	return w.loc
}

// Today is the calendar day of now in the display location.
func (w Window) Today(now time.Time) Date {
	return DateOf(now, w.Location())
}

// IsActive reports start <= now <= end.
func (w Window) IsActive(now, start, end time.Time) bool {
	if start.After(end) {
		return false
	}
	return !now.Before(start) && !now.After(end)
}

// IsPast reports now > end.
func (w Window) IsPast(now, end time.Time) bool {
	return now.After(end)
}

// IsFuture reports now < start.
func (w Window) IsFuture(now, start time.Time) bool {
	return now.Before(start)
}

// IsActiveDay is IsActive at day granularity.
func (w Window) IsActiveDay(now, start, end time.Time) bool {
	s, e, today := w.day(start), w.day(end), w.Today(now)
	if s.After(e) {
		return false
	}
	return !today.Before(s) && !today.After(e)
}

// IsPastDay reports that the day of end is before today.
func (w Window) IsPastDay(now, end time.Time) bool {
	return w.day(end).Before(w.Today(now))
}

// IsFutureDay reports that the day of start is after today.
func (w Window) IsFutureDay(now, start time.Time) bool {
	return w.day(start).After(w.Today(now))
}

// Reached reports that the day of t is today or earlier.
func (w Window) Reached(now, t time.Time) bool {
	return !w.IsFutureDay(now, t)
}

func (w Window) day(t time.Time) Date {
	return DateOf(t, w.Location())
}
