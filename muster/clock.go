/*
clock.go - Business-day clock

PURPOSE:
  Converts real-time instants into business-day labels and back into window
  boundaries. A business day does NOT align with the calendar day: it runs
  from a fixed cutover hour on one calendar date to one millisecond before
  that hour on the next date, and is named by the date it ENDS on.

LABEL RULE:
  Evaluated in the facility's fixed time zone (never the host zone):
    t.hour >= cutover  ->  label = t.date + 1 day
    otherwise          ->  label = t.date

  So with cutover 06:00, the label "2025-05-20" names the window
  [2025-05-19 06:00:00.000, 2025-05-20 05:59:59.999].

CONTRACT:
  WindowStart(LabelFor(t)) <= t <= WindowEnd(LabelFor(t)) for all t.
  Windows are contiguous and non-overlapping; every instant belongs to
  exactly one label.

  This clock is pure: no state, no I/O. Every filter in the system that
  needs "today's business window" goes through it.

SEE ALSO:
  - engine.go: Uses the clock to pick labels for the two jobs
  - api/scheduler.go: Uses the clock to align the daily trigger
*/
package muster

import (
	"fmt"
	"time"
)

// DayLabel names one business-day window, formatted YYYY-MM-DD.
type DayLabel string

const dayLabelLayout = "2006-01-02"

// ParseDayLabel validates a YYYY-MM-DD label.
func ParseDayLabel(s string) (DayLabel, error) {
	if _, err := time.Parse(dayLabelLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDayLabel, s)
	}
	return DayLabel(s), nil
}

// Next returns the label of the following business day.
func (d DayLabel) Next() DayLabel {
	t, _ := time.Parse(dayLabelLayout, string(d))
	return DayLabel(t.AddDate(0, 0, 1).Format(dayLabelLayout))
}

// Previous returns the label of the preceding business day.
func (d DayLabel) Previous() DayLabel {
	t, _ := time.Parse(dayLabelLayout, string(d))
	return DayLabel(t.AddDate(0, 0, -1).Format(dayLabelLayout))
}

func (d DayLabel) String() string { return string(d) }

// =============================================================================
// CLOCK
// =============================================================================

// Clock converts instants to business-day labels for one facility.
// The zone and cutover hour are configuration, never derived from the host.
type Clock struct {
	Location    *time.Location
	CutoverHour int // 0-23
}

// NewClock builds a clock for a fixed IANA zone and cutover hour.
func NewClock(zone string, cutoverHour int) (Clock, error) {
	if cutoverHour < 0 || cutoverHour > 23 {
		return Clock{}, fmt.Errorf("%w: cutover hour %d", ErrInvalidCutoverHour, cutoverHour)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid facility time zone %q: %w", zone, err)
	}
	return Clock{Location: loc, CutoverHour: cutoverHour}, nil
}

// LabelFor returns the business-day label the instant belongs to.
func (c Clock) LabelFor(t time.Time) DayLabel {
	local := t.In(c.Location)
	date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.Location)
	if local.Hour() >= c.CutoverHour {
		date = date.AddDate(0, 0, 1)
	}
	return DayLabel(date.Format(dayLabelLayout))
}

// WindowStart returns the first instant of the labeled window:
// label minus one day, at cutover:00:00.000 facility time.
func (c Clock) WindowStart(label DayLabel) (time.Time, error) {
	date, err := c.labelDate(label)
	if err != nil {
		return time.Time{}, err
	}
	start := date.AddDate(0, 0, -1)
	return time.Date(start.Year(), start.Month(), start.Day(), c.CutoverHour, 0, 0, 0, c.Location), nil
}

// WindowEnd returns the last instant of the labeled window:
// the label date at (cutover-1):59:59.999 facility time. This is one
// millisecond before the next window starts, so windows stay contiguous.
func (c Clock) WindowEnd(label DayLabel) (time.Time, error) {
	date, err := c.labelDate(label)
	if err != nil {
		return time.Time{}, err
	}
	next := time.Date(date.Year(), date.Month(), date.Day(), c.CutoverHour, 0, 0, 0, c.Location)
	return next.Add(-time.Millisecond), nil
}

// NextCutover returns the first cutover instant strictly after t.
// The daily finalize trigger is aligned to this.
func (c Clock) NextCutover(t time.Time) time.Time {
	local := t.In(c.Location)
	cutover := time.Date(local.Year(), local.Month(), local.Day(), c.CutoverHour, 0, 0, 0, c.Location)
	if !cutover.After(local) {
		cutover = cutover.AddDate(0, 0, 1)
	}
	return cutover
}

func (c Clock) labelDate(label DayLabel) (time.Time, error) {
	date, err := time.ParseInLocation(dayLabelLayout, string(label), c.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDayLabel, label)
	}
	return date, nil
}
