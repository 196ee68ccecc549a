package deadline

import (
	"time"
)

// Calendar decides business days: Monday to Friday minus an explicit holiday set.
type Calendar struct {
	holidays map[time.Time]struct{}
}

// NewCalendar builds a calendar from civil dates; times are truncated to their UTC date.
func NewCalendar(holidays ...time.Time) *Calendar {
	c := &Calendar{holidays: make(map[time.Time]struct{}, len(holidays))}
	for _, h := range holidays {
		c.holidays[CivilDate(h, time.UTC)] = struct{}{}
	}
	return c
}

// Len returns the number of configured holidays
func (c *Calendar) Len() int {
	return len(c.holidays)
}

// IsHoliday reports whether d is in the holiday set
func (c *Calendar) IsHoliday(d time.Time) bool {
	_, ok := c.holidays[d]
	return ok
}

// IsBusinessDay reports whether d is a weekday outside the holiday set
func (c *Calendar) IsBusinessDay(d time.Time) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.IsHoliday(d)
}

// AddBusinessDays returns the n-th business day after start. start itself is never counted.
func (c *Calendar) AddBusinessDays(start time.Time, n int) time.Time {
	d := start
	for added := 0; added < n; {
		d = AddDays(d, 1)
		if c.IsBusinessDay(d) {
			added++
		}
	}
	return d
}

// BusinessDaysBetween counts business days d with from < d < to
func (c *Calendar) BusinessDaysBetween(from, to time.Time) int {
	n := 0
	for d := AddDays(from, 1); d.Before(to); d = AddDays(d, 1) {
		if c.IsBusinessDay(d) {
			n++
		}
	}
	return n
}
