// Package deadline holds the statutory date rules of listing agreements:
// registration (REINS) deadlines, report cadence and business-day arithmetic.
// Every writer of derived agreement fields goes through Calculator.Derive.
package deadline

import (
	"time"
)

// Calculator applies the statutory rules against a holiday calendar and a clock.
// "Today" is the calendar date of the clock in the business time zone.
type Calculator struct {
	cal *Calendar
	loc *time.Location
	now func() time.Time
}

// Option customises a Calculator
type Option func(*Calculator)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		c.now = now
	}
}

// NewCalculator creates a calculator. A nil calendar means weekdays only;
// a nil location means UTC.
func NewCalculator(cal *Calendar, loc *time.Location, opts ...Option) *Calculator {
	if cal == nil {
		cal = NewCalendar()
	}
	if loc == nil {
		loc = time.UTC
	}
	c := &Calculator{cal: cal, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calendar returns the holiday calendar in use
func (c *Calculator) Calendar() *Calendar {
	return c.cal
}

// Now returns the current instant
func (c *Calculator) Now() time.Time {
	return c.now()
}

// Today returns the current civil date in the business time zone
func (c *Calculator) Today() time.Time {
	return CivilDate(c.now(), c.loc)
}

// CivilDate converts an instant to its calendar date in the business time zone
func (c *Calculator) CivilDate(t time.Time) time.Time {
	return CivilDate(t, c.loc)
}

// ReinsDeadline returns the registration deadline. Counting starts the day
// after signing and that start day is not itself counted. General agreements
// have no deadline and return false.
func (c *Calculator) ReinsDeadline(signedAt time.Time, t ContractType) (time.Time, bool) {
	n := t.ReinsBusinessDays()
	if n == 0 {
		return time.Time{}, false
	}
	return c.cal.AddBusinessDays(AddDays(signedAt, 1), n), true
}

// NextReportDate is fromDate plus the report interval in calendar days.
// General agreements have no report obligation and return false.
func (c *Calculator) NextReportDate(fromDate time.Time, t ContractType) (time.Time, bool) {
	interval := ReportIntervalDays(t)
	if interval == 0 {
		return time.Time{}, false
	}
	return AddDays(fromDate, interval), true
}

// IsReinsOverdue reports deadline < today
func (c *Calculator) IsReinsOverdue(deadline time.Time) bool {
	return deadline.Before(c.Today())
}

// RemainingBusinessDays counts business days strictly between today and the
// deadline. Past deadlines are negative: -1 the business day after, and one
// further per business day elapsed since.
func (c *Calculator) RemainingBusinessDays(deadline time.Time) int {
	today := c.Today()
	if !deadline.Before(today) {
		return c.cal.BusinessDaysBetween(today, deadline)
	}
	return -c.cal.BusinessDaysBetween(deadline, today) - 1
}

// Derived holds the stored fields computed from (contract type, signing date).
// Nil pointers mean "no obligation" and persist as NULL.
type Derived struct {
	ReinsRequiredBy    *time.Time
	ReportIntervalDays int
	NextReportDate     *time.Time
}

// Derive computes every derived field of an agreement
func (c *Calculator) Derive(signedAt time.Time, t ContractType) Derived {
	d := Derived{ReportIntervalDays: ReportIntervalDays(t)}
	if dl, ok := c.ReinsDeadline(signedAt, t); ok {
		d.ReinsRequiredBy = &dl
	}
	if next, ok := c.NextReportDate(signedAt, t); ok {
		d.NextReportDate = &next
	}
	return d
}
