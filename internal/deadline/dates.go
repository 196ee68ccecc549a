package deadline

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of civil dates
const DateLayout = "2006-01-02"

// Civil dates are represented as time.Time at midnight UTC so that they
// compare, hash and serialise without zone drift.

// Date builds a civil date
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CivilDate truncates an instant to its calendar date in loc
func CivilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return Date(y, m, d)
}

// ParseDate parses YYYY-MM-DD into a civil date
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// AddDays moves a civil date by n calendar days
func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

// FormatJP renders a civil date as 2024年1月8日
func FormatJP(d time.Time) string {
	return fmt.Sprintf("%d年%d月%d日", d.Year(), int(d.Month()), d.Day())
}
