package calendar

import (
	"fmt"
	"time"
)

// Layout is the wire format of a Date in JSON, BSON and SQL.
const Layout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Years outside [MinYear, MaxYear] do not fit the four-digit wire format.
const (
	MinYear = 1
	MaxYear = 9999
)

// Date is a calendar day with no time-of-day or timezone component.
// The zero value means "no date".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New returns the date for the given year, month and day. Out of range
// values are normalized the way time.Date normalizes them.
func New(year int, month time.Month, day int) Date {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime returns the calendar day of t in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Parse parses a "YYYY-MM-DD" string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return FromTime(t), nil
}

// MustParse is Parse for literals in tests and fixtures.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Valid reports whether d names a real calendar day that Layout can carry.
func (d Date) Valid() bool {
	if d.Year < MinYear || d.Year > MaxYear {
		return false
	}
	if d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	return d.Day <= DaysIn(d.Year, d.Month)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// UTC returns midnight UTC of d.
func (d Date) UTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to
// or after o.
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

// AddDays shifts d by n days.
func (d Date) AddDays(n int) Date {
	return FromTime(d.UTC().AddDate(0, 0, n))
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysBetween returns the whole number of calendar days from a to b,
// negative when b is before a.
func DaysBetween(a, b Date) int {
	return int((b.UTC().Unix() - a.UTC().Unix()) / secondsPerDay)
}

// AddMonths shifts d by n calendar months. The day of month is clamped to
// the last day of the target month, so Jan 31 + 1 month is Feb 28 (or 29).
func AddMonths(d Date, n int) Date {
	total := d.Year*12 + int(d.Month) - 1 + n
	year := floorDiv(total, 12)
	month := time.Month(total-year*12) + 1
	day := d.Day
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return Date{Year: year, Month: month, Day: day}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
