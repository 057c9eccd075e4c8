package calendar

import (
	"fmt"
	"time"
)

// Month identifies one calendar month, the unit the calendar view loads.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing d.
func MonthOf(d Date) Month {
	return Month{Year: d.Year, Month: d.Month}
}

// ParseMonth parses a "YYYY-MM" string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) IsZero() bool {
	return m == Month{}
}

// First returns the first day of the month.
func (m Month) First() Date {
	return Date{Year: m.Year, Month: m.Month, Day: 1}
}

// Last returns the last day of the month.
func (m Month) Last() Date {
	return Date{Year: m.Year, Month: m.Month, Day: DaysIn(m.Year, m.Month)}
}

// Contains reports whether d falls inside the month.
func (m Month) Contains(d Date) bool {
	return d.Year == m.Year && d.Month == m.Month
}

// Days returns every day of the month in order.
func (m Month) Days() []Date {
	n := DaysIn(m.Year, m.Month)
	days := make([]Date, n)
	for i := range days {
		days[i] = Date{Year: m.Year, Month: m.Month, Day: i + 1}
	}
	return days
}
