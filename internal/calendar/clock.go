package calendar

import "time"

// Clock is the time source used to derive today's date. clockz.RealClock
// satisfies it in production; tests pass a fixed clock.
type Clock interface {
	Now() time.Time
}

// Today returns the calendar day of clock.Now() as seen in loc. A nil loc
// means time.Local.
func Today(clock Clock, loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	return FromTime(clock.Now().In(loc))
}

// FixedClock always reports the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
