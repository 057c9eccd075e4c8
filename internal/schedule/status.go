package schedule

import (
	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
)

// DueStatus is the compliance bucket of a due date.
type DueStatus string

const (
	StatusUnscheduled DueStatus = "unscheduled"
	StatusOverdue     DueStatus = "overdue"
	StatusDueSoon     DueStatus = "due_soon"
	StatusOnTrack     DueStatus = "on_track"
	StatusFulfilled   DueStatus = "fulfilled"
)

// DueSoonDays is the last day offset that still counts as due soon.
const DueSoonDays = 30

// Classify maps a due date to its bucket as of today. Fulfilled wins over
// every date-based bucket.
func Classify(today calendar.Date, due *calendar.Date, fulfilled bool) DueStatus {
	if fulfilled {
		return StatusFulfilled
	}
	if due == nil || due.IsZero() {
		return StatusUnscheduled
	}
	days := calendar.DaysBetween(today, *due)
	switch {
	case days < 0:
		return StatusOverdue
	case days <= DueSoonDays:
		return StatusDueSoon
	default:
		return StatusOnTrack
	}
}
