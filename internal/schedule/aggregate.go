package schedule

import (
	"sort"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
)

// OccurrenceStatus is an occurrence as shown on the calendar.
type OccurrenceStatus struct {
	models.Occurrence
	Status DueStatus `json:"status"`
}

// DayBucket counts one day's occurrences per status.
type DayBucket struct {
	Date      calendar.Date `json:"date"`
	Total     int           `json:"total"`
	Overdue   int           `json:"overdue"`
	DueSoon   int           `json:"due_soon"`
	OnTrack   int           `json:"on_track"`
	Fulfilled int           `json:"fulfilled"`
}

func (b *DayBucket) add(s DueStatus) {
	b.Total++
	switch s {
	case StatusOverdue:
		b.Overdue++
	case StatusDueSoon:
		b.DueSoon++
	case StatusOnTrack:
		b.OnTrack++
	case StatusFulfilled:
		b.Fulfilled++
	}
}

// MonthView is the calendar for one month and type filter. An empty Type
// means every type.
type MonthView struct {
	Month       calendar.Month      `json:"month"`
	Type        string              `json:"type,omitempty"`
	Today       calendar.Date       `json:"today"`
	Occurrences []OccurrenceStatus  `json:"occurrences"`
	Completions []models.Completion `json:"completions"`
	Days        []DayBucket         `json:"days"`
}

type fulfillmentKey struct {
	vehicleID string
	typ       string
	date      calendar.Date
}

func keyOf(vehicleID, typ string, date calendar.Date) fulfillmentKey {
	return fulfillmentKey{vehicleID: vehicleID, typ: typ, date: date}
}

// fulfilledSet indexes completions by (vehicle, type, date).
func fulfilledSet(completions []models.Completion) map[fulfillmentKey]struct{} {
	set := make(map[fulfillmentKey]struct{}, len(completions))
	for _, c := range completions {
		set[keyOf(c.VehicleID, c.Type, c.Date)] = struct{}{}
	}
	return set
}

// Aggregate joins a month's occurrences with its completions. Rows outside
// the month or of another type are dropped; every day of the month gets a
// bucket, empty or not.
func Aggregate(month calendar.Month, maintenanceType string, today calendar.Date, occurrences []models.Occurrence, completions []models.Completion) MonthView {
	view := MonthView{
		Month:       month,
		Type:        maintenanceType,
		Today:       today,
		Occurrences: make([]OccurrenceStatus, 0, len(occurrences)),
		Completions: make([]models.Completion, 0, len(completions)),
	}

	for _, c := range completions {
		if month.Contains(c.Date) && matchesType(c.Type, maintenanceType) {
			view.Completions = append(view.Completions, c)
		}
	}
	done := fulfilledSet(view.Completions)

	days := month.Days()
	view.Days = make([]DayBucket, len(days))
	for i, d := range days {
		view.Days[i].Date = d
	}

	for _, o := range occurrences {
		if !month.Contains(o.Date) || !matchesType(o.Type, maintenanceType) {
			continue
		}
		_, fulfilled := done[keyOf(o.VehicleID, o.Type, o.Date)]
		due := o.Date
		status := Classify(today, &due, fulfilled)
		view.Occurrences = append(view.Occurrences, OccurrenceStatus{Occurrence: o, Status: status})
		view.Days[o.Date.Day-1].add(status)
	}

	sort.SliceStable(view.Occurrences, func(i, j int) bool {
		a, b := view.Occurrences[i], view.Occurrences[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c < 0
		}
		return a.Plate < b.Plate
	})
	return view
}

func matchesType(got, filter string) bool {
	return filter == "" || got == filter
}

// clone copies the slices so cached views are never shared with callers.
func (v MonthView) clone() MonthView {
	out := v
	out.Occurrences = append([]OccurrenceStatus(nil), v.Occurrences...)
	out.Completions = append([]models.Completion(nil), v.Completions...)
	out.Days = append([]DayBucket(nil), v.Days...)
	return out
}
