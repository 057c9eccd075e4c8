package schedule

import (
	"fmt"
	"time"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
)

// Upper bounds for one preventive command.
const (
	MaxOccurrences       = 120
	MaxPeriodicityMonths = 120
)

// GenerateDates expands a recurrence into count dates, each offset from
// start by a whole number of periods. Offsetting from start (rather than
// from the previous date) keeps month-end starts from drifting.
func GenerateDates(start calendar.Date, periodicityMonths, count int) ([]calendar.Date, error) {
	if start.IsZero() || !start.Valid() {
		return nil, fmt.Errorf("%w: start date is required", ErrValidation)
	}
	if periodicityMonths <= 0 || periodicityMonths > MaxPeriodicityMonths {
		return nil, fmt.Errorf("%w: periodicity must be between 1 and %d months", ErrValidation, MaxPeriodicityMonths)
	}
	if count <= 0 || count > MaxOccurrences {
		return nil, fmt.Errorf("%w: occurrence count must be between 1 and %d", ErrValidation, MaxOccurrences)
	}
	if last := calendar.AddMonths(start, (count-1)*periodicityMonths); !last.Valid() {
		return nil, fmt.Errorf("%w: schedule runs past %d-12-31", ErrValidation, calendar.MaxYear)
	}
	dates := make([]calendar.Date, count)
	for i := range dates {
		dates[i] = calendar.AddMonths(start, i*periodicityMonths)
	}
	return dates, nil
}

// preventiveOccurrences builds the rows for one vehicle's bulk insert.
func preventiveOccurrences(vehicle models.Vehicle, maintenanceType, notes string, dates []calendar.Date, now time.Time) []models.Occurrence {
	rows := make([]models.Occurrence, len(dates))
	for i, d := range dates {
		rows[i] = models.Occurrence{
			VehicleID: vehicle.ID,
			Plate:     vehicle.Plate,
			Type:      maintenanceType,
			Nature:    models.NaturePreventive,
			Date:      d,
			Notes:     notes,
			CreatedAt: now,
		}
	}
	return rows
}
