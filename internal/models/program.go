package models

import (
	"time"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
)

// MasterProgram is the recurring maintenance definition for one vehicle and
// maintenance type. (VehicleID, Type) is its natural key.
type MasterProgram struct {
	VehicleID         string         `json:"vehicle_id"`
	Type              string         `json:"type"`
	PeriodicityMonths int            `json:"periodicity_months"`
	LastService       *calendar.Date `json:"last_service"`
	NextDue           *calendar.Date `json:"next_due"`
	Notes             string         `json:"notes,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// ProgramUpsert writes a MasterProgram by natural key. Nil LastService and
// Notes leave the stored values untouched.
type ProgramUpsert struct {
	VehicleID         string
	Type              string
	PeriodicityMonths int
	NextDue           *calendar.Date
	LastService       *calendar.Date
	Notes             *string
}
