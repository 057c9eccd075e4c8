package models

import (
	"time"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
)

// Nature tells planned upkeep from repairs.
type Nature string

const (
	NaturePreventive Nature = "preventive"
	NatureCorrective Nature = "corrective"
)

// IsValidNature checks if a nature is known
func IsValidNature(n Nature) bool {
	switch n {
	case NaturePreventive, NatureCorrective:
		return true
	default:
		return false
	}
}

// Occurrence is one scheduled maintenance visit on the calendar.
type Occurrence struct {
	ID        string        `json:"id"`
	VehicleID string        `json:"vehicle_id"`
	Plate     string        `json:"plate"`
	Type      string        `json:"type"`
	Nature    Nature        `json:"nature"`
	Date      calendar.Date `json:"date"`
	Notes     string        `json:"notes,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// OccurrencePatch carries the editable fields of an Occurrence. Nil fields
// are left unchanged.
type OccurrencePatch struct {
	Date   *calendar.Date `json:"date,omitempty"`
	Type   *string        `json:"type,omitempty"`
	Nature *Nature        `json:"nature,omitempty"`
	Notes  *string        `json:"notes,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p OccurrencePatch) IsEmpty() bool {
	return p.Date == nil && p.Type == nil && p.Nature == nil && p.Notes == nil
}

// Completion records maintenance that was actually performed.
type Completion struct {
	ID        string        `json:"id"`
	VehicleID string        `json:"vehicle_id"`
	Type      string        `json:"type"`
	Date      calendar.Date `json:"date"`
	Odometer  *float64      `json:"odometer,omitempty"` // in kilometers
	Cost      *float64      `json:"cost,omitempty"`
	Notes     string        `json:"notes,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Fulfills reports whether c is the completion of o. The match is by value:
// same vehicle, type and date.
func (c Completion) Fulfills(o Occurrence) bool {
	return c.VehicleID == o.VehicleID && c.Type == o.Type && c.Date == o.Date
}
