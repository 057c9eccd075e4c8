// Package events fans schedule changes out to other systems. Publishing is
// best effort: the scheduling engine logs a failed publish and carries on.
package events

import (
	"context"
	"time"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
)

// Kind names what happened.
type Kind string

const (
	PreventiveScheduled  Kind = "preventive_scheduled"
	CorrectiveScheduled  Kind = "corrective_scheduled"
	OccurrenceUpdated    Kind = "occurrence_updated"
	OccurrenceDeleted    Kind = "occurrence_deleted"
	CompletionRegistered Kind = "completion_registered"
)

// Event is one schedule change.
type Event struct {
	Kind         Kind           `json:"kind"`
	VehicleID    string         `json:"vehicle_id"`
	Type         string         `json:"type"`
	Date         calendar.Date  `json:"date"`
	OccurrenceID string         `json:"occurrence_id,omitempty"`
	Count        int            `json:"count,omitempty"`
	NextDue      *calendar.Date `json:"next_due,omitempty"`
	At           time.Time      `json:"at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close()                                {}
