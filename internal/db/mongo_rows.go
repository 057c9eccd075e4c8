package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Rows are the shapes documents have in MongoDB. They are mapped to the
// models at this boundary and malformed documents are dropped.

type vehicleRow struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Plate       string             `bson:"plate"`
	Make        string             `bson:"make"`
	Model       string             `bson:"model"`
	Responsible string             `bson:"responsible,omitempty"`
	Supplier    string             `bson:"supplier,omitempty"`
}

func (r vehicleRow) toModel() (models.Vehicle, error) {
	if r.ID.IsZero() {
		return models.Vehicle{}, fmt.Errorf("vehicle without id")
	}
	return models.Vehicle{
		ID:          r.ID.Hex(),
		Plate:       strings.TrimSpace(r.Plate),
		Make:        r.Make,
		Model:       r.Model,
		Responsible: r.Responsible,
		Supplier:    r.Supplier,
	}, nil
}

type programRow struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	VehicleID         string             `bson:"vehicle_id"`
	Type              string             `bson:"type"`
	PeriodicityMonths int                `bson:"periodicity_months"`
	LastService       *calendar.Date     `bson:"last_service,omitempty"`
	NextDue           *calendar.Date     `bson:"next_due"`
	Notes             string             `bson:"notes,omitempty"`
	UpdatedAt         time.Time          `bson:"updated_at"`
}

func (r programRow) toModel() (models.MasterProgram, error) {
	if r.VehicleID == "" || r.Type == "" {
		return models.MasterProgram{}, fmt.Errorf("program %s without natural key", r.ID.Hex())
	}
	if r.PeriodicityMonths <= 0 {
		return models.MasterProgram{}, fmt.Errorf("program %s has periodicity %d", r.ID.Hex(), r.PeriodicityMonths)
	}
	return models.MasterProgram{
		VehicleID:         r.VehicleID,
		Type:              r.Type,
		PeriodicityMonths: r.PeriodicityMonths,
		LastService:       nonZero(r.LastService),
		NextDue:           nonZero(r.NextDue),
		Notes:             r.Notes,
		UpdatedAt:         r.UpdatedAt,
	}, nil
}

type occurrenceRow struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	VehicleID string             `bson:"vehicle_id"`
	Plate     string             `bson:"plate"`
	Type      string             `bson:"type"`
	Nature    string             `bson:"nature"`
	Date      calendar.Date      `bson:"date"`
	Notes     string             `bson:"notes,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
}

func newOccurrenceRow(o models.Occurrence) occurrenceRow {
	return occurrenceRow{
		ID:        primitive.NewObjectID(),
		VehicleID: o.VehicleID,
		Plate:     o.Plate,
		Type:      o.Type,
		Nature:    string(o.Nature),
		Date:      o.Date,
		Notes:     o.Notes,
		CreatedAt: o.CreatedAt,
	}
}

func (r occurrenceRow) toModel() (models.Occurrence, error) {
	nature := models.Nature(r.Nature)
	if !models.IsValidNature(nature) {
		return models.Occurrence{}, fmt.Errorf("occurrence %s has nature %q", r.ID.Hex(), r.Nature)
	}
	if r.VehicleID == "" || r.Date.IsZero() {
		return models.Occurrence{}, fmt.Errorf("occurrence %s without vehicle or date", r.ID.Hex())
	}
	return models.Occurrence{
		ID:        r.ID.Hex(),
		VehicleID: r.VehicleID,
		Plate:     r.Plate,
		Type:      r.Type,
		Nature:    nature,
		Date:      r.Date,
		Notes:     r.Notes,
		CreatedAt: r.CreatedAt,
	}, nil
}

type completionRow struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	VehicleID string             `bson:"vehicle_id"`
	Type      string             `bson:"type"`
	Date      calendar.Date      `bson:"date"`
	Odometer  *float64           `bson:"odometer,omitempty"`
	Cost      *float64           `bson:"cost,omitempty"`
	Notes     string             `bson:"notes,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (r completionRow) toModel() (models.Completion, error) {
	if r.VehicleID == "" || r.Date.IsZero() {
		return models.Completion{}, fmt.Errorf("completion %s without vehicle or date", r.ID.Hex())
	}
	return models.Completion{
		ID:        r.ID.Hex(),
		VehicleID: r.VehicleID,
		Type:      r.Type,
		Date:      r.Date,
		Odometer:  r.Odometer,
		Cost:      r.Cost,
		Notes:     r.Notes,
		CreatedAt: r.CreatedAt,
	}, nil
}

// decodeRows drains a cursor one document at a time so that a single bad
// document is logged and skipped instead of failing the whole read.
func decodeRows[R any, M any](ctx context.Context, cursor *mongo.Cursor, log *logrus.Entry, toModel func(R) (M, error)) ([]M, error) {
	defer cursor.Close(ctx)

	var out []M
	for cursor.Next(ctx) {
		var row R
		if err := cursor.Decode(&row); err != nil {
			log.WithError(err).WithField("raw", cursor.Current.String()).Warn("Skipping undecodable document")
			continue
		}
		m, err := toModel(row)
		if err != nil {
			log.WithError(err).Warn("Skipping malformed document")
			continue
		}
		out = append(out, m)
	}
	return out, cursor.Err()
}

func nonZero(d *calendar.Date) *calendar.Date {
	if d == nil || d.IsZero() {
		return nil
	}
	return d
}
