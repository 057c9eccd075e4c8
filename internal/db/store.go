package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrNilStore = errors.New("store is not initialized")
)

// VehicleCollection reads the fleet registry.
type VehicleCollection interface {
	ListVehicles(ctx context.Context, search string) ([]models.Vehicle, error)
	GetVehicles(ctx context.Context, ids []string) ([]models.Vehicle, error)
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) (*models.Vehicle, error)
}

// ProgramCollection stores master programs keyed by (vehicle, type).
type ProgramCollection interface {
	GetMasterPrograms(ctx context.Context, vehicleIDs []string, maintenanceType string) ([]models.MasterProgram, error)
	GetProgramsByType(ctx context.Context, maintenanceType string) ([]models.MasterProgram, error)
	UpsertMasterProgram(ctx context.Context, p models.ProgramUpsert) error
}

// OccurrenceCollection stores scheduled occurrences. BulkInsertOccurrences
// sets the ID of each row in place.
type OccurrenceCollection interface {
	BulkInsertOccurrences(ctx context.Context, rows []models.Occurrence) error
	InsertOccurrence(ctx context.Context, o models.Occurrence) (*models.Occurrence, error)
	GetOccurrence(ctx context.Context, id string) (*models.Occurrence, error)
	UpdateOccurrence(ctx context.Context, id string, patch models.OccurrencePatch) (*models.Occurrence, error)
	DeleteOccurrence(ctx context.Context, id string) error
	GetOccurrencesInRange(ctx context.Context, from, to calendar.Date, maintenanceType string) ([]models.Occurrence, error)
}

// CompletionCollection stores completion records. Records are never
// updated or deleted.
type CompletionCollection interface {
	InsertCompletion(ctx context.Context, c models.Completion) (*models.Completion, error)
	GetCompletionsInRange(ctx context.Context, from, to calendar.Date, maintenanceType string) ([]models.Completion, error)
}

// ScheduleStore is everything the scheduling controller needs.
type ScheduleStore interface {
	VehicleCollection
	ProgramCollection
	OccurrenceCollection
	CompletionCollection
}

// Store is a complete backend: schedule data plus portal users.
type Store interface {
	ScheduleStore
	UserCollection
	Close(ctx context.Context) error
}

// Config selects and configures a backend.
//
// Driver values:
//   - "mongo": MongoDB database (default)
//   - "sqlite": SQLite database file, ":memory:" for an ephemeral store
type Config struct {
	Driver     string
	MongoURI   string
	MongoDB    string
	SQLitePath string
}

// Open initializes the configured store.
func Open(ctx context.Context, cfg Config, log *logrus.Entry) (Store, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "store")

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "mongo", "mongodb":
		client, err := ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		name := cfg.MongoDB
		if name == "" {
			name = "fleet"
		}
		store := NewMongoStore(client, client.Database(name), log)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return store, nil
	case "sqlite", "sqlite3":
		return OpenSQLite(ctx, cfg.SQLitePath, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
