package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	log *logrus.Entry
}

// OpenSQLite opens (and migrates) the database at path. ":memory:" gives
// an ephemeral store, which the tests use.
func OpenSQLite(ctx context.Context, path string, log *logrus.Entry) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// An in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000")
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")

	st := &SQLiteStore{db: db, log: log}
	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close(context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) ListVehicles(ctx context.Context, search string) ([]models.Vehicle, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilStore
	}
	query := `SELECT id, plate, make, model, responsible, supplier FROM vehicles`
	var args []any
	if search != "" {
		like := "%" + escapeLike(search) + "%"
		query += ` WHERE plate LIKE ? ESCAPE '\' OR make LIKE ? ESCAPE '\' OR model LIKE ? ESCAPE '\'`
		args = append(args, like, like, like)
	}
	query += ` ORDER BY plate`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, s.log, scanVehicle)
}

func (s *SQLiteStore) GetVehicles(ctx context.Context, ids []string) ([]models.Vehicle, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilStore
	}
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plate, make, model, responsible, supplier FROM vehicles WHERE id IN (`+placeholders(len(ids))+`) ORDER BY plate`,
		stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, s.log, scanVehicle)
}

func (s *SQLiteStore) InsertVehicle(ctx context.Context, vehicle models.Vehicle) (*models.Vehicle, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilStore
	}
	if vehicle.ID == "" {
		vehicle.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vehicles(id, plate, make, model, responsible, supplier) VALUES(?,?,?,?,?,?)`,
		vehicle.ID, vehicle.Plate, vehicle.Make, vehicle.Model, nullStr(vehicle.Responsible), nullStr(vehicle.Supplier),
	)
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

const programColumns = `vehicle_id, type, periodicity_months, last_service, next_due, notes, updated_at`

func (s *SQLiteStore) GetMasterPrograms(ctx context.Context, vehicleIDs []string, maintenanceType string) ([]models.MasterProgram, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilStore
	}
	if len(vehicleIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + programColumns + ` FROM maintenance_programs WHERE vehicle_id IN (` + placeholders(len(vehicleIDs)) + `)`
	args := stringArgs(vehicleIDs)
	if maintenanceType != "" {
		query += ` AND type = ?`
		args = append(args, maintenanceType)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, s.log, scanProgram)
}

func (s *SQLiteStore) GetProgramsByType(ctx context.Context, maintenanceType string) ([]models.MasterProgram, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilStore
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+programColumns+` FROM maintenance_programs WHERE type = ?`, maintenanceType)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, s.log, scanProgram)
}

func (s *SQLiteStore) UpsertMasterProgram(ctx context.Context, p models.ProgramUpsert) error {
	if s == nil || s.db == nil {
		return ErrNilStore
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var notes any
	if p.Notes != nil {
		notes = *p.Notes
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO maintenance_programs(vehicle_id, type, periodicity_months, last_service, next_due, notes, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(vehicle_id, type) DO UPDATE SET
			periodicity_months = excluded.periodicity_months,
			next_due = excluded.next_due,
			last_service = COALESCE(excluded.last_service, maintenance_programs.last_service),
			notes = COALESCE(excluded.notes, maintenance_programs.notes),
			updated_at = excluded.updated_at`,
		p.VehicleID, p.Type, p.PeriodicityMonths, nullDate(p.LastService), nullDate(p.NextDue), notes, now, now,
	)
	return err
}

const occurrenceColumns = `id, vehicle_id, plate, type, nature, date, notes, created_at`

func (s *SQLiteStore) BulkInsertOccurrences(ctx context.Context, rows []models.Occurrence) error {
	if s == nil || s.db == nil {
		return ErrNilStore
	}
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO maintenance_schedule(`+occurrenceColumns+`) VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range rows {
		rows[i].ID = uuid.NewString()
		if _, err := stmt.ExecContext(ctx, occurrenceArgs(rows[i].ID, rows[i])...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) InsertOccurrence(ctx context.Context, o models.Occurrence) (*models.Occurrence, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilStore
	}
	o.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO maintenance_schedule(`+occurrenceColumns+`) VALUES(?,?,?,?,?,?,?,?)`,
		occurrenceArgs(o.ID, o)...)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *SQLiteStore) GetOccurrence(ctx context.Context, id string) (*models.Occurrence, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilStore
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+occurrenceColumns+` FROM maintenance_schedule WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	found, err := scanAll(rows, s.log, scanOccurrence)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

func (s *SQLiteStore) UpdateOccurrence(ctx context.Context, id string, patch models.OccurrencePatch) (*models.Occurrence, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilStore
	}
	var sets []string
	var args []any
	if patch.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, patch.Date.String())
	}
	if patch.Type != nil {
		sets = append(sets, "type = ?")
		args = append(args, *patch.Type)
	}
	if patch.Nature != nil {
		sets = append(sets, "nature = ?")
		args = append(args, string(*patch.Nature))
	}
	if patch.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, nullStr(*patch.Notes))
	}
	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			`UPDATE maintenance_schedule SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return nil, err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetOccurrence(ctx, id)
}

func (s *SQLiteStore) DeleteOccurrence(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return ErrNilStore
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM maintenance_schedule WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetOccurrencesInRange(ctx context.Context, from, to calendar.Date, maintenanceType string) ([]models.Occurrence, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilStore
	}
	where, args := rangeWhere(from, to, maintenanceType)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+occurrenceColumns+` FROM maintenance_schedule WHERE `+where+` ORDER BY date, plate`, args...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, s.log, scanOccurrence)
}

const completionColumns = `id, vehicle_id, type, date, odometer, cost, notes, created_at`

func (s *SQLiteStore) InsertCompletion(ctx context.Context, c models.Completion) (*models.Completion, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilStore
	}
	c.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO maintenance_records(`+completionColumns+`) VALUES(?,?,?,?,?,?,?,?)`,
		c.ID, c.VehicleID, c.Type, c.Date.String(), nullFloat(c.Odometer), nullFloat(c.Cost),
		nullStr(c.Notes), c.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) GetCompletionsInRange(ctx context.Context, from, to calendar.Date, maintenanceType string) ([]models.Completion, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilStore
	}
	where, args := rangeWhere(from, to, maintenanceType)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+completionColumns+` FROM maintenance_records WHERE `+where+` ORDER BY date`, args...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, s.log, scanCompletion)
}

func rangeWhere(from, to calendar.Date, maintenanceType string) (string, []any) {
	where := `date >= ? AND date <= ?`
	args := []any{from.String(), to.String()}
	if maintenanceType != "" {
		where += ` AND type = ?`
		args = append(args, maintenanceType)
	}
	return where, args
}

func occurrenceArgs(id string, o models.Occurrence) []any {
	return []any{
		id, o.VehicleID, o.Plate, o.Type, string(o.Nature), o.Date.String(),
		nullStr(o.Notes), o.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
