package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
	"github.com/sirupsen/logrus"
)

// scanAll maps every row with scan; rows that fail to map are logged and
// skipped.
func scanAll[M any](rows *sql.Rows, log *logrus.Entry, scan func(*sql.Rows) (M, error)) ([]M, error) {
	defer rows.Close()

	var out []M
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			log.WithError(err).Warn("Skipping malformed row")
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanVehicle(rows *sql.Rows) (models.Vehicle, error) {
	var v models.Vehicle
	var responsible, supplier sql.NullString
	if err := rows.Scan(&v.ID, &v.Plate, &v.Make, &v.Model, &responsible, &supplier); err != nil {
		return models.Vehicle{}, err
	}
	v.Plate = strings.TrimSpace(v.Plate)
	v.Responsible = responsible.String
	v.Supplier = supplier.String
	return v, nil
}

func scanProgram(rows *sql.Rows) (models.MasterProgram, error) {
	var p models.MasterProgram
	var lastService, nextDue, notes sql.NullString
	var updatedAt string
	if err := rows.Scan(&p.VehicleID, &p.Type, &p.PeriodicityMonths, &lastService, &nextDue, &notes, &updatedAt); err != nil {
		return models.MasterProgram{}, err
	}
	if p.PeriodicityMonths <= 0 {
		return models.MasterProgram{}, fmt.Errorf("program %s/%s has periodicity %d", p.VehicleID, p.Type, p.PeriodicityMonths)
	}
	var err error
	if p.LastService, err = parseNullDate(lastService); err != nil {
		return models.MasterProgram{}, err
	}
	if p.NextDue, err = parseNullDate(nextDue); err != nil {
		return models.MasterProgram{}, err
	}
	p.Notes = notes.String
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func scanOccurrence(rows *sql.Rows) (models.Occurrence, error) {
	var o models.Occurrence
	var nature, date, createdAt string
	var notes sql.NullString
	if err := rows.Scan(&o.ID, &o.VehicleID, &o.Plate, &o.Type, &nature, &date, &notes, &createdAt); err != nil {
		return models.Occurrence{}, err
	}
	o.Nature = models.Nature(nature)
	if !models.IsValidNature(o.Nature) {
		return models.Occurrence{}, fmt.Errorf("occurrence %s has nature %q", o.ID, nature)
	}
	d, err := calendar.Parse(date)
	if err != nil {
		return models.Occurrence{}, fmt.Errorf("occurrence %s: %w", o.ID, err)
	}
	o.Date = d
	o.Notes = notes.String
	o.CreatedAt = parseTime(createdAt)
	return o, nil
}

func scanCompletion(rows *sql.Rows) (models.Completion, error) {
	var c models.Completion
	var date, createdAt string
	var odometer, cost sql.NullFloat64
	var notes sql.NullString
	if err := rows.Scan(&c.ID, &c.VehicleID, &c.Type, &date, &odometer, &cost, &notes, &createdAt); err != nil {
		return models.Completion{}, err
	}
	d, err := calendar.Parse(date)
	if err != nil {
		return models.Completion{}, fmt.Errorf("completion %s: %w", c.ID, err)
	}
	c.Date = d
	if odometer.Valid {
		c.Odometer = &odometer.Float64
	}
	if cost.Valid {
		c.Cost = &cost.Float64
	}
	c.Notes = notes.String
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

func parseNullDate(s sql.NullString) (*calendar.Date, error) {
	if !s.Valid || strings.TrimSpace(s.String) == "" {
		return nil, nil
	}
	d, err := calendar.Parse(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullDate(d *calendar.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
