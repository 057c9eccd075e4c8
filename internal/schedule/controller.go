// Package schedule plans preventive and corrective maintenance, reconciles
// completed work against master programs and builds the compliance calendar.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
	"github.com/jparedesa-eng/fleet-admin/internal/db"
	"github.com/jparedesa-eng/fleet-admin/internal/events"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/zoobzio/clockz"
)

// Controller runs every scheduling command against a store. It is safe for
// concurrent use.
type Controller struct {
	store      db.ScheduleStore
	reconciler *Reconciler
	clock      calendar.Clock
	loc        *time.Location
	publisher  events.Publisher
	cache      *viewCache
	log        *logrus.Entry
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the real clock.
func WithClock(clock calendar.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithLocation sets the zone "today" is computed in.
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) { c.loc = loc }
}

// WithPublisher sets where schedule events go.
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Controller) { c.log = log }
}

func NewController(store db.ScheduleStore, opts ...Option) *Controller {
	c := &Controller{
		store:      store,
		reconciler: NewReconciler(store),
		clock:      clockz.RealClock,
		loc:        time.Local,
		publisher:  events.Nop{},
		cache:      newViewCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logrus.WithField("component", "schedule")
	}
	return c
}

// View is the calendar scope a mutation re-reads after writing. A zero
// View means the month of the written entity, filtered to its type.
type View struct {
	Month calendar.Month `json:"month"`
	Type  string         `json:"type"`
}

// Result is what a mutation wrote plus the re-read calendar. View is nil
// when the write succeeded but the re-read failed.
type Result struct {
	Occurrences []models.Occurrence   `json:"occurrences,omitempty"`
	Completion  *models.Completion    `json:"completion,omitempty"`
	Program     *models.MasterProgram `json:"program,omitempty"`
	View        *MonthView            `json:"view,omitempty"`
}

// PreventiveCommand schedules a recurring program on one or more vehicles.
type PreventiveCommand struct {
	VehicleIDs        []string      `json:"vehicle_ids"`
	Type              string        `json:"type"`
	Start             calendar.Date `json:"start"`
	PeriodicityMonths int           `json:"periodicity_months"`
	Count             int           `json:"count"`
	Notes             string        `json:"notes"`

	// Redefine replaces existing programs of the same type instead of
	// rejecting the command.
	Redefine bool `json:"redefine"`
	View     View `json:"view"`
}

// CorrectiveCommand schedules a one-off repair.
type CorrectiveCommand struct {
	VehicleID string        `json:"vehicle_id"`
	Type      string        `json:"type"`
	Date      calendar.Date `json:"date"`
	Notes     string        `json:"notes"`
	View      View          `json:"view"`
}

// CompletionCommand records performed maintenance.
type CompletionCommand struct {
	VehicleID string        `json:"vehicle_id"`
	Type      string        `json:"type"`
	Date      calendar.Date `json:"date"`
	Odometer  *float64      `json:"odometer,omitempty"`
	Cost      *float64      `json:"cost,omitempty"`
	Notes     string        `json:"notes"`
	View      View          `json:"view"`
}

// ProgramStatus is one row of the program board.
type ProgramStatus struct {
	Vehicle models.Vehicle        `json:"vehicle"`
	Program *models.MasterProgram `json:"program"`
	Status  DueStatus             `json:"status"`
}

// Today is the current calendar day in the controller's zone.
func (c *Controller) Today() calendar.Date {
	return calendar.Today(c.clock, c.loc)
}

// ListVehicles searches the fleet by plate, make or model.
func (c *Controller) ListVehicles(ctx context.Context, search string) ([]models.Vehicle, error) {
	vehicles, err := c.store.ListVehicles(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return vehicles, nil
}

// AvailableVehicles returns the vehicles with no program of the given type.
func (c *Controller) AvailableVehicles(ctx context.Context, maintenanceType, search string) ([]models.Vehicle, error) {
	maintenanceType, err := requireType(maintenanceType)
	if err != nil {
		return nil, err
	}
	vehicles, err := c.ListVehicles(ctx, search)
	if err != nil {
		return nil, err
	}
	programs, err := c.programsByType(ctx, maintenanceType)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]struct{}, len(programs))
	for _, p := range programs {
		taken[p.VehicleID] = struct{}{}
	}
	available := make([]models.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if _, ok := taken[v.ID]; !ok {
			available = append(available, v)
		}
	}
	return available, nil
}

// ProgramBoard lists vehicles with their program of the given type and its
// due status.
func (c *Controller) ProgramBoard(ctx context.Context, maintenanceType, search string) ([]ProgramStatus, error) {
	maintenanceType, err := requireType(maintenanceType)
	if err != nil {
		return nil, err
	}
	vehicles, err := c.ListVehicles(ctx, search)
	if err != nil {
		return nil, err
	}
	programs, err := c.programsByType(ctx, maintenanceType)
	if err != nil {
		return nil, err
	}
	byVehicle := make(map[string]models.MasterProgram, len(programs))
	for _, p := range programs {
		byVehicle[p.VehicleID] = p
	}

	today := c.Today()
	board := make([]ProgramStatus, 0, len(vehicles))
	for _, v := range vehicles {
		row := ProgramStatus{Vehicle: v, Status: StatusUnscheduled}
		if p, ok := byVehicle[v.ID]; ok {
			program := p
			row.Program = &program
			row.Status = Classify(today, program.NextDue, false)
		}
		board = append(board, row)
	}
	return board, nil
}

// LoadMonth returns the calendar for month. An empty type loads every type.
func (c *Controller) LoadMonth(ctx context.Context, month calendar.Month, maintenanceType string) (*MonthView, error) {
	if month.IsZero() {
		return nil, fmt.Errorf("%w: month is required", ErrValidation)
	}
	maintenanceType = strings.TrimSpace(maintenanceType)
	key := viewKey{month: month, typ: maintenanceType, today: c.Today()}
	if v, ok := c.cache.month(key); ok {
		return &v, nil
	}
	return c.fetchMonth(ctx, key)
}

func (c *Controller) fetchMonth(ctx context.Context, key viewKey) (*MonthView, error) {
	gen := c.cache.generation()
	from, to := key.month.First(), key.month.Last()
	occurrences, err := c.store.GetOccurrencesInRange(ctx, from, to, key.typ)
	if err != nil {
		return nil, fmt.Errorf("load occurrences for %s: %w", key.month, err)
	}
	completions, err := c.store.GetCompletionsInRange(ctx, from, to, key.typ)
	if err != nil {
		return nil, fmt.Errorf("load completions for %s: %w", key.month, err)
	}
	view := Aggregate(key.month, key.typ, key.today, occurrences, completions)
	c.cache.putMonth(gen, key, view)
	return &view, nil
}

func (c *Controller) programsByType(ctx context.Context, maintenanceType string) ([]models.MasterProgram, error) {
	if p, ok := c.cache.programsOf(maintenanceType); ok {
		return p, nil
	}
	gen := c.cache.generation()
	programs, err := c.store.GetProgramsByType(ctx, maintenanceType)
	if err != nil {
		return nil, fmt.Errorf("load %s programs: %w", maintenanceType, err)
	}
	c.cache.putPrograms(gen, maintenanceType, programs)
	return programs, nil
}

// SchedulePreventive creates a master program and its occurrences on each
// selected vehicle. Vehicles that already have a program of the type are
// rejected before anything is written unless cmd.Redefine is set.
func (c *Controller) SchedulePreventive(ctx context.Context, cmd PreventiveCommand) (*Result, error) {
	maintenanceType, err := requireType(cmd.Type)
	if err != nil {
		return nil, err
	}
	dates, err := GenerateDates(cmd.Start, cmd.PeriodicityMonths, cmd.Count)
	if err != nil {
		return nil, err
	}
	vehicles, err := c.resolveVehicles(ctx, cmd.VehicleIDs)
	if err != nil {
		return nil, err
	}
	if !cmd.Redefine {
		if err := c.checkNoPrograms(ctx, vehicles, maintenanceType); err != nil {
			return nil, err
		}
	}

	created, err := c.writePreventive(ctx, vehicles, maintenanceType, cmd, dates)
	c.cache.invalidate()
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	for _, v := range vehicles {
		c.publish(ctx, events.Event{
			Kind:      events.PreventiveScheduled,
			VehicleID: v.ID,
			Type:      maintenanceType,
			Date:      cmd.Start,
			Count:     len(dates),
			At:        now,
		})
	}
	c.log.WithFields(logrus.Fields{
		"type":        maintenanceType,
		"vehicles":    len(vehicles),
		"occurrences": len(created),
		"start":       cmd.Start.String(),
	}).Info("Preventive maintenance scheduled")

	result := &Result{Occurrences: created}
	result.View = c.reread(ctx, cmd.View, calendar.MonthOf(cmd.Start), maintenanceType)
	return result, nil
}

func (c *Controller) writePreventive(ctx context.Context, vehicles []models.Vehicle, maintenanceType string, cmd PreventiveCommand, dates []calendar.Date) ([]models.Occurrence, error) {
	start := cmd.Start
	var notes *string
	if strings.TrimSpace(cmd.Notes) != "" {
		n := cmd.Notes
		notes = &n
	}
	now := c.clock.Now().UTC()

	var created []models.Occurrence
	for _, v := range vehicles {
		if err := c.store.UpsertMasterProgram(ctx, models.ProgramUpsert{
			VehicleID:         v.ID,
			Type:              maintenanceType,
			PeriodicityMonths: cmd.PeriodicityMonths,
			NextDue:           &start,
			Notes:             notes,
		}); err != nil {
			return nil, fmt.Errorf("upsert %s program for %s: %w", maintenanceType, v.Plate, err)
		}
		rows := preventiveOccurrences(v, maintenanceType, cmd.Notes, dates, now)
		if err := c.store.BulkInsertOccurrences(ctx, rows); err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"vehicle_id": v.ID,
				"plate":      v.Plate,
				"type":       maintenanceType,
			}).Error("Program saved without its occurrences")
			return nil, fmt.Errorf("insert %s occurrences for %s: %w", maintenanceType, v.Plate, err)
		}
		created = append(created, rows...)
	}
	return created, nil
}

// ScheduleCorrective adds a single corrective occurrence. Master programs
// are not touched.
func (c *Controller) ScheduleCorrective(ctx context.Context, cmd CorrectiveCommand) (*Result, error) {
	maintenanceType, err := requireType(cmd.Type)
	if err != nil {
		return nil, err
	}
	if err := requireDate(cmd.Date); err != nil {
		return nil, err
	}
	vehicles, err := c.resolveVehicles(ctx, []string{cmd.VehicleID})
	if err != nil {
		return nil, err
	}
	v := vehicles[0]

	inserted, err := c.store.InsertOccurrence(ctx, models.Occurrence{
		VehicleID: v.ID,
		Plate:     v.Plate,
		Type:      maintenanceType,
		Nature:    models.NatureCorrective,
		Date:      cmd.Date,
		Notes:     cmd.Notes,
		CreatedAt: c.clock.Now().UTC(),
	})
	c.cache.invalidate()
	if err != nil {
		return nil, fmt.Errorf("insert corrective occurrence: %w", err)
	}

	c.publish(ctx, events.Event{
		Kind:         events.CorrectiveScheduled,
		VehicleID:    v.ID,
		Type:         maintenanceType,
		Date:         cmd.Date,
		OccurrenceID: inserted.ID,
		At:           c.clock.Now(),
	})
	c.log.WithFields(logrus.Fields{
		"plate": v.Plate,
		"type":  maintenanceType,
		"date":  cmd.Date.String(),
	}).Info("Corrective maintenance scheduled")

	result := &Result{Occurrences: []models.Occurrence{*inserted}}
	result.View = c.reread(ctx, cmd.View, calendar.MonthOf(cmd.Date), maintenanceType)
	return result, nil
}

// UpdateOccurrence edits a planned occurrence. Fulfilled occurrences are
// immutable.
func (c *Controller) UpdateOccurrence(ctx context.Context, id string, patch models.OccurrencePatch, view View) (*Result, error) {
	if err := validatePatch(&patch); err != nil {
		return nil, err
	}
	current, err := c.plannedOccurrence(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := c.store.UpdateOccurrence(ctx, current.ID, patch)
	c.cache.invalidate()
	if err != nil {
		return nil, fmt.Errorf("update occurrence %s: %w", id, mapStoreErr(err))
	}

	c.publish(ctx, events.Event{
		Kind:         events.OccurrenceUpdated,
		VehicleID:    updated.VehicleID,
		Type:         updated.Type,
		Date:         updated.Date,
		OccurrenceID: updated.ID,
		At:           c.clock.Now(),
	})
	c.log.WithFields(logrus.Fields{
		"occurrence_id": updated.ID,
		"date":          updated.Date.String(),
	}).Info("Occurrence updated")

	result := &Result{Occurrences: []models.Occurrence{*updated}}
	result.View = c.reread(ctx, view, calendar.MonthOf(updated.Date), updated.Type)
	return result, nil
}

// DeleteOccurrence removes a planned occurrence. Fulfilled occurrences are
// immutable.
func (c *Controller) DeleteOccurrence(ctx context.Context, id string, view View) (*Result, error) {
	current, err := c.plannedOccurrence(ctx, id)
	if err != nil {
		return nil, err
	}

	err = c.store.DeleteOccurrence(ctx, current.ID)
	c.cache.invalidate()
	if err != nil {
		return nil, fmt.Errorf("delete occurrence %s: %w", id, mapStoreErr(err))
	}

	c.publish(ctx, events.Event{
		Kind:         events.OccurrenceDeleted,
		VehicleID:    current.VehicleID,
		Type:         current.Type,
		Date:         current.Date,
		OccurrenceID: current.ID,
		At:           c.clock.Now(),
	})
	c.log.WithField("occurrence_id", current.ID).Info("Occurrence deleted")

	result := &Result{Occurrences: []models.Occurrence{*current}}
	result.View = c.reread(ctx, view, calendar.MonthOf(current.Date), current.Type)
	return result, nil
}

// RegisterCompletion records performed maintenance and rolls the vehicle's
// program of that type forward from the completion date.
func (c *Controller) RegisterCompletion(ctx context.Context, cmd CompletionCommand) (*Result, error) {
	maintenanceType, err := requireType(cmd.Type)
	if err != nil {
		return nil, err
	}
	if err := requireDate(cmd.Date); err != nil {
		return nil, err
	}
	if !calendar.AddMonths(cmd.Date, MaxPeriodicityMonths).Valid() {
		return nil, fmt.Errorf("%w: next due date would fall after %d-12-31", ErrValidation, calendar.MaxYear)
	}
	if err := requireNonNegative("odometer", cmd.Odometer); err != nil {
		return nil, err
	}
	if err := requireNonNegative("cost", cmd.Cost); err != nil {
		return nil, err
	}
	vehicles, err := c.resolveVehicles(ctx, []string{cmd.VehicleID})
	if err != nil {
		return nil, err
	}
	v := vehicles[0]

	existing, err := c.store.GetCompletionsInRange(ctx, cmd.Date, cmd.Date, maintenanceType)
	if err != nil {
		return nil, fmt.Errorf("check completions: %w", err)
	}
	for _, e := range existing {
		if e.VehicleID == v.ID && e.Type == maintenanceType && e.Date == cmd.Date {
			return nil, fmt.Errorf("%w: %s %s on %s", ErrAlreadyFulfilled, v.Plate, maintenanceType, cmd.Date)
		}
	}

	rec, err := c.reconciler.Reconcile(ctx, models.Completion{
		VehicleID: v.ID,
		Type:      maintenanceType,
		Date:      cmd.Date,
		Odometer:  cmd.Odometer,
		Cost:      cmd.Cost,
		Notes:     cmd.Notes,
		CreatedAt: c.clock.Now().UTC(),
	})
	c.cache.invalidate()
	if err != nil {
		if rec != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"vehicle_id": v.ID,
				"type":       maintenanceType,
			}).Error("Completion saved but program not rolled forward")
		}
		return nil, err
	}

	event := events.Event{
		Kind:      events.CompletionRegistered,
		VehicleID: v.ID,
		Type:      maintenanceType,
		Date:      cmd.Date,
		At:        c.clock.Now(),
	}
	fields := logrus.Fields{"plate": v.Plate, "type": maintenanceType, "date": cmd.Date.String()}
	if rec.Program != nil {
		event.NextDue = rec.Program.NextDue
		fields["next_due"] = rec.Program.NextDue.String()
	}
	c.publish(ctx, event)
	c.log.WithFields(fields).Info("Completion registered")

	completion := rec.Completion
	result := &Result{Completion: &completion, Program: rec.Program}
	result.View = c.reread(ctx, cmd.View, calendar.MonthOf(cmd.Date), maintenanceType)
	return result, nil
}

// plannedOccurrence loads an occurrence and rejects it when a completion
// already fulfills it.
func (c *Controller) plannedOccurrence(ctx context.Context, id string) (*models.Occurrence, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: occurrence id is required", ErrValidation)
	}
	o, err := c.store.GetOccurrence(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("occurrence %s: %w", id, mapStoreErr(err))
	}
	completions, err := c.store.GetCompletionsInRange(ctx, o.Date, o.Date, o.Type)
	if err != nil {
		return nil, fmt.Errorf("check completions: %w", err)
	}
	for _, done := range completions {
		if done.Fulfills(*o) {
			return nil, fmt.Errorf("%w: %s %s on %s", ErrFulfilled, o.Plate, o.Type, o.Date)
		}
	}
	return o, nil
}

// resolveVehicles loads the given vehicles in request order. Unknown ids
// fail validation.
func (c *Controller) resolveVehicles(ctx context.Context, ids []string) ([]models.Vehicle, error) {
	seen := make(map[string]struct{}, len(ids))
	var unique []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, fmt.Errorf("%w: at least one vehicle is required", ErrValidation)
	}

	found, err := c.store.GetVehicles(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("load vehicles: %w", err)
	}
	byID := make(map[string]models.Vehicle, len(found))
	for _, v := range found {
		byID[v.ID] = v
	}
	vehicles := make([]models.Vehicle, 0, len(unique))
	var missing []string
	for _, id := range unique {
		v, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		vehicles = append(vehicles, v)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: unknown vehicle %s", ErrValidation, strings.Join(missing, ", "))
	}
	return vehicles, nil
}

func (c *Controller) checkNoPrograms(ctx context.Context, vehicles []models.Vehicle, maintenanceType string) error {
	ids := make([]string, len(vehicles))
	plates := make(map[string]string, len(vehicles))
	for i, v := range vehicles {
		ids[i] = v.ID
		plates[v.ID] = v.Plate
	}
	programs, err := c.store.GetMasterPrograms(ctx, ids, maintenanceType)
	if err != nil {
		return fmt.Errorf("load programs: %w", err)
	}
	var conflicts []string
	for _, p := range programs {
		if p.Type == maintenanceType {
			conflicts = append(conflicts, plates[p.VehicleID])
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return fmt.Errorf("%w: %s on %s", ErrProgramExists, maintenanceType, strings.Join(conflicts, ", "))
	}
	return nil
}

// reread loads the calendar scope after a write, bypassing the cache. A
// failed re-read is logged and leaves the result without a view.
func (c *Controller) reread(ctx context.Context, view View, month calendar.Month, maintenanceType string) *MonthView {
	if view.Month.IsZero() {
		view = View{Month: month, Type: maintenanceType}
	}
	key := viewKey{month: view.Month, typ: strings.TrimSpace(view.Type), today: c.Today()}
	v, err := c.fetchMonth(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("month", view.Month.String()).Warn("Failed to reload calendar after write")
		return nil
	}
	return v
}

func (c *Controller) publish(ctx context.Context, e events.Event) {
	if err := c.publisher.Publish(ctx, e); err != nil {
		c.log.WithError(err).WithField("kind", e.Kind).Warn("Failed to publish schedule event")
	}
}

func requireType(maintenanceType string) (string, error) {
	maintenanceType = strings.TrimSpace(maintenanceType)
	if maintenanceType == "" {
		return "", fmt.Errorf("%w: maintenance type is required", ErrValidation)
	}
	return maintenanceType, nil
}

func requireDate(d calendar.Date) error {
	if d.IsZero() {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	if !d.Valid() {
		return fmt.Errorf("%w: %04d-%02d-%02d is not a valid date", ErrValidation, d.Year, int(d.Month), d.Day)
	}
	return nil
}

func requireNonNegative(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if *v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return fmt.Errorf("%w: %s must be a non-negative number", ErrValidation, field)
	}
	return nil
}

func validatePatch(p *models.OccurrencePatch) error {
	if p.IsEmpty() {
		return fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if p.Date != nil {
		if err := requireDate(*p.Date); err != nil {
			return err
		}
	}
	if p.Type != nil {
		t, err := requireType(*p.Type)
		if err != nil {
			return err
		}
		p.Type = &t
	}
	if p.Nature != nil && !models.IsValidNature(*p.Nature) {
		return fmt.Errorf("%w: unknown nature %q", ErrValidation, *p.Nature)
	}
	return nil
}

func mapStoreErr(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
