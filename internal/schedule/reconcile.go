package schedule

import (
	"context"
	"fmt"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
	"github.com/jparedesa-eng/fleet-admin/internal/db"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
)

type reconcileStore interface {
	db.ProgramCollection
	db.CompletionCollection
}

// Reconciler records completions and rolls the matching master program
// forward.
type Reconciler struct {
	store reconcileStore
}

func NewReconciler(store reconcileStore) *Reconciler {
	return &Reconciler{store: store}
}

// Reconciliation is what a completion changed.
type Reconciliation struct {
	Completion models.Completion
	// Program is the rolled-forward program, nil when the vehicle has no
	// program of the completed type.
	Program *models.MasterProgram
}

// NextDue is the due date that follows a service on completed.
func NextDue(completed calendar.Date, periodicityMonths int) calendar.Date {
	return calendar.AddMonths(completed, periodicityMonths)
}

// Reconcile stores the completion, then moves the program's next due date
// to one period after the completion date. The two writes are not atomic:
// a failed program write leaves the completion stored.
func (r *Reconciler) Reconcile(ctx context.Context, c models.Completion) (*Reconciliation, error) {
	inserted, err := r.store.InsertCompletion(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	out := &Reconciliation{Completion: *inserted}

	programs, err := r.store.GetMasterPrograms(ctx, []string{c.VehicleID}, c.Type)
	if err != nil {
		return out, fmt.Errorf("load program: %w", err)
	}
	var program *models.MasterProgram
	for i := range programs {
		if programs[i].VehicleID == c.VehicleID && programs[i].Type == c.Type {
			program = &programs[i]
			break
		}
	}
	if program == nil {
		return out, nil
	}

	next := NextDue(c.Date, program.PeriodicityMonths)
	last := c.Date
	if err := r.store.UpsertMasterProgram(ctx, models.ProgramUpsert{
		VehicleID:         program.VehicleID,
		Type:              program.Type,
		PeriodicityMonths: program.PeriodicityMonths,
		NextDue:           &next,
		LastService:       &last,
	}); err != nil {
		return out, fmt.Errorf("roll program forward: %w", err)
	}
	program.NextDue = &next
	program.LastService = &last
	out.Program = program
	return out, nil
}
