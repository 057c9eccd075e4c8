package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
	"github.com/jparedesa-eng/fleet-admin/internal/schedule"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// Scheduler is the scheduling API the HTTP layer exposes.
type Scheduler interface {
	ListVehicles(ctx context.Context, search string) ([]models.Vehicle, error)
	AvailableVehicles(ctx context.Context, maintenanceType, search string) ([]models.Vehicle, error)
	ProgramBoard(ctx context.Context, maintenanceType, search string) ([]schedule.ProgramStatus, error)
	LoadMonth(ctx context.Context, month calendar.Month, maintenanceType string) (*schedule.MonthView, error)
	SchedulePreventive(ctx context.Context, cmd schedule.PreventiveCommand) (*schedule.Result, error)
	ScheduleCorrective(ctx context.Context, cmd schedule.CorrectiveCommand) (*schedule.Result, error)
	UpdateOccurrence(ctx context.Context, id string, patch models.OccurrencePatch, view schedule.View) (*schedule.Result, error)
	DeleteOccurrence(ctx context.Context, id string, view schedule.View) (*schedule.Result, error)
	RegisterCompletion(ctx context.Context, cmd schedule.CompletionCommand) (*schedule.Result, error)
}

// ScheduleHandler serves vehicles, programs, occurrences, completions and
// the calendar.
type ScheduleHandler struct {
	scheduler Scheduler
	log       *logrus.Entry
}

func NewScheduleHandler(scheduler Scheduler, log *logrus.Entry) *ScheduleHandler {
	if log == nil {
		log = logrus.WithField("component", "http")
	}
	return &ScheduleHandler{scheduler: scheduler, log: log}
}

// ListVehicles handles GET /api/vehicles?search=
func (h *ScheduleHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	vehicles, err := h.scheduler.ListVehicles(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// AvailableVehicles handles GET /api/vehicles/available?type=&search=
func (h *ScheduleHandler) AvailableVehicles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	vehicles, err := h.scheduler.AvailableVehicles(r.Context(), q.Get("type"), q.Get("search"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// Programs handles GET /api/programs?type=&search=
func (h *ScheduleHandler) Programs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	board, err := h.scheduler.ProgramBoard(r.Context(), q.Get("type"), q.Get("search"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// Calendar handles GET /api/calendar?month=YYYY-MM&type=
func (h *ScheduleHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	month, err := calendar.ParseMonth(q.Get("month"))
	if err != nil {
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return
	}
	view, err := h.scheduler.LoadMonth(r.Context(), month, q.Get("type"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SchedulePreventive handles POST /api/schedules/preventive
func (h *ScheduleHandler) SchedulePreventive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var cmd schedule.PreventiveCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	res, err := h.scheduler.SchedulePreventive(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ScheduleCorrective handles POST /api/schedules/corrective
func (h *ScheduleHandler) ScheduleCorrective(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var cmd schedule.CorrectiveCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	res, err := h.scheduler.ScheduleCorrective(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Occurrence handles PUT and DELETE /api/occurrences/{id}?month=&type=
func (h *ScheduleHandler) Occurrence(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/occurrences/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "Occurrence id required", http.StatusBadRequest)
		return
	}
	view, err := viewFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var res *schedule.Result
	switch r.Method {
	case http.MethodPut:
		var patch models.OccurrencePatch
		if !decodeBody(w, r, &patch) {
			return
		}
		res, err = h.scheduler.UpdateOccurrence(r.Context(), id, patch, view)
	case http.MethodDelete:
		res, err = h.scheduler.DeleteOccurrence(r.Context(), id, view)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RegisterCompletion handles POST /api/completions
func (h *ScheduleHandler) RegisterCompletion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var cmd schedule.CompletionCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	res, err := h.scheduler.RegisterCompletion(r.Context(), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func viewFromQuery(r *http.Request) (schedule.View, error) {
	q := r.URL.Query()
	var view schedule.View
	if m := q.Get("month"); m != "" {
		month, err := calendar.ParseMonth(m)
		if err != nil {
			return schedule.View{}, errors.New("month must be YYYY-MM")
		}
		view.Month = month
	}
	view.Type = q.Get("type")
	return view, nil
}

// decodeBody reads a JSON body into v and answers 400 when it cannot.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps scheduling errors to status codes. Anything unexpected
// is logged and hidden behind a 500.
func (h *ScheduleHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, schedule.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, schedule.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, schedule.ErrProgramExists),
		errors.Is(err, schedule.ErrFulfilled),
		errors.Is(err, schedule.ErrAlreadyFulfilled):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("Schedule request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
