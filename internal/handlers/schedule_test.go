package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
	"github.com/jparedesa-eng/fleet-admin/internal/schedule"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) ListVehicles(ctx context.Context, search string) ([]models.Vehicle, error) {
	args := m.Called(ctx, search)
	vehicles, _ := args.Get(0).([]models.Vehicle)
	return vehicles, args.Error(1)
}

func (m *MockScheduler) AvailableVehicles(ctx context.Context, maintenanceType, search string) ([]models.Vehicle, error) {
	args := m.Called(ctx, maintenanceType, search)
	vehicles, _ := args.Get(0).([]models.Vehicle)
	return vehicles, args.Error(1)
}

func (m *MockScheduler) ProgramBoard(ctx context.Context, maintenanceType, search string) ([]schedule.ProgramStatus, error) {
	args := m.Called(ctx, maintenanceType, search)
	board, _ := args.Get(0).([]schedule.ProgramStatus)
	return board, args.Error(1)
}

func (m *MockScheduler) LoadMonth(ctx context.Context, month calendar.Month, maintenanceType string) (*schedule.MonthView, error) {
	args := m.Called(ctx, month, maintenanceType)
	view, _ := args.Get(0).(*schedule.MonthView)
	return view, args.Error(1)
}

func (m *MockScheduler) SchedulePreventive(ctx context.Context, cmd schedule.PreventiveCommand) (*schedule.Result, error) {
	args := m.Called(ctx, cmd)
	res, _ := args.Get(0).(*schedule.Result)
	return res, args.Error(1)
}

func (m *MockScheduler) ScheduleCorrective(ctx context.Context, cmd schedule.CorrectiveCommand) (*schedule.Result, error) {
	args := m.Called(ctx, cmd)
	res, _ := args.Get(0).(*schedule.Result)
	return res, args.Error(1)
}

func (m *MockScheduler) UpdateOccurrence(ctx context.Context, id string, patch models.OccurrencePatch, view schedule.View) (*schedule.Result, error) {
	args := m.Called(ctx, id, patch, view)
	res, _ := args.Get(0).(*schedule.Result)
	return res, args.Error(1)
}

func (m *MockScheduler) DeleteOccurrence(ctx context.Context, id string, view schedule.View) (*schedule.Result, error) {
	args := m.Called(ctx, id, view)
	res, _ := args.Get(0).(*schedule.Result)
	return res, args.Error(1)
}

func (m *MockScheduler) RegisterCompletion(ctx context.Context, cmd schedule.CompletionCommand) (*schedule.Result, error) {
	args := m.Called(ctx, cmd)
	res, _ := args.Get(0).(*schedule.Result)
	return res, args.Error(1)
}

func newTestScheduleHandler(s Scheduler) *ScheduleHandler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewScheduleHandler(s, logrus.NewEntry(logger))
}

func TestScheduleHandler_Calendar(t *testing.T) {
	feb := calendar.Month{Year: 2024, Month: time.February}

	t.Run("loads the requested month", func(t *testing.T) {
		s := new(MockScheduler)
		s.On("LoadMonth", mock.Anything, feb, "Aceite").Return(&schedule.MonthView{
			Month: feb,
			Type:  "Aceite",
			Today: calendar.MustParse("2024-02-01"),
		}, nil)

		w := httptest.NewRecorder()
		newTestScheduleHandler(s).Calendar(w, httptest.NewRequest("GET", "/api/calendar?month=2024-02&type=Aceite", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), `"month":"2024-02"`)
		assert.Contains(t, w.Body.String(), `"today":"2024-02-01"`)
		s.AssertExpectations(t)
	})

	for _, month := range []string{"", "2024-13", "feb"} {
		t.Run("bad month "+month, func(t *testing.T) {
			s := new(MockScheduler)
			w := httptest.NewRecorder()
			newTestScheduleHandler(s).Calendar(w, httptest.NewRequest("GET", "/api/calendar?month="+month, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			s.AssertNotCalled(t, "LoadMonth", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("wrong method", func(t *testing.T) {
		w := httptest.NewRecorder()
		newTestScheduleHandler(new(MockScheduler)).Calendar(w, httptest.NewRequest("POST", "/api/calendar?month=2024-02", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestScheduleHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: type is required", schedule.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: vehicle v9", schedule.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: ABC-123", schedule.ErrProgramExists), http.StatusConflict},
		{schedule.ErrAlreadyFulfilled, http.StatusConflict},
		{schedule.ErrFulfilled, http.StatusConflict},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			s := new(MockScheduler)
			s.On("SchedulePreventive", mock.Anything, mock.Anything).Return(nil, tt.err)

			body := `{"vehicle_ids":["v1"],"type":"Aceite","start":"2024-01-10","periodicity_months":3,"count":4}`
			w := httptest.NewRecorder()
			newTestScheduleHandler(s).SchedulePreventive(w, httptest.NewRequest("POST", "/api/schedules/preventive", strings.NewReader(body)))

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), tt.err.Error())
			}
		})
	}
}

func TestScheduleHandler_SchedulePreventive(t *testing.T) {
	s := new(MockScheduler)
	want := schedule.PreventiveCommand{
		VehicleIDs:        []string{"v1", "v2"},
		Type:              "Aceite",
		Start:             calendar.MustParse("2024-01-10"),
		PeriodicityMonths: 3,
		Count:             4,
		View:              schedule.View{Month: calendar.Month{Year: 2024, Month: time.January}},
	}
	s.On("SchedulePreventive", mock.Anything, want).Return(&schedule.Result{
		Occurrences: []models.Occurrence{{ID: "o1", VehicleID: "v1", Type: "Aceite", Nature: models.NaturePreventive, Date: want.Start}},
	}, nil)

	body := `{"vehicle_ids":["v1","v2"],"type":"Aceite","start":"2024-01-10","periodicity_months":3,"count":4,"view":{"month":"2024-01","type":""}}`
	w := httptest.NewRecorder()
	newTestScheduleHandler(s).SchedulePreventive(w, httptest.NewRequest("POST", "/api/schedules/preventive", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, w.Code)
	var res schedule.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, "o1", res.Occurrences[0].ID)
	s.AssertExpectations(t)
}

func TestScheduleHandler_RejectsBadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"vehicle_id":`},
		{"unknown field", `{"vehicle_id":"v1","type":"Frenos","date":"2024-03-01","mileage":10}`},
		{"bad date", `{"vehicle_id":"v1","type":"Frenos","date":"01/03/2024"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := new(MockScheduler)
			w := httptest.NewRecorder()
			newTestScheduleHandler(s).ScheduleCorrective(w, httptest.NewRequest("POST", "/api/schedules/corrective", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			s.AssertNotCalled(t, "ScheduleCorrective", mock.Anything, mock.Anything)
		})
	}
}

func TestScheduleHandler_RegisterCompletion(t *testing.T) {
	s := new(MockScheduler)
	s.On("RegisterCompletion", mock.Anything, mock.MatchedBy(func(cmd schedule.CompletionCommand) bool {
		return cmd.VehicleID == "v1" && cmd.Type == "General" && cmd.Date == calendar.MustParse("2024-01-15") &&
			cmd.Odometer != nil && *cmd.Odometer == 45200 && cmd.Cost == nil
	})).Return(&schedule.Result{
		Completion: &models.Completion{ID: "c1", VehicleID: "v1", Type: "General", Date: calendar.MustParse("2024-01-15")},
	}, nil)

	body := `{"vehicle_id":"v1","type":"General","date":"2024-01-15","odometer":45200}`
	w := httptest.NewRecorder()
	newTestScheduleHandler(s).RegisterCompletion(w, httptest.NewRequest("POST", "/api/completions", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"c1"`)
	s.AssertExpectations(t)
}

func TestScheduleHandler_Occurrence(t *testing.T) {
	view := schedule.View{Month: calendar.Month{Year: 2024, Month: time.March}, Type: "Frenos"}

	t.Run("update", func(t *testing.T) {
		s := new(MockScheduler)
		newDate := calendar.MustParse("2024-03-20")
		s.On("UpdateOccurrence", mock.Anything, "o1", models.OccurrencePatch{Date: &newDate}, view).
			Return(&schedule.Result{Occurrences: []models.Occurrence{{ID: "o1", Date: newDate}}}, nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("PUT", "/api/occurrences/o1?month=2024-03&type=Frenos", strings.NewReader(`{"date":"2024-03-20"}`))
		newTestScheduleHandler(s).Occurrence(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		s.AssertExpectations(t)
	})

	t.Run("delete fulfilled", func(t *testing.T) {
		s := new(MockScheduler)
		s.On("DeleteOccurrence", mock.Anything, "o1", view).Return(nil, schedule.ErrFulfilled)

		w := httptest.NewRecorder()
		newTestScheduleHandler(s).Occurrence(w, httptest.NewRequest("DELETE", "/api/occurrences/o1?month=2024-03&type=Frenos", nil))

		assert.Equal(t, http.StatusConflict, w.Code)
		s.AssertExpectations(t)
	})

	t.Run("delete without view", func(t *testing.T) {
		s := new(MockScheduler)
		s.On("DeleteOccurrence", mock.Anything, "o2", schedule.View{}).Return(&schedule.Result{}, nil)

		w := httptest.NewRecorder()
		newTestScheduleHandler(s).Occurrence(w, httptest.NewRequest("DELETE", "/api/occurrences/o2", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		s.AssertExpectations(t)
	})

	rejected := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"missing id", "DELETE", "/api/occurrences/", http.StatusBadRequest},
		{"nested path", "DELETE", "/api/occurrences/o1/extra", http.StatusBadRequest},
		{"bad view month", "DELETE", "/api/occurrences/o1?month=march", http.StatusBadRequest},
		{"wrong method", "GET", "/api/occurrences/o1", http.StatusMethodNotAllowed},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			s := new(MockScheduler)
			w := httptest.NewRecorder()
			newTestScheduleHandler(s).Occurrence(w, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.want, w.Code)
			assert.Empty(t, s.Calls)
		})
	}
}

func TestScheduleHandler_Listings(t *testing.T) {
	s := new(MockScheduler)
	fleet := []models.Vehicle{{ID: "v1", Plate: "ABC-123", Make: "Toyota", Model: "Hilux"}}
	s.On("ListVehicles", mock.Anything, "abc").Return(fleet, nil)
	s.On("AvailableVehicles", mock.Anything, "Aceite", "").Return(fleet, nil)
	s.On("ProgramBoard", mock.Anything, "Aceite", "").Return([]schedule.ProgramStatus{
		{Vehicle: fleet[0], Status: schedule.StatusUnscheduled},
	}, nil)
	h := newTestScheduleHandler(s)

	w := httptest.NewRecorder()
	h.ListVehicles(w, httptest.NewRequest("GET", "/api/vehicles?search=abc", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ABC-123")

	w = httptest.NewRecorder()
	h.AvailableVehicles(w, httptest.NewRequest("GET", "/api/vehicles/available?type=Aceite", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.Programs(w, httptest.NewRequest("GET", "/api/programs?type=Aceite", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"program":null`)

	s.AssertExpectations(t)
}
