package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jparedesa-eng/fleet-admin/internal/auth"
	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
	"github.com/jparedesa-eng/fleet-admin/internal/db"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
	"github.com/jparedesa-eng/fleet-admin/internal/schedule"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

type testServer struct {
	handler http.Handler
	store   *db.SQLiteStore
	auth    *auth.Service
}

func newTestServer(t *testing.T, rateMax int) *testServer {
	t.Helper()
	logger := log.New()
	logger.SetOutput(io.Discard)
	entry := log.NewEntry(logger)

	ctx := context.Background()
	store, err := db.OpenSQLite(ctx, ":memory:", entry)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(ctx) })

	authService := auth.NewService("test-secret", time.Hour)
	controller := schedule.NewController(store,
		schedule.WithClock(calendar.FixedClock(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))),
		schedule.WithLocation(time.UTC),
		schedule.WithLogger(entry),
	)
	return &testServer{
		store: store,
		auth:  authService,
		handler: newRouter(routerDeps{
			auth:      authService,
			users:     store,
			scheduler: controller,
			clock:     clockz.NewFakeClock(),
			rateMax:   rateMax,
			rateEvery: time.Minute,
			log:       entry,
		}),
	}
}

// userToken stores a user with the given role and logs in through the API.
func (s *testServer) userToken(t *testing.T, username string, role models.Role) string {
	t.Helper()
	hash, err := s.auth.HashPassword("password123")
	require.NoError(t, err)
	_, err = s.store.InsertUser(context.Background(), models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         role,
	})
	require.NoError(t, err)

	w := s.do(t, "POST", "/api/auth/login", "", models.LoginRequest{Username: username, Password: "password123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.Token
}

func (s *testServer) do(t *testing.T, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, 100)
	w := s.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t, 100)
	for _, target := range []string{"/api/vehicles", "/api/calendar?month=2024-02", "/api/auth/profile"} {
		w := s.do(t, "GET", target, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
	}
}

func TestRouter_ScheduleAndViewCalendar(t *testing.T) {
	s := newTestServer(t, 100)
	vehicle, err := s.store.InsertVehicle(context.Background(), models.Vehicle{Plate: "ABC-123", Make: "Toyota", Model: "Hilux"})
	require.NoError(t, err)

	planner := s.userToken(t, "planner1", models.RolePlanner)
	viewer := s.userToken(t, "viewer1", models.RoleViewer)
	technician := s.userToken(t, "tech1", models.RoleTechnician)

	cmd := schedule.PreventiveCommand{
		VehicleIDs:        []string{vehicle.ID},
		Type:              "Aceite",
		Start:             calendar.MustParse("2024-01-10"),
		PeriodicityMonths: 3,
		Count:             4,
	}
	w := s.do(t, "POST", "/api/schedules/preventive", viewer, cmd)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, "POST", "/api/schedules/preventive", planner, cmd)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res schedule.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Occurrences, 4)

	w = s.do(t, "POST", "/api/schedules/preventive", planner, cmd)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, "GET", "/api/calendar?month=2024-04&type=Aceite", viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view schedule.MonthView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Len(t, view.Occurrences, 1)
	assert.Equal(t, "2024-04-10", view.Occurrences[0].Date.String())
	assert.Equal(t, schedule.StatusOnTrack, view.Occurrences[0].Status)
	assert.Len(t, view.Days, 30)

	completion := schedule.CompletionCommand{VehicleID: vehicle.ID, Type: "Aceite", Date: calendar.MustParse("2024-01-10")}
	w = s.do(t, "POST", "/api/completions", viewer, completion)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, "POST", "/api/completions", technician, completion)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotNil(t, res.Program)
	assert.Equal(t, "2024-04-10", res.Program.NextDue.String())

	w = s.do(t, "DELETE", "/api/occurrences/"+res.View.Occurrences[0].ID, planner, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "fulfilled occurrences stay put")

	w = s.do(t, "GET", "/api/programs?type=Aceite", viewer, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"next_due":"2024-04-10"`))
}

func TestRouter_RejectsOversizedSchedules(t *testing.T) {
	s := newTestServer(t, 100)
	vehicle, err := s.store.InsertVehicle(context.Background(), models.Vehicle{Plate: "ABC-123", Make: "Toyota", Model: "Hilux"})
	require.NoError(t, err)
	planner := s.userToken(t, "planner1", models.RolePlanner)

	for _, body := range []map[string]interface{}{
		{"vehicle_ids": []string{vehicle.ID}, "type": "Aceite", "start": "2024-01-10", "periodicity_months": 3, "count": 1000000000},
		{"vehicle_ids": []string{vehicle.ID}, "type": "Aceite", "start": "2024-01-10", "periodicity_months": 1200, "count": 99},
	} {
		w := s.do(t, "POST", "/api/schedules/preventive", planner, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	}

	w := s.do(t, "GET", "/api/programs?type=Aceite", planner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"program":null`)
}

func TestRouter_RateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/health", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(t, "GET", "/health", "", nil).Code)
}
