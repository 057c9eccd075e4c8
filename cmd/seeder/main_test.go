package main

import (
	"context"
	"io"
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
	"github.com/jparedesa-eng/fleet-admin/internal/db"
	"github.com/jparedesa-eng/fleet-admin/internal/schedule"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomPlate(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	plate := regexp.MustCompile(`^[A-Z]{3}-\d{3}$`)
	for i := 0; i < 50; i++ {
		p := randomPlate(rng)
		assert.Regexp(t, plate, p)
		assert.NotContains(t, p, "I")
		assert.NotContains(t, p, "O")
	}
}

func TestRandomVehicle_IsReproducible(t *testing.T) {
	a := randomVehicle(rand.New(rand.NewSource(42)))
	b := randomVehicle(rand.New(rand.NewSource(42)))
	assert.Equal(t, a, b)
	assert.Contains(t, makes[a.Make], a.Model)
	assert.Contains(t, suppliers, a.Supplier)
}

func TestSeed(t *testing.T) {
	logger := log.New()
	logger.SetOutput(io.Discard)
	entry := log.NewEntry(logger)

	ctx := context.Background()
	store, err := db.OpenSQLite(ctx, ":memory:", entry)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(ctx) })

	controller := schedule.NewController(store,
		schedule.WithClock(calendar.FixedClock(time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC))),
		schedule.WithLocation(time.UTC),
		schedule.WithLogger(entry),
	)

	stats, err := seed(ctx, store, controller, rand.New(rand.NewSource(7)), 5, controller.Today())
	require.NoError(t, err)

	perVehicle := 0
	for _, p := range demoPrograms {
		perVehicle += p.Count
	}
	assert.Equal(t, 5, stats.Vehicles)
	assert.Equal(t, 5*len(demoPrograms), stats.Programs)
	assert.Equal(t, 5*perVehicle, stats.Occurrences)

	vehicles, err := store.ListVehicles(ctx, "")
	require.NoError(t, err)
	assert.Len(t, vehicles, 5)

	board, err := controller.ProgramBoard(ctx, "Aceite", "")
	require.NoError(t, err)
	require.Len(t, board, 5)
	for _, row := range board {
		require.NotNil(t, row.Program)
		assert.Equal(t, 3, row.Program.PeriodicityMonths)
		assert.False(t, row.Program.NextDue.Before(calendar.MustParse("2024-02-01")))
	}
}
