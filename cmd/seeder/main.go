package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
	"github.com/jparedesa-eng/fleet-admin/internal/config"
	"github.com/jparedesa-eng/fleet-admin/internal/db"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
	"github.com/jparedesa-eng/fleet-admin/internal/schedule"
	log "github.com/sirupsen/logrus"
)

var makes = map[string][]string{
	"Toyota":     {"Hilux", "Land Cruiser", "Corolla"},
	"Nissan":     {"Frontier", "Navara", "X-Trail"},
	"Mitsubishi": {"L200", "Montero Sport"},
	"Ford":       {"Ranger", "Transit"},
	"Hyundai":    {"H-1", "Tucson"},
}

var suppliers = []string{"Taller Central", "Servicios Norte", "AutoMant SAC"}

// demoPrograms are the preventive plans every seeded vehicle receives.
var demoPrograms = []struct {
	Type              string
	PeriodicityMonths int
	Count             int
}{
	{Type: "Aceite", PeriodicityMonths: 3, Count: 4},
	{Type: "General", PeriodicityMonths: 6, Count: 2},
	{Type: "Llantas", PeriodicityMonths: 12, Count: 1},
}

const plateLetters = "ABCDEFGHJKLMNPRSTUVWXYZ"

func randomPlate(rng *rand.Rand) string {
	b := make([]byte, 3)
	for i := range b {
		b[i] = plateLetters[rng.Intn(len(plateLetters))]
	}
	return fmt.Sprintf("%s-%03d", b, rng.Intn(1000))
}

func randomVehicle(rng *rand.Rand) models.Vehicle {
	names := make([]string, 0, len(makes))
	for name := range makes {
		names = append(names, name)
	}
	sort.Strings(names)
	vehicleMake := names[rng.Intn(len(names))]
	modelNames := makes[vehicleMake]
	return models.Vehicle{
		Plate:    randomPlate(rng),
		Make:     vehicleMake,
		Model:    modelNames[rng.Intn(len(modelNames))],
		Supplier: suppliers[rng.Intn(len(suppliers))],
	}
}

type seedStats struct {
	Vehicles    int
	Programs    int
	Occurrences int
}

// seed inserts fleetSize vehicles and schedules the demo programs starting
// within four weeks of start. Plates are unique within one run.
func seed(ctx context.Context, store db.VehicleCollection, scheduler *schedule.Controller, rng *rand.Rand, fleetSize int, start calendar.Date) (seedStats, error) {
	var stats seedStats
	var ids []string
	seen := map[string]bool{}
	for len(ids) < fleetSize {
		v := randomVehicle(rng)
		if seen[v.Plate] {
			continue
		}
		seen[v.Plate] = true
		created, err := store.InsertVehicle(ctx, v)
		if err != nil {
			return stats, fmt.Errorf("insert vehicle %s: %w", v.Plate, err)
		}
		ids = append(ids, created.ID)
		stats.Vehicles++
		log.WithFields(log.Fields{
			"vehicle_id": created.ID,
			"plate":      created.Plate,
			"make":       created.Make,
			"model":      created.Model,
		}).Info("Created vehicle")
	}

	for _, id := range ids {
		for _, p := range demoPrograms {
			res, err := scheduler.SchedulePreventive(ctx, schedule.PreventiveCommand{
				VehicleIDs:        []string{id},
				Type:              p.Type,
				Start:             start.AddDays(rng.Intn(28)),
				PeriodicityMonths: p.PeriodicityMonths,
				Count:             p.Count,
				Notes:             "demo program",
			})
			if errors.Is(err, schedule.ErrProgramExists) {
				log.WithFields(log.Fields{"vehicle_id": id, "type": p.Type}).Warn("Program exists, skipping")
				continue
			}
			if err != nil {
				return stats, fmt.Errorf("schedule %s for %s: %w", p.Type, id, err)
			}
			stats.Programs++
			stats.Occurrences += len(res.Occurrences)
		}
	}
	return stats, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ConfigureLogging()

	fleetSize := 10
	if val := os.Getenv("FLEET_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			fleetSize = n
		}
	}
	seedValue := time.Now().UnixNano()
	if val := os.Getenv("SEED"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			seedValue = n
		}
	}

	ctx := context.Background()
	store, err := db.Open(ctx, db.Config{
		Driver:     cfg.StoreDriver,
		MongoURI:   cfg.MongoURI,
		MongoDB:    cfg.MongoDB,
		SQLitePath: cfg.SQLitePath,
	}, log.NewEntry(log.StandardLogger()))
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close(ctx)

	controller := schedule.NewController(store,
		schedule.WithLocation(cfg.Location),
		schedule.WithLogger(log.WithField("component", "seeder")),
	)

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"driver":     cfg.StoreDriver,
		"seed":       seedValue,
	}).Info("Seeding demo fleet")

	stats, err := seed(ctx, store, controller, rand.New(rand.NewSource(seedValue)), fleetSize, controller.Today())
	if err != nil {
		log.WithError(err).Fatal("Seeding failed")
	}
	log.WithFields(log.Fields{
		"vehicles":    stats.Vehicles,
		"programs":    stats.Programs,
		"occurrences": stats.Occurrences,
	}).Info("Seeding completed")
}
