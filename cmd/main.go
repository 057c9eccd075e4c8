package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jparedesa-eng/fleet-admin/internal/auth"
	"github.com/jparedesa-eng/fleet-admin/internal/config"
	"github.com/jparedesa-eng/fleet-admin/internal/db"
	"github.com/jparedesa-eng/fleet-admin/internal/events"
	"github.com/jparedesa-eng/fleet-admin/internal/handlers"
	"github.com/jparedesa-eng/fleet-admin/internal/middleware"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
	"github.com/jparedesa-eng/fleet-admin/internal/schedule"
	log "github.com/sirupsen/logrus"
	"github.com/zoobzio/clockz"
)

// routerDeps is everything the HTTP surface is built from.
type routerDeps struct {
	auth       *auth.Service
	users      db.UserCollection
	scheduler  handlers.Scheduler
	clock      clockz.Clock
	rateMax    int
	rateEvery  time.Duration
	trustProxy bool
	log        *log.Entry
}

func newRouter(d routerDeps) http.Handler {
	authHandler := handlers.NewAuthHandler(d.auth, d.users)
	scheduleHandler := handlers.NewScheduleHandler(d.scheduler, d.log.WithField("component", "http"))
	authMiddleware := middleware.NewAuthMiddleware(d.auth)
	rateLimiter := middleware.NewRateLimitMiddleware(d.clock, d.trustProxy)

	can := func(action string, h http.HandlerFunc) http.Handler {
		return authMiddleware.RequirePermission(action)(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/register", authHandler.Register)
	mux.HandleFunc("/api/auth/profile", authHandler.GetProfile)

	mux.Handle("/api/vehicles", can(models.ActionViewSchedule, scheduleHandler.ListVehicles))
	mux.Handle("/api/vehicles/available", can(models.ActionViewSchedule, scheduleHandler.AvailableVehicles))
	mux.Handle("/api/programs", can(models.ActionViewSchedule, scheduleHandler.Programs))
	mux.Handle("/api/calendar", can(models.ActionViewSchedule, scheduleHandler.Calendar))
	mux.Handle("/api/schedules/preventive", can(models.ActionPlanMaintenance, scheduleHandler.SchedulePreventive))
	mux.Handle("/api/schedules/corrective", can(models.ActionPlanMaintenance, scheduleHandler.ScheduleCorrective))
	mux.Handle("/api/occurrences/", can(models.ActionPlanMaintenance, scheduleHandler.Occurrence))
	mux.Handle("/api/completions", can(models.ActionRegisterCompletion, scheduleHandler.RegisterCompletion))

	var h http.Handler = mux
	h = authMiddleware.Authenticate(h)
	h = rateLimiter.RateLimit(d.rateMax, d.rateEvery)(h)
	h = middleware.Logging(d.log.WithField("component", "http"))(h)
	return h
}

func newPublisher(cfg *config.Config) events.Publisher {
	if cfg.MQTTBroker == "" {
		log.Info("No MQTT broker configured, schedule events are not published")
		return events.Nop{}
	}
	pub, err := events.NewMQTTPublisher(events.MQTTConfig{
		Broker:   cfg.MQTTBroker,
		ClientID: cfg.MQTTClientID,
		Topic:    cfg.MQTTTopic,
		QoS:      1,
	})
	if err != nil {
		log.WithError(err).WithField("broker", cfg.MQTTBroker).Warn("MQTT unavailable, schedule events are not published")
		return events.Nop{}
	}
	log.WithFields(log.Fields{"broker": cfg.MQTTBroker, "topic": cfg.MQTTTopic}).Info("Publishing schedule events")
	return pub
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	store, err := db.Open(connectCtx, db.Config{
		Driver:     cfg.StoreDriver,
		MongoURI:   cfg.MongoURI,
		MongoDB:    cfg.MongoDB,
		SQLitePath: cfg.SQLitePath,
	}, log.NewEntry(log.StandardLogger()))
	cancel()
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to close store")
		}
	}()
	log.WithField("driver", cfg.StoreDriver).Info("Store ready")

	publisher := newPublisher(cfg)
	defer publisher.Close()

	controller := schedule.NewController(store,
		schedule.WithLocation(cfg.Location),
		schedule.WithPublisher(publisher),
		schedule.WithLogger(log.WithField("component", "schedule")),
	)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: newRouter(routerDeps{
			auth:       auth.NewService(cfg.JWTSecret, cfg.JWTExpiry),
			users:      store,
			scheduler:  controller,
			clock:      clockz.RealClock,
			rateMax:    cfg.RateLimitRequests,
			rateEvery:  cfg.RateLimitWindow,
			trustProxy: cfg.TrustProxy,
			log:        log.NewEntry(log.StandardLogger()),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}
