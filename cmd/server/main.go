package main

import (
	"context"
	"database/sql"
	"errors"
	"fleet-tracking-service/internal/adapters/backend"
	"fleet-tracking-service/internal/adapters/cache"
	"fleet-tracking-service/internal/adapters/mapprovider"
	"fleet-tracking-service/internal/adapters/repositories"
	"fleet-tracking-service/internal/api"
	"fleet-tracking-service/internal/config"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/platform/db"
	"fleet-tracking-service/internal/platform/obs"
	"fleet-tracking-service/internal/ports"
	"fleet-tracking-service/internal/services"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// main is the application composition root.
// It wires the fleet backend, map provider and geocode store behind ports,
// mounts the tracker and starts the HTTP server.
func main() {
	obs.InitLogging()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		sqlDB, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal(err)
		}
		defer sqlDB.Close()
	}

	fleetBackend, err := newBackend(cfg, sqlDB)
	if err != nil {
		log.Fatal(err)
	}

	store, closeStore, err := newGeocodeStore(ctx, cfg, sqlDB)
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()

	filters, err := trackerFilters(cfg.Tracking.Filters)
	if err != nil {
		log.Fatal(err)
	}

	tracker := services.NewTracker(fleetBackend, services.Options{
		Filters:         filters,
		AutoRefresh:     cfg.Tracking.AutoRefresh,
		RefreshInterval: time.Duration(cfg.Tracking.RefreshIntervalMS) * time.Millisecond,
		OrdersPageSize:  cfg.Tracking.OrdersPageSize,
		GeocodeStore:    store,
		OnCourierSelected: func(c domain.Courier) {
			log.Printf("courier selected: courier_id=%s vehicle=%s", c.ID, c.Vehicle)
		},
		OnFleetSnapshotRefreshed: func(cs []domain.Courier) {
			log.Printf("fleet refreshed: couriers=%d", len(cs))
		},
	})
	defer tracker.Dispose()

	canvas := mapprovider.NewCanvas()
	loader := mapprovider.Loader(cfg.ORS.APIKey, canvas,
		mapprovider.WithBaseURL(cfg.ORS.BaseURL),
		mapprovider.WithProfile(cfg.ORS.Profile),
		mapprovider.WithCountry(cfg.ORS.Country),
	)

	// A provider failure is terminal for the map but the server still
	// answers, reporting the state on /health.
	if err := tracker.Mount(ctx, loader); err != nil {
		log.Printf("tracker mount failed: err=%v", err)
	}

	router := api.NewRouter(tracker, canvas)

	// WriteTimeout stays 0: the overlay stream is long-lived and sets its own deadlines.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown failed: err=%v", err)
		}
	}()

	log.Printf("Server listening addr=:%s backend=%s geocode_store=%s", cfg.Port, cfg.Backend.Mode, cfg.GeocodeStore)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func newBackend(cfg config.Config, sqlDB *sql.DB) (ports.FleetBackend, error) {
	switch cfg.Backend.Mode {
	case "postgres":
		if sqlDB == nil {
			return nil, errors.New("postgres backend needs DATABASE_URL")
		}
		return repositories.NewPostgresFleetRepository(sqlDB), nil
	case "http":
		return backend.NewHTTPClient(cfg.Backend.URL, cfg.Backend.Token, &http.Client{Timeout: 15 * time.Second}), nil
	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Backend.Mode)
	}
}

func newGeocodeStore(ctx context.Context, cfg config.Config, sqlDB *sql.DB) (ports.GeocodeStore, func(), error) {
	noop := func() {}

	switch cfg.GeocodeStore {
	case "memory":
		return nil, noop, nil
	case "postgres":
		if sqlDB == nil {
			return nil, noop, errors.New("postgres geocode store needs DATABASE_URL")
		}
		return cache.NewPostgresGeocodeCache(sqlDB), noop, nil
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, noop, err
		}
		return cache.NewRedisGeocodeCache(client), func() { client.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown geocode store %q", cfg.GeocodeStore)
	}
}

func trackerFilters(fc config.FiltersConfig) (domain.Filters, error) {
	availability, err := domain.ParseAvailabilityBucket(fc.Availability)
	if err != nil {
		return domain.Filters{}, err
	}
	return domain.Filters{Vehicle: domain.VehicleCategory(fc.VehicleCategory), Availability: availability}, nil
}
