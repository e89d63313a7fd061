// Package main is the entry point for the tracker API server.
// Its sole responsibility is wiring dependencies together and starting the
// server. No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/pressly/goose/v3"

	"github.com/kairostech/ekco-tracker/backend/internal/config"
	"github.com/kairostech/ekco-tracker/backend/internal/geocode"
	"github.com/kairostech/ekco-tracker/backend/internal/handler"
	"github.com/kairostech/ekco-tracker/backend/internal/middleware"
	"github.com/kairostech/ekco-tracker/backend/internal/repo"
	"github.com/kairostech/ekco-tracker/backend/internal/service"
	"github.com/kairostech/ekco-tracker/backend/internal/store"
	"github.com/kairostech/ekco-tracker/backend/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	// JSON handler writes machine-readable output suitable for log aggregators.
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	// pgxpool manages a pool of Postgres connections.
	// New() does not open connections immediately — the first query does.
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// --- Domain wiring ----------------------------------------------------
	vehicles := repo.NewVehicleRepo(pool)
	ignitions := repo.NewIgnitionRepo(pool)
	positions := repo.NewPositionRepo(pool)

	trips := store.New(time.Duration(cfg.SearchDebounceMs)*time.Millisecond, logger)

	geocoder := geocode.NewClient(geocode.Options{
		LocationIQKey: cfg.LocationIQKey,
		UserAgent:     cfg.GeocoderUserAgent,
		Logger:        logger,
	})

	reconstructs := service.NewReconstructService(ignitions, positions, trips,
		service.ReconstructOptions{
			MinTripDuration: time.Duration(cfg.MinTripDurationSeconds) * time.Second,
			MinPositions:    cfg.MinTripPositions,
		}, logger)
	exports := service.NewExportService(trips, geocoder, logger)

	// --- Router -----------------------------------------------------------
	// Middleware order matters: RequestID first so the logger can pick the ID
	// up from context, Recoverer last so panics in handlers become 500s with
	// a logged request line.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
	r.Use(chimiddleware.Recoverer)

	srv := handler.NewServer(vehicles, reconstructs, exports, positions, trips)
	r.Mount("/", srv.Routes())

	// --- HTTP Server ------------------------------------------------------
	// Read and idle timeouts prevent slowloris and resource exhaustion
	// attacks. WriteTimeout is deliberately left unset: the websocket live
	// stream and the geocoding export both outlive any fixed per-response
	// deadline.
	httpSrv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// runMigrations applies any pending embedded migrations at startup.
// goose needs database/sql, not a pgx pool, so it gets its own short-lived
// connection.
func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}

	results, err := provider.Up(context.Background())
	if err != nil {
		return err
	}
	if len(results) > 0 {
		slog.Info("migrations applied", "count", len(results))
	}
	return nil
}
