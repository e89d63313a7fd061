// Package handler implements the HTTP API for the tracker backend. All
// handlers are methods on Server; they are split into domain-specific files
// (vehicle.go, trip.go, export.go, live.go) but share the same struct so they
// can access its dependencies.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kairostech/ekco-tracker/backend/internal/domain"
	"github.com/kairostech/ekco-tracker/backend/internal/store"
)

// VehicleDirectory defines the vehicle lookups the handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database.
type VehicleDirectory interface {
	List(ctx context.Context) ([]domain.Vehicle, error)
	GetBySerial(ctx context.Context, serial string) (domain.Vehicle, error)
}

// Reconstructor rebuilds the trip set for a vehicle and window.
type Reconstructor interface {
	Reconstruct(ctx context.Context, vehicle domain.Vehicle, start, end time.Time) ([]domain.Trip, error)
	Status() (running bool, percent int)
}

// Exporter turns the visible trip set into CSV or an HTML report.
type Exporter interface {
	BuildRows(ctx context.Context) ([]domain.ExportRow, store.Meta, error)
	CSV(rows []domain.ExportRow) []byte
	HTML(rows []domain.ExportRow, meta store.Meta) ([]byte, error)
	Status() (running bool, percent int)
}

// PositionWatcher feeds the live position stream.
type PositionWatcher interface {
	Latest(ctx context.Context, serial string) (domain.PositionSample, error)
}

// Server holds the handler dependencies. Methods are in domain-specific files
// but all operate on this struct.
type Server struct {
	vehicles     VehicleDirectory
	reconstructs Reconstructor
	exports      Exporter
	positions    PositionWatcher
	trips        *store.Store

	// livePollInterval is how often the websocket stream polls for a fresh
	// position. Overridable so tests don't wait a wall-clock second.
	livePollInterval time.Duration
}

// NewServer constructs the Server with all its dependencies.
func NewServer(
	vehicles VehicleDirectory,
	reconstructs Reconstructor,
	exports Exporter,
	positions PositionWatcher,
	trips *store.Store,
) *Server {
	return &Server{
		vehicles:         vehicles,
		reconstructs:     reconstructs,
		exports:          exports,
		positions:        positions,
		trips:            trips,
		livePollInterval: time.Second,
	}
}

// Routes registers every endpoint on a fresh chi router. Middleware is the
// caller's concern; main.go wraps this router with the shared stack.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)

	r.Get("/vehicles", s.ListVehicles)
	r.Get("/vehicles/{serial}/live", s.LivePositions)

	r.Post("/trips/reconstruct", s.ReconstructTrips)
	r.Get("/trips", s.ListTrips)
	r.Post("/trips/search", s.SearchTrips)
	r.Get("/trips/status", s.PipelineStatus)
	r.Get("/trips/export", s.ExportTrips)

	return r
}

// GetHealth handles GET /healthz.
// It returns HTTP 200 with {"status":"ok"} when the server is running.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
