package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairostech/ekco-tracker/backend/internal/domain"
	"github.com/kairostech/ekco-tracker/backend/internal/handler"
	"github.com/kairostech/ekco-tracker/backend/internal/store"
)

// The mocks below are hand-written test doubles for the handler's consumer
// interfaces. Each method is a function field — set only the ones your test
// needs; an unset field that gets called panics, which is a test bug anyway.

type mockVehicleDirectory struct {
	list        func(ctx context.Context) ([]domain.Vehicle, error)
	getBySerial func(ctx context.Context, serial string) (domain.Vehicle, error)
}

func (m *mockVehicleDirectory) List(ctx context.Context) ([]domain.Vehicle, error) {
	return m.list(ctx)
}
func (m *mockVehicleDirectory) GetBySerial(ctx context.Context, serial string) (domain.Vehicle, error) {
	return m.getBySerial(ctx, serial)
}

type mockReconstructor struct {
	reconstruct func(ctx context.Context, vehicle domain.Vehicle, start, end time.Time) ([]domain.Trip, error)
	status      func() (bool, int)
}

func (m *mockReconstructor) Reconstruct(ctx context.Context, vehicle domain.Vehicle, start, end time.Time) ([]domain.Trip, error) {
	return m.reconstruct(ctx, vehicle, start, end)
}
func (m *mockReconstructor) Status() (bool, int) { return m.status() }

type mockExporter struct {
	buildRows func(ctx context.Context) ([]domain.ExportRow, store.Meta, error)
	csv       func(rows []domain.ExportRow) []byte
	html      func(rows []domain.ExportRow, meta store.Meta) ([]byte, error)
	status    func() (bool, int)
}

func (m *mockExporter) BuildRows(ctx context.Context) ([]domain.ExportRow, store.Meta, error) {
	return m.buildRows(ctx)
}
func (m *mockExporter) CSV(rows []domain.ExportRow) []byte { return m.csv(rows) }
func (m *mockExporter) HTML(rows []domain.ExportRow, meta store.Meta) ([]byte, error) {
	return m.html(rows, meta)
}
func (m *mockExporter) Status() (bool, int) { return m.status() }

type mockPositionWatcher struct {
	latest func(ctx context.Context, serial string) (domain.PositionSample, error)
}

func (m *mockPositionWatcher) Latest(ctx context.Context, serial string) (domain.PositionSample, error) {
	return m.latest(ctx, serial)
}

// compile-time checks: mocks must satisfy the handler interfaces.
var (
	_ handler.VehicleDirectory = (*mockVehicleDirectory)(nil)
	_ handler.Reconstructor    = (*mockReconstructor)(nil)
	_ handler.Exporter         = (*mockExporter)(nil)
	_ handler.PositionWatcher  = (*mockPositionWatcher)(nil)
)

// ---- fixtures --------------------------------------------------------------

func fixtureVehicle() domain.Vehicle {
	return domain.Vehicle{Model: "Model X", Plate: "ABC123", DeviceSerial: "SER123"}
}

func fixtureTrip(id string, startMs int64) domain.Trip {
	return domain.Trip{
		ID:              id,
		DeviceSerial:    "SER123",
		StartMs:         startMs,
		EndMs:           startMs + 180000,
		DurationMinutes: 3,
		DistanceKm:      5.25,
		Positions:       []domain.TripPoint{{Latitude: 1, Longitude: 1, TimestampMs: startMs}},
	}
}

type serverDeps struct {
	vehicles     *mockVehicleDirectory
	reconstructs *mockReconstructor
	exports      *mockExporter
	positions    *mockPositionWatcher
	trips        *store.Store
}

// newTestServer builds a Server over mocks with sensible defaults; tests
// override individual fields before firing requests.
func newTestServer() (*handler.Server, *serverDeps) {
	deps := &serverDeps{
		vehicles: &mockVehicleDirectory{
			getBySerial: func(_ context.Context, serial string) (domain.Vehicle, error) {
				v := fixtureVehicle()
				if serial != v.DeviceSerial {
					return domain.Vehicle{}, domain.ErrNotFound
				}
				return v, nil
			},
		},
		reconstructs: &mockReconstructor{
			status: func() (bool, int) { return false, 0 },
		},
		exports: &mockExporter{
			status: func() (bool, int) { return false, 0 },
		},
		positions: &mockPositionWatcher{},
		trips:     store.New(0, nil),
	}
	srv := handler.NewServer(deps.vehicles, deps.reconstructs, deps.exports, deps.positions, deps.trips)
	return srv, deps
}

func doRequest(t *testing.T, srv *handler.Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code, body.Error.Message
}

// ---- health ----------------------------------------------------------------

// TestGetHealth_returns200WithOKStatus verifies that GET /healthz returns
// HTTP 200 and a JSON body of {"status":"ok"}.
func TestGetHealth_returns200WithOKStatus(t *testing.T) {
	srv, _ := newTestServer()

	rec := doRequest(t, srv, http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

// ---- vehicles --------------------------------------------------------------

func TestListVehicles_ReturnsDisplayNames(t *testing.T) {
	srv, deps := newTestServer()
	deps.vehicles.list = func(_ context.Context) ([]domain.Vehicle, error) {
		return []domain.Vehicle{fixtureVehicle()}, nil
	}

	rec := doRequest(t, srv, http.MethodGet, "/vehicles", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []struct {
			DeviceSerial string `json:"device_serial"`
			Name         string `json:"name"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "SER123", body.Data[0].DeviceSerial)
	assert.Equal(t, "Model X - ABC123", body.Data[0].Name)
}

// ---- reconstruct -----------------------------------------------------------

func TestReconstructTrips_DefaultWindow(t *testing.T) {
	srv, deps := newTestServer()

	var gotStart, gotEnd time.Time
	deps.reconstructs.reconstruct = func(_ context.Context, vehicle domain.Vehicle, start, end time.Time) ([]domain.Trip, error) {
		gotStart, gotEnd = start, end
		trips := []domain.Trip{fixtureTrip("trip_1", 1000)}
		deps.trips.ReplaceAll(trips, store.Meta{VehicleName: vehicle.Name(), RangeStart: start, RangeEnd: end})
		return trips, nil
	}

	rec := doRequest(t, srv, http.MethodPost, "/trips/reconstruct",
		`{"device_serial":"SER123"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7*24*time.Hour, gotEnd.Sub(gotStart), "default window spans seven whole days")
	assert.Equal(t, 0, gotStart.Hour(), "window is day-aligned")

	var body struct {
		Data       []domain.Trip `json:"data"`
		TotalCount int           `json:"total_count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "trip_1", body.Data[0].ID)
	assert.Equal(t, 1, body.TotalCount)
}

func TestReconstructTrips_ExplicitWindowPassedThrough(t *testing.T) {
	srv, deps := newTestServer()

	var gotStart, gotEnd time.Time
	deps.reconstructs.reconstruct = func(_ context.Context, _ domain.Vehicle, start, end time.Time) ([]domain.Trip, error) {
		gotStart, gotEnd = start, end
		return nil, nil
	}

	rec := doRequest(t, srv, http.MethodPost, "/trips/reconstruct",
		`{"device_serial":"SER123","start":"2026-03-01T00:00:00Z","end":"2026-03-08T00:00:00Z"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), gotStart.UTC())
	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), gotEnd.UTC())
}

func TestReconstructTrips_MissingSerial_422(t *testing.T) {
	srv, _ := newTestServer()

	rec := doRequest(t, srv, http.MethodPost, "/trips/reconstruct", `{}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	code, message := decodeError(t, rec)
	assert.Equal(t, "validation_error", code)
	assert.Equal(t, "device_serial is required", message)
}

func TestReconstructTrips_UnknownVehicle_404(t *testing.T) {
	srv, _ := newTestServer()

	rec := doRequest(t, srv, http.MethodPost, "/trips/reconstruct",
		`{"device_serial":"NOPE"}`)

	require.Equal(t, http.StatusNotFound, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "not_found", code)
}

func TestReconstructTrips_Busy_409(t *testing.T) {
	srv, deps := newTestServer()
	deps.reconstructs.reconstruct = func(_ context.Context, _ domain.Vehicle, _, _ time.Time) ([]domain.Trip, error) {
		return nil, domain.ErrBusy
	}

	rec := doRequest(t, srv, http.MethodPost, "/trips/reconstruct",
		`{"device_serial":"SER123"}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "busy", code)
}

// TestReconstructTrips_ClearsSearch verifies that a new reconstruction starts
// from an unfiltered view even when a search was active.
func TestReconstructTrips_ClearsSearch(t *testing.T) {
	srv, deps := newTestServer()
	deps.trips.ReplaceAll([]domain.Trip{fixtureTrip("old", 1000)}, store.Meta{})
	deps.trips.SetSearchText("no-match")
	require.Empty(t, deps.trips.VisibleTrips())

	deps.reconstructs.reconstruct = func(_ context.Context, _ domain.Vehicle, _, _ time.Time) ([]domain.Trip, error) {
		trips := []domain.Trip{fixtureTrip("new", 2000)}
		deps.trips.ReplaceAll(trips, store.Meta{})
		return trips, nil
	}

	rec := doRequest(t, srv, http.MethodPost, "/trips/reconstruct",
		`{"device_serial":"SER123"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		SearchText string `json:"search_text"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Empty(t, body.SearchText)
	assert.Len(t, deps.trips.VisibleTrips(), 1)
}

// TestReconstructTrips_RefusedRunKeepsSearch verifies that a request refused
// while another run is in flight does not disturb the user's active filter;
// the in-flight operation wins outright.
func TestReconstructTrips_RefusedRunKeepsSearch(t *testing.T) {
	srv, deps := newTestServer()
	deps.trips.ReplaceAll([]domain.Trip{fixtureTrip("old", 1000)}, store.Meta{})
	deps.trips.SetSearchText("no-match")
	require.Empty(t, deps.trips.VisibleTrips())

	deps.reconstructs.reconstruct = func(_ context.Context, _ domain.Vehicle, _, _ time.Time) ([]domain.Trip, error) {
		return nil, domain.ErrBusy
	}

	rec := doRequest(t, srv, http.MethodPost, "/trips/reconstruct",
		`{"device_serial":"SER123"}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no-match", deps.trips.SearchText())
	assert.Empty(t, deps.trips.VisibleTrips(), "filter must stay applied")
}

// ---- list and search -------------------------------------------------------

func TestListTrips_ReflectsSearchFilter(t *testing.T) {
	srv, deps := newTestServer()

	far := fixtureTrip("far", 1000)
	far.DistanceKm = 42
	near := fixtureTrip("near", 2000)
	near.DistanceKm = 1
	deps.trips.ReplaceAll([]domain.Trip{far, near}, store.Meta{})

	rec := doRequest(t, srv, http.MethodPost, "/trips/search", `{"query":"42"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/trips", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data       []domain.Trip `json:"data"`
		TotalCount int           `json:"total_count"`
		SearchText string        `json:"search_text"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "far", body.Data[0].ID)
	assert.Equal(t, 2, body.TotalCount, "total counts the unfiltered set")
	assert.Equal(t, "42", body.SearchText)
}

// ---- status ----------------------------------------------------------------

func TestPipelineStatus(t *testing.T) {
	srv, deps := newTestServer()
	deps.reconstructs.status = func() (bool, int) { return true, 40 }
	deps.exports.status = func() (bool, int) { return false, 100 }

	rec := doRequest(t, srv, http.MethodGet, "/trips/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]struct {
		Running bool `json:"running"`
		Percent int  `json:"percent"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body["reconstruction"].Running)
	assert.Equal(t, 40, body["reconstruction"].Percent)
	assert.False(t, body["export"].Running)
	assert.Equal(t, 100, body["export"].Percent)
}

// ---- export ----------------------------------------------------------------

func TestExportTrips_CSV(t *testing.T) {
	srv, deps := newTestServer()
	deps.exports.buildRows = func(_ context.Context) ([]domain.ExportRow, store.Meta, error) {
		return []domain.ExportRow{{Vehicle: "Model X - ABC123"}}, store.Meta{}, nil
	}
	deps.exports.csv = func(rows []domain.ExportRow) []byte {
		require.Len(t, rows, 1)
		return []byte("Vehicle\n\"Model X - ABC123\"")
	}

	rec := doRequest(t, srv, http.MethodGet, "/trips/export?format=csv", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "trips_export_")
	assert.Contains(t, rec.Body.String(), "Model X - ABC123")
}

func TestExportTrips_PDFServesHTMLReport(t *testing.T) {
	srv, deps := newTestServer()
	deps.exports.buildRows = func(_ context.Context) ([]domain.ExportRow, store.Meta, error) {
		return []domain.ExportRow{{}}, store.Meta{VehicleName: "Model X - ABC123"}, nil
	}
	deps.exports.html = func(_ []domain.ExportRow, meta store.Meta) ([]byte, error) {
		return []byte("<!DOCTYPE html><title>Vehicle Trips Report</title>"), nil
	}

	rec := doRequest(t, srv, http.MethodGet, "/trips/export?format=pdf", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "trips_report_")
	assert.Contains(t, rec.Body.String(), "Vehicle Trips Report")
}

func TestExportTrips_NoData_422(t *testing.T) {
	srv, deps := newTestServer()
	deps.exports.buildRows = func(_ context.Context) ([]domain.ExportRow, store.Meta, error) {
		return nil, store.Meta{}, domain.ErrNoData
	}

	rec := doRequest(t, srv, http.MethodGet, "/trips/export", "")

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	code, _ := decodeError(t, rec)
	assert.Equal(t, "no_data", code)
}

func TestExportTrips_UnknownFormat_422(t *testing.T) {
	srv, deps := newTestServer()
	deps.exports.buildRows = func(_ context.Context) ([]domain.ExportRow, store.Meta, error) {
		return []domain.ExportRow{{}}, store.Meta{}, nil
	}

	rec := doRequest(t, srv, http.MethodGet, "/trips/export?format=xlsx", "")

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	code, message := decodeError(t, rec)
	assert.Equal(t, "validation_error", code)
	assert.Equal(t, "format must be csv or pdf", message)
}
