package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kairostech/ekco-tracker/backend/internal/domain"
	"github.com/kairostech/ekco-tracker/backend/internal/geocode"
	"github.com/kairostech/ekco-tracker/backend/internal/store"
)

// csvHeader defines the column names written as the first row of any CSV
// export. The order matches the report table.
var csvHeader = []string{
	"Vehicle", "Start Date", "End Date", "Start Location", "End Location",
	"Distance Travelled", "Duration",
	"Start Latitude", "Start Longitude", "End Latitude", "End Longitude",
}

// ExportService turns the currently visible trips into export rows and
// serializes them as CSV or a printable HTML report. Address resolution is
// sequential per trip — deliberate backpressure for rate-limited geocoders.
//
// Only one export may run at a time; a second request gets domain.ErrBusy.
type ExportService struct {
	trips    *store.Store
	resolver geocode.Resolver
	log      *slog.Logger

	// now is swappable so tests can pin the "Generated on" timestamp.
	now func() time.Time

	running  atomic.Bool
	progress atomic.Int64
}

// NewExportService constructs an ExportService over the given store and
// geocoder.
func NewExportService(trips *store.Store, resolver geocode.Resolver, log *slog.Logger) *ExportService {
	if log == nil {
		log = slog.Default()
	}
	return &ExportService{trips: trips, resolver: resolver, log: log, now: time.Now}
}

// BuildRows resolves addresses for every visible trip and returns the export
// rows in visible (newest-first) order, along with the provenance of the set.
//
// An empty visible set is rejected with domain.ErrNoData before any external
// call is made. A geocoder failure for one trip degrades that trip's
// addresses to formatted coordinates; it never aborts the export.
func (s *ExportService) BuildRows(ctx context.Context) ([]domain.ExportRow, store.Meta, error) {
	trips := s.trips.VisibleTrips()
	meta := s.trips.Meta()

	if len(trips) == 0 {
		return nil, store.Meta{}, fmt.Errorf("service.ExportService.BuildRows: %w", domain.ErrNoData)
	}

	if !s.running.CompareAndSwap(false, true) {
		s.log.Info("export already in progress, ignoring request")
		return nil, store.Meta{}, domain.ErrBusy
	}
	defer s.running.Store(false)

	s.progress.Store(0)

	vehicle := meta.VehicleName
	if vehicle == "" {
		vehicle = "Unknown Vehicle"
	}

	rows := make([]domain.ExportRow, 0, len(trips))
	for i, trip := range trips {
		if len(trip.Positions) == 0 {
			continue // store guarantees this never happens; belt and braces
		}

		first := trip.Positions[0]
		last := trip.Positions[len(trip.Positions)-1]

		// One trip at a time, one endpoint at a time: free geocoders
		// throttle aggressively.
		startAddr := s.resolver.Resolve(ctx, first.Latitude, first.Longitude)
		endAddr := s.resolver.Resolve(ctx, last.Latitude, last.Longitude)

		rows = append(rows, domain.ExportRow{
			Vehicle:           vehicle,
			StartDate:         domain.FormatDisplayTime(trip.StartTime()),
			EndDate:           domain.FormatDisplayTime(trip.EndTime()),
			StartAddress:      startAddr.Address,
			EndAddress:        endAddr.Address,
			DistanceTravelled: formatFloat(trip.DistanceKm) + " km",
			Duration:          strconv.Itoa(trip.DurationMinutes) + " min",
			StartLatitude:     first.Latitude,
			StartLongitude:    first.Longitude,
			EndLatitude:       last.Latitude,
			EndLongitude:      last.Longitude,
		})

		s.progress.Store(int64(math.Round(float64(i+1) / float64(len(trips)) * 100)))
	}

	return rows, meta, nil
}

// Status reports whether an export is running and its progress as a 0–100
// percentage.
func (s *ExportService) Status() (running bool, percent int) {
	return s.running.Load(), int(s.progress.Load())
}

// CSV serializes rows in the application's minimal CSV dialect: every string
// field wrapped in double quotes, numeric coordinates bare, no embedded-quote
// escaping. Downstream consumers of these files expect this exact shape, so
// encoding/csv (which escapes quotes by doubling) is intentionally not used.
func (s *ExportService) CSV(rows []domain.ExportRow) []byte {
	var b strings.Builder
	b.WriteString(strings.Join(csvHeader, ","))

	for _, r := range rows {
		fields := []string{
			quote(r.Vehicle),
			quote(r.StartDate),
			quote(r.EndDate),
			quote(r.StartAddress),
			quote(r.EndAddress),
			quote(r.DistanceTravelled),
			quote(r.Duration),
			formatFloat(r.StartLatitude),
			formatFloat(r.StartLongitude),
			formatFloat(r.EndLatitude),
			formatFloat(r.EndLongitude),
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(fields, ","))
	}

	return []byte(b.String())
}

func quote(s string) string { return `"` + s + `"` }

// formatFloat renders a float the way the export surface expects: no trailing
// zeros, no exponent, "0" for zero.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// reportData feeds the HTML report template.
type reportData struct {
	GeneratedOn string
	Vehicle     string
	TotalTrips  int
	DateRange   string
	Rows        []reportRow
}

// reportRow is an ExportRow with coordinates pre-formatted for display.
type reportRow struct {
	domain.ExportRow
	StartLat string
	StartLon string
	EndLat   string
	EndLon   string
}

// HTML renders rows as a single self-contained document: title, summary
// block, and one table row per trip. The document is handed to an external
// print-to-PDF capability; this layer only guarantees well-formed HTML.
func (s *ExportService) HTML(rows []domain.ExportRow, meta store.Meta) ([]byte, error) {
	vehicle := meta.VehicleName
	if vehicle == "" {
		vehicle = "Unknown Vehicle"
	}

	data := reportData{
		GeneratedOn: s.now().Format("1/2/2006, 3:04:05 PM"),
		Vehicle:     vehicle,
		TotalTrips:  len(rows),
		DateRange: meta.RangeStart.Format("1/2/2006") + " to " +
			meta.RangeEnd.Format("1/2/2006"),
	}
	for _, r := range rows {
		data.Rows = append(data.Rows, reportRow{
			ExportRow: r,
			StartLat:  fmt.Sprintf("%.6f", r.StartLatitude),
			StartLon:  fmt.Sprintf("%.6f", r.StartLongitude),
			EndLat:    fmt.Sprintf("%.6f", r.EndLatitude),
			EndLon:    fmt.Sprintf("%.6f", r.EndLongitude),
		})
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("service.ExportService.HTML: %w", err)
	}
	return buf.Bytes(), nil
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Vehicle Trips Report</title>
    <style>
      body { font-family: Arial, sans-serif; margin: 20px; color: #333; }
      h1 { color: #3b82f6; border-bottom: 2px solid #3b82f6; padding-bottom: 10px; margin: 0 0 20px 0; }
      .summary { background: #f8fafc; padding: 15px; border-radius: 8px; margin-bottom: 20px; }
      table { width: 100%; border-collapse: collapse; margin-top: 10px; font-size: 10px; }
      th, td { border: 1px solid #e2e8f0; padding: 6px; text-align: left; }
      th { background-color: #3b82f6; color: white; font-weight: bold; }
      tr:nth-child(even) { background-color: #f8fafc; }
      .footer { margin-top: 20px; font-size: 12px; color: #64748b; text-align: center; }
    </style>
  </head>
  <body>
    <h1>Vehicle Trips Report</h1>

    <div class="summary">
      <p><strong>Generated on:</strong> {{.GeneratedOn}}</p>
      <p><strong>Vehicle:</strong> {{.Vehicle}}</p>
      <p><strong>Total Trips:</strong> {{.TotalTrips}}</p>
      <p><strong>Date Range:</strong> {{.DateRange}}</p>
    </div>

    <table>
      <thead>
        <tr>
          <th>Vehicle</th>
          <th>Start Date</th>
          <th>End Date</th>
          <th>Start Location</th>
          <th>End Location</th>
          <th>Distance</th>
          <th>Duration</th>
          <th>Start Lat</th>
          <th>Start Lng</th>
          <th>End Lat</th>
          <th>End Lng</th>
        </tr>
      </thead>
      <tbody>
        {{range .Rows}}<tr>
          <td>{{.Vehicle}}</td>
          <td>{{.StartDate}}</td>
          <td>{{.EndDate}}</td>
          <td>{{.StartAddress}}</td>
          <td>{{.EndAddress}}</td>
          <td>{{.DistanceTravelled}}</td>
          <td>{{.Duration}}</td>
          <td>{{.StartLat}}</td>
          <td>{{.StartLon}}</td>
          <td>{{.EndLat}}</td>
          <td>{{.EndLon}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>

    <div class="footer">
      <p>Generated by Ekco Vehicle Tracker</p>
    </div>
  </body>
</html>
`))
