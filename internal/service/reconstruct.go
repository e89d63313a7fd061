// Package service contains the business logic for the trip backend: turning
// raw ignition/GPS streams into trips, and turning trips into export
// artifacts. Services validate inputs, enforce the single-flight rules, and
// orchestrate repo calls. No SQL lives here — services depend on repo
// interfaces, not implementations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/kairostech/ekco-tracker/backend/internal/domain"
	"github.com/kairostech/ekco-tracker/backend/internal/geo"
	"github.com/kairostech/ekco-tracker/backend/internal/repo"
	"github.com/kairostech/ekco-tracker/backend/internal/segment"
	"github.com/kairostech/ekco-tracker/backend/internal/store"
)

// DefaultMinPositions is the minimum number of valid GPS samples a trip needs
// to be kept. A single point is enough to place the vehicle; deployments can
// raise this via configuration.
const DefaultMinPositions = 1

// ReconstructOptions carries the tunable quality thresholds.
type ReconstructOptions struct {
	// MinTripDuration is forwarded to the segmenter. Zero means the
	// segmenter default (6s).
	MinTripDuration time.Duration

	// MinPositions is the fewest valid GPS samples a trip may have.
	// Zero means DefaultMinPositions.
	MinPositions int
}

// ReconstructService rebuilds the trip list for a vehicle and date range from
// its ignition and position streams.
//
// Only one reconstruction may run at a time. A second request while one is in
// flight is refused with domain.ErrBusy and the in-flight run wins; the store
// is only touched by a run that completes successfully.
type ReconstructService struct {
	ignitions repo.IgnitionRepo
	positions repo.PositionRepo
	segmenter segment.Segmenter
	trips     *store.Store
	log       *slog.Logger

	minPositions int

	running  atomic.Bool
	progress atomic.Int64
}

// NewReconstructService constructs a ReconstructService.
func NewReconstructService(
	ignitions repo.IgnitionRepo,
	positions repo.PositionRepo,
	trips *store.Store,
	opts ReconstructOptions,
	log *slog.Logger,
) *ReconstructService {
	if log == nil {
		log = slog.Default()
	}
	minPositions := opts.MinPositions
	if minPositions == 0 {
		minPositions = DefaultMinPositions
	}
	return &ReconstructService{
		ignitions:    ignitions,
		positions:    positions,
		segmenter:    segment.Segmenter{MinTripDuration: opts.MinTripDuration},
		trips:        trips,
		log:          log,
		minPositions: minPositions,
	}
}

// Reconstruct fetches the vehicle's ignition events in [start, end], pairs
// them into candidate trips, enriches each pair with its GPS path, and
// replaces the trip store's contents with the result.
//
// Failure semantics follow the degradation ladder:
//   - ignition fetch failure aborts the run; the store keeps its prior set
//   - a position fetch failure for one pair is logged and that trip skipped
//   - a pair with no valid GPS samples is discarded silently
//
// The returned slice is the new full trip set, newest first.
func (s *ReconstructService) Reconstruct(ctx context.Context, vehicle domain.Vehicle, start, end time.Time) ([]domain.Trip, error) {
	if vehicle.DeviceSerial == "" {
		return nil, fmt.Errorf("service.ReconstructService.Reconstruct: %w: device serial is required", domain.ErrValidation)
	}
	if !end.After(start) {
		return nil, fmt.Errorf("service.ReconstructService.Reconstruct: %w: end must be after start", domain.ErrValidation)
	}

	if !s.running.CompareAndSwap(false, true) {
		// In-flight run wins; this request is dropped, not queued.
		s.log.Info("reconstruction already in progress, ignoring request",
			"device_serial", vehicle.DeviceSerial)
		return nil, domain.ErrBusy
	}
	defer s.running.Store(false)

	s.progress.Store(0)
	startMs, endMs := start.UnixMilli(), end.UnixMilli()

	events, err := s.ignitions.FetchRange(ctx, vehicle.DeviceSerial, startMs, endMs)
	if err != nil {
		return nil, fmt.Errorf("service.ReconstructService.Reconstruct: %w", err)
	}

	pairs := s.segmenter.Pairs(events)
	s.log.Info("segmented ignition events",
		"device_serial", vehicle.DeviceSerial,
		"events", len(events),
		"pairs", len(pairs),
	)

	trips := make([]domain.Trip, 0, len(pairs))
	for i, pair := range pairs {
		trip, ok := s.enrichPair(ctx, pair)
		if ok {
			trips = append(trips, trip)
		}

		// Progress counts processed pairs, not kept trips, so callers see
		// monotonic movement even when trips are discarded.
		s.progress.Store(int64(math.Round(float64(i+1) / float64(len(pairs)) * 100)))
	}

	s.trips.ReplaceAll(trips, store.Meta{
		VehicleName:  vehicle.Name(),
		DeviceSerial: vehicle.DeviceSerial,
		RangeStart:   start,
		RangeEnd:     end,
	})

	s.log.Info("reconstruction complete",
		"device_serial", vehicle.DeviceSerial,
		"pairs", len(pairs),
		"trips", len(trips),
	)

	return s.trips.VisibleTrips(), nil
}

// enrichPair builds a Trip from one ignition pair. It returns ok=false when
// the trip must be skipped: position fetch failed, or no valid GPS samples.
func (s *ReconstructService) enrichPair(ctx context.Context, pair domain.TripPair) (domain.Trip, bool) {
	samples, err := s.positions.FetchRange(ctx, pair.On.DeviceSerial, pair.On.TimestampMs, pair.Off.TimestampMs)
	if err != nil {
		// One bad trip must not abort the batch.
		s.log.Warn("position fetch failed, skipping trip",
			"device_serial", pair.On.DeviceSerial,
			"start_ms", pair.On.TimestampMs,
			"error", err,
		)
		return domain.Trip{}, false
	}

	points := make([]domain.TripPoint, 0, len(samples))
	for _, sample := range samples {
		if !sample.HasFix() {
			continue
		}
		points = append(points, domain.TripPoint{
			Latitude:    *sample.Latitude,
			Longitude:   *sample.Longitude,
			TimestampMs: sample.TimestampMs,
			ISODate:     sample.ISODate,
		})
	}

	if len(points) < s.minPositions {
		// No GPS coverage for the span — not an error, just not a trip.
		return domain.Trip{}, false
	}

	var distance float64
	for i := 0; i < len(points)-1; i++ {
		distance += geo.DistanceKm(
			points[i].Latitude, points[i].Longitude,
			points[i+1].Latitude, points[i+1].Longitude,
		)
	}
	distance = math.Round(distance*100) / 100

	displayDate := pair.On.ISODate
	if displayDate == "" {
		displayDate = domain.FormatDisplayTime(time.UnixMilli(pair.On.TimestampMs))
	}

	return domain.Trip{
		ID:              domain.TripID(pair.On, pair.Off),
		DeviceSerial:    pair.On.DeviceSerial,
		StartMs:         pair.On.TimestampMs,
		EndMs:           pair.Off.TimestampMs,
		DurationMinutes: int(math.Round(float64(pair.Off.TimestampMs-pair.On.TimestampMs) / 60000)),
		DisplayDate:     displayDate,
		Positions:       points,
		DistanceKm:      distance,
	}, true
}

// Status reports whether a reconstruction is running and its progress as a
// 0–100 percentage.
func (s *ReconstructService) Status() (running bool, percent int) {
	return s.running.Load(), int(s.progress.Load())
}
