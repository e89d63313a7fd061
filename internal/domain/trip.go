// Package domain contains the core data types for the Ekco trip backend.
// This package has zero external dependencies (beyond uuid) and is imported
// by every other internal package (repo, segment, store, service, handler).
package domain

import (
	"fmt"
	"time"
)

// DisplayTimeLayout is the layout used everywhere a timestamp is shown to a
// person: trip listings, search matching, and export rows.
// Example: "Jan 2, 2020, 03:04 PM".
const DisplayTimeLayout = "Jan 2, 2006, 03:04 PM"

// Trip is one reconstructed journey: the span between a matched ignition-on
// and ignition-off event, enriched with the GPS positions recorded in between.
//
// Trips are never mutated after reconstruction. A new reconstruction run for
// a vehicle/date-range replaces the whole set in the store.
type Trip struct {
	// ID is derived deterministically from the bounding ignition events, so
	// re-running reconstruction over the same window produces the same IDs.
	ID string `json:"id"`

	DeviceSerial string `json:"device_serial"`

	// StartMs and EndMs are the ignition-on and ignition-off timestamps in
	// epoch milliseconds, as recorded by the tracker.
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`

	// DurationMinutes is (EndMs - StartMs) rounded to whole minutes.
	DurationMinutes int `json:"duration_minutes"`

	// DisplayDate is the human-readable start time. It prefers the date
	// string the tracker uploaded with the ignition-on event and falls back
	// to formatting StartMs.
	DisplayDate string `json:"display_date"`

	// Positions is the ordered GPS path for the trip. Reconstruction only
	// keeps trips with at least one valid position.
	Positions []TripPoint `json:"positions"`

	// DistanceKm is the cumulative great-circle path length in kilometres,
	// 0 when the trip has fewer than two positions.
	DistanceKm float64 `json:"distance_km"`

	// StartAddress and EndAddress are filled in by reverse geocoding during
	// export. They are empty until then.
	StartAddress string `json:"start_address,omitempty"`
	EndAddress   string `json:"end_address,omitempty"`
}

// StartTime returns the ignition-on instant as a time.Time.
func (t Trip) StartTime() time.Time { return time.UnixMilli(t.StartMs) }

// EndTime returns the ignition-off instant as a time.Time.
func (t Trip) EndTime() time.Time { return time.UnixMilli(t.EndMs) }

// TripID builds the stable identifier for a trip bounded by the given
// ignition events. Including both timestamps and the device serial makes the
// ID unique per journey and idempotent across re-fetches of the same window.
func TripID(on, off IgnitionEvent) string {
	return fmt.Sprintf("trip_%d_%d_%s", on.TimestampMs, off.TimestampMs, on.DeviceSerial)
}

// FormatDisplayTime renders t in the application's display format.
func FormatDisplayTime(t time.Time) string {
	return t.Format(DisplayTimeLayout)
}
