// Package geo provides the great-circle distance used for trip path lengths.
package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two coordinates in
// kilometres, truncated to two decimal places. It is deterministic, symmetric,
// and returns 0 for identical points. Inputs are accepted as-is; coordinate
// sanity is the caller's concern.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	d := p1.Distance(p2).Radians() * EarthRadiusKm
	return math.Trunc(d*100) / 100
}
