package domain

// PositionSample is a raw GPS reading as fetched from storage.
// Latitude and Longitude are pointers because trackers occasionally upload
// records with no fix; enrichment discards those samples.
type PositionSample struct {
	DeviceSerial string
	Latitude     *float64
	Longitude    *float64
	TimestampMs  int64
	ISODate      string
}

// HasFix reports whether the sample carries both coordinates.
func (p PositionSample) HasFix() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// TripPoint is a validated position attached to a reconstructed trip.
// Unlike PositionSample it is guaranteed to have both coordinates.
type TripPoint struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	TimestampMs int64   `json:"timestamp"`
	ISODate     string  `json:"date"`
}
