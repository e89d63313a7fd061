package domain

// Ignition status values as uploaded by the tracker.
const (
	IgnitionOn  = "on"
	IgnitionOff = "off"
)

// IgnitionEvent is a single engine state change reported by a tracked device.
// Events are immutable once fetched and arrive ordered ascending by timestamp
// within any query window.
type IgnitionEvent struct {
	ID           string `json:"id"`
	DeviceSerial string `json:"device_serial"`
	Status       string `json:"status"` // IgnitionOn or IgnitionOff
	TimestampMs  int64  `json:"timestamp"`

	// ISODate is the tracker's own date string for the event, when present.
	ISODate string `json:"date,omitempty"`
}

// TripPair is a matched (on, off) ignition event pair delimiting one
// candidate trip. Invariant: On.TimestampMs < Off.TimestampMs and both events
// share a device serial. Pairs are transient — they exist only between
// segmentation and enrichment.
type TripPair struct {
	On  IgnitionEvent
	Off IgnitionEvent
}
