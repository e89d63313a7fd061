package domain

import (
	"time"

	"github.com/google/uuid"
)

// Vehicle is a registered tracked vehicle. The device serial links it to the
// ignition and position streams its tracker uploads.
type Vehicle struct {
	ID           uuid.UUID `json:"id"`
	Model        string    `json:"model"`
	Plate        string    `json:"plate"`
	DeviceSerial string    `json:"device_serial"`
	CreatedAt    time.Time `json:"created_at"`
}

// Name returns the display label used in listings and export headers,
// e.g. "Model X - ABC123".
func (v Vehicle) Name() string {
	return v.Model + " - " + v.Plate
}
