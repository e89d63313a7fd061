package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/kairostech/ekco-tracker/backend/internal/domain"
)

// vehicleResponse is the wire shape of a vehicle. Name is the display label
// the app shows in the vehicle picker.
type vehicleResponse struct {
	ID           uuid.UUID `json:"id"`
	Model        string    `json:"model"`
	Plate        string    `json:"plate"`
	DeviceSerial string    `json:"device_serial"`
	Name         string    `json:"name"`
}

func vehicleToResponse(v domain.Vehicle) vehicleResponse {
	return vehicleResponse{
		ID:           v.ID,
		Model:        v.Model,
		Plate:        v.Plate,
		DeviceSerial: v.DeviceSerial,
		Name:         v.Name(),
	}
}

// ListVehicles handles GET /vehicles.
func (s *Server) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.vehicles.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	data := make([]vehicleResponse, len(vehicles))
	for i, v := range vehicles {
		data[i] = vehicleToResponse(v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}
