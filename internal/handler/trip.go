package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/kairostech/ekco-tracker/backend/internal/domain"
	"github.com/kairostech/ekco-tracker/backend/internal/store"
)

// defaultWindowDays is the width of the reconstruction window when the client
// does not supply one: today plus the six preceding days, day-aligned.
const defaultWindowDays = 7

// reconstructRequest is the body of POST /trips/reconstruct. Start and End
// are RFC 3339; both optional, defaulting to the last defaultWindowDays days.
type reconstructRequest struct {
	DeviceSerial string     `json:"device_serial"`
	Start        *time.Time `json:"start,omitempty"`
	End          *time.Time `json:"end,omitempty"`
}

// tripsResponse is the wire shape shared by POST /trips/reconstruct and
// GET /trips: the visible trips plus the provenance of the set.
type tripsResponse struct {
	Data       []domain.Trip `json:"data"`
	Meta       store.Meta    `json:"meta"`
	TotalCount int           `json:"total_count"`
	SearchText string        `json:"search_text"`
}

// ReconstructTrips handles POST /trips/reconstruct. It resolves the vehicle,
// rebuilds the trip set for the window, clears any active search, and returns
// the new visible set.
func (s *Server) ReconstructTrips(w http.ResponseWriter, r *http.Request) {
	var req reconstructRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.DeviceSerial == "" {
		badRequest(w, "device_serial is required")
		return
	}

	start, end := reconstructWindow(req, time.Now())

	vehicle, err := s.vehicles.GetBySerial(r.Context(), req.DeviceSerial)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := s.reconstructs.Reconstruct(r.Context(), vehicle, start, end); err != nil {
		writeError(w, err)
		return
	}

	// A completed run presents its new trip set unfiltered, so stale search
	// text never hides freshly built trips. A refused or failed run leaves
	// the user's active search alone — the in-flight operation wins.
	s.trips.ResetSearch()

	writeJSON(w, http.StatusOK, tripsResponse{
		Data:       s.trips.VisibleTrips(),
		Meta:       s.trips.Meta(),
		TotalCount: s.trips.TotalCount(),
		SearchText: s.trips.SearchText(),
	})
}

// reconstructWindow resolves the query window. Explicit bounds win; a missing
// bound defaults to the day-aligned last-N-days window ending tonight.
func reconstructWindow(req reconstructRequest, now time.Time) (time.Time, time.Time) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	start := dayStart.AddDate(0, 0, -(defaultWindowDays - 1))
	end := dayStart.AddDate(0, 0, 1)

	if req.Start != nil {
		start = *req.Start
	}
	if req.End != nil {
		end = *req.End
	}
	return start, end
}

// ListTrips handles GET /trips: the current visible set under the active
// search filter.
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tripsResponse{
		Data:       s.trips.VisibleTrips(),
		Meta:       s.trips.Meta(),
		TotalCount: s.trips.TotalCount(),
		SearchText: s.trips.SearchText(),
	})
}

// searchRequest is the body of POST /trips/search.
type searchRequest struct {
	Query string `json:"query"`
}

// SearchTrips handles POST /trips/search. The filter is debounced, so the
// response is 202: the client polls GET /trips for the settled view.
func (s *Server) SearchTrips(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	s.trips.SetSearchText(req.Query)

	writeJSON(w, http.StatusAccepted, map[string]string{"query": req.Query})
}

// pipelineStatus reports both long-running operations in one poll.
type pipelineStatus struct {
	Running bool `json:"running"`
	Percent int  `json:"percent"`
}

// PipelineStatus handles GET /trips/status.
func (s *Server) PipelineStatus(w http.ResponseWriter, r *http.Request) {
	recRunning, recPercent := s.reconstructs.Status()
	expRunning, expPercent := s.exports.Status()

	writeJSON(w, http.StatusOK, map[string]pipelineStatus{
		"reconstruction": {Running: recRunning, Percent: recPercent},
		"export":         {Running: expRunning, Percent: expPercent},
	})
}
