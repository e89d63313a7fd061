package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kairostech/ekco-tracker/backend/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS middleware on the rest of the API; the
	// websocket endpoint carries no credentials and serves read-only data.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// livePosition is one frame on the live stream.
type livePosition struct {
	DeviceSerial string   `json:"device_serial"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	TimestampMs  int64    `json:"timestamp_ms"`
}

// LivePositions handles GET /vehicles/{serial}/live. It upgrades to a
// websocket and pushes the vehicle's latest position whenever it changes,
// polling the position stream at livePollInterval. The stream ends when the
// client disconnects.
func (s *Server) LivePositions(w http.ResponseWriter, r *http.Request) {
	serial := chi.URLParam(r, "serial")

	// Reject unknown vehicles before the upgrade so the client gets a real
	// HTTP status instead of a dropped socket.
	if _, err := s.vehicles.GetBySerial(r.Context(), serial); err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.Warn("websocket upgrade failed", "device_serial", serial, "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close messages are processed; the stream is
	// server-to-client only. The request context does not fire on disconnect
	// once the connection is hijacked, so the read error is the only
	// disconnect signal the poll loop gets.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.livePollInterval)
	defer ticker.Stop()

	var lastSent int64 = -1
	for {
		sample, err := s.positions.Latest(r.Context(), serial)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// No positions recorded yet; keep polling.
		case err != nil:
			slog.Warn("latest position fetch failed", "device_serial", serial, "error", err)
		case sample.TimestampMs != lastSent:
			frame := livePosition{
				DeviceSerial: sample.DeviceSerial,
				Latitude:     sample.Latitude,
				Longitude:    sample.Longitude,
				TimestampMs:  sample.TimestampMs,
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
			lastSent = sample.TimestampMs
		}

		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
