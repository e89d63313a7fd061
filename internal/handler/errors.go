package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kairostech/ekco-tracker/backend/internal/domain"
)

// errorResponse is the JSON envelope every error body uses.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON serializes v with the right headers. Encoding failures at this
// point mean the response is already half-written, so they are only logged.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps a domain error to its HTTP status and error code:
//
//	ErrNotFound   → 404 not_found
//	ErrValidation → 422 validation_error
//	ErrNoData     → 422 no_data
//	ErrBusy       → 409 busy
//
// Anything else is a 500 with the detail kept out of the body.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error: errorDetail{Code: "not_found", Message: unwrapMessage(err)},
		})
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: errorDetail{Code: "validation_error", Message: unwrapMessage(err)},
		})
	case errors.Is(err, domain.ErrNoData):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: errorDetail{Code: "no_data", Message: "no trips to export"},
		})
	case errors.Is(err, domain.ErrBusy):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: errorDetail{Code: "busy", Message: "another run is already in progress"},
		})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: errorDetail{Code: "internal", Message: "internal server error"},
		})
	}
}

// badRequest rejects a request before it reaches the service layer (missing
// or malformed body, bad query parameter).
func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Error: errorDetail{Code: "validation_error", Message: message},
	})
}

// unwrapMessage extracts the human-readable part from a wrapped sentinel error.
// e.g. "service.ReconstructService.Reconstruct: validation error: device
// serial is required" → "device serial is required".
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []string{
		domain.ErrValidation.Error() + ": ",
		domain.ErrNotFound.Error() + ": ",
	} {
		if idx := strings.LastIndex(msg, marker); idx >= 0 && idx+len(marker) < len(msg) {
			return msg[idx+len(marker):]
		}
	}
	// Strip the "pkg.Type.Method: " prefix when there is no sentinel text
	// after it.
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}
