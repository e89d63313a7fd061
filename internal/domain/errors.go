package domain

import "errors"

// ErrNotFound is returned by repo functions when the requested resource does
// not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing device serial, end before start).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrNoData is returned when an export is requested while no trips are
// visible. No export artifact is produced in that case.
var ErrNoData = errors.New("no data to export")

// ErrBusy is returned when a reconstruction or export is requested while one
// is already running. The in-flight operation wins; the new request is
// logged and refused without disturbing current state.
var ErrBusy = errors.New("operation already in progress")
