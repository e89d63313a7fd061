package repo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/kairostech/ekco-tracker/backend/internal/domain"
)

// IgnitionRepo fetches the ignition event stream a tracker uploaded.
type IgnitionRepo interface {
	// FetchRange returns all ignition events for the device between startMs
	// and endMs inclusive, ordered ascending by timestamp. An empty result
	// is not an error.
	FetchRange(ctx context.Context, serial string, startMs, endMs int64) ([]domain.IgnitionEvent, error)
}

// pgIgnitionRepo is the Postgres implementation of IgnitionRepo.
type pgIgnitionRepo struct {
	db db
}

// NewIgnitionRepo constructs an IgnitionRepo backed by the provided db
// connection.
func NewIgnitionRepo(db db) IgnitionRepo {
	return &pgIgnitionRepo{db: db}
}

// FetchRange returns the device's ignition events inside the closed window.
func (r *pgIgnitionRepo) FetchRange(ctx context.Context, serial string, startMs, endMs int64) ([]domain.IgnitionEvent, error) {
	const q = `
		SELECT id, device_serial, status, recorded_at_ms, COALESCE(iso_date, '')
		FROM ignition_events
		WHERE device_serial = @device_serial
		  AND recorded_at_ms >= @start_ms
		  AND recorded_at_ms <= @end_ms
		ORDER BY recorded_at_ms ASC`

	args := pgx.NamedArgs{
		"device_serial": serial,
		"start_ms":      startMs,
		"end_ms":        endMs,
	}

	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("repo.IgnitionRepo.FetchRange: %w", err)
	}
	defer rows.Close()

	var events []domain.IgnitionEvent
	for rows.Next() {
		var (
			ev domain.IgnitionEvent
			id int64
		)
		if err := rows.Scan(&id, &ev.DeviceSerial, &ev.Status, &ev.TimestampMs, &ev.ISODate); err != nil {
			return nil, fmt.Errorf("repo.IgnitionRepo.FetchRange: scan: %w", err)
		}
		ev.ID = strconv.FormatInt(id, 10)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.IgnitionRepo.FetchRange: rows: %w", err)
	}

	return events, nil
}
