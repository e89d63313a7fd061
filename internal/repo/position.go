package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kairostech/ekco-tracker/backend/internal/domain"
)

// PositionRepo fetches the GPS sample stream a tracker uploaded.
type PositionRepo interface {
	// FetchRange returns all position samples for the device between
	// startMs and endMs inclusive, ordered ascending by timestamp. Samples
	// may be missing coordinates (no fix); callers filter with HasFix.
	// An empty result is not an error.
	FetchRange(ctx context.Context, serial string, startMs, endMs int64) ([]domain.PositionSample, error)

	// Latest returns the most recent position sample for the device.
	// Returns domain.ErrNotFound when the device has never reported.
	Latest(ctx context.Context, serial string) (domain.PositionSample, error)
}

// pgPositionRepo is the Postgres implementation of PositionRepo.
type pgPositionRepo struct {
	db db
}

// NewPositionRepo constructs a PositionRepo backed by the provided db
// connection.
func NewPositionRepo(db db) PositionRepo {
	return &pgPositionRepo{db: db}
}

// FetchRange returns the device's position samples inside the closed window.
func (r *pgPositionRepo) FetchRange(ctx context.Context, serial string, startMs, endMs int64) ([]domain.PositionSample, error) {
	const q = `
		SELECT device_serial, latitude, longitude, recorded_at_ms, COALESCE(iso_date, '')
		FROM position_samples
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
		return nil, fmt.Errorf("repo.PositionRepo.FetchRange: %w", err)
	}
	defer rows.Close()

	var samples []domain.PositionSample
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.PositionRepo.FetchRange: scan: %w", err)
		}
		samples = append(samples, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.PositionRepo.FetchRange: rows: %w", err)
	}

	return samples, nil
}

// Latest returns the newest sample for the device.
func (r *pgPositionRepo) Latest(ctx context.Context, serial string) (domain.PositionSample, error) {
	const q = `
		SELECT device_serial, latitude, longitude, recorded_at_ms, COALESCE(iso_date, '')
		FROM position_samples
		WHERE device_serial = @device_serial
		ORDER BY recorded_at_ms DESC
		LIMIT 1`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"device_serial": serial})
	p, err := scanPosition(row)
	if err != nil {
		return domain.PositionSample{}, fmt.Errorf("repo.PositionRepo.Latest: %w", err)
	}
	return p, nil
}

// scanPosition maps a single database row into a domain.PositionSample.
// latitude/longitude are nullable; NULL scans into a nil pointer, which
// downstream code treats as "no fix".
func scanPosition(s scanner) (domain.PositionSample, error) {
	var p domain.PositionSample

	err := s.Scan(&p.DeviceSerial, &p.Latitude, &p.Longitude, &p.TimestampMs, &p.ISODate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PositionSample{}, domain.ErrNotFound
		}
		return domain.PositionSample{}, err
	}

	return p, nil
}
