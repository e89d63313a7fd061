// Package repo contains all database access logic for the trip backend.
// Each resource has its own file with an interface and a Postgres
// implementation. No business logic lives here — only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/google/uuid"

	"github.com/kairostech/ekco-tracker/backend/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and
// pgx.Tx. Accepting this interface instead of *pgxpool.Pool directly allows
// integration tests to pass a transaction that is rolled back after each
// test, giving free per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scan helpers to
// be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// VehicleRepo defines the persistence operations for registered vehicles.
type VehicleRepo interface {
	// List returns all vehicles ordered by creation time.
	List(ctx context.Context) ([]domain.Vehicle, error)

	// GetBySerial retrieves the vehicle whose tracker uploads under the
	// given device serial. Returns domain.ErrNotFound when none exists.
	GetBySerial(ctx context.Context, serial string) (domain.Vehicle, error)
}

// pgVehicleRepo is the Postgres implementation of VehicleRepo.
type pgVehicleRepo struct {
	db db
}

// NewVehicleRepo constructs a VehicleRepo backed by the provided db
// connection. In production pass *pgxpool.Pool; in tests pass a pgx.Tx for
// rollback isolation.
func NewVehicleRepo(db db) VehicleRepo {
	return &pgVehicleRepo{db: db}
}

// List returns all registered vehicles.
func (r *pgVehicleRepo) List(ctx context.Context) ([]domain.Vehicle, error) {
	const q = `
		SELECT id, model, plate, device_serial, created_at
		FROM vehicles
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.VehicleRepo.List: %w", err)
	}
	defer rows.Close()

	var vehicles []domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.VehicleRepo.List: scan: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.VehicleRepo.List: rows: %w", err)
	}

	return vehicles, nil
}

// GetBySerial retrieves a vehicle by its tracker device serial.
func (r *pgVehicleRepo) GetBySerial(ctx context.Context, serial string) (domain.Vehicle, error) {
	const q = `
		SELECT id, model, plate, device_serial, created_at
		FROM vehicles
		WHERE device_serial = @device_serial`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"device_serial": serial})
	v, err := scanVehicle(row)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("repo.VehicleRepo.GetBySerial: %w", err)
	}
	return v, nil
}

// scanVehicle maps a single database row into a domain.Vehicle.
func scanVehicle(s scanner) (domain.Vehicle, error) {
	var (
		v  domain.Vehicle
		id pgtype.UUID
	)

	err := s.Scan(&id, &v.Model, &v.Plate, &v.DeviceSerial, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Vehicle{}, domain.ErrNotFound
		}
		return domain.Vehicle{}, err
	}

	v.ID = uuid.UUID(id.Bytes)
	return v, nil
}
