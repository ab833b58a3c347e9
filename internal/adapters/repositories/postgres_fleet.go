package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/ports"
)

// Postgres-backed implementation of the depot, vehicle and customer ports.
// These tables are owned by fleet and customer management; routing only reads them.
type PostgresFleetRepository struct{ DB *sql.DB }

var (
	_ ports.DepotRepository    = (*PostgresFleetRepository)(nil)
	_ ports.VehicleRepository  = (*PostgresFleetRepository)(nil)
	_ ports.CustomerRepository = (*PostgresFleetRepository)(nil)
)

func NewPostgresFleetRepository(db *sql.DB) *PostgresFleetRepository {
	return &PostgresFleetRepository{DB: db}
}

func (s *PostgresFleetRepository) GetDepot(ctx context.Context, id string) (domain.Depot, error) {
	if s.DB == nil {
		return domain.Depot{}, errors.New("postgres fleet repository: DB is nil")
	}

	var (
		d        domain.Depot
		lat, lon sql.NullFloat64
	)
	err := s.DB.QueryRowContext(ctx, `
	SELECT id, name, address, lat, lon
	FROM depots
	WHERE id = $1;
	`, id).Scan(&d.ID, &d.Name, &d.Address, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Depot{}, fmt.Errorf("get depot %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Depot{}, fmt.Errorf("get depot %s: query depots table: %w", id, err)
	}

	d.Coords = scanCoords(lat, lon)
	return d, nil
}

func (s *PostgresFleetRepository) ListVehicles(ctx context.Context, depotID string) ([]domain.Vehicle, error) {
	if s.DB == nil {
		return nil, errors.New("postgres fleet repository: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT id, license_plate, vehicle_type, capacity_units, home_depot_id, active
	FROM vehicles
	WHERE home_depot_id = $1
	ORDER BY id;
	`, depotID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: query vehicles table: %w", err)
	}
	defer rows.Close()

	vehicles := make([]domain.Vehicle, 0, 16)
	for rows.Next() {
		var v domain.Vehicle
		var vt string
		if err := rows.Scan(&v.ID, &v.LicensePlate, &vt, &v.CapacityUnits, &v.HomeDepotID, &v.Active); err != nil {
			return nil, fmt.Errorf("list vehicles: scan row: %w", err)
		}
		v.Type = domain.VehicleType(vt)
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list vehicles: row iteration: %w", err)
	}

	return vehicles, nil
}

func (s *PostgresFleetRepository) ListCustomers(ctx context.Context, depotID string) ([]domain.Customer, error) {
	if s.DB == nil {
		return nil, errors.New("postgres fleet repository: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT id, name, address, lat, lon, depot_id
	FROM customers
	WHERE depot_id = $1
	ORDER BY id;
	`, depotID)
	if err != nil {
		return nil, fmt.Errorf("list customers: query customers table: %w", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &lat, &lon, &c.DepotID); err != nil {
			return nil, fmt.Errorf("list customers: scan row: %w", err)
		}
		c.Coords = scanCoords(lat, lon)
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list customers: row iteration: %w", err)
	}

	return customers, nil
}
