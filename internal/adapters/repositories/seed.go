package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"ice-route-service/internal/domain"
	"os"
	"strings"
)

// Seed is the JSON fixture format for depots, fleet, customers and orders.
type Seed struct {
	Depots    []SeedDepot    `json:"depots"`
	Vehicles  []SeedVehicle  `json:"vehicles"`
	Customers []SeedCustomer `json:"customers"`
	Orders    []SeedOrder    `json:"orders"`
}

type SeedDepot struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

type SeedVehicle struct {
	ID            string `json:"id"`
	LicensePlate  string `json:"license_plate"`
	Type          string `json:"type"`
	CapacityUnits int    `json:"capacity_units"`
	DepotID       string `json:"depot_id"`
	Active        bool   `json:"active"`
}

type SeedCustomer struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Address string   `json:"address"`
	DepotID string   `json:"depot_id"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

type SeedOrder struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	DepotID    string `json:"depot_id"`
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	Status     string `json:"status"`
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) (Seed, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("load seed: read %q: %w", path, err)
	}

	var s Seed
	if err := json.Unmarshal(bytes, &s); err != nil {
		return Seed{}, fmt.Errorf("load seed: parse json: %w", err)
	}
	if err := s.validate(); err != nil {
		return Seed{}, fmt.Errorf("load seed: %w", err)
	}

	return s, nil
}

func (s Seed) validate() error {
	depots := make(map[string]bool, len(s.Depots))
	for i, d := range s.Depots {
		if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Address) == "" {
			return fmt.Errorf("depot at index %d: id and address are required: %w", i, domain.ErrValidation)
		}
		depots[d.ID] = true
	}
	for i, v := range s.Vehicles {
		if v.ID == "" || v.CapacityUnits < 0 || !depots[v.DepotID] {
			return fmt.Errorf("vehicle at index %d: id, capacity and a known depot are required: %w", i, domain.ErrValidation)
		}
	}
	for i, c := range s.Customers {
		if c.ID == "" || strings.TrimSpace(c.Address) == "" || !depots[c.DepotID] {
			return fmt.Errorf("customer at index %d: id, address and a known depot are required: %w", i, domain.ErrValidation)
		}
	}
	for i, o := range s.Orders {
		if o.ID == "" || o.Quantity < 0 || !depots[o.DepotID] {
			return fmt.Errorf("order at index %d: id, quantity and a known depot are required: %w", i, domain.ErrValidation)
		}
	}
	return nil
}

func coords(lat, lng *float64) *domain.Coordinates {
	if lat == nil || lng == nil {
		return nil
	}
	return &domain.Coordinates{Lat: *lat, Lon: *lng}
}

func (d SeedDepot) toDomain() domain.Depot {
	return domain.Depot{ID: d.ID, Name: d.Name, Address: d.Address, Coords: coords(d.Lat, d.Lng)}
}

func (v SeedVehicle) toDomain() domain.Vehicle {
	return domain.Vehicle{
		ID:            v.ID,
		LicensePlate:  v.LicensePlate,
		Type:          domain.VehicleType(v.Type),
		CapacityUnits: v.CapacityUnits,
		HomeDepotID:   v.DepotID,
		Active:        v.Active,
	}
}

func (c SeedCustomer) toDomain() domain.Customer {
	return domain.Customer{ID: c.ID, Name: c.Name, Address: c.Address, Coords: coords(c.Lat, c.Lng), DepotID: c.DepotID}
}

func (o SeedOrder) toDomain() domain.Order {
	status := domain.OrderStatus(o.Status)
	if status == "" {
		status = domain.OrderPending
	}
	return domain.Order{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		DepotID:    o.DepotID,
		ProductID:  o.ProductID,
		Quantity:   o.Quantity,
		Status:     status,
	}
}

// SeedPostgres upserts the seed into the database in one transaction.
func SeedPostgres(ctx context.Context, db *sql.DB, s Seed) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed postgres: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range s.Depots {
		dd := d.toDomain()
		lat, lon := nullCoords(dd.Coords)
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO depots (id, name, address, lat, lon)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, address = EXCLUDED.address, lat = EXCLUDED.lat, lon = EXCLUDED.lon;
		`, dd.ID, dd.Name, dd.Address, lat, lon); err != nil {
			return fmt.Errorf("seed postgres: depot %s: %w", d.ID, err)
		}
	}

	for _, v := range s.Vehicles {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO vehicles (id, license_plate, vehicle_type, capacity_units, home_depot_id, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET license_plate = EXCLUDED.license_plate,
			vehicle_type = EXCLUDED.vehicle_type,
			capacity_units = EXCLUDED.capacity_units,
			home_depot_id = EXCLUDED.home_depot_id,
			active = EXCLUDED.active;
		`, v.ID, v.LicensePlate, v.Type, v.CapacityUnits, v.DepotID, v.Active); err != nil {
			return fmt.Errorf("seed postgres: vehicle %s: %w", v.ID, err)
		}
	}

	for _, c := range s.Customers {
		cc := c.toDomain()
		lat, lon := nullCoords(cc.Coords)
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO customers (id, name, address, lat, lon, depot_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, address = EXCLUDED.address,
			lat = EXCLUDED.lat, lon = EXCLUDED.lon, depot_id = EXCLUDED.depot_id;
		`, cc.ID, cc.Name, cc.Address, lat, lon, cc.DepotID); err != nil {
			return fmt.Errorf("seed postgres: customer %s: %w", c.ID, err)
		}
	}

	// Existing orders keep their status so reseeding never un-assigns work.
	for _, o := range s.Orders {
		oo := o.toDomain()
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, depot_id, product_id, quantity, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING;
		`, oo.ID, oo.CustomerID, oo.DepotID, oo.ProductID, oo.Quantity, string(oo.Status)); err != nil {
			return fmt.Errorf("seed postgres: order %s: %w", o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed postgres: commit tx: %w", err)
	}
	return nil
}

func nullCoords(c *domain.Coordinates) (sql.NullFloat64, sql.NullFloat64) {
	if c == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: c.Lat, Valid: true}, sql.NullFloat64{Float64: c.Lon, Valid: true}
}

func scanCoords(lat, lon sql.NullFloat64) *domain.Coordinates {
	if !lat.Valid || !lon.Valid {
		return nil
	}
	return &domain.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
}
