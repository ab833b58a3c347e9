package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/platform/obs"
	"ice-route-service/internal/ports"
	"time"
)

// Postgres-backed implementation of the RouteRepository port. A route and
// its stops are always written together in one transaction.
type PostgresRouteRepository struct{ DB *sql.DB }

var _ ports.RouteRepository = (*PostgresRouteRepository)(nil)

func NewPostgresRouteRepository(db *sql.DB) *PostgresRouteRepository {
	return &PostgresRouteRepository{DB: db}
}

const selectRoutes = `
	SELECT id, name, vehicle_id, driver_id, depot_id, route_date, status,
		estimated_duration_sec, total_distance_meters, optimization_method,
		created_at, started_at, completed_at
	FROM routes
`

func (s *PostgresRouteRepository) CreateRoute(ctx context.Context, r *domain.Route) (err error) {
	defer obs.Time(ctx, "routes.CreateRoute")(&err)

	if s.DB == nil {
		return errors.New("postgres route repository: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create route: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO routes (
		id, name, vehicle_id, driver_id, depot_id, route_date, status,
		estimated_duration_sec, total_distance_meters, optimization_method,
		created_at, started_at, completed_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
	`,
		r.ID, r.Name, r.VehicleID, r.DriverID, r.DepotID, r.Date, string(r.Status),
		int(r.EstimatedDuration/time.Second), r.TotalDistanceMeters, string(r.OptimizationMethod),
		r.CreatedAt, nullTime(r.StartedAt), nullTime(r.CompletedAt),
	); err != nil {
		return fmt.Errorf("create route %s: insert route: %w", r.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO route_stops (
		route_id, sequence_number, order_id, customer_id, customer_name, address,
		lat, lon, capacity_units, status, estimated_arrival, eta_updated_at, completed_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
	`)
	if err != nil {
		return fmt.Errorf("create route %s: prepare stops: %w", r.ID, err)
	}
	defer stmt.Close()

	for _, rs := range r.Stops {
		lat, lon := nullCoords(rs.Stop.Coords)
		if _, err := stmt.ExecContext(ctx,
			r.ID, rs.SequenceNumber, rs.Stop.OrderID, rs.Stop.CustomerID, rs.Stop.CustomerName, rs.Stop.Address,
			lat, lon, rs.Stop.RequiredCapacityUnits, string(rs.Status), rs.EstimatedArrival,
			nullTime(rs.ETAUpdatedAt), nullTime(rs.CompletedAt),
		); err != nil {
			return fmt.Errorf("create route %s: insert stop %d: %w", r.ID, rs.SequenceNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create route %s: commit tx: %w", r.ID, err)
	}
	return nil
}

func (s *PostgresRouteRepository) GetRoute(ctx context.Context, id string) (*domain.Route, error) {
	if s.DB == nil {
		return nil, errors.New("postgres route repository: DB is nil")
	}

	r, err := scanRoute(s.DB.QueryRowContext(ctx, selectRoutes+`WHERE id = $1;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get route %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get route %s: %w", id, err)
	}

	stops, err := s.loadStops(ctx, []string{id})
	if err != nil {
		return nil, fmt.Errorf("get route %s: %w", id, err)
	}
	r.Stops = stops[id]

	return r, nil
}

// UpdateRoute persists lifecycle changes: status, driver, timestamps and
// per-stop status, coordinates and ETA. Stop membership never changes.
func (s *PostgresRouteRepository) UpdateRoute(ctx context.Context, r *domain.Route) (err error) {
	defer obs.Time(ctx, "routes.UpdateRoute")(&err)

	if s.DB == nil {
		return errors.New("postgres route repository: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update route: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	UPDATE routes
	SET driver_id = $2, status = $3, started_at = $4, completed_at = $5
	WHERE id = $1;
	`, r.ID, r.DriverID, string(r.Status), nullTime(r.StartedAt), nullTime(r.CompletedAt))
	if err != nil {
		return fmt.Errorf("update route %s: %w", r.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update route %s: rows affected: %w", r.ID, err)
	} else if n == 0 {
		return fmt.Errorf("update route %s: %w", r.ID, domain.ErrNotFound)
	}

	stmt, err := tx.PrepareContext(ctx, `
	UPDATE route_stops
	SET status = $3, lat = $4, lon = $5, estimated_arrival = $6, eta_updated_at = $7, completed_at = $8
	WHERE route_id = $1 AND sequence_number = $2;
	`)
	if err != nil {
		return fmt.Errorf("update route %s: prepare stops: %w", r.ID, err)
	}
	defer stmt.Close()

	for _, rs := range r.Stops {
		lat, lon := nullCoords(rs.Stop.Coords)
		if _, err := stmt.ExecContext(ctx,
			r.ID, rs.SequenceNumber, string(rs.Status), lat, lon,
			rs.EstimatedArrival, nullTime(rs.ETAUpdatedAt), nullTime(rs.CompletedAt),
		); err != nil {
			return fmt.Errorf("update route %s: stop %d: %w", r.ID, rs.SequenceNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update route %s: commit tx: %w", r.ID, err)
	}
	return nil
}

func (s *PostgresRouteRepository) ListRoutes(ctx context.Context, depotID string) ([]*domain.Route, error) {
	if s.DB == nil {
		return nil, errors.New("postgres route repository: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, selectRoutes+`WHERE depot_id = $1 ORDER BY created_at, id;`, depotID)
	if err != nil {
		return nil, fmt.Errorf("list routes: query routes table: %w", err)
	}
	defer rows.Close()

	routes := make([]*domain.Route, 0, 16)
	ids := make([]string, 0, 16)
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("list routes: scan row: %w", err)
		}
		routes = append(routes, r)
		ids = append(ids, r.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list routes: row iteration: %w", err)
	}

	stops, err := s.loadStops(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	for _, r := range routes {
		r.Stops = stops[r.ID]
	}

	return routes, nil
}

func (s *PostgresRouteRepository) loadStops(ctx context.Context, routeIDs []string) (map[string][]domain.RouteStop, error) {
	out := make(map[string][]domain.RouteStop, len(routeIDs))
	if len(routeIDs) == 0 {
		return out, nil
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT route_id, sequence_number, order_id, customer_id, customer_name, address,
		lat, lon, capacity_units, status, estimated_arrival, eta_updated_at, completed_at
	FROM route_stops
	WHERE route_id = ANY($1::text[])
	ORDER BY route_id, sequence_number;
	`, routeIDs)
	if err != nil {
		return nil, fmt.Errorf("load stops: query route_stops table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			routeID            string
			rs                 domain.RouteStop
			status             string
			lat, lon           sql.NullFloat64
			etaUpdated, doneAt sql.NullTime
		)
		if err := rows.Scan(
			&routeID, &rs.SequenceNumber, &rs.Stop.OrderID, &rs.Stop.CustomerID, &rs.Stop.CustomerName, &rs.Stop.Address,
			&lat, &lon, &rs.Stop.RequiredCapacityUnits, &status, &rs.EstimatedArrival, &etaUpdated, &doneAt,
		); err != nil {
			return nil, fmt.Errorf("load stops: scan row: %w", err)
		}
		rs.Stop.Coords = scanCoords(lat, lon)
		rs.Status = domain.StopStatus(status)
		rs.ETAUpdatedAt = timePtr(etaUpdated)
		rs.CompletedAt = timePtr(doneAt)
		out[routeID] = append(out[routeID], rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load stops: row iteration: %w", err)
	}

	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoute(row rowScanner) (*domain.Route, error) {
	var (
		r                   domain.Route
		status, method      string
		durationSec         int
		startedAt, finished sql.NullTime
	)
	if err := row.Scan(
		&r.ID, &r.Name, &r.VehicleID, &r.DriverID, &r.DepotID, &r.Date, &status,
		&durationSec, &r.TotalDistanceMeters, &method,
		&r.CreatedAt, &startedAt, &finished,
	); err != nil {
		return nil, err
	}
	r.Status = domain.RouteStatus(status)
	r.OptimizationMethod = domain.OptimizationMethod(method)
	r.EstimatedDuration = time.Duration(durationSec) * time.Second
	r.StartedAt = timePtr(startedAt)
	r.CompletedAt = timePtr(finished)
	return &r, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
