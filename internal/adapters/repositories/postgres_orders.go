package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/platform/obs"
	"ice-route-service/internal/ports"
)

// Postgres-backed implementation of the OrderRepository port.
type PostgresOrderRepository struct{ DB *sql.DB }

var _ ports.OrderRepository = (*PostgresOrderRepository)(nil)

func NewPostgresOrderRepository(db *sql.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{DB: db}
}

func (s *PostgresOrderRepository) ListPendingOrders(ctx context.Context, depotID string) (_ []domain.Order, err error) {
	defer obs.Time(ctx, "orders.ListPendingOrders")(&err)

	if s.DB == nil {
		return nil, errors.New("postgres order repository: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT id, customer_id, depot_id, product_id, quantity, status
	FROM orders
	WHERE depot_id = $1
		AND status = 'pending'
	ORDER BY id;
	`, depotID)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: query orders table: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 64)
	for rows.Next() {
		var o domain.Order
		var status string
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.DepotID, &o.ProductID, &o.Quantity, &status); err != nil {
			return nil, fmt.Errorf("list pending orders: scan row: %w", err)
		}
		o.Status = domain.OrderStatus(status)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending orders: row iteration: %w", err)
	}

	return orders, nil
}

// ClaimOrders moves pending orders to assigned in one conditional update,
// so two planners racing for the same order cannot both win it.
func (s *PostgresOrderRepository) ClaimOrders(ctx context.Context, routeID string, orderIDs []string) (_ []string, err error) {
	defer obs.Time(ctx, "orders.ClaimOrders")(&err)

	if s.DB == nil {
		return nil, errors.New("postgres order repository: DB is nil")
	}
	if len(orderIDs) == 0 {
		return []string{}, nil
	}

	rows, err := s.DB.QueryContext(ctx, `
	UPDATE orders
	SET status = 'assigned', route_id = $1
	WHERE id = ANY($2::text[])
		AND status = 'pending'
	RETURNING id;
	`, routeID, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("claim orders for route %s: %w", routeID, err)
	}
	defer rows.Close()

	won := make(map[string]bool, len(orderIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("claim orders: scan row: %w", err)
		}
		won[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim orders: row iteration: %w", err)
	}

	// RETURNING order is unspecified; report claims in request order.
	claimed := make([]string, 0, len(won))
	for _, id := range orderIDs {
		if won[id] {
			claimed = append(claimed, id)
		}
	}
	return claimed, nil
}

func (s *PostgresOrderRepository) ReleaseOrders(ctx context.Context, orderIDs []string) error {
	if s.DB == nil {
		return errors.New("postgres order repository: DB is nil")
	}
	if len(orderIDs) == 0 {
		return nil
	}

	if _, err := s.DB.ExecContext(ctx, `
	UPDATE orders
	SET status = 'pending', route_id = NULL
	WHERE id = ANY($1::text[])
		AND status IN ('assigned', 'in_transit');
	`, orderIDs); err != nil {
		return fmt.Errorf("release orders: %w", err)
	}
	return nil
}

func (s *PostgresOrderRepository) UpdateOrderStatus(ctx context.Context, orderIDs []string, status domain.OrderStatus) error {
	if s.DB == nil {
		return errors.New("postgres order repository: DB is nil")
	}
	if len(orderIDs) == 0 {
		return nil
	}

	res, err := s.DB.ExecContext(ctx, `
	UPDATE orders
	SET status = $1
	WHERE id = ANY($2::text[]);
	`, string(status), orderIDs)
	if err != nil {
		return fmt.Errorf("update order status to %s: %w", status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: rows affected: %w", err)
	}
	if int(n) != len(orderIDs) {
		return fmt.Errorf("update order status: %d of %d orders found: %w", n, len(orderIDs), domain.ErrNotFound)
	}
	return nil
}
