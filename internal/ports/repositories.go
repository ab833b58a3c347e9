package ports

import (
	"context"
	"ice-route-service/internal/domain"
)

type DepotRepository interface {
	GetDepot(ctx context.Context, id string) (domain.Depot, error)
}

type VehicleRepository interface {
	// Return all vehicles homed at the depot, active or not.
	ListVehicles(ctx context.Context, depotID string) ([]domain.Vehicle, error)
}

type CustomerRepository interface {
	ListCustomers(ctx context.Context, depotID string) ([]domain.Customer, error)
}

// Port: boundary for reading the pending pool and moving orders through it.
type OrderRepository interface {
	ListPendingOrders(ctx context.Context, depotID string) ([]domain.Order, error)
	// Atomically move pending orders to assigned for routeID.
	// Returns only the IDs this call claimed.
	ClaimOrders(ctx context.Context, routeID string, orderIDs []string) ([]string, error)
	// Return assigned or in-transit orders to the pending pool.
	ReleaseOrders(ctx context.Context, orderIDs []string) error
	UpdateOrderStatus(ctx context.Context, orderIDs []string, status domain.OrderStatus) error
}

type RouteRepository interface {
	CreateRoute(ctx context.Context, r *domain.Route) error
	GetRoute(ctx context.Context, id string) (*domain.Route, error)
	UpdateRoute(ctx context.Context, r *domain.Route) error
	ListRoutes(ctx context.Context, depotID string) ([]*domain.Route, error)
}
