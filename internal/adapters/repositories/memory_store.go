package repositories

import (
	"context"
	"fmt"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/ports"
	"sync"
)

// MemoryStore implements every repository port in process memory. It is
// used when no database is configured and in tests. Values are copied in
// and out so callers never share state with the store.
type MemoryStore struct {
	mu sync.RWMutex

	depots    map[string]domain.Depot
	vehicles  []domain.Vehicle
	customers []domain.Customer

	orders     map[string]*domain.Order
	orderIDs   []string
	routes     map[string]*domain.Route
	routeOrder []string
}

var (
	_ ports.DepotRepository    = (*MemoryStore)(nil)
	_ ports.VehicleRepository  = (*MemoryStore)(nil)
	_ ports.CustomerRepository = (*MemoryStore)(nil)
	_ ports.OrderRepository    = (*MemoryStore)(nil)
	_ ports.RouteRepository    = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		depots: make(map[string]domain.Depot),
		orders: make(map[string]*domain.Order),
		routes: make(map[string]*domain.Route),
	}
}

// NewMemoryStoreFromSeed returns a store preloaded with the seed.
func NewMemoryStoreFromSeed(s Seed) *MemoryStore {
	m := NewMemoryStore()
	for _, d := range s.Depots {
		m.AddDepot(d.toDomain())
	}
	for _, v := range s.Vehicles {
		m.AddVehicle(v.toDomain())
	}
	for _, c := range s.Customers {
		m.AddCustomer(c.toDomain())
	}
	for _, o := range s.Orders {
		m.AddOrder(o.toDomain())
	}
	return m
}

func (m *MemoryStore) AddDepot(d domain.Depot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depots[d.ID] = d
}

func (m *MemoryStore) AddVehicle(v domain.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles = append(m.vehicles, v)
}

func (m *MemoryStore) AddCustomer(c domain.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers = append(m.customers, c)
}

func (m *MemoryStore) AddOrder(o domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		m.orderIDs = append(m.orderIDs, o.ID)
	}
	m.orders[o.ID] = &o
}

// Order returns a copy of the order with the given ID.
func (m *MemoryStore) Order(id string) (domain.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

func (m *MemoryStore) GetDepot(ctx context.Context, id string) (domain.Depot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.depots[id]
	if !ok {
		return domain.Depot{}, fmt.Errorf("depot %s: %w", id, domain.ErrNotFound)
	}
	return d, nil
}

func (m *MemoryStore) ListVehicles(ctx context.Context, depotID string) ([]domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Vehicle, 0)
	for _, v := range m.vehicles {
		if v.HomeDepotID == depotID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListCustomers(ctx context.Context, depotID string) ([]domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Customer, 0)
	for _, c := range m.customers {
		if c.DepotID == depotID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListPendingOrders returns the depot's pending orders in insertion order.
func (m *MemoryStore) ListPendingOrders(ctx context.Context, depotID string) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Order, 0)
	for _, id := range m.orderIDs {
		o := m.orders[id]
		if o.DepotID == depotID && o.Status == domain.OrderPending {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *MemoryStore) ClaimOrders(ctx context.Context, routeID string, orderIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	claimed := make([]string, 0, len(orderIDs))
	for _, id := range orderIDs {
		o, ok := m.orders[id]
		if !ok || o.Status != domain.OrderPending {
			continue
		}
		o.Status = domain.OrderAssigned
		o.RouteID = routeID
		claimed = append(claimed, id)
	}
	return claimed, nil
}

func (m *MemoryStore) ReleaseOrders(ctx context.Context, orderIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range orderIDs {
		o, ok := m.orders[id]
		if !ok {
			continue
		}
		if o.Status == domain.OrderAssigned || o.Status == domain.OrderInTransit {
			o.Status = domain.OrderPending
			o.RouteID = ""
		}
	}
	return nil
}

func (m *MemoryStore) UpdateOrderStatus(ctx context.Context, orderIDs []string, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range orderIDs {
		if _, ok := m.orders[id]; !ok {
			return fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
		}
	}
	for _, id := range orderIDs {
		m.orders[id].Status = status
	}
	return nil
}

func (m *MemoryStore) CreateRoute(ctx context.Context, r *domain.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routes[r.ID]; ok {
		return fmt.Errorf("route %s already exists: %w", r.ID, domain.ErrValidation)
	}
	m.routes[r.ID] = r.Clone()
	m.routeOrder = append(m.routeOrder, r.ID)
	return nil
}

func (m *MemoryStore) GetRoute(ctx context.Context, id string) (*domain.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.routes[id]
	if !ok {
		return nil, fmt.Errorf("route %s: %w", id, domain.ErrNotFound)
	}
	return r.Clone(), nil
}

func (m *MemoryStore) UpdateRoute(ctx context.Context, r *domain.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routes[r.ID]; !ok {
		return fmt.Errorf("route %s: %w", r.ID, domain.ErrNotFound)
	}
	m.routes[r.ID] = r.Clone()
	return nil
}

// ListRoutes returns the depot's routes in creation order.
func (m *MemoryStore) ListRoutes(ctx context.Context, depotID string) ([]*domain.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Route, 0)
	for _, id := range m.routeOrder {
		if r := m.routes[id]; r.DepotID == depotID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}
