package services

import (
	"context"
	"fmt"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/platform/obs"
	"ice-route-service/internal/ports"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PlanResult reports what one planning pass produced for a depot.
// Business outcomes (skipped, unroutable, unplaced) are reported here,
// never as errors.
type PlanResult struct {
	DepotID string
	Routes  []*domain.Route
	// Orders whose customer record is missing.
	SkippedOrderIDs []string
	// Orders larger than every active vehicle. They stay pending.
	UnroutableOrderIDs []string
	// Orders that fit some vehicle but found no room in this pass.
	UnplacedOrderIDs []string
	Message          string
}

type Repositories struct {
	Depots    ports.DepotRepository
	Vehicles  ports.VehicleRepository
	Customers ports.CustomerRepository
	Orders    ports.OrderRepository
	Routes    ports.RouteRepository
}

// Planner turns a depot's pending orders into routes, one vehicle at a time.
type Planner struct {
	repos            Repositories
	oracle           *Oracle
	builder          *RouteBuilder
	unitsPerCapacity int
	logger           *slog.Logger
	now              func() time.Time
	newID            func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type PlannerOption func(*Planner)

func WithUnitsPerCapacity(n int) PlannerOption {
	return func(p *Planner) {
		if n > 0 {
			p.unitsPerCapacity = n
		}
	}
}

func WithPlannerLogger(l *slog.Logger) PlannerOption {
	return func(p *Planner) { p.logger = l }
}

func WithPlannerClock(now func() time.Time) PlannerOption {
	return func(p *Planner) { p.now = now }
}

// WithRouteIDs overrides route ID generation.
func WithRouteIDs(newID func() string) PlannerOption {
	return func(p *Planner) { p.newID = newID }
}

func NewPlanner(repos Repositories, oracle *Oracle, builder *RouteBuilder, opts ...PlannerOption) *Planner {
	p := &Planner{
		repos:            repos,
		oracle:           oracle,
		builder:          builder,
		unitsPerCapacity: DefaultUnitsPerCapacity,
		logger:           slog.Default(),
		now:              time.Now,
		newID:            uuid.NewString,
		locks:            make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PlanRoutes builds routes for every pending order at the depot that
// fits an active vehicle. Passes for the same depot are serialized. It
// errors only when the depot is unknown or a repository call fails.
func (p *Planner) PlanRoutes(ctx context.Context, depotID string) (_ PlanResult, err error) {
	ctx, done := obs.Span(ctx, "planner.PlanRoutes")
	defer func() { done(&err) }()

	unlock := p.lockDepot(depotID)
	defer unlock()

	logger := p.logger.With("depot_id", depotID)

	depot, err := p.repos.Depots.GetDepot(ctx, depotID)
	if err != nil {
		return PlanResult{}, fmt.Errorf("plan routes: get depot %s: %w", depotID, err)
	}
	vehicles, err := p.repos.Vehicles.ListVehicles(ctx, depotID)
	if err != nil {
		return PlanResult{}, fmt.Errorf("plan routes: list vehicles: %w", err)
	}
	orders, err := p.repos.Orders.ListPendingOrders(ctx, depotID)
	if err != nil {
		return PlanResult{}, fmt.Errorf("plan routes: list pending orders: %w", err)
	}
	customers, err := p.repos.Customers.ListCustomers(ctx, depotID)
	if err != nil {
		return PlanResult{}, fmt.Errorf("plan routes: list customers: %w", err)
	}

	result := PlanResult{DepotID: depotID, Routes: []*domain.Route{}}

	stops, report := BuildStops(ctx, logger, orders, customers, p.unitsPerCapacity)
	result.SkippedOrderIDs = report.Skipped

	fleet := activeFleet(vehicles)
	if len(fleet) == 0 {
		result.UnplacedOrderIDs = stopOrderIDs(stops)
		result.Message = domain.ErrNoVehicleAvailable.Error()
		logger.WarnContext(ctx, "no active vehicle at depot", "stops", len(stops))
		return result, nil
	}

	largest := fleet[0].CapacityUnits
	pool := make([]domain.Stop, 0, len(stops))
	for _, s := range stops {
		if s.RequiredCapacityUnits > largest {
			logger.WarnContext(ctx, "order exceeds every vehicle",
				"order_id", s.OrderID, "units", s.RequiredCapacityUnits, "largest_capacity", largest)
			result.UnroutableOrderIDs = append(result.UnroutableOrderIDs, s.OrderID)
			continue
		}
		pool = append(pool, s)
	}
	pool = p.resolveStops(ctx, pool)

	departAt := p.now()
	date := time.Date(departAt.Year(), departAt.Month(), departAt.Day(), 0, 0, 0, 0, departAt.Location())
	seq, err := p.routesOn(ctx, depotID, date)
	if err != nil {
		return PlanResult{}, err
	}

	depotLoc := depot.Location()
	for _, v := range fleet {
		if len(pool) == 0 {
			break
		}
		vlog := logger.With("vehicle_id", v.ID)

		c := p.builder.Build(ctx, pool, v.CapacityUnits, depotLoc, departAt)
		if c.Empty() {
			vlog.DebugContext(ctx, "nothing fits vehicle", "capacity", v.CapacityUnits, "remaining", len(pool))
			continue
		}

		routeID := p.newID()
		ids := make([]string, 0, len(c.Stops))
		for _, rs := range c.Stops {
			ids = append(ids, rs.Stop.OrderID)
		}

		claimed, err := p.repos.Orders.ClaimOrders(ctx, routeID, ids)
		if err != nil {
			return PlanResult{}, fmt.Errorf("plan routes: claim orders for vehicle %s: %w", v.ID, err)
		}
		pool = withoutOrders(pool, ids)

		kept := keepClaimed(c.Stops, claimed)
		if len(kept) == 0 {
			continue
		}
		if lost := len(c.Stops) - len(kept); lost > 0 {
			vlog.WarnContext(ctx, "orders claimed elsewhere, dropped from route", "route_id", routeID, "lost", lost)
			c = p.builder.Sequence(ctx, kept, depotLoc, departAt, c.Method)
		}

		seq++
		route := &domain.Route{
			ID:                  routeID,
			Name:                fmt.Sprintf("%s Route %d (%s)", depot.Name, seq, date.Format(time.DateOnly)),
			VehicleID:           v.ID,
			DepotID:             depotID,
			Date:                date,
			Stops:               c.Stops,
			Status:              domain.RoutePlanned,
			EstimatedDuration:   time.Duration(c.DurationSeconds) * time.Second,
			TotalDistanceMeters: c.DistanceMeters,
			OptimizationMethod:  c.Method,
			CreatedAt:           departAt,
		}
		if err := route.Validate(v.CapacityUnits); err != nil {
			p.release(ctx, vlog, claimed)
			return PlanResult{}, fmt.Errorf("plan routes: %w", err)
		}
		if err := p.repos.Routes.CreateRoute(ctx, route); err != nil {
			p.release(ctx, vlog, claimed)
			return PlanResult{}, fmt.Errorf("plan routes: create route for vehicle %s: %w", v.ID, err)
		}

		vlog.InfoContext(ctx, "route planned",
			"route_id", route.ID,
			"stops", len(route.Stops),
			"units", route.CapacityUnits(),
			"capacity", v.CapacityUnits,
			"method", route.OptimizationMethod,
			"distance_m", route.TotalDistanceMeters,
		)
		result.Routes = append(result.Routes, route)
	}

	result.UnplacedOrderIDs = stopOrderIDs(pool)
	result.Message = summarize(result)
	return result, nil
}

func (p *Planner) lockDepot(depotID string) func() {
	p.mu.Lock()
	l, ok := p.locks[depotID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[depotID] = l
	}
	p.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// resolveStops geocodes stops once so routes carry coordinates.
func (p *Planner) resolveStops(ctx context.Context, stops []domain.Stop) []domain.Stop {
	locs := make([]domain.Location, len(stops))
	for i, s := range stops {
		locs[i] = s.Location()
	}
	locs = p.oracle.resolveAll(ctx, locs)

	out := make([]domain.Stop, len(stops))
	for i, s := range stops {
		s.Coords = locs[i].Coords
		out[i] = s
	}
	return out
}

func (p *Planner) routesOn(ctx context.Context, depotID string, date time.Time) (int, error) {
	existing, err := p.repos.Routes.ListRoutes(ctx, depotID)
	if err != nil {
		return 0, fmt.Errorf("plan routes: list routes: %w", err)
	}
	n := 0
	for _, r := range existing {
		if r.Date.Equal(date) {
			n++
		}
	}
	return n, nil
}

func (p *Planner) release(ctx context.Context, logger *slog.Logger, orderIDs []string) {
	if err := p.repos.Orders.ReleaseOrders(ctx, orderIDs); err != nil {
		logger.ErrorContext(ctx, "release claimed orders failed", "orders", len(orderIDs), "err", err)
	}
}

// activeFleet returns active vehicles, largest first, then by ID.
func activeFleet(vehicles []domain.Vehicle) []domain.Vehicle {
	out := make([]domain.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if v.Active && v.CapacityUnits > 0 {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CapacityUnits != out[j].CapacityUnits {
			return out[i].CapacityUnits > out[j].CapacityUnits
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// keepClaimed returns the stops whose order was claimed, in route order.
func keepClaimed(stops []domain.RouteStop, claimed []string) []domain.Stop {
	ok := make(map[string]bool, len(claimed))
	for _, id := range claimed {
		ok[id] = true
	}

	out := make([]domain.Stop, 0, len(stops))
	for _, rs := range stops {
		if ok[rs.Stop.OrderID] {
			out = append(out, rs.Stop)
		}
	}
	return out
}

func withoutOrders(stops []domain.Stop, orderIDs []string) []domain.Stop {
	drop := make(map[string]bool, len(orderIDs))
	for _, id := range orderIDs {
		drop[id] = true
	}

	out := stops[:0:0]
	for _, s := range stops {
		if !drop[s.OrderID] {
			out = append(out, s)
		}
	}
	return out
}

func stopOrderIDs(stops []domain.Stop) []string {
	ids := make([]string, 0, len(stops))
	for _, s := range stops {
		ids = append(ids, s.OrderID)
	}
	return ids
}

func summarize(r PlanResult) string {
	parts := []string{fmt.Sprintf("planned %d route(s)", len(r.Routes))}
	if n := len(r.UnplacedOrderIDs); n > 0 {
		parts = append(parts, fmt.Sprintf("%d order(s) left pending", n))
	}
	if n := len(r.UnroutableOrderIDs); n > 0 {
		parts = append(parts, fmt.Sprintf("%d order(s) exceed every vehicle", n))
	}
	if n := len(r.SkippedOrderIDs); n > 0 {
		parts = append(parts, fmt.Sprintf("%d order(s) skipped", n))
	}
	return strings.Join(parts, ", ")
}
