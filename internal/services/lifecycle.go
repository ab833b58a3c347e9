package services

import (
	"context"
	"fmt"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/platform/obs"
	"ice-route-service/internal/ports"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Lifecycle drives planned routes through execution: start, stop
// completion, cancellation, driver assignment, and ETA refresh from
// driver telemetry. All mutations of one route are serialized.
type Lifecycle struct {
	routes         ports.RouteRepository
	orders         ports.OrderRepository
	oracle         *Oracle
	minutesPerStop int
	logger         *slog.Logger
	now            func() time.Time

	mu         sync.Mutex
	routeLocks map[string]*sync.Mutex

	posMu     sync.RWMutex
	positions map[string]domain.DriverPosition
}

type LifecycleOption func(*Lifecycle)

// WithMinutesPerStop sets the per-stop allowance used when no live ETA exists.
func WithMinutesPerStop(n int) LifecycleOption {
	return func(l *Lifecycle) {
		if n > 0 {
			l.minutesPerStop = n
		}
	}
}

func WithLifecycleLogger(lg *slog.Logger) LifecycleOption {
	return func(l *Lifecycle) { l.logger = lg }
}

func WithLifecycleClock(now func() time.Time) LifecycleOption {
	return func(l *Lifecycle) { l.now = now }
}

func NewLifecycle(routes ports.RouteRepository, orders ports.OrderRepository, oracle *Oracle, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		routes:         routes,
		orders:         orders,
		oracle:         oracle,
		minutesPerStop: 30,
		logger:         slog.Default(),
		now:            time.Now,
		routeLocks:     make(map[string]*sync.Mutex),
		positions:      make(map[string]domain.DriverPosition),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lifecycle) lockRoute(id string) func() {
	l.mu.Lock()
	m, ok := l.routeLocks[id]
	if !ok {
		m = &sync.Mutex{}
		l.routeLocks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (l *Lifecycle) GetRoute(ctx context.Context, id string) (*domain.Route, error) {
	r, err := l.routes.GetRoute(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get route: %w", err)
	}
	return r, nil
}

func (l *Lifecycle) ListRoutes(ctx context.Context, depotID string) ([]*domain.Route, error) {
	routes, err := l.routes.ListRoutes(ctx, depotID)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return routes, nil
}

// orderWrite is an order status change that follows a route change.
// Release returns the orders to the pending pool instead of setting Status.
type orderWrite struct {
	ids     []string
	status  domain.OrderStatus
	release bool
}

func (l *Lifecycle) applyOrderWrite(ctx context.Context, w orderWrite) error {
	if len(w.ids) == 0 {
		return nil
	}
	if w.release {
		if err := l.orders.ReleaseOrders(ctx, w.ids); err != nil {
			return fmt.Errorf("release orders: %w", err)
		}
		return nil
	}
	if err := l.orders.UpdateOrderStatus(ctx, w.ids, w.status); err != nil {
		return fmt.Errorf("mark orders %s: %w", w.status, err)
	}
	return nil
}

// mutate loads a route under its lock, applies fn, persists the route,
// and only then applies the order writes fn asked for. If an order write
// fails the saved route is put back, so orders never change for a route
// change that did not stick.
func (l *Lifecycle) mutate(ctx context.Context, op, id string, fn func(r *domain.Route, now time.Time) ([]orderWrite, error)) (_ *domain.Route, err error) {
	ctx, done := obs.Span(ctx, "lifecycle."+op)
	defer func() { done(&err) }()

	unlock := l.lockRoute(id)
	defer unlock()

	r, err := l.routes.GetRoute(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	before := r.Clone()

	writes, err := fn(r, l.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := l.routes.UpdateRoute(ctx, r); err != nil {
		return nil, fmt.Errorf("%s: update route %s: %w", op, id, err)
	}

	for _, w := range writes {
		if err := l.applyOrderWrite(ctx, w); err != nil {
			if rerr := l.routes.UpdateRoute(ctx, before); rerr != nil {
				l.logger.ErrorContext(ctx, "route left ahead of its orders", "route_id", id, "op", op, "err", rerr)
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return r, nil
}

// StartRoute moves a planned route to in_progress and its orders to in_transit.
func (l *Lifecycle) StartRoute(ctx context.Context, id string) (*domain.Route, error) {
	r, err := l.mutate(ctx, "StartRoute", id, func(r *domain.Route, now time.Time) ([]orderWrite, error) {
		w, err := beginRoute(r, now)
		if err != nil {
			return nil, err
		}
		return []orderWrite{w}, nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.InfoContext(ctx, "route started", "route_id", r.ID, "vehicle_id", r.VehicleID, "depot_id", r.DepotID)
	return r, nil
}

func beginRoute(r *domain.Route, now time.Time) (orderWrite, error) {
	if err := r.Transition(domain.RouteInProgress, now); err != nil {
		return orderWrite{}, err
	}
	return orderWrite{ids: pendingOrderIDs(r), status: domain.OrderInTransit}, nil
}

// CompleteStop marks one stop delivered. A planned route starts
// implicitly, and the route completes with its last stop.
func (l *Lifecycle) CompleteStop(ctx context.Context, id string, seq int) (*domain.Route, error) {
	var (
		started bool
		orderID string
	)
	r, err := l.mutate(ctx, "CompleteStop", id, func(r *domain.Route, now time.Time) ([]orderWrite, error) {
		if r.Terminal() {
			return nil, fmt.Errorf("route %s is %s: %w", r.ID, r.Status, domain.ErrInvalidTransition)
		}
		rs := r.StopBySequence(seq)
		if rs == nil {
			return nil, fmt.Errorf("route %s stop %d: %w", r.ID, seq, domain.ErrNotFound)
		}
		if rs.Status == domain.StopCompleted {
			return nil, fmt.Errorf("route %s stop %d already completed: %w", r.ID, seq, domain.ErrInvalidTransition)
		}

		var writes []orderWrite
		if r.Status == domain.RoutePlanned {
			w, err := beginRoute(r, now)
			if err != nil {
				return nil, err
			}
			writes = append(writes, w)
			started = true
		}

		rs.Status = domain.StopCompleted
		rs.CompletedAt = &now
		orderID = rs.Stop.OrderID
		writes = append(writes, orderWrite{ids: []string{orderID}, status: domain.OrderDelivered})

		if r.CurrentStop() == nil {
			if err := r.Transition(domain.RouteCompleted, now); err != nil {
				return nil, err
			}
		}
		return writes, nil
	})
	if err != nil {
		return nil, err
	}

	if started {
		l.logger.InfoContext(ctx, "route started", "route_id", r.ID, "vehicle_id", r.VehicleID, "depot_id", r.DepotID)
	}
	l.logger.InfoContext(ctx, "stop completed", "route_id", r.ID, "order_id", orderID, "sequence", seq)
	if r.Status == domain.RouteCompleted {
		l.logger.InfoContext(ctx, "route completed", "route_id", r.ID, "vehicle_id", r.VehicleID)
	}
	return r, nil
}

// CancelRoute cancels a planned or running route and returns the orders
// of its undelivered stops to the pending pool.
func (l *Lifecycle) CancelRoute(ctx context.Context, id string) (*domain.Route, error) {
	var released []string
	r, err := l.mutate(ctx, "CancelRoute", id, func(r *domain.Route, now time.Time) ([]orderWrite, error) {
		if err := r.Transition(domain.RouteCancelled, now); err != nil {
			return nil, err
		}
		released = pendingOrderIDs(r)
		return []orderWrite{{ids: released, release: true}}, nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.InfoContext(ctx, "route cancelled", "route_id", r.ID, "released", len(released))
	return r, nil
}

func (l *Lifecycle) AssignDriver(ctx context.Context, id, driverID string) (*domain.Route, error) {
	return l.mutate(ctx, "AssignDriver", id, func(r *domain.Route, now time.Time) ([]orderWrite, error) {
		if driverID == "" {
			return nil, fmt.Errorf("driver id is required: %w", domain.ErrValidation)
		}
		if r.Terminal() {
			return nil, fmt.Errorf("route %s is %s: %w", r.ID, r.Status, domain.ErrInvalidTransition)
		}
		r.DriverID = driverID
		return nil, nil
	})
}

// Progress reports completion and an estimated finish time. A live ETA on
// the last pending stop wins over the per-stop allowance.
func (l *Lifecycle) Progress(ctx context.Context, id string) (domain.Progress, error) {
	r, err := l.routes.GetRoute(ctx, id)
	if err != nil {
		return domain.Progress{}, fmt.Errorf("progress: %w", err)
	}

	p := domain.Progress{
		RouteID:    r.ID,
		Status:     r.Status,
		TotalStops: len(r.Stops),
	}
	for _, rs := range r.Stops {
		if rs.Status == domain.StopCompleted {
			p.CompletedStops++
		}
	}
	if p.TotalStops > 0 {
		p.Percentage = math.Round(float64(p.CompletedStops)/float64(p.TotalStops)*1000) / 10
	}
	if cur := r.CurrentStop(); cur != nil {
		c := *cur
		p.CurrentStop = &c
	}

	if r.Terminal() {
		return p, nil
	}

	pending := r.PendingIndexes()
	if len(pending) == 0 {
		return p, nil
	}
	var eta time.Time
	if last := r.Stops[pending[len(pending)-1]]; last.ETAUpdatedAt != nil {
		eta = last.EstimatedArrival
	} else {
		eta = l.now().Add(time.Duration(len(pending)*l.minutesPerStop) * time.Minute)
	}
	p.EstimatedCompletion = &eta

	return p, nil
}

// OnDriverPosition records the driver's position and, for an active
// route, recomputes every pending stop's ETA from that position with one
// traffic-aware distance row. Stops the oracle cannot price keep their ETA.
func (l *Lifecycle) OnDriverPosition(ctx context.Context, pos domain.DriverPosition) (err error) {
	ctx, done := obs.Span(ctx, "lifecycle.OnDriverPosition")
	defer func() { done(&err) }()

	if pos.DriverID == "" {
		return fmt.Errorf("driver position: driver id is required: %w", domain.ErrValidation)
	}
	if !pos.Coords.Valid() {
		return fmt.Errorf("driver position: coordinates %s out of range: %w", pos.Coords, domain.ErrValidation)
	}
	now := l.now()
	if pos.Timestamp.IsZero() {
		pos.Timestamp = now
	}

	l.posMu.Lock()
	l.positions[pos.DriverID] = pos
	l.posMu.Unlock()

	if pos.RouteID == "" {
		return nil
	}

	unlock := l.lockRoute(pos.RouteID)
	defer unlock()

	r, err := l.routes.GetRoute(ctx, pos.RouteID)
	if err != nil {
		return fmt.Errorf("driver position: %w", err)
	}
	logger := l.logger.With("route_id", r.ID, "driver_id", pos.DriverID)
	if r.Terminal() {
		logger.DebugContext(ctx, "ignoring position for finished route", "status", r.Status)
		return nil
	}

	pending := r.PendingIndexes()
	if len(pending) == 0 {
		return nil
	}

	dests := make([]domain.Location, len(pending))
	for k, i := range pending {
		stop := &r.Stops[i].Stop
		if stop.Coords == nil {
			stop.Coords = l.oracle.Geocode(ctx, stop.Address)
		}
		dests[k] = stop.Location()
	}

	origin := domain.Location{Coords: &pos.Coords}
	cells := l.oracle.Row(ctx, origin, dests, ports.MatrixOptions{Traffic: true, DepartAt: now})

	updated := 0
	for k, i := range pending {
		c := cells[k]
		if c.Err != nil {
			logger.WarnContext(ctx, "eta not refreshed", "order_id", r.Stops[i].Stop.OrderID, "err", c.Err)
			continue
		}
		// An ETA is always in the future, even for a driver parked at the stop.
		r.Stops[i].EstimatedArrival = now.Add(time.Duration(max(c.Result.DurationSeconds, 1)) * time.Second)
		r.Stops[i].ETAUpdatedAt = &now
		updated++
	}

	if err := l.routes.UpdateRoute(ctx, r); err != nil {
		return fmt.Errorf("driver position: update route %s: %w", r.ID, err)
	}
	logger.DebugContext(ctx, "etas refreshed", "updated", updated, "pending", len(pending))
	return nil
}

// DriverLocation returns the last position reported by the driver.
func (l *Lifecycle) DriverLocation(ctx context.Context, driverID string) (domain.DriverPosition, bool) {
	l.posMu.RLock()
	defer l.posMu.RUnlock()
	pos, ok := l.positions[driverID]
	return pos, ok
}

func pendingOrderIDs(r *domain.Route) []string {
	ids := make([]string, 0, len(r.Stops))
	for _, i := range r.PendingIndexes() {
		ids = append(ids, r.Stops[i].Stop.OrderID)
	}
	return ids
}
