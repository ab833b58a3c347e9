package domain

import (
	"fmt"
	"time"
)

type RouteStatus string

const (
	RoutePlanned    RouteStatus = "planned"
	RouteInProgress RouteStatus = "in_progress"
	RouteCompleted  RouteStatus = "completed"
	RouteCancelled  RouteStatus = "cancelled"
)

type StopStatus string

const (
	StopPending   StopStatus = "pending"
	StopCompleted StopStatus = "completed"
)

type OptimizationMethod string

const (
	MethodGuidedLocalSearch OptimizationMethod = "guided_local_search"
	MethodGreedy            OptimizationMethod = "greedy_nearest_neighbor"
)

var routeTransitions = map[RouteStatus][]RouteStatus{
	RoutePlanned:    {RouteInProgress, RouteCancelled},
	RouteInProgress: {RouteCompleted, RouteCancelled},
}

// Represents a single position in a delivery route.
// SequenceNumber defines visiting order and is never changed after creation.
// EstimatedArrival is refreshed from telemetry; ETAUpdatedAt is set only
// when the value came from a live position update.
type RouteStop struct {
	SequenceNumber   int
	Stop             Stop
	Status           StopStatus
	EstimatedArrival time.Time
	ETAUpdatedAt     *time.Time
	CompletedAt      *time.Time
}

// Route is the output of one construction pass for one vehicle.
// It exclusively owns its RouteStops.
type Route struct {
	ID                  string
	Name                string
	VehicleID           string
	DriverID            string
	DepotID             string
	Date                time.Time
	Stops               []RouteStop
	Status              RouteStatus
	EstimatedDuration   time.Duration
	TotalDistanceMeters int
	OptimizationMethod  OptimizationMethod
	CreatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
}

// CanTransition reports whether the route may move to the given status.
func (r *Route) CanTransition(to RouteStatus) bool {
	for _, s := range routeTransitions[r.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the route to a new status, stamping lifecycle timestamps.
func (r *Route) Transition(to RouteStatus, at time.Time) error {
	if !r.CanTransition(to) {
		return fmt.Errorf("route %s: %s -> %s: %w", r.ID, r.Status, to, ErrInvalidTransition)
	}

	switch to {
	case RouteInProgress:
		r.StartedAt = &at
	case RouteCompleted, RouteCancelled:
		r.CompletedAt = &at
	}
	r.Status = to
	return nil
}

// Terminal reports whether the route accepts no further updates.
func (r *Route) Terminal() bool {
	return r.Status == RouteCompleted || r.Status == RouteCancelled
}

// CapacityUnits returns the cumulative capacity requirement of all stops.
func (r *Route) CapacityUnits() int {
	total := 0
	for _, rs := range r.Stops {
		total += rs.Stop.RequiredCapacityUnits
	}
	return total
}

// OrderIDs in sequence order.
func (r *Route) OrderIDs() []string {
	ids := make([]string, 0, len(r.Stops))
	for _, rs := range r.Stops {
		ids = append(ids, rs.Stop.OrderID)
	}
	return ids
}

// StopBySequence returns a pointer into r.Stops, or nil.
func (r *Route) StopBySequence(seq int) *RouteStop {
	for i := range r.Stops {
		if r.Stops[i].SequenceNumber == seq {
			return &r.Stops[i]
		}
	}
	return nil
}

// CurrentStop is the first stop still pending in sequence order.
func (r *Route) CurrentStop() *RouteStop {
	for i := range r.Stops {
		if r.Stops[i].Status == StopPending {
			return &r.Stops[i]
		}
	}
	return nil
}

// PendingIndexes returns indexes into r.Stops of stops not yet completed.
func (r *Route) PendingIndexes() []int {
	idx := make([]int, 0, len(r.Stops))
	for i := range r.Stops {
		if r.Stops[i].Status == StopPending {
			idx = append(idx, i)
		}
	}
	return idx
}

// Validate checks sequence contiguity and the capacity bound.
func (r *Route) Validate(capacity int) error {
	for i, rs := range r.Stops {
		if rs.SequenceNumber != i+1 {
			return fmt.Errorf("route %s: stop %d has sequence %d: %w", r.ID, i, rs.SequenceNumber, ErrValidation)
		}
	}
	if used := r.CapacityUnits(); used > capacity {
		return fmt.Errorf("route %s: %d units on vehicle of %d: %w", r.ID, used, capacity, ErrCapacityExceeded)
	}
	return nil
}

// Clone returns a deep copy safe to mutate independently.
func (r *Route) Clone() *Route {
	c := *r
	c.Stops = make([]RouteStop, len(r.Stops))
	copy(c.Stops, r.Stops)
	return &c
}
