package domain

import (
	"errors"
	"testing"
	"time"
)

func newTestRoute() *Route {
	return &Route{
		ID:     "r1",
		Status: RoutePlanned,
		Stops: []RouteStop{
			{SequenceNumber: 1, Stop: Stop{OrderID: "o1", RequiredCapacityUnits: 2}, Status: StopPending},
			{SequenceNumber: 2, Stop: Stop{OrderID: "o2", RequiredCapacityUnits: 3}, Status: StopPending},
		},
	}
}

func TestRouteTransitions(t *testing.T) {
	at := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	r := newTestRoute()
	if err := r.Transition(RouteCompleted, at); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("planned -> completed should fail, got %v", err)
	}
	if err := r.Transition(RouteInProgress, at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.StartedAt == nil || !r.StartedAt.Equal(at) {
		t.Fatalf("StartedAt = %v, want %v", r.StartedAt, at)
	}
	if err := r.Transition(RouteCompleted, at.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Terminal() {
		t.Fatal("completed route should be terminal")
	}
	if err := r.Transition(RouteCancelled, at); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("completed -> cancelled should fail, got %v", err)
	}

	r2 := newTestRoute()
	if err := r2.Transition(RouteCancelled, at); err != nil {
		t.Fatalf("planned -> cancelled: %v", err)
	}
}

func TestRouteValidate(t *testing.T) {
	r := newTestRoute()
	if err := r.Validate(5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Validate(4); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	r.Stops[1].SequenceNumber = 3
	if err := r.Validate(5); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for gap, got %v", err)
	}
}

func TestRouteCurrentStop(t *testing.T) {
	r := newTestRoute()
	if cs := r.CurrentStop(); cs == nil || cs.SequenceNumber != 1 {
		t.Fatalf("current stop = %+v, want sequence 1", cs)
	}

	r.Stops[0].Status = StopCompleted
	if cs := r.CurrentStop(); cs == nil || cs.SequenceNumber != 2 {
		t.Fatalf("current stop = %+v, want sequence 2", cs)
	}

	r.Stops[1].Status = StopCompleted
	if cs := r.CurrentStop(); cs != nil {
		t.Fatalf("expected no current stop, got %+v", cs)
	}
	if len(r.PendingIndexes()) != 0 {
		t.Fatal("expected no pending stops")
	}
}

func TestRouteCloneIsIndependent(t *testing.T) {
	r := newTestRoute()
	c := r.Clone()
	c.Stops[0].Status = StopCompleted

	if r.Stops[0].Status != StopPending {
		t.Fatal("mutating clone changed original")
	}
}
