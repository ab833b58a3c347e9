package services

import (
	"context"
	"errors"
	"ice-route-service/internal/adapters/distance"
	"ice-route-service/internal/adapters/solver"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/ports"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type solverFunc func(ctx context.Context, req ports.SolveRequest) ([]int, error)

func (f solverFunc) Solve(ctx context.Context, req ports.SolveRequest) ([]int, error) {
	return f(ctx, req)
}

var _ ports.CapacitatedSolver = solverFunc(nil)

var depart = time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)

func stopAt(orderID string, units int, coords *domain.Coordinates) domain.Stop {
	return domain.Stop{
		OrderID:               orderID,
		CustomerID:            "cust_" + orderID,
		Address:               "addr " + orderID,
		Coords:                coords,
		RequiredCapacityUnits: units,
	}
}

func orderIDs(c Construction) []string {
	ids := make([]string, 0, len(c.Stops))
	for _, rs := range c.Stops {
		ids = append(ids, rs.Stop.OrderID)
	}
	return ids
}

func TestRouteBuilder_capacityExhaustion(t *testing.T) {
	stops := []domain.Stop{
		stopAt("o1", 1, at(31.1, -93.2)),
		stopAt("o2", 1, at(31.1, -93.2)),
		stopAt("o3", 1, at(31.1, -93.2)),
	}
	b := NewRouteBuilder(NewOracle(), WithSolver(solver.NewGuidedLocalSearch(), time.Second))

	c := b.Build(context.Background(), stops, 2, domain.Location{Address: "depot", Coords: at(31, -93)}, depart)

	assert.Equal(t, domain.MethodGreedy, c.Method)
	assert.Equal(t, []string{"o1", "o2"}, orderIDs(c))
	assert.Equal(t, 1, c.Stops[0].SequenceNumber)
	assert.Equal(t, 2, c.Stops[1].SequenceNumber)
}

func TestRouteBuilder_oversizedStopIsNeverPlaced(t *testing.T) {
	b := NewRouteBuilder(NewOracle())

	c := b.Build(context.Background(), []domain.Stop{stopAt("big", 5, at(31.1, -93))}, 3,
		domain.Location{Address: "depot", Coords: at(31, -93)}, depart)

	assert.True(t, c.Empty())
	assert.Zero(t, c.DistanceMeters)
}

func TestRouteBuilder_greedyVisitsNearestFirst(t *testing.T) {
	// ~2 mi and ~20 mi due north of the depot.
	depot := domain.Location{Address: "X", Coords: at(40, -75)}
	near := domain.Stop{OrderID: "a", Address: "A", Coords: at(40.028947, -75), RequiredCapacityUnits: 1}
	far := domain.Stop{OrderID: "b", Address: "B", Coords: at(40.28947, -75), RequiredCapacityUnits: 1}

	c := NewRouteBuilder(NewOracle()).Build(context.Background(), []domain.Stop{far, near}, 10, depot, depart)

	require.Len(t, c.Stops, 2)
	assert.Equal(t, []string{"a", "b"}, orderIDs(c))
	assert.Equal(t, domain.MethodGreedy, c.Method)
	// depot -> A -> B -> depot is 2 + 18 + 20 miles.
	assert.InDelta(t, MilesToMeters(40), c.DistanceMeters, 100)
	assert.True(t, c.Stops[0].EstimatedArrival.After(depart))
	assert.True(t, c.Stops[1].EstimatedArrival.After(c.Stops[0].EstimatedArrival))
}

func TestRouteBuilder_greedyTakesNearestFittingStop(t *testing.T) {
	depot := domain.Location{Address: "depot", Coords: at(31, -93)}
	stops := []domain.Stop{
		stopAt("large", 3, at(31.01, -93)),
		stopAt("small1", 1, at(31.2, -93)),
		stopAt("small2", 1, at(31.3, -93)),
	}
	b := NewRouteBuilder(NewOracle())

	full := b.Build(context.Background(), stops, 3, depot, depart)
	roomy := b.Build(context.Background(), stops, 4, depot, depart)

	assert.Equal(t, []string{"large"}, orderIDs(full))
	assert.Equal(t, []string{"large", "small1"}, orderIDs(roomy))
}

func TestRouteBuilder_greedyIsDeterministic(t *testing.T) {
	depot := domain.Location{Address: "Depot, Leesville LA"}
	stops := []domain.Stop{
		{OrderID: "1", Address: "12 Oak St", RequiredCapacityUnits: 2},
		{OrderID: "2", Address: "9 Pine Ave", RequiredCapacityUnits: 1},
		{OrderID: "3", Address: "400 Bayou Rd", RequiredCapacityUnits: 3},
		{OrderID: "4", Address: "7 Elm Ct", RequiredCapacityUnits: 1},
		{OrderID: "5", Address: "88 Cedar Ln", RequiredCapacityUnits: 2},
	}

	first := NewRouteBuilder(NewOracle()).Build(context.Background(), stops, 6, depot, depart)
	second := NewRouteBuilder(NewOracle()).Build(context.Background(), stops, 6, depot, depart)

	require.False(t, first.Empty())
	assert.Equal(t, first, second)
}

func TestRouteBuilder_solverTier(t *testing.T) {
	depot := domain.Location{Address: "depot", Coords: at(31, -93)}
	stops := []domain.Stop{
		stopAt("o1", 2, at(31.1, -93)),
		stopAt("o2", 1, at(31.1, -93.1)),
		stopAt("o3", 2, at(31, -93.1)),
		stopAt("o4", 1, at(30.9, -93.05)),
	}

	c := NewRouteBuilder(NewOracle(), WithSolver(solver.NewGuidedLocalSearch(), time.Second)).
		Build(context.Background(), stops, 10, depot, depart)

	assert.Equal(t, domain.MethodGuidedLocalSearch, c.Method)
	assert.ElementsMatch(t, []string{"o1", "o2", "o3", "o4"}, orderIDs(c))
	for i, rs := range c.Stops {
		assert.Equal(t, i+1, rs.SequenceNumber)
		assert.Equal(t, domain.StopPending, rs.Status)
	}
	assert.Positive(t, c.DistanceMeters)
	assert.Positive(t, c.DurationSeconds)
}

func TestRouteBuilder_solverFailureFallsBackToGreedy(t *testing.T) {
	depot := domain.Location{Address: "depot", Coords: at(31, -93)}
	stops := []domain.Stop{
		stopAt("o1", 1, at(31.3, -93)),
		stopAt("o2", 1, at(31.1, -93)),
	}

	cases := map[string]solverFunc{
		"error": func(ctx context.Context, req ports.SolveRequest) ([]int, error) {
			return nil, domain.ErrSolverUnavailable
		},
		"duplicate node": func(ctx context.Context, req ports.SolveRequest) ([]int, error) {
			return []int{1, 1}, nil
		},
		"depot in tour": func(ctx context.Context, req ports.SolveRequest) ([]int, error) {
			return []int{0, 1, 2}, nil
		},
		"empty": func(ctx context.Context, req ports.SolveRequest) ([]int, error) {
			return nil, nil
		},
	}

	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			c := NewRouteBuilder(NewOracle(), WithSolver(s, time.Second)).
				Build(context.Background(), stops, 5, depot, depart)

			assert.Equal(t, domain.MethodGreedy, c.Method)
			assert.Equal(t, []string{"o2", "o1"}, orderIDs(c))
		})
	}
}

func TestRouteBuilder_singleStopSkipsSolver(t *testing.T) {
	called := false
	s := solverFunc(func(ctx context.Context, req ports.SolveRequest) ([]int, error) {
		called = true
		return []int{1}, nil
	})

	c := NewRouteBuilder(NewOracle(), WithSolver(s, time.Second)).Build(context.Background(),
		[]domain.Stop{stopAt("only", 1, at(31.1, -93))}, 4,
		domain.Location{Address: "depot", Coords: at(31, -93)}, depart)

	assert.False(t, called)
	assert.Equal(t, []string{"only"}, orderIDs(c))
}

func TestRouteBuilder_overfullPoolSkipsSolver(t *testing.T) {
	called := false
	s := solverFunc(func(ctx context.Context, req ports.SolveRequest) ([]int, error) {
		called = true
		return nil, domain.ErrSolverFailed
	})
	stops := []domain.Stop{
		stopAt("o1", 2, at(31.1, -93)),
		stopAt("o2", 2, at(31.2, -93)),
		stopAt("o3", 2, at(31.3, -93)),
	}

	c := NewRouteBuilder(NewOracle(), WithSolver(s, time.Second)).
		Build(context.Background(), stops, 4, domain.Location{Address: "depot", Coords: at(31, -93)}, depart)

	assert.False(t, called, "solver only runs when every candidate fits")
	assert.Equal(t, domain.MethodGreedy, c.Method)
	assert.Equal(t, []string{"o1", "o2"}, orderIDs(c))
}

func TestRouteBuilder_sequenceKeepsGivenOrder(t *testing.T) {
	provider := distance.NewMockMappingProvider([]distance.MockPair{
		{From: "depot", To: "addr b", Meters: 4000, Seconds: 400},
		{From: "addr b", To: "addr a", Meters: 1000, Seconds: 100},
		{From: "addr a", To: "depot", Meters: 3000, Seconds: 300},
	}, nil)
	depot := domain.Location{Address: "depot", Coords: at(31, -93)}
	stops := []domain.Stop{stopAt("b", 1, at(31.2, -93)), stopAt("a", 1, at(31.1, -93))}

	c := NewRouteBuilder(NewOracle(WithMappingProvider(provider))).
		Sequence(context.Background(), stops, depot, depart, domain.MethodGuidedLocalSearch)

	assert.Equal(t, []string{"b", "a"}, orderIDs(c))
	assert.Equal(t, domain.MethodGuidedLocalSearch, c.Method)
	assert.Equal(t, 8000, c.DistanceMeters)
	assert.Equal(t, 800, c.DurationSeconds)
	assert.Equal(t, depart.Add(400*time.Second), c.Stops[0].EstimatedArrival)
	assert.Equal(t, depart.Add(500*time.Second), c.Stops[1].EstimatedArrival)
	assert.Equal(t, 2, c.Stops[1].SequenceNumber)
}

func TestRouteBuilder_solverGetsRealDemands(t *testing.T) {
	var got ports.SolveRequest
	s := solverFunc(func(ctx context.Context, req ports.SolveRequest) ([]int, error) {
		got = req
		return []int{2, 1}, nil
	})
	stops := []domain.Stop{
		stopAt("o1", 3, at(31.1, -93)),
		stopAt("o2", 2, at(31.2, -93)),
	}

	c := NewRouteBuilder(NewOracle(), WithSolver(s, 3*time.Second)).
		Build(context.Background(), stops, 8, domain.Location{Address: "depot", Coords: at(31, -93)}, depart)

	assert.Equal(t, []int{0, 3, 2}, got.Demands)
	assert.Equal(t, 8, got.Capacity)
	assert.Equal(t, 3*time.Second, got.TimeLimit)
	require.Len(t, got.Costs, 3)
	assert.Zero(t, got.Costs[1][1])
	assert.Equal(t, []string{"o2", "o1"}, orderIDs(c))
}

func TestRouteBuilder_capacityInvariant(t *testing.T) {
	depot := domain.Location{Address: "depot", Coords: at(31, -93)}
	var stops []domain.Stop
	for i, units := range []int{4, 1, 7, 2, 2, 5, 1, 3, 9, 1} {
		stops = append(stops, stopAt(string(rune('a'+i)), units, at(31+float64(i)*0.01, -93+float64(i%3)*0.02)))
	}

	for _, capacity := range []int{1, 3, 7, 10, 26} {
		for name, b := range map[string]*RouteBuilder{
			"greedy": NewRouteBuilder(NewOracle()),
			"solver": NewRouteBuilder(NewOracle(), WithSolver(solver.NewGuidedLocalSearch(), time.Second)),
		} {
			c := b.Build(context.Background(), stops, capacity, depot, depart)
			route := domain.Route{ID: name, Stops: c.Stops}

			assert.NoError(t, route.Validate(capacity), "%s capacity %d", name, capacity)
			assert.False(t, c.Empty(), "%s capacity %d", name, capacity)
		}
	}
}

func TestRouteBuilder_usesLiveDistances(t *testing.T) {
	provider := distance.NewMockMappingProvider([]distance.MockPair{
		{From: "depot", To: "near by road", Meters: 9000, Seconds: 900},
		{From: "depot", To: "far by road", Meters: 1000, Seconds: 100},
		{From: "far by road", To: "near by road", Meters: 2000, Seconds: 200},
		{From: "near by road", To: "depot", Meters: 9000, Seconds: 900},
	}, nil)
	depot := domain.Location{Address: "depot", Coords: at(31, -93)}
	stops := []domain.Stop{
		{OrderID: "near", Address: "near by road", Coords: at(31.01, -93), RequiredCapacityUnits: 1},
		{OrderID: "far", Address: "far by road", Coords: at(31.5, -93), RequiredCapacityUnits: 1},
	}

	c := NewRouteBuilder(NewOracle(WithMappingProvider(provider))).
		Build(context.Background(), stops, 4, depot, depart)

	assert.Equal(t, []string{"far", "near"}, orderIDs(c))
	assert.Equal(t, 12000, c.DistanceMeters)
	assert.Equal(t, depart.Add(100*time.Second), c.Stops[0].EstimatedArrival)
	assert.Equal(t, depart.Add(300*time.Second), c.Stops[1].EstimatedArrival)
}

func TestCheckSolution(t *testing.T) {
	demands := []int{0, 2, 2, 3}

	assert.NoError(t, checkSolution([]int{3, 1}, demands, 5))
	assert.True(t, errors.Is(checkSolution([]int{1, 2, 3}, demands, 5), domain.ErrSolverFailed))
	assert.True(t, errors.Is(checkSolution([]int{4}, demands, 5), domain.ErrSolverFailed))
}
