package solver

import (
	"context"
	"errors"
	"fmt"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/ports"
	"time"
)

const epsilon = 1e-9

// GuidedLocalSearch solves a single-vehicle capacitated routing problem:
// a cheapest-arc initial tour from the depot, then local search (2-opt
// and relocate) on arc costs augmented with penalties that push the
// search out of local minima. The tour is closed at the depot. Search is
// deterministic and stops at the time limit, the iteration cap, or after
// a run of iterations without a new best tour.
type GuidedLocalSearch struct {
	// Lambda scales penalties relative to the average arc cost of the
	// first local optimum.
	Lambda float64
	// MaxIterations caps penalty rounds. Zero means no cap.
	MaxIterations int
	// MaxStale stops the search after this many rounds without improvement.
	MaxStale int

	now func() time.Time
}

var _ ports.CapacitatedSolver = (*GuidedLocalSearch)(nil)

func NewGuidedLocalSearch() *GuidedLocalSearch {
	return &GuidedLocalSearch{
		Lambda:        0.1,
		MaxIterations: 5000,
		MaxStale:      250,
		now:           time.Now,
	}
}

func (s *GuidedLocalSearch) Solve(ctx context.Context, req ports.SolveRequest) ([]int, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	n := len(req.Costs)
	if n == 2 {
		return []int{1}, nil
	}

	now := s.now
	if now == nil {
		now = time.Now
	}
	var deadline time.Time
	if req.TimeLimit > 0 {
		deadline = now().Add(req.TimeLimit)
	}

	iter := 0
	halt := func() error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("gls: abandoned after %d iterations: %v: %w", iter, err, domain.ErrSolverFailed)
		}
		if !deadline.IsZero() && now().After(deadline) {
			return errTimeUp
		}
		return nil
	}

	cost := func(a, b int) float64 { return float64(req.Costs[a][b]) }

	tour := cheapestArc(req.Costs)
	search := newLocalSearch(len(tour), halt)
	if err := search.run(tour, cost); err != nil && !errors.Is(err, errTimeUp) {
		return nil, err
	}

	best := append([]int(nil), tour...)
	bestCost := tourCost(best, cost)
	if !deadline.IsZero() && now().After(deadline) {
		return best, nil
	}

	penalties := make([][]int, n)
	for i := range penalties {
		penalties[i] = make([]int, n)
	}
	lambda := s.Lambda * bestCost / float64(len(tour)+1)
	augmented := func(a, b int) float64 {
		return float64(req.Costs[a][b]) + lambda*float64(penalties[a][b])
	}

	stale := 0
	for ; s.MaxIterations == 0 || iter < s.MaxIterations; iter++ {
		if s.MaxStale > 0 && stale >= s.MaxStale {
			break
		}

		penalize(tour, req.Costs, penalties)
		err := search.run(tour, augmented)
		if err != nil && !errors.Is(err, errTimeUp) {
			return nil, err
		}

		if c := tourCost(tour, cost); c < bestCost-epsilon {
			bestCost = c
			copy(best, tour)
			stale = 0
		} else {
			stale++
		}
		if err != nil {
			break
		}
	}

	return best, nil
}

func validate(req ports.SolveRequest) error {
	n := len(req.Costs)
	if n < 2 {
		return fmt.Errorf("gls: need a depot and at least one node, got %d: %w", n, domain.ErrSolverFailed)
	}
	for i, row := range req.Costs {
		if len(row) != n {
			return fmt.Errorf("gls: cost row %d has %d entries, want %d: %w", i, len(row), n, domain.ErrSolverFailed)
		}
	}
	if len(req.Demands) != n {
		return fmt.Errorf("gls: %d demands for %d nodes: %w", len(req.Demands), n, domain.ErrSolverFailed)
	}

	total := 0
	for i := 1; i < n; i++ {
		if req.Demands[i] < 1 {
			return fmt.Errorf("gls: node %d has demand %d: %w", i, req.Demands[i], domain.ErrSolverFailed)
		}
		total += req.Demands[i]
	}
	if total > req.Capacity {
		return fmt.Errorf("gls: no feasible tour, demand %d exceeds capacity %d: %w", total, req.Capacity, domain.ErrSolverFailed)
	}
	return nil
}

// cheapestArc extends a path from the depot by the cheapest outgoing arc
// to an unvisited node, lowest index on ties.
func cheapestArc(costs [][]int64) []int {
	n := len(costs)
	visited := make([]bool, n)
	visited[0] = true

	tour := make([]int, 0, n-1)
	current := 0
	for len(tour) < n-1 {
		next := -1
		for j := 1; j < n; j++ {
			if visited[j] {
				continue
			}
			if next == -1 || costs[current][j] < costs[current][next] {
				next = j
			}
		}
		visited[next] = true
		tour = append(tour, next)
		current = next
	}
	return tour
}

// tourCost prices depot -> tour... -> depot.
func tourCost(tour []int, cost func(a, b int) float64) float64 {
	total := cost(0, tour[0])
	for i := 1; i < len(tour); i++ {
		total += cost(tour[i-1], tour[i])
	}
	return total + cost(tour[len(tour)-1], 0)
}

// penalize increments the penalty of the tour arcs with maximum utility
// cost / (1 + penalty).
func penalize(tour []int, costs [][]int64, penalties [][]int) {
	arcs := make([][2]int, 0, len(tour)+1)
	prev := 0
	for _, node := range tour {
		arcs = append(arcs, [2]int{prev, node})
		prev = node
	}
	arcs = append(arcs, [2]int{prev, 0})

	maxUtil := -1.0
	for _, a := range arcs {
		if u := float64(costs[a[0]][a[1]]) / float64(1+penalties[a[0]][a[1]]); u > maxUtil {
			maxUtil = u
		}
	}
	for _, a := range arcs {
		if u := float64(costs[a[0]][a[1]]) / float64(1+penalties[a[0]][a[1]]); u >= maxUtil-epsilon {
			penalties[a[0]][a[1]]++
		}
	}
}
