package ports

import (
	"context"
	"time"
)

// SolveRequest describes a single-vehicle capacitated routing problem.
// Node 0 is the depot; Demands[0] is ignored.
type SolveRequest struct {
	Costs     [][]int64
	Demands   []int
	Capacity  int
	TimeLimit time.Duration
}

// CapacitatedSolver returns the visiting order of node indexes, depot excluded.
type CapacitatedSolver interface {
	Solve(ctx context.Context, req SolveRequest) ([]int, error)
}
