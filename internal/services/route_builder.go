package services

import (
	"context"
	"fmt"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/platform/obs"
	"ice-route-service/internal/ports"
	"log/slog"
	"math"
	"sort"
	"time"
)

// Cost handed to the solver for pairs the oracle could not price.
const unavailableCost int64 = math.MaxInt32

// Construction is the result of building one vehicle's route.
// An empty Stops slice means nothing could be placed.
type Construction struct {
	Stops           []domain.RouteStop
	Method          domain.OptimizationMethod
	DistanceMeters  int
	DurationSeconds int
}

func (c Construction) Empty() bool {
	return len(c.Stops) == 0
}

// RouteBuilder sequences stops onto a single vehicle. It prefers the
// capacitated solver and falls back to greedy nearest-feasible-neighbor
// whenever the solver is missing, fails, or there is only one candidate.
// The solver only runs when every candidate fits at once; otherwise
// greedy decides which stops to leave for the next vehicle.
type RouteBuilder struct {
	oracle    *Oracle
	solver    ports.CapacitatedSolver
	timeLimit time.Duration
	logger    *slog.Logger
}

type RouteBuilderOption func(*RouteBuilder)

// WithSolver enables the solver tier. A nil solver leaves only greedy.
func WithSolver(s ports.CapacitatedSolver, timeLimit time.Duration) RouteBuilderOption {
	return func(b *RouteBuilder) {
		b.solver = s
		if timeLimit > 0 {
			b.timeLimit = timeLimit
		}
	}
}

func WithBuilderLogger(l *slog.Logger) RouteBuilderOption {
	return func(b *RouteBuilder) { b.logger = l }
}

func NewRouteBuilder(oracle *Oracle, opts ...RouteBuilderOption) *RouteBuilder {
	b := &RouteBuilder{
		oracle:    oracle,
		timeLimit: 10 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build places as many stops as fit on a vehicle of the given capacity,
// starting from depot at departAt. It never fails: problems in the
// solver tier degrade to greedy, and distance gaps count as far away.
func (b *RouteBuilder) Build(
	ctx context.Context,
	stops []domain.Stop,
	capacity int,
	depot domain.Location,
	departAt time.Time,
) Construction {
	ctx, done := obs.Span(ctx, "routeBuilder.Build")
	defer done(nil)

	candidates := make([]domain.Stop, 0, len(stops))
	for _, s := range stops {
		if s.RequiredCapacityUnits >= 1 && s.RequiredCapacityUnits <= capacity {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return Construction{}
	}

	locs := make([]domain.Location, 0, len(candidates)+1)
	locs = append(locs, depot)
	for _, s := range candidates {
		locs = append(locs, s.Location())
	}
	table := newDistanceTable(b.oracle, locs)

	if b.solver != nil && len(candidates) > 1 && domain.TotalCapacityUnits(candidates) <= capacity {
		table.fill(ctx)
		order, err := b.solve(ctx, table, candidates, capacity)
		if err == nil {
			return b.assemble(ctx, table, candidates, order, domain.MethodGuidedLocalSearch, departAt)
		}
		b.logger.WarnContext(ctx, "solver tier failed, using greedy",
			"stops", len(candidates), "capacity", capacity, "err", err)
	}

	order := greedyOrder(ctx, table, candidates, capacity)
	return b.assemble(ctx, table, candidates, order, domain.MethodGreedy, departAt)
}

// Sequence prices stops in the order given, from depot at departAt,
// without choosing or reordering anything.
func (b *RouteBuilder) Sequence(
	ctx context.Context,
	stops []domain.Stop,
	depot domain.Location,
	departAt time.Time,
	method domain.OptimizationMethod,
) Construction {
	locs := make([]domain.Location, 0, len(stops)+1)
	locs = append(locs, depot)
	order := make([]int, 0, len(stops))
	for i, s := range stops {
		locs = append(locs, s.Location())
		order = append(order, i+1)
	}
	return b.assemble(ctx, newDistanceTable(b.oracle, locs), stops, order, method, departAt)
}

func (b *RouteBuilder) solve(ctx context.Context, table *distanceTable, candidates []domain.Stop, capacity int) ([]int, error) {
	n := len(table.locs)
	costs := make([][]int64, n)
	for i := range costs {
		costs[i] = make([]int64, n)
		for j := range costs[i] {
			if c := table.cell(ctx, i, j); c.Err == nil {
				costs[i][j] = int64(c.Result.DistanceMeters)
			} else {
				costs[i][j] = unavailableCost
			}
		}
	}

	demands := make([]int, n)
	for i, s := range candidates {
		demands[i+1] = s.RequiredCapacityUnits
	}

	order, err := b.solver.Solve(ctx, ports.SolveRequest{
		Costs:     costs,
		Demands:   demands,
		Capacity:  capacity,
		TimeLimit: b.timeLimit,
	})
	if err != nil {
		return nil, err
	}
	if err := checkSolution(order, demands, capacity); err != nil {
		return nil, err
	}
	return order, nil
}

// checkSolution rejects solver output that is not a capacity-respecting
// selection of distinct, non-depot nodes.
func checkSolution(order []int, demands []int, capacity int) error {
	if len(order) == 0 {
		return fmt.Errorf("solver returned an empty tour: %w", domain.ErrSolverFailed)
	}

	seen := make(map[int]bool, len(order))
	used := 0
	for _, idx := range order {
		if idx < 1 || idx >= len(demands) {
			return fmt.Errorf("solver returned node %d outside 1..%d: %w", idx, len(demands)-1, domain.ErrSolverFailed)
		}
		if seen[idx] {
			return fmt.Errorf("solver visited node %d twice: %w", idx, domain.ErrSolverFailed)
		}
		seen[idx] = true
		used += demands[idx]
	}
	if used > capacity {
		return fmt.Errorf("solver tour needs %d of %d units: %w", used, capacity, domain.ErrSolverFailed)
	}
	return nil
}

// greedyOrder visits stops by nearest feasible neighbor. Candidates are
// scanned smallest-first, and only a strictly shorter distance replaces
// the current pick, so ties keep that order.
func greedyOrder(ctx context.Context, table *distanceTable, candidates []domain.Stop, capacity int) []int {
	sorted := make([]int, len(candidates))
	for i := range sorted {
		sorted[i] = i + 1
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		return candidates[sorted[a]-1].RequiredCapacityUnits < candidates[sorted[b]-1].RequiredCapacityUnits
	})

	load := domain.NewLoad("", capacity)
	placed := make([]bool, len(candidates)+1)
	order := make([]int, 0, len(candidates))
	current := 0

	for {
		best, bestDist := -1, math.MaxInt
		for _, idx := range sorted {
			stop := candidates[idx-1]
			if placed[idx] || !load.Fits(stop.RequiredCapacityUnits) {
				continue
			}
			d := math.MaxInt
			if c := table.cell(ctx, current, idx); c.Err == nil {
				d = c.Result.DistanceMeters
			}
			if best == -1 || d < bestDist {
				best, bestDist = idx, d
			}
		}
		if best == -1 {
			return order
		}

		_ = load.Add(candidates[best-1])
		placed[best] = true
		order = append(order, best)
		current = best
	}
}

func (b *RouteBuilder) assemble(
	ctx context.Context,
	table *distanceTable,
	candidates []domain.Stop,
	order []int,
	method domain.OptimizationMethod,
	departAt time.Time,
) Construction {
	out := Construction{
		Stops:  make([]domain.RouteStop, 0, len(order)),
		Method: method,
	}

	prev := 0
	leg := func(to int) {
		c := table.cell(ctx, prev, to)
		if c.Err != nil {
			b.logger.DebugContext(ctx, "leg unavailable", "from", table.locs[prev].Key(), "to", table.locs[to].Key(), "err", c.Err)
			return
		}
		out.DistanceMeters += c.Result.DistanceMeters
		out.DurationSeconds += c.Result.DurationSeconds
	}

	for i, idx := range order {
		leg(idx)
		prev = idx
		out.Stops = append(out.Stops, domain.RouteStop{
			SequenceNumber:   i + 1,
			Stop:             candidates[idx-1],
			Status:           domain.StopPending,
			EstimatedArrival: departAt.Add(time.Duration(out.DurationSeconds) * time.Second),
		})
	}
	if len(order) > 0 {
		leg(0)
	}

	return out
}

// distanceTable prices legs between the depot (index 0) and candidate
// stops (index i+1). Rows come from one oracle matrix when the solver
// runs, otherwise they are fetched on first use.
type distanceTable struct {
	oracle *Oracle
	locs   []domain.Location
	rows   map[int][]Cell
}

func newDistanceTable(oracle *Oracle, locs []domain.Location) *distanceTable {
	return &distanceTable{
		oracle: oracle,
		locs:   locs,
		rows:   make(map[int][]Cell, len(locs)),
	}
}

func (t *distanceTable) fill(ctx context.Context) {
	for i, row := range t.oracle.Matrix(ctx, t.locs, ports.MatrixOptions{}) {
		t.rows[i] = row
	}
}

func (t *distanceTable) cell(ctx context.Context, from, to int) Cell {
	if from == to {
		return Cell{}
	}
	row, ok := t.rows[from]
	if !ok {
		row = t.oracle.Row(ctx, t.locs[from], t.locs, ports.MatrixOptions{})
		t.rows[from] = row
	}
	return row[to]
}
