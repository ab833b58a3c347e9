package solver

import "errors"

var errTimeUp = errors.New("time limit reached")

// localSearch applies first-improvement 2-opt and relocate moves until
// neither improves the tour under the given cost. Moves are priced by
// their delta against the current tour.
type localSearch struct {
	scratch []int
	// fwd[k] and rev[k] hold the cost of tour[0..k] walked forwards and
	// backwards, for pricing reversed segments on asymmetric costs.
	fwd []float64
	rev []float64
	// halt is polled before every move. A non-nil error ends the run.
	halt func() error
}

func newLocalSearch(n int, halt func() error) *localSearch {
	if halt == nil {
		halt = func() error { return nil }
	}
	return &localSearch{
		scratch: make([]int, n),
		fwd:     make([]float64, n),
		rev:     make([]float64, n),
		halt:    halt,
	}
}

// run improves tour in place. It returns the halt error if the search was
// stopped early; tour is then still a valid permutation.
func (ls *localSearch) run(tour []int, cost func(a, b int) float64) error {
	for {
		if err := ls.halt(); err != nil {
			return err
		}
		ls.index(tour, cost)
		if ls.twoOpt(tour, cost) {
			continue
		}
		if ls.relocate(tour, cost) {
			continue
		}
		return nil
	}
}

func (ls *localSearch) index(tour []int, cost func(a, b int) float64) {
	ls.fwd[0], ls.rev[0] = 0, 0
	for k := 1; k < len(tour); k++ {
		ls.fwd[k] = ls.fwd[k-1] + cost(tour[k-1], tour[k])
		ls.rev[k] = ls.rev[k-1] + cost(tour[k], tour[k-1])
	}
}

// at returns the node at position k, with the depot on both ends.
func at(tour []int, k int) int {
	if k < 0 || k >= len(tour) {
		return 0
	}
	return tour[k]
}

func (ls *localSearch) twoOpt(tour []int, cost func(a, b int) float64) bool {
	for i := 0; i < len(tour)-1; i++ {
		prev := at(tour, i-1)
		for j := i + 1; j < len(tour); j++ {
			next := at(tour, j+1)
			delta := cost(prev, tour[j]) + cost(tour[i], next) -
				cost(prev, tour[i]) - cost(tour[j], next) +
				(ls.rev[j] - ls.rev[i]) - (ls.fwd[j] - ls.fwd[i])
			if delta < -epsilon {
				reverse(tour[i : j+1])
				return true
			}
		}
	}
	return false
}

func (ls *localSearch) relocate(tour []int, cost func(a, b int) float64) bool {
	for i := range tour {
		node := tour[i]
		before, after := at(tour, i-1), at(tour, i+1)
		removed := cost(before, node) + cost(node, after) - cost(before, after)
		for j := range tour {
			if i == j {
				continue
			}
			// Neighbours of slot j once node has been taken out.
			a, b := at(tour, j-1), at(tour, j)
			if j > i {
				a, b = at(tour, j), at(tour, j+1)
			}
			if cost(a, node)+cost(node, b)-cost(a, b)-removed < -epsilon {
				move(ls.scratch, tour, i, j)
				copy(tour, ls.scratch)
				return true
			}
		}
	}
	return false
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// move writes into dst the tour with the node at index from placed at index to.
func move(dst, tour []int, from, to int) {
	node := tour[from]
	k := 0
	for i, v := range tour {
		if i == from {
			continue
		}
		if k == to {
			dst[k] = node
			k++
		}
		dst[k] = v
		k++
	}
	if k == to {
		dst[k] = node
	}
}
