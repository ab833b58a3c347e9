package domain

// Stop is one delivery obligation derived from a pending order.
// Stops are created at planning time and never mutated afterwards.
type Stop struct {
	OrderID               string
	CustomerID            string
	CustomerName          string
	Address               string
	Coords                *Coordinates
	RequiredCapacityUnits int
}

func (s Stop) Location() Location {
	return Location{Address: s.Address, Coords: s.Coords}
}

// TotalCapacityUnits sums the capacity requirement of stops.
func TotalCapacityUnits(stops []Stop) int {
	total := 0
	for _, s := range stops {
		total += s.RequiredCapacityUnits
	}
	return total
}
