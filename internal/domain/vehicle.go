package domain

import "fmt"

type VehicleType string

const (
	Reefer53ft VehicleType = "53ft_reefer"
	Reefer42ft VehicleType = "42ft_reefer"
	Reefer20ft VehicleType = "20ft_reefer"
	Reefer16ft VehicleType = "16ft_reefer"
)

// Vehicle is a capacity-bearing resource owned by fleet management.
// Routing only reads its capacity and home depot.
type Vehicle struct {
	ID            string
	LicensePlate  string
	Type          VehicleType
	CapacityUnits int
	HomeDepotID   string
	Active        bool
}

// Load tracks the capacity consumed on a vehicle while a route is built.
type Load struct {
	VehicleID string
	Capacity  int
	Used      int
	Stops     []Stop
}

func NewLoad(vehicleID string, capacity int) *Load {
	return &Load{
		VehicleID: vehicleID,
		Capacity:  capacity,
	}
}

// Fits reports whether units more capacity can be added without overflow.
func (l *Load) Fits(units int) bool {
	return units > 0 && l.Used+units <= l.Capacity
}

// Remaining capacity units.
func (l *Load) Remaining() int {
	return l.Capacity - l.Used
}

// Add a single stop to the load.
func (l *Load) Add(s Stop) error {
	if !l.Fits(s.RequiredCapacityUnits) {
		return fmt.Errorf(
			"load vehicle %s: order %s needs %d units, %d of %d free: %w",
			l.VehicleID, s.OrderID, s.RequiredCapacityUnits, l.Remaining(), l.Capacity, ErrCapacityExceeded,
		)
	}
	l.Used += s.RequiredCapacityUnits
	l.Stops = append(l.Stops, s)
	return nil
}
