package domain

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderAssigned  OrderStatus = "assigned"
	OrderInTransit OrderStatus = "in_transit"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is a customer request for a quantity of product from a depot.
// Only pending orders are eligible for routing; RouteID is set once an
// order has been claimed by a route.
type Order struct {
	ID         string
	CustomerID string
	DepotID    string
	ProductID  string
	Quantity   int
	Status     OrderStatus
	RouteID    string
}

// Customer is a delivery destination served from a single depot.
type Customer struct {
	ID      string
	Name    string
	Address string
	Coords  *Coordinates
	DepotID string
}

func (c Customer) Location() Location {
	return Location{Address: c.Address, Coords: c.Coords}
}

// Depot is the fixed origin of every route planned for it.
type Depot struct {
	ID      string
	Name    string
	Address string
	Coords  *Coordinates
}

func (d Depot) Location() Location {
	return Location{Address: d.Address, Coords: d.Coords}
}
