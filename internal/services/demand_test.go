package services

import (
	"context"
	"ice-route-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredCapacityUnits(t *testing.T) {
	cases := []struct {
		qty, per, want int
	}{
		{0, 50, 1},
		{49, 50, 1},
		{50, 50, 1},
		{99, 50, 1},
		{100, 50, 2},
		{260, 50, 5},
		{260, 0, 5},
		{30, 10, 3},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, RequiredCapacityUnits(c.qty, c.per), "qty=%d per=%d", c.qty, c.per)
	}
}

func TestBuildStops(t *testing.T) {
	customers := []domain.Customer{
		{ID: "c1", Name: "Bayou Market", Address: "1 Bayou Rd", Coords: at(31, -93)},
		{ID: "c2", Name: "Lakeside Gas", Address: "2 Lake Dr"},
	}
	orders := []domain.Order{
		{ID: "o1", CustomerID: "c1", Quantity: 120, Status: domain.OrderPending},
		{ID: "o2", CustomerID: "missing", Quantity: 10, Status: domain.OrderPending},
		{ID: "o3", CustomerID: "c2", Quantity: 5, Status: domain.OrderPending},
		{ID: "o4", CustomerID: "c2", Quantity: 500, Status: domain.OrderDelivered},
	}

	stops, report := BuildStops(context.Background(), nil, orders, customers, 50)

	require.Len(t, stops, 2)
	assert.Equal(t, []string{"o2"}, report.Skipped)

	assert.Equal(t, domain.Stop{
		OrderID:               "o1",
		CustomerID:            "c1",
		CustomerName:          "Bayou Market",
		Address:               "1 Bayou Rd",
		Coords:                at(31, -93),
		RequiredCapacityUnits: 2,
	}, stops[0])
	assert.Equal(t, "o3", stops[1].OrderID)
	assert.Equal(t, 1, stops[1].RequiredCapacityUnits)
	assert.Nil(t, stops[1].Coords)
}
