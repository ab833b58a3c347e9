package services

import (
	"context"
	"ice-route-service/internal/domain"
	"log/slog"
)

const DefaultUnitsPerCapacity = 50

// DemandReport records orders that could not become stops.
type DemandReport struct {
	Skipped []string
}

// RequiredCapacityUnits converts an order quantity into pallet slots.
// Every order occupies at least one slot.
func RequiredCapacityUnits(quantity, unitsPerCapacity int) int {
	if unitsPerCapacity <= 0 {
		unitsPerCapacity = DefaultUnitsPerCapacity
	}
	return max(1, quantity/unitsPerCapacity)
}

// BuildStops turns pending orders into weighted stops in input order.
// Orders whose customer is unknown are skipped and reported, never fatal.
func BuildStops(
	ctx context.Context,
	logger *slog.Logger,
	orders []domain.Order,
	customers []domain.Customer,
	unitsPerCapacity int,
) ([]domain.Stop, DemandReport) {
	if logger == nil {
		logger = slog.Default()
	}

	byID := make(map[string]domain.Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}

	stops := make([]domain.Stop, 0, len(orders))
	var report DemandReport
	for _, o := range orders {
		if o.Status != "" && o.Status != domain.OrderPending {
			continue
		}

		c, ok := byID[o.CustomerID]
		if !ok {
			logger.WarnContext(ctx, "skipping order",
				"order_id", o.ID, "customer_id", o.CustomerID, "reason", domain.ErrCustomerNotFound)
			report.Skipped = append(report.Skipped, o.ID)
			continue
		}

		stops = append(stops, domain.Stop{
			OrderID:               o.ID,
			CustomerID:            c.ID,
			CustomerName:          c.Name,
			Address:               c.Address,
			Coords:                c.Coords,
			RequiredCapacityUnits: RequiredCapacityUnits(o.Quantity, unitsPerCapacity),
		})
	}

	return stops, report
}
