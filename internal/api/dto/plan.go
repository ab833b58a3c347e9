package dto

import "ice-route-service/internal/services"

type PlanResponse struct {
	DepotID            string          `json:"depot_id"`
	Routes             []RouteResponse `json:"routes"`
	SkippedOrderIDs    []string        `json:"skipped_order_ids"`
	UnroutableOrderIDs []string        `json:"unroutable_order_ids"`
	UnplacedOrderIDs   []string        `json:"unplaced_order_ids"`
	Message            string          `json:"message"`
}

func FromPlanResult(res services.PlanResult) PlanResponse {
	out := PlanResponse{
		DepotID:            res.DepotID,
		Routes:             make([]RouteResponse, 0, len(res.Routes)),
		SkippedOrderIDs:    nonNil(res.SkippedOrderIDs),
		UnroutableOrderIDs: nonNil(res.UnroutableOrderIDs),
		UnplacedOrderIDs:   nonNil(res.UnplacedOrderIDs),
		Message:            res.Message,
	}
	for _, r := range res.Routes {
		out.Routes = append(out.Routes, FromRoute(r))
	}
	return out
}

// nonNil keeps empty lists as [] rather than null in responses.
func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
