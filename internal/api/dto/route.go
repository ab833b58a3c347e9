package dto

import (
	"ice-route-service/internal/domain"
	"time"
)

type CoordinatesResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type StopResponse struct {
	SequenceNumber        int                  `json:"sequence_number"`
	OrderID               string               `json:"order_id"`
	CustomerID            string               `json:"customer_id"`
	CustomerName          string               `json:"customer_name"`
	Address               string               `json:"address"`
	Coordinates           *CoordinatesResponse `json:"coordinates"`
	RequiredCapacityUnits int                  `json:"required_capacity_units"`
	Status                string               `json:"status"`
	EstimatedArrival      time.Time            `json:"estimated_arrival"`
	ETAUpdatedAt          *time.Time           `json:"eta_updated_at"`
	CompletedAt           *time.Time           `json:"completed_at"`
}

type RouteResponse struct {
	ID                       string         `json:"id"`
	Name                     string         `json:"name"`
	VehicleID                string         `json:"vehicle_id"`
	DriverID                 string         `json:"driver_id,omitempty"`
	DepotID                  string         `json:"depot_id"`
	Date                     string         `json:"route_date"`
	Status                   string         `json:"status"`
	OptimizationMethod       string         `json:"optimization_method"`
	TotalDistanceMeters      int            `json:"total_distance_meters"`
	EstimatedDurationSeconds int            `json:"estimated_duration_seconds"`
	CapacityUnits            int            `json:"capacity_units"`
	Stops                    []StopResponse `json:"stops"`
	CreatedAt                time.Time      `json:"created_at"`
	StartedAt                *time.Time     `json:"started_at"`
	CompletedAt              *time.Time     `json:"completed_at"`
}

type ListRoutesResponse struct {
	Routes []RouteResponse `json:"routes"`
}

type ProgressResponse struct {
	RouteID             string        `json:"route_id"`
	Status              string        `json:"status"`
	CompletedStops      int           `json:"completed_stops"`
	TotalStops          int           `json:"total_stops"`
	Percentage          float64       `json:"percentage"`
	CurrentStop         *StopResponse `json:"current_stop"`
	EstimatedCompletion *time.Time    `json:"estimated_completion"`
}

type AssignDriverRequest struct {
	DriverID string `json:"driver_id"`
}

func FromStop(rs domain.RouteStop) StopResponse {
	out := StopResponse{
		SequenceNumber:        rs.SequenceNumber,
		OrderID:               rs.Stop.OrderID,
		CustomerID:            rs.Stop.CustomerID,
		CustomerName:          rs.Stop.CustomerName,
		Address:               rs.Stop.Address,
		RequiredCapacityUnits: rs.Stop.RequiredCapacityUnits,
		Status:                string(rs.Status),
		EstimatedArrival:      rs.EstimatedArrival,
		ETAUpdatedAt:          rs.ETAUpdatedAt,
		CompletedAt:           rs.CompletedAt,
	}
	if c := rs.Stop.Coords; c != nil {
		out.Coordinates = &CoordinatesResponse{Lat: c.Lat, Lng: c.Lon}
	}
	return out
}

func FromRoute(r *domain.Route) RouteResponse {
	out := RouteResponse{
		ID:                       r.ID,
		Name:                     r.Name,
		VehicleID:                r.VehicleID,
		DriverID:                 r.DriverID,
		DepotID:                  r.DepotID,
		Date:                     r.Date.Format(time.DateOnly),
		Status:                   string(r.Status),
		OptimizationMethod:       string(r.OptimizationMethod),
		TotalDistanceMeters:      r.TotalDistanceMeters,
		EstimatedDurationSeconds: int(r.EstimatedDuration / time.Second),
		CapacityUnits:            r.CapacityUnits(),
		Stops:                    make([]StopResponse, 0, len(r.Stops)),
		CreatedAt:                r.CreatedAt,
		StartedAt:                r.StartedAt,
		CompletedAt:              r.CompletedAt,
	}
	for _, rs := range r.Stops {
		out.Stops = append(out.Stops, FromStop(rs))
	}
	return out
}

func FromProgress(p domain.Progress) ProgressResponse {
	out := ProgressResponse{
		RouteID:             p.RouteID,
		Status:              string(p.Status),
		CompletedStops:      p.CompletedStops,
		TotalStops:          p.TotalStops,
		Percentage:          p.Percentage,
		EstimatedCompletion: p.EstimatedCompletion,
	}
	if p.CurrentStop != nil {
		s := FromStop(*p.CurrentStop)
		out.CurrentStop = &s
	}
	return out
}
