package dto

import (
	"ice-route-service/internal/domain"
	"time"
)

type DriverLocationRequest struct {
	RouteID   string     `json:"route_id"`
	Lat       *float64   `json:"lat"`
	Lng       *float64   `json:"lng"`
	Timestamp *time.Time `json:"timestamp"`
	Speed     *float64   `json:"speed"`
	Heading   *float64   `json:"heading"`
	Accuracy  *float64   `json:"accuracy"`
}

type DriverLocationResponse struct {
	DriverID  string    `json:"driver_id"`
	RouteID   string    `json:"route_id,omitempty"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
}

// ToPosition builds a position for driverID; lat and lng must be present.
func (r DriverLocationRequest) ToPosition(driverID string) domain.DriverPosition {
	pos := domain.DriverPosition{
		DriverID: driverID,
		RouteID:  r.RouteID,
		Coords:   domain.Coordinates{Lat: *r.Lat, Lon: *r.Lng},
		Speed:    r.Speed,
		Heading:  r.Heading,
		Accuracy: r.Accuracy,
	}
	if r.Timestamp != nil {
		pos.Timestamp = *r.Timestamp
	}
	return pos
}

func FromPosition(p domain.DriverPosition) DriverLocationResponse {
	return DriverLocationResponse{
		DriverID:  p.DriverID,
		RouteID:   p.RouteID,
		Lat:       p.Coords.Lat,
		Lng:       p.Coords.Lon,
		Timestamp: p.Timestamp,
		Speed:     p.Speed,
		Heading:   p.Heading,
		Accuracy:  p.Accuracy,
	}
}
