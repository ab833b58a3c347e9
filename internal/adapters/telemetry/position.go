package telemetry

import (
	"encoding/json"
	"fmt"
	"ice-route-service/internal/domain"
	"time"
)

// PositionMessage is the wire form of a driver position on the telemetry topic.
type PositionMessage struct {
	DriverID  string    `json:"driver_id"`
	RouteID   string    `json:"route_id,omitempty"`
	Lat       *float64  `json:"lat"`
	Lng       *float64  `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
}

// DecodePosition parses one telemetry record. Range checks are left to
// the lifecycle; only structurally missing fields are rejected here.
func DecodePosition(b []byte) (domain.DriverPosition, error) {
	var m PositionMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return domain.DriverPosition{}, fmt.Errorf("decode position: %v: %w", err, domain.ErrValidation)
	}
	if m.DriverID == "" {
		return domain.DriverPosition{}, fmt.Errorf("decode position: driver_id is required: %w", domain.ErrValidation)
	}
	if m.Lat == nil || m.Lng == nil {
		return domain.DriverPosition{}, fmt.Errorf("decode position: lat and lng are required: %w", domain.ErrValidation)
	}

	return domain.DriverPosition{
		DriverID:  m.DriverID,
		RouteID:   m.RouteID,
		Coords:    domain.Coordinates{Lat: *m.Lat, Lon: *m.Lng},
		Timestamp: m.Timestamp,
		Speed:     m.Speed,
		Heading:   m.Heading,
		Accuracy:  m.Accuracy,
	}, nil
}
