package domain

import "time"

// Progress summarizes how far along a route is.
type Progress struct {
	RouteID             string
	Status              RouteStatus
	CompletedStops      int
	TotalStops          int
	Percentage          float64
	CurrentStop         *RouteStop
	EstimatedCompletion *time.Time
}

// DriverPosition is one telemetry ping from a driver's device.
type DriverPosition struct {
	DriverID  string
	RouteID   string
	Coords    Coordinates
	Timestamp time.Time
	Speed     *float64
	Heading   *float64
	Accuracy  *float64
}
