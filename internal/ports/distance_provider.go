package ports

import (
	"context"
	"ice-route-service/internal/domain"
	"time"
)

type DistanceSource string

const (
	SourceLive      DistanceSource = "live"
	SourceHaversine DistanceSource = "haversine"
	SourceHashed    DistanceSource = "hashed"
)

// Distance and travel duration between two locations.
type DistanceResult struct {
	DistanceMeters  int
	DurationSeconds int
	Source          DistanceSource
}

// Contract for retrieving travel distance and duration between locations.
type DistanceProvider interface {
	// Return travel distance and estimated duration between two locations.
	GetDistance(ctx context.Context, origin, destination domain.Location) (DistanceResult, error)
}

// MatrixOptions tune a live matrix request.
type MatrixOptions struct {
	// Traffic requests traffic-aware durations where the provider supports it.
	Traffic  bool
	DepartAt time.Time
}
