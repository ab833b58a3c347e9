package ports

import (
	"context"
	"ice-route-service/internal/domain"
)

// GeocodeCache maps normalized addresses to coordinates.
type GeocodeCache interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}

// DistanceCache stores live results per (origin, destination, bucket).
type DistanceCache interface {
	GetMany(ctx context.Context, origin string, destinations []string, bucket string) (map[string]DistanceResult, error)
	PutMany(ctx context.Context, origin string, bucket string, results map[string]DistanceResult) error
}
