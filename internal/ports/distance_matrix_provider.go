package ports

import (
	"context"
	"ice-route-service/internal/domain"
)

// MatrixCell is one origin/destination entry returned by a mapping provider.
// OK is false when the provider could not route the pair.
type MatrixCell struct {
	DistanceMeters  int
	DurationSeconds int
	OK              bool
}

// MappingProvider is the optional live geocoding and routing service.
type MappingProvider interface {
	// Resolve an address to coordinates.
	Geocode(ctx context.Context, address string) (domain.Coordinates, error)
	// Return a len(origins) x len(destinations) matrix. Every location
	// passed in carries coordinates.
	Matrix(ctx context.Context, origins, destinations []domain.Location, opts MatrixOptions) ([][]MatrixCell, error)
}
