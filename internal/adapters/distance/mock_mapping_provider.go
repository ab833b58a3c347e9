package distance

import (
	"context"
	"errors"
	"fmt"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/ports"
	"sync"
)

// ErrMockUnavailable is returned by a MockMappingProvider set to fail.
var ErrMockUnavailable = errors.New("mock mapping provider unavailable")

type MockPair struct {
	From, To string
	Meters   int
	Seconds  int
}

// MockMappingProvider is an in-memory ports.MappingProvider keyed by
// normalized address. Pairs not listed are reported as unroutable.
type MockMappingProvider struct {
	mu           sync.Mutex
	pairs        map[string]ports.MatrixCell
	geocodes     map[string]domain.Coordinates
	fail         bool
	MatrixCalls  int
	GeocodeCalls int
	LastOpts     ports.MatrixOptions
}

var _ ports.MappingProvider = (*MockMappingProvider)(nil)

func NewMockMappingProvider(pairs []MockPair, geocodes map[string]domain.Coordinates) *MockMappingProvider {
	m := make(map[string]ports.MatrixCell, len(pairs))
	for _, p := range pairs {
		key := domain.NormalizeAddress(p.From) + "|" + domain.NormalizeAddress(p.To)
		m[key] = ports.MatrixCell{DistanceMeters: p.Meters, DurationSeconds: p.Seconds, OK: true}
	}

	g := make(map[string]domain.Coordinates, len(geocodes))
	for addr, c := range geocodes {
		g[domain.NormalizeAddress(addr)] = c
	}

	return &MockMappingProvider{pairs: m, geocodes: g}
}

// SetFailing makes every subsequent call return ErrMockUnavailable.
func (p *MockMappingProvider) SetFailing(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = fail
}

func (p *MockMappingProvider) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.GeocodeCalls++
	if p.fail {
		return domain.Coordinates{}, ErrMockUnavailable
	}

	c, ok := p.geocodes[domain.NormalizeAddress(address)]
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("no geocode for %q", address)
	}
	return c, nil
}

func (p *MockMappingProvider) Matrix(
	ctx context.Context,
	origins, destinations []domain.Location,
	opts ports.MatrixOptions,
) ([][]ports.MatrixCell, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.MatrixCalls++
	p.LastOpts = opts
	if p.fail {
		return nil, ErrMockUnavailable
	}

	out := make([][]ports.MatrixCell, len(origins))
	for i, o := range origins {
		out[i] = make([]ports.MatrixCell, len(destinations))
		for j, d := range destinations {
			out[i][j] = p.pairs[o.Key()+"|"+d.Key()]
		}
	}
	return out, nil
}
