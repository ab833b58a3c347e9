package distance

import (
	"context"
	"encoding/json"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/ports"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *ORSMappingProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	p, err := NewORSMappingProvider("test-key", WithBaseURL(srv.URL), WithRetryBackoff(time.Millisecond))
	require.NoError(t, err)
	return p
}

func TestNewORSMappingProvider_requiresKey(t *testing.T) {
	_, err := NewORSMappingProvider("  ")
	require.Error(t, err)
}

func TestORSGeocode(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocode/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "123 Ice Plant Rd, Leesville, LA", r.URL.Query().Get("text"))
		assert.Equal(t, "US", r.URL.Query().Get("boundary.country"))
		_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[-93.261,31.1435]}}]}`))
	})

	c, err := p.Geocode(context.Background(), "123  Ice Plant Rd,   Leesville, LA")

	require.NoError(t, err)
	assert.InDelta(t, 31.1435, c.Lat, 1e-9)
	assert.InDelta(t, -93.261, c.Lon, 1e-9)
}

func TestORSGeocode_noResults(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"features":[]}`))
	})

	_, err := p.Geocode(context.Background(), "nowhere")
	require.ErrorContains(t, err, "no results")
}

func TestORSMatrix(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/matrix/driving-hgv", r.URL.Path)

		var req matrixRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int{0}, req.Sources)
		assert.Equal(t, []int{1, 2}, req.Destinations)
		assert.Equal(t, "mi", req.Units)

		_, _ = w.Write([]byte(`{"distances":[[2.0,null]],"durations":[[300.4,null]]}`))
	})

	origin := domain.Location{Address: "depot", Coords: &domain.Coordinates{Lat: 31, Lon: -93}}
	dests := []domain.Location{
		{Address: "a", Coords: &domain.Coordinates{Lat: 31.01, Lon: -93}},
		{Address: "b", Coords: &domain.Coordinates{Lat: 45, Lon: -60}},
	}

	m, err := p.Matrix(context.Background(), []domain.Location{origin}, dests, ports.MatrixOptions{})

	require.NoError(t, err)
	require.Len(t, m, 1)
	require.Len(t, m[0], 2)
	assert.True(t, m[0][0].OK)
	assert.Equal(t, 3219, m[0][0].DistanceMeters)
	assert.Equal(t, 300, m[0][0].DurationSeconds)
	assert.False(t, m[0][1].OK)
}

func TestORSMatrix_requiresCoordinates(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := p.Matrix(context.Background(),
		[]domain.Location{{Address: "depot"}},
		[]domain.Location{{Address: "a"}},
		ports.MatrixOptions{},
	)
	require.Error(t, err)
}

func TestORSRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[-93.2,30.2]}}]}`))
	})

	_, err := p.Geocode(context.Background(), "Lake Charles, LA")

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestORSDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := p.Geocode(context.Background(), "Lufkin, TX")

	var he *httpStatusError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusForbidden, he.Code)
	assert.Equal(t, int32(1), calls.Load())
}
