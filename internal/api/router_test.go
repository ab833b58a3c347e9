package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ice-route-service/internal/api"
	"ice-route-service/internal/api/dto"
	"ice-route-service/internal/domain"
	"ice-route-service/internal/services"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPlanner and mockLifecycle are test doubles for the handler ports.
// Set only the method fields your test needs.
type mockPlanner struct {
	planRoutes func(ctx context.Context, depotID string) (services.PlanResult, error)
}

func (m *mockPlanner) PlanRoutes(ctx context.Context, depotID string) (services.PlanResult, error) {
	return m.planRoutes(ctx, depotID)
}

type mockLifecycle struct {
	getRoute         func(ctx context.Context, id string) (*domain.Route, error)
	listRoutes       func(ctx context.Context, depotID string) ([]*domain.Route, error)
	progress         func(ctx context.Context, id string) (domain.Progress, error)
	startRoute       func(ctx context.Context, id string) (*domain.Route, error)
	cancelRoute      func(ctx context.Context, id string) (*domain.Route, error)
	assignDriver     func(ctx context.Context, id, driverID string) (*domain.Route, error)
	completeStop     func(ctx context.Context, id string, seq int) (*domain.Route, error)
	onDriverPosition func(ctx context.Context, pos domain.DriverPosition) error
	driverLocation   func(ctx context.Context, driverID string) (domain.DriverPosition, bool)
}

func (m *mockLifecycle) GetRoute(ctx context.Context, id string) (*domain.Route, error) {
	return m.getRoute(ctx, id)
}
func (m *mockLifecycle) ListRoutes(ctx context.Context, depotID string) ([]*domain.Route, error) {
	return m.listRoutes(ctx, depotID)
}
func (m *mockLifecycle) Progress(ctx context.Context, id string) (domain.Progress, error) {
	return m.progress(ctx, id)
}
func (m *mockLifecycle) StartRoute(ctx context.Context, id string) (*domain.Route, error) {
	return m.startRoute(ctx, id)
}
func (m *mockLifecycle) CancelRoute(ctx context.Context, id string) (*domain.Route, error) {
	return m.cancelRoute(ctx, id)
}
func (m *mockLifecycle) AssignDriver(ctx context.Context, id, driverID string) (*domain.Route, error) {
	return m.assignDriver(ctx, id, driverID)
}
func (m *mockLifecycle) CompleteStop(ctx context.Context, id string, seq int) (*domain.Route, error) {
	return m.completeStop(ctx, id, seq)
}
func (m *mockLifecycle) OnDriverPosition(ctx context.Context, pos domain.DriverPosition) error {
	return m.onDriverPosition(ctx, pos)
}
func (m *mockLifecycle) DriverLocation(ctx context.Context, driverID string) (domain.DriverPosition, bool) {
	return m.driverLocation(ctx, driverID)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler(p *mockPlanner, l *mockLifecycle) http.Handler {
	if p == nil {
		p = &mockPlanner{}
	}
	if l == nil {
		l = &mockLifecycle{}
	}
	return api.NewRouter(api.Deps{Planner: p, Lifecycle: l, Logger: quietLogger()})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func routeFixture() *domain.Route {
	eta := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &domain.Route{
		ID:                  "r1",
		Name:                "Lufkin Distribution Route 1 (2026-03-02)",
		VehicleID:           "veh_3",
		DepotID:             "loc_3",
		Date:                time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Status:              domain.RoutePlanned,
		TotalDistanceMeters: 42000,
		EstimatedDuration:   90 * time.Minute,
		OptimizationMethod:  domain.MethodGuidedLocalSearch,
		Stops: []domain.RouteStop{{
			SequenceNumber:   1,
			Stop:             domain.Stop{OrderID: "o1", CustomerID: "c1", Address: "1 Elm St", Coords: &domain.Coordinates{Lat: 31.3, Lon: -94.7}, RequiredCapacityUnits: 3},
			Status:           domain.StopPending,
			EstimatedArrival: eta,
		}},
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, newHandler(nil, nil), http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestHealth_wrongMethod(t *testing.T) {
	rec := do(t, newHandler(nil, nil), http.MethodPost, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPlan(t *testing.T) {
	var gotDepot string
	p := &mockPlanner{planRoutes: func(ctx context.Context, depotID string) (services.PlanResult, error) {
		gotDepot = depotID
		return services.PlanResult{
			DepotID:          depotID,
			Routes:           []*domain.Route{routeFixture()},
			UnplacedOrderIDs: []string{"o9"},
			Message:          "planned 1 route(s), 1 order(s) left pending",
		}, nil
	}}

	rec := do(t, newHandler(p, nil), http.MethodPost, "/depots/loc_3/plans", "")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "loc_3", gotDepot)
	res := decode[dto.PlanResponse](t, rec)
	require.Len(t, res.Routes, 1)
	assert.Equal(t, "r1", res.Routes[0].ID)
	assert.Equal(t, "2026-03-02", res.Routes[0].Date)
	assert.Equal(t, 5400, res.Routes[0].EstimatedDurationSeconds)
	assert.Equal(t, 3, res.Routes[0].CapacityUnits)
	assert.Equal(t, []string{"o9"}, res.UnplacedOrderIDs)
	assert.Equal(t, []string{}, res.SkippedOrderIDs)
}

func TestPlan_nothingToPlan(t *testing.T) {
	p := &mockPlanner{planRoutes: func(ctx context.Context, depotID string) (services.PlanResult, error) {
		return services.PlanResult{DepotID: depotID, Message: domain.ErrNoVehicleAvailable.Error()}, nil
	}}

	rec := do(t, newHandler(p, nil), http.MethodPost, "/depots/loc_9/plans", "")

	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[dto.PlanResponse](t, rec)
	assert.Empty(t, res.Routes)
	assert.Equal(t, domain.ErrNoVehicleAvailable.Error(), res.Message)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get route r1: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("bad: %w", domain.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("StartRoute: %w", domain.ErrInvalidTransition), http.StatusConflict},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.want), func(t *testing.T) {
			l := &mockLifecycle{startRoute: func(ctx context.Context, id string) (*domain.Route, error) {
				return nil, tc.err
			}}

			rec := do(t, newHandler(nil, l), http.MethodPost, "/routes/r1/start", "")

			assert.Equal(t, tc.want, rec.Code)
			msg := decode[map[string]string](t, rec)["error"]
			if tc.want == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", msg)
			} else {
				assert.Equal(t, tc.err.Error(), msg)
			}
		})
	}
}

func TestRouteReads(t *testing.T) {
	l := &mockLifecycle{
		getRoute: func(ctx context.Context, id string) (*domain.Route, error) {
			r := routeFixture()
			r.ID = id
			return r, nil
		},
		listRoutes: func(ctx context.Context, depotID string) ([]*domain.Route, error) {
			return []*domain.Route{routeFixture(), routeFixture()}, nil
		},
		progress: func(ctx context.Context, id string) (domain.Progress, error) {
			cur := routeFixture().Stops[0]
			return domain.Progress{RouteID: id, Status: domain.RouteInProgress, TotalStops: 2, CompletedStops: 1, Percentage: 50, CurrentStop: &cur}, nil
		},
	}
	h := newHandler(nil, l)

	rec := do(t, h, http.MethodGet, "/routes/r7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	route := decode[dto.RouteResponse](t, rec)
	assert.Equal(t, "r7", route.ID)
	require.Len(t, route.Stops, 1)
	require.NotNil(t, route.Stops[0].Coordinates)
	assert.Equal(t, -94.7, route.Stops[0].Coordinates.Lng)

	rec = do(t, h, http.MethodGet, "/depots/loc_3/routes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[dto.ListRoutesResponse](t, rec).Routes, 2)

	rec = do(t, h, http.MethodGet, "/routes/r7/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[dto.ProgressResponse](t, rec)
	assert.Equal(t, 50.0, p.Percentage)
	require.NotNil(t, p.CurrentStop)
	assert.Equal(t, "o1", p.CurrentStop.OrderID)
	assert.Nil(t, p.EstimatedCompletion)
}

func TestCompleteStop(t *testing.T) {
	var gotSeq int
	l := &mockLifecycle{completeStop: func(ctx context.Context, id string, seq int) (*domain.Route, error) {
		gotSeq = seq
		return routeFixture(), nil
	}}
	h := newHandler(nil, l)

	rec := do(t, h, http.MethodPost, "/routes/r1/stops/2/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, gotSeq)

	for _, seq := range []string{"0", "-1", "two"} {
		rec = do(t, h, http.MethodPost, "/routes/r1/stops/"+seq+"/complete", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, seq)
	}
}

func TestAssignDriver(t *testing.T) {
	var gotDriver string
	l := &mockLifecycle{assignDriver: func(ctx context.Context, id, driverID string) (*domain.Route, error) {
		gotDriver = driverID
		r := routeFixture()
		r.DriverID = driverID
		return r, nil
	}}
	h := newHandler(nil, l)

	rec := do(t, h, http.MethodPost, "/routes/r1/driver", `{"driver_id": " drv-7 "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "drv-7", gotDriver)
	assert.Equal(t, "drv-7", decode[dto.RouteResponse](t, rec).DriverID)

	for _, body := range []string{``, `{"driver_id": ""}`, `{"driver": "x"}`, `{"driver_id": "a"}{"driver_id": "b"}`} {
		rec = do(t, h, http.MethodPost, "/routes/r1/driver", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestDriverLocation(t *testing.T) {
	var got domain.DriverPosition
	l := &mockLifecycle{
		onDriverPosition: func(ctx context.Context, pos domain.DriverPosition) error {
			got = pos
			return nil
		},
		driverLocation: func(ctx context.Context, driverID string) (domain.DriverPosition, bool) {
			if driverID != "drv-1" {
				return domain.DriverPosition{}, false
			}
			return got, true
		},
	}
	h := newHandler(nil, l)

	rec := do(t, h, http.MethodPost, "/drivers/drv-1/location", `{"route_id": "r1", "lat": 31.1, "lng": -93.2, "speed": 40}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "drv-1", got.DriverID)
	assert.Equal(t, "r1", got.RouteID)
	assert.Equal(t, domain.Coordinates{Lat: 31.1, Lon: -93.2}, got.Coords)

	rec = do(t, h, http.MethodGet, "/drivers/drv-1/location", "")
	require.Equal(t, http.StatusOK, rec.Code)
	loc := decode[dto.DriverLocationResponse](t, rec)
	assert.Equal(t, -93.2, loc.Lng)
	require.NotNil(t, loc.Speed)
	assert.Equal(t, 40.0, *loc.Speed)

	rec = do(t, h, http.MethodGet, "/drivers/drv-2/location", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/drivers/drv-1/location", `{"lat": 31.1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDriverLocation_rejectedByLifecycle(t *testing.T) {
	l := &mockLifecycle{onDriverPosition: func(ctx context.Context, pos domain.DriverPosition) error {
		return fmt.Errorf("coordinates out of range: %w", domain.ErrValidation)
	}}

	rec := do(t, newHandler(nil, l), http.MethodPost, "/drivers/drv-1/location", `{"lat": 95, "lng": -93}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecoverer(t *testing.T) {
	l := &mockLifecycle{getRoute: func(ctx context.Context, id string) (*domain.Route, error) {
		panic("boom")
	}}

	rec := do(t, newHandler(nil, l), http.MethodGet, "/routes/r1", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
