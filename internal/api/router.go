package api

import (
	"ice-route-service/internal/api/handlers"
	"ice-route-service/internal/platform/tracing"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Deps are the services the HTTP surface drives.
type Deps struct {
	Planner   handlers.RoutePlanner
	Lifecycle interface {
		handlers.RouteLifecycle
		handlers.DriverPositions
	}
	Logger *slog.Logger
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	planHandler := &handlers.PlanHandler{Planner: d.Planner, Logger: logger}
	routeHandler := &handlers.RouteHandler{Lifecycle: d.Lifecycle, Logger: logger}
	driverHandler := &handlers.DriverHandler{Positions: d.Lifecycle, Logger: logger}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(loggingMiddleware(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", handlers.Health)

	r.Route("/depots/{depotID}", func(r chi.Router) {
		r.Post("/plans", planHandler.Plan)
		r.Get("/routes", routeHandler.List)
	})

	r.Route("/routes/{routeID}", func(r chi.Router) {
		r.Get("/", routeHandler.Get)
		r.Get("/progress", routeHandler.Progress)
		r.Post("/start", routeHandler.Start)
		r.Post("/cancel", routeHandler.Cancel)
		r.Post("/driver", routeHandler.AssignDriver)
		r.Post("/stops/{seq}/complete", routeHandler.CompleteStop)
	})

	r.Route("/drivers/{driverID}", func(r chi.Router) {
		r.Post("/location", driverHandler.ReportLocation)
		r.Get("/location", driverHandler.GetLocation)
	})

	return tracing.WrapHTTPHandler(r, "ice-route-service")
}
