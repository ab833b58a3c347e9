package handlers

import (
	"context"
	"ice-route-service/internal/api/dto"
	"ice-route-service/internal/domain"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type RouteLifecycle interface {
	GetRoute(ctx context.Context, id string) (*domain.Route, error)
	ListRoutes(ctx context.Context, depotID string) ([]*domain.Route, error)
	Progress(ctx context.Context, id string) (domain.Progress, error)
	StartRoute(ctx context.Context, id string) (*domain.Route, error)
	CancelRoute(ctx context.Context, id string) (*domain.Route, error)
	AssignDriver(ctx context.Context, id, driverID string) (*domain.Route, error)
	CompleteStop(ctx context.Context, id string, seq int) (*domain.Route, error)
}

// RouteHandler exposes route reads and lifecycle transitions.
type RouteHandler struct {
	Lifecycle RouteLifecycle
	Logger    *slog.Logger
}

func (h *RouteHandler) List(w http.ResponseWriter, r *http.Request) {
	routes, err := h.Lifecycle.ListRoutes(r.Context(), chi.URLParam(r, "depotID"))
	if err != nil {
		writeServiceError(w, r, loggerOr(h.Logger), "list routes", err)
		return
	}

	res := dto.ListRoutesResponse{Routes: make([]dto.RouteResponse, 0, len(routes))}
	for _, rt := range routes {
		res.Routes = append(res.Routes, dto.FromRoute(rt))
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *RouteHandler) Get(w http.ResponseWriter, r *http.Request) {
	rt, err := h.Lifecycle.GetRoute(r.Context(), chi.URLParam(r, "routeID"))
	h.respond(w, r, "get route", rt, err)
}

func (h *RouteHandler) Progress(w http.ResponseWriter, r *http.Request) {
	p, err := h.Lifecycle.Progress(r.Context(), chi.URLParam(r, "routeID"))
	if err != nil {
		writeServiceError(w, r, loggerOr(h.Logger), "route progress", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromProgress(p))
}

func (h *RouteHandler) Start(w http.ResponseWriter, r *http.Request) {
	rt, err := h.Lifecycle.StartRoute(r.Context(), chi.URLParam(r, "routeID"))
	h.respond(w, r, "start route", rt, err)
}

func (h *RouteHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	rt, err := h.Lifecycle.CancelRoute(r.Context(), chi.URLParam(r, "routeID"))
	h.respond(w, r, "cancel route", rt, err)
}

func (h *RouteHandler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	var req dto.AssignDriverRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	driverID := trimmed(req.DriverID)
	if driverID == "" {
		writeError(w, r, http.StatusBadRequest, "driver_id is required")
		return
	}

	rt, err := h.Lifecycle.AssignDriver(r.Context(), chi.URLParam(r, "routeID"), driverID)
	h.respond(w, r, "assign driver", rt, err)
}

func (h *RouteHandler) CompleteStop(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
	if err != nil || seq < 1 {
		writeError(w, r, http.StatusBadRequest, "stop sequence must be a positive integer")
		return
	}

	rt, err := h.Lifecycle.CompleteStop(r.Context(), chi.URLParam(r, "routeID"), seq)
	h.respond(w, r, "complete stop", rt, err)
}

func (h *RouteHandler) respond(w http.ResponseWriter, r *http.Request, op string, rt *domain.Route, err error) {
	if err != nil {
		writeServiceError(w, r, loggerOr(h.Logger), op, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromRoute(rt))
}
