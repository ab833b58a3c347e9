package handlers

import (
	"context"
	"ice-route-service/internal/api/dto"
	"ice-route-service/internal/services"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type RoutePlanner interface {
	PlanRoutes(ctx context.Context, depotID string) (services.PlanResult, error)
}

type PlanHandler struct {
	Planner RoutePlanner
	Logger  *slog.Logger
}

// Plan builds routes for every active vehicle of a depot from its pending
// orders. Orders that could not be placed are reported, not treated as errors.
func (h *PlanHandler) Plan(w http.ResponseWriter, r *http.Request) {
	depotID := trimmed(chi.URLParam(r, "depotID"))
	if depotID == "" {
		writeError(w, r, http.StatusBadRequest, "depot id is required")
		return
	}

	res, err := h.Planner.PlanRoutes(r.Context(), depotID)
	if err != nil {
		writeServiceError(w, r, loggerOr(h.Logger), "plan routes", err)
		return
	}

	status := http.StatusCreated
	if len(res.Routes) == 0 {
		status = http.StatusOK
	}
	writeJSON(w, r, status, dto.FromPlanResult(res))
}
