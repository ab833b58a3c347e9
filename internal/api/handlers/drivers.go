package handlers

import (
	"context"
	"ice-route-service/internal/api/dto"
	"ice-route-service/internal/domain"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type DriverPositions interface {
	OnDriverPosition(ctx context.Context, pos domain.DriverPosition) error
	DriverLocation(ctx context.Context, driverID string) (domain.DriverPosition, bool)
}

// DriverHandler is the HTTP ingress for driver telemetry, alongside the
// Kafka consumer.
type DriverHandler struct {
	Positions DriverPositions
	Logger    *slog.Logger
}

func (h *DriverHandler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	driverID := trimmed(chi.URLParam(r, "driverID"))
	if driverID == "" {
		writeError(w, r, http.StatusBadRequest, "driver id is required")
		return
	}

	var req dto.DriverLocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, r, http.StatusBadRequest, "lat and lng are required")
		return
	}

	pos := req.ToPosition(driverID)
	if err := h.Positions.OnDriverPosition(r.Context(), pos); err != nil {
		writeServiceError(w, r, loggerOr(h.Logger), "driver location", err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *DriverHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverID")
	pos, ok := h.Positions.DriverLocation(r.Context(), driverID)
	if !ok {
		writeError(w, r, http.StatusNotFound, "no location reported for driver "+driverID)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.FromPosition(pos))
}
