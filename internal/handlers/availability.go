package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/petjoy-vn/petjoy-core/internal/apperr"
	"github.com/petjoy-vn/petjoy-core/internal/availability"
	"github.com/petjoy-vn/petjoy-core/internal/model"
)

type AvailabilityHandler struct {
	engine *availability.Engine
	logger *slog.Logger
}

func NewAvailabilityHandler(engine *availability.Engine, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{engine: engine, logger: logger}
}

func (h *AvailabilityHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/services/{id}/timeslots", h.Timeslots)
}

type slotResponse struct {
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	AvailableSpots int    `json:"available_spots"`
}

func (h *AvailabilityHandler) Timeslots(w http.ResponseWriter, r *http.Request) {
	days, err := h.engine.AvailableSlots(r.Context(), r.PathValue("id"), time.Now())
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			err = apperr.NotFound("service not found")
		}
		writeError(w, h.logger, r, err)
		return
	}
	out := make(map[string][]slotResponse, len(days))
	for date, slots := range days {
		items := make([]slotResponse, 0, len(slots))
		for _, s := range slots {
			items = append(items, slotResponse{
				StartTime:      availability.FormatClock(s.StartMin),
				EndTime:        availability.FormatClock(s.EndMin),
				AvailableSpots: s.AvailableSpots,
			})
		}
		out[date] = items
	}
	writeJSON(w, http.StatusOK, out)
}
