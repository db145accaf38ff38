package timetable

import (
	"log/slog"
	"net/http"

	"github.com/ceylontrails/tour-plan-api/internal/api"
	"github.com/ceylontrails/tour-plan-api/internal/types"
)

// Handler exposes the timetable lookup over HTTP.
type Handler struct {
	client *Client
	logger *slog.Logger
}

func NewHandler(client *Client, logger *slog.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// Lookup godoc
// @Summary      Timetable lookup
// @Description  Returns the schedule for a transit service. "No schedule found" is a normal success:false result, never an error status.
// @Tags         Timetable
// @Produce      json
// @Param        service_id query string true "Transit service identifier"
// @Param        departure_date query string true "Departure date (YYYY-MM-DD)"
// @Param        departure_time query string false "Departure time (HH:MM)"
// @Success      200 {object} types.Timetable
// @Security     BearerAuth
// @Router       /timetable [get]
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "TimetableLookup"))

	q := types.TimetableQuery{
		ServiceID:     r.URL.Query().Get("service_id"),
		DepartureDate: r.URL.Query().Get("departure_date"),
		DepartureTime: r.URL.Query().Get("departure_time"),
	}
	if q.ServiceID == "" {
		l.WarnContext(ctx, "Missing service_id")
		api.ErrorResponse(w, r, http.StatusBadRequest, "service_id is required")
		return
	}

	// Lookup folds every failure into the result, so this is always a 200.
	result := h.client.Lookup(ctx, q)
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}
