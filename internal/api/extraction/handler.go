package extraction

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ceylontrails/tour-plan-api/internal/api"
	"github.com/ceylontrails/tour-plan-api/internal/types"
)

// ExtractRequest carries the free-text message plus optional seed values the
// caller already knows.
type ExtractRequest struct {
	Message       string `json:"message"`
	Origin        string `json:"origin,omitempty"`
	Destination   string `json:"destination,omitempty"`
	DepartureDate string `json:"departureDate,omitempty"`
	DepartureTime string `json:"departureTime,omitempty"`
}

type ExtractResponse struct {
	Success       bool              `json:"success"`
	Extracted     types.TripDetails `json:"extracted"`
	MissingFields []string          `json:"missingFields"`
}

// Handler exposes trip-detail extraction over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Extract godoc
// @Summary      Extract trip details
// @Description  Pulls origin/destination/date/time out of a free-text message, merged with caller-supplied defaults.
// @Tags         TripDetails
// @Accept       json
// @Produce      json
// @Param        request body ExtractRequest true "Message and optional seed fields"
// @Success      200 {object} ExtractResponse
// @Failure      400 {object} types.Response "Invalid Input"
// @Failure      502 {object} types.Response "Extraction Failed"
// @Security     BearerAuth
// @Router       /trip-details/extract [post]
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Extract"))

	var req ExtractRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Message == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "message is required")
		return
	}

	seed := types.TripDetails{
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureDate: req.DepartureDate,
		DepartureTime: req.DepartureTime,
	}

	result, err := h.service.Extract(ctx, req.Message, seed)
	if err != nil {
		l.ErrorContext(ctx, "Extraction failed", slog.Any("error", err))
		if errors.Is(err, types.ErrNoContent) || errors.Is(err, types.ErrMalformedResponse) {
			api.ErrorResponse(w, r, http.StatusBadGateway, "Could not extract trip details from the message")
			return
		}
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to extract trip details")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, ExtractResponse{
		Success:       true,
		Extracted:     result.Extracted,
		MissingFields: result.MissingFields,
	})
}
