package tourplan

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	appMiddleware "github.com/ceylontrails/tour-plan-api/app/middleware"
	"github.com/ceylontrails/tour-plan-api/app/observability/metrics"
	"github.com/ceylontrails/tour-plan-api/internal/api"
	"github.com/ceylontrails/tour-plan-api/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	Generate(w http.ResponseWriter, r *http.Request)
	Refine(w http.ResponseWriter, r *http.Request)
	Accept(w http.ResponseWriter, r *http.Request)
	GetSession(w http.ResponseWriter, r *http.Request)
	EngineHealth(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	service Service
	logger  *slog.Logger
}

func NewHandlerImpl(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{service: service, logger: logger}
}

// Generate godoc
// @Summary      Generate a tour plan
// @Description  Starts a new planning conversation with the AI engine for the selected locations.
// @Tags         TourPlan
// @Accept       json
// @Produce      json
// @Param        request body types.GenerateParams true "Locations, date window, optional preferences and message"
// @Success      200 {object} types.PlanResult
// @Failure      400 {object} types.Response "Invalid Input"
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      502 {object} types.Response "AI Engine Unavailable"
// @Security     BearerAuth
// @Router       /tour-plan/generate [post]
func (h *HandlerImpl) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Generate"))
	start := time.Now()

	userID, ok := h.authenticatedUser(w, r, l)
	if !ok {
		return
	}

	var params types.GenerateParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Generate(ctx, userID, params)
	h.observe(r, "generate", start, err)
	if err != nil {
		h.respondServiceError(w, r, l, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

// Refine godoc
// @Summary      Refine a tour plan
// @Description  Continues an existing planning conversation identified by its threadId.
// @Tags         TourPlan
// @Accept       json
// @Produce      json
// @Param        request body types.RefineParams true "Thread id, message, locations and date window"
// @Success      200 {object} types.PlanResult
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      403 {object} types.Response "Thread Owned By Another User"
// @Failure      410 {object} types.Response "Session Expired"
// @Failure      502 {object} types.Response "AI Engine Unavailable"
// @Security     BearerAuth
// @Router       /tour-plan/refine [post]
func (h *HandlerImpl) Refine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Refine"))
	start := time.Now()

	userID, ok := h.authenticatedUser(w, r, l)
	if !ok {
		return
	}

	var params types.RefineParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Refine(ctx, userID, params)
	h.observe(r, "refine", start, err)
	if err != nil {
		h.respondServiceError(w, r, l, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

// Accept godoc
// @Summary      Accept a tour plan
// @Description  Materializes the refined itinerary into a durable trip.
// @Tags         TourPlan
// @Accept       json
// @Produce      json
// @Param        request body types.AcceptParams true "Thread id, title, description and itinerary"
// @Success      201 {object} map[string]any "tripId and confirmation message"
// @Failure      400 {object} types.Response "Invalid Input"
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      500 {object} types.Response "Persistence Failure"
// @Security     BearerAuth
// @Router       /tour-plan/accept [post]
func (h *HandlerImpl) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Accept"))
	start := time.Now()

	userID, ok := h.authenticatedUser(w, r, l)
	if !ok {
		return
	}

	var params types.AcceptParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if params.Title == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "title is required")
		return
	}

	tripID, err := h.service.Accept(ctx, userID, params)
	h.observe(r, "accept", start, err)
	if err != nil {
		l.ErrorContext(ctx, "Failed to accept plan", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to save the trip")
		return
	}

	m := metrics.Get()
	m.TripsAcceptedTotal.Add(ctx, 1)

	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]any{
		"success": true,
		"tripId":  tripID,
		"message": "Trip saved successfully",
	})
}

// GetSession godoc
// @Summary      Conversation session status
// @Description  Reports whether a planning thread is active, expired, or unknown to this server.
// @Tags         TourPlan
// @Produce      json
// @Param        threadID path string true "Conversation thread id"
// @Success      200 {object} types.PlanSessionStatus
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      403 {object} types.Response "Thread Owned By Another User"
// @Security     BearerAuth
// @Router       /tour-plan/session/{threadID} [get]
func (h *HandlerImpl) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetSession"))

	userID, ok := h.authenticatedUser(w, r, l)
	if !ok {
		return
	}

	threadID := chi.URLParam(r, "threadID")
	if threadID == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "threadID is required")
		return
	}

	status, err := h.service.GetSession(ctx, userID, threadID)
	if err != nil {
		h.respondServiceError(w, r, l, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, status)
}

// EngineHealth godoc
// @Summary      AI engine health
// @Description  Surfaces the engine's dedicated availability signal.
// @Tags         TourPlan
// @Produce      json
// @Success      200 {object} aiengine.HealthStatus
// @Failure      502 {object} types.Response "AI Engine Unavailable"
// @Security     BearerAuth
// @Router       /tour-plan/engine/health [get]
func (h *HandlerImpl) EngineHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "EngineHealth"))

	status, err := h.service.EngineHealth(ctx)
	if err != nil {
		h.respondServiceError(w, r, l, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, status)
}

// authenticatedUser resolves the userID the Authenticate middleware stored in
// the request context.
func (h *HandlerImpl) authenticatedUser(w http.ResponseWriter, r *http.Request, l *slog.Logger) (uuid.UUID, bool) {
	ctx := r.Context()

	userIDStr, ok := appMiddleware.GetUserIDFromContext(ctx)
	if !ok || userIDStr == "" {
		l.ErrorContext(ctx, "User ID not found in context")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		l.ErrorContext(ctx, "Invalid user ID format", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

// respondServiceError maps orchestrator errors onto the response boundary so
// the caller sees the true upstream condition without internals leaking.
func (h *HandlerImpl) respondServiceError(w http.ResponseWriter, r *http.Request, l *slog.Logger, err error) {
	ctx := r.Context()
	l.ErrorContext(ctx, "Tour plan operation failed", slog.Any("error", err))

	var upstream *types.UpstreamError
	switch {
	case errors.Is(err, types.ErrNoLocations):
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrSessionOwnership):
		api.ErrorResponse(w, r, http.StatusForbidden, "This planning session belongs to another user")
	case errors.Is(err, types.ErrSessionExpired):
		api.ErrorResponse(w, r, http.StatusGone, "This planning session has expired")
	case errors.Is(err, types.ErrEngineTimeout):
		api.ErrorResponse(w, r, http.StatusGatewayTimeout, "The AI engine took too long to respond")
	case errors.Is(err, types.ErrEngineUnreachable), errors.Is(err, types.ErrEngineDecode):
		api.ErrorResponse(w, r, http.StatusBadGateway, "The AI engine is currently unavailable")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		api.ErrorResponse(w, r, http.StatusServiceUnavailable, "The AI engine is temporarily unavailable, please retry shortly")
	case errors.As(err, &upstream):
		api.ErrorResponse(w, r, http.StatusBadGateway, upstream.Error())
	default:
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *HandlerImpl) observe(r *http.Request, operation string, start time.Time, err error) {
	m := metrics.Get()
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("error", err != nil),
	)
	m.PlanRequestsTotal.Add(r.Context(), 1, attrs)
	m.PlanDurationSeconds.Record(r.Context(), time.Since(start).Seconds(), attrs)
}
