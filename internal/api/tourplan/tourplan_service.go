package tourplan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ceylontrails/tour-plan-api/internal/api/aiengine"
	"github.com/ceylontrails/tour-plan-api/internal/api/preferences"
	"github.com/ceylontrails/tour-plan-api/internal/api/trips"
	"github.com/ceylontrails/tour-plan-api/internal/types"
)

// DefaultSessionTTL is how long a conversation thread stays refinable before
// its ownership record expires.
const DefaultSessionTTL = 24 * time.Hour

// Ensure implementation satisfies the interface
var _ Service = (*ServiceImpl)(nil)

// Service owns the plan conversation lifecycle: generate, refine, accept.
// Every operation is request-scoped and issues at most one engine or
// persistence call.
type Service interface {
	Generate(ctx context.Context, userID uuid.UUID, params types.GenerateParams) (*types.PlanResult, error)
	Refine(ctx context.Context, userID uuid.UUID, params types.RefineParams) (*types.PlanResult, error)
	Accept(ctx context.Context, userID uuid.UUID, params types.AcceptParams) (uuid.UUID, error)
	GetSession(ctx context.Context, userID uuid.UUID, threadID string) (*types.PlanSessionStatus, error)
	EngineHealth(ctx context.Context) (*aiengine.HealthStatus, error)
}

// ServiceImpl provides the implementation for Service.
type ServiceImpl struct {
	logger      *slog.Logger
	engine      aiengine.Client
	sessionRepo SessionRepository
	tripRepo    trips.Repository
	prefService preferences.Service
	sessionTTL  time.Duration
}

func NewService(engine aiengine.Client, sessionRepo SessionRepository, tripRepo trips.Repository, prefService preferences.Service, sessionTTL time.Duration, logger *slog.Logger) *ServiceImpl {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &ServiceImpl{
		logger:      logger,
		engine:      engine,
		sessionRepo: sessionRepo,
		tripRepo:    tripRepo,
		prefService: prefService,
		sessionTTL:  sessionTTL,
	}
}

// Generate starts a fresh conversation: no thread_id on the wire, so the
// engine mints one. When the caller supplied no preferences, the user's
// scored preferences bias the plan instead.
func (s *ServiceImpl) Generate(ctx context.Context, userID uuid.UUID, params types.GenerateParams) (*types.PlanResult, error) {
	ctx, span := otel.Tracer("TourPlanService").Start(ctx, "Generate", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.Int("locations.count", len(params.SelectedLocations)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Generate"), slog.String("userID", userID.String()))

	if len(params.SelectedLocations) == 0 {
		span.SetStatus(codes.Error, "no locations selected")
		return nil, types.ErrNoLocations
	}

	prefs := params.Preferences
	if len(prefs) == 0 && s.prefService != nil {
		scored, err := s.prefService.EnginePreferences(ctx, userID)
		if err != nil {
			// Plan generation survives a missing preference profile.
			l.WarnContext(ctx, "Preference aggregation failed, generating without bias", slog.Any("error", err))
		} else {
			prefs = scored
		}
	}

	resp, err := s.engine.Chat(ctx, aiengine.ChatRequest{
		Message:           params.Message,
		SelectedLocations: toWireLocations(params.SelectedLocations),
		StartDate:         params.StartDate,
		EndDate:           params.EndDate,
		Preferences:       prefs,
	})
	if err != nil {
		l.ErrorContext(ctx, "Engine chat failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "engine chat failed")
		// Pass the upstream condition through unmodified.
		return nil, err
	}

	s.recordSession(ctx, l, userID, resp.ThreadID)

	l.InfoContext(ctx, "Plan generated",
		slog.String("threadID", resp.ThreadID),
		slog.Int("itinerary_items", len(resp.Itinerary)),
	)
	span.SetStatus(codes.Ok, "plan generated")
	return planResultFrom(resp), nil
}

// Refine continues an existing thread. When an ownership record exists it is
// validated; a thread with no record is still forwarded, since the engine
// treats an unknown thread as a fresh conversation.
func (s *ServiceImpl) Refine(ctx context.Context, userID uuid.UUID, params types.RefineParams) (*types.PlanResult, error) {
	ctx, span := otel.Tracer("TourPlanService").Start(ctx, "Refine", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("thread.id", params.ThreadID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Refine"), slog.String("userID", userID.String()), slog.String("threadID", params.ThreadID))

	known := false
	if params.ThreadID != "" {
		session, err := s.sessionRepo.Get(ctx, params.ThreadID)
		switch {
		case errors.Is(err, types.ErrNotFound):
			l.DebugContext(ctx, "No session record for thread, forwarding as-is")
		case err != nil:
			l.ErrorContext(ctx, "Session lookup failed", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "session lookup failed")
			return nil, err
		case session.UserID != userID:
			l.WarnContext(ctx, "Thread owned by another user")
			span.SetStatus(codes.Error, "session ownership mismatch")
			return nil, types.ErrSessionOwnership
		case session.Expired(time.Now()):
			span.SetStatus(codes.Error, "session expired")
			return nil, types.ErrSessionExpired
		default:
			known = true
		}
	}

	resp, err := s.engine.Chat(ctx, aiengine.ChatRequest{
		ThreadID:          params.ThreadID,
		Message:           params.Message,
		SelectedLocations: toWireLocations(params.SelectedLocations),
		StartDate:         params.StartDate,
		EndDate:           params.EndDate,
		Preferences:       params.Preferences,
	})
	if err != nil {
		l.ErrorContext(ctx, "Engine chat failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "engine chat failed")
		return nil, err
	}

	// A validated session slides its expiry window. An unknown thread, or a
	// thread the engine re-minted, gets a fresh record instead.
	if known && resp.ThreadID == params.ThreadID {
		s.touchSession(ctx, l, resp.ThreadID)
	} else {
		s.recordSession(ctx, l, userID, resp.ThreadID)
	}

	l.InfoContext(ctx, "Plan refined", slog.Int("itinerary_items", len(resp.Itinerary)))
	span.SetStatus(codes.Ok, "plan refined")
	return planResultFrom(resp), nil
}

// Accept materializes the itinerary into a durable trip. Destinations are the
// distinct location names; the trip's dates span the itinerary's day indices
// anchored at acceptance. Exactly one CreateTrip call, never retried.
func (s *ServiceImpl) Accept(ctx context.Context, userID uuid.UUID, params types.AcceptParams) (uuid.UUID, error) {
	ctx, span := otel.Tracer("TourPlanService").Start(ctx, "Accept", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("thread.id", params.ThreadID),
		attribute.Int("itinerary.count", len(params.Itinerary)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Accept"), slog.String("userID", userID.String()))

	now := time.Now()
	startDate, endDate := deriveTripDates(params.Itinerary, now)

	aiMetadata := map[string]any{
		"session_id":   params.ThreadID,
		"generated_at": now.UTC().Format(time.RFC3339),
	}
	for k, v := range params.Metadata {
		aiMetadata[k] = v
	}

	spec := types.TripSpec{
		UserID:       userID,
		Title:        params.Title,
		Description:  params.Description,
		Destinations: deriveDestinations(params.Itinerary),
		StartDate:    startDate,
		EndDate:      endDate,
		Itinerary:    buildItineraryItems(params.Itinerary),
		GeneratedBy:  "ai",
		AIMetadata:   aiMetadata,
	}

	trip, err := s.tripRepo.CreateTrip(ctx, spec)
	if err != nil {
		l.ErrorContext(ctx, "Trip persistence failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "trip persistence failed")
		return uuid.Nil, fmt.Errorf("persist accepted plan: %w", err)
	}

	l.InfoContext(ctx, "Plan accepted",
		slog.String("tripID", trip.ID.String()),
		slog.Int("destinations", len(spec.Destinations)),
	)
	span.SetStatus(codes.Ok, "plan accepted")
	return trip.ID, nil
}

// GetSession reports what the ownership table knows about a thread. A thread
// with no record is "unknown": the engine may still recognize it, but we
// don't fabricate "active".
func (s *ServiceImpl) GetSession(ctx context.Context, userID uuid.UUID, threadID string) (*types.PlanSessionStatus, error) {
	ctx, span := otel.Tracer("TourPlanService").Start(ctx, "GetSession", trace.WithAttributes(
		attribute.String("thread.id", threadID),
	))
	defer span.End()

	session, err := s.sessionRepo.Get(ctx, threadID)
	if errors.Is(err, types.ErrNotFound) {
		span.SetStatus(codes.Ok, "session unknown")
		return &types.PlanSessionStatus{ThreadID: threadID, Status: types.SessionStatusUnknown}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session lookup failed")
		return nil, err
	}
	if session.UserID != userID {
		span.SetStatus(codes.Error, "session ownership mismatch")
		return nil, types.ErrSessionOwnership
	}

	status := types.SessionStatusActive
	if session.Expired(time.Now()) {
		status = types.SessionStatusExpired
	}
	span.SetStatus(codes.Ok, "session fetched")
	return &types.PlanSessionStatus{ThreadID: threadID, Status: status}, nil
}

// EngineHealth surfaces the engine's dedicated availability signal.
func (s *ServiceImpl) EngineHealth(ctx context.Context) (*aiengine.HealthStatus, error) {
	return s.engine.Health(ctx)
}

// recordSession is bookkeeping around the engine-owned thread; a failure here
// must not void a plan the engine already produced.
func (s *ServiceImpl) recordSession(ctx context.Context, l *slog.Logger, userID uuid.UUID, threadID string) {
	if threadID == "" {
		return
	}
	now := time.Now().UTC()
	err := s.sessionRepo.Upsert(ctx, &types.PlanSession{
		ThreadID:       threadID,
		UserID:         userID,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.sessionTTL),
	})
	if err != nil {
		l.WarnContext(ctx, "Failed to record plan session", slog.Any("error", err))
	}
}

// touchSession slides the expiry window of a session that already exists,
// leaving created_at untouched. Best-effort like recordSession.
func (s *ServiceImpl) touchSession(ctx context.Context, l *slog.Logger, threadID string) {
	now := time.Now().UTC()
	if err := s.sessionRepo.Touch(ctx, threadID, now, now.Add(s.sessionTTL)); err != nil {
		l.WarnContext(ctx, "Failed to refresh plan session", slog.Any("error", err))
	}
}

func toWireLocations(locations []types.SelectedLocation) []aiengine.Location {
	wire := make([]aiengine.Location, 0, len(locations))
	for _, loc := range locations {
		wire = append(wire, aiengine.Location{
			Name:       loc.Name,
			Latitude:   loc.Latitude,
			Longitude:  loc.Longitude,
			ImageURL:   loc.ImageURL,
			DistanceKm: loc.DistanceKm,
		})
	}
	return wire
}

func planResultFrom(resp *aiengine.ChatResponse) *types.PlanResult {
	return &types.PlanResult{
		ThreadID:    resp.ThreadID,
		Response:    resp.Response,
		Itinerary:   resp.Itinerary,
		Metadata:    resp.Metadata,
		Constraints: resp.Constraints,
		Warnings:    resp.Warnings,
		Tips:        resp.Tips,
	}
}
