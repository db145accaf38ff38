package tourplan

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ceylontrails/tour-plan-api/internal/api/aiengine"
	"github.com/ceylontrails/tour-plan-api/internal/types"
)

// MockEngineClient is a mock implementation of aiengine.Client
type MockEngineClient struct {
	mock.Mock
}

func (m *MockEngineClient) Chat(ctx context.Context, req aiengine.ChatRequest) (*aiengine.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aiengine.ChatResponse), args.Error(1)
}

func (m *MockEngineClient) Recommend(ctx context.Context, req aiengine.RecommendRequest) (*aiengine.RecommendResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aiengine.RecommendResponse), args.Error(1)
}

func (m *MockEngineClient) PredictCrowd(ctx context.Context, req aiengine.CrowdRequest) (*aiengine.CrowdResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aiengine.CrowdResponse), args.Error(1)
}

func (m *MockEngineClient) EventImpact(ctx context.Context, req aiengine.EventImpactRequest) (*aiengine.EventImpactResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aiengine.EventImpactResponse), args.Error(1)
}

func (m *MockEngineClient) GoldenHour(ctx context.Context, req aiengine.GoldenHourRequest) (*aiengine.GoldenHourResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aiengine.GoldenHourResponse), args.Error(1)
}

func (m *MockEngineClient) Health(ctx context.Context) (*aiengine.HealthStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aiengine.HealthStatus), args.Error(1)
}

// MockSessionRepo is a mock implementation of SessionRepository
type MockSessionRepo struct {
	mock.Mock
}

func (m *MockSessionRepo) Upsert(ctx context.Context, session *types.PlanSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionRepo) Get(ctx context.Context, threadID string) (*types.PlanSession, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.PlanSession), args.Error(1)
}

func (m *MockSessionRepo) Touch(ctx context.Context, threadID string, activityAt, expiresAt time.Time) error {
	args := m.Called(ctx, threadID, activityAt, expiresAt)
	return args.Error(0)
}

// MockTripRepo is a mock implementation of trips.Repository
type MockTripRepo struct {
	mock.Mock
}

func (m *MockTripRepo) CreateTrip(ctx context.Context, spec types.TripSpec) (*types.SavedTrip, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SavedTrip), args.Error(1)
}

func (m *MockTripRepo) GetTrip(ctx context.Context, userID, tripID uuid.UUID) (*types.SavedTrip, error) {
	args := m.Called(ctx, userID, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SavedTrip), args.Error(1)
}

// MockPrefService is a mock implementation of preferences.Service
type MockPrefService struct {
	mock.Mock
}

func (m *MockPrefService) EnginePreferences(ctx context.Context, userID uuid.UUID) (map[string]any, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

func newTestService(engine *MockEngineClient, sessions *MockSessionRepo, tripRepo *MockTripRepo, prefs *MockPrefService) *ServiceImpl {
	return NewService(engine, sessions, tripRepo, prefs, time.Hour, slog.Default())
}

func intPtr(v int) *int { return &v }

func TestGenerate_StartsFreshConversation(t *testing.T) {
	engine := new(MockEngineClient)
	sessions := new(MockSessionRepo)
	tripRepo := new(MockTripRepo)
	prefs := new(MockPrefService)
	service := newTestService(engine, sessions, tripRepo, prefs)

	ctx := context.Background()
	userID := uuid.New()

	params := types.GenerateParams{
		SelectedLocations: []types.SelectedLocation{
			{Name: "Sigiriya", Latitude: 7.957, Longitude: 80.76, ImageURL: "https://img.example/sigiriya.jpg"},
		},
		StartDate:   "2024-01-01",
		EndDate:     "2024-01-03",
		Preferences: map[string]any{"pace": "relaxed"},
		Message:     "two relaxed days",
	}

	engine.On("Chat", mock.Anything, mock.MatchedBy(func(req aiengine.ChatRequest) bool {
		return req.ThreadID == "" &&
			len(req.SelectedLocations) == 1 &&
			req.SelectedLocations[0].ImageURL == "https://img.example/sigiriya.jpg" &&
			req.Message == "two relaxed days" &&
			req.Preferences["pace"] == "relaxed"
	})).Return(&aiengine.ChatResponse{
		ThreadID:  "thread-42",
		Response:  "Here is your plan",
		Itinerary: []types.ItineraryItem{{Time: "09:00", Location: "Sigiriya", Activity: "Rock fortress climb"}},
	}, nil)
	sessions.On("Upsert", mock.Anything, mock.MatchedBy(func(s *types.PlanSession) bool {
		return s.ThreadID == "thread-42" && s.UserID == userID
	})).Return(nil)

	result, err := service.Generate(ctx, userID, params)

	require.NoError(t, err)
	assert.Equal(t, "thread-42", result.ThreadID)
	assert.Equal(t, "Here is your plan", result.Response)
	assert.Len(t, result.Itinerary, 1)
	prefs.AssertNotCalled(t, "EnginePreferences", mock.Anything, mock.Anything)
	engine.AssertExpectations(t)
	sessions.AssertExpectations(t)
}

func TestGenerate_RequiresLocations(t *testing.T) {
	engine := new(MockEngineClient)
	service := newTestService(engine, new(MockSessionRepo), new(MockTripRepo), new(MockPrefService))

	_, err := service.Generate(context.Background(), uuid.New(), types.GenerateParams{})

	assert.ErrorIs(t, err, types.ErrNoLocations)
	engine.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
}

func TestGenerate_FallsBackToScoredPreferences(t *testing.T) {
	engine := new(MockEngineClient)
	sessions := new(MockSessionRepo)
	prefs := new(MockPrefService)
	service := newTestService(engine, sessions, new(MockTripRepo), prefs)

	ctx := context.Background()
	userID := uuid.New()
	scored := map[string]any{"interests": []map[string]any{{"name": "temples", "weight": 0.9}}}

	prefs.On("EnginePreferences", mock.Anything, userID).Return(scored, nil)
	engine.On("Chat", mock.Anything, mock.MatchedBy(func(req aiengine.ChatRequest) bool {
		_, ok := req.Preferences["interests"]
		return ok
	})).Return(&aiengine.ChatResponse{ThreadID: "thread-7"}, nil)
	sessions.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	_, err := service.Generate(ctx, userID, types.GenerateParams{
		SelectedLocations: []types.SelectedLocation{{Name: "Kandy", Latitude: 7.29, Longitude: 80.63}},
	})

	require.NoError(t, err)
	prefs.AssertExpectations(t)
	engine.AssertExpectations(t)
}

func TestGenerate_EngineFailurePropagates(t *testing.T) {
	engine := new(MockEngineClient)
	sessions := new(MockSessionRepo)
	prefs := new(MockPrefService)
	service := newTestService(engine, sessions, new(MockTripRepo), prefs)

	ctx := context.Background()
	prefs.On("EnginePreferences", mock.Anything, mock.Anything).Return(nil, nil)
	upstream := &types.UpstreamError{Status: 503, Body: "engine down"}
	engine.On("Chat", mock.Anything, mock.Anything).Return(nil, upstream)

	_, err := service.Generate(ctx, uuid.New(), types.GenerateParams{
		SelectedLocations: []types.SelectedLocation{{Name: "Galle", Latitude: 6.03, Longitude: 80.22}},
	})

	var got *types.UpstreamError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 503, got.Status)
	sessions.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestRefine_ValidatesOwnership(t *testing.T) {
	engine := new(MockEngineClient)
	sessions := new(MockSessionRepo)
	service := newTestService(engine, sessions, new(MockTripRepo), new(MockPrefService))

	ctx := context.Background()
	owner := uuid.New()
	intruder := uuid.New()
	now := time.Now()

	sessions.On("Get", mock.Anything, "thread-9").Return(&types.PlanSession{
		ThreadID:  "thread-9",
		UserID:    owner,
		ExpiresAt: now.Add(time.Hour),
	}, nil)

	_, err := service.Refine(ctx, intruder, types.RefineParams{ThreadID: "thread-9", Message: "add a beach day"})

	assert.ErrorIs(t, err, types.ErrSessionOwnership)
	engine.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
}

func TestRefine_RejectsExpiredSession(t *testing.T) {
	engine := new(MockEngineClient)
	sessions := new(MockSessionRepo)
	service := newTestService(engine, sessions, new(MockTripRepo), new(MockPrefService))

	ctx := context.Background()
	userID := uuid.New()

	sessions.On("Get", mock.Anything, "thread-9").Return(&types.PlanSession{
		ThreadID:  "thread-9",
		UserID:    userID,
		ExpiresAt: time.Now().Add(-time.Minute),
	}, nil)

	_, err := service.Refine(ctx, userID, types.RefineParams{ThreadID: "thread-9", Message: "more food stops"})

	assert.ErrorIs(t, err, types.ErrSessionExpired)
	engine.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
}

func TestRefine_SlidesExpiryOfKnownSession(t *testing.T) {
	engine := new(MockEngineClient)
	sessions := new(MockSessionRepo)
	service := newTestService(engine, sessions, new(MockTripRepo), new(MockPrefService))

	ctx := context.Background()
	userID := uuid.New()

	sessions.On("Get", mock.Anything, "thread-9").Return(&types.PlanSession{
		ThreadID:  "thread-9",
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil)
	engine.On("Chat", mock.Anything, mock.Anything).Return(&aiengine.ChatResponse{ThreadID: "thread-9"}, nil)
	sessions.On("Touch", mock.Anything, "thread-9", mock.Anything, mock.Anything).Return(nil)

	_, err := service.Refine(ctx, userID, types.RefineParams{ThreadID: "thread-9", Message: "swap day two"})

	require.NoError(t, err)
	// an existing record is refreshed in place, never rewritten
	sessions.AssertCalled(t, "Touch", mock.Anything, "thread-9", mock.Anything, mock.Anything)
	sessions.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestRefine_UnknownThreadStillForwarded(t *testing.T) {
	engine := new(MockEngineClient)
	sessions := new(MockSessionRepo)
	service := newTestService(engine, sessions, new(MockTripRepo), new(MockPrefService))

	ctx := context.Background()
	userID := uuid.New()

	sessions.On("Get", mock.Anything, "thread-ghost").Return(nil, types.ErrNotFound)
	engine.On("Chat", mock.Anything, mock.MatchedBy(func(req aiengine.ChatRequest) bool {
		return req.ThreadID == "thread-ghost"
	})).Return(&aiengine.ChatResponse{ThreadID: "thread-fresh"}, nil)
	sessions.On("Upsert", mock.Anything, mock.MatchedBy(func(s *types.PlanSession) bool {
		return s.ThreadID == "thread-fresh"
	})).Return(nil)

	result, err := service.Refine(ctx, userID, types.RefineParams{ThreadID: "thread-ghost", Message: "swap day two"})

	require.NoError(t, err)
	assert.Equal(t, "thread-fresh", result.ThreadID)
	engine.AssertExpectations(t)
	sessions.AssertExpectations(t)
}

func TestAccept_DeduplicatesDestinations(t *testing.T) {
	tripRepo := new(MockTripRepo)
	service := newTestService(new(MockEngineClient), new(MockSessionRepo), tripRepo, new(MockPrefService))

	ctx := context.Background()
	userID := uuid.New()
	tripID := uuid.New()

	var captured types.TripSpec
	tripRepo.On("CreateTrip", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(types.TripSpec)
	}).Return(&types.SavedTrip{ID: tripID}, nil)

	_, err := service.Accept(ctx, userID, types.AcceptParams{
		ThreadID: "thread-1",
		Title:    "Hill country loop",
		Itinerary: []types.ItineraryItem{
			{Location: "A", Activity: "walk"},
			{Location: "B", Activity: "museum"},
			{Location: "A", Activity: "dinner"},
			{Location: "C", Activity: "viewpoint"},
		},
	})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, captured.Destinations)
	assert.Len(t, captured.Destinations, 3)
}

func TestAccept_DerivesDateSpanFromDayIndices(t *testing.T) {
	tripRepo := new(MockTripRepo)
	service := newTestService(new(MockEngineClient), new(MockSessionRepo), tripRepo, new(MockPrefService))

	ctx := context.Background()

	var captured types.TripSpec
	tripRepo.On("CreateTrip", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(types.TripSpec)
	}).Return(&types.SavedTrip{ID: uuid.New()}, nil)

	_, err := service.Accept(ctx, uuid.New(), types.AcceptParams{
		Title: "Spread test",
		Itinerary: []types.ItineraryItem{
			{Location: "A", Day: intPtr(1)},
			{Location: "B", Day: intPtr(1)},
			{Location: "C", Day: intPtr(2)},
			{Location: "D", Day: intPtr(3)},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 2*24*time.Hour, captured.EndDate.Sub(captured.StartDate))
}

func TestAccept_MissingDayDefaultsToOne(t *testing.T) {
	tripRepo := new(MockTripRepo)
	service := newTestService(new(MockEngineClient), new(MockSessionRepo), tripRepo, new(MockPrefService))

	ctx := context.Background()

	var captured types.TripSpec
	tripRepo.On("CreateTrip", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(types.TripSpec)
	}).Return(&types.SavedTrip{ID: uuid.New()}, nil)

	_, err := service.Accept(ctx, uuid.New(), types.AcceptParams{
		Title: "Single day",
		Itinerary: []types.ItineraryItem{
			{Location: "A"},
			{Location: "B", Day: intPtr(2)},
		},
	})

	require.NoError(t, err)
	// absent day reads as 1, so the span is 2-1 = 1 day
	assert.Equal(t, 24*time.Hour, captured.EndDate.Sub(captured.StartDate))
}

func TestAccept_OrderDefaultsToIndex(t *testing.T) {
	tripRepo := new(MockTripRepo)
	service := newTestService(new(MockEngineClient), new(MockSessionRepo), tripRepo, new(MockPrefService))

	ctx := context.Background()

	var captured types.TripSpec
	tripRepo.On("CreateTrip", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(types.TripSpec)
	}).Return(&types.SavedTrip{ID: uuid.New()}, nil)

	_, err := service.Accept(ctx, uuid.New(), types.AcceptParams{
		Title: "Order test",
		Itinerary: []types.ItineraryItem{
			{Location: "A", Activity: "x"},
			{Location: "B", Activity: "y", Order: intPtr(5)},
		},
	})

	require.NoError(t, err)
	require.Len(t, captured.Itinerary, 2)
	assert.Equal(t, 0, captured.Itinerary[0].Order)
	assert.Equal(t, 5, captured.Itinerary[1].Order)
}

func TestAccept_PersistenceFailureIsNotRetried(t *testing.T) {
	tripRepo := new(MockTripRepo)
	service := newTestService(new(MockEngineClient), new(MockSessionRepo), tripRepo, new(MockPrefService))

	ctx := context.Background()
	tripRepo.On("CreateTrip", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	_, err := service.Accept(ctx, uuid.New(), types.AcceptParams{
		Title:     "Doomed",
		Itinerary: []types.ItineraryItem{{Location: "A"}},
	})

	require.Error(t, err)
	tripRepo.AssertNumberOfCalls(t, "CreateTrip", 1)
}

func TestAccept_DerivationIsPure(t *testing.T) {
	tripRepo := new(MockTripRepo)
	service := newTestService(new(MockEngineClient), new(MockSessionRepo), tripRepo, new(MockPrefService))

	ctx := context.Background()
	userID := uuid.New()

	var specs []types.TripSpec
	tripRepo.On("CreateTrip", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		specs = append(specs, args.Get(1).(types.TripSpec))
	}).Return(&types.SavedTrip{ID: uuid.New()}, nil)

	params := types.AcceptParams{
		Title: "Twice",
		Itinerary: []types.ItineraryItem{
			{Location: "Ella", Day: intPtr(1)},
			{Location: "Nuwara Eliya", Day: intPtr(2)},
			{Location: "Ella", Day: intPtr(2)},
		},
	}

	_, err := service.Accept(ctx, userID, params)
	require.NoError(t, err)
	_, err = service.Accept(ctx, userID, params)
	require.NoError(t, err)

	require.Len(t, specs, 2)
	assert.Equal(t, specs[0].Destinations, specs[1].Destinations)
	assert.Equal(t, specs[0].EndDate.Sub(specs[0].StartDate), specs[1].EndDate.Sub(specs[1].StartDate))
	assert.Equal(t, specs[0].Itinerary, specs[1].Itinerary)
}

func TestGetSession_Statuses(t *testing.T) {
	userID := uuid.New()
	now := time.Now()

	tests := []struct {
		name       string
		setupMock  func(sessions *MockSessionRepo)
		wantStatus string
		wantErr    error
	}{
		{
			name: "unknown thread",
			setupMock: func(sessions *MockSessionRepo) {
				sessions.On("Get", mock.Anything, "t").Return(nil, types.ErrNotFound)
			},
			wantStatus: types.SessionStatusUnknown,
		},
		{
			name: "active session",
			setupMock: func(sessions *MockSessionRepo) {
				sessions.On("Get", mock.Anything, "t").Return(&types.PlanSession{
					ThreadID: "t", UserID: userID, ExpiresAt: now.Add(time.Hour),
				}, nil)
			},
			wantStatus: types.SessionStatusActive,
		},
		{
			name: "expired session",
			setupMock: func(sessions *MockSessionRepo) {
				sessions.On("Get", mock.Anything, "t").Return(&types.PlanSession{
					ThreadID: "t", UserID: userID, ExpiresAt: now.Add(-time.Hour),
				}, nil)
			},
			wantStatus: types.SessionStatusExpired,
		},
		{
			name: "foreign session",
			setupMock: func(sessions *MockSessionRepo) {
				sessions.On("Get", mock.Anything, "t").Return(&types.PlanSession{
					ThreadID: "t", UserID: uuid.New(), ExpiresAt: now.Add(time.Hour),
				}, nil)
			},
			wantErr: types.ErrSessionOwnership,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sessions := new(MockSessionRepo)
			tc.setupMock(sessions)
			service := newTestService(new(MockEngineClient), sessions, new(MockTripRepo), new(MockPrefService))

			status, err := service.GetSession(context.Background(), userID, "t")

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, status.Status)
			assert.Equal(t, "t", status.ThreadID)
		})
	}
}

// TestGenerateThenAccept walks the full lifecycle against a deterministic
// engine stub: generate a plan for Kandy, then accept the itinerary it
// returned.
func TestGenerateThenAccept(t *testing.T) {
	engine := new(MockEngineClient)
	sessions := new(MockSessionRepo)
	tripRepo := new(MockTripRepo)
	prefs := new(MockPrefService)
	service := newTestService(engine, sessions, tripRepo, prefs)

	ctx := context.Background()
	prefs.On("EnginePreferences", mock.Anything, mock.Anything).Return(nil, nil)
	userID := uuid.New()
	tripID := uuid.New()

	itinerary := []types.ItineraryItem{
		{Time: "09:00", Location: "Kandy", Activity: "Temple of the Tooth", DurationMinutes: 120, Day: intPtr(1)},
		{Time: "14:00", Location: "Kandy", Activity: "Lake walk", DurationMinutes: 60, Day: intPtr(1)},
	}

	engine.On("Chat", mock.Anything, mock.Anything).Return(&aiengine.ChatResponse{
		ThreadID:  "thread-kandy",
		Response:  "A relaxed Kandy day",
		Itinerary: itinerary,
	}, nil)
	sessions.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	plan, err := service.Generate(ctx, userID, types.GenerateParams{
		SelectedLocations: []types.SelectedLocation{{Name: "Kandy", Latitude: 7.29, Longitude: 80.63}},
		StartDate:         "2024-01-01",
		EndDate:           "2024-01-03",
	})
	require.NoError(t, err)
	require.Equal(t, "thread-kandy", plan.ThreadID)
	require.NotEmpty(t, plan.Itinerary)

	var captured types.TripSpec
	tripRepo.On("CreateTrip", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(types.TripSpec)
	}).Return(&types.SavedTrip{ID: tripID}, nil)

	gotTripID, err := service.Accept(ctx, userID, types.AcceptParams{
		ThreadID:  plan.ThreadID,
		Title:     "Kandy Trip",
		Itinerary: plan.Itinerary,
	})

	require.NoError(t, err)
	assert.Equal(t, tripID, gotTripID)
	assert.Equal(t, []string{"Kandy"}, captured.Destinations)
	assert.Equal(t, "ai", captured.GeneratedBy)
	assert.Equal(t, "thread-kandy", captured.AIMetadata["session_id"])
}
