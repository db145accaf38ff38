package preferences

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Ensure implementation satisfies the interface
var _ Service = (*ServiceImpl)(nil)

// Service shapes a user's scored preferences the way the AI engine's
// preferences field expects them.
type Service interface {
	EnginePreferences(ctx context.Context, userID uuid.UUID) (map[string]any, error)
}

type ServiceImpl struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{repo: repo, logger: logger}
}

// EnginePreferences returns nil when the user has no scored interests so the
// orchestrator can omit the field entirely.
func (s *ServiceImpl) EnginePreferences(ctx context.Context, userID uuid.UUID) (map[string]any, error) {
	l := s.logger.With(slog.String("method", "EnginePreferences"), slog.String("userID", userID.String()))

	scored, err := s.repo.GetScoredPreferences(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch scored preferences", slog.Any("error", err))
		return nil, fmt.Errorf("aggregate preferences: %w", err)
	}
	if len(scored) == 0 {
		return nil, nil
	}

	interests := make([]map[string]any, 0, len(scored))
	for _, p := range scored {
		interests = append(interests, map[string]any{
			"name":   p.Name,
			"weight": p.Weight,
		})
	}

	l.DebugContext(ctx, "Scored preferences aggregated", slog.Int("count", len(scored)))
	return map[string]any{"interests": interests}, nil
}
