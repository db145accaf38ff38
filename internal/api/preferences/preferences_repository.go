package preferences

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ceylontrails/tour-plan-api/internal/types"
)

// Querier is the read-only pgx surface the repository needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Ensure implementation satisfies the interface
var _ Repository = (*PostgresRepository)(nil)

// Repository reads a user's weighted interests.
type Repository interface {
	GetScoredPreferences(ctx context.Context, userID uuid.UUID) ([]types.ScoredPreference, error)
}

type PostgresRepository struct {
	db     Querier
	logger *slog.Logger
}

func NewPostgresRepository(db Querier, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

func (r *PostgresRepository) GetScoredPreferences(ctx context.Context, userID uuid.UUID) ([]types.ScoredPreference, error) {
	ctx, span := otel.Tracer("PreferencesRepo").Start(ctx, "GetScoredPreferences", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	rows, err := r.db.Query(ctx, `
        SELECT name, weight
        FROM user_preferences
        WHERE user_id = $1
        ORDER BY weight DESC, name`,
		userID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch preferences")
		return nil, fmt.Errorf("fetch scored preferences: %w", err)
	}
	defer rows.Close()

	var prefs []types.ScoredPreference
	for rows.Next() {
		var p types.ScoredPreference
		if err := rows.Scan(&p.Name, &p.Weight); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scan scored preference: %w", err)
		}
		prefs = append(prefs, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("iterate scored preferences: %w", err)
	}

	span.SetStatus(codes.Ok, "preferences fetched")
	return prefs, nil
}
