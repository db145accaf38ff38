package tourplan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/patrickmn/go-cache"

	"github.com/ceylontrails/tour-plan-api/internal/api/trips"
	"github.com/ceylontrails/tour-plan-api/internal/types"
)

// Ensure implementation satisfies the interface
var _ SessionRepository = (*PostgresSessionRepository)(nil)

// SessionRepository keeps the ownership record for conversation threads. The
// thread's content lives in the AI engine; this table only binds a threadId
// to a user with a freshness window.
type SessionRepository interface {
	Upsert(ctx context.Context, session *types.PlanSession) error
	Get(ctx context.Context, threadID string) (*types.PlanSession, error)
	Touch(ctx context.Context, threadID string, activityAt, expiresAt time.Time) error
}

// PostgresSessionRepository stores sessions in plan_sessions with a small
// lookaside cache; session rows are read on every refine.
type PostgresSessionRepository struct {
	db     trips.PGX
	cache  *cache.Cache
	logger *slog.Logger
}

func NewPostgresSessionRepository(db trips.PGX, logger *slog.Logger) *PostgresSessionRepository {
	return &PostgresSessionRepository{
		db:     db,
		cache:  cache.New(5*time.Minute, 10*time.Minute),
		logger: logger,
	}
}

func (r *PostgresSessionRepository) Upsert(ctx context.Context, session *types.PlanSession) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO plan_sessions (thread_id, user_id, created_at, last_activity_at, expires_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (thread_id) DO UPDATE
        SET last_activity_at = EXCLUDED.last_activity_at,
            expires_at       = EXCLUDED.expires_at`,
		session.ThreadID, session.UserID, session.CreatedAt, session.LastActivityAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert plan session: %w", err)
	}
	r.cache.Set(session.ThreadID, session, cache.DefaultExpiration)
	return nil
}

func (r *PostgresSessionRepository) Get(ctx context.Context, threadID string) (*types.PlanSession, error) {
	if cached, found := r.cache.Get(threadID); found {
		if session, ok := cached.(*types.PlanSession); ok {
			return session, nil
		}
	}

	var session types.PlanSession
	err := r.db.QueryRow(ctx, `
        SELECT thread_id, user_id, created_at, last_activity_at, expires_at
        FROM plan_sessions
        WHERE thread_id = $1`,
		threadID,
	).Scan(&session.ThreadID, &session.UserID, &session.CreatedAt, &session.LastActivityAt, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("fetch plan session: %w", err)
	}

	r.cache.Set(threadID, &session, cache.DefaultExpiration)
	return &session, nil
}

func (r *PostgresSessionRepository) Touch(ctx context.Context, threadID string, activityAt, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx, `
        UPDATE plan_sessions
        SET last_activity_at = $2, expires_at = $3
        WHERE thread_id = $1`,
		threadID, activityAt, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("touch plan session: %w", err)
	}
	// Drop rather than rewrite; the next Get refreshes it.
	r.cache.Delete(threadID)
	return nil
}
