package trips

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ceylontrails/tour-plan-api/internal/types"
)

// PGX is the slice of pgxpool.Pool the repository uses; pgxmock satisfies it
// in tests.
type PGX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ensure implementation satisfies the interface
var _ Repository = (*PostgresRepository)(nil)

// Repository durably records accepted plans. The orchestrator calls
// CreateTrip exactly once per accept and assumes no transaction guarantees
// beyond what the repository itself provides.
type Repository interface {
	CreateTrip(ctx context.Context, spec types.TripSpec) (*types.SavedTrip, error)
	GetTrip(ctx context.Context, userID, tripID uuid.UUID) (*types.SavedTrip, error)
}

// PostgresRepository persists trips and their itinerary items in one tx.
type PostgresRepository struct {
	db     PGX
	logger *slog.Logger
}

func NewPostgresRepository(db PGX, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

func (r *PostgresRepository) CreateTrip(ctx context.Context, spec types.TripSpec) (*types.SavedTrip, error) {
	ctx, span := otel.Tracer("TripRepo").Start(ctx, "CreateTrip", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("user.id", spec.UserID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateTrip"), slog.String("userID", spec.UserID.String()))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to begin transaction")
		return nil, fmt.Errorf("begin create trip tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tripID := uuid.New()
	now := time.Now().UTC()

	_, err = tx.Exec(ctx, `
        INSERT INTO trips (id, user_id, title, description, destinations, start_date, end_date, generated_by, ai_metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		tripID, spec.UserID, spec.Title, spec.Description, spec.Destinations,
		spec.StartDate, spec.EndDate, spec.GeneratedBy, spec.AIMetadata, now,
	)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert trip", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert trip")
		return nil, fmt.Errorf("insert trip: %w", err)
	}

	for _, item := range spec.Itinerary {
		_, err = tx.Exec(ctx, `
            INSERT INTO trip_itinerary_items (trip_id, item_order, item_time, location_name, activity, duration_minutes, notes, crowd_prediction, lighting_quality)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			tripID, item.Order, item.Time, item.LocationName, item.Activity,
			item.DurationMinutes, item.Notes, item.CrowdPrediction, item.LightingQuality,
		)
		if err != nil {
			l.ErrorContext(ctx, "Failed to insert itinerary item", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to insert itinerary item")
			return nil, fmt.Errorf("insert itinerary item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to commit trip")
		return nil, fmt.Errorf("commit create trip tx: %w", err)
	}

	l.InfoContext(ctx, "Trip created", slog.String("tripID", tripID.String()), slog.Int("itinerary_items", len(spec.Itinerary)))
	span.SetStatus(codes.Ok, "trip created")

	return &types.SavedTrip{
		ID:           tripID,
		UserID:       spec.UserID,
		Title:        spec.Title,
		Description:  spec.Description,
		Destinations: spec.Destinations,
		StartDate:    spec.StartDate,
		EndDate:      spec.EndDate,
		Itinerary:    spec.Itinerary,
		GeneratedBy:  spec.GeneratedBy,
		AIMetadata:   spec.AIMetadata,
		CreatedAt:    now,
	}, nil
}

func (r *PostgresRepository) GetTrip(ctx context.Context, userID, tripID uuid.UUID) (*types.SavedTrip, error) {
	ctx, span := otel.Tracer("TripRepo").Start(ctx, "GetTrip", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("trip.id", tripID.String()),
	))
	defer span.End()

	var trip types.SavedTrip
	err := r.db.QueryRow(ctx, `
        SELECT id, user_id, title, description, destinations, start_date, end_date, generated_by, ai_metadata, created_at
        FROM trips
        WHERE id = $1 AND user_id = $2`,
		tripID, userID,
	).Scan(&trip.ID, &trip.UserID, &trip.Title, &trip.Description, &trip.Destinations,
		&trip.StartDate, &trip.EndDate, &trip.GeneratedBy, &trip.AIMetadata, &trip.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			span.SetStatus(codes.Error, "trip not found")
			return nil, types.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch trip")
		return nil, fmt.Errorf("fetch trip: %w", err)
	}

	rows, err := r.db.Query(ctx, `
        SELECT item_order, item_time, location_name, activity, duration_minutes, notes, crowd_prediction, lighting_quality
        FROM trip_itinerary_items
        WHERE trip_id = $1
        ORDER BY item_order`,
		tripID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch itinerary")
		return nil, fmt.Errorf("fetch itinerary items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item types.TripItineraryItem
		if err := rows.Scan(&item.Order, &item.Time, &item.LocationName, &item.Activity,
			&item.DurationMinutes, &item.Notes, &item.CrowdPrediction, &item.LightingQuality); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scan itinerary item: %w", err)
		}
		trip.Itinerary = append(trip.Itinerary, item)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("iterate itinerary items: %w", err)
	}

	span.SetStatus(codes.Ok, "trip fetched")
	return &trip, nil
}
