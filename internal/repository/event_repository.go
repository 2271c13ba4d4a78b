package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"github.com/prperemyshlev/wearable-sync/pkg/database"
)

// eventRepository implements EventRepository interface
type eventRepository struct {
	db *database.Postgres
}

// NewEventRepository creates a new integration event repository
func NewEventRepository(db *database.Postgres) EventRepository {
	return &eventRepository{db: db}
}

// Create appends an event
func (r *eventRepository) Create(ctx context.Context, event *domain.IntegrationEvent) error {
	query := `
		INSERT INTO integration_events (id, user_id, provider, event_type, status, message, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
	`

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var details interface{}
	if len(event.Details) > 0 {
		encoded, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to encode event details: %w", err)
		}
		details = string(encoded)
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		event.ID,
		event.UserID,
		event.Provider,
		event.EventType,
		event.Status,
		sql.NullString{String: event.Message, Valid: event.Message != ""},
		details,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create integration event: %w", err)
	}

	return nil
}

// LatestByType returns the most recent event of eventType with one of statuses
func (r *eventRepository) LatestByType(ctx context.Context, userID, provider, eventType string, statuses []string) (*domain.IntegrationEvent, error) {
	query := `
		SELECT id, user_id, provider, event_type, status, message, details, created_at
		FROM integration_events
		WHERE user_id = $1 AND provider = $2 AND event_type = $3 AND status = ANY($4)
		ORDER BY created_at DESC
		LIMIT 1
	`

	event := &domain.IntegrationEvent{}
	var message sql.NullString
	var details []byte

	err := r.db.DB.QueryRowContext(ctx, query, userID, provider, eventType, pq.Array(statuses)).Scan(
		&event.ID,
		&event.UserID,
		&event.Provider,
		&event.EventType,
		&event.Status,
		&message,
		&details,
		&event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no %s event for user %s: %w", eventType, userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get latest event: %w", err)
	}

	if message.Valid {
		event.Message = message.String
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &event.Details); err != nil {
			return nil, fmt.Errorf("failed to decode event details: %w", err)
		}
	}

	return event, nil
}
