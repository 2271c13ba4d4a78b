package repository

import (
	"context"
	"time"

	"github.com/prperemyshlev/wearable-sync/internal/domain"
)

// TokenRepository persists provider tokens per (user, provider)
type TokenRepository interface {
	// ListByUserProvider returns all rows for the pair, newest first
	ListByUserProvider(ctx context.Context, userID, provider string) ([]*domain.TokenRecord, error)
	// Upsert updates the newest row for the pair or inserts one
	Upsert(ctx context.Context, token *domain.TokenRecord) error
	DeleteByIDs(ctx context.Context, ids []string) error
	DeleteByUserProvider(ctx context.Context, userID, provider string) (int64, error)
}

// StateRepository stores short-lived OAuth state values
type StateRepository interface {
	Save(ctx context.Context, state *domain.OAuthState, ttl time.Duration) error
	// Consume atomically reads and deletes a state
	Consume(ctx context.Context, state string) (*domain.OAuthState, error)
}

// MetricRepository persists metric dimensions and values
type MetricRepository interface {
	// GetOrCreateDimension returns the id of the dimension keyed by
	// (user_id, name, source), creating it if needed
	GetOrCreateDimension(ctx context.Context, dim *domain.MetricDimension) (string, error)
	// UpsertValue writes a value keyed by (metric_id, measurement_date,
	// external_id) and reports whether a new row was inserted
	UpsertValue(ctx context.Context, value *domain.MetricValue) (bool, error)
}

// EventRepository stores the integration audit trail
type EventRepository interface {
	Create(ctx context.Context, event *domain.IntegrationEvent) error
	LatestByType(ctx context.Context, userID, provider, eventType string, statuses []string) (*domain.IntegrationEvent, error)
}
