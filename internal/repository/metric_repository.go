package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"github.com/prperemyshlev/wearable-sync/pkg/database"
)

// metricRepository implements MetricRepository interface
type metricRepository struct {
	db *database.Postgres
}

// NewMetricRepository creates a new metric repository
func NewMetricRepository(db *database.Postgres) MetricRepository {
	return &metricRepository{db: db}
}

// GetOrCreateDimension inserts the dimension or returns the existing id. The
// no-op update makes RETURNING yield the row on conflict.
func (r *metricRepository) GetOrCreateDimension(ctx context.Context, dim *domain.MetricDimension) (string, error) {
	query := `
		INSERT INTO metric_dimensions (id, user_id, name, category, unit, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, name, source) DO UPDATE SET name = metric_dimensions.name
		RETURNING id
	`

	if dim.ID == "" {
		dim.ID = uuid.New().String()
	}
	if dim.CreatedAt.IsZero() {
		dim.CreatedAt = time.Now()
	}

	var id string
	err := r.db.DB.QueryRowContext(ctx, query,
		dim.ID,
		dim.UserID,
		dim.Name,
		dim.Category,
		dim.Unit,
		dim.Source,
		dim.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to get or create metric %q: %w", dim.Name, err)
	}

	dim.ID = id
	return id, nil
}

// UpsertValue writes the value, overwriting value and payload on a key conflict
func (r *metricRepository) UpsertValue(ctx context.Context, value *domain.MetricValue) (bool, error) {
	query := `
		INSERT INTO metric_values (id, metric_id, value, measurement_date, external_id, source_payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5, $6::jsonb, $7, $7)
		ON CONFLICT (metric_id, measurement_date, external_id) DO UPDATE
		SET value = EXCLUDED.value,
		    source_payload = EXCLUDED.source_payload,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, (xmax = 0) AS inserted
	`

	if value.ID == "" {
		value.ID = uuid.New().String()
	}
	now := time.Now()
	if value.UpdatedAt.IsZero() {
		value.UpdatedAt = now
	}

	var payload interface{}
	if len(value.SourcePayload) > 0 {
		payload = string(value.SourcePayload)
	}

	var inserted bool
	err := r.db.DB.QueryRowContext(ctx, query,
		value.ID,
		value.MetricID,
		value.Value,
		value.MeasurementDate.Format("2006-01-02"),
		value.ExternalID,
		payload,
		value.UpdatedAt,
	).Scan(&value.ID, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert metric value %s: %w", value.ExternalID, err)
	}

	return inserted, nil
}
