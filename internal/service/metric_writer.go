package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"github.com/prperemyshlev/wearable-sync/internal/repository"
)

// MetricWriter persists provider data into the canonical metric store.
// Writes are idempotent: replaying a record updates its rows in place.
type MetricWriter struct {
	repo   repository.MetricRepository
	source string
}

// NewMetricWriter creates a writer tagging every dimension with source
func NewMetricWriter(repo repository.MetricRepository, source string) *MetricWriter {
	return &MetricWriter{
		repo:   repo,
		source: source,
	}
}

// GetOrCreateMetric returns the id of the (user, name, source) dimension
func (w *MetricWriter) GetOrCreateMetric(ctx context.Context, userID, name, category, unit, source string) (string, error) {
	id, err := w.repo.GetOrCreateDimension(ctx, &domain.MetricDimension{
		UserID:   userID,
		Name:     name,
		Category: category,
		Unit:     unit,
		Source:   source,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return id, nil
}

// UpsertValue writes a value keyed by (metricID, date, externalID)
func (w *MetricWriter) UpsertValue(ctx context.Context, metricID string, value float64, date time.Time, externalID string, payload json.RawMessage) error {
	_, err := w.repo.UpsertValue(ctx, &domain.MetricValue{
		MetricID:        metricID,
		Value:           value,
		MeasurementDate: domain.TruncateToDate(date),
		ExternalID:      externalID,
		SourcePayload:   payload,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Write persists one metric point for userID
func (w *MetricWriter) Write(ctx context.Context, userID string, point domain.MetricPoint) error {
	metricID, err := w.GetOrCreateMetric(ctx, userID, point.Name, point.Category, point.Unit, w.source)
	if err != nil {
		return err
	}
	return w.UpsertValue(ctx, metricID, point.Value, point.Date, point.ExternalID, point.Payload)
}
