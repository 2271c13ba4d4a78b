package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// SyncMetrics holds the integration instruments
type SyncMetrics struct {
	RecordsSaved   metric.Int64Counter
	StreamFailures metric.Int64Counter
	SyncDuration   metric.Float64Histogram
	TokenRefreshes metric.Int64Counter
}

// NewSyncMetrics creates the integration instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	saved, err := meter.Int64Counter("wearable_sync_records_saved_total",
		metric.WithDescription("Metric values written by sync, per stream"))
	if err != nil {
		return nil, fmt.Errorf("failed to create records saved counter: %w", err)
	}

	failures, err := meter.Int64Counter("wearable_sync_stream_failures_total",
		metric.WithDescription("Streams that failed during sync"))
	if err != nil {
		return nil, fmt.Errorf("failed to create stream failures counter: %w", err)
	}

	duration, err := meter.Float64Histogram("wearable_sync_duration_seconds",
		metric.WithDescription("Duration of a full sync run"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create sync duration histogram: %w", err)
	}

	refreshes, err := meter.Int64Counter("wearable_token_refresh_total",
		metric.WithDescription("Provider token refresh attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create token refresh counter: %w", err)
	}

	return &SyncMetrics{
		RecordsSaved:   saved,
		StreamFailures: failures,
		SyncDuration:   duration,
		TokenRefreshes: refreshes,
	}, nil
}
