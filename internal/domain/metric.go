package domain

import (
	"encoding/json"
	"time"
)

// MetricDimension identifies a named, unit-typed time series for a user
type MetricDimension struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"`
	Unit      string    `json:"unit" db:"unit"`
	Source    string    `json:"source" db:"source"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MetricValue is one dated data point. (MetricID, MeasurementDate, ExternalID)
// is unique.
type MetricValue struct {
	ID              string          `json:"id" db:"id"`
	MetricID        string          `json:"metric_id" db:"metric_id"`
	Value           float64         `json:"value" db:"value"`
	MeasurementDate time.Time       `json:"measurement_date" db:"measurement_date"`
	ExternalID      string          `json:"external_id" db:"external_id"`
	SourcePayload   json.RawMessage `json:"source_payload,omitempty" db:"source_payload"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// MetricPoint is a single facet of a provider record ready to be persisted
type MetricPoint struct {
	Name       string
	Category   string
	Unit       string
	Value      float64
	Date       time.Time
	ExternalID string
	Payload    json.RawMessage
}

// TruncateToDate drops the time of day, keeping the calendar date in UTC
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
