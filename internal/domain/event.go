package domain

import "time"

// Integration event types
const (
	EventAuthorizeStarted = "authorize_started"
	EventConnected        = "connected"
	EventCallbackFailed   = "callback_failed"
	EventTokenRefreshed   = "token_refreshed"
	EventTokenRefreshFail = "token_refresh_failed"
	EventSync             = "sync"
	EventDisconnected     = "disconnected"
)

// Integration event statuses
const (
	EventStatusSuccess = "success"
	EventStatusPartial = "partial"
	EventStatusFailure = "failure"
)

// IntegrationEvent is an append-only audit row for handshake and sync outcomes
type IntegrationEvent struct {
	ID        string         `json:"id" db:"id"`
	UserID    string         `json:"user_id" db:"user_id"`
	Provider  string         `json:"provider" db:"provider"`
	EventType string         `json:"event_type" db:"event_type"`
	Status    string         `json:"status" db:"status"`
	Message   string         `json:"message,omitempty" db:"message"`
	Details   map[string]any `json:"details,omitempty" db:"details"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
