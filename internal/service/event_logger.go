package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"github.com/prperemyshlev/wearable-sync/internal/repository"
	"go.uber.org/zap"
)

// EventLogger is the best-effort audit trail of handshake and sync outcomes
type EventLogger struct {
	repo     repository.EventRepository
	provider string
	logger   *zap.Logger
}

// NewEventLogger creates a new event logger for provider
func NewEventLogger(repo repository.EventRepository, provider string, logger *zap.Logger) *EventLogger {
	return &EventLogger{
		repo:     repo,
		provider: provider,
		logger:   logger,
	}
}

// Record stores event. Failures are logged and discarded.
func (l *EventLogger) Record(ctx context.Context, event *domain.IntegrationEvent) {
	if event.Provider == "" {
		event.Provider = l.provider
	}

	// the audit row must survive a cancelled request
	ctx = context.WithoutCancel(ctx)

	if err := l.repo.Create(ctx, event); err != nil {
		l.logger.Warn("Failed to record integration event",
			zap.String("user_id", event.UserID),
			zap.String("event_type", event.EventType),
			zap.String("status", event.Status),
			zap.Error(err),
		)
	}
}

// LastSuccessfulSync returns when the user's data was last synced, or nil
func (l *EventLogger) LastSuccessfulSync(ctx context.Context, userID string) (*time.Time, error) {
	event, err := l.repo.LatestByType(ctx, userID, l.provider, domain.EventSync,
		[]string{domain.EventStatusSuccess, domain.EventStatusPartial})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last sync: %w", err)
	}

	return &event.CreatedAt, nil
}
