package service

import (
	"context"
	"errors"
	"time"

	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"go.uber.org/zap"
)

// ConnectionStatus is the connection state of a user's integration
type ConnectionStatus struct {
	Connected bool
	LastSync  *time.Time
}

// SyncRequest selects where the access token for a sync comes from. With
// neither set the stored token is used.
type SyncRequest struct {
	Code       string
	TempTokens *domain.ProviderTokens
}

// IntegrationService implements the status, sync and disconnect actions
type IntegrationService struct {
	vault       *TokenVault
	coordinator *AuthorizationCoordinator
	syncer      Syncer
	client      DataClient
	events      *EventLogger
	logger      *zap.Logger
}

// NewIntegrationService creates a new integration service
func NewIntegrationService(
	vault *TokenVault,
	coordinator *AuthorizationCoordinator,
	syncer Syncer,
	client DataClient,
	events *EventLogger,
	logger *zap.Logger,
) *IntegrationService {
	return &IntegrationService{
		vault:       vault,
		coordinator: coordinator,
		syncer:      syncer,
		client:      client,
		events:      events,
		logger:      logger,
	}
}

// Status reports whether userID has a stored token and when it last synced
func (s *IntegrationService) Status(ctx context.Context, userID string) (*ConnectionStatus, error) {
	status := &ConnectionStatus{}

	if _, err := s.vault.Get(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNoToken) {
			return status, nil
		}
		return nil, err
	}
	status.Connected = true

	lastSync, err := s.events.LastSuccessfulSync(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to read last sync", zap.String("user_id", userID), zap.Error(err))
		return status, nil
	}
	status.LastSync = lastSync

	return status, nil
}

// Sync pulls the lookback window for userID
func (s *IntegrationService) Sync(ctx context.Context, userID string, req SyncRequest) (*domain.SyncReport, error) {
	var (
		accessToken string
		err         error
	)

	switch {
	case req.Code != "":
		accessToken, err = s.coordinator.Connect(ctx, userID, req.Code)
	case req.TempTokens != nil:
		_, err = s.vault.Save(ctx, userID, req.TempTokens.WithDefaultExpiry())
		accessToken = req.TempTokens.AccessToken
	default:
		accessToken, err = s.vault.EnsureValid(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	return s.syncer.Run(ctx, userID, accessToken)
}

// Disconnect revokes the provider grant on a best-effort basis and deletes
// every stored token of userID. Disconnecting twice succeeds.
func (s *IntegrationService) Disconnect(ctx context.Context, userID string) error {
	record, err := s.vault.Get(ctx, userID)
	switch {
	case err == nil && !s.vault.IsExpired(record):
		if revokeErr := s.client.RevokeAccess(ctx, record.AccessToken); revokeErr != nil {
			s.logger.Warn("Failed to revoke provider access",
				zap.String("user_id", userID),
				zap.Error(revokeErr),
			)
		}
	case err != nil && !errors.Is(err, domain.ErrNoToken):
		s.logger.Warn("Failed to load token before disconnect",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	deleted, err := s.vault.Delete(ctx, userID)
	if err != nil {
		return err
	}

	s.events.Record(ctx, &domain.IntegrationEvent{
		UserID:    userID,
		EventType: domain.EventDisconnected,
		Status:    domain.EventStatusSuccess,
		Details:   map[string]any{"deleted": deleted},
	})

	return nil
}
