package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"github.com/prperemyshlev/wearable-sync/internal/repository"
	"github.com/prperemyshlev/wearable-sync/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// TokenVault owns the stored provider credentials of every user. Reads
// always see the newest row; older duplicates are purged as they are found.
//
// Refresh is not serialized: two concurrent callers holding the same expired
// token may both refresh, and the later write wins. Providers that rotate
// refresh tokens on use can then reject the loser's next refresh, which
// surfaces as ErrTokenRefresh and asks the user to reconnect.
type TokenVault struct {
	repo     repository.TokenRepository
	provider OAuthProvider
	events   EventRecorder
	metrics  *observability.SyncMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewTokenVault creates a vault for provider's tokens
func NewTokenVault(
	repo repository.TokenRepository,
	provider OAuthProvider,
	events EventRecorder,
	metrics *observability.SyncMetrics,
	logger *zap.Logger,
) *TokenVault {
	return &TokenVault{
		repo:     repo,
		provider: provider,
		events:   events,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns the authoritative token of userID. Older rows for the same
// pair are deleted before returning.
func (v *TokenVault) Get(ctx context.Context, userID string) (*domain.TokenRecord, error) {
	records, err := v.repo.ListByUserProvider(ctx, userID, v.provider.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}
	if len(records) == 0 {
		return nil, domain.ErrNoToken
	}

	if len(records) > 1 {
		stale := make([]string, 0, len(records)-1)
		for _, r := range records[1:] {
			stale = append(stale, r.ID)
		}

		if err := v.repo.DeleteByIDs(ctx, stale); err != nil {
			return nil, fmt.Errorf("%w: failed to purge duplicate tokens: %v", domain.ErrPersistence, err)
		}

		v.logger.Info("Purged duplicate provider tokens",
			zap.String("user_id", userID),
			zap.Int("count", len(stale)),
		)
	}

	return records[0], nil
}

// Save stores tokens for userID, replacing the current row if there is one
func (v *TokenVault) Save(ctx context.Context, userID string, tokens *domain.ProviderTokens) (*domain.TokenRecord, error) {
	now := v.now()
	record := &domain.TokenRecord{
		UserID:       userID,
		Provider:     v.provider.Name(),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(tokens.ExpiresIn) * time.Second),
		UpdatedAt:    now,
	}

	if err := v.repo.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: failed to save tokens: %v", domain.ErrPersistence, err)
	}

	return record, nil
}

// EnsureValid returns a usable access token, refreshing the stored one if
// it has expired.
func (v *TokenVault) EnsureValid(ctx context.Context, userID string) (string, error) {
	record, err := v.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	if !record.IsExpired(v.now()) {
		return record.AccessToken, nil
	}

	return v.refresh(ctx, record)
}

// Refresh unconditionally refreshes the stored token of userID
func (v *TokenVault) Refresh(ctx context.Context, userID string) (string, error) {
	record, err := v.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return v.refresh(ctx, record)
}

// Delete removes every stored token of userID
func (v *TokenVault) Delete(ctx context.Context, userID string) (int64, error) {
	n, err := v.repo.DeleteByUserProvider(ctx, userID, v.provider.Name())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete tokens: %v", domain.ErrPersistence, err)
	}
	return n, nil
}

// IsExpired reports whether record is unusable right now
func (v *TokenVault) IsExpired(record *domain.TokenRecord) bool {
	return record.IsExpired(v.now())
}

func (v *TokenVault) refresh(ctx context.Context, record *domain.TokenRecord) (string, error) {
	if record.RefreshToken == "" {
		v.refreshFailed(ctx, record.UserID, "no refresh token stored")
		return "", fmt.Errorf("%w: no refresh token stored", domain.ErrTokenRefresh)
	}

	tokens, err := v.provider.Refresh(ctx, record.RefreshToken)
	if err != nil {
		v.refreshFailed(ctx, record.UserID, err.Error())
		return "", fmt.Errorf("%w: %v", domain.ErrTokenRefresh, err)
	}

	if tokens.RefreshToken == "" {
		tokens.RefreshToken = record.RefreshToken
	}

	if _, err := v.Save(ctx, record.UserID, tokens); err != nil {
		return "", err
	}

	v.metrics.TokenRefreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "success")))
	v.events.Record(ctx, &domain.IntegrationEvent{
		UserID:    record.UserID,
		EventType: domain.EventTokenRefreshed,
		Status:    domain.EventStatusSuccess,
	})
	v.logger.Info("Provider token refreshed", zap.String("user_id", record.UserID))

	return tokens.AccessToken, nil
}

func (v *TokenVault) refreshFailed(ctx context.Context, userID, reason string) {
	v.metrics.TokenRefreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "failure")))
	v.events.Record(ctx, &domain.IntegrationEvent{
		UserID:    userID,
		EventType: domain.EventTokenRefreshFail,
		Status:    domain.EventStatusFailure,
		Message:   reason,
	})
	v.logger.Warn("Provider token refresh failed",
		zap.String("user_id", userID),
		zap.String("reason", reason),
	)
}
