package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"github.com/prperemyshlev/wearable-sync/internal/repository"
	"github.com/prperemyshlev/wearable-sync/internal/utils"
	"go.uber.org/zap"
)

// AuthorizeResult is the consent URL a client should navigate to
type AuthorizeResult struct {
	AuthURL string
	State   string
}

// CallbackParams are the parameters the provider appends to the redirect URI
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackResult describes a completed handshake. Mode is known as soon as
// the state has been consumed, so it is also returned alongside errors that
// happen after that point.
type CallbackResult struct {
	UserID string
	Mode   domain.CallbackMode
	// Report is the initial sync summary, nil if the sync did not run
	Report *domain.SyncReport
	Synced bool
}

// AuthorizationCoordinator runs the OAuth2 authorization-code handshake:
// state issuance, code exchange, token persistence and the initial sync.
type AuthorizationCoordinator struct {
	states   repository.StateRepository
	vault    *TokenVault
	provider OAuthProvider
	syncer   Syncer
	events   EventRecorder
	logger   *zap.Logger
	stateTTL time.Duration
	now      func() time.Time
}

// NewAuthorizationCoordinator creates a new coordinator
func NewAuthorizationCoordinator(
	states repository.StateRepository,
	vault *TokenVault,
	provider OAuthProvider,
	syncer Syncer,
	events EventRecorder,
	logger *zap.Logger,
	stateTTL time.Duration,
) *AuthorizationCoordinator {
	return &AuthorizationCoordinator{
		states:   states,
		vault:    vault,
		provider: provider,
		syncer:   syncer,
		events:   events,
		logger:   logger,
		stateTTL: stateTTL,
		now:      time.Now,
	}
}

// Authorize issues a fresh state bound to userID and returns the consent URL
func (c *AuthorizationCoordinator) Authorize(ctx context.Context, userID string, mode domain.CallbackMode) (*AuthorizeResult, error) {
	state, err := utils.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	err = c.states.Save(ctx, &domain.OAuthState{
		State:     state,
		UserID:    userID,
		Mode:      mode,
		CreatedAt: c.now(),
	}, c.stateTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to save state: %v", domain.ErrPersistence, err)
	}

	c.events.Record(ctx, &domain.IntegrationEvent{
		UserID:    userID,
		EventType: domain.EventAuthorizeStarted,
		Status:    domain.EventStatusSuccess,
		Details:   map[string]any{"mode": string(mode)},
	})

	return &AuthorizeResult{
		AuthURL: c.provider.AuthCodeURL(state),
		State:   state,
	}, nil
}

// Callback completes the handshake started by Authorize. The state is
// consumed on lookup and cannot be replayed. A failing initial sync does not
// fail the callback: the connection stands and Synced is false.
func (c *AuthorizationCoordinator) Callback(ctx context.Context, params CallbackParams) (*CallbackResult, error) {
	if params.Error != "" {
		c.events.Record(ctx, &domain.IntegrationEvent{
			EventType: domain.EventCallbackFailed,
			Status:    domain.EventStatusFailure,
			Message:   params.Error,
		})
		return nil, &domain.ProviderError{Code: params.Error, Description: params.ErrorDescription}
	}

	if params.Code == "" || params.State == "" {
		return nil, fmt.Errorf("%w: missing code or state", domain.ErrInvalidState)
	}

	st, err := c.states.Consume(ctx, params.State)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrInvalidState
		}
		return nil, fmt.Errorf("failed to look up state: %w", err)
	}

	result := &CallbackResult{UserID: st.UserID, Mode: st.Mode}

	accessToken, err := c.Connect(ctx, st.UserID, params.Code)
	if err != nil {
		c.events.Record(ctx, &domain.IntegrationEvent{
			UserID:    st.UserID,
			EventType: domain.EventCallbackFailed,
			Status:    domain.EventStatusFailure,
			Message:   err.Error(),
		})
		return result, err
	}

	c.events.Record(ctx, &domain.IntegrationEvent{
		UserID:    st.UserID,
		EventType: domain.EventConnected,
		Status:    domain.EventStatusSuccess,
	})

	report, err := c.syncer.Run(ctx, st.UserID, accessToken)
	result.Report = report
	if err != nil {
		c.logger.Warn("Initial sync failed", zap.String("user_id", st.UserID), zap.Error(err))
		return result, nil
	}
	result.Synced = true

	return result, nil
}

// Connect exchanges code and stores the resulting tokens for userID. It
// returns the access token to use for an immediate sync.
func (c *AuthorizationCoordinator) Connect(ctx context.Context, userID, code string) (string, error) {
	tokens, reused, err := c.ExchangeCode(ctx, userID, code)
	if err != nil {
		return "", err
	}
	if reused {
		return tokens.AccessToken, nil
	}

	if _, err := c.vault.Save(ctx, userID, tokens); err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

// ExchangeCode trades code for tokens. Codes are single-use, so a retried
// exchange fails with invalid_grant even though the first attempt stored
// valid tokens; in that case the stored unexpired token is reused and
// reused is true.
func (c *AuthorizationCoordinator) ExchangeCode(ctx context.Context, userID, code string) (tokens *domain.ProviderTokens, reused bool, err error) {
	tokens, err = c.provider.Exchange(ctx, code)
	if err == nil {
		return tokens, false, nil
	}

	pe, ok := domain.AsProviderError(err)
	if !ok || !pe.IsInvalidGrant() {
		return nil, false, err
	}

	existing, getErr := c.vault.Get(ctx, userID)
	if getErr != nil || c.vault.IsExpired(existing) {
		return nil, false, err
	}

	c.logger.Info("Authorization code already used, reusing stored token", zap.String("user_id", userID))

	return &domain.ProviderTokens{
		AccessToken:  existing.AccessToken,
		RefreshToken: existing.RefreshToken,
		ExpiresIn:    int(existing.ExpiresAt.Sub(c.now()).Seconds()),
	}, true, nil
}
