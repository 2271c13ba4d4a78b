package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"github.com/prperemyshlev/wearable-sync/internal/utils"
)

// UserAuthenticator resolves a bearer credential to the calling user
type UserAuthenticator struct {
	jwtManager *utils.JWTManager
	revoked    RevocationChecker
}

// NewUserAuthenticator creates a new authenticator. revoked may be nil.
func NewUserAuthenticator(jwtManager *utils.JWTManager, revoked RevocationChecker) *UserAuthenticator {
	return &UserAuthenticator{
		jwtManager: jwtManager,
		revoked:    revoked,
	}
}

// Authenticate validates the token and returns its claims. Every failure
// wraps domain.ErrUnauthorized.
func (a *UserAuthenticator) Authenticate(ctx context.Context, token string) (*domain.TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized)
	}

	if a.revoked != nil {
		revoked, err := a.revoked.IsTokenBlacklisted(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: token is revoked", domain.ErrUnauthorized)
		}
	}

	claims, err := a.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	return claims, nil
}
