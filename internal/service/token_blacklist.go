package service

import (
	"context"
	"fmt"

	"github.com/prperemyshlev/wearable-sync/pkg/database"
)

// TokenBlacklistService reads the set of revoked user bearer tokens that the
// platform auth service maintains in the shared Redis.
type TokenBlacklistService struct {
	redis *database.Redis
}

// NewTokenBlacklistService creates a new token blacklist service
func NewTokenBlacklistService(redis *database.Redis) *TokenBlacklistService {
	return &TokenBlacklistService{redis: redis}
}

func blacklistKey(token string) string {
	return fmt.Sprintf("blacklist:token:%s", token)
}

// IsTokenBlacklisted checks if a token is in the blacklist
func (s *TokenBlacklistService) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	exists, err := s.redis.Client.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return exists > 0, nil
}
