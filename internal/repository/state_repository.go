package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"github.com/prperemyshlev/wearable-sync/pkg/database"
	"github.com/redis/go-redis/v9"
)

// stateRepository implements StateRepository on Redis keys with a TTL
type stateRepository struct {
	redis *database.Redis
}

// NewStateRepository creates a new OAuth state repository
func NewStateRepository(redis *database.Redis) StateRepository {
	return &stateRepository{redis: redis}
}

func stateKey(state string) string {
	return fmt.Sprintf("oauth:state:%s", state)
}

// Save stores the state; it expires after ttl
func (r *stateRepository) Save(ctx context.Context, state *domain.OAuthState, ttl time.Duration) error {
	if state.CreatedAt.IsZero() {
		state.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode oauth state: %w", err)
	}

	ok, err := r.redis.Client.SetNX(ctx, stateKey(state.State), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	if !ok {
		return ErrDuplicateState
	}

	return nil
}

// Consume returns the state and deletes it; a second call returns ErrNotFound
func (r *stateRepository) Consume(ctx context.Context, state string) (*domain.OAuthState, error) {
	payload, err := r.redis.Client.GetDel(ctx, stateKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("oauth state not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	var stored domain.OAuthState
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode oauth state: %w", err)
	}

	return &stored, nil
}
