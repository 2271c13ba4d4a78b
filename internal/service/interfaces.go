package service

import (
	"context"

	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"github.com/prperemyshlev/wearable-sync/internal/provider/whoop"
)

// OAuthProvider is the authorization contract every wearable bridge exposes
type OAuthProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.ProviderTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.ProviderTokens, error)
}

// DataClient fetches the provider's data streams
type DataClient interface {
	Recoveries(ctx context.Context, accessToken string, window domain.TimeWindow) ([]whoop.Recovery, error)
	Sleeps(ctx context.Context, accessToken string, window domain.TimeWindow) ([]whoop.Sleep, error)
	Workouts(ctx context.Context, accessToken string, window domain.TimeWindow) ([]whoop.Workout, error)
	Cycles(ctx context.Context, accessToken string, window domain.TimeWindow) ([]whoop.Cycle, error)
	BodyMeasurement(ctx context.Context, accessToken string) (*whoop.BodyMeasurement, error)
	RevokeAccess(ctx context.Context, accessToken string) error
}

// Syncer pulls every configured stream for a user
type Syncer interface {
	Run(ctx context.Context, userID, accessToken string) (*domain.SyncReport, error)
}

// EventRecorder appends to the audit trail. Implementations never fail.
type EventRecorder interface {
	Record(ctx context.Context, event *domain.IntegrationEvent)
}

// RevocationChecker reports whether a user bearer token was revoked
type RevocationChecker interface {
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
}
