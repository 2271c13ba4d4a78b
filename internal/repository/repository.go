package repository

import (
	"github.com/prperemyshlev/wearable-sync/internal/utils"
	"github.com/prperemyshlev/wearable-sync/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	Token  TokenRepository
	State  StateRepository
	Metric MetricRepository
	Event  EventRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *database.Postgres, redis *database.Redis, sealer *utils.Sealer) *Repositories {
	return &Repositories{
		Token:  NewTokenRepository(db, sealer),
		State:  NewStateRepository(redis),
		Metric: NewMetricRepository(db),
		Event:  NewEventRepository(db),
	}
}
