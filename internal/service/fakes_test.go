package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"github.com/prperemyshlev/wearable-sync/internal/provider/whoop"
	"github.com/prperemyshlev/wearable-sync/internal/repository"
	"github.com/prperemyshlev/wearable-sync/pkg/observability"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testMetrics(t *testing.T) *observability.SyncMetrics {
	t.Helper()
	m, err := observability.NewSyncMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return m
}

type fakeTokenRepo struct {
	mu      sync.Mutex
	rows    []*domain.TokenRecord
	saveErr error
}

func (r *fakeTokenRepo) ListByUserProvider(ctx context.Context, userID, provider string) ([]*domain.TokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.TokenRecord
	for _, row := range r.rows {
		if row.UserID == userID && row.Provider == provider {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *fakeTokenRepo) Upsert(ctx context.Context, token *domain.TokenRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveErr != nil {
		return r.saveErr
	}

	var newest *domain.TokenRecord
	for _, row := range r.rows {
		if row.UserID == token.UserID && row.Provider == token.Provider {
			if newest == nil || row.UpdatedAt.After(newest.UpdatedAt) {
				newest = row
			}
		}
	}

	if newest != nil {
		token.ID = newest.ID
		token.CreatedAt = newest.CreatedAt
		*newest = *token
		return nil
	}

	token.ID = uuid.NewString()
	token.CreatedAt = token.UpdatedAt
	cp := *token
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeTokenRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	kept := r.rows[:0]
	for _, row := range r.rows {
		if !drop[row.ID] {
			kept = append(kept, row)
		}
	}
	r.rows = kept
	return nil
}

func (r *fakeTokenRepo) DeleteByUserProvider(ctx context.Context, userID, provider string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	kept := r.rows[:0]
	for _, row := range r.rows {
		if row.UserID == userID && row.Provider == provider {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return deleted, nil
}

func (r *fakeTokenRepo) count(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, row := range r.rows {
		if row.UserID == userID {
			n++
		}
	}
	return n
}

type fakeStateRepo struct {
	mu     sync.Mutex
	states map[string]*domain.OAuthState
	ttls   map[string]time.Duration
	calls  int
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{
		states: make(map[string]*domain.OAuthState),
		ttls:   make(map[string]time.Duration),
	}
}

func (r *fakeStateRepo) Save(ctx context.Context, state *domain.OAuthState, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if _, ok := r.states[state.State]; ok {
		return repository.ErrDuplicateState
	}
	cp := *state
	r.states[state.State] = &cp
	r.ttls[state.State] = ttl
	return nil
}

func (r *fakeStateRepo) Consume(ctx context.Context, state string) (*domain.OAuthState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	st, ok := r.states[state]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.states, state)
	return st, nil
}

type fakeMetricRepo struct {
	mu     sync.Mutex
	dims   map[string]*domain.MetricDimension
	values map[string]*domain.MetricValue
	err    error
}

func newFakeMetricRepo() *fakeMetricRepo {
	return &fakeMetricRepo{
		dims:   make(map[string]*domain.MetricDimension),
		values: make(map[string]*domain.MetricValue),
	}
}

func (r *fakeMetricRepo) GetOrCreateDimension(ctx context.Context, dim *domain.MetricDimension) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return "", r.err
	}

	key := dim.UserID + "|" + dim.Name + "|" + dim.Source
	if existing, ok := r.dims[key]; ok {
		return existing.ID, nil
	}

	cp := *dim
	cp.ID = uuid.NewString()
	r.dims[key] = &cp
	return cp.ID, nil
}

func (r *fakeMetricRepo) UpsertValue(ctx context.Context, value *domain.MetricValue) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s|%s|%s", value.MetricID, value.MeasurementDate.Format("2006-01-02"), value.ExternalID)
	_, exists := r.values[key]
	cp := *value
	r.values[key] = &cp
	return !exists, nil
}

// valueOf returns the stored value of the named metric with externalID
func (r *fakeMetricRepo) valueOf(name, externalID string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dim := range r.dims {
		if dim.Name != name {
			continue
		}
		for _, v := range r.values {
			if v.MetricID == dim.ID && v.ExternalID == externalID {
				return v.Value, true
			}
		}
	}
	return 0, false
}

func (r *fakeMetricRepo) valueCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*domain.IntegrationEvent
	err    error
}

func (r *fakeEventRepo) Create(ctx context.Context, event *domain.IntegrationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	cp := *event
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.events = append(r.events, &cp)
	return nil
}

func (r *fakeEventRepo) LatestByType(ctx context.Context, userID, provider, eventType string, statuses []string) (*domain.IntegrationEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.events) - 1; i >= 0; i-- {
		e := r.events[i]
		if e.UserID != userID || e.Provider != provider || e.EventType != eventType {
			continue
		}
		for _, s := range statuses {
			if e.Status == s {
				return e, nil
			}
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeEventRepo) ofType(eventType string) []*domain.IntegrationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.IntegrationEvent
	for _, e := range r.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeProvider struct {
	mu           sync.Mutex
	exchange     func(code string) (*domain.ProviderTokens, error)
	refresh      func(refreshToken string) (*domain.ProviderTokens, error)
	refreshCalls int
}

func (p *fakeProvider) Name() string {
	return domain.ProviderWhoop
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://whoop.test/oauth/oauth2/auth?state=" + state
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (*domain.ProviderTokens, error) {
	if p.exchange == nil {
		return &domain.ProviderTokens{AccessToken: "A-" + code, RefreshToken: "R-" + code, ExpiresIn: 3600}, nil
	}
	return p.exchange(code)
}

func (p *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*domain.ProviderTokens, error) {
	p.mu.Lock()
	p.refreshCalls++
	p.mu.Unlock()

	if p.refresh == nil {
		return &domain.ProviderTokens{AccessToken: "refreshed", ExpiresIn: 3600}, nil
	}
	return p.refresh(refreshToken)
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshCalls
}

type fakeDataClient struct {
	mu         sync.Mutex
	recoveries []whoop.Recovery
	sleeps     []whoop.Sleep
	workouts   []whoop.Workout
	cycles     []whoop.Cycle
	body       *whoop.BodyMeasurement
	errs       map[string]error
	tokens     []string
	revoked    []string
	revokeErr  error
}

func (c *fakeDataClient) seen(stream, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = append(c.tokens, token)
	return c.errs[stream]
}

func (c *fakeDataClient) Recoveries(ctx context.Context, accessToken string, window domain.TimeWindow) ([]whoop.Recovery, error) {
	if err := c.seen(domain.StreamRecovery, accessToken); err != nil {
		return nil, err
	}
	return c.recoveries, nil
}

func (c *fakeDataClient) Sleeps(ctx context.Context, accessToken string, window domain.TimeWindow) ([]whoop.Sleep, error) {
	if err := c.seen(domain.StreamSleep, accessToken); err != nil {
		return nil, err
	}
	return c.sleeps, nil
}

func (c *fakeDataClient) Workouts(ctx context.Context, accessToken string, window domain.TimeWindow) ([]whoop.Workout, error) {
	if err := c.seen(domain.StreamWorkout, accessToken); err != nil {
		return nil, err
	}
	return c.workouts, nil
}

func (c *fakeDataClient) Cycles(ctx context.Context, accessToken string, window domain.TimeWindow) ([]whoop.Cycle, error) {
	if err := c.seen(domain.StreamCycle, accessToken); err != nil {
		return nil, err
	}
	return c.cycles, nil
}

func (c *fakeDataClient) BodyMeasurement(ctx context.Context, accessToken string) (*whoop.BodyMeasurement, error) {
	if err := c.seen(domain.StreamBody, accessToken); err != nil {
		return nil, err
	}
	if c.body == nil {
		return nil, errors.New("no body measurement")
	}
	return c.body, nil
}

func (c *fakeDataClient) RevokeAccess(ctx context.Context, accessToken string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked = append(c.revoked, accessToken)
	return c.revokeErr
}

type fakeSyncer struct {
	mu     sync.Mutex
	tokens []string
	report *domain.SyncReport
	err    error
}

func (s *fakeSyncer) Run(ctx context.Context, userID, accessToken string) (*domain.SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, accessToken)

	report := s.report
	if report == nil {
		report = domain.NewSyncReport(domain.LookbackWindow(testNow, 30))
	}
	return report, s.err
}

// env wires the services over in-memory fakes
type env struct {
	tokens   *fakeTokenRepo
	states   *fakeStateRepo
	metrics  *fakeMetricRepo
	events   *fakeEventRepo
	provider *fakeProvider
	client   *fakeDataClient

	logger      *EventLogger
	vault       *TokenVault
	writer      *MetricWriter
	sync        *SyncOrchestrator
	coordinator *AuthorizationCoordinator
	service     *IntegrationService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		tokens:   &fakeTokenRepo{},
		states:   newFakeStateRepo(),
		metrics:  newFakeMetricRepo(),
		events:   &fakeEventRepo{},
		provider: &fakeProvider{},
		client:   &fakeDataClient{},
	}

	log := zap.NewNop()
	m := testMetrics(t)

	e.logger = NewEventLogger(e.events, domain.ProviderWhoop, log)
	e.vault = NewTokenVault(e.tokens, e.provider, e.logger, m, log)
	e.vault.now = func() time.Time { return testNow }
	e.writer = NewMetricWriter(e.metrics, domain.ProviderWhoop)
	e.sync = NewSyncOrchestrator(e.client, e.writer, e.logger, m, log, SyncOptions{LookbackDays: 30, MaxParallel: 3})
	e.sync.now = func() time.Time { return testNow }
	e.coordinator = NewAuthorizationCoordinator(e.states, e.vault, e.provider, e.sync, e.logger, log, 10*time.Minute)
	e.coordinator.now = func() time.Time { return testNow }
	e.service = NewIntegrationService(e.vault, e.coordinator, e.sync, e.client, e.logger, log)

	return e
}

// seedToken stores a token row directly
func (e *env) seedToken(userID, access, refresh string, expiresAt, updatedAt time.Time) {
	e.tokens.mu.Lock()
	defer e.tokens.mu.Unlock()

	e.tokens.rows = append(e.tokens.rows, &domain.TokenRecord{
		ID:           uuid.NewString(),
		UserID:       userID,
		Provider:     domain.ProviderWhoop,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		CreatedAt:    updatedAt,
		UpdatedAt:    updatedAt,
	})
}

func ptr[T any](v T) *T {
	return &v
}
