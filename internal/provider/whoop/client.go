package whoop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prperemyshlev/wearable-sync/internal/domain"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	pageLimit       = 25
	maxPages        = 200
	maxResponseSize = 4 << 20

	recoveryPath = "/v2/recovery"
	sleepPath    = "/v2/activity/sleep"
	workoutPath  = "/v2/activity/workout"
	cyclePath    = "/v2/cycle"
	bodyPath     = "/v2/user/measurement/body"
	accessPath   = "/v2/user/access"
)

// SchemaError is returned when a provider response lacks a required field
type SchemaError struct {
	Path string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid response from %s: %v", e.Path, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// ClientConfig configures the data API client
type ClientConfig struct {
	BaseURL           string
	RequestsPerMinute int
}

// Client reads the WHOOP developer API. Calls are throttled to the
// provider's rate limit and guarded by a circuit breaker.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewClient creates a new data API client
func NewClient(cfg ClientConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 100
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 10),
		validate:   validator.New(),
		logger:     logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "whoop-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// client errors mean the request or token is bad, not the provider
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if pe, ok := domain.AsProviderError(err); ok {
				return pe.StatusCode >= 400 && pe.StatusCode < 500 && pe.StatusCode != http.StatusTooManyRequests
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return c
}

// Recoveries returns all recovery records in window
func (c *Client) Recoveries(ctx context.Context, accessToken string, window domain.TimeWindow) ([]Recovery, error) {
	return fetchAll[Recovery](ctx, c, accessToken, recoveryPath, window)
}

// Sleeps returns all sleep records in window
func (c *Client) Sleeps(ctx context.Context, accessToken string, window domain.TimeWindow) ([]Sleep, error) {
	return fetchAll[Sleep](ctx, c, accessToken, sleepPath, window)
}

// Workouts returns all workout records in window
func (c *Client) Workouts(ctx context.Context, accessToken string, window domain.TimeWindow) ([]Workout, error) {
	return fetchAll[Workout](ctx, c, accessToken, workoutPath, window)
}

// Cycles returns all physiological cycles in window
func (c *Client) Cycles(ctx context.Context, accessToken string, window domain.TimeWindow) ([]Cycle, error) {
	return fetchAll[Cycle](ctx, c, accessToken, cyclePath, window)
}

// BodyMeasurement returns the user's current body measurement
func (c *Client) BodyMeasurement(ctx context.Context, accessToken string) (*BodyMeasurement, error) {
	body, err := c.do(ctx, http.MethodGet, accessToken, bodyPath, nil)
	if err != nil {
		return nil, err
	}

	var m BodyMeasurement
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, &SchemaError{Path: bodyPath, Err: err}
	}
	if err := c.validate.Struct(m); err != nil {
		return nil, &SchemaError{Path: bodyPath, Err: err}
	}

	return &m, nil
}

// RevokeAccess revokes the access granted to this application
func (c *Client) RevokeAccess(ctx context.Context, accessToken string) error {
	_, err := c.do(ctx, http.MethodDelete, accessToken, accessPath, nil)
	return err
}

func fetchAll[T any](ctx context.Context, c *Client, accessToken, path string, window domain.TimeWindow) ([]T, error) {
	var (
		records   []T
		nextToken string
	)

	for pages := 0; pages < maxPages; pages++ {
		query := url.Values{
			"start": {window.Start.UTC().Format(time.RFC3339)},
			"end":   {window.End.UTC().Format(time.RFC3339)},
			"limit": {fmt.Sprintf("%d", pageLimit)},
		}
		if nextToken != "" {
			query.Set("nextToken", nextToken)
		}

		body, err := c.do(ctx, http.MethodGet, accessToken, path, query)
		if err != nil {
			return nil, err
		}

		var p page[T]
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, &SchemaError{Path: path, Err: err}
		}
		if err := c.validate.Struct(p); err != nil {
			return nil, &SchemaError{Path: path, Err: err}
		}
		for i := range p.Records {
			if sr, ok := any(p.Records[i]).(scoredRecord); ok && sr.missingScore() {
				return nil, &SchemaError{Path: path, Err: fmt.Errorf("record %d is scored but has no score", i)}
			}
		}

		records = append(records, p.Records...)

		if p.NextToken == "" {
			return records, nil
		}
		nextToken = p.NextToken
	}

	return nil, fmt.Errorf("%s: pagination exceeded %d pages", path, maxPages)
}

func (c *Client) do(ctx context.Context, method, accessToken, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &domain.ProviderError{Code: "api_unreachable", Unreachable: true, Err: err}
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return nil, &domain.ProviderError{Code: "api_read_failed", StatusCode: resp.StatusCode, Err: err}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &domain.ProviderError{
				Code:        fmt.Sprintf("http_%d", resp.StatusCode),
				Description: truncate(string(payload), 200),
				StatusCode:  resp.StatusCode,
			}
		}

		return payload, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.ProviderError{Code: "api_circuit_open", Unreachable: true, Err: err}
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
