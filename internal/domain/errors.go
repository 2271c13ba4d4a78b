package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized is returned for a missing or invalid bearer credential
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState is returned for a missing, expired or consumed state/code pair
	ErrInvalidState = errors.New("invalid or expired oauth state")

	// ErrNoToken is returned when no provider token is stored for the user
	ErrNoToken = errors.New("no provider token stored")

	// ErrTokenRefresh is returned when the provider refused a refresh; the
	// user has to reconnect the integration
	ErrTokenRefresh = errors.New("token refresh failed, reconnect required")

	// ErrPersistence is returned when a store write failed
	ErrPersistence = errors.New("persistence failure")
)

// OAuth error code returned when a code or refresh token is used or expired
const OAuthErrorInvalidGrant = "invalid_grant"

// ProviderError is an error reported by the provider itself
type ProviderError struct {
	Code        string
	Description string
	StatusCode  int
	// Unreachable is set when the provider could not be contacted at all
	Unreachable bool
	Err         error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString("provider error")
	if e.Code != "" {
		b.WriteString(": ")
		b.WriteString(e.Code)
	}
	if e.Description != "" {
		b.WriteString(" (")
		b.WriteString(e.Description)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsInvalidGrant reports whether the provider rejected a used or expired grant
func (e *ProviderError) IsInvalidGrant() bool {
	return e.Code == OAuthErrorInvalidGrant
}

// AsProviderError unwraps err into a *ProviderError
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// SyncError reports that at least one mandatory stream failed. Report holds
// the results of every attempted stream.
type SyncError struct {
	Failed []string
	Report *SyncReport
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync failed for streams: %s", strings.Join(e.Failed, ", "))
}
