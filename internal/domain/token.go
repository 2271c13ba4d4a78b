package domain

import "time"

// ProviderWhoop is the provider key stored with token rows and events
const ProviderWhoop = "whoop"

// TokenClaims represents the claims of a platform user bearer token
type TokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Exp    int64  `json:"exp"`
	Iat    int64  `json:"iat"`
}

// IsExpired checks if the bearer token is expired
func (tc TokenClaims) IsExpired() bool {
	return time.Now().Unix() > tc.Exp
}

// TokenRecord is a stored provider credential for one (user, provider) pair.
// Only the row with the greatest UpdatedAt is authoritative.
type TokenRecord struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Provider     string    `json:"provider" db:"provider"`
	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// IsExpired reports whether the access token is no longer usable at now
func (t *TokenRecord) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// DefaultExpiresIn is the access token lifetime in seconds assumed when none is given
const DefaultExpiresIn = 3600

// ProviderTokens is the result of a code exchange or refresh at the provider
type ProviderTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// WithDefaultExpiry returns a copy of t whose ExpiresIn is DefaultExpiresIn
// when no positive lifetime was given.
func (t ProviderTokens) WithDefaultExpiry() *ProviderTokens {
	if t.ExpiresIn <= 0 {
		t.ExpiresIn = DefaultExpiresIn
	}
	return &t
}

// CallbackMode selects how the browser-facing callback answers
type CallbackMode string

const (
	CallbackModeRedirect CallbackMode = "redirect"
	CallbackModePopup    CallbackMode = "popup"
)

// ParseCallbackMode returns the mode for s, defaulting to redirect
func ParseCallbackMode(s string) CallbackMode {
	if CallbackMode(s) == CallbackModePopup {
		return CallbackModePopup
	}
	return CallbackModeRedirect
}

// OAuthState binds an authorization redirect to the user who started it
type OAuthState struct {
	State     string       `json:"state"`
	UserID    string       `json:"user_id"`
	Mode      CallbackMode `json:"mode"`
	CreatedAt time.Time    `json:"created_at"`
}
