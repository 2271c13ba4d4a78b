package whoop

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"golang.org/x/oauth2"
)

const defaultExpiresIn = domain.DefaultExpiresIn

// OAuthConfig holds the registered application credentials
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	Scopes       []string
}

// OAuthClient performs the authorization-code handshake and token refresh
// against the WHOOP token endpoint.
type OAuthClient struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewOAuthClient creates a new OAuth client
func NewOAuthClient(cfg OAuthConfig, httpClient *http.Client) *OAuthClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &OAuthClient{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

// Name returns the provider key
func (c *OAuthClient) Name() string {
	return domain.ProviderWhoop
}

// AuthCodeURL returns the consent screen URL for state
func (c *OAuthClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens (grant_type=authorization_code)
func (c *OAuthClient) Exchange(ctx context.Context, code string) (*domain.ProviderTokens, error) {
	token, err := c.config.Exchange(c.withClient(ctx), code)
	if err != nil {
		return nil, mapOAuthError(err)
	}
	return toProviderTokens(token), nil
}

// Refresh obtains a new access token (grant_type=refresh_token). When the
// provider does not rotate the refresh token the old one is returned.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*domain.ProviderTokens, error) {
	src := c.config.TokenSource(c.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})

	token, err := src.Token()
	if err != nil {
		return nil, mapOAuthError(err)
	}

	tokens := toProviderTokens(token)
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

func (c *OAuthClient) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func toProviderTokens(token *oauth2.Token) *domain.ProviderTokens {
	expiresIn := int(token.ExpiresIn)
	if expiresIn <= 0 && !token.Expiry.IsZero() {
		expiresIn = int(time.Until(token.Expiry).Seconds())
	}
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	return &domain.ProviderTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    expiresIn,
	}
}

func mapOAuthError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		pe := &domain.ProviderError{
			Code:        retrieveErr.ErrorCode,
			Description: retrieveErr.ErrorDescription,
		}
		if retrieveErr.Response != nil {
			pe.StatusCode = retrieveErr.Response.StatusCode
		}
		if pe.Code == "" {
			pe.Code = "token_endpoint_error"
		}
		return pe
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &domain.ProviderError{Code: "token_endpoint_unreachable", Unreachable: true, Err: err}
	}

	return &domain.ProviderError{Code: "token_endpoint_error", Err: err}
}
