package acceptance

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/prperemyshlev/wearable-sync/internal/dto"
)

const endpoint = "/api/v1/integrations/whoop"

var noRedirect = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func (s *Suite) do(method, query, bearer string, body any) *http.Response {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.BaseURL+endpoint+"?"+query, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}

	resp, err := noRedirect.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) authorize(userID, mode string) string {
	query := url.Values{"action": {"auth"}}
	if mode != "" {
		query.Set("mode", mode)
	}

	resp := s.do(http.MethodGet, query.Encode(), s.bearer(userID), nil)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var authResp dto.AuthURLResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&authResp))
	s.Require().NotEmpty(authResp.State)
	s.Contains(authResp.AuthURL, "state="+authResp.State)
	s.Contains(authResp.AuthURL, "client_id=client-id")

	return authResp.State
}

// connect completes the handshake for userID with code
func (s *Suite) connect(userID, code string) {
	state := s.authorize(userID, "")

	resp := s.do(http.MethodGet, url.Values{"code": {code}, "state": {state}}.Encode(), "", nil)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusFound, resp.StatusCode)
}

func (s *Suite) count(query string, args ...any) int {
	var n int
	s.Require().NoError(s.Postgres.DB.QueryRow(query, args...).Scan(&n))
	return n
}

func (s *Suite) tokenRows(userID string) int {
	return s.count(`SELECT COUNT(*) FROM integration_tokens WHERE user_id = $1 AND provider = 'whoop'`, userID)
}

func (s *Suite) valueRows(userID string) int {
	return s.count(`
		SELECT COUNT(*) FROM metric_values v
		JOIN metric_dimensions d ON d.id = v.metric_id
		WHERE d.user_id = $1`, userID)
}

func (s *Suite) TestAuth_RequiresBearer() {
	resp := s.do(http.MethodGet, "action=auth", "", nil)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestUnknownAction() {
	resp := s.do(http.MethodGet, "action=explode", s.bearer("user-1"), nil)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestHandshake_ConnectsAndSyncs() {
	state := s.authorize("user-1", "")

	resp := s.do(http.MethodGet, url.Values{"code": {"code-1"}, "state": {state}}.Encode(), "", nil)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusFound, resp.StatusCode)
	location, err := url.Parse(resp.Header.Get("Location"))
	s.Require().NoError(err)
	s.True(strings.HasPrefix(location.String(), appCallback))
	s.Equal("1", location.Query().Get("connected"))
	s.Equal("1", location.Query().Get("synced"))

	s.Equal(1, s.tokenRows("user-1"))

	exists, err := s.Redis.Client.Exists(context.Background(), "oauth:state:"+state).Result()
	s.Require().NoError(err)
	s.Zero(exists, "state must be consumed")

	var accessToken string
	s.Require().NoError(s.Postgres.DB.QueryRow(
		`SELECT access_token FROM integration_tokens WHERE user_id = $1`, "user-1").Scan(&accessToken))
	s.True(strings.HasPrefix(accessToken, "v1:"), "tokens are stored sealed")

	// recovery 4 + sleep 4 + workout 4 + body 3
	s.Equal(15, s.valueRows("user-1"))

	var calories float64
	s.Require().NoError(s.Postgres.DB.QueryRow(`
		SELECT v.value FROM metric_values v
		JOIN metric_dimensions d ON d.id = v.metric_id
		WHERE d.user_id = $1 AND d.name = 'Workout Calories'`, "user-1").Scan(&calories))
	s.Equal(500.0, calories)
}

func (s *Suite) TestCallback_StateCannotBeReplayed() {
	state := s.authorize("user-1", "")

	first := s.do(http.MethodGet, url.Values{"code": {"code-1"}, "state": {state}}.Encode(), "", nil)
	first.Body.Close()
	s.Require().Equal(http.StatusFound, first.StatusCode)

	second := s.do(http.MethodPost, url.Values{"action": {"callback"}, "code": {"code-2"}, "state": {state}}.Encode(), "", nil)
	defer second.Body.Close()

	s.Equal(http.StatusBadRequest, second.StatusCode)
	s.Equal(1, s.tokenRows("user-1"))
}

func (s *Suite) TestCallback_ProviderDenied() {
	resp := s.do(http.MethodGet, url.Values{"error": {"access_denied"}, "error_description": {"user denied"}}.Encode(), "", nil)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Contains(resp.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Contains(string(body), "whoop-error")
	s.Contains(string(body), "access_denied")
}

func (s *Suite) TestCallback_PopupRendersPostMessagePage() {
	state := s.authorize("user-1", "popup")

	resp := s.do(http.MethodGet, url.Values{"code": {"code-1"}, "state": {state}}.Encode(), "", nil)
	defer resp.Body.Close()

	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Contains(resp.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Contains(string(body), "postMessage")
	s.Contains(string(body), "whoop-connected")
}

func (s *Suite) TestSync_IsIdempotent() {
	s.connect("user-1", "code-1")
	before := s.valueRows("user-1")
	s.Require().NotZero(before)

	resp := s.do(http.MethodPost, "action=sync", s.bearer("user-1"), map[string]any{})
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var syncResp dto.SyncResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&syncResp))
	s.True(syncResp.Success)
	s.Require().NotNil(syncResp.SyncResult)
	s.Equal(before, syncResp.SyncResult.TotalSaved)

	s.Equal(before, s.valueRows("user-1"))
}

func (s *Suite) TestSync_RefreshesExpiredTokenOnce() {
	s.connect("user-1", "code-1")

	_, err := s.Postgres.DB.Exec(
		`UPDATE integration_tokens SET expires_at = NOW() - INTERVAL '1 hour' WHERE user_id = $1`, "user-1")
	s.Require().NoError(err)

	resp := s.do(http.MethodGet, "action=sync", s.bearer("user-1"), nil)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(1, s.Whoop.RefreshCalls())
	s.Equal(1, s.tokenRows("user-1"))
}

func (s *Suite) TestSync_ValidTokenDoesNotRefresh() {
	s.connect("user-1", "code-1")

	resp := s.do(http.MethodGet, "action=sync", s.bearer("user-1"), nil)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
	s.Zero(s.Whoop.RefreshCalls())
}

func (s *Suite) TestSync_ReusedCodeFallsBackToStoredToken() {
	s.connect("user-1", "code-1")

	resp := s.do(http.MethodPost, "action=sync", s.bearer("user-1"), map[string]any{"code": "code-1"})
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(1, s.tokenRows("user-1"))
}

func (s *Suite) TestSync_ReusedCodeWithoutTokenFails() {
	resp := s.do(http.MethodPost, "action=sync", s.bearer("user-1"), map[string]any{"code": "bad-code"})
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)

	var errResp dto.ErrorResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&errResp))
	s.Equal("invalid_grant", errResp.Error)
	s.Zero(s.tokenRows("user-1"))
}

func (s *Suite) TestSync_NotConnected() {
	resp := s.do(http.MethodGet, "action=sync", s.bearer("user-1"), nil)
	defer resp.Body.Close()

	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *Suite) TestCheckStatus() {
	resp := s.do(http.MethodGet, "action=check-status", s.bearer("user-1"), nil)
	var status dto.StatusResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	s.False(status.IsConnected)
	s.Nil(status.LastSync)

	s.connect("user-1", "code-1")

	resp = s.do(http.MethodGet, "action=check-status", s.bearer("user-1"), nil)
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&status))
	s.True(status.IsConnected)
	s.NotNil(status.LastSync)
}

func (s *Suite) TestDisconnect_RemovesTokens() {
	s.connect("user-1", "code-1")

	resp := s.do(http.MethodPost, "action=disconnect", s.bearer("user-1"), nil)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
	s.Zero(s.tokenRows("user-1"))
	s.Equal(1, s.Whoop.RevokeCalls())
}

func (s *Suite) TestDisconnect_WithoutTokenSucceeds() {
	resp := s.do(http.MethodPost, "action=disconnect", s.bearer("user-2"), nil)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var success dto.SuccessResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&success))
	s.True(success.Success)
	s.Zero(s.tokenRows("user-2"))
}
