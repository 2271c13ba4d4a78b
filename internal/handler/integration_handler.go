package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/wearable-sync/internal/domain"
	"github.com/prperemyshlev/wearable-sync/internal/dto"
	"github.com/prperemyshlev/wearable-sync/internal/service"
	"go.uber.org/zap"
)

// Authenticator resolves a bearer token to the calling user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.TokenClaims, error)
}

// Authorizer runs the OAuth handshake
type Authorizer interface {
	Authorize(ctx context.Context, userID string, mode domain.CallbackMode) (*service.AuthorizeResult, error)
	Callback(ctx context.Context, params service.CallbackParams) (*service.CallbackResult, error)
}

// Integrations implements the connected-user actions
type Integrations interface {
	Status(ctx context.Context, userID string) (*service.ConnectionStatus, error)
	Sync(ctx context.Context, userID string, req service.SyncRequest) (*domain.SyncReport, error)
	Disconnect(ctx context.Context, userID string) error
}

// Limiter decides whether a request fits in its rate limit window
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

// RateLimit is the per-client budget for the handshake and sync actions
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// IntegrationHandler serves the single multiplexed integration endpoint
type IntegrationHandler struct {
	auth           Authenticator
	authorizer     Authorizer
	integrations   Integrations
	limiter        Limiter
	rateLimit      RateLimit
	appCallbackURL string
	appOrigin      string
	logger         *zap.Logger
}

// IntegrationHandlerConfig holds the browser-facing settings of the handler
type IntegrationHandlerConfig struct {
	AppCallbackURL string
	AppOrigin      string
	RateLimit      RateLimit
}

// NewIntegrationHandler creates a new integration handler. limiter may be nil.
func NewIntegrationHandler(
	auth Authenticator,
	authorizer Authorizer,
	integrations Integrations,
	limiter Limiter,
	cfg IntegrationHandlerConfig,
	logger *zap.Logger,
) *IntegrationHandler {
	return &IntegrationHandler{
		auth:           auth,
		authorizer:     authorizer,
		integrations:   integrations,
		limiter:        limiter,
		rateLimit:      cfg.RateLimit,
		appCallbackURL: cfg.AppCallbackURL,
		appOrigin:      cfg.AppOrigin,
		logger:         logger,
	}
}

// Handle dispatches on the request action
// @Summary WHOOP integration
// @Description Multiplexed endpoint: auth, callback, check-status, sync, disconnect
// @Tags integrations
// @Accept json
// @Produce json,html
// @Param action query string false "auth | callback | check-status | sync | disconnect"
// @Success 200 {object} dto.SyncResponse
// @Success 302
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /integrations/whoop [get]
// @Router /integrations/whoop [post]
func (h *IntegrationHandler) Handle(c *gin.Context) {
	var req dto.IntegrationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 && c.ContentType() == gin.MIMEJSON {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Message: err.Error(),
			})
			return
		}
	}

	action := req.ResolveAction()
	if action == dto.ActionCallback {
		h.callback(c, &req)
		return
	}

	switch action {
	case dto.ActionAuth, dto.ActionCheckStatus, dto.ActionSync, dto.ActionDisconnect:
	default:
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "unknown action",
		})
		return
	}

	userID, ok := h.authenticate(c)
	if !ok {
		return
	}

	switch action {
	case dto.ActionAuth:
		if !h.allow(c, action, userID) {
			return
		}
		h.authorize(c, userID, &req)
	case dto.ActionCheckStatus:
		h.checkStatus(c, userID)
	case dto.ActionSync:
		if !h.allow(c, action, userID) {
			return
		}
		h.sync(c, userID, &req)
	case dto.ActionDisconnect:
		h.disconnect(c, userID)
	}
}

func (h *IntegrationHandler) authorize(c *gin.Context, userID string, req *dto.IntegrationRequest) {
	result, err := h.authorizer.Authorize(c.Request.Context(), userID, domain.ParseCallbackMode(req.Mode))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AuthURLResponse{
		AuthURL: result.AuthURL,
		State:   result.State,
	})
}

func (h *IntegrationHandler) callback(c *gin.Context, req *dto.IntegrationRequest) {
	if !h.allow(c, dto.ActionCallback, c.ClientIP()) {
		return
	}

	result, err := h.authorizer.Callback(c.Request.Context(), service.CallbackParams{
		Code:             req.Code,
		State:            req.State,
		Error:            req.Error,
		ErrorDescription: req.ErrorDescription,
	})

	if wantsJSON(c) {
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.CallbackResponse{
			Connected:  true,
			SyncResult: result.Report,
		})
		return
	}

	if err != nil {
		h.logger.Warn("OAuth callback failed", zap.Error(err))
		// Without a consumed state the mode is unknown. The page posts to an
		// opener when there is one and redirects to the app otherwise.
		if result == nil || result.Mode == domain.CallbackModePopup {
			h.renderCallbackPage(c, http.StatusOK, callbackMessage{Type: callbackMessageError, Error: errorCode(err)})
			return
		}
		c.Redirect(http.StatusFound, h.appURL(url.Values{"error": {errorCode(err)}}))
		return
	}

	if result.Mode == domain.CallbackModePopup {
		h.renderCallbackPage(c, http.StatusOK, callbackMessage{Type: callbackMessageConnected, Synced: result.Synced})
		return
	}

	query := url.Values{"connected": {"1"}}
	if result.Synced {
		query.Set("synced", "1")
	}
	c.Redirect(http.StatusFound, h.appURL(query))
}

func (h *IntegrationHandler) checkStatus(c *gin.Context, userID string) {
	status, err := h.integrations.Status(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := dto.StatusResponse{IsConnected: status.Connected}
	if status.LastSync != nil {
		ts := status.LastSync.UTC().Format(time.RFC3339)
		resp.LastSync = &ts
	}

	c.JSON(http.StatusOK, resp)
}

func (h *IntegrationHandler) sync(c *gin.Context, userID string, req *dto.IntegrationRequest) {
	syncReq := service.SyncRequest{Code: req.Code}
	if t := req.TempTokens; t != nil {
		syncReq.TempTokens = &domain.ProviderTokens{
			AccessToken:  t.AccessToken,
			RefreshToken: t.RefreshToken,
			ExpiresIn:    t.ExpiresIn,
		}
	}

	report, err := h.integrations.Sync(c.Request.Context(), userID, syncReq)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SyncResponse{
		Success:    true,
		SyncResult: report,
	})
}

func (h *IntegrationHandler) disconnect(c *gin.Context, userID string) {
	if err := h.integrations.Disconnect(c.Request.Context(), userID); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true})
}

// writeError maps the domain error kinds to HTTP responses
func (h *IntegrationHandler) writeError(c *gin.Context, err error) {
	var syncErr *domain.SyncError
	pe, isProviderErr := domain.AsProviderError(err)

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "Invalid or expired token",
		})
	case errors.Is(err, domain.ErrInvalidState):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Invalid state",
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrTokenRefresh):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:     "Reconnect required",
			Message:   err.Error(),
			Reconnect: true,
		})
	case errors.Is(err, domain.ErrNoToken):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:     "Not connected",
			Message:   err.Error(),
			Reconnect: true,
		})
	case errors.As(err, &syncErr):
		c.JSON(http.StatusBadGateway, dto.SyncResponse{
			Success:    false,
			SyncResult: syncErr.Report,
		})
	case errors.Is(err, domain.ErrPersistence):
		h.logger.Error("Persistence failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "failed to save data",
		})
	case isProviderErr:
		status := http.StatusBadRequest
		if pe.Unreachable {
			status = http.StatusBadGateway
		}
		resp := dto.ErrorResponse{
			Error:   pe.Code,
			Message: pe.Error(),
		}
		if pe.Description != "" {
			resp.Details = pe.Description
		}
		c.JSON(status, resp)
	default:
		h.logger.Error("Unhandled integration error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal server error",
			Message: "unexpected error",
		})
	}
}

func (h *IntegrationHandler) appURL(query url.Values) string {
	u, err := url.Parse(h.appCallbackURL)
	if err != nil {
		return h.appCallbackURL
	}

	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// wantsJSON reports whether the callback came from a programmatic caller
func wantsJSON(c *gin.Context) bool {
	return c.Request.Method == http.MethodPost || strings.Contains(c.GetHeader("Accept"), gin.MIMEJSON)
}

// errorCode is the short error identifier handed back to the browser app
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrPersistence):
		return "server_error"
	}
	if pe, ok := domain.AsProviderError(err); ok && pe.Code != "" {
		return pe.Code
	}
	return "server_error"
}
