package dto

import "github.com/prperemyshlev/wearable-sync/internal/domain"

// Actions accepted by the integration endpoint
const (
	ActionAuth        = "auth"
	ActionCallback    = "callback"
	ActionCheckStatus = "check-status"
	ActionSync        = "sync"
	ActionDisconnect  = "disconnect"
)

// IntegrationRequest is the union of every action's parameters. It is bound
// from the query string and, for POST, from the JSON body.
type IntegrationRequest struct {
	Action           string      `json:"action" form:"action"`
	Mode             string      `json:"mode" form:"mode"`
	Code             string      `json:"code" form:"code"`
	State            string      `json:"state" form:"state"`
	Error            string      `json:"error" form:"error"`
	ErrorDescription string      `json:"error_description" form:"error_description"`
	TempTokens       *TempTokens `json:"tempTokens"`
}

// TempTokens are provider tokens obtained outside of this service
type TempTokens struct {
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// ResolveAction returns the effective action. A request carrying provider
// callback parameters is a callback even without an explicit action.
func (r *IntegrationRequest) ResolveAction() string {
	if r.Action != "" {
		return r.Action
	}
	if r.Code != "" || r.Error != "" {
		return ActionCallback
	}
	return ""
}

// AuthURLResponse is returned by action=auth
type AuthURLResponse struct {
	AuthURL string `json:"authUrl"`
	State   string `json:"state"`
}

// CallbackResponse is returned to programmatic callback callers
type CallbackResponse struct {
	Connected  bool               `json:"connected"`
	SyncResult *domain.SyncReport `json:"syncResult,omitempty"`
}

// StatusResponse is returned by action=check-status
type StatusResponse struct {
	IsConnected bool    `json:"isConnected"`
	LastSync    *string `json:"lastSync"`
}

// SyncResponse is returned by action=sync
type SyncResponse struct {
	Success    bool               `json:"success"`
	SyncResult *domain.SyncReport `json:"syncResult,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string      `json:"error"`
	Message   string      `json:"message"`
	Reconnect bool        `json:"reconnect,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}
