package api

import "time"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
	Field     string `json:"field,omitempty"`
}

// AuthLoginRequest carries local login credentials.
type AuthLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMeResponse describes the current principal.
type AuthMeResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	Role          string `json:"role,omitempty"`
	AuthType      string `json:"auth_type,omitempty"`
	AccountLinked bool   `json:"account_linked"`
}

// AuthLoginResponse is returned on successful login. Token may be sent as a
// bearer token by non-browser clients.
type AuthLoginResponse struct {
	AuthMeResponse
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccountResponse describes a linked Jira account. The API token is never included.
type AccountResponse struct {
	SiteURL    string    `json:"site_url"`
	Email      string    `json:"email"`
	ProjectKey string    `json:"project_key"`
	TokenSet   bool      `json:"token_set"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status        string `json:"status"`
	SchemaVersion int    `json:"schema_version,omitempty"`
}
