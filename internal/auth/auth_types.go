package auth

import "errors"

// Storage keys shared by both scopes.
const (
	KeyToken        = "auth_token"
	KeyRefreshToken = "auth_refresh_token"
	KeyUser         = "auth_user"
	KeyRememberMe   = "auth_remember_me"
	KeyLastActivity = "auth_last_activity"
)

var allKeys = []string{KeyToken, KeyRefreshToken, KeyUser, KeyRememberMe, KeyLastActivity}

var (
	ErrNoRefreshToken = errors.New("auth: refresh token missing")
	ErrEmptyToken     = errors.New("auth: refresh returned an empty access token")
)

// Tokens is an access token plus an optional refresh token.
type Tokens struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// RefreshRequest is the body posted to the refresh endpoint.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}
