package apiclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/netplus/netprep/internal/apierr"
	"github.com/netplus/netprep/internal/auth"
)

var errNoTokenStore = &apierr.Error{
	Code:        apierr.CodeUnknown,
	Message:     "client has no token store",
	UserMessage: "An unexpected error occurred. Please try again.",
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is what the server returns for a successful login.
type LoginResponse struct {
	User         json.RawMessage `json:"user,omitempty"`
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken,omitempty"`
	ExpiresIn    int             `json:"expiresIn,omitempty"`
}

// Login authenticates and stores the token pair in the scope chosen by rememberMe.
func (c *Client) Login(ctx context.Context, creds Credentials, rememberMe bool) (*LoginResponse, error) {
	if c.store == nil {
		return nil, errNoTokenStore
	}

	resp, err := c.Post(ctx, endpointLogin, creds, RequestConfig{SkipAuth: true, SkipRetry: true})
	if err != nil {
		return nil, err
	}

	login, err := Decode[LoginResponse](resp)
	if err != nil {
		return nil, apierr.Classify(fmt.Errorf("apiclient: decode login: %w", err))
	}

	tokens := auth.Tokens{AccessToken: login.Token, RefreshToken: login.RefreshToken}
	if err := c.store.StoreAuth(tokens, string(login.User), rememberMe); err != nil {
		return nil, apierr.Classify(err)
	}
	c.logger.Info("logged in", "email", creds.Email, "rememberMe", rememberMe)
	return &login, nil
}

// Logout clears all stored auth state.
func (c *Client) Logout() {
	if c.store == nil {
		return
	}
	c.store.Clear()
}
