package apiclient

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/netplus/netprep/internal/apierr"
	"github.com/netplus/netprep/internal/auth"
)

const (
	endpointLogin   = "/auth/login"
	endpointRefresh = "/auth/refresh"
)

func bearer(token string) string {
	return "Bearer " + token
}

// bearerAuth attaches the stored access token unless the request opts out.
func (c *Client) bearerAuth(_ context.Context, cfg RequestConfig) (RequestConfig, error) {
	if cfg.SkipAuth {
		return cfg, nil
	}
	if token := c.store.AccessToken(); token != "" {
		return cfg.WithHeader(HeaderAuthorization, bearer(token)), nil
	}
	return cfg, nil
}

// proactiveRefresh refreshes a JWT access token that is about to expire before it is sent.
// A failed refresh is not an error here: the request goes out and the 401 path handles it.
func (c *Client) proactiveRefresh(ctx context.Context, cfg RequestConfig) (RequestConfig, error) {
	if cfg.SkipAuth || c.coordinator == nil {
		return cfg, nil
	}
	if c.monitor != nil && !c.monitor.Status() {
		return cfg, nil
	}

	token := c.store.AccessToken()
	if !isJWT(token) || c.store.RefreshToken() == "" {
		return cfg, nil
	}
	if !auth.TokenExpiresWithin(token, c.expiryBuffer) {
		return cfg, nil
	}

	c.logger.Debug("access token near expiry, refreshing")
	c.coordinator.Refresh(ctx)
	return cfg, nil
}

func isJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

// refreshAndReplay recovers a 401 by refreshing the token and resending the request once.
// The new token stays on the request so later retries of it use it too.
func (c *Client) refreshAndReplay(ctx context.Context, r *Request, err error) (*Response, error) {
	apiErr := apierr.Classify(err)
	if apiErr.Code != apierr.CodeTokenExpired && apiErr.StatusCode != http.StatusUnauthorized {
		return nil, apiErr
	}
	if r.Replayed || r.Config.SkipAuth || c.coordinator == nil {
		return nil, apiErr
	}

	// another request may have rotated the token since this one was sent
	token := c.store.AccessToken()
	if token == "" || bearer(token) == r.Config.Headers[HeaderAuthorization] {
		var ok bool
		if token, ok = c.coordinator.Refresh(ctx); !ok {
			return nil, apiErr
		}
	}

	r.Replayed = true
	r.Config = r.Config.WithHeader(HeaderAuthorization, bearer(token))
	c.logger.Debug("token refreshed, replaying request", "method", r.Method, "endpoint", r.Endpoint)

	resp, replayErr := c.exchange(ctx, r)
	if replayErr != nil {
		return nil, apierr.Classify(replayErr)
	}
	return resp, nil
}

// refreshTokens is the coordinator's network call.
func (c *Client) refreshTokens(ctx context.Context, refreshToken string) (auth.Tokens, error) {
	resp, err := c.Post(ctx, endpointRefresh, auth.RefreshRequest{RefreshToken: refreshToken}, RequestConfig{
		SkipAuth:  true,
		SkipRetry: true,
		SkipQueue: true,
	})
	if err != nil {
		return auth.Tokens{}, err
	}

	tokens, err := Decode[auth.Tokens](resp)
	if err != nil {
		return auth.Tokens{}, err
	}
	if tokens.AccessToken == "" {
		return auth.Tokens{}, errors.New("apiclient: refresh response has no token")
	}
	return tokens, nil
}
