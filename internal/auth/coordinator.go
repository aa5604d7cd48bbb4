package auth

import (
	"context"
	"log/slog"

	"github.com/netplus/netprep/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

// RefreshFunc exchanges a refresh token for a new token pair.
type RefreshFunc func(ctx context.Context, refreshToken string) (Tokens, error)

// Coordinator refreshes the access token with at most one refresh call in flight.
// Concurrent callers share the result of the in-flight call.
type Coordinator struct {
	store   *TokenStore
	refresh RefreshFunc
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewCoordinator(store *TokenStore, refresh RefreshFunc, logger *slog.Logger, m *metrics.Metrics) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:   store,
		refresh: refresh,
		logger:  logger,
		metrics: m,
	}
}

// Store returns the token store the coordinator rotates tokens into.
func (c *Coordinator) Store() *TokenStore {
	return c.store
}

// Refresh returns a new access token, or ok=false when refreshing is impossible.
// It never returns an error. A failed refresh clears all auth state (a full logout).
// Without a refresh token it returns immediately and makes no network call.
// A caller whose ctx ends stops waiting, but the shared refresh keeps running.
func (c *Coordinator) Refresh(ctx context.Context) (token string, ok bool) {
	if c.store.RefreshToken() == "" {
		c.logger.Debug("token refresh skipped", "error", ErrNoRefreshToken)
		return "", false
	}

	// the shared call must outlive any single caller
	sharedCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return c.doRefresh(sharedCtx), nil
	})

	select {
	case res := <-ch:
		token, _ := res.Val.(string)
		return token, token != ""
	case <-ctx.Done():
		return "", false
	}
}

func (c *Coordinator) doRefresh(ctx context.Context) string {
	refreshToken := c.store.RefreshToken()
	if refreshToken == "" {
		return ""
	}

	tokens, err := c.refresh(ctx, refreshToken)
	if err == nil && tokens.AccessToken == "" {
		err = ErrEmptyToken
	}
	if err != nil {
		c.metrics.ObserveRefresh(false)
		if c.store.ClearFrom(refreshToken) {
			c.logger.Warn("token refresh failed, clearing auth state", "error", err)
		}
		return ""
	}

	c.metrics.ObserveRefresh(true)
	rotated, err := c.store.RotateFrom(refreshToken, tokens)
	if err != nil {
		c.logger.Error("token refresh persist", "error", err)
	}
	if !rotated {
		// logged out or logged in again while the refresh was in flight
		c.logger.Debug("token refresh discarded, session changed")
		return ""
	}
	c.logger.Debug("token refreshed", "rememberMe", c.store.RememberMe())
	return tokens.AccessToken
}
