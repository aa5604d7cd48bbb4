package apiclient

import (
	"context"
	"log/slog"
	"time"

	"github.com/imroc/req/v3"
	"github.com/netplus/netprep/internal/auth"
	"github.com/netplus/netprep/internal/metrics"
	"github.com/netplus/netprep/internal/netstatus"
)

const (
	DefaultTimeout           = 10 * time.Second
	DefaultTokenExpiryBuffer = 60 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Option func(*Client)

// WithTimeout sets the per-attempt timeout used when a request does not set one.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithMonitor routes requests issued while offline through the monitor's queue.
func WithMonitor(m *netstatus.Monitor) Option {
	return func(c *Client) {
		c.monitor = m
	}
}

// WithTokenStore enables bearer auth from store. Unless WithCoordinator is given, the client
// refreshes through its own POST /auth/refresh.
func WithTokenStore(store *auth.TokenStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

func WithCoordinator(co *auth.Coordinator) Option {
	return func(c *Client) {
		c.coordinator = co
	}
}

// WithTokenExpiryBuffer sets how close to expiry an access token is refreshed before sending.
// Zero disables proactive refresh.
func WithTokenExpiryBuffer(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.expiryBuffer = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSleep replaces the backoff wait. Tests use it to skip real delays.
func WithSleep(sleep SleepFunc) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func WithHTTPClient(hc *req.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithHeader adds a header sent with every request. Request headers override it.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
