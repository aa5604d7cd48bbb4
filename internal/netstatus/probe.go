package netstatus

import (
	"context"
	"time"

	"github.com/imroc/req/v3"
)

// ProbeFunc reports whether the backend is reachable right now.
type ProbeFunc func(ctx context.Context) bool

// HTTPProbe issues HEAD url and treats any 2xx response as online.
func HTTPProbe(client *req.Client, url string, timeout time.Duration) ProbeFunc {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	return func(ctx context.Context) bool {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		resp, err := client.R().
			SetContext(ctx).
			SetHeader("Cache-Control", "no-cache").
			SetRetryCount(0).
			Head(url)
		if err != nil {
			return false
		}
		return resp.IsSuccessState()
	}
}
