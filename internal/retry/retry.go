// Package retry decides whether a classified failure is retried and how long to wait first.
package retry

import (
	"time"

	"github.com/netplus/netprep/internal/apierr"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 1 * time.Second
	MaxDelay          = 10 * time.Second
)

// ShouldRetry is false once attemptCount reaches maxRetries, otherwise it follows err.Retryable.
func ShouldRetry(err *apierr.Error, attemptCount, maxRetries int) bool {
	if err == nil || attemptCount >= maxRetries {
		return false
	}
	return err.Retryable
}

// Delay returns baseDelay * 2^attemptCount, capped at MaxDelay.
func Delay(attemptCount int, baseDelay time.Duration) time.Duration {
	if attemptCount < 0 {
		attemptCount = 0
	}
	if baseDelay <= 0 {
		return 0
	}

	delay := baseDelay
	for i := 0; i < attemptCount; i++ {
		delay *= 2
		if delay >= MaxDelay {
			return MaxDelay
		}
	}
	return min(delay, MaxDelay)
}
