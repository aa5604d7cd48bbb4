package netstatus

import (
	"log/slog"
	"time"

	"github.com/netplus/netprep/internal/metrics"
)

const (
	DefaultProbeInterval = 30 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
	DefaultMaxAge        = 5 * time.Minute
	DefaultMaxRequeues   = 5
)

// Option configures a Monitor.
type Option func(*Monitor)

// WithProbe sets the active connectivity check run every probe interval.
func WithProbe(probe ProbeFunc) Option {
	return func(m *Monitor) {
		m.probe = probe
	}
}

func WithProbeInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.probeInterval = d
		}
	}
}

// WithMaxAge sets how long an item may wait in the queue before it expires.
func WithMaxAge(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.maxAge = d
		}
	}
}

// WithMaxRequeues bounds how many times a failed item goes back into the queue while offline.
func WithMaxRequeues(n int) Option {
	return func(m *Monitor) {
		if n >= 0 {
			m.maxRequeues = n
		}
	}
}

// WithInitialStatus sets the state before the first probe. The default is online.
func WithInitialStatus(online bool) Option {
	return func(m *Monitor) {
		m.online = online
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mt
	}
}
