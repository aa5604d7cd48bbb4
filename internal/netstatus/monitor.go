// Package netstatus tracks backend connectivity and holds requests issued while offline
// until the connection returns.
package netstatus

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/netplus/netprep/internal/apierr"
	"github.com/netplus/netprep/internal/metrics"
	"github.com/netplus/netprep/internal/queue"
)

// Callback receives the new online state on every transition.
type Callback func(online bool)

// Monitor is an ONLINE/OFFLINE state machine with an offline request queue.
type Monitor struct {
	mu     sync.RWMutex
	online bool
	closed bool
	subs   *list.List // of Callback, in subscription order

	// transitions and their notifications are delivered one at a time
	transitionMu sync.Mutex
	// at most one drain runs at a time
	drainMu sync.Mutex

	pending *queue.FIFO[*item]

	probe         ProbeFunc
	probeInterval time.Duration
	maxAge        time.Duration
	maxRequeues   int

	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates a Monitor. Call Start to begin active probing.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		online:        true,
		subs:          list.New(),
		pending:       queue.NewFIFO[*item](),
		probeInterval: DefaultProbeInterval,
		maxAge:        DefaultMaxAge,
		maxRequeues:   DefaultMaxRequeues,
		now:           time.Now,
		logger:        slog.Default(),
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start runs the periodic probe until ctx is done or Close is called.
// It is a no-op when no probe is configured.
func (m *Monitor) Start(ctx context.Context) {
	if m.probe == nil {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.probeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}

// Check runs the probe once and applies any resulting transition.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.probe == nil {
		return m.Status()
	}
	connected := m.probe(ctx)
	m.SetOnline(connected)
	return connected
}

// Status returns the cached online state. It never blocks on I/O.
func (m *Monitor) Status() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe registers cb for state transitions. The returned func unregisters it.
func (m *Monitor) Subscribe(cb Callback) (unsubscribe func()) {
	m.mu.Lock()
	elem := m.subs.PushBack(cb)
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.subs.Remove(elem)
			m.mu.Unlock()
		})
	}
}

// SetOnline applies a platform connectivity signal. A change of state notifies every
// subscriber in order, and a transition to online drains the queue in the background.
// Callbacks must not call SetOnline.
func (m *Monitor) SetOnline(online bool) {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	m.mu.Lock()
	if m.closed || m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	callbacks := make([]Callback, 0, m.subs.Len())
	for e := m.subs.Front(); e != nil; e = e.Next() {
		callbacks = append(callbacks, e.Value.(Callback))
	}
	m.mu.Unlock()

	if online {
		m.logger.Info("network connection restored")
	} else {
		m.logger.Warn("network connection lost")
	}

	for _, cb := range callbacks {
		m.notify(cb, online)
	}

	if online {
		go m.drain()
	}
}

func (m *Monitor) notify(cb Callback, online bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("network status callback panicked", "panic", fmt.Sprint(r))
		}
	}()
	cb(online)
}

// WaitForOnline blocks until the monitor is online, ctx is done or timeout elapses.
func (m *Monitor) WaitForOnline(ctx context.Context, timeout time.Duration) bool {
	if m.Status() {
		return true
	}

	ch := make(chan struct{}, 1)
	unsubscribe := m.Subscribe(func(online bool) {
		if online {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	// the state may have flipped before we subscribed
	if m.Status() {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Close stops probing, rejects everything still queued and drops all subscribers.
func (m *Monitor) Close() {
	m.stopOnce.Do(func() {
		close(m.stop)

		m.mu.Lock()
		m.closed = true
		m.subs.Init()
		m.mu.Unlock()

		for _, it := range m.pending.DequeueAll() {
			it.settle(nil, apierr.ErrMonitorClosed)
		}
		m.metrics.SetQueueDepth(0)
	})
	m.wg.Wait()
}

func (m *Monitor) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
