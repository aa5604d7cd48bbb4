package netstatus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/netplus/netprep/internal/apierr"
)

// RequestFunc is a deferred operation. It runs with the context of the caller that queued it.
type RequestFunc func(ctx context.Context) (any, error)

type result struct {
	value any
	err   error
}

type item struct {
	id        string
	ctx       context.Context
	fn        RequestFunc
	timestamp time.Time
	requeues  int

	once sync.Once
	done chan result
}

func (it *item) settle(value any, err error) {
	it.once.Do(func() {
		it.done <- result{value: value, err: err}
	})
}

// QueueRequest runs fn through the queue. While online it executes right away, without
// waiting for a drain in progress. While offline it waits for the next transition to online.
// It returns fn's result, ctx.Err() when the caller gives up first, or an expiry error when
// the item is evicted.
func (m *Monitor) QueueRequest(ctx context.Context, fn RequestFunc) (any, error) {
	if m.isClosed() {
		return nil, apierr.ErrMonitorClosed
	}

	it := &item{
		id:        "req_" + uuid.NewString(),
		ctx:       ctx,
		fn:        fn,
		timestamp: m.now(),
		done:      make(chan result, 1),
	}

	if m.Status() {
		return m.run(it)
	}

	m.metrics.SetQueueDepth(m.pending.Enqueue(it))
	m.logger.Warn("request queued (offline)", "id", it.id)
	// the monitor may have come online between the status check and the enqueue
	if m.Status() {
		go m.drain()
	}

	select {
	case r := <-it.done:
		return r.value, r.err
	case <-ctx.Done():
		if removed := m.pending.RemoveFunc(func(q *item) bool { return q == it }); len(removed) > 0 {
			m.metrics.SetQueueDepth(m.pending.Len())
		}
		return nil, ctx.Err()
	}
}

// Queue is the typed form of Monitor.QueueRequest.
func Queue[T any](ctx context.Context, m *Monitor, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := m.QueueRequest(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, _ := v.(T)
	return typed, nil
}

// QueueSize returns the number of items waiting in the queue.
func (m *Monitor) QueueSize() int {
	return m.pending.Len()
}

// ClearOldRequests evicts items older than maxAge, rejecting each with an expiry error.
// It returns the number of evicted items.
func (m *Monitor) ClearOldRequests(maxAge time.Duration) int {
	now := m.now()
	expired := m.pending.RemoveFunc(func(it *item) bool {
		return now.Sub(it.timestamp) > maxAge
	})

	for _, it := range expired {
		it.settle(nil, apierr.Expired())
	}

	if len(expired) > 0 {
		m.metrics.ObserveExpired(len(expired))
		m.metrics.SetQueueDepth(m.pending.Len())
		m.logger.Warn("cleared expired requests", "count", len(expired))
	}
	return len(expired)
}

// drain processes snapshots of the queue in FIFO order while online. Each item is awaited
// before the next starts. Items enqueued during a pass are handled by the following pass.
func (m *Monitor) drain() {
	m.drainMu.Lock()
	defer m.drainMu.Unlock()

	for {
		m.ClearOldRequests(m.maxAge)

		if !m.Status() || m.isClosed() {
			return
		}

		batch := m.pending.DequeueAll()
		if len(batch) == 0 {
			return
		}
		m.metrics.SetQueueDepth(m.pending.Len())

		if len(batch) > 1 {
			m.logger.Info("processing queued requests", "count", len(batch))
		}

		for _, it := range batch {
			m.process(it)
		}
	}
}

func (m *Monitor) process(it *item) {
	if err := it.ctx.Err(); err != nil {
		it.settle(nil, err)
		return
	}

	value, err := m.run(it)
	if err == nil {
		it.settle(value, nil)
		return
	}

	if m.Status() {
		m.logger.Error("queued request failed", "id", it.id, "error", err)
		it.settle(nil, err)
		return
	}

	it.requeues++
	if it.requeues > m.maxRequeues {
		m.logger.Warn("queued request dropped after requeues", "id", it.id, "requeues", it.requeues-1)
		m.metrics.ObserveExpired(1)
		it.settle(nil, apierr.Expired())
		return
	}

	m.metrics.SetQueueDepth(m.pending.Enqueue(it))
}

// run isolates a single item so a panic cannot abort the rest of the drain.
func (m *Monitor) run(it *item) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apierr.Classify(r)
		}
	}()
	return it.fn(it.ctx)
}
