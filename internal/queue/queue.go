package queue

import (
	"sync"
)

// FIFO is a thread-safe generic first-in first-out queue
type FIFO[T any] struct {
	items []T
	mu    sync.Mutex
}

// NewFIFO creates a new empty queue
func NewFIFO[T any]() *FIFO[T] {
	return &FIFO[T]{
		items: make([]T, 0),
	}
}

// Len returns the number of queued items
func (q *FIFO[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Enqueue appends a value to the tail and returns the new length
func (q *FIFO[T]) Enqueue(value T) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, value)
	return len(q.items)
}

// Dequeue removes and returns the head of the queue
func (q *FIFO[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		var zero T
		return zero, false
	}

	item := q.items[0]
	var zero T
	q.items[0] = zero // avoid memory leak
	q.items = q.items[1:]
	return item, true
}

// DequeueAll atomically takes every queued item, leaving the queue empty.
// Items enqueued afterwards are not part of the returned snapshot.
func (q *FIFO[T]) DequeueAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = make([]T, 0)
	return items
}

// RemoveFunc deletes every item for which remove returns true and returns them in queue order.
// remove is called with the queue lock held and must not call back into the queue.
func (q *FIFO[T]) RemoveFunc(remove func(T) bool) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	var removed []T
	kept := q.items[:0]
	for _, item := range q.items {
		if remove(item) {
			removed = append(removed, item)
			continue
		}
		kept = append(kept, item)
	}

	var zero T
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = zero
	}
	q.items = kept
	return removed
}
