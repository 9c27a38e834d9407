// Package pipeline provides the hand-off queues, readiness latch and worker
// lifecycle used to wire capture, detection, control and input together.
//
// Queues are bounded channels. Producers that can afford to lose an item use
// Offer, which never blocks and reports a skip when the queue is full.
// Consumers block in Get until an item arrives or their context ends.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrClosed is returned by Get when the queue has been closed and drained.
var ErrClosed = errors.New("queue closed")

// QueueStats is a point-in-time view of queue counters.
type QueueStats struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Length   int    `json:"length"`
	Offered  uint64 `json:"offered"`
	Skipped  uint64 `json:"skipped"`
	Taken    uint64 `json:"taken"`
}

// Queue is a bounded single-direction hand-off between two workers.
type Queue[T any] struct {
	name string
	ch   chan T

	offered atomic.Uint64
	skipped atomic.Uint64
	taken   atomic.Uint64
	closed  atomic.Bool
}

// NewQueue creates a queue holding at most capacity items (minimum 1).
func NewQueue[T any](name string, capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		name: name,
		ch:   make(chan T, capacity),
	}
}

// Name returns the queue name used in logs and stats.
func (q *Queue[T]) Name() string { return q.name }

// Offer hands v to the consumer without blocking. It returns false when the
// queue is full; the caller keeps ownership of v and should skip producing.
func (q *Queue[T]) Offer(v T) bool {
	if q.closed.Load() {
		return false
	}
	select {
	case q.ch <- v:
		q.offered.Add(1)
		return true
	default:
		q.skipped.Add(1)
		return false
	}
}

// Put blocks until v is queued or ctx ends.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	if q.closed.Load() {
		return ErrClosed
	}
	select {
	case q.ch <- v:
		q.offered.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get blocks until an item is available or ctx ends.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	select {
	case v, ok := <-q.ch:
		if !ok {
			var zero T
			return zero, ErrClosed
		}
		q.taken.Add(1)
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryGet returns the next item if one is waiting.
func (q *Queue[T]) TryGet() (T, bool) {
	select {
	case v, ok := <-q.ch:
		if ok {
			q.taken.Add(1)
		}
		return v, ok
	default:
		var zero T
		return zero, false
	}
}

// C exposes the receive side for callers that need to select on several
// sources. Items received this way are counted only after Ack.
func (q *Queue[T]) C() <-chan T { return q.ch }

// Ack records an item received through C as taken.
func (q *Queue[T]) Ack() { q.taken.Add(1) }

// Empty reports whether no item is waiting.
func (q *Queue[T]) Empty() bool { return len(q.ch) == 0 }

// Full reports whether Offer would skip.
func (q *Queue[T]) Full() bool { return len(q.ch) == cap(q.ch) }

// Len returns the number of waiting items.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int { return cap(q.ch) }

// Drain removes every waiting item, passing each to release when non-nil.
func (q *Queue[T]) Drain(release func(T)) int {
	n := 0
	for {
		select {
		case v, ok := <-q.ch:
			if !ok {
				return n
			}
			n++
			if release != nil {
				release(v)
			}
		default:
			return n
		}
	}
}

// Close stops further offers. Waiting items can still be drained.
// Close must only be called once, after every producer has stopped.
func (q *Queue[T]) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.ch)
	}
}

// Stats returns the queue counters.
func (q *Queue[T]) Stats() QueueStats {
	return QueueStats{
		Name:     q.name,
		Capacity: cap(q.ch),
		Length:   len(q.ch),
		Offered:  q.offered.Load(),
		Skipped:  q.skipped.Load(),
		Taken:    q.taken.Load(),
	}
}
