package pipeline

import (
	"sync"
	"time"
)

// Latch is a one-shot signal. The first Set wins; later calls are no-ops.
type Latch struct {
	once  sync.Once
	ch    chan struct{}
	setAt time.Time
	mu    sync.RWMutex
}

// NewLatch returns an unset latch.
func NewLatch() *Latch {
	return &Latch{ch: make(chan struct{})}
}

// Set trips the latch. It reports whether this call was the one that set it.
func (l *Latch) Set() bool {
	first := false
	l.once.Do(func() {
		l.mu.Lock()
		l.setAt = time.Now()
		l.mu.Unlock()
		close(l.ch)
		first = true
	})
	return first
}

// IsSet is a non-blocking check.
func (l *Latch) IsSet() bool {
	select {
	case <-l.ch:
		return true
	default:
		return false
	}
}

// Done is closed once the latch is set.
func (l *Latch) Done() <-chan struct{} { return l.ch }

// SetAt returns when the latch was set, or the zero time.
func (l *Latch) SetAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.setAt
}
