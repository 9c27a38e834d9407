package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-angler/internal/log"
)

// ErrStopTimeout is returned by Stop when a worker did not exit in time. The
// worker goroutine is abandoned; it exits on its own once its blocking call
// returns.
var ErrStopTimeout = errors.New("worker did not stop in time")

// RunFunc is a worker loop. It must check ctx at the top of every iteration
// and return when ctx is done.
type RunFunc func(ctx context.Context) error

// Worker runs one loop in its own goroutine.
type Worker struct {
	name   string
	run    RunFunc
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// NewWorker wraps run as a named worker.
func NewWorker(name string, run RunFunc, logger *slog.Logger) *Worker {
	return &Worker{
		name:   name,
		run:    run,
		logger: log.Component(logger, name),
		done:   make(chan struct{}),
	}
}

// Name returns the worker name.
func (w *Worker) Name() string { return w.name }

// Start spawns the worker loop. Starting a worker twice is a programmer error.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		panic(fmt.Sprintf("pipeline: worker %q started twice", w.name))
	}
	w.started = true
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	go func() {
		defer close(w.done)
		defer func() {
			if r := recover(); r != nil {
				w.setErr(fmt.Errorf("worker %s panicked: %v", w.name, r))
				w.logger.Error("worker panicked", "panic", r)
			}
		}()

		w.logger.Debug("worker started")
		err := w.run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.setErr(err)
			w.logger.Error("worker exited", "error", err)
			return
		}
		w.logger.Debug("worker stopped")
	}()
}

// Stop cancels the worker and waits up to timeout for it to exit.
// A zero timeout waits forever. Stop before Start is a no-op.
func (w *Worker) Stop(timeout time.Duration) error {
	w.mu.Lock()
	cancel := w.cancel
	started := w.started
	w.mu.Unlock()
	if !started {
		return nil
	}
	cancel()

	if timeout <= 0 {
		<-w.done
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.done:
		return nil
	case <-timer.C:
		w.logger.Warn("worker abandoned after stop timeout", "timeout", timeout)
		return fmt.Errorf("%s: %w", w.name, ErrStopTimeout)
	}
}

// Done is closed when the worker loop has returned.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Err returns the error the loop exited with, if any. Cancellation is not an error.
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Worker) setErr(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}
