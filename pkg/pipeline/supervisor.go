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

// Supervisor starts a fixed set of workers and stops them together.
type Supervisor struct {
	base        *slog.Logger
	logger      *slog.Logger
	stopTimeout time.Duration

	mu      sync.Mutex
	workers []*Worker
	running bool
}

// NewSupervisor creates a supervisor that gives each worker stopTimeout to exit.
func NewSupervisor(stopTimeout time.Duration, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		base:        log.Or(logger),
		logger:      log.Component(logger, "supervisor"),
		stopTimeout: stopTimeout,
	}
}

// Add registers a worker. Workers start in registration order and stop in
// reverse, so consumers should be added before producers.
func (s *Supervisor) Add(w *Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		panic("pipeline: Add after Start")
	}
	s.workers = append(s.workers, w)
}

// Go is shorthand for Add(NewWorker(name, run, logger)).
func (s *Supervisor) Go(name string, run RunFunc) *Worker {
	w := NewWorker(name, run, s.base)
	s.Add(w)
	return w
}

// Start launches every registered worker.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("pipeline already running")
	}
	if len(s.workers) == 0 {
		s.mu.Unlock()
		return errors.New("pipeline has no workers")
	}
	s.running = true
	workers := append([]*Worker(nil), s.workers...)
	s.mu.Unlock()

	for _, w := range workers {
		w.Start(ctx)
	}
	s.logger.Info("pipeline started", "workers", len(workers))
	return nil
}

// Stop stops workers in reverse registration order. It returns the joined
// stop timeouts, if any.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	workers := append([]*Worker(nil), s.workers...)
	s.mu.Unlock()

	var errs []error
	for i := len(workers) - 1; i >= 0; i-- {
		if err := workers[i].Stop(s.stopTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Info("pipeline stopped")
	return errors.Join(errs...)
}

// Wait blocks until ctx ends or any worker exits. It returns the error of the
// first worker to exit, or nil when the exit was clean.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.mu.Lock()
	workers := append([]*Worker(nil), s.workers...)
	s.mu.Unlock()

	exited := make(chan *Worker, len(workers))
	stop := make(chan struct{})
	defer close(stop)
	for _, w := range workers {
		go func(w *Worker) {
			select {
			case <-w.Done():
				exited <- w
			case <-stop:
			}
		}(w)
	}

	select {
	case <-ctx.Done():
		return nil
	case w := <-exited:
		if err := w.Err(); err != nil {
			return fmt.Errorf("%s: %w", w.Name(), err)
		}
		s.logger.Info("worker exited", "worker", w.Name())
		return nil
	}
}
