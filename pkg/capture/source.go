package capture

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-angler/internal/log"
	"github.com/teslashibe/go-angler/pkg/frame"
	"github.com/teslashibe/go-angler/pkg/pipeline"
)

// SourceConfig paces the capture loop.
type SourceConfig struct {
	Interval   time.Duration // minimum time between captures, 0 for none
	RetryDelay time.Duration // wait after a failed capture
	IdleDelay  time.Duration // wait when every output is full
}

// DefaultSourceConfig returns production defaults.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		RetryDelay: 250 * time.Millisecond,
		IdleDelay:  5 * time.Millisecond,
	}
}

// SourceStats counts capture loop outcomes.
type SourceStats struct {
	Captured uint64 `json:"captured"`
	Skipped  uint64 `json:"skipped"`
	Failed   uint64 `json:"failed"`
}

// Source is the frame producer. Every output queue gets its own copy of each
// frame; a full queue is skipped rather than waited on.
type Source struct {
	capturer Capturer
	outs     []*pipeline.Queue[*frame.Frame]
	cfg      SourceConfig
	logger   *slog.Logger

	captured atomic.Uint64
	skipped  atomic.Uint64
	failed   atomic.Uint64
}

// NewSource creates a frame source feeding outs.
func NewSource(c Capturer, cfg SourceConfig, logger *slog.Logger, outs ...*pipeline.Queue[*frame.Frame]) *Source {
	def := DefaultSourceConfig()
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = def.IdleDelay
	}
	return &Source{
		capturer: c,
		outs:     outs,
		cfg:      cfg,
		logger:   log.Component(logger, "capture"),
	}
}

// Run captures until ctx is done.
func (s *Source) Run(ctx context.Context) error {
	s.logger.Info("capturing", "bounds", s.capturer.Bounds(), "outputs", len(s.outs))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.allFull() {
			if err := sleep(ctx, s.cfg.IdleDelay); err != nil {
				return err
			}
			continue
		}

		start := time.Now()
		if err := s.Step(); err != nil {
			s.logger.Warn("capture failed", "error", err)
			if err := sleep(ctx, s.cfg.RetryDelay); err != nil {
				return err
			}
			continue
		}

		if s.cfg.Interval > 0 {
			if err := sleep(ctx, s.cfg.Interval-time.Since(start)); err != nil {
				return err
			}
		}
	}
}

// Step captures one frame and offers it to every output with room.
func (s *Source) Step() error {
	f, err := s.capturer.Capture()
	if err != nil {
		s.failed.Add(1)
		return err
	}
	s.captured.Add(1)

	for i, q := range s.outs {
		if q.Full() {
			s.skipped.Add(1)
			continue
		}
		v := f
		if i < len(s.outs)-1 {
			v = f.Clone()
		}
		if !q.Offer(v) {
			s.skipped.Add(1)
		}
	}
	return nil
}

// Stats returns capture counters.
func (s *Source) Stats() SourceStats {
	return SourceStats{
		Captured: s.captured.Load(),
		Skipped:  s.skipped.Load(),
		Failed:   s.failed.Load(),
	}
}

func (s *Source) allFull() bool {
	for _, q := range s.outs {
		if !q.Full() {
			return false
		}
	}
	return len(s.outs) > 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
