package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-angler/internal/log"
	"github.com/teslashibe/go-angler/pkg/pipeline"
)

// ActuatorConfig tunes how actions are performed.
type ActuatorConfig struct {
	// Hold is how long the button stays down during a click.
	Hold time.Duration
}

// ActuatorStats counts performed actions.
type ActuatorStats struct {
	Performed uint64 `json:"performed"`
	Failed    uint64 `json:"failed"`
}

// Actuator performs actions from its queue. Input backends are assumed
// reliable; a failed action is logged and not retried.
type Actuator struct {
	clicker Clicker
	in      *pipeline.Queue[Action]
	cfg     ActuatorConfig
	logger  *slog.Logger

	performed atomic.Uint64
	failed    atomic.Uint64
}

// NewActuator creates an actuator reading from in.
func NewActuator(c Clicker, in *pipeline.Queue[Action], cfg ActuatorConfig, logger *slog.Logger) *Actuator {
	return &Actuator{
		clicker: c,
		in:      in,
		cfg:     cfg,
		logger:  log.Component(logger, "actuator"),
	}
}

// Run performs actions until ctx is done or the queue is closed.
func (a *Actuator) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		act, err := a.in.Get(ctx)
		if err != nil {
			if errors.Is(err, pipeline.ErrClosed) {
				return nil
			}
			return err
		}
		if err := a.Perform(ctx, act); err != nil {
			a.logger.Warn("input action failed", "action", act, "error", err)
		}
	}
}

// Perform executes one action.
func (a *Actuator) Perform(ctx context.Context, act Action) error {
	var err error
	switch act {
	case ActionClick:
		if a.cfg.Hold > 0 {
			err = a.holdClick(ctx)
		} else {
			err = Click(a.clicker)
		}
	case ActionPress:
		err = a.clicker.Press()
	case ActionRelease:
		err = a.clicker.Release()
	default:
		err = fmt.Errorf("unknown %v", act)
	}

	if err != nil {
		a.failed.Add(1)
		return err
	}
	a.performed.Add(1)
	a.logger.Debug("input action", "action", act)
	return nil
}

func (a *Actuator) holdClick(ctx context.Context) error {
	if err := a.clicker.Press(); err != nil {
		return errors.Join(err, a.clicker.Release())
	}
	t := time.NewTimer(a.cfg.Hold)
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	t.Stop()
	return a.clicker.Release()
}

// Stats returns actuator counters.
func (a *Actuator) Stats() ActuatorStats {
	return ActuatorStats{
		Performed: a.performed.Load(),
		Failed:    a.failed.Load(),
	}
}
