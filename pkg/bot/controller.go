package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-angler/internal/log"
	"github.com/teslashibe/go-angler/pkg/detection"
	"github.com/teslashibe/go-angler/pkg/frame"
	"github.com/teslashibe/go-angler/pkg/input"
	"github.com/teslashibe/go-angler/pkg/pipeline"
	"github.com/teslashibe/go-angler/pkg/tracking"
)

var (
	// ErrNotReady is returned by Run when the detector did not become ready
	// within Config.ReadyTimeout.
	ErrNotReady = errors.New("detector not ready")

	// ErrNotRunning is returned by control calls when Run has exited.
	ErrNotRunning = errors.New("controller not running")

	errStopped     = errors.New("stopped")
	errInterrupted = errors.New("step interrupted by pause")
)

// Config holds controller configuration.
type Config struct {
	SettleDelay   time.Duration   // wait after every click
	ReadyTimeout  time.Duration   // 0 waits for the detector forever
	ReadyPoll     time.Duration   // readiness re-check interval
	MinConfidence float64         // detections below this are ignored
	Tracking      tracking.Config // stabilization and strike thresholds
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		SettleDelay:   700 * time.Millisecond,
		ReadyPoll:     50 * time.Millisecond,
		MinConfidence: detection.DefaultMinConfidence,
		Tracking:      tracking.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.SettleDelay < 0 {
		errs = append(errs, errors.New("settle delay must not be negative"))
	}
	if c.ReadyTimeout < 0 {
		errs = append(errs, errors.New("ready timeout must not be negative"))
	}
	if c.ReadyPoll <= 0 {
		errs = append(errs, errors.New("ready poll must be positive"))
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("min confidence %v outside [0,1]", c.MinConfidence))
	}
	if err := c.Tracking.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Wiring connects the controller to the rest of the pipeline.
type Wiring struct {
	Frames     *pipeline.Queue[*frame.Frame]
	Detections *pipeline.Queue[detection.Batch]
	Actions    *pipeline.Queue[input.Action]
	Ready      *pipeline.Latch
	Trackers   tracking.Factory
}

type command int

const (
	cmdTogglePause command = iota
	cmdStop
)

type request struct {
	cmd   command
	reply chan bool
}

// Controller is the bot state machine.
type Controller struct {
	cfg    Config
	w      Wiring
	logger *slog.Logger

	control chan request
	done    chan struct{}

	// Owned by the Run goroutine.
	state       State
	since       time.Time
	started     time.Time
	paused      bool
	tracker     tracking.Tracker
	trackerInit bool
	stab        *tracking.Stabilizer
	casts       uint64
	strikes     uint64
	batches     uint64
	failures    uint64

	obsMu     sync.RWMutex
	observers []Observer

	snapMu sync.RWMutex
	snap   Snapshot
}

// New creates a controller in the Initializing state.
func New(cfg Config, w Wiring, logger *slog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bot config: %w", err)
	}
	if w.Frames == nil || w.Detections == nil || w.Actions == nil || w.Ready == nil || w.Trackers == nil {
		return nil, errors.New("bot wiring is incomplete")
	}

	c := &Controller{
		cfg:     cfg,
		w:       w,
		logger:  log.Component(logger, "bot"),
		control: make(chan request),
		done:    make(chan struct{}),
		state:   Initializing,
		since:   time.Now(),
		stab:    tracking.NewStabilizer(cfg.Tracking),
	}
	c.publish()
	return c, nil
}

// AddObserver registers o for controller events.
func (c *Controller) AddObserver(o Observer) {
	c.obsMu.Lock()
	c.observers = append(c.observers, o)
	c.obsMu.Unlock()
}

// Snapshot returns the latest published controller state.
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	s := c.snap
	s.Trail = append([]tracking.Point(nil), c.snap.Trail...)
	return s
}

// TogglePause pauses or resumes the controller and returns the new paused
// state once the controller has applied it. The control channel is not read
// while a click is being queued or settling, so the call can wait up to the
// settle delay, or until ctx ends if the actuator has stalled.
func (c *Controller) TogglePause(ctx context.Context) (bool, error) {
	return c.send(ctx, cmdTogglePause)
}

// Stop asks the controller to exit Run.
func (c *Controller) Stop(ctx context.Context) error {
	_, err := c.send(ctx, cmdStop)
	return err
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) send(ctx context.Context, cmd command) (bool, error) {
	reply := make(chan bool, 1)
	select {
	case c.control <- request{cmd: cmd, reply: reply}:
	case <-c.done:
		return false, ErrNotRunning
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return <-reply, nil
}

// Run drives the state machine until ctx ends, Stop is called or the
// detector misses the readiness deadline.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.closeTracker()

	c.started = time.Now()
	c.logger.Info("bot is initializing, waiting for the model")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Apply control requests that arrived between steps.
		select {
		case req := <-c.control:
			if err := c.handle(req); errors.Is(err, errStopped) {
				return nil
			}
			continue
		default:
		}

		if c.paused {
			if err := c.waitResume(ctx); err != nil {
				if errors.Is(err, errStopped) {
					return nil
				}
				return err
			}
			continue
		}

		err := c.step(ctx)
		c.publish()
		switch {
		case err == nil, errors.Is(err, errInterrupted):
		case errors.Is(err, errStopped):
			return nil
		default:
			return err
		}
	}
}

func (c *Controller) step(ctx context.Context) error {
	switch c.state {
	case Initializing:
		return c.initializing(ctx)
	case Throwing:
		return c.throwing(ctx)
	case Biting:
		return c.biting(ctx)
	case Catching:
		return c.catching(ctx)
	default:
		return fmt.Errorf("unknown state %v", c.state)
	}
}

func (c *Controller) initializing(ctx context.Context) error {
	if c.tracker == nil {
		c.newTracker()
	}
	if c.w.Ready.IsSet() {
		c.transition(Throwing)
		return nil
	}
	if c.cfg.ReadyTimeout > 0 && time.Since(c.started) >= c.cfg.ReadyTimeout {
		c.logger.Error("model did not become ready", "timeout", c.cfg.ReadyTimeout)
		return ErrNotReady
	}

	t := time.NewTimer(c.cfg.ReadyPoll)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	case <-c.w.Ready.Done():
	case req := <-c.control:
		return c.handle(req)
	}
	return nil
}

func (c *Controller) throwing(ctx context.Context) error {
	c.casts++
	c.logger.Info("throwing the bobber", "cast", c.casts)
	c.emit(Event{Kind: EventCast})

	// Every cast tracks a fresh bobber.
	c.closeTracker()
	c.newTracker()
	c.stab.Reset()

	if err := c.click(ctx); err != nil {
		return err
	}
	c.transition(Biting)
	return nil
}

func (c *Controller) catching(ctx context.Context) error {
	c.logger.Info("catching the fish", "cast", c.casts)
	c.emit(Event{Kind: EventCatch})

	if err := c.click(ctx); err != nil {
		return err
	}
	c.transition(Throwing)
	return nil
}

func (c *Controller) biting(ctx context.Context) error {
	batch, err := recv(ctx, c, c.w.Detections)
	if err != nil {
		return err
	}
	c.batches++

	for _, d := range detection.Filter(batch.Detections, c.cfg.MinConfidence) {
		f, err := recv(ctx, c, c.w.Frames)
		if err != nil {
			return err
		}
		if c.evaluate(f, d) {
			c.transition(Catching)
			return nil
		}
	}
	return nil
}

// evaluate runs one detection through the tracker and stabilizer and reports
// a strike. Tracker failures are counted and otherwise ignored.
func (c *Controller) evaluate(f *frame.Frame, d detection.Detection) bool {
	if c.tracker == nil && !c.newTracker() {
		c.failures++
		return false
	}

	if !c.trackerInit {
		if err := c.tracker.Init(f, d.Rect()); err != nil {
			c.failures++
			c.logger.Debug("tracker init failed", "box", d.Rect(), "error", err)
			return false
		}
		c.trackerInit = true
		return false
	}

	if _, ok := c.tracker.Update(f); !ok {
		c.failures++
		c.logger.Debug("tracker lost the bobber", "frame", f.Seq)
		return false
	}

	v := c.stab.Observe(d.Midpoint())
	if v.Appended {
		c.emit(Event{Kind: EventPoint, Point: v.Point, DX: v.DX, DY: v.DY})
	}
	if v.Stabilized {
		c.logger.Info("bobber settled, waiting for a fish", "point", v.Point)
		c.emit(Event{Kind: EventStabilized, Point: v.Point, DX: v.DX, DY: v.DY})
	}
	if v.Strike {
		c.strikes++
		c.logger.Info("a fish took the bait", "point", v.Point, "dx", v.DX, "dy", v.DY)
		c.emit(Event{Kind: EventStrike, Point: v.Point, DX: v.DX, DY: v.DY})
		return true
	}
	return false
}

// click sends one click to the actuator and waits the settle delay. The wait
// ignores pause requests so a click is never followed by a repeated state.
func (c *Controller) click(ctx context.Context) error {
	if err := c.w.Actions.Put(ctx, input.ActionClick); err != nil {
		return fmt.Errorf("send click: %w", err)
	}
	if c.cfg.SettleDelay <= 0 {
		return nil
	}
	t := time.NewTimer(c.cfg.SettleDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Controller) transition(to State) {
	from := c.state
	c.state = to
	c.since = time.Now()
	c.logger.Debug("state change", "from", from, "to", to)
	c.emit(Event{Kind: EventTransition, From: from})
}

// handle applies a control request. It returns errInterrupted when the
// controller became paused and errStopped for a stop request.
func (c *Controller) handle(req request) error {
	switch req.cmd {
	case cmdStop:
		c.logger.Info("stop requested")
		req.reply <- c.paused
		return errStopped
	case cmdTogglePause:
		c.paused = !c.paused
		req.reply <- c.paused
		c.publish()
		if c.paused {
			c.logger.Info("bot paused", "state", c.state)
			c.emit(Event{Kind: EventPaused})
			return errInterrupted
		}
		c.logger.Info("bot resumed", "state", c.state)
		c.emit(Event{Kind: EventResumed})
	}
	return nil
}

func (c *Controller) waitResume(ctx context.Context) error {
	for c.paused {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-c.control:
			if err := c.handle(req); errors.Is(err, errStopped) {
				return err
			}
		}
	}
	return nil
}

// recv blocks on q while still serving control requests.
func recv[T any](ctx context.Context, c *Controller, q *pipeline.Queue[T]) (T, error) {
	var zero T
	for {
		select {
		case v, ok := <-q.C():
			if !ok {
				return zero, pipeline.ErrClosed
			}
			q.Ack()
			return v, nil
		case req := <-c.control:
			if err := c.handle(req); err != nil {
				return zero, err
			}
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

func (c *Controller) newTracker() bool {
	t, err := c.w.Trackers()
	if err != nil {
		c.logger.Warn("tracker unavailable", "error", err)
		return false
	}
	c.tracker = t
	c.trackerInit = false
	return true
}

func (c *Controller) closeTracker() {
	if c.tracker == nil {
		return
	}
	if err := c.tracker.Close(); err != nil {
		c.logger.Debug("tracker close", "error", err)
	}
	c.tracker = nil
	c.trackerInit = false
}

func (c *Controller) emit(e Event) {
	e.State = c.state
	e.Cast = c.casts
	if e.At.IsZero() {
		e.At = time.Now()
	}

	c.obsMu.RLock()
	obs := c.observers
	c.obsMu.RUnlock()
	for _, o := range obs {
		o.OnEvent(e)
	}
}

func (c *Controller) publish() {
	s := Snapshot{
		State:           c.state,
		Since:           c.since,
		Paused:          c.paused,
		Stabilized:      c.stab.Stabilized(),
		Trail:           c.stab.Trail().Points(),
		Casts:           c.casts,
		Strikes:         c.strikes,
		Batches:         c.batches,
		TrackerFailures: c.failures,
	}
	c.snapMu.Lock()
	c.snap = s
	c.snapMu.Unlock()
}
