// Package app wires the angler pipeline together: screen capture, the
// bobber detector, the bot controller and the mouse actuator, plus the
// optional journal, dashboard and preview window.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"github.com/teslashibe/go-angler/internal/config"
	"github.com/teslashibe/go-angler/internal/journal"
	"github.com/teslashibe/go-angler/internal/log"
	"github.com/teslashibe/go-angler/pkg/bot"
	"github.com/teslashibe/go-angler/pkg/capture"
	"github.com/teslashibe/go-angler/pkg/detection"
	"github.com/teslashibe/go-angler/pkg/frame"
	"github.com/teslashibe/go-angler/pkg/input"
	"github.com/teslashibe/go-angler/pkg/pipeline"
	"github.com/teslashibe/go-angler/pkg/remote"
	"github.com/teslashibe/go-angler/pkg/vision"
	"github.com/teslashibe/go-angler/pkg/web"
)

// ErrAlreadyRunning is returned when another angler holds the lock.
var ErrAlreadyRunning = errors.New("another angler instance is already running")

// Options are per-run switches layered over the config file.
type Options struct {
	DryRun    bool
	Preview   bool
	Dashboard bool
}

// App is the angler orchestrator. It owns every component and their
// lifecycle: New, Init, Run, Shutdown.
type App struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	lock *flock.Flock

	// Queues
	detFrames  *pipeline.Queue[*frame.Frame]
	botFrames  *pipeline.Queue[*frame.Frame]
	detections *pipeline.Queue[detection.Batch]
	actions    *pipeline.Queue[input.Action]
	ready      *pipeline.Latch

	// Workers
	capturer *capture.ScreenCapturer
	model    *vision.YOLOModel
	source   *capture.Source
	detector *detection.Detector
	ctrl     *bot.Controller
	clicker  input.Clicker
	actuator *input.Actuator
	sup      *pipeline.Supervisor

	// Optional surfaces
	overlay *vision.Overlay
	preview *vision.Preview
	web     *web.Server
	remote  *remote.Control
	store   *journal.Store
	session *journal.Session
	journal *journal.Writer
}

// New creates an App. Nothing is opened until Init.
func New(cfg *config.Config, opts Options, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app requires a config")
	}
	if cfg.Input.DryRun {
		opts.DryRun = true
	}
	if cfg.Dashboard.Enabled {
		opts.Dashboard = true
	}
	if cfg.Dashboard.Preview {
		opts.Preview = true
	}
	return &App{
		cfg:    cfg,
		opts:   opts,
		logger: log.Component(logger, "app"),
		lock:   flock.New(cfg.LockPath()),
	}, nil
}

// Init acquires the instance lock and builds every component. Any failure
// here is a startup failure; Shutdown releases what was opened.
func (a *App) Init() error {
	if err := a.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := a.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, a.cfg.LockPath())
	}

	if err := a.initSensing(); err != nil {
		return err
	}
	if err := a.initControl(); err != nil {
		return err
	}
	if a.cfg.Journal.Enabled {
		if err := a.initJournal(); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}
	if a.opts.Dashboard {
		a.initDashboard()
	}
	if a.opts.Preview {
		a.preview = vision.NewPreview("angler", a.overlay, a.cfg.Dashboard.CameraFPS)
	}
	a.initSupervisor()
	return nil
}

func (a *App) initSensing() error {
	var err error
	a.capturer, err = capture.NewScreenCapturer(capture.ScreenConfig{
		Window:  a.cfg.WindowRect(),
		Display: a.cfg.Capture.Display,
		Crop:    a.cfg.Capture.Crop,
	})
	if err != nil {
		return fmt.Errorf("screen capture: %w", err)
	}
	a.logger.Info("capturing screen area", "bounds", a.capturer.Bounds())

	yolo := vision.DefaultYOLOConfig()
	yolo.ModelPath = a.cfg.Detection.ModelPath
	yolo.ConfidenceThresh = float32(a.cfg.Detection.MinConfidence)
	yolo.NMSThresh = float32(a.cfg.Detection.NMSThreshold)
	yolo.InputWidth = a.cfg.Detection.InputSize
	yolo.InputHeight = a.cfg.Detection.InputSize
	yolo.ClassID = a.cfg.Detection.ClassID
	a.model, err = vision.NewYOLO(yolo)
	if err != nil {
		return fmt.Errorf("detector model: %w", err)
	}

	a.detFrames = pipeline.NewQueue[*frame.Frame]("frames.detector", 1)
	a.botFrames = pipeline.NewQueue[*frame.Frame]("frames.bot", 1)
	a.detections = pipeline.NewQueue[detection.Batch]("detections", a.cfg.Detection.QueueSize)
	a.actions = pipeline.NewQueue[input.Action]("actions", 1)
	a.ready = pipeline.NewLatch()

	a.source = capture.NewSource(a.capturer, capture.SourceConfig{
		Interval:   a.cfg.CaptureInterval(),
		RetryDelay: a.cfg.RetryDelay(),
		IdleDelay:  capture.DefaultSourceConfig().IdleDelay,
	}, a.logger, a.detFrames, a.botFrames)

	a.detector = detection.NewDetector(a.model,
		detection.Config{MinConfidence: a.cfg.Detection.MinConfidence},
		a.detFrames, a.detections, a.ready, a.logger)

	a.overlay = vision.NewOverlay()
	a.detector.OnBatch(a.overlay.Observe)
	return nil
}

func (a *App) initControl() error {
	var err error
	a.ctrl, err = bot.New(bot.Config{
		SettleDelay:   a.cfg.SettleDelay(),
		ReadyTimeout:  a.cfg.ReadyTimeout(),
		ReadyPoll:     a.cfg.ReadyPoll(),
		MinConfidence: a.cfg.Detection.MinConfidence,
		Tracking:      a.cfg.Thresholds(),
	}, bot.Wiring{
		Frames:     a.botFrames,
		Detections: a.detections,
		Actions:    a.actions,
		Ready:      a.ready,
		Trackers:   vision.NewMILFactory(),
	}, a.logger)
	if err != nil {
		return err
	}
	a.ctrl.AddObserver(newOverlayObserver(a.overlay))

	if a.opts.DryRun {
		a.clicker = input.NewRecorder()
		a.logger.Info("dry run: clicks are recorded, not performed")
	} else {
		a.clicker = input.NewRobotClicker(a.cfg.Input.Button)
	}
	a.actuator = input.NewActuator(a.clicker, a.actions, input.ActuatorConfig{Hold: a.cfg.Hold()}, a.logger)
	return nil
}

func (a *App) initJournal() error {
	store, err := journal.Open(a.cfg.Journal.Path)
	if err != nil {
		return err
	}
	a.store = store

	sess, err := store.BeginSession(context.Background(), a.opts.DryRun, rectString(a.capturer.Bounds()))
	if err != nil {
		return err
	}
	a.session = sess
	a.journal = journal.NewWriter(store, sess.ID, a.logger)
	a.journal.RecordPoints(a.cfg.Journal.RecordPoints)
	a.ctrl.AddObserver(a.journal)
	a.logger.Info("journal session started", "session", sess.ID, "path", store.Path())
	return nil
}

func (a *App) initDashboard() {
	a.web = web.NewServer(web.Config{
		Bind:      a.cfg.Dashboard.Bind,
		CameraFPS: a.cfg.Dashboard.CameraFPS,
	}, a.ctrl, a.overlay, a.logger)
	a.web.PipelineStats = func() any { return a.Stats() }

	a.remote = remote.NewControl(a.ctrl, a.logger)
	a.remote.RegisterRoutes(a.web.App())
	a.ctrl.AddObserver(a.web)
}

// initSupervisor registers workers so that observers outlive the controller
// and producers stop before consumers.
func (a *App) initSupervisor() {
	a.sup = pipeline.NewSupervisor(a.cfg.StopTimeout(), a.logger)
	if a.journal != nil {
		a.sup.Go("journal", a.journal.Run)
	}
	if a.web != nil {
		a.sup.Go("dashboard", a.web.Run)
	}
	a.sup.Go("actuator", a.actuator.Run)
	a.sup.Go("bot", a.ctrl.Run)
	a.sup.Go("detector", a.detector.Run)
	a.sup.Go("capture", a.source.Run)
}

// Run starts the pipeline and blocks until ctx is cancelled, a worker exits
// (the bot exits cleanly on a stop command) or the preview window is closed.
// The preview, when enabled, runs on the calling goroutine.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !a.opts.DryRun && a.cfg.Input.Focus {
		a.focus()
	}
	if err := a.sup.Start(ctx); err != nil {
		return err
	}

	if a.preview == nil {
		return a.sup.Wait(ctx)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- a.sup.Wait(ctx)
		cancel()
	}()
	err := a.preview.Run(ctx)
	cancel()
	if errors.Is(err, vision.ErrQuit) {
		a.logger.Info("preview closed")
		err = nil
	}
	return errors.Join(err, <-waitErr)
}

func (a *App) focus() {
	mover, ok := a.clicker.(input.Mover)
	if !ok {
		return
	}
	b := a.capturer.Bounds()
	p := a.capturer.ScreenPosition(image.Pt(b.Dx()/2, b.Dy()/2))
	if err := mover.MoveTo(p.X, p.Y); err != nil {
		a.logger.Warn("could not move pointer to capture area", "error", err)
	}
}

// Shutdown stops the workers and releases resources. Safe after a failed Init.
func (a *App) Shutdown() error {
	var errs []error
	if a.sup != nil {
		if err := a.sup.Stop(); err != nil {
			errs = append(errs, err)
		} else {
			a.closeQueues()
		}
	}
	if a.preview != nil {
		errs = append(errs, a.preview.Close())
	}
	if a.store != nil {
		if a.session != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			errs = append(errs, a.store.EndSession(ctx, a.session.ID))
			cancel()
		}
		errs = append(errs, a.store.Close())
	}
	if a.model != nil {
		errs = append(errs, a.model.Close())
	}
	if rec, ok := a.clicker.(*input.Recorder); ok {
		a.logger.Info("dry run finished", "clicks", rec.Clicks())
	}
	if a.lock.Locked() {
		errs = append(errs, a.lock.Unlock())
	}
	return errors.Join(errs...)
}

// closeQueues closes and empties the hand-off queues. Only call it once every
// worker has exited; an abandoned producer would send on a closed channel.
func (a *App) closeQueues() {
	dropped := 0
	if a.detFrames != nil {
		a.detFrames.Close()
		dropped += a.detFrames.Drain(nil)
	}
	if a.botFrames != nil {
		a.botFrames.Close()
		dropped += a.botFrames.Drain(nil)
	}
	if a.detections != nil {
		a.detections.Close()
		dropped += a.detections.Drain(nil)
	}
	if a.actions != nil {
		a.actions.Close()
		dropped += a.actions.Drain(nil)
	}
	if dropped > 0 {
		a.logger.Debug("discarded queued items at shutdown", "items", dropped)
	}
}

// Stats collects worker counters for the dashboard.
func (a *App) Stats() PipelineStats {
	st := PipelineStats{
		Source:   a.source.Stats(),
		Detector: a.detector.Stats(),
		Actuator: a.actuator.Stats(),
		Queues: []pipeline.QueueStats{
			a.detFrames.Stats(),
			a.botFrames.Stats(),
			a.detections.Stats(),
			a.actions.Stats(),
		},
	}
	if a.remote != nil {
		rs := a.remote.Stats()
		st.Remote = &rs
	}
	if a.journal != nil {
		st.Journal = &JournalStats{Written: a.journal.Written(), Dropped: a.journal.Dropped()}
	}
	return st
}

// PipelineStats is the pipeline section of the dashboard status.
type PipelineStats struct {
	Source   capture.SourceStats   `json:"source"`
	Detector detection.Stats       `json:"detector"`
	Actuator input.ActuatorStats   `json:"actuator"`
	Queues   []pipeline.QueueStats `json:"queues"`
	Remote   *remote.Stats         `json:"remote,omitempty"`
	Journal  *JournalStats         `json:"journal,omitempty"`
}

// JournalStats counts journal writes.
type JournalStats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
}

func rectString(r image.Rectangle) string {
	return fmt.Sprintf("%d,%d,%d,%d", r.Min.X, r.Min.Y, r.Dx(), r.Dy())
}
