// Package web serves the angler dashboard: controller status, the event
// feed and the annotated camera view over HTTP and websockets.
package web

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-angler/internal/log"
	"github.com/teslashibe/go-angler/pkg/bot"
	"github.com/teslashibe/go-angler/pkg/hub"
	"github.com/teslashibe/go-angler/pkg/protocol"
)

//go:embed index.html
var indexHTML []byte

const (
	maxEvents     = 500
	statusPeriod  = time.Second
	commandWait   = 2 * time.Second
	shutdownGrace = 2 * time.Second
)

// Controller is the part of the bot the dashboard drives.
type Controller interface {
	Snapshot() bot.Snapshot
	TogglePause(ctx context.Context) (bool, error)
	Stop(ctx context.Context) error
}

// Camera supplies encoded JPEG frames for /ws/camera.
type Camera interface {
	CaptureFrame() ([]byte, error)
}

// Config configures the dashboard.
type Config struct {
	Bind      string
	CameraFPS int
}

// Status is the payload of /api/status and /ws/status.
type Status struct {
	Bot      bot.Snapshot `json:"bot"`
	Pipeline any          `json:"pipeline,omitempty"`
	Uptime   string       `json:"uptime"`
	Clients  int          `json:"clients"`
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	cfg    Config
	ctrl   Controller
	camera Camera
	logger *slog.Logger

	started time.Time

	events   []bot.Event
	eventsMu sync.RWMutex
	nudge    chan struct{}

	statusHub *hub.Hub
	eventHub  *hub.Hub
	cameraHub *hub.Hub

	// PipelineStats, when set, adds worker counters to the status payload.
	PipelineStats func() any
}

// NewServer creates the dashboard. camera may be nil.
func NewServer(cfg Config, ctrl Controller, camera Camera, logger *slog.Logger) *Server {
	if cfg.CameraFPS <= 0 {
		cfg.CameraFPS = 10
	}
	logger = log.Component(logger, "web")
	s := &Server{
		cfg:       cfg,
		ctrl:      ctrl,
		camera:    camera,
		logger:    logger,
		started:   time.Now(),
		events:    make([]bot.Event, 0, maxEvents),
		nudge:     make(chan struct{}, 1),
		statusHub: hub.New("status", logger),
		eventHub:  hub.New("events", logger),
		cameraHub: hub.New("camera", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Angler Dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/", func(c *fiber.Ctx) error {
		c.Type("html")
		return c.Send(indexHTML)
	})

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/events", s.handleEvents)
	api.Post("/pause", s.handlePause)
	api.Post("/stop", s.handleStop)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/events", websocket.New(s.handleEventsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// App exposes the fiber app so other packages can mount routes.
func (s *Server) App() *fiber.App { return s.app }

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Bind)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Bind, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the dashboard on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("dashboard listening", "url", "http://"+ln.Addr().String())

	go s.statusHub.Run(ctx)
	go s.eventHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	go s.statusLoop(ctx)
	go s.cameraLoop(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()

	select {
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(shutdownGrace); err != nil {
			s.logger.Warn("dashboard shutdown", "error", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// OnEvent implements bot.Observer.
func (s *Server) OnEvent(e bot.Event) {
	s.eventsMu.Lock()
	s.events = append(s.events, e)
	if len(s.events) > maxEvents {
		s.events = s.events[1:]
	}
	s.eventsMu.Unlock()

	if err := s.eventHub.BroadcastMessage(protocol.TypeEvent, e); err != nil {
		s.logger.Debug("encode event", "error", err)
	}
	if e.Kind != bot.EventPoint {
		select {
		case s.nudge <- struct{}{}:
		default:
		}
	}
}

// Events returns up to limit of the most recent events, oldest first.
func (s *Server) Events(limit int) []bot.Event {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	from := 0
	if limit > 0 && len(s.events) > limit {
		from = len(s.events) - limit
	}
	return append([]bot.Event(nil), s.events[from:]...)
}

// Status builds the current status payload.
func (s *Server) Status() Status {
	st := Status{
		Bot:     s.ctrl.Snapshot(),
		Uptime:  time.Since(s.started).Truncate(time.Second).String(),
		Clients: s.statusHub.ClientCount() + s.eventHub.ClientCount() + s.cameraHub.ClientCount(),
	}
	if s.PipelineStats != nil {
		st.Pipeline = s.PipelineStats()
	}
	return st
}

func (s *Server) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.nudge:
		}
		if s.statusHub.ClientCount() == 0 {
			continue
		}
		if err := s.statusHub.BroadcastMessage(protocol.TypeStatus, s.Status()); err != nil {
			s.logger.Debug("encode status", "error", err)
		}
	}
}

func (s *Server) cameraLoop(ctx context.Context) {
	if s.camera == nil {
		return
	}
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.CameraFPS))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if s.cameraHub.ClientCount() == 0 {
			continue
		}
		jpeg, err := s.camera.CaptureFrame()
		if err != nil {
			continue
		}
		s.cameraHub.BroadcastBinary(jpeg)
	}
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, bot.ErrNotRunning):
		return fiber.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
