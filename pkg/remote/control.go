// Package remote accepts pause and stop commands over a websocket so the
// angler can be driven from another machine or script.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-angler/internal/log"
	"github.com/teslashibe/go-angler/pkg/protocol"
)

const commandWait = 2 * time.Second

// ErrUnknownCommand is returned for commands other than pause and stop.
var ErrUnknownCommand = errors.New("unknown command")

// Controller is what remote commands act on.
type Controller interface {
	TogglePause(ctx context.Context) (bool, error)
	Stop(ctx context.Context) error
}

// Connection is a connected remote client
type Connection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send writes a message to the client
func (r *Connection) Send(msg *protocol.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return r.Conn.WriteMessage(websocket.TextMessage, data)
}

// Control serves /ws/control.
type Control struct {
	ctrl   Controller
	logger *slog.Logger

	mu    sync.RWMutex
	conns map[string]*Connection

	commands atomic.Uint64
	rejected atomic.Uint64
}

// NewControl creates a control endpoint for ctrl.
func NewControl(ctrl Controller, logger *slog.Logger) *Control {
	return &Control{
		ctrl:   ctrl,
		logger: log.Component(logger, "remote"),
		conns:  make(map[string]*Connection),
	}
}

// RegisterRoutes registers the control websocket on a Fiber app
func (h *Control) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/control", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/control", websocket.New(h.handleControl))
}

func (h *Control) handleControl(c *websocket.Conn) {
	conn := &Connection{
		ID:        uuid.NewString(),
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	h.mu.Lock()
	h.conns[conn.ID] = conn
	count := len(h.conns)
	h.mu.Unlock()
	h.logger.Info("remote connected", "id", conn.ID, "addr", c.RemoteAddr().String(), "total", count)

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn.ID)
		count := len(h.conns)
		h.mu.Unlock()
		h.logger.Info("remote disconnected", "id", conn.ID, "total", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		conn.mu.Lock()
		conn.LastSeen = time.Now()
		conn.mu.Unlock()

		reply := h.handleMessage(data)
		if reply == nil {
			continue
		}
		if err := conn.Send(reply); err != nil {
			h.logger.Debug("remote write failed", "id", conn.ID, "error", err)
			return
		}
	}
}

// handleMessage processes one inbound message and returns the reply.
func (h *Control) handleMessage(data []byte) *protocol.Message {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.rejected.Add(1)
		reply, _ := protocol.NewAckMessage("", false, err)
		return reply
	}

	switch msg.Type {
	case protocol.TypeCommand:
		cmd, err := msg.GetCommandData()
		if err != nil {
			h.rejected.Add(1)
			reply, _ := protocol.NewAckMessage("", false, err)
			return reply
		}
		paused, err := h.Execute(cmd.Command)
		reply, _ := protocol.NewAckMessage(cmd.Command, paused, err)
		return reply

	case protocol.TypePing:
		reply, _ := protocol.NewPongMessage("", msg.Timestamp, time.Now().UnixMilli())
		return reply

	default:
		h.rejected.Add(1)
		reply, _ := protocol.NewAckMessage("", false, fmt.Errorf("unexpected message type %q", msg.Type))
		return reply
	}
}

// Execute runs a named command against the controller.
func (h *Control) Execute(command string) (paused bool, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandWait)
	defer cancel()

	switch command {
	case protocol.CommandPause:
		paused, err = h.ctrl.TogglePause(ctx)
	case protocol.CommandStop:
		err = h.ctrl.Stop(ctx)
	default:
		h.rejected.Add(1)
		return false, fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	if err != nil {
		h.logger.Warn("remote command failed", "command", command, "error", err)
		return paused, err
	}
	h.commands.Add(1)
	h.logger.Info("remote command", "command", command, "paused", paused)
	return paused, nil
}

// Count returns the number of connected clients
func (h *Control) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Stats contains control endpoint statistics
type Stats struct {
	Connections int    `json:"connections"`
	Commands    uint64 `json:"commands"`
	Rejected    uint64 `json:"rejected"`
}

// Stats returns control endpoint statistics
func (h *Control) Stats() Stats {
	return Stats{
		Connections: h.Count(),
		Commands:    h.commands.Load(),
		Rejected:    h.rejected.Load(),
	}
}
