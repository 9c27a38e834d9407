package web

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-angler/pkg/hub"
	"github.com/teslashibe/go-angler/pkg/protocol"
)

// handleStatus returns the controller snapshot and pipeline counters
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleEvents returns recent controller events; ?limit=N trims the list
func (s *Server) handleEvents(c *fiber.Ctx) error {
	return c.JSON(s.Events(c.QueryInt("limit", 100)))
}

// handlePause toggles pause and reports the new state
func (s *Server) handlePause(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), commandWait)
	defer cancel()

	paused, err := s.ctrl.TogglePause(ctx)
	if err != nil {
		return c.Status(commandStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	s.logger.Info("pause toggled from dashboard", "paused", paused)
	return c.JSON(fiber.Map{"paused": paused})
}

// handleStop asks the controller to stop
func (s *Server) handleStop(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), commandWait)
	defer cancel()

	if err := s.ctrl.Stop(ctx); err != nil {
		return c.Status(commandStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	s.logger.Info("stop requested from dashboard")
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "stopping"})
}

func (s *Server) handleStatusWS(c *websocket.Conn) {
	var greeting []hub.Message
	if msg, err := envelope(protocol.TypeStatus, s.Status()); err == nil {
		greeting = append(greeting, msg)
	}
	serve(s.statusHub, c, greeting...)
}

func (s *Server) handleEventsWS(c *websocket.Conn) {
	var greeting []hub.Message
	for _, e := range s.Events(50) {
		if msg, err := envelope(protocol.TypeEvent, e); err == nil {
			greeting = append(greeting, msg)
		}
	}
	serve(s.eventHub, c, greeting...)
}

func (s *Server) handleCameraWS(c *websocket.Conn) {
	serve(s.cameraHub, c)
}

func serve(h *hub.Hub, c *websocket.Conn, greeting ...hub.Message) {
	client := hub.NewClient(h, c, greeting...)
	if client == nil {
		return
	}
	client.Run()
}

func envelope(t protocol.MessageType, data any) (hub.Message, error) {
	msg, err := protocol.NewMessage(t, data)
	if err != nil {
		return hub.Message{}, err
	}
	b, err := msg.Bytes()
	if err != nil {
		return hub.Message{}, err
	}
	return hub.NewJSONMessage(b), nil
}
