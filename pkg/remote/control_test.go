package remote

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-angler/internal/log"
	"github.com/teslashibe/go-angler/pkg/protocol"
)

type fakeController struct {
	mu      sync.Mutex
	paused  bool
	stopped bool
}

func (f *fakeController) TogglePause(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return false, errors.New("controller is not running")
	}
	f.paused = !f.paused
	return f.paused, nil
}

func (f *fakeController) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func startControl(t *testing.T, h *Control) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	h.RegisterRoutes(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go app.Listener(ln)
	t.Cleanup(func() { _ = app.Shutdown() })
	time.Sleep(50 * time.Millisecond)
	return "ws://" + ln.Addr().String() + "/ws/control"
}

func send(t *testing.T, ws *websocket.Conn, raw string) *protocol.AckData {
	t.Helper()
	if err := ws.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Type != protocol.TypeAck {
		t.Fatalf("Type = %s, want ack", msg.Type)
	}
	ack, err := msg.GetAckData()
	if err != nil {
		t.Fatalf("GetAckData: %v", err)
	}
	return ack
}

func TestControl_PauseAndStop(t *testing.T) {
	ctrl := &fakeController{}
	h := NewControl(ctrl, log.Nop())
	url := startControl(t, h)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	ack := send(t, ws, `{"type":"command","data":{"command":"pause"}}`)
	if !ack.OK || !ack.Paused {
		t.Errorf("pause ack: %+v", ack)
	}
	ack = send(t, ws, `{"type":"command","data":{"command":"pause"}}`)
	if !ack.OK || ack.Paused {
		t.Errorf("resume ack: %+v", ack)
	}
	ack = send(t, ws, `{"type":"command","data":{"command":"stop"}}`)
	if !ack.OK || ack.Command != "stop" {
		t.Errorf("stop ack: %+v", ack)
	}
	ack = send(t, ws, `{"type":"command","data":{"command":"pause"}}`)
	if ack.OK || ack.Error == "" {
		t.Errorf("pause after stop should fail: %+v", ack)
	}

	if h.Count() != 1 {
		t.Errorf("Count = %d, want 1", h.Count())
	}
	if st := h.Stats(); st.Commands != 3 {
		t.Errorf("Commands = %d, want 3", st.Commands)
	}
}

func TestControl_RejectsGarbage(t *testing.T) {
	h := NewControl(&fakeController{}, log.Nop())
	url := startControl(t, h)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	if ack := send(t, ws, `not json`); ack.OK {
		t.Error("garbage should be rejected")
	}
	if ack := send(t, ws, `{"type":"command","data":{"command":"reel"}}`); ack.OK {
		t.Error("unknown command should be rejected")
	}
	if ack := send(t, ws, `{"type":"status"}`); ack.OK {
		t.Error("unexpected type should be rejected")
	}
	if h.Stats().Rejected != 3 {
		t.Errorf("Rejected = %d, want 3", h.Stats().Rejected)
	}
}

func TestControl_PingPong(t *testing.T) {
	h := NewControl(&fakeController{}, log.Nop())
	url := startControl(t, h)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	msg, _ := protocol.NewMessage(protocol.TypePing, nil)
	data, _ := msg.Bytes()
	ws.WriteMessage(websocket.TextMessage, data)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, respData, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	resp, err := protocol.ParseMessage(respData)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if resp.Type != protocol.TypePong {
		t.Errorf("Type = %s, want pong", resp.Type)
	}
}

func TestControl_DisconnectUnregisters(t *testing.T) {
	h := NewControl(&fakeController{}, log.Nop())
	url := startControl(t, h)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if h.Count() != 1 {
		t.Fatalf("Count = %d, want 1", h.Count())
	}
	ws.Close()
	time.Sleep(100 * time.Millisecond)
	if h.Count() != 0 {
		t.Errorf("Count = %d, want 0 after disconnect", h.Count())
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	h := NewControl(&fakeController{}, log.Nop())
	if _, err := h.Execute("reel"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("got %v, want ErrUnknownCommand", err)
	}
}
