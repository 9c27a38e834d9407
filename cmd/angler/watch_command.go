package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-angler/pkg/bot"
	"github.com/teslashibe/go-angler/pkg/protocol"
	"github.com/teslashibe/go-angler/pkg/web"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var events bool
	var points bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a running angler through its dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := "/ws/status"
			if events {
				path = "/ws/events"
			}
			conn, err := dial(dashboardURL(cfg.Dashboard.Bind, path))
			if err != nil {
				return err
			}
			defer conn.Close()

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			go func() {
				<-runCtx.Done()
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = conn.Close()
			}()

			err = follow(conn, cmd.OutOrStdout(), points)
			if runCtx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&events, "events", false, "Print controller events instead of status")
	cmd.Flags().BoolVar(&points, "points", false, "Include every tracked point when printing events")
	return cmd
}

func follow(conn *websocket.Conn, out io.Writer, points bool) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			continue
		}
		line, err := formatMessage(msg, points)
		if err != nil {
			return err
		}
		if line != "" {
			fmt.Fprintln(out, line)
		}
	}
}

func formatMessage(msg *protocol.Message, points bool) (string, error) {
	at := ""
	switch msg.Type {
	case protocol.TypeStatus:
		var st web.Status
		if err := msg.ParseData(&st); err != nil {
			return "", fmt.Errorf("decode status: %w", err)
		}
		return formatStatus(st), nil
	case protocol.TypeEvent:
		var e bot.Event
		if err := msg.ParseData(&e); err != nil {
			return "", fmt.Errorf("decode event: %w", err)
		}
		if e.Kind == bot.EventPoint && !points {
			return "", nil
		}
		if !e.At.IsZero() {
			at = e.At.Local().Format("2006-01-02 15:04:05") + " "
		}
		return at + formatEvent(e), nil
	default:
		return "", errors.New("unexpected message type " + string(msg.Type))
	}
}

func formatStatus(st web.Status) string {
	b := st.Bot
	line := fmt.Sprintf("%-12s casts=%d strikes=%d batches=%d tracker_failures=%d uptime=%s",
		b.State, b.Casts, b.Strikes, b.Batches, b.TrackerFailures, st.Uptime)
	if b.Paused {
		line += " [paused]"
	}
	if b.Stabilized {
		line += " [stabilized]"
	}
	return line
}

func formatEvent(e bot.Event) string {
	switch e.Kind {
	case bot.EventTransition:
		return fmt.Sprintf("%s -> %s", e.From, e.State)
	case bot.EventCast:
		return fmt.Sprintf("cast %d: throwing the bobber", e.Cast)
	case bot.EventStabilized:
		return fmt.Sprintf("cast %d: waiting for a fish at (%d,%d)", e.Cast, e.Point.X, e.Point.Y)
	case bot.EventStrike:
		return fmt.Sprintf("cast %d: a fish took the bait dx=%d dy=%d", e.Cast, e.DX, e.DY)
	case bot.EventCatch:
		return fmt.Sprintf("cast %d: catching the fish", e.Cast)
	case bot.EventPoint:
		return fmt.Sprintf("cast %d: bobber at (%d,%d)", e.Cast, e.Point.X, e.Point.Y)
	default:
		return fmt.Sprintf("%s (%s)", e.Kind, e.State)
	}
}
