package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-angler/pkg/protocol"
)

func newCtlCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "ctl pause|stop",
		Short:     "Pause, resume or stop a running angler",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{protocol.CommandPause, protocol.CommandStop},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			conn, err := dial(dashboardURL(cfg.Dashboard.Bind, "/ws/control"))
			if err != nil {
				return err
			}
			defer conn.Close()

			ack, err := sendCommand(conn, args[0])
			if err != nil {
				return err
			}
			if !ack.OK {
				return fmt.Errorf("%s: %s", ack.Command, ack.Error)
			}

			out := cmd.OutOrStdout()
			switch ack.Command {
			case protocol.CommandPause:
				if ack.Paused {
					fmt.Fprintln(out, "paused")
				} else {
					fmt.Fprintln(out, "resumed")
				}
			default:
				fmt.Fprintln(out, "stopping")
			}
			return nil
		},
	}
}

func sendCommand(conn *websocket.Conn, command string) (*protocol.AckData, error) {
	msg, err := protocol.NewCommandMessage(command)
	if err != nil {
		return nil, err
	}
	data, err := msg.Bytes()
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(dialTimeout))
	_, reply, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	resp, err := protocol.ParseMessage(reply)
	if err != nil {
		return nil, err
	}
	if resp.Type != protocol.TypeAck {
		return nil, errors.New("unexpected reply " + string(resp.Type))
	}
	return resp.GetAckData()
}
