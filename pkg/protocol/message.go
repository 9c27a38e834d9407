// Package protocol defines the websocket messages exchanged between the
// angler dashboard, remote controllers and the `angler watch` client.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of websocket message
type MessageType string

const (
	// Angler → client
	TypeStatus MessageType = "status" // Controller snapshot
	TypeEvent  MessageType = "event"  // Controller event
	TypeAck    MessageType = "ack"    // Command result

	// Client → angler
	TypeCommand MessageType = "command"

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the base wrapper for all websocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// Command names accepted by the control endpoint.
const (
	CommandPause = "pause" // toggles pause
	CommandStop  = "stop"
)

// CommandData asks the angler to do something.
type CommandData struct {
	Command string `json:"command"`
}

// AckData answers a command.
type AckData struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Paused  bool   `json:"paused,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PingData is sent by either side as a health check
type PingData struct {
	ID string `json:"id,omitempty"`
}

// PongData answers a ping
type PongData struct {
	ID        string `json:"id,omitempty"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
