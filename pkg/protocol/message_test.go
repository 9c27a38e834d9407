package protocol

import (
	"errors"
	"testing"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    any
	}{
		{name: "command message", msgType: TypeCommand, data: CommandData{Command: CommandPause}},
		{name: "ack message", msgType: TypeAck, data: AckData{Command: CommandStop, OK: true}},
		{name: "nil data", msgType: TypePing, data: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if err != nil {
				t.Fatalf("NewMessage() error = %v", err)
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestNewMessage_Unmarshalable(t *testing.T) {
	if _, err := NewMessage(TypeEvent, make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"command","data":{"command":"stop"}}`))
	if err != nil {
		t.Fatalf("ParseMessage error: %v", err)
	}
	cmd, err := msg.GetCommandData()
	if err != nil {
		t.Fatalf("GetCommandData error: %v", err)
	}
	if cmd.Command != CommandStop {
		t.Errorf("Command = %q, want stop", cmd.Command)
	}

	if _, err := ParseMessage([]byte(`{"data":{}}`)); err == nil {
		t.Error("missing type should fail")
	}
	if _, err := ParseMessage([]byte(`not json`)); err == nil {
		t.Error("invalid JSON should fail")
	}
}

func TestNewAckMessage(t *testing.T) {
	msg, err := NewAckMessage(CommandPause, true, nil)
	if err != nil {
		t.Fatalf("NewAckMessage error: %v", err)
	}
	ack, err := msg.GetAckData()
	if err != nil {
		t.Fatalf("GetAckData error: %v", err)
	}
	if !ack.OK || !ack.Paused || ack.Error != "" {
		t.Errorf("unexpected ack: %+v", ack)
	}

	msg, _ = NewAckMessage(CommandStop, false, errors.New("not running"))
	ack, _ = msg.GetAckData()
	if ack.OK || ack.Error != "not running" {
		t.Errorf("unexpected failed ack: %+v", ack)
	}
}

func TestNewPongMessage(t *testing.T) {
	msg, err := NewPongMessage("abc", 1000, 1025)
	if err != nil {
		t.Fatalf("NewPongMessage error: %v", err)
	}
	var pong PongData
	if err := msg.ParseData(&pong); err != nil {
		t.Fatalf("ParseData error: %v", err)
	}
	if pong.LatencyMs != 25 || pong.ID != "abc" {
		t.Errorf("unexpected pong: %+v", pong)
	}
}
