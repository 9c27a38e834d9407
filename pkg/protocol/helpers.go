package protocol

// NewCommandMessage creates a command message
func NewCommandMessage(command string) (*Message, error) {
	return NewMessage(TypeCommand, CommandData{Command: command})
}

// NewAckMessage creates a command acknowledgement
func NewAckMessage(command string, paused bool, err error) (*Message, error) {
	ack := AckData{Command: command, OK: err == nil, Paused: paused}
	if err != nil {
		ack.Error = err.Error()
	}
	return NewMessage(TypeAck, ack)
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// GetCommandData extracts command data from a message
func (m *Message) GetCommandData() (*CommandData, error) {
	var data CommandData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetAckData extracts an acknowledgement from a message
func (m *Message) GetAckData() (*AckData, error) {
	var data AckData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
