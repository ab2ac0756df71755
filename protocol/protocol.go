package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidEnvelope = errors.New("invalid envelope format")
)

// Event names
const (
	// client -> server
	EventUserLogin   = "user_login"
	EventSendMessage = "send_message"
	EventTyping      = "typing"

	// server -> client
	EventUserStatus         = "user_status"
	EventReceiveMessage     = "receive_message"
	EventTypingIndicator    = "typing_indicator"
	EventConnectionRequest  = "connection_request"
	EventConnectionResponse = "connection_response"
)

// Envelope is one websocket text frame: {"event": "...", "data": ...}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Typing struct {
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId,omitempty"`
	IsTyping    bool   `json:"isTyping"`
}

type ConnectionResponse struct {
	Accepted bool `json:"accepted"`
}

func Encode(event string, data any) ([]byte, error) {
	if event == "" {
		return nil, ErrInvalidEnvelope
	}
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

func Decode(frame []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.Event == "" {
		return nil, ErrInvalidEnvelope
	}
	return &env, nil
}

// Bind decodes the envelope payload into v.
func (e *Envelope) Bind(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrInvalidEnvelope, e.Event)
	}
	return json.Unmarshal(e.Data, v)
}
