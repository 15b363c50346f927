package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

type MessageType string

const (
	// server -> client
	TypeMessage         MessageType = "message"
	TypeReactionUpdated MessageType = "reaction_updated"
	TypeError           MessageType = "error"

	// client -> server
	TypeSendMessage MessageType = "send_message"
	TypeAddReaction MessageType = "add_reaction"
)

var ErrInvalidPayload = errors.New("invalid payload")

// Envelope wraps every frame exchanged over the socket.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(msgType MessageType, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", msgType, err)
	}
	return Envelope{Type: msgType, Data: raw}, nil
}

// ParseEnvelope decodes a single envelope. Anything that is not a JSON object
// with a type is reported as ErrInvalidPayload.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrInvalidPayload)
	}
	return env, nil
}

// Decode unmarshals the envelope data into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrInvalidPayload, e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, e.Type, err)
	}
	return nil
}
