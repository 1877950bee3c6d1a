// Package chat defines the chat event exchanged inside a room and the JSON
// wire codec used on every WebSocket connection.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind discriminates the variants of Event.
type Kind string

// KindMessage is a plain chat message. It is the only variant today.
const KindMessage Kind = "chat.message"

// Event is the unit of broadcast inside a room.
type Event struct {
	Kind    Kind
	Message string
}

// NewMessage returns a chat message event carrying text.
func NewMessage(text string) Event {
	return Event{Kind: KindMessage, Message: text}
}

// ErrUnknownKind is returned by Encode for events with an unsupported kind.
var ErrUnknownKind = errors.New("chat: unknown event kind")

// errMissingMessage is the cause of a DecodeError for payloads without a message field.
var errMissingMessage = errors.New(`missing "message" field`)

// DecodeError reports a malformed inbound payload.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("chat: invalid payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// wireMessage is the JSON shape on the wire in both directions.
type wireMessage struct {
	Message *string `json:"message"`
}

// Decode parses a {"message": "..."} payload into a chat message event.
func Decode(raw []byte) (Event, error) {
	var wm wireMessage
	if err := json.Unmarshal(raw, &wm); err != nil {
		return Event{}, &DecodeError{Err: err}
	}
	if wm.Message == nil {
		return Event{}, &DecodeError{Err: errMissingMessage}
	}
	return NewMessage(*wm.Message), nil
}

// Encode serializes e into the same wire shape Decode accepts.
func Encode(e Event) ([]byte, error) {
	switch e.Kind {
	case KindMessage:
		text := e.Message
		return json.Marshal(wireMessage{Message: &text})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
}
