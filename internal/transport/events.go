// File: internal/transport/events.go
package transport

import (
	"encoding/json"

	"github.com/mostakin5290/discord-client/internal/domain"
)

// EventType names the server -> client push events plus connection lifecycle
// notifications synthesized by the session itself.
type EventType string

const (
	EventMessage      EventType = "receive_message"
	EventTyping       EventType = "user_typing"
	EventDisconnected EventType = "disconnect"
	EventReconnected  EventType = "reconnect"
	EventConnectError EventType = "connect_error"
)

// Client -> server event names.
const (
	eventJoinChannel    = "join_channel"
	eventLeaveChannel   = "leave_channel"
	eventTyping         = "typing"
	eventUpdateLastSeen = "update_last_seen"
)

// frame is the wire envelope for both directions: an event name plus a
// JSON payload decoded per event.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TypingPayload is the payload of a user_typing push event.
type TypingPayload struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	IsTyping  bool   `json:"is_typing"`
}

type channelSignal struct {
	ChannelID string `json:"channel_id"`
}

type typingSignal struct {
	ChannelID string `json:"channel_id"`
	IsTyping  bool   `json:"is_typing"`
}

type lastSeenSignal struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// Event is the tagged variant delivered to consumers. Exactly one of the
// payload fields is set, according to Type.
type Event struct {
	Type    EventType
	Message *domain.Message
	Typing  *TypingPayload
	Err     error
}

// decodeFrame validates an inbound frame at the transport boundary and maps it
// to a typed Event. Unknown event names and malformed payloads are rejected
// here so loosely-typed payloads never reach the stores.
func decodeFrame(raw []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Event{}, NewProtocolError("decode", "malformed frame", err)
	}

	switch EventType(f.Event) {
	case EventMessage:
		var msg domain.Message
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			return Event{}, NewProtocolError("decode", "malformed receive_message payload", err)
		}
		if msg.ID == "" || msg.ChannelID == "" {
			return Event{}, NewProtocolError("decode", "receive_message missing id or channel_id", nil)
		}
		return Event{Type: EventMessage, Message: &msg}, nil

	case EventTyping:
		var t TypingPayload
		if err := json.Unmarshal(f.Data, &t); err != nil {
			return Event{}, NewProtocolError("decode", "malformed user_typing payload", err)
		}
		if t.ChannelID == "" || t.UserID == "" {
			return Event{}, NewProtocolError("decode", "user_typing missing channel_id or user_id", nil)
		}
		return Event{Type: EventTyping, Typing: &t}, nil

	default:
		return Event{}, NewProtocolError("decode", "unknown event: "+f.Event, nil)
	}
}
