// File: internal/transport/interface.go
package transport

import (
	"context"
	"net/http"
)

// Status is the connection state of a session.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Conn is a single live connection to the real-time backend.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer establishes connections. Faked in tests.
type Dialer interface {
	DialContext(ctx context.Context, url string, header http.Header) (Conn, error)
}

// Session maintains exactly one live connection per authenticated session and
// exposes the channel membership and signalling primitives consumers need.
//
// Join/leave/typing/last-seen are fire-and-forget: no acknowledgement is
// awaited. The session itself replays join_channel for every joined channel
// after a reconnect, since the backend forgets membership across a drop.
type Session interface {
	Connect(ctx context.Context) error
	Disconnect() error
	JoinChannel(channelID string) error
	LeaveChannel(channelID string) error
	SendTyping(channelID string, isTyping bool) error
	UpdateLastSeen(channelID, messageID string) error
	Status() Status
	Events() <-chan Event
}
