// File: internal/transport/session.go
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/mostakin5290/discord-client/internal/services"
)

// session is the single live connection owner. One instance exists per
// authenticated session; it is constructed explicitly and torn down on logout
// rather than living as a module-level singleton.
type session struct {
	cfg    *Config
	logger services.Logger
	dialer Dialer

	mu     sync.Mutex
	conn   Conn
	status Status
	joined map[string]struct{}
	closed bool
	gen    int // bumped on every (re)attach and teardown; stale read pumps check it
	events chan Event
}

// NewSession builds a session from config. A nil dialer selects the websocket
// dialer; tests inject their own.
func NewSession(cfg *Config, logger services.Logger, dialer Dialer) (Session, error) {
	if cfg == nil {
		return nil, NewConfigError("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigError(err.Error())
	}
	if logger == nil {
		logger = &services.NoOpLogger{}
	}
	if dialer == nil {
		dialer = NewWebsocketDialer(cfg)
	}

	return &session{
		cfg:    cfg,
		logger: logger,
		dialer: dialer,
		status: StatusDisconnected,
		joined: make(map[string]struct{}),
		events: make(chan Event, cfg.EventBuffer),
	}, nil
}

// Connect is idempotent: connecting an already-connected session is a no-op.
// A missing credential is a hard error, not a silent no-op.
func (s *session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.status != StatusDisconnected {
		s.mu.Unlock()
		return nil
	}
	if s.cfg.Token == "" {
		s.mu.Unlock()
		return ErrNoCredential
	}
	s.status = StatusConnecting
	s.mu.Unlock()

	conn, err := s.dial(ctx)
	if err != nil {
		s.mu.Lock()
		s.status = StatusDisconnected
		s.mu.Unlock()
		return NewConnectionError("connect", "could not establish connection", err)
	}

	if !s.attach(conn) {
		return ErrSessionClosed
	}
	s.logger.Info("connected to real-time backend", "url", s.cfg.URL)
	return nil
}

// Disconnect tears the session down and clears channel-membership bookkeeping.
// Idempotent. The session cannot be reused afterwards; login builds a new one.
func (s *session) Disconnect() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.status = StatusDisconnected
	s.joined = make(map[string]struct{})
	s.gen++
	conn := s.conn
	s.conn = nil
	close(s.events)
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Debug("error closing connection", "error", err)
		}
	}
	s.logger.Info("disconnected from real-time backend")
	return nil
}

func (s *session) JoinChannel(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.joined[channelID] = struct{}{}
	if s.status == StatusConnected {
		s.writeLocked(eventJoinChannel, channelSignal{ChannelID: channelID})
	}
	return nil
}

func (s *session) LeaveChannel(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	delete(s.joined, channelID)
	if s.status == StatusConnected {
		s.writeLocked(eventLeaveChannel, channelSignal{ChannelID: channelID})
	}
	return nil
}

// SendTyping is fire-and-forget. Callers debounce; the wrapper just signals.
func (s *session) SendTyping(channelID string, isTyping bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.status != StatusConnected {
		s.logger.Debug("dropping typing signal while disconnected", "channel_id", channelID)
		return nil
	}
	s.writeLocked(eventTyping, typingSignal{ChannelID: channelID, IsTyping: isTyping})
	return nil
}

func (s *session) UpdateLastSeen(channelID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.status != StatusConnected {
		return nil
	}
	s.writeLocked(eventUpdateLastSeen, lastSeenSignal{ChannelID: channelID, MessageID: messageID})
	return nil
}

func (s *session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *session) Events() <-chan Event {
	return s.events
}

func (s *session) dial(ctx context.Context) (Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.cfg.Token)
	return s.dialer.DialContext(dctx, s.cfg.URL, header)
}

// attach installs a fresh connection, replays join_channel for every joined
// channel while still holding the lock (so no other operation can interleave
// before membership is restored), and starts the read pump. If the session
// was torn down while the dial was in flight the connection is discarded and
// attach reports false.
func (s *session) attach(conn Conn) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return false
	}
	s.gen++
	gen := s.gen
	s.conn = conn
	s.status = StatusConnected
	for channelID := range s.joined {
		s.writeLocked(eventJoinChannel, channelSignal{ChannelID: channelID})
	}
	s.mu.Unlock()

	go s.readPump(conn, gen)
	return true
}

func (s *session) readPump(conn Conn, gen int) {
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			s.handleReadError(gen, err)
			return
		}

		ev, err := decodeFrame(raw)
		if err != nil {
			s.logger.Warn("dropping invalid frame", "error", err)
			continue
		}
		s.emit(ev)
	}
}

// handleReadError starts the bounded reconnection loop unless the drop was a
// deliberate teardown or belongs to a superseded connection.
func (s *session) handleReadError(gen int, cause error) {
	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.status = StatusConnecting
	s.mu.Unlock()

	s.logger.Warn("connection lost", "error", cause)
	s.emit(Event{Type: EventDisconnected, Err: cause})

	rec := newReconnector(s.cfg, s.logger)
	err := rec.Run(context.Background(), func(ctx context.Context) error {
		conn, dialErr := s.dial(ctx)
		if dialErr != nil {
			return dialErr
		}
		// When Disconnect landed while dialing, attach discards the fresh
		// connection; emit then suppresses the reconnected event below.
		s.attach(conn)
		return nil
	})
	if err != nil {
		s.mu.Lock()
		s.status = StatusDisconnected
		s.mu.Unlock()
		s.emit(Event{Type: EventConnectError, Err: err})
		return
	}

	s.emit(Event{Type: EventReconnected})
}

// writeLocked marshals and sends a frame on the current connection. Callers
// hold s.mu. Write failures are logged, not returned: the read pump observes
// the dead connection and drives recovery.
func (s *session) writeLocked(event string, payload interface{}) {
	if s.conn == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("could not marshal outgoing payload", "event", event, "error", err)
		return
	}
	if err := s.conn.WriteJSON(frame{Event: event, Data: data}); err != nil {
		s.logger.Warn("could not write frame", "event", event, "error", err)
	}
}

// emit delivers an event without blocking. The buffer is generous; overflow
// means the consumer stopped draining, and dropping beats deadlocking the
// read pump.
func (s *session) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("event buffer full, dropping event", "type", string(ev.Type))
	}
}
