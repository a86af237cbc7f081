// File: internal/devserver/hub.go
package devserver

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mostakin5290/discord-client/internal/services"
)

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type typingBroadcast struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	IsTyping  bool   `json:"is_typing"`
}

// wsClient is one connected socket. The backend intentionally forgets channel
// membership when the socket drops; clients re-join on reconnect.
type wsClient struct {
	userID   string
	username string
	conn     *websocket.Conn
	send     chan []byte

	mu     sync.Mutex
	joined map[string]bool
}

// Hub fans push events out to connected clients by channel membership.
type Hub struct {
	logger services.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func NewHub(logger services.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Serve registers the connection and pumps it until it drops.
func (h *Hub) Serve(conn *websocket.Conn, userID, username string) {
	c := &wsClient{
		userID:   userID,
		username: username,
		conn:     conn,
		send:     make(chan []byte, 64),
		joined:   make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	h.readPump(c)
}

// Broadcast sends an event to every client joined to the channel. exceptUserID
// may be empty to include everyone.
func (h *Hub) Broadcast(channelID, event string, payload interface{}, exceptUserID string) {
	frame, ok := h.encodeFrame(event, payload)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.userID == exceptUserID {
			continue
		}
		h.deliver(c, channelID, frame)
	}
}

// SendToUser delivers an event to one user's connections joined to the
// channel. Used for payloads the other participants must not see, like the
// sender's correlation token.
func (h *Hub) SendToUser(userID, channelID, event string, payload interface{}) {
	frame, ok := h.encodeFrame(event, payload)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.userID != userID {
			continue
		}
		h.deliver(c, channelID, frame)
	}
}

func (h *Hub) encodeFrame(event string, payload interface{}) ([]byte, bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("could not marshal broadcast payload", "event", event, "error", err)
		return nil, false
	}
	frame, err := json.Marshal(wireFrame{Event: event, Data: data})
	if err != nil {
		return nil, false
	}
	return frame, true
}

// deliver queues a frame for one client when it is joined to the channel.
// Callers hold h.mu.
func (h *Hub) deliver(c *wsClient, channelID string, frame []byte) {
	c.mu.Lock()
	member := c.joined[channelID]
	c.mu.Unlock()
	if !member {
		return
	}
	select {
	case c.send <- frame:
	default:
		h.logger.Warn("dropping frame for slow client", "user_id", c.userID)
	}
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c.send)
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var f wireFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			h.logger.Warn("dropping malformed frame", "user_id", c.userID, "error", err)
			continue
		}

		switch f.Event {
		case "join_channel":
			var sig struct {
				ChannelID string `json:"channel_id"`
			}
			if json.Unmarshal(f.Data, &sig) == nil && sig.ChannelID != "" {
				c.mu.Lock()
				c.joined[sig.ChannelID] = true
				c.mu.Unlock()
			}

		case "leave_channel":
			var sig struct {
				ChannelID string `json:"channel_id"`
			}
			if json.Unmarshal(f.Data, &sig) == nil {
				c.mu.Lock()
				delete(c.joined, sig.ChannelID)
				c.mu.Unlock()
			}

		case "typing":
			var sig struct {
				ChannelID string `json:"channel_id"`
				IsTyping  bool   `json:"is_typing"`
			}
			if json.Unmarshal(f.Data, &sig) == nil && sig.ChannelID != "" {
				h.Broadcast(sig.ChannelID, "user_typing", typingBroadcast{
					ChannelID: sig.ChannelID,
					UserID:    c.userID,
					Username:  c.username,
					IsTyping:  sig.IsTyping,
				}, c.userID)
			}

		case "update_last_seen":
			// Accepted and ignored: the dev backend keeps no read state.

		default:
			h.logger.Debug("ignoring unknown client event", "event", f.Event)
		}
	}
}

func (c *wsClient) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
