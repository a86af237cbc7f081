// File: internal/transport/websocket.go
package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type wsDialer struct {
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
}

// NewWebsocketDialer returns the production Dialer backed by gorilla/websocket.
func NewWebsocketDialer(cfg *Config) Dialer {
	return &wsDialer{
		handshakeTimeout: cfg.DialTimeout,
		writeTimeout:     cfg.WriteTimeout,
	}
}

func (d *wsDialer) DialContext(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn, writeTimeout: d.writeTimeout}, nil
}

// wsConn adapts *websocket.Conn to the Conn interface. Writes are serialized;
// gorilla connections allow only one concurrent writer.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
