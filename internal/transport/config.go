// File: internal/transport/config.go
package transport

import (
	"errors"
	"time"
)

type Config struct {
	// Connection settings
	URL   string // websocket endpoint, e.g. ws://localhost:8090/ws
	Token string // bearer credential sent with the handshake

	// Operation settings
	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// Reconnection settings
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	ReconnectMaxDelay    time.Duration

	// Delivery settings
	EventBuffer int
}

func DefaultConfig() *Config {
	return &Config{
		DialTimeout:          10 * time.Second,
		WriteTimeout:         10 * time.Second,
		MaxReconnectAttempts: 5,
		ReconnectDelay:       time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		EventBuffer:          256,
	}
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("socket URL is required")
	}

	if c.DialTimeout <= 0 {
		return errors.New("dial timeout must be positive")
	}

	if c.MaxReconnectAttempts < 0 {
		return errors.New("max reconnect attempts cannot be negative")
	}

	if c.EventBuffer <= 0 {
		return errors.New("event buffer must be positive")
	}

	return nil
}
