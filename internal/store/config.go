// File: internal/store/config.go
package store

import (
	"errors"
	"time"
)

type Config struct {
	// RetentionLimit caps the number of messages kept per channel. Oldest
	// confirmed messages are evicted first; older pages reload on demand.
	RetentionLimit int

	// MatchWindow bounds best-effort matching of a push echo to a pending
	// optimistic entry when no correlation token is available.
	MatchWindow time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		RetentionLimit: 500,
		MatchWindow:    30 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.RetentionLimit <= 0 {
		return errors.New("retention limit must be positive")
	}

	if c.MatchWindow < 0 {
		return errors.New("match window cannot be negative")
	}

	return nil
}
