// File: internal/rest/config.go
package rest

import (
	"errors"
	"strings"
	"time"
)

type Config struct {
	// Connection settings
	BaseURL string // e.g. http://localhost:8090
	Token   string // bearer credential; settable after login

	// Operation settings
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base URL is required")
	}

	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}

	return nil
}

func (c *Config) baseURL() string {
	return strings.TrimRight(c.BaseURL, "/")
}
