// File: internal/typing/config.go
package typing

import (
	"errors"
	"time"
)

type Config struct {
	// ExpireAfter bounds how long a user stays in the typing set after their
	// last start signal. A lost stop signal (network drop, client crash)
	// would otherwise leave the indicator stuck forever. Zero disables the
	// timers (tests drive expiry manually).
	ExpireAfter time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		ExpireAfter: 8 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.ExpireAfter < 0 {
		return errors.New("expire duration cannot be negative")
	}
	return nil
}
