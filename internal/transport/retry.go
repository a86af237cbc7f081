// File: internal/transport/retry.go
package transport

import (
	"context"
	"time"

	"github.com/mostakin5290/discord-client/internal/services"
)

type reconnector struct {
	config *Config
	logger services.Logger
}

func newReconnector(config *Config, logger services.Logger) *reconnector {
	return &reconnector{
		config: config,
		logger: logger,
	}
}

// Run calls attempt up to MaxReconnectAttempts times, doubling the delay
// between attempts up to ReconnectMaxDelay.
func (r *reconnector) Run(ctx context.Context, attempt func(ctx context.Context) error) error {
	var lastErr error
	delay := r.config.ReconnectDelay

	for n := 1; n <= r.config.MaxReconnectAttempts; n++ {
		if n > 1 {
			r.logger.Debug("waiting before reconnect attempt", "attempt", n, "delay", delay.String())
			select {
			case <-ctx.Done():
				return NewReconnectError("reconnect cancelled", ctx.Err())
			case <-time.After(delay):
				// Continue with retry
			}
			delay *= 2
			if delay > r.config.ReconnectMaxDelay {
				delay = r.config.ReconnectMaxDelay
			}
		}

		err := attempt(ctx)
		if err == nil {
			if n > 1 {
				r.logger.Info("reconnected after retry", "attempts", n)
			}
			return nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return NewReconnectError("reconnect cancelled", ctx.Err())
		}

		if n < r.config.MaxReconnectAttempts {
			r.logger.Warn("reconnect attempt failed, retrying", "attempt", n, "error", err)
		}
	}

	r.logger.Error("reconnect failed after all attempts", "attempts", r.config.MaxReconnectAttempts, "error", lastErr)
	return NewReconnectError("reconnect failed after all attempts", lastErr)
}
