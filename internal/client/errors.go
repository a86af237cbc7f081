// File: internal/client/errors.go
package client

import "errors"

var (
	// ErrSessionExpired means the stored credential is no longer valid; the
	// caller must clear it and send the user back through login.
	ErrSessionExpired = errors.New("session credential expired")

	// ErrStaleChannel means the user navigated away before a channel
	// operation completed; its result was discarded.
	ErrStaleChannel = errors.New("channel view changed before operation completed")
)
