// File: internal/domain/channel.go
package domain

import "time"

// Channel represents a single conversation scope (server channel or DM).
type Channel struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ServerID  string    `json:"server_id,omitempty"` // empty for direct messages
	IsDirect  bool      `json:"is_direct"`
	CreatedAt time.Time `json:"created_at"`
}
