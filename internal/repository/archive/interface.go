// File: internal/repository/archive/interface.go
package archive

import (
	"context"

	"github.com/mostakin5290/discord-client/internal/domain"
)

// Archive persists confirmed messages locally so a reopened client can render
// recent history before the first network round-trip completes. It is a
// bounded cache, not a source of truth: the backend wins on any conflict.
type Archive interface {
	SaveMessages(ctx context.Context, msgs []domain.Message) error
	RecentMessages(ctx context.Context, channelID string, limit int) ([]domain.Message, error)
	MarkDeleted(ctx context.Context, messageID string) error
	Prune(ctx context.Context, channelID string, keep int) error
}
