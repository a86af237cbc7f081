// File: internal/repository/archive/gorm_archive.go

package archive

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mostakin5290/discord-client/internal/domain"
)

var ErrInvalidLimit = errors.New("invalid limit: must be positive")

const saveBatchSize = 100

type gormArchive struct {
	db *gorm.DB
}

// NewArchive wraps a gorm connection. The caller migrates archivedMessage
// (see cmd/client) before first use.
func NewArchive(db *gorm.DB) Archive {
	return &gormArchive{db: db}
}

// Migrate creates or updates the archive schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&archivedMessage{})
}

// SaveMessages upserts confirmed messages. Optimistic entries must not reach
// the archive; rows without a server ID are skipped.
func (a *gormArchive) SaveMessages(ctx context.Context, msgs []domain.Message) error {
	records := make([]archivedMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.ID == "" || msg.ChannelID == "" {
			continue
		}
		records = append(records, toRecord(msg))
	}
	if len(records) == 0 {
		return nil
	}

	err := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(records, saveBatchSize).Error
	if err != nil {
		log.Printf("[Archive] Database error saving %d messages: %v", len(records), err)
		return errors.New("database error saving messages")
	}
	return nil
}

// RecentMessages returns up to limit of the newest archived messages for a
// channel, ordered oldest-to-newest for direct insertion into the store.
func (a *gormArchive) RecentMessages(ctx context.Context, channelID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	var records []archivedMessage
	err := a.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("created_at desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		log.Printf("[Archive] Database error loading recent messages for channel %s: %v", channelID, err)
		return nil, errors.New("database error loading messages")
	}

	msgs := make([]domain.Message, len(records))
	for i, rec := range records {
		msgs[len(records)-1-i] = rec.toDomain()
	}
	return msgs, nil
}

// MarkDeleted clears the content of an archived message, mirroring a
// delete-for-everyone. Missing rows are fine: the message may never have
// been archived.
func (a *gormArchive) MarkDeleted(ctx context.Context, messageID string) error {
	err := a.db.WithContext(ctx).
		Model(&archivedMessage{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{"deleted": true, "content": "", "file_url": ""}).Error
	if err != nil {
		log.Printf("[Archive] Database error marking message %s deleted: %v", messageID, err)
		return errors.New("database error marking message deleted")
	}
	return nil
}

// Prune drops everything but the newest keep rows for a channel, keeping the
// archive bounded the same way the in-memory cache is.
func (a *gormArchive) Prune(ctx context.Context, channelID string, keep int) error {
	if keep < 0 {
		return ErrInvalidLimit
	}

	err := a.db.WithContext(ctx).Exec(
		`DELETE FROM messages WHERE channel_id = ? AND id NOT IN (
			SELECT id FROM messages WHERE channel_id = ? ORDER BY created_at DESC LIMIT ?
		)`, channelID, channelID, keep).Error
	if err != nil {
		log.Printf("[Archive] Database error pruning channel %s: %v", channelID, err)
		return errors.New("database error pruning messages")
	}
	return nil
}
