// File: internal/repository/archive/models.go
package archive

import (
	"encoding/json"
	"time"

	"github.com/mostakin5290/discord-client/internal/domain"
)

// archivedMessage is the sqlite row shape. Reactions are stored as a JSON
// blob; the archive never queries inside them.
type archivedMessage struct {
	ID              string `gorm:"primaryKey"`
	ChannelID       string `gorm:"index:idx_channel_created,priority:1;not null"`
	AuthorID        string `gorm:"not null"`
	AuthorName      string
	AuthorAvatarURL string
	Content         string
	FileURL         string
	ReplyToID       string
	CreatedAt       time.Time `gorm:"index:idx_channel_created,priority:2"`
	Edited          bool
	Deleted         bool
	ReactionsJSON   string
}

func (archivedMessage) TableName() string {
	return "messages"
}

func toRecord(msg domain.Message) archivedMessage {
	rec := archivedMessage{
		ID:              msg.ID,
		ChannelID:       msg.ChannelID,
		AuthorID:        msg.AuthorID,
		AuthorName:      msg.AuthorName,
		AuthorAvatarURL: msg.AuthorAvatarURL,
		Content:         msg.Content,
		FileURL:         msg.FileURL,
		ReplyToID:       msg.ReplyToID,
		CreatedAt:       msg.CreatedAt,
		Edited:          msg.Edited,
		Deleted:         msg.Deleted,
	}
	if len(msg.Reactions) > 0 {
		if data, err := json.Marshal(msg.Reactions); err == nil {
			rec.ReactionsJSON = string(data)
		}
	}
	return rec
}

func (r archivedMessage) toDomain() domain.Message {
	msg := domain.Message{
		ID:              r.ID,
		ChannelID:       r.ChannelID,
		AuthorID:        r.AuthorID,
		AuthorName:      r.AuthorName,
		AuthorAvatarURL: r.AuthorAvatarURL,
		Content:         r.Content,
		FileURL:         r.FileURL,
		ReplyToID:       r.ReplyToID,
		CreatedAt:       r.CreatedAt,
		Edited:          r.Edited,
		Deleted:         r.Deleted,
	}
	if r.ReactionsJSON != "" {
		var reactions map[string][]string
		if err := json.Unmarshal([]byte(r.ReactionsJSON), &reactions); err == nil {
			msg.Reactions = reactions
		}
	}
	return msg
}
