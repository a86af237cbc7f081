// File: internal/domain/message.go
package domain

import (
	"errors"
	"time"
)

// MaxContentLength is the upper bound for message text, matching the backend limit.
const MaxContentLength = 2000

// MessageStatus tracks the delivery state of a locally known message.
type MessageStatus string

const (
	// StatusPending marks an optimistic entry that has not been confirmed yet.
	StatusPending MessageStatus = "pending"
	// StatusSent marks a message the backend has assigned an identifier to.
	StatusSent MessageStatus = "sent"
	// StatusFailed marks an optimistic entry whose send was rejected. It stays
	// visible so the user can retry or discard it.
	StatusFailed MessageStatus = "failed"
)

// DeleteScope selects between the two deletion modes the backend supports.
type DeleteScope string

const (
	DeleteForMe       DeleteScope = "forMe"
	DeleteForEveryone DeleteScope = "forEveryone"
)

// Message represents a single chat entry inside a channel.
//
// ID is the server-assigned identifier once the message is confirmed. Before
// confirmation an optimistic entry carries its correlation token as a
// provisional identifier.
type Message struct {
	ID              string              `json:"id"`
	ChannelID       string              `json:"channel_id"`
	AuthorID        string              `json:"author_id"`
	AuthorName      string              `json:"author_name"`
	AuthorAvatarURL string              `json:"author_avatar_url,omitempty"`
	Content         string              `json:"content"`
	FileURL         string              `json:"file_url,omitempty"`
	ReplyToID       string              `json:"reply_to_id,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	Edited          bool                `json:"edited"`
	Deleted         bool                `json:"deleted"`
	Reactions       map[string][]string `json:"reactions,omitempty"` // emoji -> user IDs

	// CorrelationToken is generated client-side for optimistic sends and echoed
	// back by the backend so the push echo can be matched to the local entry.
	CorrelationToken string `json:"correlation_token,omitempty"`
}

var (
	ErrEmptyMessage   = errors.New("message has no content or attachment")
	ErrContentTooLong = errors.New("message content exceeds maximum length")
)

// Validate checks the user-supplied parts of a message before any network call.
func (m *Message) Validate() error {
	if m.Content == "" && m.FileURL == "" {
		return ErrEmptyMessage
	}
	if len([]rune(m.Content)) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// HasReaction reports whether userID already reacted with emoji.
func (m *Message) HasReaction(emoji, userID string) bool {
	for _, id := range m.Reactions[emoji] {
		if id == userID {
			return true
		}
	}
	return false
}

// AddReaction records a reaction. It is idempotent and reports whether the
// reaction map actually changed.
func (m *Message) AddReaction(emoji, userID string) bool {
	if m.HasReaction(emoji, userID) {
		return false
	}
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	m.Reactions[emoji] = append(m.Reactions[emoji], userID)
	return true
}

// RemoveReaction removes a reaction. It is idempotent and reports whether the
// reaction map actually changed.
func (m *Message) RemoveReaction(emoji, userID string) bool {
	users := m.Reactions[emoji]
	for i, id := range users {
		if id == userID {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(m.Reactions, emoji)
			} else {
				m.Reactions[emoji] = users
			}
			return true
		}
	}
	return false
}
