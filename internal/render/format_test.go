// File: internal/render/format_test.go
package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mostakin5290/discord-client/internal/domain"
	"github.com/mostakin5290/discord-client/internal/store"
)

func entry(id, authorID, content string, createdAt time.Time) store.Entry {
	return store.Entry{
		Message: domain.Message{
			ID:         id,
			AuthorID:   authorID,
			AuthorName: authorID,
			Content:    content,
			CreatedAt:  createdAt,
		},
		Status: domain.StatusSent,
	}
}

func TestGroupMessagesCollapsesSameAuthorRuns(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)

	groups := GroupMessages([]store.Entry{
		entry("m1", "alice", "one", base),
		entry("m2", "alice", "two", base.Add(time.Minute)),
		entry("m3", "bob", "three", base.Add(2*time.Minute)),
		entry("m4", "alice", "four", base.Add(3*time.Minute)),
	})

	require.Len(t, groups, 3)
	assert.Len(t, groups[0].Messages, 2)
	assert.Equal(t, "alice", groups[0].AuthorID)
	assert.Equal(t, "bob", groups[1].AuthorID)
	assert.Equal(t, "alice", groups[2].AuthorID)
}

func TestGroupMessagesBreaksOnTimeGap(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)

	groups := GroupMessages([]store.Entry{
		entry("m1", "alice", "one", base),
		entry("m2", "alice", "two", base.Add(6*time.Minute)),
	})

	require.Len(t, groups, 2)
}

func TestGroupMessagesBreaksOnReply(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)

	reply := entry("m2", "alice", "replying", base.Add(time.Minute))
	reply.ReplyToID = "m0"

	groups := GroupMessages([]store.Entry{
		entry("m1", "alice", "one", base),
		reply,
	})

	require.Len(t, groups, 2)
}

func TestGroupMessagesSkipsLocallyDeleted(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)

	hidden := entry("m2", "alice", "secret", base.Add(time.Minute))
	hidden.LocalDeleted = true

	groups := GroupMessages([]store.Entry{
		entry("m1", "alice", "one", base),
		hidden,
		entry("m3", "alice", "three", base.Add(2*time.Minute)),
	})

	require.Len(t, groups, 1)
	require.Len(t, groups[0].Messages, 2)
	assert.Equal(t, "m1", groups[0].Messages[0].ID)
	assert.Equal(t, "m3", groups[0].Messages[1].ID)
}

func TestGroupMessagesEmptyInput(t *testing.T) {
	assert.Empty(t, GroupMessages(nil))
}

func TestIsNewDay(t *testing.T) {
	noon := time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local)
	assert.False(t, IsNewDay(noon, noon.Add(2*time.Hour)))
	assert.True(t, IsNewDay(noon, noon.Add(24*time.Hour)))
	assert.True(t, IsNewDay(noon, noon.Add(13*time.Hour))) // crosses midnight
}

func TestFormatTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.Local)

	today := time.Date(2026, 3, 14, 15, 4, 0, 0, time.Local)
	assert.Equal(t, "Today at 3:04 PM", FormatTimestamp(today, now))

	yesterday := time.Date(2026, 3, 13, 15, 4, 0, 0, time.Local)
	assert.Equal(t, "Yesterday at 3:04 PM", FormatTimestamp(yesterday, now))

	older := time.Date(2026, 1, 2, 15, 4, 0, 0, time.Local)
	assert.Equal(t, "01/02/2026 3:04 PM", FormatTimestamp(older, now))
}
