// File: internal/render/format.go
package render

import (
	"fmt"
	"time"

	"github.com/mostakin5290/discord-client/internal/store"
)

// groupWindow is how close together consecutive messages from the same author
// must be to collapse under one header.
const groupWindow = 5 * time.Minute

// MessageGroup is a run of consecutive messages by one author, rendered under
// a single name/avatar header.
type MessageGroup struct {
	AuthorID        string
	AuthorName      string
	AuthorAvatarURL string
	StartedAt       time.Time
	Messages        []store.Entry
}

// GroupMessages collapses an ordered sequence into display groups. Entries
// hidden by delete-for-me are skipped entirely; a new group starts on author
// change, on a gap longer than groupWindow, or on a reply (replies always
// show their own header).
func GroupMessages(entries []store.Entry) []MessageGroup {
	var groups []MessageGroup
	for _, e := range entries {
		if e.LocalDeleted {
			continue
		}

		n := len(groups)
		if n > 0 {
			last := &groups[n-1]
			prev := last.Messages[len(last.Messages)-1]
			if last.AuthorID == e.AuthorID &&
				e.ReplyToID == "" &&
				e.CreatedAt.Sub(prev.CreatedAt) <= groupWindow {
				last.Messages = append(last.Messages, e)
				continue
			}
		}

		groups = append(groups, MessageGroup{
			AuthorID:        e.AuthorID,
			AuthorName:      e.AuthorName,
			AuthorAvatarURL: e.AuthorAvatarURL,
			StartedAt:       e.CreatedAt,
			Messages:        []store.Entry{e},
		})
	}
	return groups
}

// IsNewDay reports whether a day separator belongs between two timestamps.
func IsNewDay(prev, cur time.Time) bool {
	py, pm, pd := prev.Local().Date()
	cy, cm, cd := cur.Local().Date()
	return py != cy || pm != cm || pd != cd
}

// FormatTimestamp renders a message timestamp the way the product does:
// "Today at 3:04 PM", "Yesterday at 3:04 PM", or the full date.
func FormatTimestamp(t, now time.Time) string {
	t = t.Local()
	now = now.Local()

	clock := t.Format("3:04 PM")
	if !IsNewDay(t, now) {
		return fmt.Sprintf("Today at %s", clock)
	}
	if !IsNewDay(t, now.AddDate(0, 0, -1)) {
		return fmt.Sprintf("Yesterday at %s", clock)
	}
	return t.Format("01/02/2006 3:04 PM")
}
