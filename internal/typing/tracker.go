// File: internal/typing/tracker.go

package typing

import (
	"fmt"
	"sync"
	"time"

	"github.com/mostakin5290/discord-client/internal/services"
)

// typist is one user currently flagged as typing in a channel.
type typist struct {
	userID    string
	username  string
	lastStart time.Time
	timer     *time.Timer
}

type channelTyping struct {
	order  []*typist // insertion order, drives summary phrasing
	byUser map[string]*typist
}

// Tracker maintains the ephemeral per-channel "who is typing" sets. It is
// driven entirely by push events plus local timeout-based expiry and is never
// persisted.
type Tracker struct {
	cfg    *Config
	logger services.Logger
	now    func() time.Time

	mu       sync.Mutex
	channels map[string]*channelTyping
}

func NewTracker(cfg *Config, logger services.Logger) (*Tracker, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid typing config: %w", err)
	}
	if logger == nil {
		logger = &services.NoOpLogger{}
	}
	return &Tracker{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		channels: make(map[string]*channelTyping),
	}, nil
}

// OnSignal applies a typing start/stop push event. Starts refresh the expiry
// deadline; stops remove the user immediately.
func (t *Tracker) OnSignal(channelID, userID, username string, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !isTyping {
		t.removeLocked(channelID, userID)
		return
	}

	ch, ok := t.channels[channelID]
	if !ok {
		ch = &channelTyping{byUser: make(map[string]*typist)}
		t.channels[channelID] = ch
	}

	started := t.now()
	if existing, ok := ch.byUser[userID]; ok {
		existing.lastStart = started
		if existing.username == "" {
			existing.username = username
		}
		t.scheduleExpiry(channelID, existing)
		return
	}

	entry := &typist{userID: userID, username: username, lastStart: started}
	ch.byUser[userID] = entry
	ch.order = append(ch.order, entry)
	t.scheduleExpiry(channelID, entry)
}

// Clear drops a channel's entire typing set, e.g. when leaving the channel.
func (t *Tracker) Clear(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.channels[channelID]
	if !ok {
		return
	}
	for _, entry := range ch.order {
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
	delete(t.channels, channelID)
}

// Typists returns the display names currently typing, in insertion order.
func (t *Tracker) Typists(channelID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.channels[channelID]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(ch.order))
	for _, entry := range ch.order {
		names = append(names, entry.username)
	}
	return names
}

// Summarize formats the typing set for display. The phrasing and thresholds
// mirror the product exactly: one name, two names, or "name and N others".
func (t *Tracker) Summarize(channelID string) string {
	names := t.Typists(channelID)
	switch len(names) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing...", names[0])
	case 2:
		return fmt.Sprintf("%s and %s are typing...", names[0], names[1])
	default:
		return fmt.Sprintf("%s and %d others are typing...", names[0], len(names)-1)
	}
}

func (t *Tracker) scheduleExpiry(channelID string, entry *typist) {
	if entry.timer != nil {
		entry.timer.Stop()
		entry.timer = nil
	}
	if t.cfg.ExpireAfter <= 0 {
		return
	}
	started := entry.lastStart
	entry.timer = time.AfterFunc(t.cfg.ExpireAfter, func() {
		t.expire(channelID, entry.userID, started)
	})
}

// expire removes a user whose last start signal is the one the timer was
// armed for. A newer start moved lastStart forward and keeps the user; the
// timestamp comparison also stops a stale start from resurrecting an
// indicator past its deadline.
func (t *Tracker) expire(channelID, userID string, started time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.channels[channelID]
	if !ok {
		return
	}
	entry, ok := ch.byUser[userID]
	if !ok || !entry.lastStart.Equal(started) {
		return
	}
	t.logger.Debug("expiring silent typist", "channel_id", channelID, "user_id", userID)
	t.removeLocked(channelID, userID)
}

func (t *Tracker) removeLocked(channelID, userID string) {
	ch, ok := t.channels[channelID]
	if !ok {
		return
	}
	entry, ok := ch.byUser[userID]
	if !ok {
		return
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	delete(ch.byUser, userID)
	for i, e := range ch.order {
		if e == entry {
			ch.order = append(ch.order[:i], ch.order[i+1:]...)
			break
		}
	}
	if len(ch.order) == 0 {
		delete(t.channels, channelID)
	}
}
