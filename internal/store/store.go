// File: internal/store/store.go

package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mostakin5290/discord-client/internal/domain"
	"github.com/mostakin5290/discord-client/internal/services"
)

var ErrMessageNotFound = errors.New("message not found")
var ErrStaleLoad = errors.New("history load is stale")
var ErrNotFailed = errors.New("entry is not in failed state")
var ErrNotPending = errors.New("entry is not in pending state")

// Entry is a message plus its local-only synchronization state.
type Entry struct {
	domain.Message
	Status       domain.MessageStatus
	LocalDeleted bool // delete-for-me; never cleared by push updates
}

// Draft is the user-submitted content of an optimistic send.
type Draft struct {
	AuthorID        string
	AuthorName      string
	AuthorAvatarURL string
	Content         string
	FileURL         string
	ReplyToID       string
}

type channelCache struct {
	entries    []*Entry
	byID       map[string]*Entry // server or provisional ID -> entry
	byToken    map[string]*Entry // correlation token -> unconfirmed entry
	generation uint64
}

// Store owns every per-channel message sequence. Three independent input
// paths feed it (history fetch, optimistic local send, inbound push event)
// and it keeps each channel's sequence ordered, duplicate-free and causally
// consistent regardless of which path produced each entry.
//
// All mutation goes through these methods; the mutex serializes the REST
// callbacks, the user actions and the read pump.
type Store struct {
	cfg    *Config
	logger services.Logger

	mu       sync.Mutex
	channels map[string]*channelCache
}

func NewStore(cfg *Config, logger services.Logger) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	if logger == nil {
		logger = &services.NoOpLogger{}
	}
	return &Store{
		cfg:      cfg,
		logger:   logger,
		channels: make(map[string]*channelCache),
	}, nil
}

// Generation returns the channel's current load generation.
func (s *Store) Generation(channelID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensure(channelID).generation
}

// Invalidate bumps the channel's generation and returns the new value.
// Called when the user navigates to a channel: any history fetch issued under
// an older generation will be rejected on arrival instead of polluting the
// cache (the stale-fetch guard).
func (s *Store) Invalidate(channelID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.ensure(channelID)
	ch.generation++
	return ch.generation
}

// LoadHistory merges a REST-fetched batch into the channel sequence: every
// message is inserted at its ordered position and identifiers already present
// are skipped. A generation mismatch means the user navigated away first: the
// result is discarded and ErrStaleLoad returned. The retention cap is
// enforced after the merge; use LoadOlderHistory for backward pagination.
func (s *Store) LoadHistory(channelID string, generation uint64, msgs []domain.Message) (int, error) {
	return s.merge(channelID, generation, msgs, true)
}

// LoadOlderHistory merges a backward-pagination page. The retention cap is
// not applied here: at the cap the oldest confirmed entries are exactly the
// page the user just asked for, and evicting them would make pagination a
// no-op. The cap re-applies on the next forward merge or push arrival.
func (s *Store) LoadOlderHistory(channelID string, generation uint64, msgs []domain.Message) (int, error) {
	return s.merge(channelID, generation, msgs, false)
}

func (s *Store) merge(channelID string, generation uint64, msgs []domain.Message, enforceCap bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.ensure(channelID)
	if ch.generation != generation {
		s.logger.Debug("discarding stale history load", "channel_id", channelID,
			"load_generation", generation, "current_generation", ch.generation)
		return 0, ErrStaleLoad
	}

	inserted := make([]*Entry, 0, len(msgs))
	for _, msg := range msgs {
		if msg.ID == "" {
			continue
		}
		if _, exists := ch.byID[msg.ID]; exists {
			continue
		}
		entry := &Entry{Message: msg, Status: domain.StatusSent}
		s.insertOrdered(ch, entry)
		inserted = append(inserted, entry)
	}
	if enforceCap {
		s.enforceRetention(channelID, ch)
	}

	// Entries evicted straight after insertion do not count as added.
	added := 0
	for _, e := range inserted {
		if _, ok := ch.byID[e.ID]; ok {
			added++
		}
	}
	return added, nil
}

// AppendOptimistic synthesizes a provisional entry for a user-submitted draft
// and appends it at the tail so the UI reflects the send instantly. The
// returned entry carries the correlation token used to reconcile the backend
// echo, and its token doubles as the provisional identifier.
func (s *Store) AppendOptimistic(channelID string, draft Draft) (Entry, error) {
	msg := domain.Message{
		ChannelID:       channelID,
		AuthorID:        draft.AuthorID,
		AuthorName:      draft.AuthorName,
		AuthorAvatarURL: draft.AuthorAvatarURL,
		Content:         draft.Content,
		FileURL:         draft.FileURL,
		ReplyToID:       draft.ReplyToID,
		CreatedAt:       time.Now(),
	}
	if err := msg.Validate(); err != nil {
		return Entry{}, err
	}

	token := uuid.NewString()
	msg.ID = token
	msg.CorrelationToken = token

	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.ensure(channelID)
	entry := &Entry{Message: msg, Status: domain.StatusPending}
	ch.entries = append(ch.entries, entry)
	ch.byID[token] = entry
	ch.byToken[token] = entry
	return entry.clone(), nil
}

// ReconcileIncoming merges a pushed message into the channel sequence.
//
// Resolution order:
//  1. Known server ID: apply the update idempotently in place.
//  2. Correlation token match: replace the optimistic entry in place so the
//     sender's own echo never renders twice.
//  3. Best-effort match (author + content + near-in-time) against pending
//     entries, for backends that do not echo the token.
//  4. Otherwise: a genuinely new arrival, inserted at its ordered position.
func (s *Store) ReconcileIncoming(channelID string, msg domain.Message) (Entry, error) {
	if msg.ID == "" {
		return Entry{}, fmt.Errorf("incoming message without server ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.ensure(channelID)

	if existing, ok := ch.byID[msg.ID]; ok {
		s.applyUpdate(existing, msg)
		return existing.clone(), nil
	}

	if msg.CorrelationToken != "" {
		if pending, ok := ch.byToken[msg.CorrelationToken]; ok {
			s.confirm(ch, pending, msg)
			return pending.clone(), nil
		}
	}

	if pending := s.matchPending(ch, msg); pending != nil {
		s.confirm(ch, pending, msg)
		return pending.clone(), nil
	}

	entry := &Entry{Message: msg, Status: domain.StatusSent}
	s.insertOrdered(ch, entry)
	s.enforceRetention(channelID, ch)
	return entry.clone(), nil
}

// MarkFailed flags a pending optimistic entry whose backing send was
// rejected. The entry stays in the sequence, visually distinct and
// retryable; user-authored content is never silently dropped.
func (s *Store) MarkFailed(channelID, provisionalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.ensure(channelID).byID[provisionalID]
	if !ok {
		return ErrMessageNotFound
	}
	if entry.Status != domain.StatusPending {
		return ErrNotPending
	}
	entry.Status = domain.StatusFailed
	s.logger.Warn("send failed, entry kept for retry", "channel_id", channelID, "provisional_id", provisionalID)
	return nil
}

// MarkPending returns a failed entry to pending state ahead of a retry.
func (s *Store) MarkPending(channelID, provisionalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.ensure(channelID).byID[provisionalID]
	if !ok {
		return ErrMessageNotFound
	}
	if entry.Status != domain.StatusFailed {
		return ErrNotFailed
	}
	entry.Status = domain.StatusPending
	return nil
}

// Discard removes a failed optimistic entry. Only failed entries can be
// removed: confirmed history is never hard-removed client-side.
func (s *Store) Discard(channelID, provisionalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.ensure(channelID)
	entry, ok := ch.byID[provisionalID]
	if !ok {
		return ErrMessageNotFound
	}
	if entry.Status != domain.StatusFailed {
		return ErrNotFailed
	}

	delete(ch.byID, provisionalID)
	delete(ch.byToken, entry.CorrelationToken)
	for i, e := range ch.entries {
		if e == entry {
			ch.entries = append(ch.entries[:i], ch.entries[i+1:]...)
			break
		}
	}
	return nil
}

// ApplyReaction mutates a message's reaction map, optimistically on user
// action or on a confirmed push. It reports whether the map actually changed
// so a failed REST call can invert exactly the mutation it caused and nothing
// else.
func (s *Store) ApplyReaction(channelID, messageID, emoji, userID string, isAdding bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.ensure(channelID).byID[messageID]
	if !ok {
		return false, ErrMessageNotFound
	}

	if isAdding {
		return entry.AddReaction(emoji, userID), nil
	}
	return entry.RemoveReaction(emoji, userID), nil
}

// MarkDeleted applies a deletion in the given scope.
//
// DeleteForMe sets a local-only flag that no later push event clears.
// DeleteForEveryone clears the content and sets the deleted flag; the same
// deletion arriving later as a push event is a no-op. Entries are never
// removed from the sequence, preserving position and reply integrity.
func (s *Store) MarkDeleted(channelID, messageID string, scope domain.DeleteScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.ensure(channelID).byID[messageID]
	if !ok {
		return ErrMessageNotFound
	}

	switch scope {
	case domain.DeleteForMe:
		entry.LocalDeleted = true
	case domain.DeleteForEveryone:
		entry.Deleted = true
		entry.Content = ""
		entry.FileURL = ""
	default:
		return fmt.Errorf("unknown delete scope: %s", scope)
	}
	return nil
}

// Messages returns a copy of the channel's ordered sequence.
func (s *Store) Messages(channelID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[channelID]
	if !ok {
		return nil
	}
	out := make([]Entry, 0, len(ch.entries))
	for _, e := range ch.entries {
		out = append(out, e.clone())
	}
	return out
}

// Get returns a single entry by server or provisional identifier.
func (s *Store) Get(channelID, messageID string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[channelID]
	if !ok {
		return Entry{}, ErrMessageNotFound
	}
	entry, ok := ch.byID[messageID]
	if !ok {
		return Entry{}, ErrMessageNotFound
	}
	return entry.clone(), nil
}

// Earliest returns the oldest confirmed message, used as the cursor for
// backward pagination.
func (s *Store) Earliest(channelID string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[channelID]
	if !ok {
		return domain.Message{}, false
	}
	for _, e := range ch.entries {
		if e.Status == domain.StatusSent {
			return e.Message, true
		}
	}
	return domain.Message{}, false
}

// Latest returns the newest confirmed message, used for last-seen updates.
func (s *Store) Latest(channelID string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.channels[channelID]
	if !ok {
		return domain.Message{}, false
	}
	for i := len(ch.entries) - 1; i >= 0; i-- {
		if ch.entries[i].Status == domain.StatusSent {
			return ch.entries[i].Message, true
		}
	}
	return domain.Message{}, false
}

// Evict drops a channel's cache entirely.
func (s *Store) Evict(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, channelID)
}

// EvictAll clears every channel. Called on logout.
func (s *Store) EvictAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = make(map[string]*channelCache)
}

// ----- internals (callers hold s.mu) -----

func (s *Store) ensure(channelID string) *channelCache {
	ch, ok := s.channels[channelID]
	if !ok {
		ch = &channelCache{
			byID:    make(map[string]*Entry),
			byToken: make(map[string]*Entry),
		}
		s.channels[channelID] = ch
	}
	return ch
}

// insertOrdered places the entry at its position under the ordering policy:
// creation timestamp ascending, ties broken by arrival order (the new entry
// goes after existing entries with an equal timestamp).
func (s *Store) insertOrdered(ch *channelCache, entry *Entry) {
	idx := sort.Search(len(ch.entries), func(i int) bool {
		return ch.entries[i].CreatedAt.After(entry.CreatedAt)
	})
	ch.entries = append(ch.entries, nil)
	copy(ch.entries[idx+1:], ch.entries[idx:])
	ch.entries[idx] = entry
	ch.byID[entry.ID] = entry
}

// confirm replaces an optimistic entry in place with its server-assigned
// form, keeping its position in the sequence.
func (s *Store) confirm(ch *channelCache, entry *Entry, msg domain.Message) {
	delete(ch.byID, entry.ID)
	delete(ch.byToken, entry.CorrelationToken)

	localDeleted := entry.LocalDeleted
	entry.Message = msg
	entry.Status = domain.StatusSent
	entry.LocalDeleted = localDeleted
	ch.byID[msg.ID] = entry
}

// applyUpdate applies a push event for an already-known message. Server state
// is canonical for content, flags and reactions; the local delete-for-me flag
// survives any update.
func (s *Store) applyUpdate(entry *Entry, msg domain.Message) {
	if msg.Deleted {
		entry.Deleted = true
		entry.Content = ""
		entry.FileURL = ""
	} else if !entry.Deleted {
		entry.Content = msg.Content
		entry.FileURL = msg.FileURL
		entry.Edited = msg.Edited
	}
	if msg.Reactions != nil {
		entry.Reactions = cloneReactions(msg.Reactions)
	}
	entry.Status = domain.StatusSent
}

// matchPending is the best-effort fallback when the backend did not echo a
// correlation token: same author, same content, created within MatchWindow.
func (s *Store) matchPending(ch *channelCache, msg domain.Message) *Entry {
	for _, e := range ch.entries {
		if e.Status != domain.StatusPending {
			continue
		}
		if e.AuthorID != msg.AuthorID || e.Content != msg.Content {
			continue
		}
		diff := msg.CreatedAt.Sub(e.CreatedAt)
		if diff < 0 {
			diff = -diff
		}
		if diff <= s.cfg.MatchWindow {
			return e
		}
	}
	return nil
}

// enforceRetention evicts the oldest confirmed messages beyond the cap.
// Pending and failed entries are never evicted.
func (s *Store) enforceRetention(channelID string, ch *channelCache) {
	excess := len(ch.entries) - s.cfg.RetentionLimit
	if excess <= 0 {
		return
	}

	kept := ch.entries[:0]
	for _, e := range ch.entries {
		if excess > 0 && e.Status == domain.StatusSent {
			delete(ch.byID, e.ID)
			excess--
			continue
		}
		kept = append(kept, e)
	}
	ch.entries = kept
	s.logger.Debug("evicted old messages", "channel_id", channelID, "remaining", len(ch.entries))
}

func (e *Entry) clone() Entry {
	out := *e
	out.Reactions = cloneReactions(e.Reactions)
	return out
}

func cloneReactions(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for emoji, users := range in {
		out[emoji] = append([]string(nil), users...)
	}
	return out
}
