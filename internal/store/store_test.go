// File: internal/store/store_test.go

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mostakin5290/discord-client/internal/domain"
)

const channelID = "ch-general"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(DefaultConfig(), nil)
	require.NoError(t, err)
	return s
}

func historyMsg(id, authorID, content string, createdAt time.Time) domain.Message {
	return domain.Message{
		ID:        id,
		ChannelID: channelID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: createdAt,
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestLoadHistoryOrdersAndDeduplicates(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()
	gen := s.Invalidate(channelID)

	added, err := s.LoadHistory(channelID, gen, []domain.Message{
		historyMsg("m3", "u1", "third", base.Add(3*time.Second)),
		historyMsg("m1", "u1", "first", base.Add(1*time.Second)),
		historyMsg("m2", "u2", "second", base.Add(2*time.Second)),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(s.Messages(channelID)))

	// An overlapping older page: only the unseen message is added.
	added, err = s.LoadHistory(channelID, gen, []domain.Message{
		historyMsg("m0", "u2", "zeroth", base),
		historyMsg("m1", "u1", "first", base.Add(1*time.Second)),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"m0", "m1", "m2", "m3"}, ids(s.Messages(channelID)))
}

func TestLoadHistoryEqualTimestampsKeepArrivalOrder(t *testing.T) {
	s := newTestStore(t)
	ts := time.Now()
	gen := s.Invalidate(channelID)

	_, err := s.LoadHistory(channelID, gen, []domain.Message{
		historyMsg("a", "u1", "one", ts),
		historyMsg("b", "u2", "two", ts),
		historyMsg("c", "u3", "three", ts),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Messages(channelID)))
}

func TestLoadHistoryStaleGenerationIsDiscarded(t *testing.T) {
	s := newTestStore(t)
	gen := s.Invalidate(channelID)

	// User navigated away and back before the fetch landed.
	s.Invalidate(channelID)

	added, err := s.LoadHistory(channelID, gen, []domain.Message{
		historyMsg("m1", "u1", "late arrival", time.Now()),
	})
	assert.ErrorIs(t, err, ErrStaleLoad)
	assert.Zero(t, added)
	assert.Empty(t, s.Messages(channelID))
}

func TestAppendOptimisticTokenDoublesAsProvisionalID(t *testing.T) {
	s := newTestStore(t)

	entry, err := s.AppendOptimistic(channelID, Draft{
		AuthorID: "me", AuthorName: "Me", Content: "hello",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.CorrelationToken)
	assert.Equal(t, entry.CorrelationToken, entry.ID)
	assert.Equal(t, domain.StatusPending, entry.Status)

	msgs := s.Messages(channelID)
	require.Len(t, msgs, 1)
	assert.Equal(t, entry.ID, msgs[0].ID)
}

func TestAppendOptimisticRejectsInvalidDrafts(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AppendOptimistic(channelID, Draft{AuthorID: "me"})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)

	long := make([]rune, domain.MaxContentLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = s.AppendOptimistic(channelID, Draft{AuthorID: "me", Content: string(long)})
	assert.ErrorIs(t, err, domain.ErrContentTooLong)
}

func TestReconcileConfirmsByCorrelationToken(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()
	gen := s.Invalidate(channelID)
	_, err := s.LoadHistory(channelID, gen, []domain.Message{
		historyMsg("m1", "u1", "earlier", base.Add(-time.Minute)),
	})
	require.NoError(t, err)

	pending, err := s.AppendOptimistic(channelID, Draft{AuthorID: "me", Content: "hello"})
	require.NoError(t, err)

	echo := historyMsg("srv-1", "me", "hello", base)
	echo.CorrelationToken = pending.CorrelationToken

	confirmed, err := s.ReconcileIncoming(channelID, echo)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", confirmed.ID)
	assert.Equal(t, domain.StatusSent, confirmed.Status)

	// Replaced in place: still two entries, no duplicate echo.
	assert.Equal(t, []string{"m1", "srv-1"}, ids(s.Messages(channelID)))

	// The provisional identifier is gone, the server ID resolves.
	_, err = s.Get(channelID, pending.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)
	got, err := s.Get(channelID, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
}

func TestReconcileFallbackMatchWithoutToken(t *testing.T) {
	s := newTestStore(t)

	pending, err := s.AppendOptimistic(channelID, Draft{AuthorID: "me", Content: "hello"})
	require.NoError(t, err)

	// Backend echoed without the token but author, content and timestamp line up.
	echo := historyMsg("srv-1", "me", "hello", pending.CreatedAt.Add(2*time.Second))
	confirmed, err := s.ReconcileIncoming(channelID, echo)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", confirmed.ID)
	assert.Len(t, s.Messages(channelID), 1)
}

func TestReconcileOutsideMatchWindowInsertsNewEntry(t *testing.T) {
	s := newTestStore(t)

	pending, err := s.AppendOptimistic(channelID, Draft{AuthorID: "me", Content: "hello"})
	require.NoError(t, err)

	echo := historyMsg("srv-1", "me", "hello", pending.CreatedAt.Add(5*time.Minute))
	_, err = s.ReconcileIncoming(channelID, echo)
	require.NoError(t, err)

	// Too far apart to be the same send: both entries remain.
	assert.Len(t, s.Messages(channelID), 2)
}

func TestReconcileKnownIDIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	msg := historyMsg("m1", "u1", "hello", time.Now())

	_, err := s.ReconcileIncoming(channelID, msg)
	require.NoError(t, err)
	_, err = s.ReconcileIncoming(channelID, msg)
	require.NoError(t, err)

	assert.Len(t, s.Messages(channelID), 1)
}

func TestReconcileUpdatePreservesLocalDeleted(t *testing.T) {
	s := newTestStore(t)
	msg := historyMsg("m1", "u1", "hello", time.Now())
	_, err := s.ReconcileIncoming(channelID, msg)
	require.NoError(t, err)

	require.NoError(t, s.MarkDeleted(channelID, "m1", domain.DeleteForMe))

	// A later push for the same message must not resurrect it locally.
	update := msg
	update.Content = "hello (edited)"
	update.Edited = true
	entry, err := s.ReconcileIncoming(channelID, update)
	require.NoError(t, err)
	assert.True(t, entry.LocalDeleted)
	assert.True(t, entry.Edited)
	assert.Equal(t, "hello (edited)", entry.Content)
}

func TestFailedSendLifecycle(t *testing.T) {
	s := newTestStore(t)
	pending, err := s.AppendOptimistic(channelID, Draft{AuthorID: "me", Content: "hello"})
	require.NoError(t, err)

	// Discarding a non-failed entry is refused.
	assert.ErrorIs(t, s.Discard(channelID, pending.ID), ErrNotFailed)

	require.NoError(t, s.MarkFailed(channelID, pending.ID))
	got, err := s.Get(channelID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)

	// Marking failed twice is refused; the entry is no longer pending.
	assert.ErrorIs(t, s.MarkFailed(channelID, pending.ID), ErrNotPending)

	// Retry path: back to pending, then confirm via token.
	require.NoError(t, s.MarkPending(channelID, pending.ID))
	echo := historyMsg("srv-1", "me", "hello", time.Now())
	echo.CorrelationToken = pending.CorrelationToken
	confirmed, err := s.ReconcileIncoming(channelID, echo)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, confirmed.Status)
}

func TestDiscardRemovesFailedEntry(t *testing.T) {
	s := newTestStore(t)
	pending, err := s.AppendOptimistic(channelID, Draft{AuthorID: "me", Content: "hello"})
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(channelID, pending.ID))

	require.NoError(t, s.Discard(channelID, pending.ID))
	assert.Empty(t, s.Messages(channelID))

	// A late echo for the discarded send now inserts as a fresh message.
	echo := historyMsg("srv-1", "me", "hello", time.Now())
	echo.CorrelationToken = pending.CorrelationToken
	_, err = s.ReconcileIncoming(channelID, echo)
	require.NoError(t, err)
	assert.Equal(t, []string{"srv-1"}, ids(s.Messages(channelID)))
}

func TestApplyReactionReportsChange(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReconcileIncoming(channelID, historyMsg("m1", "u1", "hello", time.Now()))
	require.NoError(t, err)

	changed, err := s.ApplyReaction(channelID, "m1", "👍", "me", true)
	require.NoError(t, err)
	assert.True(t, changed)

	// Idempotent add: nothing changed, so a failed API call must not invert.
	changed, err = s.ApplyReaction(channelID, "m1", "👍", "me", true)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.ApplyReaction(channelID, "m1", "👍", "me", false)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := s.Get(channelID, "m1")
	require.NoError(t, err)
	assert.Empty(t, got.Reactions)
}

func TestMarkDeletedScopes(t *testing.T) {
	s := newTestStore(t)
	base := time.Now()
	_, err := s.ReconcileIncoming(channelID, historyMsg("m1", "u1", "hello", base))
	require.NoError(t, err)
	_, err = s.ReconcileIncoming(channelID, historyMsg("m2", "u1", "bye", base.Add(time.Second)))
	require.NoError(t, err)

	require.NoError(t, s.MarkDeleted(channelID, "m1", domain.DeleteForMe))
	got, err := s.Get(channelID, "m1")
	require.NoError(t, err)
	assert.True(t, got.LocalDeleted)
	assert.Equal(t, "hello", got.Content) // content retained, only hidden

	require.NoError(t, s.MarkDeleted(channelID, "m2", domain.DeleteForEveryone))
	got, err = s.Get(channelID, "m2")
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.Empty(t, got.Content)

	// The same deletion arriving again as a push event changes nothing.
	push := historyMsg("m2", "u1", "", base.Add(time.Second))
	push.Deleted = true
	entry, err := s.ReconcileIncoming(channelID, push)
	require.NoError(t, err)
	assert.True(t, entry.Deleted)
	assert.Empty(t, entry.Content)

	// Both entries keep their position in the sequence.
	assert.Equal(t, []string{"m1", "m2"}, ids(s.Messages(channelID)))
}

func TestRetentionEvictsOldestConfirmedOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetentionLimit = 5
	s, err := NewStore(cfg, nil)
	require.NoError(t, err)

	pending, err := s.AppendOptimistic(channelID, Draft{AuthorID: "me", Content: "unsent"})
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(channelID, pending.ID))

	base := time.Now().Add(time.Minute)
	for i := 0; i < 8; i++ {
		msg := historyMsg(
			string(rune('a'+i)), "u1", "msg", base.Add(time.Duration(i)*time.Second))
		_, err := s.ReconcileIncoming(channelID, msg)
		require.NoError(t, err)
	}

	msgs := s.Messages(channelID)
	assert.Len(t, msgs, 5)

	// The failed entry survived the cap even though it is the oldest.
	got, err := s.Get(channelID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)

	// The evicted rows were the oldest confirmed ones.
	_, err = s.Get(channelID, "a")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestLoadOlderHistoryKeepsPageAtRetentionCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetentionLimit = 5
	s, err := NewStore(cfg, nil)
	require.NoError(t, err)

	base := time.Now()
	gen := s.Invalidate(channelID)
	recent := make([]domain.Message, 0, 5)
	for i := 5; i < 10; i++ {
		recent = append(recent, historyMsg(
			string(rune('a'+i)), "u1", "recent", base.Add(time.Duration(i)*time.Second)))
	}
	_, err = s.LoadHistory(channelID, gen, recent)
	require.NoError(t, err)
	require.Len(t, s.Messages(channelID), 5)

	// Paginating backward at the cap must keep the requested page, not merge
	// it and evict it again.
	older := make([]domain.Message, 0, 5)
	for i := 0; i < 5; i++ {
		older = append(older, historyMsg(
			string(rune('a'+i)), "u1", "older", base.Add(time.Duration(i)*time.Second)))
	}
	added, err := s.LoadOlderHistory(channelID, gen, older)
	require.NoError(t, err)
	assert.Equal(t, 5, added)

	msgs := s.Messages(channelID)
	assert.Len(t, msgs, 10)
	assert.Equal(t, "a", msgs[0].ID)
}

func TestLoadHistoryAddedCountsOnlyKeptEntries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RetentionLimit = 5
	s, err := NewStore(cfg, nil)
	require.NoError(t, err)

	base := time.Now()
	gen := s.Invalidate(channelID)
	recent := make([]domain.Message, 0, 5)
	for i := 5; i < 10; i++ {
		recent = append(recent, historyMsg(
			string(rune('a'+i)), "u1", "recent", base.Add(time.Duration(i)*time.Second)))
	}
	_, err = s.LoadHistory(channelID, gen, recent)
	require.NoError(t, err)

	// A forward merge of entries older than everything held gets evicted by
	// the cap straight away; the reported count must say so.
	added, err := s.LoadHistory(channelID, gen, []domain.Message{
		historyMsg("stale", "u1", "old", base.Add(-time.Minute)),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Len(t, s.Messages(channelID), 5)
}

func TestMessagesReturnsIndependentCopies(t *testing.T) {
	s := newTestStore(t)
	msg := historyMsg("m1", "u1", "hello", time.Now())
	msg.Reactions = map[string][]string{"👍": {"u2"}}
	_, err := s.ReconcileIncoming(channelID, msg)
	require.NoError(t, err)

	out := s.Messages(channelID)
	out[0].Reactions["👍"] = append(out[0].Reactions["👍"], "intruder")
	out[0].Content = "mutated"

	got, err := s.Get(channelID, "m1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, []string{"u2"}, got.Reactions["👍"])
}

func TestEarliestAndLatestSkipUnconfirmed(t *testing.T) {
	s := newTestStore(t)

	_, ok := s.Earliest(channelID)
	assert.False(t, ok)

	_, err := s.AppendOptimistic(channelID, Draft{AuthorID: "me", Content: "pending"})
	require.NoError(t, err)
	_, ok = s.Earliest(channelID)
	assert.False(t, ok)

	base := time.Now().Add(-time.Hour)
	gen := s.Generation(channelID)
	_, err = s.LoadHistory(channelID, gen, []domain.Message{
		historyMsg("m1", "u1", "first", base),
		historyMsg("m2", "u1", "second", base.Add(time.Second)),
	})
	require.NoError(t, err)

	earliest, ok := s.Earliest(channelID)
	require.True(t, ok)
	assert.Equal(t, "m1", earliest.ID)

	latest, ok := s.Latest(channelID)
	require.True(t, ok)
	assert.Equal(t, "m2", latest.ID)
}

func TestEvictAllClearsEverything(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReconcileIncoming(channelID, historyMsg("m1", "u1", "hello", time.Now()))
	require.NoError(t, err)
	_, err = s.ReconcileIncoming("ch-other", historyMsg("m2", "u1", "hello", time.Now()))
	require.NoError(t, err)

	s.EvictAll()
	assert.Empty(t, s.Messages(channelID))
	assert.Empty(t, s.Messages("ch-other"))
}
