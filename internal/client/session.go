// File: internal/client/session.go

package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mostakin5290/discord-client/internal/auth"
	"github.com/mostakin5290/discord-client/internal/domain"
	"github.com/mostakin5290/discord-client/internal/ratelimit"
	"github.com/mostakin5290/discord-client/internal/repository/archive"
	"github.com/mostakin5290/discord-client/internal/rest"
	"github.com/mostakin5290/discord-client/internal/services"
	"github.com/mostakin5290/discord-client/internal/store"
	"github.com/mostakin5290/discord-client/internal/transport"
	"github.com/mostakin5290/discord-client/internal/typing"
)

// UpdateKind tags what part of the view an Update invalidates.
type UpdateKind string

const (
	UpdateMessages   UpdateKind = "messages"
	UpdateTyping     UpdateKind = "typing"
	UpdateConnection UpdateKind = "connection"
)

// Update tells the UI layer that something it renders changed.
type Update struct {
	Kind      UpdateKind
	ChannelID string
	Err       error
}

// Deps are the collaborators a Session is built from. Everything is injected
// so tests can substitute fakes; nothing here is a package-level singleton.
type Deps struct {
	Logger    services.Logger
	Store     *store.Store
	Tracker   *typing.Tracker
	Transport transport.Session
	API       *rest.Client
	Archive   archive.Archive // optional; nil disables local persistence
	Limiter   *ratelimit.SignalLimiter

	User      domain.User
	Token     string
	PageSize  int
	Retention int
}

// Session is the process-wide synchronization session: it owns the message
// store and typing tracker, routes push events into them, and implements the
// optimistic-send pipeline over the REST client. One instance lives from
// login to logout.
type Session struct {
	logger    services.Logger
	store     *store.Store
	tracker   *typing.Tracker
	transport transport.Session
	api       *rest.Client
	archive   archive.Archive
	limiter   *ratelimit.SignalLimiter

	user      domain.User
	token     string
	pageSize  int
	retention int

	mu      sync.Mutex
	current string // channel in view; drives last-seen updates

	updates chan Update
	wg      sync.WaitGroup
}

func NewSession(deps Deps) (*Session, error) {
	if deps.Store == nil || deps.Tracker == nil || deps.Transport == nil || deps.API == nil {
		return nil, fmt.Errorf("store, tracker, transport and api are required")
	}
	if deps.Logger == nil {
		deps.Logger = &services.NoOpLogger{}
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewSignalLimiter(nil)
	}
	if deps.PageSize <= 0 {
		deps.PageSize = 50
	}
	if deps.Retention <= 0 {
		deps.Retention = 500
	}

	return &Session{
		logger:    deps.Logger,
		store:     deps.Store,
		tracker:   deps.Tracker,
		transport: deps.Transport,
		api:       deps.API,
		archive:   deps.Archive,
		limiter:   deps.Limiter,
		user:      deps.User,
		token:     deps.Token,
		pageSize:  deps.PageSize,
		retention: deps.Retention,
		updates:   make(chan Update, 64),
	}, nil
}

// Start validates the credential locally, connects the transport and begins
// routing push events. An expired token is fatal for the session: the caller
// clears the credential and returns to login.
func (s *Session) Start(ctx context.Context) error {
	if err := auth.CheckLocal(s.token); err != nil {
		return ErrSessionExpired
	}

	if err := s.transport.Connect(ctx); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.eventLoop()
	return nil
}

// Close tears the session down: disconnects, stops event routing and clears
// all cached state. Called on logout.
func (s *Session) Close() error {
	err := s.transport.Disconnect()
	s.wg.Wait()
	s.store.EvictAll()
	return err
}

// Updates is drained by the UI layer to know when to re-render.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// User returns the authenticated user this session belongs to.
func (s *Session) User() domain.User {
	return s.user
}

// eventLoop is the single consumer of transport events. Exits when the
// transport closes its event channel on disconnect.
func (s *Session) eventLoop() {
	defer s.wg.Done()

	for ev := range s.transport.Events() {
		switch ev.Type {
		case transport.EventMessage:
			s.handleMessage(*ev.Message)

		case transport.EventTyping:
			t := ev.Typing
			if t.UserID == s.user.ID {
				continue
			}
			s.tracker.OnSignal(t.ChannelID, t.UserID, t.Username, t.IsTyping)
			s.notify(Update{Kind: UpdateTyping, ChannelID: t.ChannelID})

		case transport.EventDisconnected:
			s.notify(Update{Kind: UpdateConnection, Err: ev.Err})

		case transport.EventReconnected:
			s.logger.Info("transport reconnected, channel membership replayed")
			s.notify(Update{Kind: UpdateConnection})

		case transport.EventConnectError:
			// Reconnect attempts exhausted. The UI prompts re-login.
			s.logger.Error("real-time connection lost for good", "error", ev.Err)
			s.notify(Update{Kind: UpdateConnection, Err: ev.Err})
		}
	}
}

func (s *Session) handleMessage(msg domain.Message) {
	entry, err := s.store.ReconcileIncoming(msg.ChannelID, msg)
	if err != nil {
		s.logger.Warn("could not reconcile incoming message", "channel_id", msg.ChannelID, "error", err)
		return
	}

	// A delivered message implies its author stopped typing.
	s.tracker.OnSignal(msg.ChannelID, msg.AuthorID, msg.AuthorName, false)

	s.persist(entry.Message)

	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == msg.ChannelID {
		_ = s.transport.UpdateLastSeen(msg.ChannelID, entry.ID)
	}

	s.notify(Update{Kind: UpdateMessages, ChannelID: msg.ChannelID})
}

// OpenChannel makes channelID the active view: joins it, seeds the store from
// the local archive, then fetches the latest history page. The generation
// taken before the fetch guarantees a result that arrives after the user
// navigated away again is discarded, not applied.
func (s *Session) OpenChannel(ctx context.Context, channelID string) ([]store.Entry, error) {
	gen := s.store.Invalidate(channelID)

	s.mu.Lock()
	s.current = channelID
	s.mu.Unlock()

	if err := s.transport.JoinChannel(channelID); err != nil {
		return nil, err
	}

	if s.archive != nil {
		if cached, err := s.archive.RecentMessages(ctx, channelID, s.pageSize); err == nil && len(cached) > 0 {
			if _, err := s.store.LoadHistory(channelID, gen, cached); err == nil {
				s.notify(Update{Kind: UpdateMessages, ChannelID: channelID})
			}
		}
	}

	page, err := s.api.ListMessages(ctx, channelID, "", s.pageSize)
	if err != nil {
		if rest.IsAuthFailure(err) {
			return nil, ErrSessionExpired
		}
		// Offline: render whatever the archive gave us, surface the error.
		return s.store.Messages(channelID), err
	}

	if _, err := s.store.LoadHistory(channelID, gen, page.Messages); err != nil {
		if errors.Is(err, store.ErrStaleLoad) {
			return nil, ErrStaleChannel
		}
		return nil, err
	}

	s.persist(page.Messages...)
	if s.archive != nil {
		if err := s.archive.Prune(ctx, channelID, s.retention); err != nil {
			s.logger.Debug("archive prune failed", "channel_id", channelID, "error", err)
		}
	}

	if latest, ok := s.store.Latest(channelID); ok {
		_ = s.transport.UpdateLastSeen(channelID, latest.ID)
	}

	return s.store.Messages(channelID), nil
}

// LoadOlder fetches the page preceding the oldest held message.
func (s *Session) LoadOlder(ctx context.Context, channelID string) (int, error) {
	earliest, ok := s.store.Earliest(channelID)
	if !ok {
		return 0, nil
	}

	gen := s.store.Generation(channelID)
	page, err := s.api.ListMessages(ctx, channelID, earliest.ID, s.pageSize)
	if err != nil {
		return 0, err
	}

	added, err := s.store.LoadOlderHistory(channelID, gen, page.Messages)
	if err != nil {
		if errors.Is(err, store.ErrStaleLoad) {
			return 0, ErrStaleChannel
		}
		return 0, err
	}
	s.persist(page.Messages...)
	s.notify(Update{Kind: UpdateMessages, ChannelID: channelID})
	return added, nil
}

// CloseChannel leaves the channel and drops its ephemeral state. The cached
// messages stay for the session.
func (s *Session) CloseChannel(channelID string) {
	s.mu.Lock()
	if s.current == channelID {
		s.current = ""
	}
	s.mu.Unlock()

	// A history fetch still in flight for this channel must not land after
	// the user navigated away; bumping the generation makes it stale.
	s.store.Invalidate(channelID)

	s.stopTyping(channelID)
	_ = s.transport.LeaveChannel(channelID)
	s.tracker.Clear(channelID)
}

// SendMessage runs the optimistic pipeline: append locally, send, reconcile
// the response. On failure the entry is kept and flagged failed so the user
// can retry or discard; their content is never silently dropped.
func (s *Session) SendMessage(ctx context.Context, channelID, content, fileURL, replyToID string) (store.Entry, error) {
	draft := store.Draft{
		AuthorID:        s.user.ID,
		AuthorName:      s.user.Username,
		AuthorAvatarURL: s.user.AvatarURL,
		Content:         content,
		FileURL:         fileURL,
		ReplyToID:       replyToID,
	}

	entry, err := s.store.AppendOptimistic(channelID, draft)
	if err != nil {
		return store.Entry{}, err
	}
	s.notify(Update{Kind: UpdateMessages, ChannelID: channelID})
	s.stopTyping(channelID)

	return s.submit(ctx, channelID, entry)
}

// RetrySend re-submits a failed optimistic entry under its original
// correlation token.
func (s *Session) RetrySend(ctx context.Context, channelID, provisionalID string) (store.Entry, error) {
	entry, err := s.store.Get(channelID, provisionalID)
	if err != nil {
		return store.Entry{}, err
	}
	if err := s.store.MarkPending(channelID, provisionalID); err != nil {
		return store.Entry{}, err
	}
	return s.submit(ctx, channelID, entry)
}

// DiscardFailed removes a failed optimistic entry at the user's request.
func (s *Session) DiscardFailed(channelID, provisionalID string) error {
	err := s.store.Discard(channelID, provisionalID)
	if err == nil {
		s.notify(Update{Kind: UpdateMessages, ChannelID: channelID})
	}
	return err
}

func (s *Session) submit(ctx context.Context, channelID string, entry store.Entry) (store.Entry, error) {
	msg, err := s.api.SendMessage(ctx, channelID, rest.SendRequest{
		Content:          entry.Content,
		FileURL:          entry.FileURL,
		ReplyToID:        entry.ReplyToID,
		CorrelationToken: entry.CorrelationToken,
	})
	if err != nil {
		if markErr := s.store.MarkFailed(channelID, entry.ID); markErr != nil {
			s.logger.Debug("could not mark entry failed", "provisional_id", entry.ID, "error", markErr)
		}
		s.notify(Update{Kind: UpdateMessages, ChannelID: channelID})
		if rest.IsAuthFailure(err) {
			return store.Entry{}, ErrSessionExpired
		}
		return store.Entry{}, err
	}

	confirmed, err := s.store.ReconcileIncoming(channelID, msg)
	if err != nil {
		return store.Entry{}, err
	}
	s.persist(confirmed.Message)
	s.notify(Update{Kind: UpdateMessages, ChannelID: channelID})
	return confirmed, nil
}

// React toggles a reaction optimistically. If the backend rejects it, the
// exact mutation is inverted — not re-fetched — so the map returns to its
// pre-action state.
func (s *Session) React(ctx context.Context, channelID, messageID, emoji string, isAdding bool) error {
	changed, err := s.store.ApplyReaction(channelID, messageID, emoji, s.user.ID, isAdding)
	if err != nil {
		return err
	}
	s.notify(Update{Kind: UpdateMessages, ChannelID: channelID})

	if isAdding {
		err = s.api.AddReaction(ctx, messageID, emoji)
	} else {
		err = s.api.RemoveReaction(ctx, messageID, emoji)
	}
	if err != nil {
		if changed {
			if _, invErr := s.store.ApplyReaction(channelID, messageID, emoji, s.user.ID, !isAdding); invErr != nil {
				s.logger.Warn("could not revert optimistic reaction", "message_id", messageID, "error", invErr)
			}
			s.notify(Update{Kind: UpdateMessages, ChannelID: channelID})
		}
		if rest.IsAuthFailure(err) {
			return ErrSessionExpired
		}
		return err
	}
	return nil
}

// DeleteMessage applies a deletion locally and tells the backend. For
// delete-for-me the local flag is authoritative and survives any later push
// for the same message.
func (s *Session) DeleteMessage(ctx context.Context, channelID, messageID string, scope domain.DeleteScope) error {
	if err := s.store.MarkDeleted(channelID, messageID, scope); err != nil {
		return err
	}
	s.notify(Update{Kind: UpdateMessages, ChannelID: channelID})

	if s.archive != nil && scope == domain.DeleteForEveryone {
		if err := s.archive.MarkDeleted(ctx, messageID); err != nil {
			s.logger.Debug("archive delete failed", "message_id", messageID, "error", err)
		}
	}

	if err := s.api.DeleteMessage(ctx, messageID, scope); err != nil {
		if rest.IsAuthFailure(err) {
			return ErrSessionExpired
		}
		return err
	}
	return nil
}

// Typing signals that the user is typing in channelID. Debounced: at most
// one start signal per interval regardless of keystroke rate.
func (s *Session) Typing(channelID string) {
	if s.limiter.Allow("typing:" + channelID) {
		_ = s.transport.SendTyping(channelID, true)
	}
}

func (s *Session) stopTyping(channelID string) {
	s.limiter.Reset("typing:" + channelID)
	_ = s.transport.SendTyping(channelID, false)
}

// TypingSummary formats the channel's typing indicator line.
func (s *Session) TypingSummary(channelID string) string {
	return s.tracker.Summarize(channelID)
}

// Messages returns the channel's current ordered sequence.
func (s *Session) Messages(channelID string) []store.Entry {
	return s.store.Messages(channelID)
}

func (s *Session) persist(msgs ...domain.Message) {
	if s.archive == nil {
		return
	}
	if err := s.archive.SaveMessages(context.Background(), msgs); err != nil {
		s.logger.Debug("archive save failed", "count", len(msgs), "error", err)
	}
}

func (s *Session) notify(u Update) {
	select {
	case s.updates <- u:
	default:
		// UI stopped draining; it re-renders from state anyway.
	}
}
