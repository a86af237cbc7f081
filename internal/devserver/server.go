// File: internal/devserver/server.go
package devserver

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/mostakin5290/discord-client/internal/auth"
	"github.com/mostakin5290/discord-client/internal/domain"
	"github.com/mostakin5290/discord-client/internal/middleware"
	"github.com/mostakin5290/discord-client/internal/services"
)

const defaultPageSize = 50

// Server is the in-memory development backend. It implements the REST and
// real-time contracts the client consumes so the sync layer can be exercised
// end to end without the production services. Accounts are auto-created on
// first login; everything lives in memory.
type Server struct {
	logger services.Logger
	secret []byte
	hub    *Hub

	mu          sync.Mutex
	usersByName map[string]*domain.User
	usersByID   map[string]*domain.User
	channels    map[string]*domain.Channel
	messages    map[string][]*domain.Message // per channel, ascending by CreatedAt
	byMessageID map[string]*domain.Message
}

func New(secret []byte, logger services.Logger) *Server {
	if logger == nil {
		logger = &services.NoOpLogger{}
	}
	return &Server{
		logger:      logger,
		secret:      secret,
		hub:         NewHub(logger),
		usersByName: make(map[string]*domain.User),
		usersByID:   make(map[string]*domain.User),
		channels:    make(map[string]*domain.Channel),
		messages:    make(map[string][]*domain.Message),
		byMessageID: make(map[string]*domain.Message),
	}
}

// Router builds the HTTP surface: public login/health, protected REST API and
// the websocket endpoint.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	authMiddleware := middleware.NewJWTMiddleware(s.secret)

	r.Use(middleware.RecoverPanic)
	r.Use(middleware.LoggingMiddleware)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")
	r.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	r.HandleFunc("/ws", s.handleWS)

	api := r.PathPrefix("/").Subrouter()
	api.Use(authMiddleware)
	api.HandleFunc("/channels", s.handleListChannels).Methods("GET")
	api.HandleFunc("/channels/{id}/messages", s.handleListMessages).Methods("GET")
	api.HandleFunc("/channels/{id}/messages", s.handleCreateMessage).Methods("POST")
	api.HandleFunc("/messages/{id}/reactions", s.handleAddReaction).Methods("POST")
	api.HandleFunc("/messages/{id}/reactions/{emoji}", s.handleRemoveReaction).Methods("DELETE")
	api.HandleFunc("/messages/{id}", s.handleDeleteMessage).Methods("DELETE")

	return r
}

func (s *Server) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			s.logger.Error("could not encode response body", "error", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	s.respond(w, status, response{Error: msg})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "could not decode request body")
		return
	}

	s.mu.Lock()
	user, exists := s.usersByName[body.Username]
	if !exists {
		user = &domain.User{
			ID:        uuid.NewString(),
			Username:  body.Username,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := user.IsValid(); err != nil {
			s.mu.Unlock()
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := user.HashPassword(body.Password); err != nil {
			s.mu.Unlock()
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.usersByName[user.Username] = user
		s.usersByID[user.ID] = user
		s.logger.Info("created dev account", "username", user.Username)
	}
	s.mu.Unlock()

	if err := user.ValidatePassword(body.Password); err != nil {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Username, s.secret, 24*time.Hour)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	s.respond(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	channels := make([]*domain.Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		channels = append(channels, ch)
	}
	s.mu.Unlock()

	sort.Slice(channels, func(i, j int) bool { return channels[i].Name < channels[j].Name })
	s.respond(w, http.StatusOK, map[string]interface{}{"channels": channels})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["id"]

	limit := defaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	cursor := r.URL.Query().Get("cursor")

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[channelID]
	end := len(msgs)
	if cursor != "" {
		end = 0
		for i, m := range msgs {
			if m.ID == cursor {
				end = i
				break
			}
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	page := make([]domain.Message, 0, end-start)
	for _, m := range msgs[start:end] {
		page = append(page, *m)
	}

	resp := map[string]interface{}{"messages": page}
	if start > 0 && len(page) > 0 {
		resp["next_cursor"] = page[0].ID
	}
	s.respond(w, http.StatusOK, resp)
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["id"]
	userID := middleware.UserID(r.Context())

	var body struct {
		Content          string `json:"content"`
		FileURL          string `json:"file_url"`
		ReplyToID        string `json:"reply_to_id"`
		CorrelationToken string `json:"correlation_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "could not decode request body")
		return
	}

	s.mu.Lock()
	user, ok := s.usersByID[userID]
	if !ok {
		s.mu.Unlock()
		s.respondError(w, http.StatusUnauthorized, "unknown user")
		return
	}

	msg := &domain.Message{
		ID:               uuid.NewString(),
		ChannelID:        channelID,
		AuthorID:         user.ID,
		AuthorName:       user.Username,
		AuthorAvatarURL:  user.AvatarURL,
		Content:          body.Content,
		FileURL:          body.FileURL,
		ReplyToID:        body.ReplyToID,
		CreatedAt:        time.Now(),
		CorrelationToken: body.CorrelationToken,
	}
	if err := msg.Validate(); err != nil {
		s.mu.Unlock()
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.ensureChannel(channelID)
	s.messages[channelID] = append(s.messages[channelID], msg)
	s.byMessageID[msg.ID] = msg
	broadcast := *msg
	s.mu.Unlock()

	s.respond(w, http.StatusCreated, map[string]interface{}{"message": broadcast})

	// The correlation token is private to the sender: other participants get
	// the record without it, the author's own connections get the echo.
	stripped := broadcast
	stripped.CorrelationToken = ""
	s.hub.Broadcast(channelID, "receive_message", stripped, user.ID)
	s.hub.SendToUser(user.ID, channelID, "receive_message", broadcast)
}

func (s *Server) handleAddReaction(w http.ResponseWriter, r *http.Request) {
	messageID := mux.Vars(r)["id"]
	userID := middleware.UserID(r.Context())

	var body struct {
		Emoji string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Emoji == "" {
		s.respondError(w, http.StatusBadRequest, "emoji is required")
		return
	}

	s.mutateMessage(w, messageID, func(msg *domain.Message) {
		msg.AddReaction(body.Emoji, userID)
	})
}

func (s *Server) handleRemoveReaction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := middleware.UserID(r.Context())

	s.mutateMessage(w, vars["id"], func(msg *domain.Message) {
		msg.RemoveReaction(vars["emoji"], userID)
	})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := mux.Vars(r)["id"]
	deleteType := r.URL.Query().Get("deleteType")

	if deleteType == string(domain.DeleteForMe) {
		// Per-user hides are purely client-side state.
		s.respond(w, http.StatusOK, nil)
		return
	}
	if deleteType != string(domain.DeleteForEveryone) {
		s.respondError(w, http.StatusBadRequest, "unknown deleteType: "+deleteType)
		return
	}

	s.mutateMessage(w, messageID, func(msg *domain.Message) {
		msg.Deleted = true
		msg.Content = ""
		msg.FileURL = ""
	})
}

// mutateMessage applies fn to a message under the lock, responds 200 and
// broadcasts the updated record so other participants converge.
func (s *Server) mutateMessage(w http.ResponseWriter, messageID string, fn func(*domain.Message)) {
	s.mu.Lock()
	msg, ok := s.byMessageID[messageID]
	if !ok {
		s.mu.Unlock()
		s.respondError(w, http.StatusNotFound, "message not found")
		return
	}
	fn(msg)
	broadcast := *msg
	broadcast.CorrelationToken = ""
	s.mu.Unlock()

	s.respond(w, http.StatusOK, map[string]interface{}{"message": broadcast})
	s.hub.Broadcast(broadcast.ChannelID, "receive_message", broadcast, "")
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	userID, err := auth.ValidateToken(token, s.secret)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	s.mu.Lock()
	user, ok := s.usersByID[userID]
	s.mu.Unlock()
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "unknown user")
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.logger.Info("client connected", "username", user.Username)
	s.hub.Serve(conn, user.ID, user.Username)
	s.logger.Info("client disconnected", "username", user.Username)
}

// ensureChannel lazily creates channels: the dev backend accepts any ID.
// Callers hold s.mu.
func (s *Server) ensureChannel(channelID string) {
	if _, ok := s.channels[channelID]; !ok {
		s.channels[channelID] = &domain.Channel{
			ID:        channelID,
			Name:      channelID,
			CreatedAt: time.Now(),
		}
	}
}
