// File: internal/rest/client.go
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/mostakin5290/discord-client/internal/domain"
	"github.com/mostakin5290/discord-client/internal/services"
)

// Client talks to the REST side of the chat backend: history, sends,
// reactions, deletions and login. Push delivery is the transport package's
// job; this client only does request/response.
type Client struct {
	cfg    *Config
	http   *http.Client
	logger services.Logger

	mu    sync.RWMutex
	token string
}

func NewClient(cfg *Config, logger services.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rest config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rest config: %w", err)
	}
	if logger == nil {
		logger = &services.NoOpLogger{}
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		token:  cfg.Token,
	}, nil
}

// SetToken installs the bearer credential, typically right after login.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// HistoryPage is one page of channel history, oldest-to-newest, with an
// opaque cursor for fetching the preceding (older) page.
type HistoryPage struct {
	Messages   []domain.Message `json:"messages"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// ListMessages fetches a page of channel history. An empty cursor fetches the
// most recent page; a cursor fetches messages preceding it.
func (c *Client) ListMessages(ctx context.Context, channelID, cursor string, limit int) (HistoryPage, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var page HistoryPage
	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID))
	if err := c.do(ctx, http.MethodGet, path, query, nil, &page, "list_messages"); err != nil {
		return HistoryPage{}, err
	}
	return page, nil
}

// SendRequest is the body of a message send. The correlation token is
// generated client-side and echoed back by the backend so the push echo can
// be matched to the optimistic entry.
type SendRequest struct {
	Content          string `json:"content"`
	FileURL          string `json:"file_url,omitempty"`
	ReplyToID        string `json:"reply_to_id,omitempty"`
	CorrelationToken string `json:"correlation_token,omitempty"`
}

// SendMessage submits a message and returns the server-assigned record.
func (c *Client) SendMessage(ctx context.Context, channelID string, req SendRequest) (domain.Message, error) {
	var resp struct {
		Message domain.Message `json:"message"`
	}
	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID))
	if err := c.do(ctx, http.MethodPost, path, nil, req, &resp, "send_message"); err != nil {
		return domain.Message{}, err
	}
	return resp.Message, nil
}

// AddReaction records an emoji reaction on a message.
func (c *Client) AddReaction(ctx context.Context, messageID, emoji string) error {
	body := map[string]string{"emoji": emoji}
	path := fmt.Sprintf("/messages/%s/reactions", url.PathEscape(messageID))
	return c.do(ctx, http.MethodPost, path, nil, body, nil, "add_reaction")
}

// RemoveReaction removes the caller's reaction from a message.
func (c *Client) RemoveReaction(ctx context.Context, messageID, emoji string) error {
	path := fmt.Sprintf("/messages/%s/reactions/%s", url.PathEscape(messageID), url.PathEscape(emoji))
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil, "remove_reaction")
}

// DeleteMessage deletes a message in the given scope.
func (c *Client) DeleteMessage(ctx context.Context, messageID string, scope domain.DeleteScope) error {
	query := url.Values{}
	query.Set("deleteType", string(scope))
	path := fmt.Sprintf("/messages/%s", url.PathEscape(messageID))
	return c.do(ctx, http.MethodDelete, path, query, nil, nil, "delete_message")
}

// ListChannels fetches the channels visible to the authenticated user.
func (c *Client) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	var resp struct {
		Channels []domain.Channel `json:"channels"`
	}
	if err := c.do(ctx, http.MethodGet, "/channels", nil, nil, &resp, "list_channels"); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

// LoginResponse carries the bearer token and the authenticated user.
type LoginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// Login exchanges credentials for a bearer token and installs it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	body := map[string]string{"username": username, "password": password}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &resp, "login"); err != nil {
		return LoginResponse{}, err
	}
	c.SetToken(resp.Token)
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}, operation string) error {
	endpoint := c.cfg.baseURL() + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &APIError{Type: ErrTypeValidation, Operation: operation, Message: "could not encode request body", Cause: err}
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &APIError{Type: ErrTypeValidation, Operation: operation, Message: "could not build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "operation", operation, "error", err)
		return newNetworkError(operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := apiErr.Error
		if msg == "" {
			msg = resp.Status
		}
		c.logger.Warn("request rejected", "operation", operation, "status", resp.StatusCode, "message", msg)
		return newStatusError(operation, resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &APIError{Type: ErrTypeTransient, Operation: operation, Message: "could not decode response body", Cause: err}
		}
	}
	return nil
}
