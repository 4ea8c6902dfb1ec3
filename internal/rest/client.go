// Package rest is the engine's adapter to the remote message/conversation
// store. Everything the backend returns is normalized into store types here;
// no other package touches the wire format.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pmartins/studychat/internal/store"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("backend error %d", e.StatusCode)
}

// Client talks to the learning-platform REST backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithHTTPClient swaps the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a backend client for the given base URL and bearer token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ListConversations fetches the full conversation list.
func (c *Client) ListConversations(ctx context.Context) ([]*store.Conversation, error) {
	var wire []wireConversation
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &wire); err != nil {
		return nil, err
	}
	out := make([]*store.Conversation, 0, len(wire))
	for i := range wire {
		out = append(out, wire[i].toStore())
	}
	return out, nil
}

// ListMessages fetches the message log for one conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID string, kind store.Kind) ([]*store.Message, error) {
	path := fmt.Sprintf("/conversations/%s/messages?kind=%s",
		url.PathEscape(conversationID), url.QueryEscape(string(kind)))
	var wire []wireMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]*store.Message, 0, len(wire))
	for i := range wire {
		m, err := wire[i].toStore(conversationID)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// SendRequest carries one outbound message.
type SendRequest struct {
	To         string            `json:"to"`
	Kind       store.Kind        `json:"kind"`
	Content    string            `json:"content"`
	Attachment *store.Attachment `json:"attachment,omitempty"`
	ClientRef  string            `json:"client_ref"`
}

// SendMessage posts a message and returns the remote-confirmed record
// (remote id + initial status). A fresh client_ref is stamped if unset.
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (*store.Message, error) {
	if req.ClientRef == "" {
		req.ClientRef = uuid.New().String()
	}
	var wire wireMessage
	if err := c.do(ctx, http.MethodPost, "/messages", req, &wire); err != nil {
		return nil, err
	}
	return wire.toStore(req.To)
}

// MarkRead acknowledges every inbound message in the conversation as read.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/conversations/%s/read", url.PathEscape(conversationID))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// Block blocks a user.
func (c *Client) Block(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/block", nil, nil)
}

// Unblock unblocks a user.
func (c *Client) Unblock(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/unblock", nil, nil)
}

// ClearHistory deletes every message in the conversation, remote side.
func (c *Client) ClearHistory(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/conversations/%s/messages", url.PathEscape(conversationID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// DeleteConversation removes the conversation itself.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(conversationID), nil, nil)
}

// CreateGroupRequest names a new group and its initial members.
type CreateGroupRequest struct {
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

// CreateGroup creates a group conversation.
func (c *Client) CreateGroup(ctx context.Context, req CreateGroupRequest) (*store.Conversation, error) {
	var wire wireConversation
	if err := c.do(ctx, http.MethodPost, "/groups", req, &wire); err != nil {
		return nil, err
	}
	return wire.toStore(), nil
}

// UserSummary is one user-search hit.
type UserSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref"`
}

// SearchUsers queries the user directory. Debouncing is the caller's
// concern; this is a plain request.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]UserSummary, error) {
	var out []UserSummary
	if err := c.do(ctx, http.MethodGet, "/users/search?q="+url.QueryEscape(query), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
