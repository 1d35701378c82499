package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/apperr"
	"github.com/matheus3301/parley/internal/chat"
)

// DefaultTimeout is generous because the backend may cold-start.
const DefaultTimeout = 30 * time.Second

// SessionSource supplies the bearer credential and accepts revocations.
type SessionSource interface {
	Session() (chat.Session, bool)
	Invalidate(reason string)
}

// StatusError is returned for non-2xx responses other than 401.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Code, e.Body)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Code)
}

// Client talks to the chat server's HTTP API.
type Client struct {
	baseURL    string
	auth       SessionSource
	httpClient *http.Client
	log        *zap.Logger
}

type ClientOption func(*Client)

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// New creates an API client rooted at baseURL.
func New(baseURL string, auth SessionSource, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		auth:       auth,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListConversations returns every conversation the caller participates in.
func (c *Client) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	var out []chat.Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConversation creates the conversation with peerID, or returns the
// existing one when the server already has it.
func (c *Client) CreateConversation(ctx context.Context, peerID string) (chat.Conversation, error) {
	var out chat.Conversation
	err := c.do(ctx, http.MethodPost, "/conversations", map[string]string{"peerId": peerID}, &out)
	if err != nil {
		return chat.Conversation{}, err
	}
	if out.ID == "" {
		return chat.Conversation{}, errors.New("create conversation: response has no id")
	}
	return out, nil
}

// ListMessages returns the authoritative history of a conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	var out []wireMessage
	path := "/messages/" + url.PathEscape(conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	msgs := make([]chat.Message, 0, len(out))
	for _, w := range out {
		msgs = append(msgs, w.toMessage(conversationID))
	}
	return msgs, nil
}

// CreateMessage posts a message and returns the server's confirmed copy.
func (c *Client) CreateMessage(ctx context.Context, conversationID, content string) (chat.Message, error) {
	var out wireMessage
	body := map[string]string{"conversationId": conversationID, "content": content}
	if err := c.do(ctx, http.MethodPost, "/messages", body, &out); err != nil {
		return chat.Message{}, err
	}
	if out.ID == "" {
		return chat.Message{}, errors.New("create message: response has no id")
	}
	return out.toMessage(conversationID), nil
}

// ListUsers returns the peer directory.
func (c *Client) ListUsers(ctx context.Context) ([]chat.User, error) {
	var out []chat.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	sess, ok := c.auth.Session()
	if !ok {
		return apperr.AuthRequired("no session")
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+sess.Token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	c.log.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		c.auth.Invalidate(fmt.Sprintf("%s %s returned 401", method, path))
		return apperr.Unauthenticated("server rejected the session")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: unmarshal response: %w", method, path, err)
	}
	return nil
}
