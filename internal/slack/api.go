// Package slack connects the agent to Slack: a Web API client, a
// Socket Mode gateway that streams events over a websocket, and the
// event handler that turns mentions into orchestrator runs.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBaseURL = "https://slack.com/api"

// Client is the Slack Web API client.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Web API client authenticated with the bot token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultAPIBaseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// APIError is an ok:false Web API response.
type APIError struct {
	Method string
	Reason string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Reason)
}

// Identity is the bot's own identity from auth.test.
type Identity struct {
	UserID string `json:"user_id"`
	User   string `json:"user"`
	TeamID string `json:"team_id"`
	Team   string `json:"team"`
}

// AuthTest verifies the bot token and returns the bot identity.
func (c *Client) AuthTest(ctx context.Context) (*Identity, error) {
	var resp struct {
		apiResponse
		Identity
	}
	if err := c.call(ctx, "auth.test", c.token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Identity, nil
}

// MessageRef identifies a posted message.
type MessageRef struct {
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

// PostMessage posts text to a channel, threaded when threadTS is set.
func (c *Client) PostMessage(ctx context.Context, channelID, text, threadTS string) (*MessageRef, error) {
	payload := map[string]any{"channel": channelID, "text": text}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}
	var resp struct {
		apiResponse
		Channel string `json:"channel"`
		TS      string `json:"ts"`
	}
	if err := c.call(ctx, "chat.postMessage", c.token, payload, &resp); err != nil {
		return nil, err
	}
	return &MessageRef{Channel: resp.Channel, TS: resp.TS}, nil
}

// UpdateMessage replaces the text of an existing message.
func (c *Client) UpdateMessage(ctx context.Context, channelID, ts, text string) error {
	payload := map[string]any{"channel": channelID, "ts": ts, "text": text}
	var resp apiResponse
	return c.call(ctx, "chat.update", c.token, payload, &resp)
}

// ChannelInfo is the subset of conversations.info the agent cares about.
type ChannelInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsChannel bool   `json:"is_channel"`
	IsPrivate bool   `json:"is_private"`
}

// ConversationInfo fetches channel metadata.
func (c *Client) ConversationInfo(ctx context.Context, channelID string) (*ChannelInfo, error) {
	var resp struct {
		apiResponse
		Channel ChannelInfo `json:"channel"`
	}
	q := url.Values{"channel": {channelID}}
	if err := c.get(ctx, "conversations.info", q, &resp); err != nil {
		return nil, err
	}
	return &resp.Channel, nil
}

// ThreadMessage is one message from conversations.replies.
type ThreadMessage struct {
	User     string `json:"user"`
	BotID    string `json:"bot_id,omitempty"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// ConversationReplies fetches a thread's messages, oldest first.
func (c *Client) ConversationReplies(ctx context.Context, channelID, ts string, limit int) ([]ThreadMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	var resp struct {
		apiResponse
		Messages []ThreadMessage `json:"messages"`
	}
	q := url.Values{
		"channel": {channelID},
		"ts":      {ts},
		"limit":   {strconv.Itoa(limit)},
	}
	if err := c.get(ctx, "conversations.replies", q, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// UserInfo is the subset of users.info the agent cares about.
type UserInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
	IsBot    bool   `json:"is_bot"`
}

// User fetches a user's profile.
func (c *Client) User(ctx context.Context, userID string) (*UserInfo, error) {
	var resp struct {
		apiResponse
		User UserInfo `json:"user"`
	}
	q := url.Values{"user": {userID}}
	if err := c.get(ctx, "users.info", q, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// OpenSocketURL requests a Socket Mode websocket URL. It authenticates
// with the app-level token, not the bot token.
func (c *Client) OpenSocketURL(ctx context.Context, appToken string) (string, error) {
	var resp struct {
		apiResponse
		URL string `json:"url"`
	}
	if err := c.call(ctx, "apps.connections.open", appToken, nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (r apiResponse) ok() bool { return r.OK }

func (r apiResponse) reason() string { return r.Error }

type okChecker interface {
	ok() bool
	reason() string
}

func (c *Client) call(ctx context.Context, method, token string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("slack %s: marshal: %w", method, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, body)
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	return c.send(req, method, out)
}

func (c *Client) get(ctx context.Context, method string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+method+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.send(req, method, out)
}

func (c *Client) send(req *http.Request, method string, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("slack %s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack %s: status %d: %s", method, resp.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("slack %s: unmarshal: %w", method, err)
	}
	if checker, isChecker := out.(okChecker); isChecker && !checker.ok() {
		return &APIError{Method: method, Reason: checker.reason()}
	}
	return nil
}
