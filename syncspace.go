// Package syncspace provides the official Go SDK for the Syncspace API.
//
// Covers the session, messaging, notification and invitation endpoints plus
// the real-time delivery layer used by chat and notification surfaces.
//
// Example:
//
//	client := syncspace.NewClient("ss-token-...")
//
//	me, _ := client.Session().Me(ctx)
//
//	rt := client.Realtime(nil)
//	lf := syncspace.ListenerFunc(func(event string, payload json.RawMessage) { ... })
//	rt.On(syncspace.EventNewMessage, &lf)
//	rt.Initialize(ctx, me.ID)
package syncspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultBaseURL = "https://app.syncspace.dev"
	DefaultTimeout = 30 * time.Second
)

// ============================================================================
// Client
// ============================================================================

// Client is the top-level Syncspace API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	session       *SessionClient
	messages      *MessagesClient
	notifications *NotificationsClient
	invitations   *InvitationsClient
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a new Syncspace client.
// token may be empty for endpoints that accept anonymous access.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.session = &SessionClient{client: c}
	c.messages = &MessagesClient{client: c}
	c.notifications = &NotificationsClient{client: c}
	c.invitations = &InvitationsClient{client: c}
	return c
}

// SetToken sets or updates the auth token, e.g. after a login exchange.
func (c *Client) SetToken(token string) {
	c.token = token
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the session sub-client.
func (c *Client) Session() *SessionClient { return c.session }

// Messages returns the messages sub-client.
func (c *Client) Messages() *MessagesClient { return c.messages }

// Notifications returns the notifications sub-client.
func (c *Client) Notifications() *NotificationsClient { return c.notifications }

// Invitations returns the invitations sub-client.
func (c *Client) Invitations() *InvitationsClient { return c.invitations }

// Realtime creates the real-time client bound to this API client.
// Call Initialize to establish the connection.
func (c *Client) Realtime(config *RealtimeConfig) *RealtimeClient {
	var cfg RealtimeConfig
	if config != nil {
		cfg = *config
	}
	cfg.defaults()
	return newRealtimeClient(c, &cfg)
}

// ============================================================================
// Internal request helper
// ============================================================================

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, query map[string]string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		params := url.Values{}
		for k, v := range query {
			params.Set(k, v)
		}
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, query map[string]string) (*APIResult, error) {
	data, err := c.doRequest(ctx, method, path, body, query)
	if err != nil {
		return nil, err
	}
	result, err := decodeJSON[APIResult](data)
	if err != nil {
		return nil, err
	}
	if !result.OK && result.Error != nil {
		return result, result.Error
	}
	return result, nil
}

func decodeJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// ============================================================================
// Session
// ============================================================================

// SessionClient exposes the authenticated user's read-only session context.
type SessionClient struct{ client *Client }

// Me returns the current authenticated user.
func (s *SessionClient) Me(ctx context.Context) (*User, error) {
	result, err := s.client.do(ctx, "GET", "/api/session", nil, nil)
	if err != nil {
		return nil, err
	}
	var user User
	if err := result.Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &user, nil
}

// ============================================================================
// Messages
// ============================================================================

// MessagesClient handles workspace chat message endpoints.
type MessagesClient struct{ client *Client }

// History fetches a page of message history for a workspace channel.
// A zero opts.Before requests the newest page.
func (m *MessagesClient) History(ctx context.Context, workspaceID string, opts *HistoryOptions) (*HistoryPage, error) {
	var query map[string]string
	if opts != nil {
		query = map[string]string{}
		if !opts.Before.IsZero() {
			query["before"] = opts.Before.UTC().Format(time.RFC3339Nano)
		}
		if opts.Limit > 0 {
			query["limit"] = fmt.Sprintf("%d", opts.Limit)
		}
		if len(query) == 0 {
			query = nil
		}
	}
	result, err := m.client.do(ctx, "GET", "/api/workspaces/"+workspaceID+"/messages", nil, query)
	if err != nil {
		return nil, err
	}
	var page HistoryPage
	if err := result.Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode history page: %w", err)
	}
	return &page, nil
}

// Send posts a new message and returns the server-confirmed message. Each
// send carries a client-generated idempotency key so a retried request cannot
// create a duplicate message server-side.
func (m *MessagesClient) Send(ctx context.Context, workspaceID, content string) (*Message, error) {
	result, err := m.client.do(ctx, "POST", "/api/workspaces/"+workspaceID+"/messages",
		map[string]string{"content": content, "clientKey": "sdk-" + uuid.NewString()}, nil)
	if err != nil {
		return nil, err
	}
	var msg Message
	if err := result.Decode(&msg); err != nil {
		return nil, fmt.Errorf("failed to decode sent message: %w", err)
	}
	return &msg, nil
}

// MarkRead records delivery/read receipts for the given message IDs.
func (m *MessagesClient) MarkRead(ctx context.Context, workspaceID string, messageIDs []string) error {
	_, err := m.client.do(ctx, "POST", "/api/workspaces/"+workspaceID+"/messages/read",
		map[string][]string{"messageIds": messageIDs}, nil)
	return err
}

// ============================================================================
// Notifications
// ============================================================================

// NotificationsClient handles the notification endpoints.
type NotificationsClient struct{ client *Client }

// List returns the full notification list for the current user.
func (n *NotificationsClient) List(ctx context.Context) ([]Notification, error) {
	result, err := n.client.do(ctx, "GET", "/api/notifications", nil, nil)
	if err != nil {
		return nil, err
	}
	var notifications []Notification
	if err := result.Decode(&notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead marks a single notification as read.
func (n *NotificationsClient) MarkRead(ctx context.Context, notificationID string) error {
	_, err := n.client.do(ctx, "PATCH", "/api/notifications/"+notificationID+"/read", nil, nil)
	return err
}

// ClearAll deletes every notification for the current user.
func (n *NotificationsClient) ClearAll(ctx context.Context) error {
	_, err := n.client.do(ctx, "DELETE", "/api/notifications/clear", nil, nil)
	return err
}

// ============================================================================
// Invitations
// ============================================================================

// InvitationsClient handles workspace invitation endpoints.
type InvitationsClient struct{ client *Client }

// List returns the pending invitations for the current user.
func (i *InvitationsClient) List(ctx context.Context) ([]Invitation, error) {
	result, err := i.client.do(ctx, "GET", "/api/invitations", nil, nil)
	if err != nil {
		return nil, err
	}
	var invitations []Invitation
	if err := result.Decode(&invitations); err != nil {
		return nil, fmt.Errorf("failed to decode invitations: %w", err)
	}
	return invitations, nil
}

// Accept accepts an invitation.
func (i *InvitationsClient) Accept(ctx context.Context, invitationID string) error {
	_, err := i.client.do(ctx, "POST", "/api/invitations/"+invitationID+"/accept", nil, nil)
	return err
}

// Decline declines an invitation.
func (i *InvitationsClient) Decline(ctx context.Context, invitationID string) error {
	_, err := i.client.do(ctx, "POST", "/api/invitations/"+invitationID+"/decline", nil, nil)
	return err
}
