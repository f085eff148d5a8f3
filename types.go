package syncspace

import (
	"encoding/json"
	"time"
)

// ============================================================================
// Shared Types
// ============================================================================

// APIError represents an error returned by the Syncspace API.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// APIResult is the uniform response envelope returned by the API.
type APIResult struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *APIError       `json:"error,omitempty"`
}

// Decode unmarshals the Data field into the given value.
func (r *APIResult) Decode(v interface{}) error {
	if r.Data == nil {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

// ============================================================================
// Core Entities
// ============================================================================

// User is the authenticated user's identity as exposed by the session
// endpoint. The SDK treats this as read-only context.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Message is a chat message in a workspace channel.
//
// Pending is client-local state: true while the message exists only as an
// optimistic insert awaiting server confirmation. Pending messages carry a
// temporary "temp-" prefixed ID; server-confirmed messages never do.
type Message struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Content     string    `json:"content"`
	SenderID    string    `json:"senderId"`
	SenderName  string    `json:"senderName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Pending     bool      `json:"pending,omitempty"`
}

// NotificationType categorizes a notification.
type NotificationType string

const (
	NotificationInvitation NotificationType = "invitation"
	NotificationMention    NotificationType = "mention"
	NotificationTask       NotificationType = "task"
	NotificationGeneric    NotificationType = "generic"
)

// Notification is a server-originated event record surfaced to the user.
// Read transitions false→true exactly once and never reverts.
type Notification struct {
	ID           string           `json:"id"`
	Message      string           `json:"message"`
	Type         NotificationType `json:"type"`
	Read         bool             `json:"read"`
	CreatedAt    time.Time        `json:"createdAt"`
	WorkspaceID  string           `json:"workspaceId,omitempty"`
	ProjectID    string           `json:"projectId,omitempty"`
	TaskID       string           `json:"taskId,omitempty"`
	InvitationID string           `json:"invitationId,omitempty"`
	ActionLink   string           `json:"actionLink,omitempty"`
}

// Invitation is a pending workspace membership invitation.
type Invitation struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Workspace   string    `json:"workspace,omitempty"`
	InviterID   string    `json:"inviterId"`
	InviterName string    `json:"inviterName,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Workspace is the minimal workspace projection the messaging core needs.
type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ============================================================================
// Request Options
// ============================================================================

// HistoryOptions selects a page of message history. A zero Before requests
// the newest page; otherwise only messages strictly older than Before are
// returned.
type HistoryOptions struct {
	Before time.Time
	Limit  int
}

// HistoryPage is one page of message history.
type HistoryPage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}
