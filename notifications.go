package syncspace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ============================================================================
// Navigation Targets
// ============================================================================

// NavKind identifies where acting on a notification should navigate.
type NavKind string

const (
	NavNone        NavKind = "none"
	NavInvitations NavKind = "invitations"
	NavWorkspace   NavKind = "workspace"
	NavProject     NavKind = "project"
	NavTask        NavKind = "task"
	NavLink        NavKind = "link"
)

// NavTarget is the resolved navigation side effect for a notification.
type NavTarget struct {
	Kind NavKind
	ID   string // entity ID for workspace/project/task targets
	URL  string // explicit action link for NavLink
}

// resolveNavTarget picks the navigation target by field precedence:
// invitation type first, then workspace, project, task, explicit link.
func resolveNavTarget(n Notification) NavTarget {
	switch {
	case n.Type == NotificationInvitation:
		return NavTarget{Kind: NavInvitations}
	case n.WorkspaceID != "":
		return NavTarget{Kind: NavWorkspace, ID: n.WorkspaceID}
	case n.ProjectID != "":
		return NavTarget{Kind: NavProject, ID: n.ProjectID}
	case n.TaskID != "":
		return NavTarget{Kind: NavTask, ID: n.TaskID}
	case n.ActionLink != "":
		return NavTarget{Kind: NavLink, URL: n.ActionLink}
	default:
		return NavTarget{Kind: NavNone}
	}
}

// ============================================================================
// Notification Feed
// ============================================================================

// NotificationFeedConfig tunes the feed's UI side effects.
type NotificationFeedConfig struct {
	// OnAlert raises a transient UI alert when a notification is pushed.
	OnAlert func(n Notification)

	// Navigate performs the navigation side effect chosen by MarkAsRead.
	Navigate func(target NavTarget)
}

// NotificationFeed maintains the local notification list with unread
// accounting. Pushed and polled notifications feed one merge path, deduped by
// identifier, so unread counts hold regardless of which path delivers a given
// notification first.
//
// It implements Listener and can be registered directly for new-notification
// events.
type NotificationFeed struct {
	client   *Client
	logger   *slog.Logger
	onAlert  func(Notification)
	navigate func(NavTarget)

	mu            sync.Mutex
	notifications []Notification
	unread        int
}

// NewNotificationFeed creates a feed bound to the API client.
func NewNotificationFeed(client *Client, cfg *NotificationFeedConfig) *NotificationFeed {
	f := &NotificationFeed{
		client: client,
		logger: client.logger,
	}
	if cfg != nil {
		f.onAlert = cfg.OnAlert
		f.navigate = cfg.Navigate
	}
	return f
}

// Notifications returns a copy of the current list, newest first.
func (f *NotificationFeed) Notifications() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification{}, f.notifications...)
}

// Unread returns the current unread count.
func (f *NotificationFeed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

// FetchAll replaces the local list with the server's full list and recomputes
// the unread count. Local state the server can't know yet is preserved:
// pushed notifications absent from the response stay in the list, and a local
// read=true never reverts to unread. On failure prior state is left intact.
func (f *NotificationFeed) FetchAll(ctx context.Context) error {
	fetched, err := f.client.Notifications().List(ctx)
	if err != nil {
		f.logger.Warn("notification fetch failed", "error", err)
		return fmt.Errorf("fetch notifications: %w", err)
	}

	f.mu.Lock()
	localRead := make(map[string]bool, len(f.notifications))
	fetchedIDs := make(map[string]bool, len(fetched))
	for _, n := range f.notifications {
		if n.Read {
			localRead[n.ID] = true
		}
	}

	merged := make([]Notification, 0, len(fetched))
	for _, n := range fetched {
		if localRead[n.ID] {
			n.Read = true
		}
		merged = append(merged, n)
		fetchedIDs[n.ID] = true
	}
	// Keep pushed notifications the server hasn't returned yet, ahead of the
	// fetched list like the push handler put them.
	var head []Notification
	for _, n := range f.notifications {
		if !fetchedIDs[n.ID] {
			head = append(head, n)
		}
	}
	f.notifications = append(head, merged...)
	f.unread = countUnread(f.notifications)
	f.mu.Unlock()
	return nil
}

// ApplyPush prepends a pushed notification, bumps the unread count and raises
// the transient alert. A notification already known by ID is ignored, so a
// later FetchAll returning the same ID cannot duplicate it (and vice versa).
func (f *NotificationFeed) ApplyPush(n Notification) {
	f.mu.Lock()
	for _, existing := range f.notifications {
		if existing.ID == n.ID {
			f.mu.Unlock()
			return
		}
	}
	f.notifications = append([]Notification{n}, f.notifications...)
	if !n.Read {
		f.unread++
	}
	f.mu.Unlock()

	if f.onAlert != nil {
		f.onAlert(n)
	}
}

// OnEvent implements Listener for new-notification events.
func (f *NotificationFeed) OnEvent(event string, payload json.RawMessage) {
	if event != EventNewNotification {
		return
	}
	n, err := decodeJSON[Notification](payload)
	if err != nil {
		f.logger.Warn("malformed new-notification payload", "error", err)
		return
	}
	f.ApplyPush(*n)
}

// MarkAsRead optimistically flips the notification to read, decrements the
// unread count (floored at zero), issues the best-effort server call and
// resolves the navigation target. The read flag never reverts, even when the
// server call fails.
func (f *NotificationFeed) MarkAsRead(ctx context.Context, notificationID string) (NavTarget, error) {
	f.mu.Lock()
	var marked *Notification
	for i := range f.notifications {
		if f.notifications[i].ID == notificationID {
			if !f.notifications[i].Read {
				f.notifications[i].Read = true
				if f.unread > 0 {
					f.unread--
				}
			}
			n := f.notifications[i]
			marked = &n
			break
		}
	}
	f.mu.Unlock()

	if marked == nil {
		return NavTarget{Kind: NavNone}, fmt.Errorf("unknown notification %q", notificationID)
	}

	go func() {
		callCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := f.client.Notifications().MarkRead(callCtx, notificationID); err != nil {
			f.logger.Warn("mark-read call failed", "notification", notificationID, "error", err)
		}
	}()

	target := resolveNavTarget(*marked)
	if f.navigate != nil && target.Kind != NavNone {
		f.navigate(target)
	}
	return target, nil
}

// ClearAll empties the list and zeroes the unread count only after the server
// confirms deletion. On failure local state is unchanged.
func (f *NotificationFeed) ClearAll(ctx context.Context) error {
	if err := f.client.Notifications().ClearAll(ctx); err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}
	f.mu.Lock()
	f.notifications = nil
	f.unread = 0
	f.mu.Unlock()
	return nil
}

func countUnread(list []Notification) int {
	count := 0
	for _, n := range list {
		if !n.Read {
			count++
		}
	}
	return count
}
