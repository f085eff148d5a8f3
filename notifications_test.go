package syncspace

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

// ============================================================================
// Test Helpers
// ============================================================================

func testNotification(id string, read bool) Notification {
	return Notification{
		ID:        id,
		Message:   "notification " + id,
		Type:      NotificationGeneric,
		Read:      read,
		CreatedAt: time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC),
	}
}

// notificationServer serves a fixed list and records mutation calls.
type notificationServer struct {
	list        []Notification
	failMark    bool
	failClear   bool
	markedRead  chan string
	clearCalled chan struct{}
}

func newNotificationServer(list []Notification) *notificationServer {
	return &notificationServer{
		list:        list,
		markedRead:  make(chan string, 8),
		clearCalled: make(chan struct{}, 1),
	}
}

func (s *notificationServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/notifications":
			writeAPIData(t, w, s.list)
		case r.Method == http.MethodPatch:
			id := r.URL.Path[len("/api/notifications/") : len(r.URL.Path)-len("/read")]
			s.markedRead <- id
			if s.failMark {
				writeAPIError(w, "internal", "mark failed")
				return
			}
			writeAPIData(t, w, map[string]bool{"ok": true})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/notifications/clear":
			if s.failClear {
				writeAPIError(w, "internal", "clear failed")
				return
			}
			s.clearCalled <- struct{}{}
			writeAPIData(t, w, map[string]bool{"ok": true})
		default:
			http.NotFound(w, r)
		}
	})
}

// ============================================================================
// FetchAll
// ============================================================================

func TestNotificationFeedFetchAll(t *testing.T) {
	t.Run("counts unread from the fetched list", func(t *testing.T) {
		srv := newNotificationServer([]Notification{
			testNotification("n1", false),
			testNotification("n2", true),
			testNotification("n3", false),
			testNotification("n4", true),
			testNotification("n5", false),
		})
		feed := NewNotificationFeed(newTestClient(t, srv.handler(t)), nil)

		if err := feed.FetchAll(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := feed.Unread(); got != 3 {
			t.Fatalf("expected 3 unread, got %d", got)
		}
		if got := len(feed.Notifications()); got != 5 {
			t.Fatalf("expected 5 notifications, got %d", got)
		}
	})

	t.Run("failure leaves prior state intact", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, "internal", "database unavailable")
		}))
		feed := NewNotificationFeed(client, nil)
		feed.ApplyPush(testNotification("n1", false))

		if err := feed.FetchAll(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		if got := len(feed.Notifications()); got != 1 {
			t.Fatalf("expected pushed notification kept, got %d", got)
		}
		if got := feed.Unread(); got != 1 {
			t.Fatalf("expected unread 1, got %d", got)
		}
	})

	t.Run("local read flag is never reverted", func(t *testing.T) {
		// Server still reports n1 unread; the local read must survive.
		srv := newNotificationServer([]Notification{testNotification("n1", false)})
		feed := NewNotificationFeed(newTestClient(t, srv.handler(t)), nil)

		if err := feed.FetchAll(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := feed.MarkAsRead(context.Background(), "n1"); err != nil {
			t.Fatalf("mark read failed: %v", err)
		}

		if err := feed.FetchAll(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		list := feed.Notifications()
		if len(list) != 1 || !list[0].Read {
			t.Fatalf("expected n1 to stay read, got %+v", list)
		}
		if got := feed.Unread(); got != 0 {
			t.Fatalf("expected 0 unread, got %d", got)
		}
	})

	t.Run("pushed notifications absent from the response stay at the head", func(t *testing.T) {
		srv := newNotificationServer([]Notification{testNotification("n1", false)})
		feed := NewNotificationFeed(newTestClient(t, srv.handler(t)), nil)
		feed.ApplyPush(testNotification("n-pushed", false))

		if err := feed.FetchAll(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		list := feed.Notifications()
		if len(list) != 2 || list[0].ID != "n-pushed" || list[1].ID != "n1" {
			t.Fatalf("expected [n-pushed n1], got %+v", list)
		}
		if got := feed.Unread(); got != 2 {
			t.Fatalf("expected 2 unread, got %d", got)
		}
	})
}

// ============================================================================
// ApplyPush
// ============================================================================

func TestNotificationFeedApplyPush(t *testing.T) {
	t.Run("prepends and bumps unread", func(t *testing.T) {
		feed := NewNotificationFeed(newTestClient(t, http.NotFoundHandler()), nil)
		feed.ApplyPush(testNotification("n1", false))
		feed.ApplyPush(testNotification("n2", false))

		list := feed.Notifications()
		if len(list) != 2 || list[0].ID != "n2" {
			t.Fatalf("expected newest first, got %+v", list)
		}
		if got := feed.Unread(); got != 2 {
			t.Fatalf("expected 2 unread, got %d", got)
		}
	})

	t.Run("duplicate ID is ignored", func(t *testing.T) {
		feed := NewNotificationFeed(newTestClient(t, http.NotFoundHandler()), nil)
		feed.ApplyPush(testNotification("n1", false))
		feed.ApplyPush(testNotification("n1", false))

		if got := len(feed.Notifications()); got != 1 {
			t.Fatalf("expected 1 notification, got %d", got)
		}
		if got := feed.Unread(); got != 1 {
			t.Fatalf("expected 1 unread, got %d", got)
		}
	})

	t.Run("push after fetch with the same ID is ignored", func(t *testing.T) {
		srv := newNotificationServer([]Notification{testNotification("n1", false)})
		feed := NewNotificationFeed(newTestClient(t, srv.handler(t)), nil)

		if err := feed.FetchAll(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		feed.ApplyPush(testNotification("n1", false))

		if got := len(feed.Notifications()); got != 1 {
			t.Fatalf("expected 1 notification, got %d", got)
		}
		if got := feed.Unread(); got != 1 {
			t.Fatalf("expected 1 unread, got %d", got)
		}
	})

	t.Run("raises the transient alert", func(t *testing.T) {
		var alerted []string
		feed := NewNotificationFeed(newTestClient(t, http.NotFoundHandler()), &NotificationFeedConfig{
			OnAlert: func(n Notification) { alerted = append(alerted, n.ID) },
		})
		feed.ApplyPush(testNotification("n1", false))
		feed.ApplyPush(testNotification("n1", false))

		if len(alerted) != 1 || alerted[0] != "n1" {
			t.Fatalf("expected one alert for n1, got %v", alerted)
		}
	})

	t.Run("OnEvent decodes new-notification payloads", func(t *testing.T) {
		feed := NewNotificationFeed(newTestClient(t, http.NotFoundHandler()), nil)
		raw, _ := json.Marshal(testNotification("n1", false))

		feed.OnEvent(EventNewMessage, raw) // wrong event, ignored
		feed.OnEvent(EventNewNotification, raw)

		if got := len(feed.Notifications()); got != 1 {
			t.Fatalf("expected 1 notification, got %d", got)
		}
	})
}

// ============================================================================
// MarkAsRead
// ============================================================================

func TestNotificationFeedMarkAsRead(t *testing.T) {
	t.Run("flips read and decrements unread", func(t *testing.T) {
		srv := newNotificationServer([]Notification{
			testNotification("n1", false),
			testNotification("n2", false),
		})
		feed := NewNotificationFeed(newTestClient(t, srv.handler(t)), nil)
		if err := feed.FetchAll(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := feed.MarkAsRead(context.Background(), "n1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := feed.Unread(); got != 1 {
			t.Fatalf("expected 1 unread, got %d", got)
		}

		select {
		case id := <-srv.markedRead:
			if id != "n1" {
				t.Fatalf("expected server call for n1, got %s", id)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for server mark-read call")
		}
	})

	t.Run("read state holds even when the server call fails", func(t *testing.T) {
		srv := newNotificationServer([]Notification{testNotification("n1", false)})
		srv.failMark = true
		feed := NewNotificationFeed(newTestClient(t, srv.handler(t)), nil)
		if err := feed.FetchAll(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := feed.MarkAsRead(context.Background(), "n1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		<-srv.markedRead

		list := feed.Notifications()
		if !list[0].Read {
			t.Fatal("read flag must not revert on server failure")
		}
		if got := feed.Unread(); got != 0 {
			t.Fatalf("expected 0 unread, got %d", got)
		}
	})

	t.Run("marking an already-read notification keeps the count", func(t *testing.T) {
		srv := newNotificationServer([]Notification{
			testNotification("n1", true),
			testNotification("n2", false),
		})
		feed := NewNotificationFeed(newTestClient(t, srv.handler(t)), nil)
		if err := feed.FetchAll(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := feed.MarkAsRead(context.Background(), "n1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := feed.Unread(); got != 1 {
			t.Fatalf("expected unread unchanged at 1, got %d", got)
		}
	})

	t.Run("unknown notification returns an error", func(t *testing.T) {
		feed := NewNotificationFeed(newTestClient(t, http.NotFoundHandler()), nil)
		if _, err := feed.MarkAsRead(context.Background(), "missing"); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("resolves and performs navigation", func(t *testing.T) {
		srv := newNotificationServer(nil)
		var navigated []NavTarget
		feed := NewNotificationFeed(newTestClient(t, srv.handler(t)), &NotificationFeedConfig{
			Navigate: func(target NavTarget) { navigated = append(navigated, target) },
		})
		n := testNotification("n1", false)
		n.WorkspaceID = "ws-42"
		feed.ApplyPush(n)

		target, err := feed.MarkAsRead(context.Background(), "n1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if target.Kind != NavWorkspace || target.ID != "ws-42" {
			t.Fatalf("unexpected target: %+v", target)
		}
		if len(navigated) != 1 || navigated[0].Kind != NavWorkspace {
			t.Fatalf("expected navigate callback, got %v", navigated)
		}
	})
}

// ============================================================================
// ClearAll
// ============================================================================

func TestNotificationFeedClearAll(t *testing.T) {
	t.Run("empties only after server confirmation", func(t *testing.T) {
		srv := newNotificationServer([]Notification{testNotification("n1", false)})
		feed := NewNotificationFeed(newTestClient(t, srv.handler(t)), nil)
		if err := feed.FetchAll(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := feed.ClearAll(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := len(feed.Notifications()); got != 0 {
			t.Fatalf("expected empty list, got %d", got)
		}
		if got := feed.Unread(); got != 0 {
			t.Fatalf("expected 0 unread, got %d", got)
		}
	})

	t.Run("failure leaves local state unchanged", func(t *testing.T) {
		srv := newNotificationServer([]Notification{testNotification("n1", false)})
		srv.failClear = true
		feed := NewNotificationFeed(newTestClient(t, srv.handler(t)), nil)
		if err := feed.FetchAll(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := feed.ClearAll(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		if got := len(feed.Notifications()); got != 1 {
			t.Fatalf("expected list kept, got %d", got)
		}
		if got := feed.Unread(); got != 1 {
			t.Fatalf("expected unread kept, got %d", got)
		}
	})
}

// ============================================================================
// Navigation Precedence
// ============================================================================

func TestResolveNavTarget(t *testing.T) {
	cases := []struct {
		name string
		n    Notification
		want NavTarget
	}{
		{
			name: "invitation wins over everything",
			n: Notification{
				Type: NotificationInvitation, WorkspaceID: "ws-1",
				ProjectID: "p-1", TaskID: "t-1", ActionLink: "https://x",
			},
			want: NavTarget{Kind: NavInvitations},
		},
		{
			name: "workspace beats project and task",
			n:    Notification{Type: NotificationMention, WorkspaceID: "ws-1", ProjectID: "p-1", TaskID: "t-1"},
			want: NavTarget{Kind: NavWorkspace, ID: "ws-1"},
		},
		{
			name: "project beats task",
			n:    Notification{Type: NotificationTask, ProjectID: "p-1", TaskID: "t-1"},
			want: NavTarget{Kind: NavProject, ID: "p-1"},
		},
		{
			name: "task beats link",
			n:    Notification{Type: NotificationTask, TaskID: "t-1", ActionLink: "https://x"},
			want: NavTarget{Kind: NavTask, ID: "t-1"},
		},
		{
			name: "explicit link",
			n:    Notification{Type: NotificationGeneric, ActionLink: "https://x"},
			want: NavTarget{Kind: NavLink, URL: "https://x"},
		},
		{
			name: "nothing to navigate to",
			n:    Notification{Type: NotificationGeneric},
			want: NavTarget{Kind: NavNone},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := resolveNavTarget(tc.n); got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}
