package syncspace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ============================================================================
// Conversation View
// ============================================================================

// ViewState is the loading state of a conversation view.
type ViewState string

const (
	ViewIdle        ViewState = "idle"
	ViewLoading     ViewState = "loading"
	ViewReady       ViewState = "ready"
	ViewLoadingMore ViewState = "loading-more"
)

// DefaultMergeWindow is how far apart an optimistic message and its
// server-confirmed counterpart may be timestamped and still be treated as the
// same message.
const DefaultMergeWindow = 30 * time.Second

// ConversationConfig tunes a conversation view.
type ConversationConfig struct {
	// MergeWindow overrides DefaultMergeWindow. The content+sender+window
	// match is a best-effort heuristic: two genuinely distinct messages with
	// identical text from the same sender inside the window collapse into
	// one. Accepted limitation.
	MergeWindow time.Duration

	// PageSize is the history page size (default 50).
	PageSize int

	// Cache, when set, receives confirmed messages for local reads.
	Cache *MemoryStore

	// OnSendFailed is invoked with the original content when an optimistic
	// send is rolled back, so the UI can restore the input field.
	OnSendFailed func(content string, err error)
}

// ConversationView maintains the single displayable message list for one
// workspace channel under three concurrent inputs: optimistic local sends,
// real-time pushes, and paginated history fetches.
//
// It implements Listener and can be registered directly for new-message
// events; pushes for other workspaces are ignored.
type ConversationView struct {
	client       *Client
	logger       *slog.Logger
	workspaceID  string
	user         User
	mergeWindow  time.Duration
	pageSize     int
	cache        *MemoryStore
	onSendFailed func(string, error)

	mu            sync.Mutex
	state         ViewState
	messages      []Message
	noMoreHistory bool
}

// NewConversationView creates a view for one workspace channel. user is the
// current authenticated user from the session collaborator.
func NewConversationView(client *Client, workspaceID string, user User, cfg *ConversationConfig) *ConversationView {
	v := &ConversationView{
		client:      client,
		logger:      client.logger,
		workspaceID: workspaceID,
		user:        user,
		mergeWindow: DefaultMergeWindow,
		pageSize:    50,
		state:       ViewIdle,
	}
	if cfg != nil {
		if cfg.MergeWindow > 0 {
			v.mergeWindow = cfg.MergeWindow
		}
		if cfg.PageSize > 0 {
			v.pageSize = cfg.PageSize
		}
		v.cache = cfg.Cache
		v.onSendFailed = cfg.OnSendFailed
	}
	return v
}

// State returns the view's current loading state.
func (v *ConversationView) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Messages returns a copy of the reconciled message list, oldest first.
func (v *ConversationView) Messages() []Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Message{}, v.messages...)
}

// HasMoreHistory reports whether older history may still be loaded.
func (v *ConversationView) HasMoreHistory() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.noMoreHistory
}

// ============================================================================
// History loading
// ============================================================================

// LoadInitial fetches the newest history page. It is a no-op unless the view
// is Idle. The fetch is cancelled with ctx; on failure the view returns to
// Idle with its prior (empty) state intact.
func (v *ConversationView) LoadInitial(ctx context.Context) error {
	v.mu.Lock()
	if v.state != ViewIdle {
		v.mu.Unlock()
		return nil
	}
	v.state = ViewLoading
	v.mu.Unlock()

	page, err := v.client.Messages().History(ctx, v.workspaceID, &HistoryOptions{Limit: v.pageSize})
	if err != nil {
		v.mu.Lock()
		v.state = ViewIdle
		v.mu.Unlock()
		return fmt.Errorf("initial history load: %w", err)
	}

	fetched := append([]Message{}, page.Messages...)
	sort.SliceStable(fetched, func(i, j int) bool {
		return fetched[i].CreatedAt.Before(fetched[j].CreatedAt)
	})

	v.mu.Lock()
	seen := v.idSet()
	for _, m := range fetched {
		if !seen[m.ID] {
			v.messages = append(v.messages, m)
			seen[m.ID] = true
		}
	}
	sort.SliceStable(v.messages, func(i, j int) bool {
		return v.messages[i].CreatedAt.Before(v.messages[j].CreatedAt)
	})
	if len(page.Messages) == 0 || !page.HasMore {
		v.noMoreHistory = true
	}
	v.state = ViewReady
	v.mu.Unlock()

	v.cachePut(fetched)
	return nil
}

// LoadOlder fetches the page strictly older than the oldest loaded message
// (scroll-to-top). It is a no-op unless the view is Ready with history left.
// An empty page latches the no-more-history flag and disables further loads.
func (v *ConversationView) LoadOlder(ctx context.Context) error {
	v.mu.Lock()
	if v.state != ViewReady || v.noMoreHistory {
		v.mu.Unlock()
		return nil
	}
	var before time.Time
	if len(v.messages) > 0 {
		before = v.messages[0].CreatedAt
	}
	v.state = ViewLoadingMore
	v.mu.Unlock()

	page, err := v.client.Messages().History(ctx, v.workspaceID, &HistoryOptions{
		Before: before,
		Limit:  v.pageSize,
	})
	if err != nil {
		v.mu.Lock()
		v.state = ViewReady
		v.mu.Unlock()
		return fmt.Errorf("history page load: %w", err)
	}

	v.mu.Lock()
	if len(page.Messages) == 0 || !page.HasMore {
		v.noMoreHistory = true
	}
	seen := v.idSet()
	var older []Message
	for _, m := range page.Messages {
		if !seen[m.ID] {
			older = append(older, m)
			seen[m.ID] = true
		}
	}
	sort.SliceStable(older, func(i, j int) bool {
		return older[i].CreatedAt.Before(older[j].CreatedAt)
	})
	v.messages = append(older, v.messages...)
	v.state = ViewReady
	v.mu.Unlock()

	v.cachePut(older)
	return nil
}

// idSet must be called with v.mu held.
func (v *ConversationView) idSet() map[string]bool {
	seen := make(map[string]bool, len(v.messages))
	for _, m := range v.messages {
		seen[m.ID] = true
	}
	return seen
}

// ============================================================================
// Inbound push
// ============================================================================

// ApplyPush reconciles an inbound server-confirmed message:
//
//  1. If the server ID is already present, the push is discarded (idempotent
//     under duplicate delivery).
//  2. Otherwise a pending message with equal content, equal sender and a
//     timestamp within the merge window is replaced in place, keeping its
//     position, so the sender's own message never duplicates.
//  3. Otherwise the message is appended.
//
// Messages from other users are acknowledged via a fire-and-forget read
// receipt; receipt failures are logged, never surfaced.
func (v *ConversationView) ApplyPush(m Message) {
	m.Pending = false

	v.mu.Lock()
	// ID check runs over the whole list before any merge, so a copy of m.ID
	// sitting after a matching pending entry can never end up duplicated.
	for i := range v.messages {
		if v.messages[i].ID == m.ID {
			v.mu.Unlock()
			return
		}
	}
	merged := false
	for i := range v.messages {
		if v.messages[i].Pending &&
			v.messages[i].Content == m.Content &&
			v.messages[i].SenderID == m.SenderID &&
			withinWindow(v.messages[i].CreatedAt, m.CreatedAt, v.mergeWindow) {
			v.messages[i] = m
			merged = true
			break
		}
	}
	if !merged {
		v.messages = append(v.messages, m)
	}
	v.mu.Unlock()

	v.cachePut([]Message{m})

	if m.SenderID != v.user.ID {
		go v.markDelivered(m.ID)
	}
}

func (v *ConversationView) markDelivered(messageID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := v.client.Messages().MarkRead(ctx, v.workspaceID, []string{messageID}); err != nil {
		v.logger.Warn("read receipt failed", "workspace", v.workspaceID, "message", messageID, "error", err)
	}
}

// OnEvent implements Listener: new-message events for this view's workspace
// feed ApplyPush, everything else is ignored.
func (v *ConversationView) OnEvent(event string, payload json.RawMessage) {
	if event != EventNewMessage {
		return
	}
	msg, err := decodeJSON[Message](payload)
	if err != nil {
		v.logger.Warn("malformed new-message payload", "error", err)
		return
	}
	if msg.WorkspaceID != v.workspaceID {
		return
	}
	v.ApplyPush(*msg)
}

// ============================================================================
// Optimistic send
// ============================================================================

// Send appends an optimistic pending message, issues the send request and
// reconciles the outcome. On success the pending entry is replaced by the
// server-confirmed message. On failure the pending entry is removed and
// OnSendFailed receives the content so the UI can restore the input.
//
// Send is deliberately not tied to a view lifetime: an in-flight send
// completes and reconciles even if the owning view has unmounted.
func (v *ConversationView) Send(ctx context.Context, content string) (*Message, error) {
	pending := Message{
		ID:          fmt.Sprintf("temp-%d", time.Now().UnixMilli()),
		WorkspaceID: v.workspaceID,
		Content:     content,
		SenderID:    v.user.ID,
		SenderName:  v.user.DisplayName,
		CreatedAt:   time.Now(),
		Pending:     true,
	}

	v.mu.Lock()
	v.messages = append(v.messages, pending)
	v.mu.Unlock()

	confirmed, err := v.client.Messages().Send(ctx, v.workspaceID, content)
	if err != nil {
		v.mu.Lock()
		for i := range v.messages {
			if v.messages[i].ID == pending.ID {
				v.messages = append(v.messages[:i], v.messages[i+1:]...)
				break
			}
		}
		v.mu.Unlock()
		if v.onSendFailed != nil {
			v.onSendFailed(content, err)
		}
		return nil, fmt.Errorf("send message: %w", err)
	}
	confirmed.Pending = false

	v.mu.Lock()
	replaced := false
	exists := false
	for i := range v.messages {
		if v.messages[i].ID == confirmed.ID {
			exists = true
		}
	}
	for i := range v.messages {
		if v.messages[i].ID == pending.ID {
			if exists {
				// A push beat us here and already merged the pending copy
				// under the server ID; drop the stale temp entry.
				v.messages = append(v.messages[:i], v.messages[i+1:]...)
			} else {
				v.messages[i] = *confirmed
			}
			replaced = true
			break
		}
	}
	if !replaced && !exists {
		v.messages = append(v.messages, *confirmed)
	}
	v.mu.Unlock()

	v.cachePut([]Message{*confirmed})
	return confirmed, nil
}

func (v *ConversationView) cachePut(msgs []Message) {
	if v.cache == nil || len(msgs) == 0 {
		return
	}
	v.cache.PutMessages(v.workspaceID, msgs)
}

func withinWindow(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= window
}

// ============================================================================
// Display grouping
// ============================================================================

// MessageGroup is one calendar day of messages in the viewer's time zone.
type MessageGroup struct {
	Date     time.Time // midnight, local time
	Messages []Message
}

// GroupMessagesByDate partitions messages into calendar-day buckets in the
// given location (local time when loc is nil), chronological within each
// bucket and buckets ordered oldest first. Pure function; the input is not
// mutated.
func GroupMessagesByDate(msgs []Message, loc *time.Location) []MessageGroup {
	if loc == nil {
		loc = time.Local
	}
	sorted := append([]Message{}, msgs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	var groups []MessageGroup
	for _, m := range sorted {
		t := m.CreatedAt.In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		if len(groups) == 0 || !groups[len(groups)-1].Date.Equal(day) {
			groups = append(groups, MessageGroup{Date: day})
		}
		groups[len(groups)-1].Messages = append(groups[len(groups)-1].Messages, m)
	}
	return groups
}
