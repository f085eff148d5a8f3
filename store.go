package syncspace

import (
	"sort"
	"sync"
	"time"
)

// ============================================================================
// MemoryStore
// ============================================================================

// MemoryStore is a goroutine-safe in-memory store for confirmed messages,
// notifications and per-user preferences (favorited message IDs and the
// has-seen-onboarding flag). Views use it as a read cache; the CLI uses the
// preference surface.
type MemoryStore struct {
	mu            sync.RWMutex
	messages      map[string]map[string]Message // workspaceID -> messageID -> message
	notifications map[string]Notification
	favorites     map[string]map[string]bool // userID -> messageID set
	onboarded     map[string]bool            // userID -> has seen onboarding
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages:      make(map[string]map[string]Message),
		notifications: make(map[string]Notification),
		favorites:     make(map[string]map[string]bool),
		onboarded:     make(map[string]bool),
	}
}

// ── Messages ─────────────────────────────────────────────

// PutMessages upserts confirmed messages by ID. Pending optimistic messages
// are not cached; they belong to the view that created them.
func (s *MemoryStore) PutMessages(workspaceID string, msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.messages[workspaceID]
	if bucket == nil {
		bucket = make(map[string]Message)
		s.messages[workspaceID] = bucket
	}
	for _, m := range msgs {
		if m.Pending {
			continue
		}
		bucket[m.ID] = m
	}
}

// GetMessage returns a cached message, if present.
func (s *MemoryStore) GetMessage(workspaceID, messageID string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[workspaceID][messageID]
	return m, ok
}

// GetMessages returns up to limit cached messages for a workspace, oldest
// first. A non-zero before restricts the result to strictly older messages.
func (s *MemoryStore) GetMessages(workspaceID string, limit int, before time.Time) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Message
	for _, m := range s.messages[workspaceID] {
		if before.IsZero() || m.CreatedAt.Before(before) {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result
}

// DeleteMessage removes a cached message.
func (s *MemoryStore) DeleteMessage(workspaceID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages[workspaceID], messageID)
}

// ── Notifications ────────────────────────────────────────

// PutNotifications upserts notifications by ID. A stored read=true flag is
// never downgraded by a later unread copy.
func (s *MemoryStore) PutNotifications(list []Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range list {
		if existing, ok := s.notifications[n.ID]; ok && existing.Read {
			n.Read = true
		}
		s.notifications[n.ID] = n
	}
}

// GetNotifications returns all stored notifications, newest first.
func (s *MemoryStore) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

// ClearNotifications drops every stored notification.
func (s *MemoryStore) ClearNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = make(map[string]Notification)
}

// ── Preferences ──────────────────────────────────────────

// AddFavorite records a favorited message ID for a user. Idempotent.
func (s *MemoryStore) AddFavorite(userID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.favorites[userID]
	if set == nil {
		set = make(map[string]bool)
		s.favorites[userID] = set
	}
	set[messageID] = true
}

// RemoveFavorite drops a favorited message ID for a user.
func (s *MemoryStore) RemoveFavorite(userID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.favorites[userID], messageID)
}

// IsFavorite reports whether the user has favorited the message.
func (s *MemoryStore) IsFavorite(userID, messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favorites[userID][messageID]
}

// Favorites returns the user's favorited message IDs in sorted order.
func (s *MemoryStore) Favorites(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.favorites[userID]))
	for id := range s.favorites[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetOnboardingSeen marks the user as having completed onboarding. The flag
// only ever transitions to true.
func (s *MemoryStore) SetOnboardingSeen(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onboarded[userID] = true
}

// HasSeenOnboarding reports whether the user has completed onboarding.
func (s *MemoryStore) HasSeenOnboarding(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onboarded[userID]
}
