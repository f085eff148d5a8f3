package syncspace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// ============================================================================
// Event Names & Wire Format
// ============================================================================

// Event names carried on the real-time connection.
const (
	EventNewMessage           = "new-message"
	EventUserTyping           = "user-typing"
	EventNewNotification      = "new-notification"
	EventJoinWorkspaceChat    = "join-workspace-chat"
	EventLeaveWorkspaceChat   = "leave-workspace-chat"
	EventJoinNotificationRoom = "join-notification-room"
	EventTypingChat           = "typing-chat"
)

// Envelope is the wire format for all real-time events.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TypingPayload is carried by user-typing and typing-chat events.
type TypingPayload struct {
	WorkspaceID string `json:"workspaceId"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName,omitempty"`
}

// RoomPayload is carried by room join/leave events.
type RoomPayload struct {
	UserID      string `json:"userId"`
	WorkspaceID string `json:"workspaceId,omitempty"`
}

// Listener receives real-time events. Listeners are tracked by identity
// (interface equality), so one view's removal cannot unhook another view's
// listener for the same event, and registering the same listener twice is a
// no-op.
type Listener interface {
	OnEvent(event string, payload json.RawMessage)
}

// ListenerFunc adapts a plain function to the Listener interface. Register
// the same *ListenerFunc pointer you intend to pass to Off:
//
//	lf := syncspace.ListenerFunc(func(event string, payload json.RawMessage) { ... })
//	rt.On(syncspace.EventNewMessage, &lf)
//	defer rt.Off(syncspace.EventNewMessage, &lf)
type ListenerFunc func(event string, payload json.RawMessage)

func (f *ListenerFunc) OnEvent(event string, payload json.RawMessage) {
	(*f)(event, payload)
}

// ============================================================================
// Configuration
// ============================================================================

// RealtimeConfig configures the real-time client.
//
// Reconnection uses a fixed short delay between a bounded number of attempts.
// There is deliberately no background retry loop: a dropped connection stays
// down until a caller invokes Reconnect.
type RealtimeConfig struct {
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	DialTimeout          time.Duration
	WriteTimeout         time.Duration
}

func (c *RealtimeConfig) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// ============================================================================
// Listener Registry
// ============================================================================

// listenerRegistry is the durable event → listener table. It is the source of
// truth for subscriptions; any live connection's dispatch table is a
// projection of it, refreshed on every (re)connect.
type listenerRegistry struct {
	mu     sync.Mutex
	events map[string][]Listener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{events: make(map[string][]Listener)}
}

// add appends the listener unless the same identity is already registered.
// Reports whether the listener was newly added.
func (r *listenerRegistry) add(event string, l Listener) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.events[event] {
		if existing == l {
			return false
		}
	}
	r.events[event] = append(r.events[event], l)
	return true
}

// remove deletes the listener identity, if present.
func (r *listenerRegistry) remove(event string, l Listener) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	listeners := r.events[event]
	for i, existing := range listeners {
		if existing == l {
			r.events[event] = append(listeners[:i:i], listeners[i+1:]...)
			if len(r.events[event]) == 0 {
				delete(r.events, event)
			}
			return true
		}
	}
	return false
}

// snapshot copies the full table, preserving registration order per event.
func (r *listenerRegistry) snapshot() map[string][]Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]Listener, len(r.events))
	for event, listeners := range r.events {
		out[event] = append([]Listener{}, listeners...)
	}
	return out
}

// ============================================================================
// Connection
// ============================================================================

// rtConn is one live transport plus its projected dispatch table.
type rtConn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc

	mu          sync.Mutex
	listeners   map[string][]Listener
	intentional bool

	// Serializes writes; the websocket permits only one concurrent writer.
	wmu sync.Mutex
}

func (c *rtConn) attach(event string, l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.listeners[event] {
		if existing == l {
			return
		}
	}
	c.listeners[event] = append(c.listeners[event], l)
}

func (c *rtConn) detach(event string, l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	listeners := c.listeners[event]
	for i, existing := range listeners {
		if existing == l {
			c.listeners[event] = append(listeners[:i:i], listeners[i+1:]...)
			return
		}
	}
}

// dispatch invokes listeners synchronously so a given connection delivers
// events as a single ordered stream. Listener panics are recovered.
func (c *rtConn) dispatch(env Envelope, logger *slog.Logger) {
	c.mu.Lock()
	listeners := append([]Listener{}, c.listeners[env.Event]...)
	c.mu.Unlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("realtime listener panic", "event", env.Event, "panic", r)
				}
			}()
			l.OnEvent(env.Event, env.Payload)
		}()
	}
}

func (c *rtConn) markIntentional() {
	c.mu.Lock()
	c.intentional = true
	c.mu.Unlock()
}

func (c *rtConn) isIntentional() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intentional
}

// ============================================================================
// RealtimeClient
// ============================================================================

// RealtimeClient owns the single live transport to the Syncspace real-time
// endpoint and keeps subscriptions durable across reconnects.
//
// One instance serves the whole application; construct it once at the
// composition root via Client.Realtime and share it between views.
type RealtimeClient struct {
	client   *Client
	config   *RealtimeConfig
	logger   *slog.Logger
	registry *listenerRegistry

	// Serializes dial attempts so two racing Initialize calls cannot each
	// open a transport.
	connectMu sync.Mutex

	mu           sync.Mutex
	conn         *rtConn
	userID       string
	connected    bool
	reconnecting bool
}

func newRealtimeClient(c *Client, cfg *RealtimeConfig) *RealtimeClient {
	return &RealtimeClient{
		client:   c,
		config:   cfg,
		logger:   c.logger,
		registry: newListenerRegistry(),
	}
}

// On registers a durable listener for the event. If a transport is live the
// listener is also attached to it immediately. Registering the same listener
// twice for one event is a no-op.
func (rt *RealtimeClient) On(event string, l Listener) {
	if !rt.registry.add(event, l) {
		return
	}
	rt.mu.Lock()
	conn := rt.conn
	rt.mu.Unlock()
	if conn != nil {
		conn.attach(event, l)
	}
}

// Off removes the listener from the durable registry and from the live
// transport if one exists.
func (rt *RealtimeClient) Off(event string, l Listener) {
	rt.registry.remove(event, l)
	rt.mu.Lock()
	conn := rt.conn
	rt.mu.Unlock()
	if conn != nil {
		conn.detach(event, l)
	}
}

// Connected reports whether a live transport currently exists. Callers use
// this to decide whether to invoke Reconnect when a real-time surface mounts.
func (rt *RealtimeClient) Connected() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.connected
}

// Initialize opens the real-time connection for the given user. If a
// connected transport already exists the call is a no-op. Concurrent calls
// are serialized; the loser observes the winner's connection and returns nil
// instead of dialing a second transport. The stored listener table is applied
// to the new connection before any inbound event is dispatched, so
// subscribers never lose events to a registration race after a reconnect.
func (rt *RealtimeClient) Initialize(ctx context.Context, userID string) error {
	rt.connectMu.Lock()
	defer rt.connectMu.Unlock()

	rt.mu.Lock()
	if rt.connected && rt.conn != nil {
		rt.mu.Unlock()
		return nil
	}
	rt.userID = userID
	rt.mu.Unlock()

	wsURL := strings.Replace(rt.client.baseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/rt?userId=" + url.QueryEscape(userID)

	dialCtx, cancelDial := context.WithTimeout(ctx, rt.config.DialTimeout)
	defer cancelDial()

	ws, _, err := websocket.Dial(dialCtx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("realtime dial: %w", err)
	}

	// The read loop outlives the caller's context; teardown happens through
	// Disconnect or a transport-level failure.
	connCtx, cancel := context.WithCancel(context.Background())
	conn := &rtConn{ws: ws, cancel: cancel}

	// Snapshot and publish under one lock: a listener registered mid-connect
	// either lands in the snapshot or sees rt.conn and attaches itself.
	rt.mu.Lock()
	conn.listeners = rt.registry.snapshot()
	rt.conn = conn
	rt.connected = true
	rt.reconnecting = false
	rt.mu.Unlock()

	rt.Emit(EventJoinNotificationRoom, RoomPayload{UserID: userID})

	go rt.readLoop(connCtx, conn)

	rt.logger.Debug("realtime connected", "user", userID)
	return nil
}

// Reconnect re-establishes a dropped connection for the last known user,
// waiting a fixed delay before each of a bounded number of attempts. It is a
// no-op when already reconnecting, already connected, or when no user is
// known (e.g. after logout).
func (rt *RealtimeClient) Reconnect(ctx context.Context) error {
	rt.mu.Lock()
	if rt.reconnecting || rt.connected || rt.userID == "" {
		rt.mu.Unlock()
		return nil
	}
	rt.reconnecting = true
	userID := rt.userID
	rt.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= rt.config.MaxReconnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			rt.clearReconnecting()
			return ctx.Err()
		case <-time.After(rt.config.ReconnectDelay):
		}

		if err := rt.Initialize(ctx, userID); err != nil {
			lastErr = err
			rt.logger.Warn("realtime reconnect attempt failed",
				"attempt", attempt, "user", userID, "error", err)
			continue
		}
		return nil
	}

	rt.clearReconnecting()
	return fmt.Errorf("reconnect gave up after %d attempts: %w",
		rt.config.MaxReconnectAttempts, lastErr)
}

func (rt *RealtimeClient) clearReconnecting() {
	rt.mu.Lock()
	rt.reconnecting = false
	rt.mu.Unlock()
}

// Emit sends an event if a live transport exists and reports whether the
// send was attempted. Events are never queued while disconnected.
func (rt *RealtimeClient) Emit(event string, payload interface{}) bool {
	rt.mu.Lock()
	conn := rt.conn
	connected := rt.connected
	rt.mu.Unlock()

	if !connected || conn == nil {
		return false
	}

	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			rt.logger.Error("realtime payload marshal failed", "event", event, "error", err)
			return false
		}
		env.Payload = data
	}

	data, err := json.Marshal(env)
	if err != nil {
		rt.logger.Error("realtime envelope marshal failed", "event", event, "error", err)
		return false
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), rt.config.WriteTimeout)
	defer cancel()

	conn.wmu.Lock()
	err = conn.ws.Write(writeCtx, websocket.MessageText, data)
	conn.wmu.Unlock()
	if err != nil {
		rt.logger.Warn("realtime emit failed", "event", event, "error", err)
	}
	return true
}

// Disconnect tears the connection down explicitly (e.g. on logout). The
// listener registry is preserved; connection and user state are cleared.
func (rt *RealtimeClient) Disconnect() {
	rt.mu.Lock()
	conn := rt.conn
	rt.conn = nil
	rt.connected = false
	rt.reconnecting = false
	rt.userID = ""
	rt.mu.Unlock()

	if conn != nil {
		conn.markIntentional()
		conn.cancel()
		_ = conn.ws.Close(websocket.StatusNormalClosure, "client disconnect")
	}
}

// JoinWorkspaceChat subscribes this connection to a workspace channel.
func (rt *RealtimeClient) JoinWorkspaceChat(workspaceID string) bool {
	return rt.Emit(EventJoinWorkspaceChat, RoomPayload{UserID: rt.currentUserID(), WorkspaceID: workspaceID})
}

// LeaveWorkspaceChat unsubscribes this connection from a workspace channel.
func (rt *RealtimeClient) LeaveWorkspaceChat(workspaceID string) bool {
	return rt.Emit(EventLeaveWorkspaceChat, RoomPayload{UserID: rt.currentUserID(), WorkspaceID: workspaceID})
}

// SendTyping broadcasts a typing indicator for a workspace channel.
func (rt *RealtimeClient) SendTyping(workspaceID, userName string) bool {
	return rt.Emit(EventTypingChat, TypingPayload{
		WorkspaceID: workspaceID,
		UserID:      rt.currentUserID(),
		UserName:    userName,
	})
}

func (rt *RealtimeClient) currentUserID() string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.userID
}

func (rt *RealtimeClient) readLoop(ctx context.Context, conn *rtConn) {
	for {
		_, data, err := conn.ws.Read(ctx)
		if err != nil {
			if conn.isIntentional() {
				return
			}

			rt.mu.Lock()
			if rt.conn == conn {
				rt.conn = nil
				rt.connected = false
			}
			rt.mu.Unlock()

			rt.logger.Warn("realtime connection lost", "error", err)
			return
		}

		var env Envelope
		if json.Unmarshal(data, &env) != nil || env.Event == "" {
			continue
		}
		conn.dispatch(env, rt.logger)
	}
}
