// Package messaging provides the websocket hub that pushes dashboard
// progress, popup, and session events to connected dashboard clients.
package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/petpeevephobia/solvia/internal/domain/entities/dashboard"
	"github.com/petpeevephobia/solvia/internal/domain/entities/session"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/logging"
)

// Event types pushed over the progress socket.
const (
	EventLoadingShow       = "loading_show"
	EventSuccessShow       = "success_show"
	EventPopupsHide        = "popups_hide"
	EventMetricGroups      = "metric_groups"
	EventSnapshotApplied   = "snapshot_applied"
	EventEmptyState        = "empty_state"
	EventIdentity          = "identity"
	EventSessionTerminated = "session_terminated"
	EventHeartbeat         = "heartbeat"
)

// Event is the envelope for every message on the progress socket.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// ProgressClient represents a single connected dashboard client.
type ProgressClient struct {
	Conn *websocket.Conn
	Send chan []byte
}

// ProgressBroadcaster manages connected dashboard clients and fans events
// out to all of them. It implements the progress and session event surfaces
// consumed by the application services.
type ProgressBroadcaster struct {
	clients    map[*ProgressClient]bool
	register   chan *ProgressClient
	unregister chan *ProgressClient
	broadcast  chan []byte
	shutdown   chan struct{}

	heartbeat  time.Duration
	sendBuffer int
	maxClients int

	// Last identity and group states, replayed to newly connected clients
	// so a dashboard attaching mid-load sees current progress.
	lastIdentity *session.Identity
	lastGroups   []dashboard.Group

	logger *logging.ChanneledLogger
	mu     sync.RWMutex
}

// NewProgressBroadcaster creates a broadcaster. Run must be started as a
// goroutine before clients connect.
func NewProgressBroadcaster(heartbeat time.Duration, sendBuffer, maxClients int, logger *logging.ChanneledLogger) *ProgressBroadcaster {
	return &ProgressBroadcaster{
		clients:    make(map[*ProgressClient]bool),
		register:   make(chan *ProgressClient),
		unregister: make(chan *ProgressClient),
		broadcast:  make(chan []byte, 64),
		shutdown:   make(chan struct{}),
		heartbeat:  heartbeat,
		sendBuffer: sendBuffer,
		maxClients: maxClients,
		logger:     logger,
	}
}

// NewClient wraps a websocket connection for registration.
func (b *ProgressBroadcaster) NewClient(conn *websocket.Conn) *ProgressClient {
	return &ProgressClient{
		Conn: conn,
		Send: make(chan []byte, b.sendBuffer),
	}
}

// Run is the broadcaster's main loop. Runs until Shutdown is called.
func (b *ProgressBroadcaster) Run() {
	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			if b.maxClients > 0 && len(b.clients) >= b.maxClients {
				b.mu.Unlock()
				b.logger.Socket().Warn("Progress client rejected, connection limit reached", "limit", b.maxClients)
				close(client.Send)
				continue
			}
			b.clients[client] = true
			replay := b.replayEvents()
			b.mu.Unlock()

			for _, message := range replay {
				select {
				case client.Send <- message:
				default:
				}
			}
			b.logger.Socket().Info("Progress client registered", "clients", b.ClientCount())

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Send)
			}
			b.mu.Unlock()
			b.logger.Socket().Info("Progress client unregistered", "clients", b.ClientCount())

		case message := <-b.broadcast:
			b.fanOut(message)

		case <-ticker.C:
			b.emit(EventHeartbeat, nil)

		case <-b.shutdown:
			b.mu.Lock()
			for client := range b.clients {
				close(client.Send)
				delete(b.clients, client)
			}
			b.mu.Unlock()
			return
		}
	}
}

// Register queues a client for registration.
func (b *ProgressBroadcaster) Register(client *ProgressClient) {
	b.register <- client
}

// Unregister queues a client for unregistration.
func (b *ProgressBroadcaster) Unregister(client *ProgressClient) {
	b.unregister <- client
}

// Shutdown stops the run loop and disconnects all clients.
func (b *ProgressBroadcaster) Shutdown() {
	close(b.shutdown)
}

// ClientCount returns the number of connected clients.
func (b *ProgressBroadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// replayEvents builds the catch-up messages for a new client. Caller holds mu.
func (b *ProgressBroadcaster) replayEvents() [][]byte {
	var replay [][]byte
	if b.lastIdentity != nil {
		if message, err := json.Marshal(Event{Type: EventIdentity, At: time.Now().UTC(), Data: b.lastIdentity}); err == nil {
			replay = append(replay, message)
		}
	}
	if b.lastGroups != nil {
		if message, err := json.Marshal(Event{Type: EventMetricGroups, At: time.Now().UTC(), Data: b.lastGroups}); err == nil {
			replay = append(replay, message)
		}
	}
	return replay
}

// fanOut delivers a message to every client, dropping it for clients whose
// send buffer is full rather than blocking the loop.
func (b *ProgressBroadcaster) fanOut(message []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client.Send <- message:
		default:
		}
	}
}

// emit marshals and queues an event for broadcast.
func (b *ProgressBroadcaster) emit(eventType string, data any) {
	message, err := json.Marshal(Event{Type: eventType, At: time.Now().UTC(), Data: data})
	if err != nil {
		b.logger.Socket().Error("Failed to marshal progress event", "type", eventType, "error", err.Error())
		return
	}
	select {
	case b.broadcast <- message:
	default:
		b.logger.Socket().Warn("Broadcast queue full, dropping event", "type", eventType)
	}
}

// ShowLoadingPopup signals the start of a fresh-load sequence.
func (b *ProgressBroadcaster) ShowLoadingPopup() {
	b.emit(EventLoadingShow, nil)
}

// UpdateGroups pushes the current metric-group states.
func (b *ProgressBroadcaster) UpdateGroups(groups []dashboard.Group) {
	b.mu.Lock()
	b.lastGroups = groups
	b.mu.Unlock()
	b.emit(EventMetricGroups, groups)
}

// ShowSuccessPopup signals load completion with a visible countdown.
func (b *ProgressBroadcaster) ShowSuccessPopup(countdownSeconds int) {
	b.emit(EventSuccessShow, map[string]int{"countdownSeconds": countdownSeconds})
}

// HidePopups force-hides both popups. Safe to emit more than once.
func (b *ProgressBroadcaster) HidePopups() {
	b.emit(EventPopupsHide, nil)
}

// ApplySnapshot pushes a full dashboard payload to the presentation layer.
func (b *ProgressBroadcaster) ApplySnapshot(snapshot *dashboard.Snapshot, fromCache bool) {
	b.emit(EventSnapshotApplied, map[string]any{
		"fromCache": fromCache,
		"snapshot":  snapshot,
	})
}

// ApplyEmptyState tells the presentation layer to render its empty state.
func (b *ProgressBroadcaster) ApplyEmptyState(reason string) {
	b.emit(EventEmptyState, map[string]string{"reason": reason})
}

// BroadcastIdentity pushes the identity display projection.
func (b *ProgressBroadcaster) BroadcastIdentity(identity session.Identity) {
	b.mu.Lock()
	b.lastIdentity = &identity
	b.mu.Unlock()
	b.emit(EventIdentity, identity)
}

// BroadcastSessionTerminated tells every client to navigate to login.
func (b *ProgressBroadcaster) BroadcastSessionTerminated(reason string) {
	b.mu.Lock()
	b.lastIdentity = nil
	b.lastGroups = nil
	b.mu.Unlock()
	b.emit(EventSessionTerminated, map[string]string{"reason": reason})
}
