package broadcast

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nwrussi/openquiz-rooms/internal/model"
)

// Broadcaster maintains the per-room subscriber sets and delivers
// room-scoped events to every connection subscribed to a room code
type Broadcaster struct {
	mu     sync.RWMutex
	hubs   map[model.RoomCode]*Hub
	logger *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hubs:   make(map[model.RoomCode]*Hub),
		logger: logger.With(slog.String("component", "broadcast")),
	}
}

// Subscribe registers a connection's event sink for a room code,
// creating the room's hub if it does not exist yet
func (b *Broadcaster) Subscribe(roomCode model.RoomCode, connID ConnectionID, sink chan<- model.Event) {
	b.getOrCreateHub(roomCode).Subscribe(connID, sink)
}

// Unsubscribe removes a connection from a room's subscriber set; idempotent
func (b *Broadcaster) Unsubscribe(roomCode model.RoomCode, connID ConnectionID) {
	b.mu.RLock()
	hub := b.hubs[roomCode]
	b.mu.RUnlock()
	if hub != nil {
		hub.Unsubscribe(connID)
	}
}

// Publish delivers an event tagged with eventType to every subscriber of
// the room code. Publishing to a room with no hub is a no-op.
func (b *Broadcaster) Publish(roomCode model.RoomCode, eventType model.EventType, timestamp time.Time, payload any) {
	b.mu.RLock()
	hub := b.hubs[roomCode]
	b.mu.RUnlock()
	if hub == nil {
		return
	}
	hub.Publish(model.Event{
		Type:      eventType,
		RoomCode:  roomCode,
		Timestamp: timestamp,
		Payload:   payload,
	})
}

// CloseRoom tears down the hub for a deleted room
func (b *Broadcaster) CloseRoom(roomCode model.RoomCode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hub, ok := b.hubs[roomCode]; ok {
		hub.Close()
		delete(b.hubs, roomCode)
		b.logger.Info("hub removed", slog.String("room", string(roomCode)))
	}
}

// SubscriberCount returns the number of connections subscribed to a room
func (b *Broadcaster) SubscriberCount(roomCode model.RoomCode) int {
	b.mu.RLock()
	hub := b.hubs[roomCode]
	b.mu.RUnlock()
	if hub == nil {
		return 0
	}
	return hub.SubscriberCount()
}

// CleanupEmptyHubs removes hubs with no subscribers
func (b *Broadcaster) CleanupEmptyHubs() {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for code, hub := range b.hubs {
		if hub.SubscriberCount() == 0 {
			hub.Close()
			delete(b.hubs, code)
			removed++
		}
	}
	if removed > 0 {
		b.logger.Info("empty hubs cleaned up", slog.Int("removed", removed))
	}
}

func (b *Broadcaster) getOrCreateHub(roomCode model.RoomCode) *Hub {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hub, ok := b.hubs[roomCode]; ok {
		return hub
	}
	hub := NewHub(roomCode, b.logger)
	b.hubs[roomCode] = hub
	return hub
}
