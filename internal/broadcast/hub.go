package broadcast

import (
	"log/slog"
	"sync"

	"github.com/nwrussi/openquiz-rooms/internal/model"
)

// SubscriberBufferSize is the per-subscriber event buffer.
// A subscriber that falls this far behind starts losing events rather
// than blocking the publisher.
const SubscriberBufferSize = 64

// ConnectionID identifies a subscribed connection
type ConnectionID string

// Hub fans events out to every connection subscribed to one room code.
// Subscribe and Publish are synchronized, so a publish issued after a
// subscribe is always delivered to that subscriber, and events published
// to the same room arrive at each subscriber in publish order.
type Hub struct {
	roomCode model.RoomCode
	logger   *slog.Logger

	mu     sync.Mutex
	subs   map[ConnectionID]chan<- model.Event
	closed bool
}

// NewHub creates a new Hub for a room
func NewHub(roomCode model.RoomCode, logger *slog.Logger) *Hub {
	return &Hub{
		roomCode: roomCode,
		logger:   logger.With(slog.String("room", string(roomCode))),
		subs:     make(map[ConnectionID]chan<- model.Event),
	}
}

// Subscribe adds a connection's event sink. Subscribing an already
// subscribed connection replaces its sink (idempotent membership).
func (h *Hub) Subscribe(connID ConnectionID, sink chan<- model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.subs[connID] = sink
	h.logger.Debug("subscriber added",
		slog.String("conn_id", string(connID)),
		slog.Int("total_subscribers", len(h.subs)))
}

// Unsubscribe removes a connection. Unsubscribing an absent connection
// is a no-op. Events already queued on the sink are not retracted.
func (h *Hub) Unsubscribe(connID ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[connID]; !ok {
		return
	}
	delete(h.subs, connID)
	h.logger.Debug("subscriber removed",
		slog.String("conn_id", string(connID)),
		slog.Int("total_subscribers", len(h.subs)))
}

// Publish delivers the event to every current subscriber. Delivery to a
// slow subscriber never blocks: events are dropped when a sink is full.
func (h *Hub) Publish(event model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	dropped := 0
	for connID, sink := range h.subs {
		select {
		case sink <- event:
		default:
			dropped++
			h.logger.Warn("event dropped - subscriber buffer full",
				slog.String("conn_id", string(connID)),
				slog.String("event", string(event.Type)))
		}
	}
	if dropped > 0 {
		h.logger.Warn("broadcast partial failure",
			slog.String("event", string(event.Type)),
			slog.Int("sent", len(h.subs)-dropped),
			slog.Int("dropped", dropped))
	}
}

// Close detaches all subscribers and rejects further subscriptions
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.subs = make(map[ConnectionID]chan<- model.Event)
}

// SubscriberCount returns the number of subscribed connections
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
