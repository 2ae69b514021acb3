// Package live pushes ledger lifecycle events to connected WebSocket
// clients. The hub implements domain.Notifier, so services broadcast
// without knowing whether anyone is listening.
package live

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/reckon/internal/domain"
)

// subscriberBuffer is the per-client event backlog. A client that falls
// further behind starts losing events rather than stalling the broadcaster.
const subscriberBuffer = 16

// Event is the wire format pushed to WebSocket clients.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub fans events out to subscribers
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	closed      bool
	log         zerolog.Logger
}

// NewHub creates a new event hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[chan Event]struct{}),
		log:         log.With().Str("component", "live_hub").Logger(),
	}
}

// Broadcast delivers an event to every subscriber. Sends never block: a
// subscriber with a full backlog misses the event.
func (h *Hub) Broadcast(event string, payload interface{}) {
	ev := Event{
		Type:      event,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			h.log.Warn().Str("event", event).Msg("Dropping event for slow subscriber")
		}
	}
}

// Subscribe registers a new listener. The returned cancel function must be
// called when the listener goes away; it closes the event channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subscribers[ch] = struct{}{}

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// SubscriberCount returns the number of connected listeners.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close shuts the hub down and disconnects every subscriber. Broadcasts
// after Close are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true

	for ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = make(map[chan Event]struct{})
	h.log.Debug().Msg("Live hub closed")
}

// Ensure Hub implements domain.Notifier
var _ domain.Notifier = (*Hub)(nil)
