// Package broadcast fans job events out to status-stream subscribers.
package broadcast

import (
	"log/slog"
	"sync"

	"github.com/veranemoloko/fetchd/internal/domain"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that stays this far behind is considered broken and gets pruned.
const subscriberBuffer = 64

// Hub delivers every published event to every live subscriber. Delivery
// is best-effort: a slow or dead subscriber never blocks the publisher or
// other subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan domain.Event
	nextID int
	closed bool
	logger *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[int]chan domain.Event),
		logger: logger,
	}
}

// Subscribe registers a new subscriber. The initial events are queued
// first so a late subscriber reconstructs full current state before
// receiving live transitions. The returned cancel func must be called
// when the subscriber goes away.
func (h *Hub) Subscribe(initial []domain.Event) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer+len(initial))
	for _, evt := range initial {
		ch <- evt
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	h.logger.Debug("subscriber registered", "subscriber_id", id, "initial_events", len(initial))

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
}

// Publish delivers an event to all subscribers without blocking. A
// subscriber whose buffer is full is dropped.
func (h *Hub) Publish(evt domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			delete(h.subs, id)
			close(ch)
			h.logger.Warn("subscriber pruned due to backpressure", "subscriber_id", id)
		}
	}
}

// Close drops all subscribers. Further Subscribe calls return a closed
// channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
