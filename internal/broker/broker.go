// Package broker provides a minimal best-effort publish/subscribe fan-out
// used by the feed store to notify subscribers of committed appends.
package broker

import (
	"sync"

	"github.com/google/uuid"

	"github.com/solar-social/solar/pkg/logging"
)

// Event is the Go rendering of a StoreKv broadcast: a feed belonging to
// Author advanced to Sequence.
type Event struct {
	Author   string
	Sequence uint64
}

// Hub fans out Events to every current subscriber. A Hub is optional:
// a nil *Hub is a valid "no broker installed" store configuration, and
// Publish on a nil Hub is a no-op.
type Hub struct {
	mu   sync.Mutex
	subs map[string]chan Event
	log  *logging.Logger
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]chan Event),
		log:  logging.GetDefault().Component("broker"),
	}
}

// Subscribe registers a new subscriber with the given channel buffer
// size and returns its receive channel and an unsubscribe function. The
// unsubscribe function is idempotent and safe to call more than once.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan Event, buffer)
	h.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}

	return ch, unsubscribe
}

// Publish broadcasts ev to every current subscriber without blocking. A
// subscriber whose channel is full is skipped and a warning is logged;
// publish never blocks the appending goroutine on a slow reader.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.log.Warn("dropped commit event for slow subscriber", "subscriber", id, "author", ev.Author, "sequence", ev.Sequence)
		}
	}
}
