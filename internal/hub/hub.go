// Package hub fans out "image saved" events to subscribers.
// It is transport-agnostic: the RPC Watch stream registers one subscriber per
// client, and the poller publishes through the Notifier method ImageSaved.
package hub

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"go.klb.dev/snaphub/internal/store"
)

// Event announces a newly stored image.
type Event struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	CreatedAt int64  `json:"created_at"`
}

// Subscriber is anything that can receive events from the hub.
type Subscriber interface {
	ID() string
	// Send delivers an event. Must be non-blocking.
	Send(Event)
}

// Hub routes events to all registered subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]Subscriber
	latest *Event
	sent   atomic.Uint64
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{subs: make(map[string]Subscriber)}
}

// Register adds a subscriber. It receives only events published afterwards.
func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	h.subs[s.ID()] = s
	total := len(h.subs)
	h.mu.Unlock()

	slog.Info("subscriber registered", "subscriber", s.ID(), "total", total)
}

// Unregister removes a subscriber.
func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	delete(h.subs, s.ID())
	total := len(h.subs)
	h.mu.Unlock()

	slog.Info("subscriber unregistered", "subscriber", s.ID(), "total", total)
}

// Publish records ev as the latest event and delivers it to every subscriber.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	h.latest = &ev
	targets := make([]Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.Send(ev)
	}
	h.sent.Add(1)
	slog.Debug("event published", "id", ev.ID, "subscribers", len(targets))
}

// ImageSaved publishes rec. It satisfies poller.Notifier.
func (h *Hub) ImageSaved(rec store.Record) {
	h.Publish(Event{ID: rec.ID, Path: rec.Path, CreatedAt: rec.CreatedAt})
}

// Latest returns the most recently published event.
func (h *Hub) Latest() (Event, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return Event{}, false
	}
	return *h.latest, true
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Published returns how many events have been published.
func (h *Hub) Published() uint64 { return h.sent.Load() }

// ChanSubscriber buffers events on a channel. When the buffer is full the
// event is dropped and logged; delivery is best-effort.
type ChanSubscriber struct {
	id      string
	ch      chan Event
	dropped atomic.Uint64
}

// NewChanSubscriber returns a subscriber with a random id and a buffer of size n.
func NewChanSubscriber(n int) *ChanSubscriber {
	return &ChanSubscriber{id: uuid.NewString(), ch: make(chan Event, n)}
}

func (c *ChanSubscriber) ID() string { return c.id }

func (c *ChanSubscriber) Send(ev Event) {
	select {
	case c.ch <- ev:
	default:
		c.dropped.Add(1)
		slog.Warn("subscriber channel full, dropping event", "subscriber", c.id, "id", ev.ID)
	}
}

// C returns the receive side of the buffer.
func (c *ChanSubscriber) C() <-chan Event { return c.ch }

// Dropped returns how many events were discarded.
func (c *ChanSubscriber) Dropped() uint64 { return c.dropped.Load() }
