// Package broadcast fans detection and lifecycle events out to live
// subscribers. Delivery is push-only and at-most-once: an event
// published before a subscriber connects is never replayed, and a
// subscriber that cannot keep up loses messages rather than slowing
// anyone else down.
package broadcast

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// queueSize bounds each subscriber's delivery queue. A full queue means
// that subscriber drops the message; publication never waits.
const queueSize = 64

// SnapshotFunc produces the current camera list for the one-time
// catch-up a fresh subscriber receives on connect.
type SnapshotFunc func() CamerasEvent

// Subscriber is one connected observer. Read delivered messages from C;
// the channel is closed when the subscriber is removed.
type Subscriber struct {
	id      string
	ch      chan []byte
	dropped uint64
}

// ID is the subscriber's unique identifier, used in logs.
func (s *Subscriber) ID() string { return s.id }

// C delivers marshaled event payloads.
func (s *Subscriber) C() <-chan []byte { return s.ch }

// Hub is the subscriber registry. Its mutex is held only for membership
// changes and queue offers, never across subscriber I/O.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	snapshot    SnapshotFunc
	log         zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		log:         log,
	}
}

// SetSnapshot installs the camera snapshot provider. Must be called
// before the first Subscribe; the registry does this while wiring up.
func (h *Hub) SetSnapshot(fn SnapshotFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = fn
}

// Subscribe registers a new subscriber and synchronously primes its
// queue with the current camera snapshot. No past events are replayed.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		id: uuid.NewString(),
		ch: make(chan []byte, queueSize),
	}

	h.mu.Lock()
	snapshot := h.snapshot
	h.mu.Unlock()

	// Prime the queue before registering so the snapshot always
	// precedes any event published after connect.
	if snapshot != nil {
		if payload, err := json.Marshal(snapshot()); err == nil {
			sub.ch <- payload
		} else {
			h.log.Error().Err(err).Msg("failed to marshal camera snapshot")
		}
	}

	h.mu.Lock()
	h.subscribers[sub.id] = sub
	count := len(h.subscribers)
	h.mu.Unlock()

	h.log.Debug().Str("subscriber_id", sub.id).Int("total", count).Msg("subscriber connected")
	return sub
}

// Unsubscribe removes the subscriber and closes its channel. Safe to
// call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[sub.id]
	if ok {
		delete(h.subscribers, sub.id)
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	if ok {
		close(sub.ch)
		h.log.Debug().Str("subscriber_id", sub.id).Int("total", count).Msg("subscriber disconnected")
	}
}

// Publish marshals the event once and offers it to every subscriber
// connected at this moment. A subscriber whose queue is full drops the
// event; nothing here blocks.
func (h *Hub) Publish(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal event")
		return
	}

	h.mu.Lock()
	for _, sub := range h.subscribers {
		select {
		case sub.ch <- payload:
		default:
			sub.dropped++
			if sub.dropped == 1 || sub.dropped%100 == 0 {
				h.log.Warn().
					Str("subscriber_id", sub.id).
					Uint64("dropped", sub.dropped).
					Msg("subscriber queue full, dropping events")
			}
		}
	}
	h.mu.Unlock()
}

// SubscriberCount reports how many subscribers are connected.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
