// AngelaMos | 2026
// hub.go

package realtime

import (
	"sync"
)

// Event is a single new-post notification fanned out to stream
// subscribers. Payload is the marshaled post, ready to write to the wire.
// Origin identifies the process that produced the event so the redis
// bridge can drop its own echoes.
type Event struct {
	ThreadID string
	PostID   int64
	Payload  []byte
	Origin   string
}

// Hub fans post events out to the SSE subscribers of each thread. Slow
// consumers are not allowed to stall the publisher: when a subscriber's
// buffer is full the event is dropped for that subscriber and the client
// recovers missed posts through Last-Event-ID replay on reconnect.
type Hub struct {
	mu        sync.RWMutex
	subs      map[string]map[chan Event]struct{}
	queueSize int
}

func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Hub{
		subs:      make(map[string]map[chan Event]struct{}),
		queueSize: queueSize,
	}
}

// Subscribe registers a listener for one thread. The returned cancel
// function must be called when the consumer goes away; it is safe to call
// more than once.
func (h *Hub) Subscribe(threadID string) (<-chan Event, func()) {
	ch := make(chan Event, h.queueSize)

	h.mu.Lock()
	if h.subs[threadID] == nil {
		h.subs[threadID] = make(map[chan Event]struct{})
	}
	h.subs[threadID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[threadID], ch)
			if len(h.subs[threadID]) == 0 {
				delete(h.subs, threadID)
			}
			// Closed under the lock so Publish can never be mid-send
			// on this channel.
			close(ch)
			h.mu.Unlock()
		})
	}

	return ch, cancel
}

// Publish delivers an event to every subscriber of its thread without
// blocking. Threads with no subscribers are a no-op.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[ev.ThreadID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) SubscriberCount(threadID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[threadID])
}
