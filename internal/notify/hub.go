// Package notify fans printer events out to presentation layers
package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// EventType names an event on the wire
type EventType string

const (
	EventJobStarted      EventType = "job_started"
	EventJobCompleted    EventType = "job_completed"
	EventJobFailed       EventType = "job_failed"
	EventLabelRendered   EventType = "label_rendered"
	EventLabelDeleted    EventType = "label_deleted"
	EventPrinterStarted  EventType = "printer_started"
	EventPrinterStopped  EventType = "printer_stopped"
	EventSettingsChanged EventType = "settings_changed"
	EventRefresh         EventType = "refresh"
)

// Event is one notification
type Event struct {
	Type EventType              `json:"event"`
	Time time.Time              `json:"time"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// New stamps an event with the current time
func New(t EventType, data map[string]interface{}) Event {
	return Event{Type: t, Time: time.Now(), Data: data}
}

// Hub is an in-process pub/sub. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	next    int
	closed  bool
	dropped atomic.Int64
	log     *zap.Logger
}

// NewHub creates an empty hub
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		subs: make(map[int]chan Event),
		log:  log,
	}
}

// Subscribe returns a channel of events and a function that cancels the
// subscription and closes the channel
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
}

// Publish delivers e to every subscriber that has room for it
func (h *Hub) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			if h.dropped.Add(1)%100 == 1 {
				h.log.Warn("subscriber too slow, dropping events", zap.String("event", string(e.Type)))
			}
		}
	}
}

// Subscribers returns the number of active subscriptions
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because of full buffers
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close ends every subscription
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
