// Package eventbus is an in-memory, synchronous publish/subscribe bus keyed by
// topic name. Nothing is persisted.
package eventbus

import (
	"sync"
	"time"
)

// Topic names a stream of events.
type Topic string

const (
	TopicBalanceChanged      Topic = "balance.changed"
	TopicConnectivityChanged Topic = "connectivity.changed"
	TopicNotesChanged        Topic = "notes.changed"
	TopicNotificationAdded   Topic = "notification.added"
	TopicNotifyIntent        Topic = "notify.intent"
	TopicSyncState           Topic = "sync.state"
)

// Event is one published message.
type Event struct {
	Topic     Topic     `json:"topic"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler receives events on the publisher's goroutine.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus fans events out to subscribers. Handlers for a topic run in
// subscription order; wildcard handlers run after topic handlers.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	topics   map[Topic][]subscription
	wildcard []subscription
	now      func() time.Time
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		topics: make(map[Topic][]subscription),
		now:    time.Now,
	}
}

// Subscribe registers h for topic. The returned func removes it.
func (b *Bus) Subscribe(topic Topic, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscription{id: id, handler: h})
	return func() { b.unsubscribe(topic, id) }
}

// SubscribeAll registers h for every topic.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.wildcard = append(b.wildcard, subscription{id: id, handler: h})
	return func() { b.unsubscribe("", id) }
}

func (b *Bus) unsubscribe(topic Topic, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.wildcard
	if topic != "" {
		list = b.topics[topic]
	}
	out := list[:0:0]
	for _, s := range list {
		if s.id != id {
			out = append(out, s)
		}
	}
	if topic == "" {
		b.wildcard = out
	} else {
		b.topics[topic] = out
	}
}

// Publish delivers payload to every handler of topic before returning.
// Handlers may publish or subscribe re-entrantly.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.topics[topic])+len(b.wildcard))
	for _, s := range b.topics[topic] {
		handlers = append(handlers, s.handler)
	}
	for _, s := range b.wildcard {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload, Timestamp: b.now()}
	for _, h := range handlers {
		h(ev)
	}
}

// ─── Payloads ───────────────────────────────────────────────────────────────

// BalanceChanged is published after every applied ledger movement.
type BalanceChanged struct {
	Balance int64 `json:"balance"`
}

// ConnectivityChanged is published on online/offline transitions.
type ConnectivityChanged struct {
	Online bool `json:"online"`
}

// NotesChanged is published after a local note mutation.
type NotesChanged struct {
	NoteID string `json:"note_id"`
	Op     string `json:"op"`
}

// Intent asks the notification center to surface a transient message.
type Intent struct {
	Type    string `json:"type"`
	Action  string `json:"action"`
	Title   string `json:"title"`
	Message string `json:"message"`
}
