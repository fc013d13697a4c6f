package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/inkwell-notes/inkwell/internal/infra/eventbus"
)

// ─── Live Event Stream ──────────────────────────────────────────────────────
// GET /api/events streams every bus event as a server-sent event:
// data: {"topic": "balance.changed", "payload": {...}, "timestamp": "..."}

// EventsHub fans bus events out to connected SSE clients.
type EventsHub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	detach  func()
	done    chan struct{}
	closed  bool
}

// NewEventsHub creates an empty hub.
func NewEventsHub() *EventsHub {
	return &EventsHub{
		clients: make(map[chan []byte]struct{}),
		done:    make(chan struct{}),
	}
}

// Attach forwards every event on bus to the hub.
func (h *EventsHub) Attach(bus *eventbus.Bus) {
	detach := bus.SubscribeAll(func(e eventbus.Event) { h.Broadcast(e) })
	h.mu.Lock()
	h.detach = detach
	h.mu.Unlock()
}

// Broadcast sends an event to all connected clients. Slow clients miss it.
func (h *EventsHub) Broadcast(e eventbus.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
		}
	}
}

// Subscribe registers a new client. Returns the channel and an unsubscribe func.
func (h *EventsHub) Subscribe() (chan []byte, func()) {
	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}
}

// ClientCount returns the number of connected clients.
func (h *EventsHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close detaches from the bus and ends open streams.
func (h *EventsHub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	detach := h.detach
	close(h.done)
	h.mu.Unlock()

	if detach != nil {
		detach()
	}
}

// HandleSSE serves the event feed via Server-Sent Events.
func (h *EventsHub) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, unsub := h.Subscribe()
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case data := <-ch:
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
