package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/siemql/siemql/internal/bus"
	"github.com/siemql/siemql/internal/pkg/logger"
	"github.com/siemql/siemql/internal/web/components"
)

const (
	sseKeepAlive  = 15 * time.Second
	clientBacklog = 16
)

// EventHub subscribes to the audit topics once and fans rendered events out
// to every connected SSE client. Slow clients miss events instead of
// blocking the bus.
type EventHub struct {
	bus bus.Bus
	log *logger.Logger

	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewEventHub creates a hub over b.
func NewEventHub(b bus.Bus, log *logger.Logger) *EventHub {
	return &EventHub{
		bus:     b,
		log:     log,
		clients: make(map[chan []byte]struct{}),
	}
}

// Start subscribes the hub to the audit topics.
func (h *EventHub) Start(ctx context.Context) error {
	for _, topic := range []string{bus.TopicQueryHandled, bus.TopicDocumentInserted} {
		if err := h.bus.Subscribe(ctx, topic, h.broadcast); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}
	return nil
}

func (h *EventHub) join() (chan []byte, func()) {
	ch := make(chan []byte, clientBacklog)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *EventHub) broadcast(ctx context.Context, event bus.Event) error {
	var buf bytes.Buffer
	if err := components.AuditItem(auditEntry(event)).Render(ctx, &buf); err != nil {
		return err
	}
	msg := buf.Bytes()

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.log.Debug("Dropping audit event for slow client", "type", event.Type)
		}
	}
	return nil
}

// auditSummary holds the payload fields shown in the feed. Payloads are Go
// structs on the memory bus and decoded maps on the others, so they go
// through JSON either way.
type auditSummary struct {
	Text  string `json:"text"`
	Kind  string `json:"kind"`
	Total int64  `json:"total"`
	Error string `json:"error"`
	ID    string `json:"id"`
	Index string `json:"index"`
}

func auditEntry(event bus.Event) components.AuditEntry {
	entry := components.AuditEntry{
		Type:          event.Type,
		CorrelationID: event.CorrelationID,
		At:            time.UnixMilli(event.Timestamp),
	}

	var s auditSummary
	if b, err := json.Marshal(event.Payload); err == nil {
		_ = json.Unmarshal(b, &s)
	}

	switch event.Type {
	case bus.TypeQueryHandled:
		if s.Error != "" {
			entry.Summary = fmt.Sprintf("%q failed: %s", s.Text, s.Error)
		} else {
			entry.Summary = fmt.Sprintf("%q as %s, %d hits", s.Text, s.Kind, s.Total)
		}
	case bus.TypeDocumentInserted:
		entry.Summary = fmt.Sprintf("%s into %s", s.ID, s.Index)
	default:
		entry.Summary = event.Source
	}
	return entry
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		http.Error(w, "Event stream disabled", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	flusher.Flush()

	events, leave := h.hub.join()
	defer leave()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case msg := <-events:
			writeSSE(w, "audit", msg)
			flusher.Flush()
		}
	}
}

// writeSSE writes one named event, splitting data over several data lines
// when it contains newlines.
func writeSSE(w http.ResponseWriter, name string, data []byte) {
	fmt.Fprintf(w, "event: %s\n", name)
	for _, line := range strings.Split(string(data), "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
