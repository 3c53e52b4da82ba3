// Package bus publishes audit events about handled queries and inserted
// documents to in-process subscribers, Kafka or Redis.
package bus

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations.
type Bus interface {
	// Publish publishes an event to a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe subscribes to events on a topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Event represents a bus event.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the event type (e.g., "query.handled").
	Type string `json:"type"`

	// Source is the component that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created, in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	// CorrelationID links events of one analyst session.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// Topics.
const (
	TopicQueryHandled     = "siemql.query.handled"
	TopicDocumentInserted = "siemql.document.inserted"
)

// Event types.
const (
	TypeQueryHandled     = "query.handled"
	TypeDocumentInserted = "document.inserted"
)

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewEvent builds an event with a fresh ULID and the current time.
func NewEvent(eventType, source, correlationID string, payload any) Event {
	idMu.Lock()
	id := ulid.MustNew(ulid.Now(), idEntropy).String()
	idMu.Unlock()

	return Event{
		ID:            id,
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UnixMilli(),
		CorrelationID: correlationID,
		Payload:       payload,
	}
}
