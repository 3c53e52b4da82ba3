package metrics

import (
	"context"

	"github.com/siemql/siemql/internal/bus"
)

// EventSubscriber counts audit events seen on the bus. With a Kafka or Redis
// bus this includes events published by other siemql processes.
type EventSubscriber struct {
	metrics *Metrics
	bus     bus.Bus
}

// NewEventSubscriber creates a new event subscriber.
func NewEventSubscriber(metrics *Metrics, eventBus bus.Bus) *EventSubscriber {
	return &EventSubscriber{
		metrics: metrics,
		bus:     eventBus,
	}
}

// SubscribeToEvents subscribes to every audit topic.
func (es *EventSubscriber) SubscribeToEvents(ctx context.Context) error {
	for _, topic := range []string{bus.TopicQueryHandled, bus.TopicDocumentInserted} {
		if err := es.bus.Subscribe(ctx, topic, es.handle); err != nil {
			return err
		}
	}
	return nil
}

func (es *EventSubscriber) handle(_ context.Context, event bus.Event) error {
	eventType := event.Type
	if eventType == "" {
		eventType = "unknown"
	}
	es.metrics.AuditEvents.WithLabelValues(eventType).Inc()
	return nil
}
