package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/siemql/siemql/internal/pkg/errors"
	"github.com/siemql/siemql/internal/pkg/logger"
)

// RedisBus publishes events over Redis pub/sub. Delivery is at-most-once:
// subscribers that are not connected when an event is published miss it.
type RedisBus struct {
	client *redis.Client
	log    *logger.Logger

	mu      sync.Mutex
	subs    []*redis.PubSub
	closed  bool
	readers sync.WaitGroup
}

// NewRedisBus connects to url (redis://host:port/db) and verifies the
// connection with a PING.
func NewRedisBus(url string, log *logger.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "parsing redis URL", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(errors.CodeUnavailable, "connecting to redis", err)
	}

	if log == nil {
		log = logger.Default()
	}
	return &RedisBus{client: client, log: log}, nil
}

// Publish publishes an event to the channel named topic.
func (b *RedisBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "failed to marshal event", err)
	}

	if err := b.client.Publish(ctx, topic, data).Err(); err != nil {
		return errors.Wrap(errors.CodeUnavailable, "failed to publish to redis", err)
	}
	return nil
}

// Subscribe subscribes handler to the channel named topic. The subscription
// is confirmed before Subscribe returns.
func (b *RedisBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	ps := b.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return errors.Wrap(errors.CodeUnavailable, fmt.Sprintf("subscribing to %s", topic), err)
	}
	b.subs = append(b.subs, ps)

	b.readers.Add(1)
	go b.read(topic, ps, handler)
	return nil
}

func (b *RedisBus) read(topic string, ps *redis.PubSub, handler Handler) {
	defer b.readers.Done()

	// The channel closes when ps is closed.
	for msg := range ps.Channel() {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			b.log.Warn("Failed to decode redis event", "topic", topic, "error", err)
			continue
		}
		if err := handler(context.Background(), event); err != nil {
			b.log.Warn("Bus handler failed", "topic", topic, "event_id", event.ID, "error", err)
		}
	}
}

// Close unsubscribes everything and closes the connection pool.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	var errs []error
	for _, ps := range subs {
		if err := ps.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.readers.Wait()

	if err := b.client.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.New(errors.CodeInternal, fmt.Sprintf("errors during close: %v", errs))
	}
	return nil
}
