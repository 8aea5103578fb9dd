package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProcessedEventTTL covers the provider's redelivery window.
const ProcessedEventTTL = 72 * time.Hour

const processedEventPrefix = "webhook:processed:"

// EventStore remembers which provider webhook events were already applied.
type EventStore struct {
	client *redis.Client
}

// NewEventStore creates a new EventStore.
func NewEventStore(client *redis.Client) *EventStore {
	return &EventStore{client: client}
}

// IsProcessed reports whether eventID was marked processed.
func (s *EventStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, processedEventPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkProcessed records eventID. The first writer wins; later calls are no-ops.
func (s *EventStore) MarkProcessed(ctx context.Context, eventID string) error {
	return s.client.SetNX(ctx, processedEventPrefix+eventID, "1", ProcessedEventTTL).Err()
}
