package redis

import (
	"context"

	"visadesk/internal/domain"
)

// SessionCacheInterface defines the interface for caching settled checkout sessions.
type SessionCacheInterface interface {
	GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error)
	SetSession(ctx context.Context, session *domain.CheckoutSession) error
}

// EventStoreInterface defines the interface for webhook redelivery detection.
type EventStoreInterface interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ SessionCacheInterface = (*CacheStore)(nil)
	_ EventStoreInterface   = (*EventStore)(nil)
)
