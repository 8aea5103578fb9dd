package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"visadesk/internal/domain"
)

// CacheStore handles checkout session caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// SessionCacheTTL bounds how long a settled session is served from cache.
const SessionCacheTTL = 10 * time.Minute

const sessionCachePrefix = "cache:checkout_session:"

// CachedSession is the cached form of a checkout session.
type CachedSession struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	Status          string `json:"status"`
	PaymentStatus   string `json:"payment_status"`
	AmountTotal     int64  `json:"amount_total"`
	Currency        string `json:"currency"`
	CustomerEmail   string `json:"customer_email"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// GetSession retrieves a session from cache. A miss returns nil, nil.
func (s *CacheStore) GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	data, err := s.client.Get(ctx, sessionCachePrefix+sessionID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var cached CachedSession
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	return &domain.CheckoutSession{
		ID:              cached.ID,
		URL:             cached.URL,
		Status:          domain.CheckoutSessionStatus(cached.Status),
		PaymentStatus:   domain.CheckoutPaymentStatus(cached.PaymentStatus),
		AmountTotal:     cached.AmountTotal,
		Currency:        cached.Currency,
		CustomerEmail:   cached.CustomerEmail,
		PaymentIntentID: cached.PaymentIntentID,
	}, nil
}

// SetSession stores a settled session. Open sessions are skipped since they still change.
func (s *CacheStore) SetSession(ctx context.Context, session *domain.CheckoutSession) error {
	if session == nil || !session.IsSettled() {
		return nil
	}

	data, err := json.Marshal(CachedSession{
		ID:              session.ID,
		URL:             session.URL,
		Status:          string(session.Status),
		PaymentStatus:   string(session.PaymentStatus),
		AmountTotal:     session.AmountTotal,
		Currency:        session.Currency,
		CustomerEmail:   session.CustomerEmail,
		PaymentIntentID: session.PaymentIntentID,
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionCachePrefix+session.ID, data, SessionCacheTTL).Err()
}
