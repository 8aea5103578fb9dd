package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"visadesk/internal/domain"
	"visadesk/internal/repository"
)

// WebhookEventRepository is a PostgreSQL implementation of repository.WebhookEventRepository.
type WebhookEventRepository struct {
	q Querier
}

// NewWebhookEventRepository creates a new PostgreSQL webhook event repository.
func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{q: db}
}

// Create persists a new webhook event.
func (r *WebhookEventRepository) Create(ctx context.Context, event *domain.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (id, provider_event_id, type, session_id, payload, received_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	`

	_, err := r.q.ExecContext(ctx, query,
		event.ID,
		event.ProviderEventID,
		event.Type,
		event.SessionID,
		[]byte(event.Payload),
		event.ReceivedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrDuplicate
		}
		return err
	}

	return nil
}
