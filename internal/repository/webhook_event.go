package repository

import (
	"context"

	"visadesk/internal/domain"
)

// WebhookEventRepository stores the audit trail of provider notifications.
type WebhookEventRepository interface {
	// Create persists a new event. Returns ErrDuplicate if the provider event id was already stored.
	Create(ctx context.Context, event *domain.WebhookEvent) error
}
