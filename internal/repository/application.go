package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"visadesk/internal/domain"
)

// ApplicationRepository defines the payment persistence operations on visa applications.
type ApplicationRepository interface {
	// GetByID retrieves the payment view of an application.
	GetByID(ctx context.Context, applicationID string) (*domain.ApplicationPayment, error)

	// GetBySessionID retrieves the application bound to a checkout session.
	// Returns ErrNotFound when no application carries the session id.
	GetBySessionID(ctx context.Context, sessionID string) (*domain.ApplicationPayment, error)

	// AttachSession binds a checkout session to an application exactly once.
	// Returns ErrSessionAlreadyAttached if a session is already bound.
	AttachSession(ctx context.Context, applicationID, sessionID string, amount decimal.Decimal, currency string) error

	// TransitionStatus moves the record for sessionID to status if and only if
	// its current status is not terminal. It reports whether a row changed.
	TransitionStatus(ctx context.Context, sessionID string, status domain.ApplicationStatus) (bool, error)

	// ListPending returns non-terminal records with a session attached that were
	// last updated before olderThan. Records never checked come first, then the
	// least recently checked, so a batch limit rotates through the backlog.
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.ApplicationPayment, error)

	// MarkChecked stamps the record as checked by the sweeper at checkedAt.
	MarkChecked(ctx context.Context, applicationID string, checkedAt time.Time) error
}
