package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"visadesk/internal/domain"
	"visadesk/internal/repository"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const applicationColumns = `id, stripe_session_id, status, amount, currency, created_at, updated_at, reconcile_checked_at`

// ApplicationRepository is a PostgreSQL implementation of repository.ApplicationRepository.
type ApplicationRepository struct {
	q Querier
}

// NewApplicationRepository creates a new PostgreSQL application repository.
func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{q: db}
}

// GetByID retrieves the payment view of an application.
func (r *ApplicationRepository) GetByID(ctx context.Context, applicationID string) (*domain.ApplicationPayment, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	return scanApplication(r.q.QueryRowContext(ctx, query, applicationID))
}

// GetBySessionID retrieves the application bound to a checkout session.
func (r *ApplicationRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.ApplicationPayment, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE stripe_session_id = $1`
	return scanApplication(r.q.QueryRowContext(ctx, query, sessionID))
}

// AttachSession binds a checkout session to an application exactly once.
func (r *ApplicationRepository) AttachSession(ctx context.Context, applicationID, sessionID string, amount decimal.Decimal, currency string) error {
	query := `
		UPDATE applications
		SET stripe_session_id = $2, amount = $3, currency = $4, updated_at = NOW()
		WHERE id = $1 AND stripe_session_id IS NULL
	`

	result, err := r.q.ExecContext(ctx, query, applicationID, sessionID, amount, currency)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrDuplicate
		}
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Either the application is missing or a session is already bound.
		if _, err := r.GetByID(ctx, applicationID); err != nil {
			return err
		}
		return repository.ErrSessionAlreadyAttached
	}

	return nil
}

// TransitionStatus conditionally moves a non-terminal record to status.
// The guard lives in the WHERE clause so concurrent webhook and poll updates
// can never downgrade a terminal state.
func (r *ApplicationRepository) TransitionStatus(ctx context.Context, sessionID string, status domain.ApplicationStatus) (bool, error) {
	query := `
		UPDATE applications
		SET status = $2, updated_at = NOW()
		WHERE stripe_session_id = $1 AND (status IS NULL OR status <> ALL($3))
	`

	result, err := r.q.ExecContext(ctx, query, sessionID, status, pq.Array(terminalStatuses()))
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// ListPending returns stale non-terminal records with a session attached.
func (r *ApplicationRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.ApplicationPayment, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE stripe_session_id IS NOT NULL
		  AND (status IS NULL OR status <> ALL($1))
		  AND updated_at < $2
		ORDER BY reconcile_checked_at ASC NULLS FIRST, updated_at ASC
		LIMIT $3
	`

	rows, err := r.q.QueryContext(ctx, query, pq.Array(terminalStatuses()), olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.ApplicationPayment
	for rows.Next() {
		record, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// MarkChecked records when the sweeper last checked the record. updated_at is
// left alone so the record keeps its place in the staleness filter.
func (r *ApplicationRepository) MarkChecked(ctx context.Context, applicationID string, checkedAt time.Time) error {
	query := `UPDATE applications SET reconcile_checked_at = $2 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, applicationID, checkedAt)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*domain.ApplicationPayment, error) {
	var (
		record    domain.ApplicationPayment
		sessionID sql.NullString
		amount    decimal.NullDecimal
		currency  sql.NullString
		status    sql.NullString
		checkedAt sql.NullTime
	)

	err := row.Scan(
		&record.ApplicationID,
		&sessionID,
		&status,
		&amount,
		&currency,
		&record.CreatedAt,
		&record.UpdatedAt,
		&checkedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	record.StripeSessionID = sessionID.String
	// Rows created before payment tracking carry no status yet.
	record.Status = domain.ApplicationStatusSubmitted
	if status.Valid && status.String != "" {
		record.Status = domain.ApplicationStatus(status.String)
	}
	record.ReconcileCheckedAt = checkedAt.Time
	record.Amount = amount.Decimal
	record.Currency = currency.String

	return &record, nil
}

func terminalStatuses() []string {
	out := make([]string, 0, len(domain.TerminalApplicationStatuses))
	for _, s := range domain.TerminalApplicationStatuses {
		out = append(out, string(s))
	}
	return out
}
