package domain

import "time"

// PaymentStatusChanged is emitted after a ledger transition is applied.
type PaymentStatusChanged struct {
	ApplicationID string            `json:"application_id"`
	SessionID     string            `json:"session_id"`
	From          ApplicationStatus `json:"from"`
	To            ApplicationStatus `json:"to"`
	Source        string            `json:"source"`
	OccurredAt    time.Time         `json:"occurred_at"`
}
