package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApplicationStatus is the payment state of a visa application.
type ApplicationStatus string

const (
	ApplicationStatusSubmitted ApplicationStatus = "Request Submitted"
	ApplicationStatusSuccess   ApplicationStatus = "success"
	ApplicationStatusFailed    ApplicationStatus = "failed"
)

// TerminalApplicationStatuses are the states a record never leaves.
var TerminalApplicationStatuses = []ApplicationStatus{
	ApplicationStatusSuccess,
	ApplicationStatusFailed,
}

// IsTerminal reports whether s is sticky.
func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationStatusSuccess || s == ApplicationStatusFailed
}

// ApplicationPayment is the payment view of a visa application row.
// StripeSessionID is empty until a checkout session is attached; once set it
// is never reassigned.
type ApplicationPayment struct {
	ApplicationID   string
	StripeSessionID string
	Status          ApplicationStatus
	Amount          decimal.Decimal // display units
	Currency        string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// ReconcileCheckedAt is when the sweeper last asked the provider about the
	// session; zero if never.
	ReconcileCheckedAt time.Time
}

// HasSession reports whether a checkout session has been attached.
func (a *ApplicationPayment) HasSession() bool {
	return a.StripeSessionID != ""
}
