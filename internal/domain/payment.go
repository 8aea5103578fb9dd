package domain

import "github.com/shopspring/decimal"

// Card is raw card data collected by the merchant. It is never persisted.
type Card struct {
	Number   string
	ExpMonth string
	ExpYear  string
	CVC      string
}

// CheckoutSessionStatus mirrors the provider's session status.
type CheckoutSessionStatus string

const (
	CheckoutSessionOpen     CheckoutSessionStatus = "open"
	CheckoutSessionComplete CheckoutSessionStatus = "complete"
	CheckoutSessionExpired  CheckoutSessionStatus = "expired"
)

// CheckoutPaymentStatus mirrors the provider's session payment_status.
type CheckoutPaymentStatus string

const (
	CheckoutPaymentUnpaid            CheckoutPaymentStatus = "unpaid"
	CheckoutPaymentPaid              CheckoutPaymentStatus = "paid"
	CheckoutPaymentNoPaymentRequired CheckoutPaymentStatus = "no_payment_required"
)

// CheckoutSession is the read-only view of a hosted checkout session.
type CheckoutSession struct {
	ID              string
	URL             string
	Status          CheckoutSessionStatus
	PaymentStatus   CheckoutPaymentStatus
	AmountTotal     int64 // smallest currency unit
	Currency        string
	CustomerEmail   string
	PaymentIntentID string
}

// IsPaid reports whether the provider considers the session paid.
func (s *CheckoutSession) IsPaid() bool {
	return s.PaymentStatus == CheckoutPaymentPaid
}

// IsSettled reports whether the session can no longer change.
func (s *CheckoutSession) IsSettled() bool {
	return s.Status == CheckoutSessionComplete || s.Status == CheckoutSessionExpired
}

// Charge is the outcome of a direct create-and-confirm payment intent.
type Charge struct {
	IntentID        string
	Status          string
	ClientSecret    string
	Amount          decimal.Decimal
	Currency        string
	PaymentMethodID string
}
