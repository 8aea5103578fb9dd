package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"visadesk/internal/currency"
)

var (
	// ErrValidation is returned when a request fails local checks. The provider is not contacted.
	ErrValidation = errors.New("validation failed")

	// ErrCardDeclined is returned when the provider declines the card.
	ErrCardDeclined = errors.New("card declined")

	// ErrProviderRejected is returned when the provider refuses the request type, e.g. raw card data.
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrSessionCreationFailed is returned when a checkout session cannot be created.
	ErrSessionCreationFailed = errors.New("checkout session creation failed")

	// ErrUnknownProvider is returned for any other provider or network failure.
	ErrUnknownProvider = errors.New("payment provider error")

	// ErrSignatureVerification is returned when a webhook signature does not verify.
	ErrSignatureVerification = errors.New("webhook signature verification failed")

	// ErrPayloadParse is returned when a webhook body cannot be decoded.
	ErrPayloadParse = errors.New("webhook payload could not be parsed")

	// ErrInvalidSessionID is returned when a session id is empty.
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrInvalidApplicationID is returned when an application id is empty.
	ErrInvalidApplicationID = errors.New("invalid application id")

	// ErrInvalidStatus is returned when a ledger update targets a non-terminal status.
	ErrInvalidStatus = errors.New("invalid target status")
)

// rawCardRemediation is shown when the account cannot accept raw card numbers.
const rawCardRemediation = "Raw card data APIs are not enabled. Please enable 'Raw card data APIs' in your " +
	"Stripe Dashboard under Settings > APIs, or contact Stripe support. Alternatively, use Stripe.js on the " +
	"frontend to securely collect card details and send a payment method ID instead."

// PaymentError carries diagnostics for a failed charge or checkout.
// errors.Is matches it against its Kind sentinel and the wrapped cause.
type PaymentError struct {
	Kind            error
	Message         string
	Amount          decimal.Decimal
	Currency        string
	ProviderMessage string
	Err             error
}

func (e *PaymentError) Error() string {
	return e.Message
}

func (e *PaymentError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func validationError(amount decimal.Decimal, code, message string) *PaymentError {
	return &PaymentError{
		Kind:     ErrValidation,
		Message:  message,
		Amount:   amount,
		Currency: code,
	}
}

// checkAmount enforces a positive amount at or above the currency minimum that
// converts to the provider's smallest unit without rounding.
func checkAmount(amount decimal.Decimal, code string) error {
	if !amount.IsPositive() {
		return validationError(amount, code, "Amount must be greater than zero")
	}
	if !currency.HasValidPrecision(amount, code) {
		if currency.Decimals(code) == 0 {
			return validationError(amount, code, fmt.Sprintf("Amount must be a whole number of %s", currency.Display(code)))
		}
		return validationError(amount, code, fmt.Sprintf("Amount must have at most %d decimal places for %s",
			currency.Decimals(code), currency.Display(code)))
	}
	if !currency.MeetsMinimum(amount, code) {
		return validationError(amount, code, fmt.Sprintf("Amount must be at least %s %s",
			currency.Format(currency.MinimumAmount(code), code), currency.Display(code)))
	}
	return nil
}
