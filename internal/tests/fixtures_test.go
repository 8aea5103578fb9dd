package tests

import (
	"time"

	"github.com/shopspring/decimal"

	"visadesk/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func submittedApplication(id, sessionID string) *domain.ApplicationPayment {
	return &domain.ApplicationPayment{
		ApplicationID:   id,
		StripeSessionID: sessionID,
		Status:          domain.ApplicationStatusSubmitted,
		Amount:          dec("20"),
		Currency:        "aed",
		CreatedAt:       time.Now().Add(-time.Hour),
		UpdatedAt:       time.Now().Add(-time.Hour),
	}
}
