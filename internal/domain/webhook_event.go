package domain

import (
	"encoding/json"
	"time"
)

// WebhookEvent is the audit record of a verified provider notification.
type WebhookEvent struct {
	ID              string
	ProviderEventID string
	Type            string
	SessionID       string
	Payload         json.RawMessage
	ReceivedAt      time.Time
}
