package events

import (
	"time"

	"github.com/spec-kit/policy-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventQuoteCreated       EventType = "quote_created"
	EventPolicyStateChanged EventType = "policy_state_changed"
	EventPaymentProcessed   EventType = "payment_processed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	PolicyID  string      `json:"policy_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// QuoteCreatedPayload payload.
type QuoteCreatedPayload struct {
	CustomerID string             `json:"customer_id"`
	PolicyType domain.PolicyType  `json:"policy_type"`
	Premium    float64            `json:"premium"`
	Cover      float64            `json:"cover"`
	State      domain.PolicyState `json:"state"`
}

// PolicyStateChangedPayload payload.
type PolicyStateChangedPayload struct {
	OldState domain.PolicyState `json:"old_state"`
	NewState domain.PolicyState `json:"new_state"`
}

// PaymentProcessedPayload payload.
type PaymentProcessedPayload struct {
	PaymentMethod string             `json:"payment_method"`
	NewState      domain.PolicyState `json:"new_state"`
}
