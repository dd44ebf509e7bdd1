package dto

import (
	"time"

	"github.com/spec-kit/policy-service/internal/domain"
)

// CreateQuoteRequest payload. Premium and cover fields sent by clients
// are deliberately absent: pricing is server-side only.
type CreateQuoteRequest struct {
	CustomerID string `json:"customer_id"`
	PolicyType string `json:"policy_type"`
	State      string `json:"state,omitempty"`
}

// PayPolicyRequest payload.
type PayPolicyRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// ChangeStateRequest payload for the administrative state override.
type ChangeStateRequest struct {
	State string `json:"state"`
}

// PolicyResponse representation.
type PolicyResponse struct {
	ID         string             `json:"id"`
	CustomerID string             `json:"customer_id"`
	PolicyType domain.PolicyType  `json:"policy_type"`
	Premium    float64            `json:"premium"`
	Cover      float64            `json:"cover"`
	State      domain.PolicyState `json:"state"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// NewPolicyResponse maps the domain entity.
func NewPolicyResponse(policy *domain.Policy) PolicyResponse {
	return PolicyResponse{
		ID:         policy.ID,
		CustomerID: policy.CustomerID,
		PolicyType: policy.Type,
		Premium:    policy.Premium,
		Cover:      policy.Cover,
		State:      policy.State,
		CreatedAt:  policy.CreatedAt,
		UpdatedAt:  policy.UpdatedAt,
	}
}

// HistoryEntryResponse represents one ledger entry.
type HistoryEntryResponse struct {
	ID        string             `json:"id"`
	PolicyID  string             `json:"policy_id"`
	State     domain.PolicyState `json:"state"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// NewHistoryResponses maps ledger entries.
func NewHistoryResponses(entries []domain.PolicyStateHistory) []HistoryEntryResponse {
	result := make([]HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		result = append(result, HistoryEntryResponse{
			ID:        entry.ID,
			PolicyID:  entry.PolicyID,
			State:     entry.State,
			UpdatedAt: entry.UpdatedAt,
		})
	}
	return result
}
