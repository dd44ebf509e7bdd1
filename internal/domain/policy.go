package domain

import (
	"strings"
	"time"
)

// PolicyState enumerates lifecycle states for policies.
type PolicyState string

const (
	PolicyStateNew      PolicyState = "new"
	PolicyStateQuoted   PolicyState = "quoted"
	PolicyStateAccepted PolicyState = "accepted"
	PolicyStateBound    PolicyState = "bound"
	PolicyStateActive   PolicyState = "active"
	PolicyStateDeclined PolicyState = "declined"
	PolicyStateExpired  PolicyState = "expired"
)

// Valid reports whether the state is one of the defined enum values.
func (s PolicyState) Valid() bool {
	switch s {
	case PolicyStateNew, PolicyStateQuoted, PolicyStateAccepted, PolicyStateBound,
		PolicyStateActive, PolicyStateDeclined, PolicyStateExpired:
		return true
	}
	return false
}

// PolicyType enumerates the insurance products on offer.
type PolicyType string

const (
	PolicyTypePersonalAccident PolicyType = "personal_accident"
	PolicyTypeHealth           PolicyType = "health"
	PolicyTypeLife             PolicyType = "life"
	PolicyTypeHome             PolicyType = "home"
	PolicyTypeTravel           PolicyType = "travel"
)

// NormalizePolicyType maps client input to the canonical underscore form.
// Fixture data in the wild uses hyphens ("personal-accident").
func NormalizePolicyType(raw string) PolicyType {
	cleaned := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
	return PolicyType(cleaned)
}

// Valid reports whether the type is a known product.
func (t PolicyType) Valid() bool {
	switch t {
	case PolicyTypePersonalAccident, PolicyTypeHealth, PolicyTypeLife, PolicyTypeHome, PolicyTypeTravel:
		return true
	}
	return false
}

// Policy is a quote or in-force contract for a single customer.
// Premium and Cover are always computed by the pricing engine, never
// taken from client input.
type Policy struct {
	ID         string
	CustomerID string
	Type       PolicyType
	Premium    float64
	Cover      float64
	State      PolicyState
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
