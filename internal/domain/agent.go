package domain

import "time"

// AgentStatus represents lifecycle states for an operator account.
type AgentStatus string

const (
	AgentStatusActive    AgentStatus = "ACTIVE"
	AgentStatusSuspended AgentStatus = "SUSPENDED"
)

// Agent is an insurance operator allowed to perform administrative
// actions such as deleting customers or overriding policy state.
type Agent struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Status       AgentStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
