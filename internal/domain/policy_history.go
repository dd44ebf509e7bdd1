package domain

import "time"

// PolicyStateHistory is an immutable ledger entry recording that a policy
// entered State at UpdatedAt. Entries are only ever appended: one on
// policy creation and one per effective state change. Seq is the
// insertion sequence used to break timestamp ties deterministically.
type PolicyStateHistory struct {
	ID        string
	PolicyID  string
	State     PolicyState
	UpdatedAt time.Time
	Seq       int64
}
