package domain

import "time"

// Customer is the policyholder aggregate. Identity is immutable once
// created; name and date of birth can be corrected later.
type Customer struct {
	ID        string
	FirstName string
	LastName  string
	DOB       time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
