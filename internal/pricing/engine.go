package pricing

import (
	"time"

	"github.com/spec-kit/policy-service/internal/domain"
	apperrors "github.com/spec-kit/policy-service/pkg/util/errorutil"
)

// Defaults used when configuration does not override them. Cover is a
// flat constant for every product until per-type pricing lands.
const (
	DefaultBaseAmount = 100
	DefaultCover      = 200000
)

type ageBand struct {
	minAge     int // inclusive
	maxAge     int // inclusive, -1 means open-ended
	multiplier float64
}

// Bands are an explicit inclusive ladder: [0,18) 1.0, [18,40] 1.5,
// [41,60] 2.0, [61,inf) 3.0.
var ageBands = []ageBand{
	{minAge: 0, maxAge: 17, multiplier: 1.0},
	{minAge: 18, maxAge: 40, multiplier: 1.5},
	{minAge: 41, maxAge: 60, multiplier: 2.0},
	{minAge: 61, maxAge: -1, multiplier: 3.0},
}

// Engine computes premiums and cover amounts. It is pure: no storage, no
// side effects, deterministic for a fixed clock.
type Engine struct {
	cover float64
	now   func() time.Time
}

// NewEngine builds an engine with the given flat cover amount. A
// non-positive cover falls back to the default.
func NewEngine(cover float64) *Engine {
	if cover <= 0 {
		cover = DefaultCover
	}
	return &Engine{cover: cover, now: time.Now}
}

// NewEngineAt is like NewEngine with an injectable clock for tests.
func NewEngineAt(cover float64, now func() time.Time) *Engine {
	e := NewEngine(cover)
	if now != nil {
		e.now = now
	}
	return e
}

// Quote prices a policy for the customer. The policy type does not yet
// influence the result, but it is part of the contract so type-dependent
// premiums and cover can be introduced without an interface change.
func (e *Engine) Quote(customer *domain.Customer, policyType domain.PolicyType, baseAmount float64) (premium, cover float64, err error) {
	if customer == nil || customer.DOB.IsZero() {
		return 0, 0, apperrors.NewInvalidInput("customer date of birth required for pricing", nil)
	}
	if baseAmount <= 0 {
		baseAmount = DefaultBaseAmount
	}

	age := ageAt(customer.DOB, e.now())
	if age < 0 {
		return 0, 0, apperrors.NewInvalidInput("customer date of birth is in the future", nil)
	}

	return baseAmount * multiplierFor(age), e.cover, nil
}

// ageAt computes full years between dob and now with day precision:
// the year is not counted until the birthday has passed.
func ageAt(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

func multiplierFor(age int) float64 {
	for _, band := range ageBands {
		if age >= band.minAge && (band.maxAge < 0 || age <= band.maxAge) {
			return band.multiplier
		}
	}
	return ageBands[len(ageBands)-1].multiplier
}
