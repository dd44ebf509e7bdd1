package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/spec-kit/policy-service/internal/domain"
	"github.com/spec-kit/policy-service/internal/events"
	eventmocks "github.com/spec-kit/policy-service/internal/events/mocks"
	"github.com/spec-kit/policy-service/internal/pricing"
	"github.com/spec-kit/policy-service/internal/repository/memory"
	apperrors "github.com/spec-kit/policy-service/pkg/util/errorutil"
)

func newPolicyService(dispatcher events.Dispatcher) (*PolicyService, *memory.Store) {
	store := memory.NewStore()
	svc := NewPolicyService(PolicyDependencies{
		Store:      store,
		Engine:     pricing.NewEngine(0),
		BaseAmount: 100,
		Dispatcher: dispatcher,
	})
	return svc, store
}

func seedCustomer(t *testing.T, store *memory.Store, ageYears int) *domain.Customer {
	t.Helper()
	customer := &domain.Customer{
		FirstName: "Ben",
		LastName:  "Stokes",
		DOB:       time.Now().AddDate(-ageYears, 0, -1),
	}
	if err := store.Customers().Create(context.Background(), customer); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customer
}

func assertDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != code {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

func TestPolicyService_CreateQuote(t *testing.T) {
	ctx := context.Background()

	t.Run("prices server-side and writes initial ledger entry", func(t *testing.T) {
		svc, store := newPolicyService(nil)
		customer := seedCustomer(t, store, 25)

		policy, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "health"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if policy.Premium != 150 {
			t.Fatalf("expected premium 150 for age 25, got %v", policy.Premium)
		}
		if policy.Cover != pricing.DefaultCover {
			t.Fatalf("expected default cover, got %v", policy.Cover)
		}
		if policy.State != domain.PolicyStateNew {
			t.Fatalf("expected initial state new, got %s", policy.State)
		}

		entries, err := store.History().ListByPolicy(ctx, policy.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected exactly one ledger entry, got %d", len(entries))
		}
		if entries[0].State != domain.PolicyStateNew {
			t.Fatalf("expected ledger entry state new, got %s", entries[0].State)
		}
	})

	t.Run("accepts quoted as initial state", func(t *testing.T) {
		svc, store := newPolicyService(nil)
		customer := seedCustomer(t, store, 30)

		policy, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "life", State: "quoted"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if policy.State != domain.PolicyStateQuoted {
			t.Fatalf("expected state quoted, got %s", policy.State)
		}
	})

	t.Run("rejects non-initial state", func(t *testing.T) {
		svc, store := newPolicyService(nil)
		customer := seedCustomer(t, store, 30)

		_, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "life", State: "bound"})
		assertDomainCode(t, err, apperrors.CodeValidation)
	})

	t.Run("normalizes hyphenated policy type", func(t *testing.T) {
		svc, store := newPolicyService(nil)
		customer := seedCustomer(t, store, 30)

		policy, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "Personal-Accident"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if policy.Type != domain.PolicyTypePersonalAccident {
			t.Fatalf("expected personal_accident, got %s", policy.Type)
		}
	})

	t.Run("unknown policy type", func(t *testing.T) {
		svc, store := newPolicyService(nil)
		customer := seedCustomer(t, store, 30)

		_, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "pet"})
		assertDomainCode(t, err, apperrors.CodeValidation)
	})

	t.Run("missing customer", func(t *testing.T) {
		svc, _ := newPolicyService(nil)
		_, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: "nope", PolicyType: "health"})
		assertDomainCode(t, err, apperrors.CodeNotFound)
	})

	t.Run("customer without dob fails pricing and rolls back", func(t *testing.T) {
		svc, store := newPolicyService(nil)
		customer := &domain.Customer{FirstName: "No", LastName: "Dob"}
		if err := store.Customers().Create(ctx, customer); err != nil {
			t.Fatalf("seed customer: %v", err)
		}

		_, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "health"})
		assertDomainCode(t, err, apperrors.CodeInvalidInput)

		policies, err := store.Policies().ListByCustomer(ctx, customer.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(policies) != 0 {
			t.Fatalf("expected rollback to leave no policies, got %d", len(policies))
		}
	})
}

func TestPolicyService_ChangeState(t *testing.T) {
	ctx := context.Background()

	t.Run("each effective change appends one ledger entry", func(t *testing.T) {
		svc, store := newPolicyService(nil)
		customer := seedCustomer(t, store, 25)
		policy, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "travel"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		transitions := []string{"quoted", "accepted", "bound"}
		for _, state := range transitions {
			if _, err := svc.ChangeState(ctx, policy.ID, state); err != nil {
				t.Fatalf("transition to %s: %v", state, err)
			}
		}

		entries, err := svc.History(ctx, policy.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 1+len(transitions) {
			t.Fatalf("expected %d ledger entries, got %d", 1+len(transitions), len(entries))
		}
		// Newest first.
		want := []domain.PolicyState{domain.PolicyStateBound, domain.PolicyStateAccepted, domain.PolicyStateQuoted, domain.PolicyStateNew}
		for i, state := range want {
			if entries[i].State != state {
				t.Fatalf("entry %d: expected %s, got %s", i, state, entries[i].State)
			}
		}
	})

	t.Run("setting the current state appends nothing", func(t *testing.T) {
		svc, store := newPolicyService(nil)
		customer := seedCustomer(t, store, 25)
		policy, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "home"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		updated, err := svc.ChangeState(ctx, policy.ID, "new")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.State != domain.PolicyStateNew {
			t.Fatalf("expected state new, got %s", updated.State)
		}

		entries, err := svc.History(ctx, policy.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected only the initial entry, got %d", len(entries))
		}
	})

	t.Run("unknown state", func(t *testing.T) {
		svc, store := newPolicyService(nil)
		customer := seedCustomer(t, store, 25)
		policy, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "home"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err = svc.ChangeState(ctx, policy.ID, "cancelled")
		assertDomainCode(t, err, apperrors.CodeValidation)
	})

	t.Run("missing policy", func(t *testing.T) {
		svc, _ := newPolicyService(nil)
		_, err := svc.ChangeState(ctx, "nope", "bound")
		assertDomainCode(t, err, apperrors.CodeNotFound)
	})
}

func TestPolicyService_Pay(t *testing.T) {
	ctx := context.Background()

	t.Run("binds the policy and appends one entry", func(t *testing.T) {
		svc, store := newPolicyService(nil)
		customer := seedCustomer(t, store, 25)
		policy, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "health"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		paid, err := svc.Pay(ctx, policy.ID, "credit_card")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if paid.State != domain.PolicyStateBound {
			t.Fatalf("expected state bound, got %s", paid.State)
		}

		entries, err := svc.History(ctx, policy.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 ledger entries, got %d", len(entries))
		}
		if entries[0].State != domain.PolicyStateBound {
			t.Fatalf("expected newest entry bound, got %s", entries[0].State)
		}
	})

	t.Run("repeat payment is a no-op success", func(t *testing.T) {
		svc, store := newPolicyService(nil)
		customer := seedCustomer(t, store, 25)
		policy, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "health"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := svc.Pay(ctx, policy.ID, "credit_card"); err != nil {
			t.Fatalf("first payment: %v", err)
		}
		paid, err := svc.Pay(ctx, policy.ID, "credit_card")
		if err != nil {
			t.Fatalf("second payment: %v", err)
		}
		if paid.State != domain.PolicyStateBound {
			t.Fatalf("expected state bound, got %s", paid.State)
		}

		entries, err := svc.History(ctx, policy.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		bound := 0
		for _, entry := range entries {
			if entry.State == domain.PolicyStateBound {
				bound++
			}
		}
		if bound != 1 {
			t.Fatalf("expected exactly one bound entry, got %d", bound)
		}
	})

	t.Run("empty payment method", func(t *testing.T) {
		svc, store := newPolicyService(nil)
		customer := seedCustomer(t, store, 25)
		policy, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "health"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err = svc.Pay(ctx, policy.ID, "   ")
		assertDomainCode(t, err, apperrors.CodeValidation)
	})

	t.Run("missing policy", func(t *testing.T) {
		svc, _ := newPolicyService(nil)
		_, err := svc.Pay(ctx, "nope", "credit_card")
		assertDomainCode(t, err, apperrors.CodeNotFound)
	})

	t.Run("publishes state change and payment events", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		dispatcher := eventmocks.NewMockDispatcher(ctrl)

		var published []events.EventType
		dispatcher.EXPECT().Publish(gomock.Any(), gomock.AssignableToTypeOf(events.Event{})).DoAndReturn(
			func(_ context.Context, event events.Event) error {
				published = append(published, event.Type)
				return nil
			},
		).AnyTimes()

		svc, store := newPolicyService(dispatcher)
		customer := seedCustomer(t, store, 25)
		policy, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "health"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := svc.Pay(ctx, policy.ID, "credit_card"); err != nil {
			t.Fatalf("payment: %v", err)
		}

		want := []events.EventType{events.EventQuoteCreated, events.EventPolicyStateChanged, events.EventPaymentProcessed}
		if len(published) != len(want) {
			t.Fatalf("expected %d events, got %d (%v)", len(want), len(published), published)
		}
		for i, eventType := range want {
			if published[i] != eventType {
				t.Fatalf("event %d: expected %s, got %s", i, eventType, published[i])
			}
		}

		// A repeat payment reports the payment but no state change.
		published = nil
		if _, err := svc.Pay(ctx, policy.ID, "credit_card"); err != nil {
			t.Fatalf("repeat payment: %v", err)
		}
		if len(published) != 1 || published[0] != events.EventPaymentProcessed {
			t.Fatalf("expected only payment_processed, got %v", published)
		}
	})
}

func TestPolicyService_History(t *testing.T) {
	ctx := context.Background()

	t.Run("missing policy", func(t *testing.T) {
		svc, _ := newPolicyService(nil)
		_, err := svc.History(ctx, "nope")
		assertDomainCode(t, err, apperrors.CodeNotFound)
	})

	t.Run("entries are strictly newest-first", func(t *testing.T) {
		svc, store := newPolicyService(nil)
		customer := seedCustomer(t, store, 25)
		policy, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "life"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, state := range []string{"quoted", "accepted", "bound", "active"} {
			if _, err := svc.ChangeState(ctx, policy.ID, state); err != nil {
				t.Fatalf("transition to %s: %v", state, err)
			}
		}

		entries, err := svc.History(ctx, policy.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := 1; i < len(entries); i++ {
			prev, cur := entries[i-1], entries[i]
			if cur.UpdatedAt.After(prev.UpdatedAt) {
				t.Fatalf("entries out of order at %d", i)
			}
			if cur.UpdatedAt.Equal(prev.UpdatedAt) && cur.Seq > prev.Seq {
				t.Fatalf("tie not broken by insertion sequence at %d", i)
			}
		}
	})
}

func TestPolicyService_ListForCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("missing customer id", func(t *testing.T) {
		svc, _ := newPolicyService(nil)
		_, err := svc.ListForCustomer(ctx, "")
		assertDomainCode(t, err, apperrors.CodeValidation)
	})

	t.Run("unknown customer", func(t *testing.T) {
		svc, _ := newPolicyService(nil)
		_, err := svc.ListForCustomer(ctx, "nope")
		assertDomainCode(t, err, apperrors.CodeNotFound)
	})

	t.Run("returns policies newest-first", func(t *testing.T) {
		svc, store := newPolicyService(nil)
		customer := seedCustomer(t, store, 25)

		first, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "health"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := svc.CreateQuote(ctx, QuoteInput{CustomerID: customer.ID, PolicyType: "travel"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		policies, err := svc.ListForCustomer(ctx, customer.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(policies) != 2 {
			t.Fatalf("expected 2 policies, got %d", len(policies))
		}
		if policies[0].ID != second.ID || policies[1].ID != first.ID {
			t.Fatalf("expected newest-first ordering")
		}
	})
}
