package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/policy-service/internal/domain"
	"github.com/spec-kit/policy-service/internal/events"
	"github.com/spec-kit/policy-service/internal/pricing"
	"github.com/spec-kit/policy-service/internal/repository"
	apperrors "github.com/spec-kit/policy-service/pkg/util/errorutil"
)

// PolicyService owns the policy state machine: quote creation, state
// transitions, payment and the history ledger. Every state change goes
// through transition(), which is the single place where transition
// rules live and where the ledger entry is appended atomically with the
// persisted state.
type PolicyService struct {
	store      repository.Store
	engine     *pricing.Engine
	baseAmount float64
	dispatcher events.Dispatcher
}

// PolicyDependencies bundles collaborators for the policy service.
type PolicyDependencies struct {
	Store      repository.Store
	Engine     *pricing.Engine
	BaseAmount float64
	Dispatcher events.Dispatcher
}

// NewPolicyService constructs the service.
func NewPolicyService(deps PolicyDependencies) *PolicyService {
	base := deps.BaseAmount
	if base <= 0 {
		base = pricing.DefaultBaseAmount
	}
	return &PolicyService{
		store:      deps.Store,
		engine:     deps.Engine,
		baseAmount: base,
		dispatcher: deps.Dispatcher,
	}
}

// QuoteInput describes a quote request. Premium and cover are never
// part of the input: pricing is always server-side.
type QuoteInput struct {
	CustomerID string
	PolicyType string
	State      string
}

// CreateQuote prices a policy for the customer and persists it together
// with its initial ledger entry in one transaction.
func (s *PolicyService) CreateQuote(ctx context.Context, input QuoteInput) (*domain.Policy, error) {
	if strings.TrimSpace(input.CustomerID) == "" {
		return nil, apperrors.NewValidationError("customer_id required", nil)
	}

	policyType := domain.NormalizePolicyType(input.PolicyType)
	if !policyType.Valid() {
		return nil, apperrors.NewValidationError("unknown policy type", map[string]any{"policy_type": input.PolicyType})
	}

	initialState := domain.PolicyStateNew
	if raw := strings.TrimSpace(input.State); raw != "" {
		initialState = domain.PolicyState(strings.ToLower(raw))
		if initialState != domain.PolicyStateNew && initialState != domain.PolicyStateQuoted {
			return nil, apperrors.NewValidationError("a quote starts in state new or quoted", map[string]any{"state": raw})
		}
	}

	var policy *domain.Policy
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		customer, err := tx.Customers().GetByID(ctx, input.CustomerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("customer", map[string]any{"customer_id": input.CustomerID})
			}
			return err
		}

		premium, cover, err := s.engine.Quote(customer, policyType, s.baseAmount)
		if err != nil {
			return err
		}

		policy = &domain.Policy{
			CustomerID: customer.ID,
			Type:       policyType,
			Premium:    premium,
			Cover:      cover,
			State:      initialState,
		}
		if err := tx.Policies().Create(ctx, policy); err != nil {
			return err
		}
		entry := &domain.PolicyStateHistory{PolicyID: policy.ID, State: policy.State}
		return tx.History().Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventQuoteCreated,
		PolicyID: policy.ID,
		Payload: events.QuoteCreatedPayload{
			CustomerID: policy.CustomerID,
			PolicyType: policy.Type,
			Premium:    policy.Premium,
			Cover:      policy.Cover,
			State:      policy.State,
		},
	})
	return policy, nil
}

// ChangeState moves a policy to the given state. Setting the current
// state is a no-op success and appends nothing to the ledger.
func (s *PolicyService) ChangeState(ctx context.Context, policyID, rawState string) (*domain.Policy, error) {
	newState := domain.PolicyState(strings.ToLower(strings.TrimSpace(rawState)))
	policy, oldState, changed, err := s.transition(ctx, policyID, newState)
	if err != nil {
		return nil, err
	}
	if changed {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventPolicyStateChanged,
			PolicyID: policy.ID,
			Payload:  events.PolicyStateChangedPayload{OldState: oldState, NewState: policy.State},
		})
	}
	return policy, nil
}

// Pay records a successful payment and binds the policy. Payment
// processing itself is stubbed; only the state machine side runs here.
// Paying an already-bound policy is a no-op success, so concurrent
// payment attempts serialize on the row lock and exactly one of them
// appends the ledger entry.
func (s *PolicyService) Pay(ctx context.Context, policyID, paymentMethod string) (*domain.Policy, error) {
	if strings.TrimSpace(paymentMethod) == "" {
		return nil, apperrors.NewValidationError("payment_method required", nil)
	}

	policy, oldState, changed, err := s.transition(ctx, policyID, domain.PolicyStateBound)
	if err != nil {
		return nil, err
	}
	if changed {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventPolicyStateChanged,
			PolicyID: policy.ID,
			Payload:  events.PolicyStateChangedPayload{OldState: oldState, NewState: policy.State},
		})
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventPaymentProcessed,
		PolicyID: policy.ID,
		Payload:  events.PaymentProcessedPayload{PaymentMethod: paymentMethod, NewState: policy.State},
	})
	return policy, nil
}

// History returns the policy's ledger entries newest-first.
func (s *PolicyService) History(ctx context.Context, policyID string) ([]domain.PolicyStateHistory, error) {
	if _, err := s.store.Policies().GetByID(ctx, policyID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("policy", map[string]any{"policy_id": policyID})
		}
		return nil, err
	}
	return s.store.History().ListByPolicy(ctx, policyID)
}

// ListForCustomer returns the customer's policies newest-first.
func (s *PolicyService) ListForCustomer(ctx context.Context, customerID string) ([]domain.Policy, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, apperrors.NewValidationError("customer_id required", nil)
	}
	if _, err := s.store.Customers().GetByID(ctx, customerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("customer", map[string]any{"customer_id": customerID})
		}
		return nil, err
	}
	return s.store.Policies().ListByCustomer(ctx, customerID)
}

// transition is the single choke point for state changes. It locks the
// policy row, persists the new state and appends the ledger entry in
// one transaction; a state change is never visible without its entry.
func (s *PolicyService) transition(ctx context.Context, policyID string, newState domain.PolicyState) (policy *domain.Policy, oldState domain.PolicyState, changed bool, err error) {
	if !newState.Valid() {
		return nil, "", false, apperrors.NewValidationError("unknown policy state", map[string]any{"state": string(newState)})
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		current, err := tx.Policies().GetByIDForUpdate(ctx, policyID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("policy", map[string]any{"policy_id": policyID})
			}
			return err
		}

		oldState = current.State
		if current.State == newState {
			policy = current
			return nil
		}
		if !transitionAllowed(current.State, newState) {
			return apperrors.NewConflict("state transition not allowed", map[string]any{
				"from": string(current.State),
				"to":   string(newState),
			})
		}

		if err := tx.Policies().UpdateState(ctx, current.ID, newState); err != nil {
			return err
		}
		entry := &domain.PolicyStateHistory{PolicyID: current.ID, State: newState}
		if err := tx.History().Create(ctx, entry); err != nil {
			return err
		}

		current.State = newState
		current.UpdatedAt = entry.UpdatedAt
		policy = current
		changed = true
		return nil
	})
	if err != nil {
		return nil, "", false, err
	}
	return policy, oldState, changed, nil
}

// transitionAllowed admits every pair today, matching the system this
// replaces: payment binds a policy from any prior state. Rules such as
// "bound is terminal except via admin override" belong here when the
// business defines them.
func transitionAllowed(_, _ domain.PolicyState) bool {
	return true
}

func (s *PolicyService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
