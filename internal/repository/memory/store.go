// Package memory provides an in-memory Store used when no Postgres DSN
// is configured and as the deterministic store in tests. Semantics
// (ordering, cascade delete, not-found errors, transactional rollback)
// mirror the Postgres implementation.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/policy-service/internal/domain"
	"github.com/spec-kit/policy-service/internal/repository"
)

// Store keeps all entities in process memory. Writes inside WithinTx
// are atomic: the snapshot is restored when fn returns an error, and
// transactions serialize on a single mutex so concurrent writers never
// interleave.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	customers []domain.Customer
	policies  []domain.Policy
	history   []domain.PolicyStateHistory
	agents    []domain.Agent
	seq       int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) Customers() repository.CustomerRepository { return &customerRepo{s: s} }
func (s *Store) Policies() repository.PolicyRepository    { return &policyRepo{s: s} }
func (s *Store) History() repository.PolicyHistoryRepository {
	return &historyRepo{s: s}
}
func (s *Store) Agents() repository.AgentRepository { return &agentRepo{s: s} }

// WithinTx serializes writers and restores the previous state when fn
// fails, so a policy state change and its history entry commit or roll
// back together.
func (s *Store) WithinTx(_ context.Context, fn func(repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := snapshot{
		customers: append([]domain.Customer(nil), s.customers...),
		policies:  append([]domain.Policy(nil), s.policies...),
		history:   append([]domain.PolicyStateHistory(nil), s.history...),
		agents:    append([]domain.Agent(nil), s.agents...),
		seq:       s.seq,
	}
	s.mu.Unlock()

	if err := fn(txView{s}); err != nil {
		s.mu.Lock()
		s.customers = snap.customers
		s.policies = snap.policies
		s.history = snap.history
		s.agents = snap.agents
		s.seq = snap.seq
		s.mu.Unlock()
		return err
	}
	return nil
}

type snapshot struct {
	customers []domain.Customer
	policies  []domain.Policy
	history   []domain.PolicyStateHistory
	agents    []domain.Agent
	seq       int64
}

// txView reuses the enclosing transaction for nested WithinTx calls.
type txView struct {
	*Store
}

func (v txView) WithinTx(_ context.Context, fn func(repository.Store) error) error {
	return fn(v)
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

type customerRepo struct {
	s *Store
}

func (r *customerRepo) Create(_ context.Context, customer *domain.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	customer.ID = uuid.NewString()
	customer.CreatedAt = now
	customer.UpdatedAt = now
	r.s.customers = append(r.s.customers, *customer)
	return nil
}

func (r *customerRepo) Update(_ context.Context, customer *domain.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.customers {
		if r.s.customers[i].ID == customer.ID {
			customer.CreatedAt = r.s.customers[i].CreatedAt
			customer.UpdatedAt = time.Now()
			r.s.customers[i] = *customer
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *customerRepo) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for i := range r.s.customers {
		if r.s.customers[i].ID == id {
			customer := r.s.customers[i]
			return &customer, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *customerRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	idx := -1
	for i := range r.s.customers {
		if r.s.customers[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return pgx.ErrNoRows
	}
	r.s.customers = append(r.s.customers[:idx], r.s.customers[idx+1:]...)

	// Cascade: drop the customer's policies and their ledger entries.
	doomed := map[string]bool{}
	kept := r.s.policies[:0]
	for _, policy := range r.s.policies {
		if policy.CustomerID == id {
			doomed[policy.ID] = true
			continue
		}
		kept = append(kept, policy)
	}
	r.s.policies = kept

	keptHistory := r.s.history[:0]
	for _, entry := range r.s.history {
		if doomed[entry.PolicyID] {
			continue
		}
		keptHistory = append(keptHistory, entry)
	}
	r.s.history = keptHistory
	return nil
}

func (r *customerRepo) Search(_ context.Context, filter repository.CustomerFilter) ([]domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.Customer
	// Reverse insertion order matches created_at DESC.
	for i := len(r.s.customers) - 1; i >= 0; i-- {
		customer := r.s.customers[i]
		if filter.Name != nil && strings.TrimSpace(*filter.Name) != "" {
			needle := strings.ToLower(strings.TrimSpace(*filter.Name))
			first := strings.ToLower(customer.FirstName)
			last := strings.ToLower(customer.LastName)
			if !strings.Contains(first, needle) && !strings.Contains(last, needle) {
				continue
			}
		}
		if filter.DOB != nil && !sameDate(customer.DOB, *filter.DOB) {
			continue
		}
		if filter.PolicyType != nil && !r.hasPolicyOfType(customer.ID, *filter.PolicyType) {
			continue
		}
		result = append(result, customer)
	}
	return result, nil
}

func (r *customerRepo) hasPolicyOfType(customerID string, policyType domain.PolicyType) bool {
	want := strings.ToLower(string(policyType))
	for _, policy := range r.s.policies {
		if policy.CustomerID == customerID && strings.ToLower(string(policy.Type)) == want {
			return true
		}
	}
	return false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

type policyRepo struct {
	s *Store
}

func (r *policyRepo) Create(_ context.Context, policy *domain.Policy) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	policy.ID = uuid.NewString()
	policy.CreatedAt = now
	policy.UpdatedAt = now
	r.s.policies = append(r.s.policies, *policy)
	return nil
}

func (r *policyRepo) GetByID(_ context.Context, id string) (*domain.Policy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.find(id)
}

// GetByIDForUpdate has no extra locking to do here: WithinTx already
// serializes writers on the store-wide transaction mutex.
func (r *policyRepo) GetByIDForUpdate(_ context.Context, id string) (*domain.Policy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.find(id)
}

func (r *policyRepo) find(id string) (*domain.Policy, error) {
	for i := range r.s.policies {
		if r.s.policies[i].ID == id {
			policy := r.s.policies[i]
			return &policy, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *policyRepo) UpdateState(_ context.Context, id string, state domain.PolicyState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.policies {
		if r.s.policies[i].ID == id {
			r.s.policies[i].State = state
			r.s.policies[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *policyRepo) ListByCustomer(_ context.Context, customerID string) ([]domain.Policy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.Policy
	for i := len(r.s.policies) - 1; i >= 0; i-- {
		if r.s.policies[i].CustomerID == customerID {
			result = append(result, r.s.policies[i])
		}
	}
	return result, nil
}

type historyRepo struct {
	s *Store
}

func (r *historyRepo) Create(_ context.Context, entry *domain.PolicyStateHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	entry.ID = uuid.NewString()
	entry.Seq = r.s.nextSeq()
	entry.UpdatedAt = time.Now()
	r.s.history = append(r.s.history, *entry)
	return nil
}

func (r *historyRepo) ListByPolicy(_ context.Context, policyID string) ([]domain.PolicyStateHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.PolicyStateHistory
	for _, entry := range r.s.history {
		if entry.PolicyID == policyID {
			result = append(result, entry)
		}
	}
	// Newest first; seq breaks timestamp ties.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].Seq > result[j].Seq
	})
	return result, nil
}

type agentRepo struct {
	s *Store
}

func (r *agentRepo) Create(_ context.Context, agent *domain.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	agent.ID = uuid.NewString()
	agent.CreatedAt = now
	agent.UpdatedAt = now
	r.s.agents = append(r.s.agents, *agent)
	return nil
}

func (r *agentRepo) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for i := range r.s.agents {
		if r.s.agents[i].ID == id {
			agent := r.s.agents[i]
			return &agent, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *agentRepo) GetByEmail(_ context.Context, email string) (*domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for i := range r.s.agents {
		if r.s.agents[i].Email == email {
			agent := r.s.agents[i]
			return &agent, nil
		}
	}
	return nil, pgx.ErrNoRows
}
