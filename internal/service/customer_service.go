package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/policy-service/internal/domain"
	"github.com/spec-kit/policy-service/internal/repository"
	apperrors "github.com/spec-kit/policy-service/pkg/util/errorutil"
)

const (
	dobStorageLayout = "2006-01-02"
	dobSearchLayout  = "02-01-2006"
)

// CustomerService coordinates customer CRUD and search.
type CustomerService struct {
	store repository.Store
}

// NewCustomerService constructs the service.
func NewCustomerService(store repository.Store) *CustomerService {
	return &CustomerService{store: store}
}

// CustomerInput carries customer attributes; DOB uses yyyy-mm-dd.
type CustomerInput struct {
	FirstName string
	LastName  string
	DOB       string
}

// SearchInput carries optional search filters; DOB uses dd-mm-yyyy.
type SearchInput struct {
	Name       string
	DOB        string
	PolicyType string
}

// CreateCustomer validates and persists a new customer.
func (s *CustomerService) CreateCustomer(ctx context.Context, input CustomerInput) (*domain.Customer, error) {
	customer, err := customerFromInput(input)
	if err != nil {
		return nil, err
	}
	if err := s.store.Customers().Create(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// GetCustomer fetches a customer by id.
func (s *CustomerService) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	customer, err := s.store.Customers().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("customer", map[string]any{"customer_id": id})
		}
		return nil, err
	}
	return customer, nil
}

// UpdateCustomer replaces the mutable attributes (name and dob).
func (s *CustomerService) UpdateCustomer(ctx context.Context, id string, input CustomerInput) (*domain.Customer, error) {
	customer, err := customerFromInput(input)
	if err != nil {
		return nil, err
	}
	customer.ID = id
	if err := s.store.Customers().Update(ctx, customer); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("customer", map[string]any{"customer_id": id})
		}
		return nil, err
	}
	return customer, nil
}

// DeleteCustomer removes a customer; its policies and their history
// follow via cascade.
func (s *CustomerService) DeleteCustomer(ctx context.Context, id string) error {
	if err := s.store.Customers().Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("customer", map[string]any{"customer_id": id})
		}
		return err
	}
	return nil
}

// Search filters customers by name, date of birth and policy type.
// Filters combine with AND; no filters returns all customers. A
// malformed date is a validation error, a valid date with no matches is
// an empty success.
func (s *CustomerService) Search(ctx context.Context, input SearchInput) ([]domain.Customer, error) {
	filter := repository.CustomerFilter{}

	if name := strings.TrimSpace(input.Name); name != "" {
		filter.Name = &name
	}
	if raw := strings.TrimSpace(input.DOB); raw != "" {
		dob, err := time.Parse(dobSearchLayout, raw)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid date format, use dd-mm-yyyy", map[string]any{"dob": raw})
		}
		filter.DOB = &dob
	}
	if raw := strings.TrimSpace(input.PolicyType); raw != "" {
		policyType := domain.NormalizePolicyType(raw)
		filter.PolicyType = &policyType
	}

	customers, err := s.store.Customers().Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	if customers == nil {
		customers = []domain.Customer{}
	}
	return customers, nil
}

func customerFromInput(input CustomerInput) (*domain.Customer, error) {
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	if firstName == "" || lastName == "" {
		return nil, apperrors.NewValidationError("first_name and last_name required", nil)
	}

	raw := strings.TrimSpace(input.DOB)
	if raw == "" {
		return nil, apperrors.NewValidationError("dob required", nil)
	}
	dob, err := time.Parse(dobStorageLayout, raw)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid dob, use yyyy-mm-dd", map[string]any{"dob": raw})
	}
	if dob.After(time.Now()) {
		return nil, apperrors.NewValidationError("dob cannot be in the future", map[string]any{"dob": raw})
	}

	return &domain.Customer{
		FirstName: firstName,
		LastName:  lastName,
		DOB:       dob,
	}, nil
}
