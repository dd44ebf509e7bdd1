package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/policy-service/internal/domain"
)

// PolicyRepository encapsulates policy persistence.
type PolicyRepository interface {
	Create(ctx context.Context, policy *domain.Policy) error
	GetByID(ctx context.Context, id string) (*domain.Policy, error)
	// GetByIDForUpdate locks the policy row for the duration of the
	// enclosing transaction so concurrent state changes serialize.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Policy, error)
	UpdateState(ctx context.Context, id string, state domain.PolicyState) error
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Policy, error)
}

type policyRepository struct {
	q Querier
}

const policyColumns = `id, customer_id, policy_type, premium, cover, state, created_at, updated_at`

func (r *policyRepository) Create(ctx context.Context, policy *domain.Policy) error {
	const query = `
        INSERT INTO policies (customer_id, policy_type, premium, cover, state)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`
	return r.q.QueryRow(ctx, query,
		policy.CustomerID,
		policy.Type,
		policy.Premium,
		policy.Cover,
		policy.State,
	).Scan(&policy.ID, &policy.CreatedAt, &policy.UpdatedAt)
}

func (r *policyRepository) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	return r.fetchSingle(ctx, `SELECT `+policyColumns+` FROM policies WHERE id=$1`, id)
}

func (r *policyRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Policy, error) {
	return r.fetchSingle(ctx, `SELECT `+policyColumns+` FROM policies WHERE id=$1 FOR UPDATE`, id)
}

func (r *policyRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Policy, error) {
	var policy domain.Policy
	if err := r.q.QueryRow(ctx, query, arg).Scan(
		&policy.ID,
		&policy.CustomerID,
		&policy.Type,
		&policy.Premium,
		&policy.Cover,
		&policy.State,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *policyRepository) UpdateState(ctx context.Context, id string, state domain.PolicyState) error {
	cmd, err := r.q.Exec(ctx, `UPDATE policies SET state=$1, updated_at=NOW() WHERE id=$2`, state, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *policyRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Policy, error) {
	const query = `SELECT ` + policyColumns + ` FROM policies
        WHERE customer_id=$1 ORDER BY created_at DESC, id DESC`
	rows, err := r.q.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Policy
	for rows.Next() {
		var policy domain.Policy
		if err := rows.Scan(
			&policy.ID,
			&policy.CustomerID,
			&policy.Type,
			&policy.Premium,
			&policy.Cover,
			&policy.State,
			&policy.CreatedAt,
			&policy.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, policy)
	}
	return result, rows.Err()
}
