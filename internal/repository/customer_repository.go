package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/policy-service/internal/domain"
)

// CustomerFilter captures search parameters. All present filters are
// combined with AND; the name filter itself matches first OR last name.
type CustomerFilter struct {
	Name       *string
	DOB        *time.Time
	PolicyType *domain.PolicyType
}

// CustomerRepository encapsulates customer persistence.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	Update(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, filter CustomerFilter) ([]domain.Customer, error)
}

type customerRepository struct {
	q Querier
}

func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	const query = `
        INSERT INTO customers (first_name, last_name, dob)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`
	return r.q.QueryRow(ctx, query,
		customer.FirstName,
		customer.LastName,
		customer.DOB,
	).Scan(&customer.ID, &customer.CreatedAt, &customer.UpdatedAt)
}

func (r *customerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	const query = `
        UPDATE customers SET first_name=$1, last_name=$2, dob=$3, updated_at=NOW()
        WHERE id=$4`
	cmd, err := r.q.Exec(ctx, query,
		customer.FirstName,
		customer.LastName,
		customer.DOB,
		customer.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	const query = `
        SELECT id, first_name, last_name, dob, created_at, updated_at
        FROM customers WHERE id=$1`

	var customer domain.Customer
	if err := r.q.QueryRow(ctx, query, id).Scan(
		&customer.ID,
		&customer.FirstName,
		&customer.LastName,
		&customer.DOB,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &customer, nil
}

// Delete removes the customer; policies and their history rows follow
// via ON DELETE CASCADE.
func (r *customerRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *customerRepository) Search(ctx context.Context, filter CustomerFilter) ([]domain.Customer, error) {
	base := `SELECT id, first_name, last_name, dob, created_at, updated_at FROM customers`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Name != nil && strings.TrimSpace(*filter.Name) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.Name)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(first_name) LIKE %s OR LOWER(last_name) LIKE %s)", placeholder, placeholder))
	}
	if filter.DOB != nil {
		args = append(args, *filter.DOB)
		clauses = append(clauses, fmt.Sprintf("dob=$%d", len(args)))
	}
	if filter.PolicyType != nil {
		args = append(args, strings.ToLower(string(*filter.PolicyType)))
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM policies p WHERE p.customer_id=customers.id AND LOWER(p.policy_type)=$%d)", len(args)))
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC`, base, strings.Join(clauses, " AND "))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Customer
	for rows.Next() {
		var customer domain.Customer
		if err := rows.Scan(
			&customer.ID,
			&customer.FirstName,
			&customer.LastName,
			&customer.DOB,
			&customer.CreatedAt,
			&customer.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, customer)
	}
	return result, rows.Err()
}
