package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store aggregates entity repositories behind a single handle and
// provides transactional execution. Repositories obtained inside
// WithinTx share the same transaction; a state change and its history
// entry must never be persisted separately.
type Store interface {
	Customers() CustomerRepository
	Policies() PolicyRepository
	History() PolicyHistoryRepository
	Agents() AgentRepository
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the pgx-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    Querier
}

// NewPostgresStore wraps a connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

func (s *PostgresStore) Customers() CustomerRepository {
	return &customerRepository{q: s.q}
}

func (s *PostgresStore) Policies() PolicyRepository {
	return &policyRepository{q: s.q}
}

func (s *PostgresStore) History() PolicyHistoryRepository {
	return &policyHistoryRepository{q: s.q}
}

func (s *PostgresStore) Agents() AgentRepository {
	return &agentRepository{q: s.q}
}

// WithinTx runs fn against a store bound to a single transaction,
// committing on success and rolling back on error. Nested calls reuse
// the enclosing transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if _, inTx := s.q.(pgx.Tx); inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}

	txStore := &PostgresStore{pool: s.pool, q: tx}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
