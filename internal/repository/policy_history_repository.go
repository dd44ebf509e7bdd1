package repository

import (
	"context"

	"github.com/spec-kit/policy-service/internal/domain"
)

// PolicyHistoryRepository stores the append-only state ledger. There is
// deliberately no update or delete: entries are immutable once written.
type PolicyHistoryRepository interface {
	Create(ctx context.Context, entry *domain.PolicyStateHistory) error
	ListByPolicy(ctx context.Context, policyID string) ([]domain.PolicyStateHistory, error)
}

type policyHistoryRepository struct {
	q Querier
}

func (r *policyHistoryRepository) Create(ctx context.Context, entry *domain.PolicyStateHistory) error {
	const query = `
        INSERT INTO policy_state_history (policy_id, state)
        VALUES ($1, $2)
        RETURNING id, seq, updated_at`
	return r.q.QueryRow(ctx, query,
		entry.PolicyID,
		entry.State,
	).Scan(&entry.ID, &entry.Seq, &entry.UpdatedAt)
}

// ListByPolicy returns entries newest-first; timestamp ties are broken
// by insertion sequence so the order is deterministic.
func (r *policyHistoryRepository) ListByPolicy(ctx context.Context, policyID string) ([]domain.PolicyStateHistory, error) {
	const query = `
        SELECT id, policy_id, state, updated_at, seq
        FROM policy_state_history WHERE policy_id=$1
        ORDER BY updated_at DESC, seq DESC`
	rows, err := r.q.Query(ctx, query, policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PolicyStateHistory
	for rows.Next() {
		var entry domain.PolicyStateHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.PolicyID,
			&entry.State,
			&entry.UpdatedAt,
			&entry.Seq,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
