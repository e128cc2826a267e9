// internal/repository/postgres/policy_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"policy-service/internal/domain/policy"
	xerrors "policy-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const policyColumns = `
	policy_number, customer_name, start_date, end_date,
	is_cancelled, cancelled_date, version, created_at, updated_at
`

type PolicyRepository struct {
	db *pgxpool.Pool
}

var _ policy.Repository = &PolicyRepository{}

func NewPolicyRepository(db *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// List retrieves every policy ordered by policy number
func (r *PolicyRepository) List(ctx context.Context) ([]policy.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies ORDER BY policy_number ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	policies := []policy.Policy{}
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}

	return policies, nil
}

// FindByNumber retrieves a policy by its number
func (r *PolicyRepository) FindByNumber(ctx context.Context, policyNumber int64) (*policy.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE policy_number = $1`

	p, err := scanPolicy(r.db.QueryRow(ctx, query, policyNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find policy: %w", err)
	}

	return p, nil
}

// MaxPolicyNumber returns the highest assigned policy number
func (r *PolicyRepository) MaxPolicyNumber(ctx context.Context) (int64, bool, error) {
	var max *int64
	if err := r.db.QueryRow(ctx, `SELECT MAX(policy_number) FROM policies`).Scan(&max); err != nil {
		return 0, false, fmt.Errorf("failed to read max policy number: %w", err)
	}

	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

// Insert creates a new policy
func (r *PolicyRepository) Insert(ctx context.Context, p *policy.Policy) error {
	query := `
		INSERT INTO policies (
			policy_number, customer_name, start_date, end_date,
			is_cancelled, cancelled_date, version
		) VALUES ($1, $2, $3, $4, $5, $6, 1)
		RETURNING version, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		p.PolicyNumber, p.CustomerName, p.StartDate.UTC(), p.EndDate.UTC(),
		p.IsCancelled, p.CancelledDate,
	).Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return xerrors.ErrDuplicateEntry
	}
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}

	return nil
}

// Update writes p if the stored row still carries expectedVersion
func (r *PolicyRepository) Update(ctx context.Context, p *policy.Policy, expectedVersion int64) error {
	query := `
		UPDATE policies
		SET customer_name = $1, start_date = $2, end_date = $3,
		    is_cancelled = $4, cancelled_date = $5,
		    version = version + 1, updated_at = $6
		WHERE policy_number = $7 AND version = $8
		RETURNING version, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		p.CustomerName, p.StartDate.UTC(), p.EndDate.UTC(),
		p.IsCancelled, p.CancelledDate, time.Now().UTC(),
		p.PolicyNumber, expectedVersion,
	).Scan(&p.Version, &p.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		existsQuery := `SELECT EXISTS(SELECT 1 FROM policies WHERE policy_number = $1)`
		if err := r.db.QueryRow(ctx, existsQuery, p.PolicyNumber).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check policy existence: %w", err)
		}
		if !exists {
			return xerrors.ErrNotFound
		}
		return xerrors.ErrConcurrentUpdate
	}
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}

	return nil
}

func scanPolicy(row pgx.Row) (*policy.Policy, error) {
	var p policy.Policy
	err := row.Scan(
		&p.PolicyNumber, &p.CustomerName, &p.StartDate, &p.EndDate,
		&p.IsCancelled, &p.CancelledDate, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.StartDate = p.StartDate.UTC()
	p.EndDate = p.EndDate.UTC()
	if p.CancelledDate != nil {
		t := p.CancelledDate.UTC()
		p.CancelledDate = &t
	}

	return &p, nil
}
