// internal/domain/policy/repository.go
package policy

import "context"

// Repository persists policies. List returns policies ordered by policy number ascending.
//
// FindByNumber and Update return xerrors.ErrNotFound for unknown numbers, Insert returns
// xerrors.ErrDuplicateEntry when the number is taken, and Update returns
// xerrors.ErrConcurrentUpdate when the stored version no longer matches expectedVersion.
type Repository interface {
	List(ctx context.Context) ([]Policy, error)
	FindByNumber(ctx context.Context, policyNumber int64) (*Policy, error)
	MaxPolicyNumber(ctx context.Context) (max int64, ok bool, err error)
	Insert(ctx context.Context, p *Policy) error
	Update(ctx context.Context, p *Policy, expectedVersion int64) error
}
