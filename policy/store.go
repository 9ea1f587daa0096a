package policy

import (
	"context"

	"github.com/xraph/bastion/id"
)

// Store defines persistence operations for conditional policies.
type Store interface {
	// CreatePolicy persists a new policy. Duplicate names return
	// errdefs.ErrConflict.
	CreatePolicy(ctx context.Context, p *Policy) error

	// GetPolicy retrieves a policy by ID.
	GetPolicy(ctx context.Context, polID id.PolicyID) (*Policy, error)

	// UpdatePolicy persists changes to a policy.
	UpdatePolicy(ctx context.Context, p *Policy) error

	// ListPolicies returns policies matching the filter.
	ListPolicies(ctx context.Context, filter *ListFilter) ([]*Policy, error)

	// ListActivePolicies returns every active policy.
	ListActivePolicies(ctx context.Context) ([]*Policy, error)
}
