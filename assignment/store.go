package assignment

import (
	"context"

	"github.com/xraph/bastion/id"
)

// Store defines persistence operations for role assignments.
type Store interface {
	// CreateAssignment persists a new assignment.
	CreateAssignment(ctx context.Context, a *Assignment) error

	// GetAssignmentByUserRole returns the assignment record for a user and
	// role, active or not.
	GetAssignmentByUserRole(ctx context.Context, userID string, roleID id.RoleID) (*Assignment, error)

	// UpdateAssignment persists changes to an assignment.
	UpdateAssignment(ctx context.Context, a *Assignment) error

	// ListAssignments returns assignments matching the filter.
	ListAssignments(ctx context.Context, filter *ListFilter) ([]*Assignment, error)

	// ListRolesForUser returns the IDs of roles actively assigned to a user.
	ListRolesForUser(ctx context.Context, userID string) ([]id.RoleID, error)
}
