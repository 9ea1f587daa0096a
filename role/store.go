package role

import (
	"context"

	"github.com/xraph/bastion/id"
)

// Store defines persistence operations for roles, their permission bindings
// and their parent edges. Each mutating method is a single atomic operation.
type Store interface {
	// CreateRole persists a new role together with its initial parents.
	CreateRole(ctx context.Context, r *Role) error

	// GetRole retrieves a role by ID, including its parent IDs.
	GetRole(ctx context.Context, roleID id.RoleID) (*Role, error)

	// GetRoleByName retrieves a role by its unique name.
	GetRoleByName(ctx context.Context, name string) (*Role, error)

	// UpdateRole persists attribute changes to a role. Parent edges are
	// managed with AddRoleParent and RemoveRoleParent.
	UpdateRole(ctx context.Context, r *Role) error

	// ListRoles returns roles matching the filter.
	ListRoles(ctx context.Context, filter *ListFilter) ([]*Role, error)

	// ListRolePermissions returns permission IDs bound directly to a role.
	ListRolePermissions(ctx context.Context, roleID id.RoleID) ([]id.PermissionID, error)

	// AttachPermission binds a permission to a role. Binding twice is a no-op.
	AttachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error

	// DetachPermission unbinds a permission from a role.
	DetachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error

	// ListRoleParents returns the direct parents of a role.
	ListRoleParents(ctx context.Context, roleID id.RoleID) ([]id.RoleID, error)

	// AddRoleParent adds a parent edge. Adding an existing edge is a no-op.
	AddRoleParent(ctx context.Context, roleID, parentID id.RoleID) error

	// RemoveRoleParent removes a parent edge.
	RemoveRoleParent(ctx context.Context, roleID, parentID id.RoleID) error
}
