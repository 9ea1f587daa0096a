package permission

import (
	"context"

	"github.com/xraph/bastion/id"
)

// Store defines persistence operations for permissions.
type Store interface {
	// CreatePermission persists a new permission. Duplicate names return
	// errdefs.ErrConflict.
	CreatePermission(ctx context.Context, p *Permission) error

	// GetPermission retrieves a permission by ID.
	GetPermission(ctx context.Context, permID id.PermissionID) (*Permission, error)

	// GetPermissionByName retrieves a permission by its unique name.
	GetPermissionByName(ctx context.Context, name string) (*Permission, error)

	// UpdatePermission persists changes to a permission.
	UpdatePermission(ctx context.Context, p *Permission) error

	// ListPermissions returns permissions matching the filter, ordered by name.
	ListPermissions(ctx context.Context, filter *ListFilter) ([]*Permission, error)
}
