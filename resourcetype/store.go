package resourcetype

import (
	"context"
)

// Store defines persistence operations for resource types.
type Store interface {
	// CreateResourceType persists a new resource type. Duplicate names
	// return errdefs.ErrConflict.
	CreateResourceType(ctx context.Context, rt *ResourceType) error

	// GetResourceTypeByName retrieves a resource type by name.
	GetResourceTypeByName(ctx context.Context, name string) (*ResourceType, error)

	// ListResourceTypes returns resource types matching the filter.
	ListResourceTypes(ctx context.Context, filter *ListFilter) ([]*ResourceType, error)
}
