package grant

import (
	"context"
	"time"

	"github.com/xraph/bastion/id"
)

// Store defines persistence operations for temporal grants.
type Store interface {
	// CreateGrant persists a new grant.
	CreateGrant(ctx context.Context, g *Grant) error

	// GetGrant retrieves a grant by ID.
	GetGrant(ctx context.Context, grantID id.GrantID) (*Grant, error)

	// RevokeGrant marks a grant inactive. Unknown IDs return
	// errdefs.ErrNotFound.
	RevokeGrant(ctx context.Context, grantID id.GrantID) error

	// ListGrantsForUser returns every grant, active or not, held by a user
	// for a permission.
	ListGrantsForUser(ctx context.Context, userID string, permID id.PermissionID) ([]*Grant, error)

	// ListGrants returns grants matching the filter.
	ListGrants(ctx context.Context, filter *ListFilter) ([]*Grant, error)

	// CountGrantsForPermission returns how many grants reference a permission.
	CountGrantsForPermission(ctx context.Context, permID id.PermissionID) (int64, error)

	// ConsumeGrant atomically increments current_uses when the grant is
	// active, not past ValidUntil at now, and below max_uses, and returns the
	// updated grant stamped with now. Revoked or expired grants return
	// errdefs.ErrGrantInactive and exhausted ones errdefs.ErrQuotaExceeded.
	// Usable unlimited grants are returned unchanged.
	ConsumeGrant(ctx context.Context, grantID id.GrantID, now time.Time) (*Grant, error)
}
