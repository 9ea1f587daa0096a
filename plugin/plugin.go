// Package plugin defines the plugin system for Bastion.
// Plugins are notified of lifecycle events (decision made, grant consumed,
// role graph changed, etc.) and can react, for example with metrics or
// tracing.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/policy"
	"github.com/xraph/bastion/role"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Decision lifecycle hooks
// ──────────────────────────────────────────────────

// BeforeDecide is called before a decision is evaluated.
// The req parameter is *bastion.DecisionRequest (passed as any to avoid an
// import cycle).
type BeforeDecide interface {
	OnBeforeDecide(ctx context.Context, req any) error
}

// AfterDecide is called after a decision completes, including cache hits.
// The req parameter is *bastion.DecisionRequest; decision is
// *bastion.Decision.
type AfterDecide interface {
	OnAfterDecide(ctx context.Context, req, decision any) error
}

// ──────────────────────────────────────────────────
// Catalog lifecycle hooks
// ──────────────────────────────────────────────────

// PermissionRegistered is called after a permission is registered.
type PermissionRegistered interface {
	OnPermissionRegistered(ctx context.Context, p *permission.Permission) error
}

// PermissionDeactivated is called after a permission is deactivated.
type PermissionDeactivated interface {
	OnPermissionDeactivated(ctx context.Context, p *permission.Permission) error
}

// ──────────────────────────────────────────────────
// Role graph lifecycle hooks
// ──────────────────────────────────────────────────

// RoleCreated is called after a role is created.
type RoleCreated interface {
	OnRoleCreated(ctx context.Context, r *role.Role) error
}

// RoleGraphChanged is called after any committed change to role bindings,
// parent edges or role activity. version is the new graph version.
type RoleGraphChanged interface {
	OnRoleGraphChanged(ctx context.Context, roleID id.RoleID, version uint64) error
}

// RoleAssigned is called after a role is assigned to a user.
type RoleAssigned interface {
	OnRoleAssigned(ctx context.Context, a *assignment.Assignment) error
}

// RoleRevoked is called after a role assignment is revoked.
type RoleRevoked interface {
	OnRoleRevoked(ctx context.Context, a *assignment.Assignment) error
}

// ──────────────────────────────────────────────────
// Grant lifecycle hooks
// ──────────────────────────────────────────────────

// GrantCreated is called after a temporal grant is created.
type GrantCreated interface {
	OnGrantCreated(ctx context.Context, g *grant.Grant) error
}

// GrantRevoked is called after a temporal grant is revoked.
type GrantRevoked interface {
	OnGrantRevoked(ctx context.Context, grantID id.GrantID) error
}

// GrantConsumed is called after a use of a quota-bearing grant is recorded.
type GrantConsumed interface {
	OnGrantConsumed(ctx context.Context, g *grant.Grant) error
}

// ──────────────────────────────────────────────────
// Policy lifecycle hooks
// ──────────────────────────────────────────────────

// PolicyAttached is called after a conditional policy is attached.
type PolicyAttached interface {
	OnPolicyAttached(ctx context.Context, p *policy.Policy) error
}

// PolicyDeactivated is called after a conditional policy is deactivated.
type PolicyDeactivated interface {
	OnPolicyDeactivated(ctx context.Context, p *policy.Policy) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
