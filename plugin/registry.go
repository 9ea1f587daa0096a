package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/policy"
	"github.com/xraph/bastion/role"
)

// Named entry types pair a hook with the plugin name for logging.

type beforeDecideEntry struct {
	name string
	hook BeforeDecide
}
type afterDecideEntry struct {
	name string
	hook AfterDecide
}
type permissionRegisteredEntry struct {
	name string
	hook PermissionRegistered
}
type permissionDeactivatedEntry struct {
	name string
	hook PermissionDeactivated
}
type roleCreatedEntry struct {
	name string
	hook RoleCreated
}
type roleGraphChangedEntry struct {
	name string
	hook RoleGraphChanged
}
type roleAssignedEntry struct {
	name string
	hook RoleAssigned
}
type roleRevokedEntry struct {
	name string
	hook RoleRevoked
}
type grantCreatedEntry struct {
	name string
	hook GrantCreated
}
type grantRevokedEntry struct {
	name string
	hook GrantRevoked
}
type grantConsumedEntry struct {
	name string
	hook GrantConsumed
}
type policyAttachedEntry struct {
	name string
	hook PolicyAttached
}
type policyDeactivatedEntry struct {
	name string
	hook PolicyDeactivated
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	beforeDecide          []beforeDecideEntry
	afterDecide           []afterDecideEntry
	permissionRegistered  []permissionRegisteredEntry
	permissionDeactivated []permissionDeactivatedEntry
	roleCreated           []roleCreatedEntry
	roleGraphChanged      []roleGraphChangedEntry
	roleAssigned          []roleAssignedEntry
	roleRevoked           []roleRevokedEntry
	grantCreated          []grantCreatedEntry
	grantRevoked          []grantRevokedEntry
	grantConsumed         []grantConsumedEntry
	policyAttached        []policyAttachedEntry
	policyDeactivated     []policyDeactivatedEntry
	shutdown              []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(BeforeDecide); ok {
		r.beforeDecide = append(r.beforeDecide, beforeDecideEntry{name, h})
	}
	if h, ok := p.(AfterDecide); ok {
		r.afterDecide = append(r.afterDecide, afterDecideEntry{name, h})
	}
	if h, ok := p.(PermissionRegistered); ok {
		r.permissionRegistered = append(r.permissionRegistered, permissionRegisteredEntry{name, h})
	}
	if h, ok := p.(PermissionDeactivated); ok {
		r.permissionDeactivated = append(r.permissionDeactivated, permissionDeactivatedEntry{name, h})
	}
	if h, ok := p.(RoleCreated); ok {
		r.roleCreated = append(r.roleCreated, roleCreatedEntry{name, h})
	}
	if h, ok := p.(RoleGraphChanged); ok {
		r.roleGraphChanged = append(r.roleGraphChanged, roleGraphChangedEntry{name, h})
	}
	if h, ok := p.(RoleAssigned); ok {
		r.roleAssigned = append(r.roleAssigned, roleAssignedEntry{name, h})
	}
	if h, ok := p.(RoleRevoked); ok {
		r.roleRevoked = append(r.roleRevoked, roleRevokedEntry{name, h})
	}
	if h, ok := p.(GrantCreated); ok {
		r.grantCreated = append(r.grantCreated, grantCreatedEntry{name, h})
	}
	if h, ok := p.(GrantRevoked); ok {
		r.grantRevoked = append(r.grantRevoked, grantRevokedEntry{name, h})
	}
	if h, ok := p.(GrantConsumed); ok {
		r.grantConsumed = append(r.grantConsumed, grantConsumedEntry{name, h})
	}
	if h, ok := p.(PolicyAttached); ok {
		r.policyAttached = append(r.policyAttached, policyAttachedEntry{name, h})
	}
	if h, ok := p.(PolicyDeactivated); ok {
		r.policyDeactivated = append(r.policyDeactivated, policyDeactivatedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// ──────────────────────────────────────────────────
// Decision event emitters
// ──────────────────────────────────────────────────

// EmitBeforeDecide notifies all plugins that implement BeforeDecide.
func (r *Registry) EmitBeforeDecide(ctx context.Context, req any) {
	for _, e := range r.beforeDecide {
		if err := e.hook.OnBeforeDecide(ctx, req); err != nil {
			r.logHookError("OnBeforeDecide", e.name, err)
		}
	}
}

// EmitAfterDecide notifies all plugins that implement AfterDecide.
func (r *Registry) EmitAfterDecide(ctx context.Context, req, decision any) {
	for _, e := range r.afterDecide {
		if err := e.hook.OnAfterDecide(ctx, req, decision); err != nil {
			r.logHookError("OnAfterDecide", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Catalog event emitters
// ──────────────────────────────────────────────────

// EmitPermissionRegistered notifies all plugins that implement PermissionRegistered.
func (r *Registry) EmitPermissionRegistered(ctx context.Context, p *permission.Permission) {
	for _, e := range r.permissionRegistered {
		if err := e.hook.OnPermissionRegistered(ctx, p); err != nil {
			r.logHookError("OnPermissionRegistered", e.name, err)
		}
	}
}

// EmitPermissionDeactivated notifies all plugins that implement PermissionDeactivated.
func (r *Registry) EmitPermissionDeactivated(ctx context.Context, p *permission.Permission) {
	for _, e := range r.permissionDeactivated {
		if err := e.hook.OnPermissionDeactivated(ctx, p); err != nil {
			r.logHookError("OnPermissionDeactivated", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Role graph event emitters
// ──────────────────────────────────────────────────

// EmitRoleCreated notifies all plugins that implement RoleCreated.
func (r *Registry) EmitRoleCreated(ctx context.Context, rl *role.Role) {
	for _, e := range r.roleCreated {
		if err := e.hook.OnRoleCreated(ctx, rl); err != nil {
			r.logHookError("OnRoleCreated", e.name, err)
		}
	}
}

// EmitRoleGraphChanged notifies all plugins that implement RoleGraphChanged.
func (r *Registry) EmitRoleGraphChanged(ctx context.Context, roleID id.RoleID, version uint64) {
	for _, e := range r.roleGraphChanged {
		if err := e.hook.OnRoleGraphChanged(ctx, roleID, version); err != nil {
			r.logHookError("OnRoleGraphChanged", e.name, err)
		}
	}
}

// EmitRoleAssigned notifies all plugins that implement RoleAssigned.
func (r *Registry) EmitRoleAssigned(ctx context.Context, a *assignment.Assignment) {
	for _, e := range r.roleAssigned {
		if err := e.hook.OnRoleAssigned(ctx, a); err != nil {
			r.logHookError("OnRoleAssigned", e.name, err)
		}
	}
}

// EmitRoleRevoked notifies all plugins that implement RoleRevoked.
func (r *Registry) EmitRoleRevoked(ctx context.Context, a *assignment.Assignment) {
	for _, e := range r.roleRevoked {
		if err := e.hook.OnRoleRevoked(ctx, a); err != nil {
			r.logHookError("OnRoleRevoked", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Grant event emitters
// ──────────────────────────────────────────────────

// EmitGrantCreated notifies all plugins that implement GrantCreated.
func (r *Registry) EmitGrantCreated(ctx context.Context, g *grant.Grant) {
	for _, e := range r.grantCreated {
		if err := e.hook.OnGrantCreated(ctx, g); err != nil {
			r.logHookError("OnGrantCreated", e.name, err)
		}
	}
}

// EmitGrantRevoked notifies all plugins that implement GrantRevoked.
func (r *Registry) EmitGrantRevoked(ctx context.Context, grantID id.GrantID) {
	for _, e := range r.grantRevoked {
		if err := e.hook.OnGrantRevoked(ctx, grantID); err != nil {
			r.logHookError("OnGrantRevoked", e.name, err)
		}
	}
}

// EmitGrantConsumed notifies all plugins that implement GrantConsumed.
func (r *Registry) EmitGrantConsumed(ctx context.Context, g *grant.Grant) {
	for _, e := range r.grantConsumed {
		if err := e.hook.OnGrantConsumed(ctx, g); err != nil {
			r.logHookError("OnGrantConsumed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Policy event emitters
// ──────────────────────────────────────────────────

// EmitPolicyAttached notifies all plugins that implement PolicyAttached.
func (r *Registry) EmitPolicyAttached(ctx context.Context, p *policy.Policy) {
	for _, e := range r.policyAttached {
		if err := e.hook.OnPolicyAttached(ctx, p); err != nil {
			r.logHookError("OnPolicyAttached", e.name, err)
		}
	}
}

// EmitPolicyDeactivated notifies all plugins that implement PolicyDeactivated.
func (r *Registry) EmitPolicyDeactivated(ctx context.Context, p *policy.Policy) {
	for _, e := range r.policyDeactivated {
		if err := e.hook.OnPolicyDeactivated(ctx, p); err != nil {
			r.logHookError("OnPolicyDeactivated", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Shutdown event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors are never propagated to the caller.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
