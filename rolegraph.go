package bastion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store"
)

// roleGraph memoizes role closures per graph version. The version is bumped
// after every committed structural mutation; memoized closures for older
// versions are never served again.
type roleGraph struct {
	// writeMu serializes structural mutations so that cycle checks and the
	// edge insert they guard happen against the same graph.
	writeMu sync.Mutex

	version     atomic.Uint64
	maxDepth    int
	walkTimeout time.Duration

	memo  sync.Map // "roleID@version" -> permSet
	group singleflight.Group
}

// permSet is a set of permission IDs in string form.
type permSet map[string]struct{}

func newRoleGraph(maxDepth int, walkTimeout time.Duration) *roleGraph {
	return &roleGraph{maxDepth: maxDepth, walkTimeout: walkTimeout}
}

// Version returns the current graph version.
func (g *roleGraph) Version() uint64 { return g.version.Load() }

// bump publishes a new version and drops memoized closures.
func (g *roleGraph) bump() uint64 {
	v := g.version.Add(1)
	g.memo.Clear()
	return v
}

// closure returns the permission IDs bound to roleID and to every active
// ancestor. Inactive roles contribute nothing and are not traversed.
//
// Concurrent callers share one walk. The walk keeps ctx's values but not its
// cancellation and is bounded by walkTimeout; each caller waits only as long
// as its own ctx allows.
func (g *roleGraph) closure(ctx context.Context, s store.Store, roleID id.RoleID) (permSet, error) {
	v := g.version.Load()
	key := roleID.String() + "@" + strconv.FormatUint(v, 10)
	if cached, ok := g.memo.Load(key); ok {
		return cached.(permSet), nil
	}

	ch := g.group.DoChan(key, func() (any, error) {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.walkTimeout)
		defer cancel()
		set, err := g.walk(wctx, s, roleID)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				// Not any caller's deadline; report as a store failure.
				return nil, fmt.Errorf("role %s: lookup exceeded %v: %v", roleID, g.walkTimeout, err)
			}
			return nil, err
		}
		// A mutation committed while walking may have been observed
		// partially; serve the result but do not memoize it.
		if g.version.Load() == v {
			g.memo.Store(key, set)
		}
		return set, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(permSet), nil
	}
}

func (g *roleGraph) walk(ctx context.Context, s store.Store, start id.RoleID) (permSet, error) {
	type node struct {
		roleID id.RoleID
		depth  int
	}

	set := make(permSet)
	visited := make(map[string]struct{})
	queue := []node{{roleID: start}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := queue[0]
		queue = queue[1:]

		key := n.roleID.String()
		if _, seen := visited[key]; seen {
			continue
		}
		visited[key] = struct{}{}
		if n.depth > g.maxDepth {
			return nil, fmt.Errorf("role %s: hierarchy deeper than %d", start, g.maxDepth)
		}

		r, err := s.GetRole(ctx, n.roleID)
		if err != nil {
			return nil, fmt.Errorf("load role %s: %w", n.roleID, err)
		}
		if !r.IsActive {
			continue
		}

		perms, err := s.ListRolePermissions(ctx, n.roleID)
		if err != nil {
			return nil, fmt.Errorf("list permissions of role %s: %w", n.roleID, err)
		}
		for _, p := range perms {
			set[p.String()] = struct{}{}
		}
		for _, parent := range r.ParentIDs {
			queue = append(queue, node{roleID: parent, depth: n.depth + 1})
		}
	}
	return set, nil
}

// ancestors returns every role reachable from roleID through parent edges,
// including inactive ones. Used for cycle detection, so it has no depth
// limit; the visited set guarantees termination.
func ancestors(ctx context.Context, s store.Store, roleID id.RoleID) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	stack := []id.RoleID{roleID}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[cur.String()]; ok {
			continue
		}
		seen[cur.String()] = struct{}{}
		parents, err := s.ListRoleParents(ctx, cur)
		if err != nil {
			return nil, err
		}
		stack = append(stack, parents...)
	}
	return seen, nil
}

// ──────────────────────────────────────────────────
// Role administration
// ──────────────────────────────────────────────────

// CreateRole stores a new role with optional initial parents.
func (e *Engine) CreateRole(ctx context.Context, r *role.Role) error {
	now := e.clock.Now()
	if r.ID.IsNil() {
		r.ID = id.NewRoleID()
	}
	r.IsActive = true
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := r.Validate(); err != nil {
		return err
	}

	e.graph.writeMu.Lock()
	err := e.store.CreateRole(ctx, r)
	var version uint64
	if err == nil {
		version = e.graph.bump()
	}
	e.graph.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("bastion: create role: %w", err)
	}

	if e.plugins != nil {
		e.plugins.EmitRoleCreated(ctx, r)
		e.plugins.EmitRoleGraphChanged(ctx, r.ID, version)
	}
	return nil
}

// GetRole returns a role by ID.
func (e *Engine) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	return e.store.GetRole(ctx, roleID)
}

// GetRoleByName returns a role by its unique name.
func (e *Engine) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	return e.store.GetRoleByName(ctx, name)
}

// ListRoles lists roles.
func (e *Engine) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	return e.store.ListRoles(ctx, filter)
}

// DeactivateRole disables a role. Users keep their assignment records but
// the role, and everything inherited through it, stops granting.
func (e *Engine) DeactivateRole(ctx context.Context, roleID id.RoleID) error {
	return e.mutateGraph(ctx, roleID, func() error {
		r, err := e.store.GetRole(ctx, roleID)
		if err != nil {
			return err
		}
		if r.IsSystem {
			return fmt.Errorf("role %q: %w", r.Name, ErrImmutable)
		}
		if !r.IsActive {
			return nil
		}
		r.IsActive = false
		r.UpdatedAt = e.clock.Now()
		return e.store.UpdateRole(ctx, r)
	})
}

// BindPermission binds a permission to a role. Binding twice is a no-op.
func (e *Engine) BindPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	return e.mutateGraph(ctx, roleID, func() error {
		return e.store.AttachPermission(ctx, roleID, permID)
	})
}

// UnbindPermission removes a permission binding from a role.
func (e *Engine) UnbindPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	return e.mutateGraph(ctx, roleID, func() error {
		return e.store.DetachPermission(ctx, roleID, permID)
	})
}

// AddParent makes parentID a parent of roleID. It fails with ErrCycle,
// leaving the graph untouched, if roleID is already an ancestor of
// parentID.
func (e *Engine) AddParent(ctx context.Context, roleID, parentID id.RoleID) error {
	return e.mutateGraph(ctx, roleID, func() error {
		if roleID.String() == parentID.String() {
			return fmt.Errorf("role %s cannot inherit from itself: %w", roleID, ErrCycle)
		}
		if _, err := e.store.GetRole(ctx, roleID); err != nil {
			return err
		}
		above, err := ancestors(ctx, e.store, parentID)
		if err != nil {
			return err
		}
		if _, ok := above[roleID.String()]; ok {
			return fmt.Errorf("role %s is an ancestor of %s: %w", roleID, parentID, ErrCycle)
		}
		return e.store.AddRoleParent(ctx, roleID, parentID)
	})
}

// RemoveParent removes a parent edge.
func (e *Engine) RemoveParent(ctx context.Context, roleID, parentID id.RoleID) error {
	return e.mutateGraph(ctx, roleID, func() error {
		return e.store.RemoveRoleParent(ctx, roleID, parentID)
	})
}

// mutateGraph runs fn under the graph writer lock and, if it commits,
// bumps the graph version and invalidates every cached decision.
func (e *Engine) mutateGraph(ctx context.Context, roleID id.RoleID, fn func() error) error {
	e.graph.writeMu.Lock()
	err := fn()
	var version uint64
	if err == nil {
		version = e.graph.bump()
	}
	e.graph.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("bastion: role graph: %w", err)
	}

	e.invalidateAll(ctx)
	if e.plugins != nil {
		e.plugins.EmitRoleGraphChanged(ctx, roleID, version)
	}
	return nil
}

// RoleEffectivePermissions returns the names of the active permissions a
// role grants, including those inherited from its ancestors.
func (e *Engine) RoleEffectivePermissions(ctx context.Context, roleID id.RoleID) ([]string, error) {
	set, err := e.graph.closure(ctx, e.store, roleID)
	if err != nil {
		return nil, err
	}
	return e.permissionNames(ctx, set)
}

// ──────────────────────────────────────────────────
// User assignments
// ──────────────────────────────────────────────────

// AssignRole gives userID the role. Assigning a held role is a no-op and a
// previously revoked assignment is reactivated.
func (e *Engine) AssignRole(ctx context.Context, userID string, roleID id.RoleID) (*assignment.Assignment, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if _, err := e.store.GetRole(ctx, roleID); err != nil {
		return nil, fmt.Errorf("bastion: assign role: %w", err)
	}

	now := e.clock.Now()
	a, err := e.store.GetAssignmentByUserRole(ctx, userID, roleID)
	switch {
	case err == nil && a.IsActive:
		return a, nil
	case err == nil:
		a.IsActive = true
		a.AssignedAt = now
		a.RevokedAt = nil
		a.GrantedBy = actorFromContext(ctx)
		err = e.store.UpdateAssignment(ctx, a)
	case errors.Is(err, ErrNotFound):
		a = &assignment.Assignment{
			ID:         id.NewAssignmentID(),
			UserID:     userID,
			RoleID:     roleID,
			IsActive:   true,
			GrantedBy:  actorFromContext(ctx),
			AssignedAt: now,
		}
		err = e.store.CreateAssignment(ctx, a)
	}
	if err != nil {
		return nil, fmt.Errorf("bastion: assign role: %w", err)
	}

	e.invalidateUser(ctx, userID)
	if e.plugins != nil {
		e.plugins.EmitRoleAssigned(ctx, a)
	}
	return a, nil
}

// RevokeRole removes the role from userID. Revoking a role the user does
// not hold is a no-op.
func (e *Engine) RevokeRole(ctx context.Context, userID string, roleID id.RoleID) error {
	a, err := e.store.GetAssignmentByUserRole(ctx, userID, roleID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("bastion: revoke role: %w", err)
	}
	if !a.IsActive {
		return nil
	}

	now := e.clock.Now()
	a.IsActive = false
	a.RevokedAt = &now
	if err := e.store.UpdateAssignment(ctx, a); err != nil {
		return fmt.Errorf("bastion: revoke role: %w", err)
	}

	e.invalidateUser(ctx, userID)
	if e.plugins != nil {
		e.plugins.EmitRoleRevoked(ctx, a)
	}
	return nil
}

// ListAssignments lists assignment records, including revoked ones.
func (e *Engine) ListAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	return e.store.ListAssignments(ctx, filter)
}

// EffectivePermissions returns the names of the permissions userID holds
// through roles. It is meant for display; authorization goes through
// Decide, which also accounts for temporal grants and policies.
func (e *Engine) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	set, err := e.userPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.permissionNames(ctx, set)
}

// userPermissions unions the closures of every role actively assigned to
// userID.
func (e *Engine) userPermissions(ctx context.Context, userID string) (permSet, error) {
	roleIDs, err := e.store.ListRolesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list roles for %s: %w", userID, err)
	}
	union := make(permSet)
	for _, rid := range roleIDs {
		set, err := e.graph.closure(ctx, e.store, rid)
		if err != nil {
			return nil, err
		}
		for p := range set {
			union[p] = struct{}{}
		}
	}
	return union, nil
}

func (e *Engine) permissionNames(ctx context.Context, set permSet) ([]string, error) {
	names := make([]string, 0, len(set))
	for raw := range set {
		pid, err := id.ParsePermissionID(raw)
		if err != nil {
			return nil, err
		}
		p, err := e.store.GetPermission(ctx, pid)
		if errors.Is(err, ErrNotFound) {
			e.logger.Warn("role bound to missing permission", slog.String("permission_id", raw))
			continue
		}
		if err != nil {
			return nil, err
		}
		if p.IsActive {
			names = append(names, p.Name)
		}
	}
	slices.Sort(names)
	return names, nil
}
