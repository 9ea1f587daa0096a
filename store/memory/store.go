// Package memory provides an in-memory implementation of the Bastion
// composite store. It is intended for testing, development and single-node
// deployments.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/errdefs"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/policy"
	"github.com/xraph/bastion/resourcetype"
	"github.com/xraph/bastion/role"
)

// Compile-time interface checks.
var (
	_ permission.Store   = (*Store)(nil)
	_ resourcetype.Store = (*Store)(nil)
	_ role.Store         = (*Store)(nil)
	_ assignment.Store   = (*Store)(nil)
	_ grant.Store        = (*Store)(nil)
	_ policy.Store       = (*Store)(nil)
)

// Store is a thread-safe in-memory store for all Bastion entities. Every
// method holds the store mutex for its whole duration, which makes each
// mutation atomic with respect to readers.
type Store struct {
	mu sync.RWMutex

	permissions     map[string]*permission.Permission
	resourceTypes   map[string]*resourcetype.ResourceType
	roles           map[string]*role.Role
	rolePermissions map[string]map[string]struct{} // roleID -> set of permIDs
	assignments     map[string]*assignment.Assignment
	grants          map[string]*grant.Grant
	policies        map[string]*policy.Policy
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		permissions:     make(map[string]*permission.Permission),
		resourceTypes:   make(map[string]*resourcetype.ResourceType),
		roles:           make(map[string]*role.Role),
		rolePermissions: make(map[string]map[string]struct{}),
		assignments:     make(map[string]*assignment.Assignment),
		grants:          make(map[string]*grant.Grant),
		policies:        make(map[string]*policy.Policy),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Permission Store
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(_ context.Context, p *permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.permissions {
		if existing.Name == p.Name {
			return fmt.Errorf("permission %q: %w", p.Name, errdefs.ErrConflict)
		}
	}
	s.permissions[p.ID.String()] = copyPermission(p)
	return nil
}

func (s *Store) GetPermission(_ context.Context, permID id.PermissionID) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[permID.String()]
	if !ok {
		return nil, fmt.Errorf("permission %s: %w", permID, errdefs.ErrNotFound)
	}
	return copyPermission(p), nil
}

func (s *Store) GetPermissionByName(_ context.Context, name string) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.permissions {
		if p.Name == name {
			return copyPermission(p), nil
		}
	}
	return nil, fmt.Errorf("permission %q: %w", name, errdefs.ErrNotFound)
}

func (s *Store) UpdatePermission(_ context.Context, p *permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[p.ID.String()]; !ok {
		return fmt.Errorf("permission %s: %w", p.ID, errdefs.ErrNotFound)
	}
	for key, existing := range s.permissions {
		if key != p.ID.String() && existing.Name == p.Name {
			return fmt.Errorf("permission %q: %w", p.Name, errdefs.ErrConflict)
		}
	}
	s.permissions[p.ID.String()] = copyPermission(p)
	return nil
}

func (s *Store) ListPermissions(_ context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*permission.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		if filter != nil {
			if filter.ResourceType != "" && p.ResourceType != filter.ResourceType {
				continue
			}
			if filter.IsActive != nil && p.IsActive != *filter.IsActive {
				continue
			}
			if filter.Search != "" && !containsFold(p.Name, filter.Search) {
				continue
			}
		}
		result = append(result, copyPermission(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	if filter != nil {
		result = applyPagination(result, filter.Limit, filter.Offset)
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// ResourceType Store
// ──────────────────────────────────────────────────

func (s *Store) CreateResourceType(_ context.Context, rt *resourcetype.ResourceType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resourceTypes[rt.Name]; ok {
		return fmt.Errorf("resource type %q: %w", rt.Name, errdefs.ErrConflict)
	}
	cp := *rt
	cp.Metadata = maps.Clone(rt.Metadata)
	s.resourceTypes[rt.Name] = &cp
	return nil
}

func (s *Store) GetResourceTypeByName(_ context.Context, name string) (*resourcetype.ResourceType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.resourceTypes[name]
	if !ok {
		return nil, fmt.Errorf("resource type %q: %w", name, errdefs.ErrNotFound)
	}
	cp := *rt
	cp.Metadata = maps.Clone(rt.Metadata)
	return &cp, nil
}

func (s *Store) ListResourceTypes(_ context.Context, filter *resourcetype.ListFilter) ([]*resourcetype.ResourceType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*resourcetype.ResourceType, 0, len(s.resourceTypes))
	for _, rt := range s.resourceTypes {
		if filter != nil && filter.Search != "" && !containsFold(rt.Name, filter.Search) {
			continue
		}
		cp := *rt
		cp.Metadata = maps.Clone(rt.Metadata)
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	if filter != nil {
		result = applyPagination(result, filter.Limit, filter.Offset)
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Role Store
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Name == r.Name {
			return fmt.Errorf("role %q: %w", r.Name, errdefs.ErrConflict)
		}
	}
	for _, p := range r.ParentIDs {
		if _, ok := s.roles[p.String()]; !ok {
			return fmt.Errorf("parent role %s: %w", p, errdefs.ErrNotFound)
		}
	}
	s.roles[r.ID.String()] = copyRole(r)
	return nil
}

func (s *Store) GetRole(_ context.Context, roleID id.RoleID) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID.String()]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", roleID, errdefs.ErrNotFound)
	}
	return copyRole(r), nil
}

func (s *Store) GetRoleByName(_ context.Context, name string) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.Name == name {
			return copyRole(r), nil
		}
	}
	return nil, fmt.Errorf("role %q: %w", name, errdefs.ErrNotFound)
}

func (s *Store) UpdateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.roles[r.ID.String()]
	if !ok {
		return fmt.Errorf("role %s: %w", r.ID, errdefs.ErrNotFound)
	}
	cp := copyRole(r)
	cp.ParentIDs = slices.Clone(existing.ParentIDs)
	s.roles[r.ID.String()] = cp
	return nil
}

func (s *Store) ListRoles(_ context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*role.Role, 0, len(s.roles))
	for _, r := range s.roles {
		if filter != nil {
			if filter.IsActive != nil && r.IsActive != *filter.IsActive {
				continue
			}
			if filter.IsSystem != nil && r.IsSystem != *filter.IsSystem {
				continue
			}
			if filter.Search != "" && !containsFold(r.Name, filter.Search) {
				continue
			}
		}
		result = append(result, copyRole(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	if filter != nil {
		result = applyPagination(result, filter.Limit, filter.Offset)
	}
	return result, nil
}

func (s *Store) ListRolePermissions(_ context.Context, roleID id.RoleID) ([]id.PermissionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perms := s.rolePermissions[roleID.String()]
	keys := slices.Sorted(maps.Keys(perms))
	result := make([]id.PermissionID, 0, len(keys))
	for _, k := range keys {
		pid, err := id.ParsePermissionID(k)
		if err != nil {
			return nil, err
		}
		result = append(result, pid)
	}
	return result, nil
}

func (s *Store) AttachPermission(_ context.Context, roleID id.RoleID, permID id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID.String()]; !ok {
		return fmt.Errorf("role %s: %w", roleID, errdefs.ErrNotFound)
	}
	if _, ok := s.permissions[permID.String()]; !ok {
		return fmt.Errorf("permission %s: %w", permID, errdefs.ErrNotFound)
	}
	set, ok := s.rolePermissions[roleID.String()]
	if !ok {
		set = make(map[string]struct{})
		s.rolePermissions[roleID.String()] = set
	}
	set[permID.String()] = struct{}{}
	return nil
}

func (s *Store) DetachPermission(_ context.Context, roleID id.RoleID, permID id.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.rolePermissions[roleID.String()]; ok {
		delete(set, permID.String())
	}
	return nil
}

func (s *Store) ListRoleParents(_ context.Context, roleID id.RoleID) ([]id.RoleID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID.String()]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", roleID, errdefs.ErrNotFound)
	}
	return slices.Clone(r.ParentIDs), nil
}

func (s *Store) AddRoleParent(_ context.Context, roleID, parentID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID.String()]
	if !ok {
		return fmt.Errorf("role %s: %w", roleID, errdefs.ErrNotFound)
	}
	if _, ok := s.roles[parentID.String()]; !ok {
		return fmt.Errorf("parent role %s: %w", parentID, errdefs.ErrNotFound)
	}
	if r.HasParent(parentID) {
		return nil
	}
	r.ParentIDs = append(slices.Clone(r.ParentIDs), parentID)
	return nil
}

func (s *Store) RemoveRoleParent(_ context.Context, roleID, parentID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID.String()]
	if !ok {
		return fmt.Errorf("role %s: %w", roleID, errdefs.ErrNotFound)
	}
	r.ParentIDs = slices.DeleteFunc(slices.Clone(r.ParentIDs), func(p id.RoleID) bool {
		return p.String() == parentID.String()
	})
	return nil
}

// ──────────────────────────────────────────────────
// Assignment Store
// ──────────────────────────────────────────────────

func (s *Store) CreateAssignment(_ context.Context, a *assignment.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assignments {
		if existing.UserID == a.UserID && existing.RoleID == a.RoleID {
			return fmt.Errorf("assignment %s/%s: %w", a.UserID, a.RoleID, errdefs.ErrConflict)
		}
	}
	s.assignments[a.ID.String()] = copyAssignment(a)
	return nil
}

func (s *Store) GetAssignmentByUserRole(_ context.Context, userID string, roleID id.RoleID) (*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assignments {
		if a.UserID == userID && a.RoleID == roleID {
			return copyAssignment(a), nil
		}
	}
	return nil, fmt.Errorf("assignment %s/%s: %w", userID, roleID, errdefs.ErrNotFound)
}

func (s *Store) UpdateAssignment(_ context.Context, a *assignment.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[a.ID.String()]; !ok {
		return fmt.Errorf("assignment %s: %w", a.ID, errdefs.ErrNotFound)
	}
	s.assignments[a.ID.String()] = copyAssignment(a)
	return nil
}

func (s *Store) ListAssignments(_ context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*assignment.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		if filter != nil {
			if filter.UserID != "" && a.UserID != filter.UserID {
				continue
			}
			if filter.RoleID != nil && a.RoleID != *filter.RoleID {
				continue
			}
			if filter.IsActive != nil && a.IsActive != *filter.IsActive {
				continue
			}
		}
		result = append(result, copyAssignment(a))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AssignedAt.Before(result[j].AssignedAt) })
	if filter != nil {
		result = applyPagination(result, filter.Limit, filter.Offset)
	}
	return result, nil
}

func (s *Store) ListRolesForUser(_ context.Context, userID string) ([]id.RoleID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []id.RoleID
	for _, a := range s.assignments {
		if a.UserID == userID && a.IsActive {
			result = append(result, a.RoleID)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].String() < result[j].String() })
	return result, nil
}

// ──────────────────────────────────────────────────
// Grant Store
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(_ context.Context, g *grant.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.permissions[g.PermissionID.String()]; !ok {
		return fmt.Errorf("permission %s: %w", g.PermissionID, errdefs.ErrNotFound)
	}
	s.grants[g.ID.String()] = copyGrant(g)
	return nil
}

func (s *Store) GetGrant(_ context.Context, grantID id.GrantID) (*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[grantID.String()]
	if !ok {
		return nil, fmt.Errorf("grant %s: %w", grantID, errdefs.ErrNotFound)
	}
	return copyGrant(g), nil
}

func (s *Store) RevokeGrant(_ context.Context, grantID id.GrantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[grantID.String()]
	if !ok {
		return fmt.Errorf("grant %s: %w", grantID, errdefs.ErrNotFound)
	}
	g.IsActive = false
	g.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ListGrantsForUser(_ context.Context, userID string, permID id.PermissionID) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*grant.Grant
	for _, g := range s.grants {
		if g.UserID == userID && g.PermissionID == permID {
			result = append(result, copyGrant(g))
		}
	}
	sortGrants(result)
	return result, nil
}

func (s *Store) ListGrants(_ context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*grant.Grant, 0, len(s.grants))
	for _, g := range s.grants {
		if filter != nil {
			if filter.UserID != "" && g.UserID != filter.UserID {
				continue
			}
			if filter.PermissionID != nil && g.PermissionID != *filter.PermissionID {
				continue
			}
			if filter.IsActive != nil && g.IsActive != *filter.IsActive {
				continue
			}
		}
		result = append(result, copyGrant(g))
	}
	sortGrants(result)
	if filter != nil {
		result = applyPagination(result, filter.Limit, filter.Offset)
	}
	return result, nil
}

func (s *Store) CountGrantsForPermission(_ context.Context, permID id.PermissionID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, g := range s.grants {
		if g.PermissionID == permID {
			n++
		}
	}
	return n, nil
}

// ConsumeGrant increments current_uses under the store mutex, which is the
// single serialization point for quota-bearing grants.
func (s *Store) ConsumeGrant(_ context.Context, grantID id.GrantID, now time.Time) (*grant.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[grantID.String()]
	if !ok {
		return nil, fmt.Errorf("grant %s: %w", grantID, errdefs.ErrNotFound)
	}
	if err := g.CheckConsumable(now); err != nil {
		return nil, fmt.Errorf("grant %s: %w", grantID, err)
	}
	if !g.Limited() {
		return copyGrant(g), nil
	}
	g.CurrentUses++
	g.UpdatedAt = now.UTC()
	return copyGrant(g), nil
}

// ──────────────────────────────────────────────────
// Policy Store
// ──────────────────────────────────────────────────

func (s *Store) CreatePolicy(_ context.Context, p *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.policies {
		if existing.Name == p.Name {
			return fmt.Errorf("policy %q: %w", p.Name, errdefs.ErrConflict)
		}
	}
	s.policies[p.ID.String()] = copyPolicy(p)
	return nil
}

func (s *Store) GetPolicy(_ context.Context, polID id.PolicyID) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[polID.String()]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", polID, errdefs.ErrNotFound)
	}
	return copyPolicy(p), nil
}

func (s *Store) UpdatePolicy(_ context.Context, p *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[p.ID.String()]; !ok {
		return fmt.Errorf("policy %s: %w", p.ID, errdefs.ErrNotFound)
	}
	s.policies[p.ID.String()] = copyPolicy(p)
	return nil
}

func (s *Store) ListPolicies(_ context.Context, filter *policy.ListFilter) ([]*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*policy.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		if filter != nil {
			if filter.ConditionType != "" && p.ConditionType != filter.ConditionType {
				continue
			}
			if filter.IsActive != nil && p.IsActive != *filter.IsActive {
				continue
			}
			if filter.Search != "" && !containsFold(p.Name, filter.Search) {
				continue
			}
		}
		result = append(result, copyPolicy(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	if filter != nil {
		result = applyPagination(result, filter.Limit, filter.Offset)
	}
	return result, nil
}

func (s *Store) ListActivePolicies(_ context.Context) ([]*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*policy.Policy
	for _, p := range s.policies {
		if p.IsActive {
			result = append(result, copyPolicy(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func applyPagination[T any](items []*T, limit, offset int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func sortGrants(gs []*grant.Grant) {
	sort.Slice(gs, func(i, j int) bool {
		if gs[i].CreatedAt.Equal(gs[j].CreatedAt) {
			return gs[i].ID.String() < gs[j].ID.String()
		}
		return gs[i].CreatedAt.Before(gs[j].CreatedAt)
	})
}

func copyPermission(p *permission.Permission) *permission.Permission {
	cp := *p
	cp.Metadata = maps.Clone(p.Metadata)
	return &cp
}

func copyRole(r *role.Role) *role.Role {
	cp := *r
	cp.ParentIDs = slices.Clone(r.ParentIDs)
	cp.Metadata = maps.Clone(r.Metadata)
	return &cp
}

func copyAssignment(a *assignment.Assignment) *assignment.Assignment {
	cp := *a
	if a.RevokedAt != nil {
		t := *a.RevokedAt
		cp.RevokedAt = &t
	}
	return &cp
}

func copyGrant(g *grant.Grant) *grant.Grant {
	cp := *g
	if g.ValidUntil != nil {
		t := *g.ValidUntil
		cp.ValidUntil = &t
	}
	if g.MaxUses != nil {
		n := *g.MaxUses
		cp.MaxUses = &n
	}
	cp.DaysOfWeek = slices.Clone(g.DaysOfWeek)
	cp.TimeRanges = slices.Clone(g.TimeRanges)
	return &cp
}

func copyPolicy(p *policy.Policy) *policy.Policy {
	cp := *p
	cp.Targets = make([]policy.Target, len(p.Targets))
	for i, t := range p.Targets {
		cp.Targets[i] = t
		if t.PermissionID != nil {
			pid := *t.PermissionID
			cp.Targets[i].PermissionID = &pid
		}
	}
	cp.Condition = copyCondition(p.Condition)
	cp.Metadata = maps.Clone(p.Metadata)
	return &cp
}

func copyCondition(d policy.ConditionData) policy.ConditionData {
	var cp policy.ConditionData
	if d.Location != nil {
		v := *d.Location
		v.AllowedLocations = slices.Clone(v.AllowedLocations)
		cp.Location = &v
	}
	if d.TimeRange != nil {
		v := *d.TimeRange
		v.TimeRanges = slices.Clone(v.TimeRanges)
		v.DaysOfWeek = slices.Clone(v.DaysOfWeek)
		cp.TimeRange = &v
	}
	if d.RiskScore != nil {
		v := *d.RiskScore
		cp.RiskScore = &v
	}
	if d.MFA != nil {
		v := *d.MFA
		cp.MFA = &v
	}
	if d.CustomAttribute != nil {
		v := *d.CustomAttribute
		cp.CustomAttribute = &v
	}
	return cp
}
