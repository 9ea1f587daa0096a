// Package postgres provides a PostgreSQL implementation of the Bastion
// composite store using grove ORM with Go-based migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/errdefs"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/policy"
	"github.com/xraph/bastion/resourcetype"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// PostgreSQL error codes mapped onto store sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store is a PostgreSQL implementation of the composite Bastion store.
type Store struct {
	db   *grove.DB
	pgdb *pgdriver.PgDB
}

// New creates a new PostgreSQL store.
func New(db *grove.DB) *Store {
	return &Store{
		db:   db,
		pgdb: pgdriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pgdb)
	if err != nil {
		return fmt.Errorf("bastion: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bastion: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// classify maps driver errors onto errdefs sentinels so callers can match
// them with errors.Is regardless of backend.
func classify(err error, subject string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", subject, errdefs.ErrConflict)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w", subject, errdefs.ErrNotFound)
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", subject, errdefs.ErrNotFound)
	}
	return err
}

// affected returns ErrNotFound when an update or delete touched no rows.
func affected(res sql.Result, subject string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", subject, errdefs.ErrNotFound)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Permission operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(ctx context.Context, p *permission.Permission) error {
	_, err := s.pgdb.NewInsert(permissionToModel(p)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: create permission: %w", classify(err, fmt.Sprintf("permission %q", p.Name)))
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	m := new(permissionModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", permID.String()).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: get permission: %w", classify(err, "permission "+permID.String()))
	}
	return permissionFromModel(m), nil
}

func (s *Store) GetPermissionByName(ctx context.Context, name string) (*permission.Permission, error) {
	m := new(permissionModel)
	err := s.pgdb.NewSelect(m).Where("name = ?", name).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: get permission by name: %w", classify(err, fmt.Sprintf("permission %q", name)))
	}
	return permissionFromModel(m), nil
}

func (s *Store) UpdatePermission(ctx context.Context, p *permission.Permission) error {
	res, err := s.pgdb.NewUpdate(permissionToModel(p)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: update permission: %w", classify(err, fmt.Sprintf("permission %q", p.Name)))
	}
	if err := affected(res, "permission "+p.ID.String()); err != nil {
		return fmt.Errorf("bastion: update permission: %w", err)
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	var models []permissionModel
	q := s.pgdb.NewSelect(&models).OrderExpr("name ASC")
	if filter != nil {
		if filter.ResourceType != "" {
			q = q.Where("resource_type = ?", filter.ResourceType)
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list permissions: %w", err)
	}
	result := make([]*permission.Permission, len(models))
	for i := range models {
		result[i] = permissionFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Resource type operations
// ──────────────────────────────────────────────────

func (s *Store) CreateResourceType(ctx context.Context, rt *resourcetype.ResourceType) error {
	_, err := s.pgdb.NewInsert(resourceTypeToModel(rt)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: create resource type: %w", classify(err, fmt.Sprintf("resource type %q", rt.Name)))
	}
	return nil
}

func (s *Store) GetResourceTypeByName(ctx context.Context, name string) (*resourcetype.ResourceType, error) {
	m := new(resourceTypeModel)
	err := s.pgdb.NewSelect(m).Where("name = ?", name).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: get resource type: %w", classify(err, fmt.Sprintf("resource type %q", name)))
	}
	return resourceTypeFromModel(m), nil
}

func (s *Store) ListResourceTypes(ctx context.Context, filter *resourcetype.ListFilter) ([]*resourcetype.ResourceType, error) {
	var models []resourceTypeModel
	q := s.pgdb.NewSelect(&models).OrderExpr("name ASC")
	if filter != nil {
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list resource types: %w", err)
	}
	result := make([]*resourcetype.ResourceType, len(models))
	for i := range models {
		result[i] = resourceTypeFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

// CreateRole inserts the role and its parent edges in one transaction.
func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("bastion: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if _, err := tx.NewInsert(roleToModel(r)).Exec(ctx); err != nil {
		return fmt.Errorf("bastion: create role: %w", classify(err, fmt.Sprintf("role %q", r.Name)))
	}
	if len(r.ParentIDs) > 0 {
		edges := make([]roleParentModel, len(r.ParentIDs))
		for i, p := range r.ParentIDs {
			edges[i] = roleParentModel{RoleID: r.ID.String(), ParentID: p.String()}
		}
		if _, err := tx.NewInsert(&edges).Exec(ctx); err != nil {
			return fmt.Errorf("bastion: create role parents: %w", classify(err, "parent role"))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bastion: commit tx: %w", err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	m := new(roleModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", roleID.String()).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: get role: %w", classify(err, "role "+roleID.String()))
	}
	parents, err := s.ListRoleParents(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return roleFromModel(m, parents), nil
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	m := new(roleModel)
	err := s.pgdb.NewSelect(m).Where("name = ?", name).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: get role by name: %w", classify(err, fmt.Sprintf("role %q", name)))
	}
	rid, _ := id.ParseRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	parents, err := s.ListRoleParents(ctx, rid)
	if err != nil {
		return nil, err
	}
	return roleFromModel(m, parents), nil
}

// UpdateRole updates the role row. Parent edges are managed through
// AddRoleParent and RemoveRoleParent.
func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	res, err := s.pgdb.NewUpdate(roleToModel(r)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: update role: %w", classify(err, fmt.Sprintf("role %q", r.Name)))
	}
	if err := affected(res, "role "+r.ID.String()); err != nil {
		return fmt.Errorf("bastion: update role: %w", err)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.pgdb.NewSelect(&models).OrderExpr("name ASC")
	if filter != nil {
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if filter.IsSystem != nil {
			q = q.Where("is_system = ?", *filter.IsSystem)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list roles: %w", err)
	}
	if len(models) == 0 {
		return []*role.Role{}, nil
	}

	var edges []roleParentModel
	if err := s.pgdb.NewSelect(&edges).OrderExpr("parent_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list role parents: %w", err)
	}
	parents := make(map[string][]id.RoleID)
	for _, e := range edges {
		if pid, err := id.ParseRoleID(e.ParentID); err == nil {
			parents[e.RoleID] = append(parents[e.RoleID], pid)
		}
	}

	result := make([]*role.Role, len(models))
	for i := range models {
		result[i] = roleFromModel(&models[i], parents[models[i].ID])
	}
	return result, nil
}

func (s *Store) ListRolePermissions(ctx context.Context, roleID id.RoleID) ([]id.PermissionID, error) {
	var models []rolePermissionModel
	err := s.pgdb.NewSelect(&models).
		Where("role_id = ?", roleID.String()).
		OrderExpr("permission_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list role permissions: %w", err)
	}
	result := make([]id.PermissionID, 0, len(models))
	for _, m := range models {
		pid, err := id.ParsePermissionID(m.PermissionID)
		if err == nil {
			result = append(result, pid)
		}
	}
	return result, nil
}

func (s *Store) AttachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	m := &rolePermissionModel{
		RoleID:       roleID.String(),
		PermissionID: permID.String(),
	}
	_, err := s.pgdb.NewInsert(m).
		OnConflict("(role_id, permission_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: attach permission: %w", classify(err, "role or permission"))
	}
	return nil
}

func (s *Store) DetachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	_, err := s.pgdb.NewDelete((*rolePermissionModel)(nil)).
		Where("role_id = ?", roleID.String()).
		Where("permission_id = ?", permID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: detach permission: %w", err)
	}
	return nil
}

func (s *Store) ListRoleParents(ctx context.Context, roleID id.RoleID) ([]id.RoleID, error) {
	var models []roleParentModel
	err := s.pgdb.NewSelect(&models).
		Where("role_id = ?", roleID.String()).
		OrderExpr("parent_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list role parents: %w", err)
	}
	result := make([]id.RoleID, 0, len(models))
	for _, m := range models {
		pid, err := id.ParseRoleID(m.ParentID)
		if err == nil {
			result = append(result, pid)
		}
	}
	return result, nil
}

func (s *Store) AddRoleParent(ctx context.Context, roleID, parentID id.RoleID) error {
	m := &roleParentModel{RoleID: roleID.String(), ParentID: parentID.String()}
	_, err := s.pgdb.NewInsert(m).
		OnConflict("(role_id, parent_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: add role parent: %w", classify(err, "role "+roleID.String()))
	}
	return nil
}

func (s *Store) RemoveRoleParent(ctx context.Context, roleID, parentID id.RoleID) error {
	_, err := s.pgdb.NewDelete((*roleParentModel)(nil)).
		Where("role_id = ?", roleID.String()).
		Where("parent_id = ?", parentID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: remove role parent: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Assignment operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAssignment(ctx context.Context, a *assignment.Assignment) error {
	_, err := s.pgdb.NewInsert(assignmentToModel(a)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: create assignment: %w", classify(err, fmt.Sprintf("assignment %s/%s", a.UserID, a.RoleID)))
	}
	return nil
}

func (s *Store) GetAssignmentByUserRole(ctx context.Context, userID string, roleID id.RoleID) (*assignment.Assignment, error) {
	m := new(assignmentModel)
	err := s.pgdb.NewSelect(m).
		Where("user_id = ?", userID).
		Where("role_id = ?", roleID.String()).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: get assignment: %w", classify(err, fmt.Sprintf("assignment %s/%s", userID, roleID)))
	}
	return assignmentFromModel(m), nil
}

func (s *Store) UpdateAssignment(ctx context.Context, a *assignment.Assignment) error {
	res, err := s.pgdb.NewUpdate(assignmentToModel(a)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: update assignment: %w", err)
	}
	if err := affected(res, "assignment "+a.ID.String()); err != nil {
		return fmt.Errorf("bastion: update assignment: %w", err)
	}
	return nil
}

func (s *Store) ListAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	q := s.pgdb.NewSelect(&models).OrderExpr("assigned_at ASC")
	if filter != nil {
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.RoleID != nil {
			q = q.Where("role_id = ?", filter.RoleID.String())
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list assignments: %w", err)
	}
	result := make([]*assignment.Assignment, len(models))
	for i := range models {
		result[i] = assignmentFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListRolesForUser(ctx context.Context, userID string) ([]id.RoleID, error) {
	var models []assignmentModel
	err := s.pgdb.NewSelect(&models).
		Where("user_id = ?", userID).
		Where("is_active = ?", true).
		OrderExpr("role_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list roles for user: %w", err)
	}
	result := make([]id.RoleID, 0, len(models))
	for _, m := range models {
		rid, err := id.ParseRoleID(m.RoleID)
		if err == nil {
			result = append(result, rid)
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Grant operations
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(ctx context.Context, g *grant.Grant) error {
	_, err := s.pgdb.NewInsert(grantToModel(g)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: create grant: %w", classify(err, "permission "+g.PermissionID.String()))
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.Grant, error) {
	m := new(grantModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", grantID.String()).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: get grant: %w", classify(err, "grant "+grantID.String()))
	}
	return grantFromModel(m), nil
}

func (s *Store) RevokeGrant(ctx context.Context, grantID id.GrantID) error {
	res, err := s.pgdb.NewUpdate((*grantModel)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", grantID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: revoke grant: %w", err)
	}
	if err := affected(res, "grant "+grantID.String()); err != nil {
		return fmt.Errorf("bastion: revoke grant: %w", err)
	}
	return nil
}

func (s *Store) ListGrantsForUser(ctx context.Context, userID string, permID id.PermissionID) ([]*grant.Grant, error) {
	var models []grantModel
	err := s.pgdb.NewSelect(&models).
		Where("user_id = ?", userID).
		Where("permission_id = ?", permID.String()).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list grants for user: %w", err)
	}
	result := make([]*grant.Grant, len(models))
	for i := range models {
		result[i] = grantFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	var models []grantModel
	q := s.pgdb.NewSelect(&models).OrderExpr("created_at ASC, id ASC")
	if filter != nil {
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.PermissionID != nil {
			q = q.Where("permission_id = ?", filter.PermissionID.String())
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list grants: %w", err)
	}
	result := make([]*grant.Grant, len(models))
	for i := range models {
		result[i] = grantFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountGrantsForPermission(ctx context.Context, permID id.PermissionID) (int64, error) {
	count, err := s.pgdb.NewSelect((*grantModel)(nil)).
		Where("permission_id = ?", permID.String()).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion: count grants: %w", err)
	}
	return count, nil
}

// ConsumeGrant increments current_uses with a single guarded UPDATE, so the
// row lock serializes concurrent consumers and neither the quota nor a
// concurrent revoke can be overrun. The read-back runs in the same
// transaction and sees exactly this increment.
func (s *Store) ConsumeGrant(ctx context.Context, grantID id.GrantID, now time.Time) (*grant.Grant, error) {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("bastion: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	res, err := tx.NewUpdate((*grantModel)(nil)).
		Set("current_uses = current_uses + 1").
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", grantID.String()).
		Where("is_active = ?", true).
		Where("(valid_until IS NULL OR valid_until >= ?)", now.UTC()).
		Where("max_uses IS NOT NULL").
		Where("current_uses < max_uses").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: consume grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("bastion: consume grant rows: %w", err)
	}

	m := new(grantModel)
	if err := tx.NewSelect(m).Where("id = ?", grantID.String()).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: consume grant: %w", classify(err, "grant "+grantID.String()))
	}
	g := grantFromModel(m)
	if n == 0 {
		if err := g.CheckConsumable(now); err != nil {
			return nil, fmt.Errorf("grant %s: %w", grantID, err)
		}
		if g.Limited() {
			return nil, fmt.Errorf("grant %s: %w", grantID, errdefs.ErrQuotaExceeded)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("bastion: commit tx: %w", err)
	}
	return g, nil
}

// ──────────────────────────────────────────────────
// Policy operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePolicy(ctx context.Context, p *policy.Policy) error {
	_, err := s.pgdb.NewInsert(policyToModel(p)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: create policy: %w", classify(err, fmt.Sprintf("policy %q", p.Name)))
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	m := new(policyModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", polID.String()).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: get policy: %w", classify(err, "policy "+polID.String()))
	}
	return policyFromModel(m), nil
}

func (s *Store) UpdatePolicy(ctx context.Context, p *policy.Policy) error {
	res, err := s.pgdb.NewUpdate(policyToModel(p)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion: update policy: %w", classify(err, fmt.Sprintf("policy %q", p.Name)))
	}
	if err := affected(res, "policy "+p.ID.String()); err != nil {
		return fmt.Errorf("bastion: update policy: %w", err)
	}
	return nil
}

func (s *Store) ListPolicies(ctx context.Context, filter *policy.ListFilter) ([]*policy.Policy, error) {
	var models []policyModel
	q := s.pgdb.NewSelect(&models).OrderExpr("name ASC")
	if filter != nil {
		if filter.ConditionType != "" {
			q = q.Where("condition_type = ?", string(filter.ConditionType))
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion: list policies: %w", err)
	}
	result := make([]*policy.Policy, len(models))
	for i := range models {
		result[i] = policyFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListActivePolicies(ctx context.Context) ([]*policy.Policy, error) {
	var models []policyModel
	err := s.pgdb.NewSelect(&models).
		Where("is_active = ?", true).
		OrderExpr("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion: list active policies: %w", err)
	}
	result := make([]*policy.Policy, len(models))
	for i := range models {
		result[i] = policyFromModel(&models[i])
	}
	return result, nil
}
