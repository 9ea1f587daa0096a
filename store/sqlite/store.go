// Package sqlite provides a SQLite implementation of the Bastion composite
// store using grove ORM. It suits single-node deployments and tests that
// want real SQL semantics without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
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

// Store is a SQLite implementation of the composite Bastion store.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("bastion/sqlite: migration failed: %w", err)
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

// classify maps driver errors onto errdefs sentinels. SQLite drivers only
// expose constraint failures through the message text.
func classify(err error, subject string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", subject, errdefs.ErrNotFound)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"),
		strings.Contains(msg, "PRIMARY KEY constraint failed"):
		return fmt.Errorf("%s: %w", subject, errdefs.ErrConflict)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%s: %w", subject, errdefs.ErrNotFound)
	}
	return err
}

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
	m, err := permissionToModel(p)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: create permission: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion/sqlite: create permission: %w", classify(err, fmt.Sprintf("permission %q", p.Name)))
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	m := new(permissionModel)
	if err := s.sdb.NewSelect(m).Where("id = ?", permID.String()).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/sqlite: get permission: %w", classify(err, "permission "+permID.String()))
	}
	return permissionFromModel(m)
}

func (s *Store) GetPermissionByName(ctx context.Context, name string) (*permission.Permission, error) {
	m := new(permissionModel)
	if err := s.sdb.NewSelect(m).Where("name = ?", name).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/sqlite: get permission by name: %w", classify(err, fmt.Sprintf("permission %q", name)))
	}
	return permissionFromModel(m)
}

func (s *Store) UpdatePermission(ctx context.Context, p *permission.Permission) error {
	m, err := permissionToModel(p)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: update permission: %w", err)
	}
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: update permission: %w", classify(err, fmt.Sprintf("permission %q", p.Name)))
	}
	if err := affected(res, "permission "+p.ID.String()); err != nil {
		return fmt.Errorf("bastion/sqlite: update permission: %w", err)
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	var models []permissionModel
	q := s.sdb.NewSelect(&models).OrderExpr("name ASC")
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
		return nil, fmt.Errorf("bastion/sqlite: list permissions: %w", err)
	}
	result := make([]*permission.Permission, 0, len(models))
	for i := range models {
		p, err := permissionFromModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Resource type operations
// ──────────────────────────────────────────────────

func (s *Store) CreateResourceType(ctx context.Context, rt *resourcetype.ResourceType) error {
	m, err := resourceTypeToModel(rt)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: create resource type: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion/sqlite: create resource type: %w", classify(err, fmt.Sprintf("resource type %q", rt.Name)))
	}
	return nil
}

func (s *Store) GetResourceTypeByName(ctx context.Context, name string) (*resourcetype.ResourceType, error) {
	m := new(resourceTypeModel)
	if err := s.sdb.NewSelect(m).Where("name = ?", name).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/sqlite: get resource type: %w", classify(err, fmt.Sprintf("resource type %q", name)))
	}
	return resourceTypeFromModel(m)
}

func (s *Store) ListResourceTypes(ctx context.Context, filter *resourcetype.ListFilter) ([]*resourcetype.ResourceType, error) {
	var models []resourceTypeModel
	q := s.sdb.NewSelect(&models).OrderExpr("name ASC")
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
		return nil, fmt.Errorf("bastion/sqlite: list resource types: %w", err)
	}
	result := make([]*resourcetype.ResourceType, 0, len(models))
	for i := range models {
		rt, err := resourceTypeFromModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, rt)
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	m, err := roleToModel(r)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: create role: %w", err)
	}
	for _, p := range r.ParentIDs {
		if err := s.roleExists(ctx, p); err != nil {
			return fmt.Errorf("bastion/sqlite: create role: parent %w", err)
		}
	}

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if _, err := tx.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion/sqlite: create role: %w", classify(err, fmt.Sprintf("role %q", r.Name)))
	}
	if len(r.ParentIDs) > 0 {
		edges := make([]roleParentModel, len(r.ParentIDs))
		for i, p := range r.ParentIDs {
			edges[i] = roleParentModel{RoleID: r.ID.String(), ParentID: p.String()}
		}
		if _, err := tx.NewInsert(&edges).Exec(ctx); err != nil {
			return fmt.Errorf("bastion/sqlite: create role parents: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bastion/sqlite: commit tx: %w", err)
	}
	return nil
}

// roleExists stands in for foreign keys, which SQLite leaves disabled by
// default.
func (s *Store) roleExists(ctx context.Context, roleID id.RoleID) error {
	n, err := s.sdb.NewSelect((*roleModel)(nil)).Where("id = ?", roleID.String()).Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("role %s: %w", roleID, errdefs.ErrNotFound)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	m := new(roleModel)
	if err := s.sdb.NewSelect(m).Where("id = ?", roleID.String()).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/sqlite: get role: %w", classify(err, "role "+roleID.String()))
	}
	parents, err := s.ListRoleParents(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return roleFromModel(m, parents)
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	m := new(roleModel)
	if err := s.sdb.NewSelect(m).Where("name = ?", name).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/sqlite: get role by name: %w", classify(err, fmt.Sprintf("role %q", name)))
	}
	rid, _ := id.ParseRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	parents, err := s.ListRoleParents(ctx, rid)
	if err != nil {
		return nil, err
	}
	return roleFromModel(m, parents)
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	m, err := roleToModel(r)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: update role: %w", err)
	}
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: update role: %w", classify(err, fmt.Sprintf("role %q", r.Name)))
	}
	if err := affected(res, "role "+r.ID.String()); err != nil {
		return fmt.Errorf("bastion/sqlite: update role: %w", err)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.sdb.NewSelect(&models).OrderExpr("name ASC")
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
		return nil, fmt.Errorf("bastion/sqlite: list roles: %w", err)
	}

	var edges []roleParentModel
	if len(models) > 0 {
		if err := s.sdb.NewSelect(&edges).OrderExpr("parent_id ASC").Scan(ctx); err != nil {
			return nil, fmt.Errorf("bastion/sqlite: list role parents: %w", err)
		}
	}
	parents := make(map[string][]id.RoleID)
	for _, e := range edges {
		if pid, err := id.ParseRoleID(e.ParentID); err == nil {
			parents[e.RoleID] = append(parents[e.RoleID], pid)
		}
	}

	result := make([]*role.Role, 0, len(models))
	for i := range models {
		r, err := roleFromModel(&models[i], parents[models[i].ID])
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

func (s *Store) ListRolePermissions(ctx context.Context, roleID id.RoleID) ([]id.PermissionID, error) {
	var models []rolePermissionModel
	err := s.sdb.NewSelect(&models).
		Where("role_id = ?", roleID.String()).
		OrderExpr("permission_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion/sqlite: list role permissions: %w", err)
	}
	result := make([]id.PermissionID, 0, len(models))
	for _, m := range models {
		if pid, err := id.ParsePermissionID(m.PermissionID); err == nil {
			result = append(result, pid)
		}
	}
	return result, nil
}

func (s *Store) AttachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	if err := s.roleExists(ctx, roleID); err != nil {
		return fmt.Errorf("bastion/sqlite: attach permission: %w", err)
	}
	if _, err := s.GetPermission(ctx, permID); err != nil {
		return fmt.Errorf("bastion/sqlite: attach permission: %w", err)
	}
	m := &rolePermissionModel{
		RoleID:       roleID.String(),
		PermissionID: permID.String(),
	}
	_, err := s.sdb.NewInsert(m).
		OnConflict("(role_id, permission_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: attach permission: %w", err)
	}
	return nil
}

func (s *Store) DetachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	_, err := s.sdb.NewDelete((*rolePermissionModel)(nil)).
		Where("role_id = ?", roleID.String()).
		Where("permission_id = ?", permID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: detach permission: %w", err)
	}
	return nil
}

func (s *Store) ListRoleParents(ctx context.Context, roleID id.RoleID) ([]id.RoleID, error) {
	var models []roleParentModel
	err := s.sdb.NewSelect(&models).
		Where("role_id = ?", roleID.String()).
		OrderExpr("parent_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion/sqlite: list role parents: %w", err)
	}
	result := make([]id.RoleID, 0, len(models))
	for _, m := range models {
		if pid, err := id.ParseRoleID(m.ParentID); err == nil {
			result = append(result, pid)
		}
	}
	return result, nil
}

func (s *Store) AddRoleParent(ctx context.Context, roleID, parentID id.RoleID) error {
	if err := s.roleExists(ctx, roleID); err != nil {
		return fmt.Errorf("bastion/sqlite: add role parent: %w", err)
	}
	if err := s.roleExists(ctx, parentID); err != nil {
		return fmt.Errorf("bastion/sqlite: add role parent: %w", err)
	}
	m := &roleParentModel{RoleID: roleID.String(), ParentID: parentID.String()}
	_, err := s.sdb.NewInsert(m).
		OnConflict("(role_id, parent_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: add role parent: %w", err)
	}
	return nil
}

func (s *Store) RemoveRoleParent(ctx context.Context, roleID, parentID id.RoleID) error {
	_, err := s.sdb.NewDelete((*roleParentModel)(nil)).
		Where("role_id = ?", roleID.String()).
		Where("parent_id = ?", parentID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: remove role parent: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Assignment operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAssignment(ctx context.Context, a *assignment.Assignment) error {
	if _, err := s.sdb.NewInsert(assignmentToModel(a)).Exec(ctx); err != nil {
		return fmt.Errorf("bastion/sqlite: create assignment: %w", classify(err, fmt.Sprintf("assignment %s/%s", a.UserID, a.RoleID)))
	}
	return nil
}

func (s *Store) GetAssignmentByUserRole(ctx context.Context, userID string, roleID id.RoleID) (*assignment.Assignment, error) {
	m := new(assignmentModel)
	err := s.sdb.NewSelect(m).
		Where("user_id = ?", userID).
		Where("role_id = ?", roleID.String()).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion/sqlite: get assignment: %w", classify(err, fmt.Sprintf("assignment %s/%s", userID, roleID)))
	}
	return assignmentFromModel(m), nil
}

func (s *Store) UpdateAssignment(ctx context.Context, a *assignment.Assignment) error {
	res, err := s.sdb.NewUpdate(assignmentToModel(a)).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: update assignment: %w", err)
	}
	if err := affected(res, "assignment "+a.ID.String()); err != nil {
		return fmt.Errorf("bastion/sqlite: update assignment: %w", err)
	}
	return nil
}

func (s *Store) ListAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	q := s.sdb.NewSelect(&models).OrderExpr("assigned_at ASC")
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
		return nil, fmt.Errorf("bastion/sqlite: list assignments: %w", err)
	}
	result := make([]*assignment.Assignment, len(models))
	for i := range models {
		result[i] = assignmentFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListRolesForUser(ctx context.Context, userID string) ([]id.RoleID, error) {
	var models []assignmentModel
	err := s.sdb.NewSelect(&models).
		Where("user_id = ?", userID).
		Where("is_active = ?", true).
		OrderExpr("role_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion/sqlite: list roles for user: %w", err)
	}
	result := make([]id.RoleID, 0, len(models))
	for _, m := range models {
		if rid, err := id.ParseRoleID(m.RoleID); err == nil {
			result = append(result, rid)
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Grant operations
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(ctx context.Context, g *grant.Grant) error {
	if _, err := s.GetPermission(ctx, g.PermissionID); err != nil {
		return fmt.Errorf("bastion/sqlite: create grant: %w", err)
	}
	m, err := grantToModel(g)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: create grant: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion/sqlite: create grant: %w", classify(err, "grant "+g.ID.String()))
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.Grant, error) {
	m := new(grantModel)
	if err := s.sdb.NewSelect(m).Where("id = ?", grantID.String()).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/sqlite: get grant: %w", classify(err, "grant "+grantID.String()))
	}
	return grantFromModel(m)
}

func (s *Store) RevokeGrant(ctx context.Context, grantID id.GrantID) error {
	res, err := s.sdb.NewUpdate((*grantModel)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", grantID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: revoke grant: %w", err)
	}
	if err := affected(res, "grant "+grantID.String()); err != nil {
		return fmt.Errorf("bastion/sqlite: revoke grant: %w", err)
	}
	return nil
}

func (s *Store) ListGrantsForUser(ctx context.Context, userID string, permID id.PermissionID) ([]*grant.Grant, error) {
	var models []grantModel
	err := s.sdb.NewSelect(&models).
		Where("user_id = ?", userID).
		Where("permission_id = ?", permID.String()).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion/sqlite: list grants for user: %w", err)
	}
	return grantsFromModels(models)
}

func (s *Store) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	var models []grantModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC, id ASC")
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
		return nil, fmt.Errorf("bastion/sqlite: list grants: %w", err)
	}
	return grantsFromModels(models)
}

func grantsFromModels(models []grantModel) ([]*grant.Grant, error) {
	result := make([]*grant.Grant, 0, len(models))
	for i := range models {
		g, err := grantFromModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, nil
}

func (s *Store) CountGrantsForPermission(ctx context.Context, permID id.PermissionID) (int64, error) {
	count, err := s.sdb.NewSelect((*grantModel)(nil)).
		Where("permission_id = ?", permID.String()).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion/sqlite: count grants: %w", err)
	}
	return count, nil
}

// ConsumeGrant relies on SQLite's single-writer lock: the guarded UPDATE
// and the read-back run in one transaction that no other writer can
// interleave with. ValidUntil is checked on the read-back and an expired
// grant rolls the increment back.
func (s *Store) ConsumeGrant(ctx context.Context, grantID id.GrantID, now time.Time) (*grant.Grant, error) {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("bastion/sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	res, err := tx.NewUpdate((*grantModel)(nil)).
		Set("current_uses = current_uses + 1").
		Set("updated_at = ?", now.UTC()).
		Where("id = ?", grantID.String()).
		Where("is_active = ?", true).
		Where("max_uses IS NOT NULL").
		Where("current_uses < max_uses").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion/sqlite: consume grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("bastion/sqlite: consume grant rows: %w", err)
	}

	m := new(grantModel)
	if err := tx.NewSelect(m).Where("id = ?", grantID.String()).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/sqlite: consume grant: %w", classify(err, "grant "+grantID.String()))
	}
	g, err := grantFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("bastion/sqlite: consume grant: %w", err)
	}
	if n == 1 && g.ValidUntil != nil && now.After(*g.ValidUntil) {
		// The deferred rollback discards the increment.
		return nil, fmt.Errorf("grant %s: %w", grantID, errdefs.ErrGrantInactive)
	}
	if n == 0 {
		if err := g.CheckConsumable(now); err != nil {
			return nil, fmt.Errorf("grant %s: %w", grantID, err)
		}
		if g.Limited() {
			return nil, fmt.Errorf("grant %s: %w", grantID, errdefs.ErrQuotaExceeded)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("bastion/sqlite: commit tx: %w", err)
	}
	return g, nil
}

// ──────────────────────────────────────────────────
// Policy operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePolicy(ctx context.Context, p *policy.Policy) error {
	m, err := policyToModel(p)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: create policy: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("bastion/sqlite: create policy: %w", classify(err, fmt.Sprintf("policy %q", p.Name)))
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	m := new(policyModel)
	if err := s.sdb.NewSelect(m).Where("id = ?", polID.String()).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/sqlite: get policy: %w", classify(err, "policy "+polID.String()))
	}
	return policyFromModel(m)
}

func (s *Store) UpdatePolicy(ctx context.Context, p *policy.Policy) error {
	m, err := policyToModel(p)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: update policy: %w", err)
	}
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion/sqlite: update policy: %w", classify(err, fmt.Sprintf("policy %q", p.Name)))
	}
	if err := affected(res, "policy "+p.ID.String()); err != nil {
		return fmt.Errorf("bastion/sqlite: update policy: %w", err)
	}
	return nil
}

func (s *Store) ListPolicies(ctx context.Context, filter *policy.ListFilter) ([]*policy.Policy, error) {
	var models []policyModel
	q := s.sdb.NewSelect(&models).OrderExpr("name ASC")
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
		return nil, fmt.Errorf("bastion/sqlite: list policies: %w", err)
	}
	return policiesFromModels(models)
}

func (s *Store) ListActivePolicies(ctx context.Context) ([]*policy.Policy, error) {
	var models []policyModel
	err := s.sdb.NewSelect(&models).
		Where("is_active = ?", true).
		OrderExpr("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion/sqlite: list active policies: %w", err)
	}
	return policiesFromModels(models)
}

func policiesFromModels(models []policyModel) ([]*policy.Policy, error) {
	result := make([]*policy.Policy, 0, len(models))
	for i := range models {
		p, err := policyFromModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}
