// Package mongo provides a MongoDB implementation of the Bastion composite
// store using grove ORM's mongo driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

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

// Collection name constants.
const (
	colPermissions     = "bastion_permissions"
	colResourceTypes   = "bastion_resource_types"
	colRoles           = "bastion_roles"
	colRolePermissions = "bastion_role_permissions"
	colAssignments     = "bastion_assignments"
	colGrants          = "bastion_grants"
	colPolicies        = "bastion_policies"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite Bastion store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all bastion collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("bastion/mongo: migrate %s indexes: %w", col, err)
		}
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

func now() time.Time {
	return time.Now().UTC()
}

// classify maps driver errors onto errdefs sentinels.
func classify(err error, subject string) error {
	switch {
	case errors.Is(err, mongod.ErrNoDocuments):
		return fmt.Errorf("%s: %w", subject, errdefs.ErrNotFound)
	case mongod.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", subject, errdefs.ErrConflict)
	}
	return err
}

// migrationIndexes returns the index definitions for all bastion collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	unique := func(keys bson.D) mongod.IndexModel {
		return mongod.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	return map[string][]mongod.IndexModel{
		colPermissions: {
			unique(bson.D{{Key: "name", Value: 1}}),
			{Keys: bson.D{{Key: "resource_type", Value: 1}}},
		},
		colResourceTypes: {
			unique(bson.D{{Key: "name", Value: 1}}),
		},
		colRoles: {
			unique(bson.D{{Key: "name", Value: 1}}),
			{Keys: bson.D{{Key: "parent_ids", Value: 1}}},
		},
		colRolePermissions: {
			unique(bson.D{{Key: "role_id", Value: 1}, {Key: "permission_id", Value: 1}}),
			{Keys: bson.D{{Key: "permission_id", Value: 1}}},
		},
		colAssignments: {
			unique(bson.D{{Key: "user_id", Value: 1}, {Key: "role_id", Value: 1}}),
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_active", Value: 1}}},
		},
		colGrants: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "permission_id", Value: 1}}},
			{Keys: bson.D{{Key: "permission_id", Value: 1}}},
		},
		colPolicies: {
			unique(bson.D{{Key: "name", Value: 1}}),
			{Keys: bson.D{{Key: "is_active", Value: 1}}},
		},
	}
}

func page[Q interface {
	Limit(int64) Q
	Skip(int64) Q
}](q Q, limit, offset int) Q {
	if limit > 0 {
		q = q.Limit(int64(limit))
	}
	if offset > 0 {
		q = q.Skip(int64(offset))
	}
	return q
}

// ──────────────────────────────────────────────────
// Permission operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePermission(ctx context.Context, p *permission.Permission) error {
	if _, err := s.mdb.NewInsert(permissionToModel(p)).Exec(ctx); err != nil {
		return fmt.Errorf("bastion/mongo: create permission: %w", classify(err, fmt.Sprintf("permission %q", p.Name)))
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	var m permissionModel
	if err := s.mdb.NewFind(&m).Filter(bson.M{"_id": permID.String()}).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: get permission: %w", classify(err, "permission "+permID.String()))
	}
	return permissionFromModel(&m), nil
}

func (s *Store) GetPermissionByName(ctx context.Context, name string) (*permission.Permission, error) {
	var m permissionModel
	if err := s.mdb.NewFind(&m).Filter(bson.M{"name": name}).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: get permission by name: %w", classify(err, fmt.Sprintf("permission %q", name)))
	}
	return permissionFromModel(&m), nil
}

func (s *Store) UpdatePermission(ctx context.Context, p *permission.Permission) error {
	m := permissionToModel(p)
	res, err := s.mdb.NewUpdate(m).Filter(bson.M{"_id": m.ID}).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion/mongo: update permission: %w", classify(err, fmt.Sprintf("permission %q", p.Name)))
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("permission %s: %w", p.ID, errdefs.ErrNotFound)
	}
	return nil
}

func (s *Store) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	var models []permissionModel
	f := bson.M{}
	limit, offset := 0, 0
	if filter != nil {
		if filter.ResourceType != "" {
			f["resource_type"] = filter.ResourceType
		}
		if filter.IsActive != nil {
			f["is_active"] = *filter.IsActive
		}
		if filter.Search != "" {
			f["name"] = bson.M{"$regex": filter.Search, "$options": "i"}
		}
		limit, offset = filter.Limit, filter.Offset
	}
	q := s.mdb.NewFind(&models).Filter(f).Sort(bson.D{{Key: "name", Value: 1}})
	if err := page(q, limit, offset).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: list permissions: %w", err)
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
	if _, err := s.mdb.NewInsert(resourceTypeToModel(rt)).Exec(ctx); err != nil {
		return fmt.Errorf("bastion/mongo: create resource type: %w", classify(err, fmt.Sprintf("resource type %q", rt.Name)))
	}
	return nil
}

func (s *Store) GetResourceTypeByName(ctx context.Context, name string) (*resourcetype.ResourceType, error) {
	var m resourceTypeModel
	if err := s.mdb.NewFind(&m).Filter(bson.M{"name": name}).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: get resource type: %w", classify(err, fmt.Sprintf("resource type %q", name)))
	}
	return resourceTypeFromModel(&m), nil
}

func (s *Store) ListResourceTypes(ctx context.Context, filter *resourcetype.ListFilter) ([]*resourcetype.ResourceType, error) {
	var models []resourceTypeModel
	f := bson.M{}
	limit, offset := 0, 0
	if filter != nil {
		if filter.Search != "" {
			f["name"] = bson.M{"$regex": filter.Search, "$options": "i"}
		}
		limit, offset = filter.Limit, filter.Offset
	}
	q := s.mdb.NewFind(&models).Filter(f).Sort(bson.D{{Key: "name", Value: 1}})
	if err := page(q, limit, offset).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: list resource types: %w", err)
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

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	for _, p := range r.ParentIDs {
		if _, err := s.GetRole(ctx, p); err != nil {
			return fmt.Errorf("bastion/mongo: create role: parent %w", err)
		}
	}
	if _, err := s.mdb.NewInsert(roleToModel(r)).Exec(ctx); err != nil {
		return fmt.Errorf("bastion/mongo: create role: %w", classify(err, fmt.Sprintf("role %q", r.Name)))
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	var m roleModel
	if err := s.mdb.NewFind(&m).Filter(bson.M{"_id": roleID.String()}).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: get role: %w", classify(err, "role "+roleID.String()))
	}
	return roleFromModel(&m), nil
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*role.Role, error) {
	var m roleModel
	if err := s.mdb.NewFind(&m).Filter(bson.M{"name": name}).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: get role by name: %w", classify(err, fmt.Sprintf("role %q", name)))
	}
	return roleFromModel(&m), nil
}

// UpdateRole replaces the role's scalar fields. Parent edges are left
// untouched; they change only through AddRoleParent and RemoveRoleParent.
func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	res, err := s.mdb.Collection(colRoles).UpdateOne(ctx,
		bson.M{"_id": r.ID.String()},
		bson.M{"$set": bson.M{
			"name":        r.Name,
			"description": r.Description,
			"is_system":   r.IsSystem,
			"is_active":   r.IsActive,
			"metadata":    r.Metadata,
			"updated_at":  r.UpdatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("bastion/mongo: update role: %w", classify(err, fmt.Sprintf("role %q", r.Name)))
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("role %s: %w", r.ID, errdefs.ErrNotFound)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	f := bson.M{}
	limit, offset := 0, 0
	if filter != nil {
		if filter.IsActive != nil {
			f["is_active"] = *filter.IsActive
		}
		if filter.IsSystem != nil {
			f["is_system"] = *filter.IsSystem
		}
		if filter.Search != "" {
			f["name"] = bson.M{"$regex": filter.Search, "$options": "i"}
		}
		limit, offset = filter.Limit, filter.Offset
	}
	q := s.mdb.NewFind(&models).Filter(f).Sort(bson.D{{Key: "name", Value: 1}})
	if err := page(q, limit, offset).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: list roles: %w", err)
	}
	result := make([]*role.Role, len(models))
	for i := range models {
		result[i] = roleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListRolePermissions(ctx context.Context, roleID id.RoleID) ([]id.PermissionID, error) {
	var models []rolePermissionModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"role_id": roleID.String()}).
		Sort(bson.D{{Key: "permission_id", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: list role permissions: %w", err)
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
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return fmt.Errorf("bastion/mongo: attach permission: %w", err)
	}
	if _, err := s.GetPermission(ctx, permID); err != nil {
		return fmt.Errorf("bastion/mongo: attach permission: %w", err)
	}
	m := &rolePermissionModel{
		RoleID:       roleID.String(),
		PermissionID: permID.String(),
	}
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return nil // already attached
		}
		return fmt.Errorf("bastion/mongo: attach permission: %w", err)
	}
	return nil
}

func (s *Store) DetachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error {
	_, err := s.mdb.NewDelete((*rolePermissionModel)(nil)).
		Filter(bson.M{"role_id": roleID.String(), "permission_id": permID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion/mongo: detach permission: %w", err)
	}
	return nil
}

func (s *Store) ListRoleParents(ctx context.Context, roleID id.RoleID) ([]id.RoleID, error) {
	r, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return r.ParentIDs, nil
}

func (s *Store) AddRoleParent(ctx context.Context, roleID, parentID id.RoleID) error {
	if _, err := s.GetRole(ctx, parentID); err != nil {
		return fmt.Errorf("bastion/mongo: add role parent: %w", err)
	}
	res, err := s.mdb.Collection(colRoles).UpdateOne(ctx,
		bson.M{"_id": roleID.String()},
		bson.M{
			"$addToSet": bson.M{"parent_ids": parentID.String()},
			"$set":      bson.M{"updated_at": now()},
		},
	)
	if err != nil {
		return fmt.Errorf("bastion/mongo: add role parent: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("role %s: %w", roleID, errdefs.ErrNotFound)
	}
	return nil
}

func (s *Store) RemoveRoleParent(ctx context.Context, roleID, parentID id.RoleID) error {
	res, err := s.mdb.Collection(colRoles).UpdateOne(ctx,
		bson.M{"_id": roleID.String()},
		bson.M{
			"$pull": bson.M{"parent_ids": parentID.String()},
			"$set":  bson.M{"updated_at": now()},
		},
	)
	if err != nil {
		return fmt.Errorf("bastion/mongo: remove role parent: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("role %s: %w", roleID, errdefs.ErrNotFound)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Assignment operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAssignment(ctx context.Context, a *assignment.Assignment) error {
	if _, err := s.mdb.NewInsert(assignmentToModel(a)).Exec(ctx); err != nil {
		return fmt.Errorf("bastion/mongo: create assignment: %w", classify(err, fmt.Sprintf("assignment %s/%s", a.UserID, a.RoleID)))
	}
	return nil
}

func (s *Store) GetAssignmentByUserRole(ctx context.Context, userID string, roleID id.RoleID) (*assignment.Assignment, error) {
	var m assignmentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"user_id": userID, "role_id": roleID.String()}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("bastion/mongo: get assignment: %w", classify(err, fmt.Sprintf("assignment %s/%s", userID, roleID)))
	}
	return assignmentFromModel(&m), nil
}

func (s *Store) UpdateAssignment(ctx context.Context, a *assignment.Assignment) error {
	m := assignmentToModel(a)
	res, err := s.mdb.NewUpdate(m).Filter(bson.M{"_id": m.ID}).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion/mongo: update assignment: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("assignment %s: %w", a.ID, errdefs.ErrNotFound)
	}
	return nil
}

func (s *Store) ListAssignments(ctx context.Context, filter *assignment.ListFilter) ([]*assignment.Assignment, error) {
	var models []assignmentModel
	f := bson.M{}
	limit, offset := 0, 0
	if filter != nil {
		if filter.UserID != "" {
			f["user_id"] = filter.UserID
		}
		if filter.RoleID != nil {
			f["role_id"] = filter.RoleID.String()
		}
		if filter.IsActive != nil {
			f["is_active"] = *filter.IsActive
		}
		limit, offset = filter.Limit, filter.Offset
	}
	q := s.mdb.NewFind(&models).Filter(f).Sort(bson.D{{Key: "assigned_at", Value: 1}})
	if err := page(q, limit, offset).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: list assignments: %w", err)
	}
	result := make([]*assignment.Assignment, len(models))
	for i := range models {
		result[i] = assignmentFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListRolesForUser(ctx context.Context, userID string) ([]id.RoleID, error) {
	var models []assignmentModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"user_id": userID, "is_active": true}).
		Sort(bson.D{{Key: "role_id", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: list roles for user: %w", err)
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
		return fmt.Errorf("bastion/mongo: create grant: %w", err)
	}
	if _, err := s.mdb.NewInsert(grantToModel(g)).Exec(ctx); err != nil {
		return fmt.Errorf("bastion/mongo: create grant: %w", classify(err, "grant "+g.ID.String()))
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.Grant, error) {
	var m grantModel
	if err := s.mdb.NewFind(&m).Filter(bson.M{"_id": grantID.String()}).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: get grant: %w", classify(err, "grant "+grantID.String()))
	}
	return grantFromModel(&m), nil
}

func (s *Store) RevokeGrant(ctx context.Context, grantID id.GrantID) error {
	res, err := s.mdb.Collection(colGrants).UpdateOne(ctx,
		bson.M{"_id": grantID.String()},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": now()}},
	)
	if err != nil {
		return fmt.Errorf("bastion/mongo: revoke grant: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("grant %s: %w", grantID, errdefs.ErrNotFound)
	}
	return nil
}

func (s *Store) ListGrantsForUser(ctx context.Context, userID string, permID id.PermissionID) ([]*grant.Grant, error) {
	var models []grantModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"user_id": userID, "permission_id": permID.String()}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: list grants for user: %w", err)
	}
	result := make([]*grant.Grant, len(models))
	for i := range models {
		result[i] = grantFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	var models []grantModel
	f := bson.M{}
	limit, offset := 0, 0
	if filter != nil {
		if filter.UserID != "" {
			f["user_id"] = filter.UserID
		}
		if filter.PermissionID != nil {
			f["permission_id"] = filter.PermissionID.String()
		}
		if filter.IsActive != nil {
			f["is_active"] = *filter.IsActive
		}
		limit, offset = filter.Limit, filter.Offset
	}
	q := s.mdb.NewFind(&models).Filter(f).Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if err := page(q, limit, offset).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: list grants: %w", err)
	}
	result := make([]*grant.Grant, len(models))
	for i := range models {
		result[i] = grantFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountGrantsForPermission(ctx context.Context, permID id.PermissionID) (int64, error) {
	count, err := s.mdb.NewFind((*grantModel)(nil)).
		Filter(bson.M{"permission_id": permID.String()}).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bastion/mongo: count grants: %w", err)
	}
	return count, nil
}

// ConsumeGrant performs a guarded $inc: the filter only matches an active,
// unexpired grant whose current_uses is below max_uses, and single-document
// updates are atomic, so neither the quota nor a concurrent revoke can be
// overrun.
func (s *Store) ConsumeGrant(ctx context.Context, grantID id.GrantID, at time.Time) (*grant.Grant, error) {
	at = at.UTC()
	filter := bson.M{
		"_id":       grantID.String(),
		"is_active": true,
		"$or": bson.A{
			bson.M{"valid_until": nil},
			bson.M{"valid_until": bson.M{"$gte": at}},
		},
		"max_uses": bson.M{"$ne": nil},
		"$expr":    bson.M{"$lt": bson.A{"$current_uses", "$max_uses"}},
	}
	update := bson.M{
		"$inc": bson.M{"current_uses": 1},
		"$set": bson.M{"updated_at": at},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m grantModel
	err := s.mdb.Collection(colGrants).FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if err == nil {
		return grantFromModel(&m), nil
	}
	if !errors.Is(err, mongod.ErrNoDocuments) {
		return nil, fmt.Errorf("bastion/mongo: consume grant: %w", err)
	}

	g, err := s.GetGrant(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if err := g.CheckConsumable(at); err != nil {
		return nil, fmt.Errorf("grant %s: %w", grantID, err)
	}
	if g.Limited() {
		return nil, fmt.Errorf("grant %s: %w", grantID, errdefs.ErrQuotaExceeded)
	}
	return g, nil
}

// ──────────────────────────────────────────────────
// Policy operations
// ──────────────────────────────────────────────────

func (s *Store) CreatePolicy(ctx context.Context, p *policy.Policy) error {
	if _, err := s.mdb.NewInsert(policyToModel(p)).Exec(ctx); err != nil {
		return fmt.Errorf("bastion/mongo: create policy: %w", classify(err, fmt.Sprintf("policy %q", p.Name)))
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, polID id.PolicyID) (*policy.Policy, error) {
	var m policyModel
	if err := s.mdb.NewFind(&m).Filter(bson.M{"_id": polID.String()}).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: get policy: %w", classify(err, "policy "+polID.String()))
	}
	return policyFromModel(&m), nil
}

func (s *Store) UpdatePolicy(ctx context.Context, p *policy.Policy) error {
	m := policyToModel(p)
	res, err := s.mdb.NewUpdate(m).Filter(bson.M{"_id": m.ID}).Exec(ctx)
	if err != nil {
		return fmt.Errorf("bastion/mongo: update policy: %w", classify(err, fmt.Sprintf("policy %q", p.Name)))
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("policy %s: %w", p.ID, errdefs.ErrNotFound)
	}
	return nil
}

func (s *Store) ListPolicies(ctx context.Context, filter *policy.ListFilter) ([]*policy.Policy, error) {
	var models []policyModel
	f := bson.M{}
	limit, offset := 0, 0
	if filter != nil {
		if filter.ConditionType != "" {
			f["condition_type"] = string(filter.ConditionType)
		}
		if filter.IsActive != nil {
			f["is_active"] = *filter.IsActive
		}
		if filter.Search != "" {
			f["name"] = bson.M{"$regex": filter.Search, "$options": "i"}
		}
		limit, offset = filter.Limit, filter.Offset
	}
	q := s.mdb.NewFind(&models).Filter(f).Sort(bson.D{{Key: "name", Value: 1}})
	if err := page(q, limit, offset).Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: list policies: %w", err)
	}
	result := make([]*policy.Policy, len(models))
	for i := range models {
		result[i] = policyFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListActivePolicies(ctx context.Context) ([]*policy.Policy, error) {
	var models []policyModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"is_active": true}).
		Sort(bson.D{{Key: "name", Value: 1}}).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("bastion/mongo: list active policies: %w", err)
	}
	result := make([]*policy.Policy, len(models))
	for i := range models {
		result[i] = policyFromModel(&models[i])
	}
	return result, nil
}
