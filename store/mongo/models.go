package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/policy"
	"github.com/xraph/bastion/resourcetype"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/window"
)

// ──────────────────────────────────────────────────
// Permission model
// ──────────────────────────────────────────────────

type permissionModel struct {
	grove.BaseModel `grove:"table:bastion_permissions"`
	ID              string         `grove:"id,pk"         bson:"_id"`
	Name            string         `grove:"name"          bson:"name"`
	ResourceType    string         `grove:"resource_type" bson:"resource_type"`
	RiskLevel       string         `grove:"risk_level"    bson:"risk_level"`
	Description     string         `grove:"description"   bson:"description"`
	IsSystem        bool           `grove:"is_system"     bson:"is_system"`
	IsActive        bool           `grove:"is_active"     bson:"is_active"`
	Metadata        map[string]any `grove:"metadata"      bson:"metadata,omitempty"`
	CreatedAt       time.Time      `grove:"created_at"    bson:"created_at"`
	UpdatedAt       time.Time      `grove:"updated_at"    bson:"updated_at"`
}

func permissionToModel(p *permission.Permission) *permissionModel {
	return &permissionModel{
		ID:           p.ID.String(),
		Name:         p.Name,
		ResourceType: p.ResourceType,
		RiskLevel:    string(p.RiskLevel),
		Description:  p.Description,
		IsSystem:     p.IsSystem,
		IsActive:     p.IsActive,
		Metadata:     p.Metadata,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func permissionFromModel(m *permissionModel) *permission.Permission {
	pid, _ := id.ParsePermissionID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &permission.Permission{
		ID:           pid,
		Name:         m.Name,
		ResourceType: m.ResourceType,
		RiskLevel:    permission.RiskLevel(m.RiskLevel),
		Description:  m.Description,
		IsSystem:     m.IsSystem,
		IsActive:     m.IsActive,
		Metadata:     m.Metadata,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Resource type model
// ──────────────────────────────────────────────────

type resourceTypeModel struct {
	grove.BaseModel `grove:"table:bastion_resource_types"`
	ID              string         `grove:"id,pk"       bson:"_id"`
	Name            string         `grove:"name"        bson:"name"`
	Description     string         `grove:"description" bson:"description"`
	Metadata        map[string]any `grove:"metadata"    bson:"metadata,omitempty"`
	CreatedAt       time.Time      `grove:"created_at"  bson:"created_at"`
	UpdatedAt       time.Time      `grove:"updated_at"  bson:"updated_at"`
}

func resourceTypeToModel(rt *resourcetype.ResourceType) *resourceTypeModel {
	return &resourceTypeModel{
		ID:          rt.ID.String(),
		Name:        rt.Name,
		Description: rt.Description,
		Metadata:    rt.Metadata,
		CreatedAt:   rt.CreatedAt,
		UpdatedAt:   rt.UpdatedAt,
	}
}

func resourceTypeFromModel(m *resourceTypeModel) *resourcetype.ResourceType {
	rtid, _ := id.ParseResourceTypeID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &resourcetype.ResourceType{
		ID:          rtid,
		Name:        m.Name,
		Description: m.Description,
		Metadata:    m.Metadata,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Role model
// ──────────────────────────────────────────────────

// roleModel embeds parent edges as an array; the document is the unit of
// atomicity for edge updates.
type roleModel struct {
	grove.BaseModel `grove:"table:bastion_roles"`
	ID              string         `grove:"id,pk"       bson:"_id"`
	Name            string         `grove:"name"        bson:"name"`
	Description     string         `grove:"description" bson:"description"`
	ParentIDs       []string       `grove:"parent_ids"  bson:"parent_ids"`
	IsSystem        bool           `grove:"is_system"   bson:"is_system"`
	IsActive        bool           `grove:"is_active"   bson:"is_active"`
	Metadata        map[string]any `grove:"metadata"    bson:"metadata,omitempty"`
	CreatedAt       time.Time      `grove:"created_at"  bson:"created_at"`
	UpdatedAt       time.Time      `grove:"updated_at"  bson:"updated_at"`
}

func roleToModel(r *role.Role) *roleModel {
	parents := id.Strings(r.ParentIDs)
	if parents == nil {
		parents = []string{}
	}
	return &roleModel{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		ParentIDs:   parents,
		IsSystem:    r.IsSystem,
		IsActive:    r.IsActive,
		Metadata:    r.Metadata,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func roleFromModel(m *roleModel) *role.Role {
	rid, _ := id.ParseRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	r := &role.Role{
		ID:          rid,
		Name:        m.Name,
		Description: m.Description,
		IsSystem:    m.IsSystem,
		IsActive:    m.IsActive,
		Metadata:    m.Metadata,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	for _, p := range m.ParentIDs {
		if pid, err := id.ParseRoleID(p); err == nil {
			r.ParentIDs = append(r.ParentIDs, pid)
		}
	}
	return r
}

type rolePermissionModel struct {
	grove.BaseModel `grove:"table:bastion_role_permissions"`
	RoleID          string `grove:"role_id"       bson:"role_id"`
	PermissionID    string `grove:"permission_id" bson:"permission_id"`
}

// ──────────────────────────────────────────────────
// Assignment model
// ──────────────────────────────────────────────────

type assignmentModel struct {
	grove.BaseModel `grove:"table:bastion_assignments"`
	ID              string     `grove:"id,pk"       bson:"_id"`
	UserID          string     `grove:"user_id"     bson:"user_id"`
	RoleID          string     `grove:"role_id"     bson:"role_id"`
	IsActive        bool       `grove:"is_active"   bson:"is_active"`
	GrantedBy       string     `grove:"granted_by"  bson:"granted_by"`
	AssignedAt      time.Time  `grove:"assigned_at" bson:"assigned_at"`
	RevokedAt       *time.Time `grove:"revoked_at"  bson:"revoked_at,omitempty"`
}

func assignmentToModel(a *assignment.Assignment) *assignmentModel {
	return &assignmentModel{
		ID:         a.ID.String(),
		UserID:     a.UserID,
		RoleID:     a.RoleID.String(),
		IsActive:   a.IsActive,
		GrantedBy:  a.GrantedBy,
		AssignedAt: a.AssignedAt,
		RevokedAt:  a.RevokedAt,
	}
}

func assignmentFromModel(m *assignmentModel) *assignment.Assignment {
	aid, _ := id.ParseAssignmentID(m.ID) //nolint:errcheck // stored IDs are always valid
	rid, _ := id.ParseRoleID(m.RoleID)   //nolint:errcheck // stored IDs are always valid
	return &assignment.Assignment{
		ID:         aid,
		UserID:     m.UserID,
		RoleID:     rid,
		IsActive:   m.IsActive,
		GrantedBy:  m.GrantedBy,
		AssignedAt: m.AssignedAt,
		RevokedAt:  m.RevokedAt,
	}
}

// ──────────────────────────────────────────────────
// Grant model
// ──────────────────────────────────────────────────

type grantModel struct {
	grove.BaseModel `grove:"table:bastion_grants"`
	ID              string             `grove:"id,pk"         bson:"_id"`
	UserID          string             `grove:"user_id"       bson:"user_id"`
	PermissionID    string             `grove:"permission_id" bson:"permission_id"`
	ResourceID      string             `grove:"resource_id"   bson:"resource_id"`
	ScheduleType    string             `grove:"schedule_type" bson:"schedule_type"`
	ValidFrom       time.Time          `grove:"valid_from"    bson:"valid_from"`
	ValidUntil      *time.Time         `grove:"valid_until"   bson:"valid_until,omitempty"`
	TimeZone        string             `grove:"time_zone"     bson:"time_zone"`
	DaysOfWeek      []int              `grove:"days_of_week"  bson:"days_of_week,omitempty"`
	TimeRanges      []window.TimeRange `grove:"time_ranges"   bson:"time_ranges,omitempty"`
	MaxUses         *int               `grove:"max_uses"      bson:"max_uses"`
	CurrentUses     int                `grove:"current_uses"  bson:"current_uses"`
	IsActive        bool               `grove:"is_active"     bson:"is_active"`
	GrantedBy       string             `grove:"granted_by"    bson:"granted_by"`
	Reason          string             `grove:"reason"        bson:"reason"`
	CreatedAt       time.Time          `grove:"created_at"    bson:"created_at"`
	UpdatedAt       time.Time          `grove:"updated_at"    bson:"updated_at"`
}

func grantToModel(g *grant.Grant) *grantModel {
	m := &grantModel{
		ID:           g.ID.String(),
		UserID:       g.UserID,
		PermissionID: g.PermissionID.String(),
		ResourceID:   g.ResourceID,
		ScheduleType: string(g.ScheduleType),
		ValidFrom:    g.ValidFrom,
		ValidUntil:   g.ValidUntil,
		TimeZone:     g.TimeZone,
		TimeRanges:   g.TimeRanges,
		MaxUses:      g.MaxUses,
		CurrentUses:  g.CurrentUses,
		IsActive:     g.IsActive,
		GrantedBy:    g.GrantedBy,
		Reason:       g.Reason,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
	for _, d := range g.DaysOfWeek {
		m.DaysOfWeek = append(m.DaysOfWeek, int(d))
	}
	return m
}

func grantFromModel(m *grantModel) *grant.Grant {
	gid, _ := id.ParseGrantID(m.ID)                //nolint:errcheck // stored IDs are always valid
	pid, _ := id.ParsePermissionID(m.PermissionID) //nolint:errcheck // stored IDs are always valid
	g := &grant.Grant{
		ID:           gid,
		UserID:       m.UserID,
		PermissionID: pid,
		ResourceID:   m.ResourceID,
		ScheduleType: grant.ScheduleType(m.ScheduleType),
		ValidFrom:    m.ValidFrom.UTC(),
		TimeZone:     m.TimeZone,
		TimeRanges:   m.TimeRanges,
		MaxUses:      m.MaxUses,
		CurrentUses:  m.CurrentUses,
		IsActive:     m.IsActive,
		GrantedBy:    m.GrantedBy,
		Reason:       m.Reason,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.ValidUntil != nil {
		until := m.ValidUntil.UTC()
		g.ValidUntil = &until
	}
	for _, d := range m.DaysOfWeek {
		g.DaysOfWeek = append(g.DaysOfWeek, time.Weekday(d))
	}
	return g
}

// ──────────────────────────────────────────────────
// Policy model
// ──────────────────────────────────────────────────

type policyModel struct {
	grove.BaseModel `grove:"table:bastion_policies"`
	ID              string               `grove:"id,pk"          bson:"_id"`
	Name            string               `grove:"name"           bson:"name"`
	Description     string               `grove:"description"    bson:"description"`
	ConditionType   string               `grove:"condition_type" bson:"condition_type"`
	Condition       policy.ConditionData `grove:"condition_data" bson:"condition_data"`
	IsGlobal        bool                 `grove:"is_global"      bson:"is_global"`
	Targets         []targetDoc          `grove:"targets"        bson:"targets,omitempty"`
	RiskLevel       string               `grove:"risk_level"     bson:"risk_level"`
	IsActive        bool                 `grove:"is_active"      bson:"is_active"`
	Metadata        map[string]any       `grove:"metadata"       bson:"metadata,omitempty"`
	CreatedAt       time.Time            `grove:"created_at"     bson:"created_at"`
	UpdatedAt       time.Time            `grove:"updated_at"     bson:"updated_at"`
}

func policyToModel(p *policy.Policy) *policyModel {
	return &policyModel{
		ID:            p.ID.String(),
		Name:          p.Name,
		Description:   p.Description,
		ConditionType: string(p.ConditionType),
		Condition:     p.Condition,
		IsGlobal:      p.IsGlobal,
		Targets:       targetsToDocs(p.Targets),
		RiskLevel:     string(p.RiskLevel),
		IsActive:      p.IsActive,
		Metadata:      p.Metadata,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func policyFromModel(m *policyModel) *policy.Policy {
	pid, _ := id.ParsePolicyID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &policy.Policy{
		ID:            pid,
		Name:          m.Name,
		Description:   m.Description,
		ConditionType: policy.ConditionType(m.ConditionType),
		Condition:     m.Condition,
		IsGlobal:      m.IsGlobal,
		Targets:       targetsFromDocs(m.Targets),
		RiskLevel:     permission.RiskLevel(m.RiskLevel),
		IsActive:      m.IsActive,
		Metadata:      m.Metadata,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// targetDoc stores policy targets with string IDs.
type targetDoc struct {
	PermissionID string `bson:"permission_id,omitempty"`
	ResourceType string `bson:"resource_type,omitempty"`
}

func targetsToDocs(targets []policy.Target) []targetDoc {
	docs := make([]targetDoc, 0, len(targets))
	for _, t := range targets {
		d := targetDoc{ResourceType: t.ResourceType}
		if t.PermissionID != nil {
			d.PermissionID = t.PermissionID.String()
		}
		docs = append(docs, d)
	}
	return docs
}

func targetsFromDocs(docs []targetDoc) []policy.Target {
	if len(docs) == 0 {
		return nil
	}
	targets := make([]policy.Target, 0, len(docs))
	for _, d := range docs {
		t := policy.Target{ResourceType: d.ResourceType}
		if d.PermissionID != "" {
			if pid, err := id.ParsePermissionID(d.PermissionID); err == nil {
				t.PermissionID = &pid
			}
		}
		targets = append(targets, t)
	}
	return targets
}
