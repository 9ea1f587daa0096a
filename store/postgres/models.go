package postgres

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
	ID              string         `grove:"id,pk"`
	Name            string         `grove:"name,notnull"`
	ResourceType    string         `grove:"resource_type,notnull"`
	RiskLevel       string         `grove:"risk_level,notnull"`
	Description     string         `grove:"description"`
	IsSystem        bool           `grove:"is_system,notnull"`
	IsActive        bool           `grove:"is_active,notnull"`
	Metadata        map[string]any `grove:"metadata,type:jsonb"`
	CreatedAt       time.Time      `grove:"created_at,notnull"`
	UpdatedAt       time.Time      `grove:"updated_at,notnull"`
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
	ID              string         `grove:"id,pk"`
	Name            string         `grove:"name,notnull"`
	Description     string         `grove:"description"`
	Metadata        map[string]any `grove:"metadata,type:jsonb"`
	CreatedAt       time.Time      `grove:"created_at,notnull"`
	UpdatedAt       time.Time      `grove:"updated_at,notnull"`
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

type roleModel struct {
	grove.BaseModel `grove:"table:bastion_roles"`
	ID              string         `grove:"id,pk"`
	Name            string         `grove:"name,notnull"`
	Description     string         `grove:"description"`
	IsSystem        bool           `grove:"is_system,notnull"`
	IsActive        bool           `grove:"is_active,notnull"`
	Metadata        map[string]any `grove:"metadata,type:jsonb"`
	CreatedAt       time.Time      `grove:"created_at,notnull"`
	UpdatedAt       time.Time      `grove:"updated_at,notnull"`
}

func roleToModel(r *role.Role) *roleModel {
	return &roleModel{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		IsActive:    r.IsActive,
		Metadata:    r.Metadata,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// roleFromModel converts a row; parent edges are loaded separately.
func roleFromModel(m *roleModel, parents []id.RoleID) *role.Role {
	rid, _ := id.ParseRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &role.Role{
		ID:          rid,
		Name:        m.Name,
		Description: m.Description,
		ParentIDs:   parents,
		IsSystem:    m.IsSystem,
		IsActive:    m.IsActive,
		Metadata:    m.Metadata,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Role junction models
// ──────────────────────────────────────────────────

type rolePermissionModel struct {
	grove.BaseModel `grove:"table:bastion_role_permissions"`
	RoleID          string `grove:"role_id,pk"`
	PermissionID    string `grove:"permission_id,pk"`
}

type roleParentModel struct {
	grove.BaseModel `grove:"table:bastion_role_parents"`
	RoleID          string `grove:"role_id,pk"`
	ParentID        string `grove:"parent_id,pk"`
}

// ──────────────────────────────────────────────────
// Assignment model
// ──────────────────────────────────────────────────

type assignmentModel struct {
	grove.BaseModel `grove:"table:bastion_assignments"`
	ID              string     `grove:"id,pk"`
	UserID          string     `grove:"user_id,notnull"`
	RoleID          string     `grove:"role_id,notnull"`
	IsActive        bool       `grove:"is_active,notnull"`
	GrantedBy       string     `grove:"granted_by"`
	AssignedAt      time.Time  `grove:"assigned_at,notnull"`
	RevokedAt       *time.Time `grove:"revoked_at"`
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
	ID              string             `grove:"id,pk"`
	UserID          string             `grove:"user_id,notnull"`
	PermissionID    string             `grove:"permission_id,notnull"`
	ResourceID      string             `grove:"resource_id"`
	ScheduleType    string             `grove:"schedule_type,notnull"`
	ValidFrom       time.Time          `grove:"valid_from,notnull"`
	ValidUntil      *time.Time         `grove:"valid_until"`
	TimeZone        string             `grove:"time_zone"`
	DaysOfWeek      []int              `grove:"days_of_week,type:jsonb"`
	TimeRanges      []window.TimeRange `grove:"time_ranges,type:jsonb"`
	MaxUses         *int               `grove:"max_uses"`
	CurrentUses     int                `grove:"current_uses,notnull"`
	IsActive        bool               `grove:"is_active,notnull"`
	GrantedBy       string             `grove:"granted_by"`
	Reason          string             `grove:"reason"`
	CreatedAt       time.Time          `grove:"created_at,notnull"`
	UpdatedAt       time.Time          `grove:"updated_at,notnull"`
}

func grantToModel(g *grant.Grant) *grantModel {
	return &grantModel{
		ID:           g.ID.String(),
		UserID:       g.UserID,
		PermissionID: g.PermissionID.String(),
		ResourceID:   g.ResourceID,
		ScheduleType: string(g.ScheduleType),
		ValidFrom:    g.ValidFrom,
		ValidUntil:   g.ValidUntil,
		TimeZone:     g.TimeZone,
		DaysOfWeek:   weekdaysToInts(g.DaysOfWeek),
		TimeRanges:   g.TimeRanges,
		MaxUses:      g.MaxUses,
		CurrentUses:  g.CurrentUses,
		IsActive:     g.IsActive,
		GrantedBy:    g.GrantedBy,
		Reason:       g.Reason,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

func grantFromModel(m *grantModel) *grant.Grant {
	gid, _ := id.ParseGrantID(m.ID)                //nolint:errcheck // stored IDs are always valid
	pid, _ := id.ParsePermissionID(m.PermissionID) //nolint:errcheck // stored IDs are always valid
	return &grant.Grant{
		ID:           gid,
		UserID:       m.UserID,
		PermissionID: pid,
		ResourceID:   m.ResourceID,
		ScheduleType: grant.ScheduleType(m.ScheduleType),
		ValidFrom:    m.ValidFrom.UTC(),
		ValidUntil:   utcPtr(m.ValidUntil),
		TimeZone:     m.TimeZone,
		DaysOfWeek:   intsToWeekdays(m.DaysOfWeek),
		TimeRanges:   m.TimeRanges,
		MaxUses:      m.MaxUses,
		CurrentUses:  m.CurrentUses,
		IsActive:     m.IsActive,
		GrantedBy:    m.GrantedBy,
		Reason:       m.Reason,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Policy model
// ──────────────────────────────────────────────────

type policyModel struct {
	grove.BaseModel `grove:"table:bastion_policies"`
	ID              string               `grove:"id,pk"`
	Name            string               `grove:"name,notnull"`
	Description     string               `grove:"description"`
	ConditionType   string               `grove:"condition_type,notnull"`
	Condition       policy.ConditionData `grove:"condition_data,type:jsonb"`
	IsGlobal        bool                 `grove:"is_global,notnull"`
	Targets         []policy.Target      `grove:"targets,type:jsonb"`
	RiskLevel       string               `grove:"risk_level"`
	IsActive        bool                 `grove:"is_active,notnull"`
	Metadata        map[string]any       `grove:"metadata,type:jsonb"`
	CreatedAt       time.Time            `grove:"created_at,notnull"`
	UpdatedAt       time.Time            `grove:"updated_at,notnull"`
}

func policyToModel(p *policy.Policy) *policyModel {
	return &policyModel{
		ID:            p.ID.String(),
		Name:          p.Name,
		Description:   p.Description,
		ConditionType: string(p.ConditionType),
		Condition:     p.Condition,
		IsGlobal:      p.IsGlobal,
		Targets:       p.Targets,
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
		Targets:       m.Targets,
		RiskLevel:     permission.RiskLevel(m.RiskLevel),
		IsActive:      m.IsActive,
		Metadata:      m.Metadata,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func weekdaysToInts(days []time.Weekday) []int {
	if len(days) == 0 {
		return nil
	}
	out := make([]int, len(days))
	for i, d := range days {
		out[i] = int(d)
	}
	return out
}

func intsToWeekdays(days []int) []time.Weekday {
	if len(days) == 0 {
		return nil
	}
	out := make([]time.Weekday, len(days))
	for i, d := range days {
		out[i] = time.Weekday(d)
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
