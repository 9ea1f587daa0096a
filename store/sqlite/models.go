package sqlite

import (
	"encoding/json"
	"fmt"
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
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	ResourceType    string    `grove:"resource_type,notnull"`
	RiskLevel       string    `grove:"risk_level,notnull"`
	Description     string    `grove:"description"`
	IsSystem        bool      `grove:"is_system,notnull"`
	IsActive        bool      `grove:"is_active,notnull"`
	Metadata        string    `grove:"metadata"` // JSON text
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func permissionToModel(p *permission.Permission) (*permissionModel, error) {
	metadata, err := marshalText(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal permission metadata: %w", err)
	}
	return &permissionModel{
		ID:           p.ID.String(),
		Name:         p.Name,
		ResourceType: p.ResourceType,
		RiskLevel:    string(p.RiskLevel),
		Description:  p.Description,
		IsSystem:     p.IsSystem,
		IsActive:     p.IsActive,
		Metadata:     metadata,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}, nil
}

func permissionFromModel(m *permissionModel) (*permission.Permission, error) {
	pid, _ := id.ParsePermissionID(m.ID) //nolint:errcheck // stored IDs are always valid
	var metadata map[string]any
	if err := unmarshalText(m.Metadata, &metadata); err != nil {
		return nil, fmt.Errorf("unmarshal permission metadata: %w", err)
	}
	return &permission.Permission{
		ID:           pid,
		Name:         m.Name,
		ResourceType: m.ResourceType,
		RiskLevel:    permission.RiskLevel(m.RiskLevel),
		Description:  m.Description,
		IsSystem:     m.IsSystem,
		IsActive:     m.IsActive,
		Metadata:     metadata,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Resource type model
// ──────────────────────────────────────────────────

type resourceTypeModel struct {
	grove.BaseModel `grove:"table:bastion_resource_types"`
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	Description     string    `grove:"description"`
	Metadata        string    `grove:"metadata"` // JSON text
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func resourceTypeToModel(rt *resourcetype.ResourceType) (*resourceTypeModel, error) {
	metadata, err := marshalText(rt.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal resource type metadata: %w", err)
	}
	return &resourceTypeModel{
		ID:          rt.ID.String(),
		Name:        rt.Name,
		Description: rt.Description,
		Metadata:    metadata,
		CreatedAt:   rt.CreatedAt,
		UpdatedAt:   rt.UpdatedAt,
	}, nil
}

func resourceTypeFromModel(m *resourceTypeModel) (*resourcetype.ResourceType, error) {
	rtid, _ := id.ParseResourceTypeID(m.ID) //nolint:errcheck // stored IDs are always valid
	var metadata map[string]any
	if err := unmarshalText(m.Metadata, &metadata); err != nil {
		return nil, fmt.Errorf("unmarshal resource type metadata: %w", err)
	}
	return &resourcetype.ResourceType{
		ID:          rtid,
		Name:        m.Name,
		Description: m.Description,
		Metadata:    metadata,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Role model
// ──────────────────────────────────────────────────

type roleModel struct {
	grove.BaseModel `grove:"table:bastion_roles"`
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	Description     string    `grove:"description"`
	IsSystem        bool      `grove:"is_system,notnull"`
	IsActive        bool      `grove:"is_active,notnull"`
	Metadata        string    `grove:"metadata"` // JSON text
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func roleToModel(r *role.Role) (*roleModel, error) {
	metadata, err := marshalText(r.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal role metadata: %w", err)
	}
	return &roleModel{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		IsActive:    r.IsActive,
		Metadata:    metadata,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func roleFromModel(m *roleModel, parents []id.RoleID) (*role.Role, error) {
	rid, _ := id.ParseRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	var metadata map[string]any
	if err := unmarshalText(m.Metadata, &metadata); err != nil {
		return nil, fmt.Errorf("unmarshal role metadata: %w", err)
	}
	return &role.Role{
		ID:          rid,
		Name:        m.Name,
		Description: m.Description,
		ParentIDs:   parents,
		IsSystem:    m.IsSystem,
		IsActive:    m.IsActive,
		Metadata:    metadata,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

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
	ID              string     `grove:"id,pk"`
	UserID          string     `grove:"user_id,notnull"`
	PermissionID    string     `grove:"permission_id,notnull"`
	ResourceID      string     `grove:"resource_id"`
	ScheduleType    string     `grove:"schedule_type,notnull"`
	ValidFrom       time.Time  `grove:"valid_from,notnull"`
	ValidUntil      *time.Time `grove:"valid_until"`
	TimeZone        string     `grove:"time_zone"`
	DaysOfWeek      string     `grove:"days_of_week"` // JSON text
	TimeRanges      string     `grove:"time_ranges"`  // JSON text
	MaxUses         *int       `grove:"max_uses"`
	CurrentUses     int        `grove:"current_uses,notnull"`
	IsActive        bool       `grove:"is_active,notnull"`
	GrantedBy       string     `grove:"granted_by"`
	Reason          string     `grove:"reason"`
	CreatedAt       time.Time  `grove:"created_at,notnull"`
	UpdatedAt       time.Time  `grove:"updated_at,notnull"`
}

func grantToModel(g *grant.Grant) (*grantModel, error) {
	days, err := marshalText(g.DaysOfWeek)
	if err != nil {
		return nil, fmt.Errorf("marshal grant days: %w", err)
	}
	ranges, err := marshalText(g.TimeRanges)
	if err != nil {
		return nil, fmt.Errorf("marshal grant time ranges: %w", err)
	}
	return &grantModel{
		ID:           g.ID.String(),
		UserID:       g.UserID,
		PermissionID: g.PermissionID.String(),
		ResourceID:   g.ResourceID,
		ScheduleType: string(g.ScheduleType),
		ValidFrom:    g.ValidFrom,
		ValidUntil:   g.ValidUntil,
		TimeZone:     g.TimeZone,
		DaysOfWeek:   days,
		TimeRanges:   ranges,
		MaxUses:      g.MaxUses,
		CurrentUses:  g.CurrentUses,
		IsActive:     g.IsActive,
		GrantedBy:    g.GrantedBy,
		Reason:       g.Reason,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}, nil
}

func grantFromModel(m *grantModel) (*grant.Grant, error) {
	gid, _ := id.ParseGrantID(m.ID)                //nolint:errcheck // stored IDs are always valid
	pid, _ := id.ParsePermissionID(m.PermissionID) //nolint:errcheck // stored IDs are always valid
	var days []time.Weekday
	if err := unmarshalText(m.DaysOfWeek, &days); err != nil {
		return nil, fmt.Errorf("unmarshal grant days: %w", err)
	}
	var ranges []window.TimeRange
	if err := unmarshalText(m.TimeRanges, &ranges); err != nil {
		return nil, fmt.Errorf("unmarshal grant time ranges: %w", err)
	}
	g := &grant.Grant{
		ID:           gid,
		UserID:       m.UserID,
		PermissionID: pid,
		ResourceID:   m.ResourceID,
		ScheduleType: grant.ScheduleType(m.ScheduleType),
		ValidFrom:    m.ValidFrom.UTC(),
		TimeZone:     m.TimeZone,
		DaysOfWeek:   days,
		TimeRanges:   ranges,
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
	return g, nil
}

// ──────────────────────────────────────────────────
// Policy model
// ──────────────────────────────────────────────────

type policyModel struct {
	grove.BaseModel `grove:"table:bastion_policies"`
	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name,notnull"`
	Description     string    `grove:"description"`
	ConditionType   string    `grove:"condition_type,notnull"`
	Condition       string    `grove:"condition_data"` // JSON text
	IsGlobal        bool      `grove:"is_global,notnull"`
	Targets         string    `grove:"targets"` // JSON text
	RiskLevel       string    `grove:"risk_level"`
	IsActive        bool      `grove:"is_active,notnull"`
	Metadata        string    `grove:"metadata"` // JSON text
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func policyToModel(p *policy.Policy) (*policyModel, error) {
	condition, err := marshalText(p.Condition)
	if err != nil {
		return nil, fmt.Errorf("marshal policy condition: %w", err)
	}
	targets, err := marshalText(p.Targets)
	if err != nil {
		return nil, fmt.Errorf("marshal policy targets: %w", err)
	}
	metadata, err := marshalText(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal policy metadata: %w", err)
	}
	return &policyModel{
		ID:            p.ID.String(),
		Name:          p.Name,
		Description:   p.Description,
		ConditionType: string(p.ConditionType),
		Condition:     condition,
		IsGlobal:      p.IsGlobal,
		Targets:       targets,
		RiskLevel:     string(p.RiskLevel),
		IsActive:      p.IsActive,
		Metadata:      metadata,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}, nil
}

func policyFromModel(m *policyModel) (*policy.Policy, error) {
	pid, _ := id.ParsePolicyID(m.ID) //nolint:errcheck // stored IDs are always valid
	var condition policy.ConditionData
	if err := unmarshalText(m.Condition, &condition); err != nil {
		return nil, fmt.Errorf("unmarshal policy condition: %w", err)
	}
	var targets []policy.Target
	if err := unmarshalText(m.Targets, &targets); err != nil {
		return nil, fmt.Errorf("unmarshal policy targets: %w", err)
	}
	var metadata map[string]any
	if err := unmarshalText(m.Metadata, &metadata); err != nil {
		return nil, fmt.Errorf("unmarshal policy metadata: %w", err)
	}
	return &policy.Policy{
		ID:            pid,
		Name:          m.Name,
		Description:   m.Description,
		ConditionType: policy.ConditionType(m.ConditionType),
		Condition:     condition,
		IsGlobal:      m.IsGlobal,
		Targets:       targets,
		RiskLevel:     permission.RiskLevel(m.RiskLevel),
		IsActive:      m.IsActive,
		Metadata:      metadata,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// JSON text helpers
// ──────────────────────────────────────────────────

func marshalText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalText(s string, dest any) error {
	if s == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), dest)
}
