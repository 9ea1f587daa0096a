package api

import (
	"github.com/xraph/bastion"
	"github.com/xraph/bastion/policy"
	"github.com/xraph/bastion/window"
)

// ──────────────────────────────────────────────────
// Decision requests
// ──────────────────────────────────────────────────

// DecideRequest is the request body for an authorization decision.
type DecideRequest struct {
	UserID       string                  `json:"user_id" description:"User identifier"`
	Permission   string                  `json:"permission" description:"Permission name (e.g. document.read)"`
	ResourceType string                  `json:"resource_type,omitempty" description:"Resource type; defaults to the permission's"`
	ResourceID   string                  `json:"resource_id,omitempty" description:"Resource identifier"`
	Context      *bastion.RequestContext `json:"context,omitempty" description:"Request attributes for conditional policies"`
}

// BatchDecideRequest contains multiple decisions.
type BatchDecideRequest struct {
	Requests []DecideRequest `json:"requests" description:"Decision requests"`
}

// ──────────────────────────────────────────────────
// Grant requests
// ──────────────────────────────────────────────────

// CreateGrantRequest is the body for creating a temporal grant. Timestamps
// are RFC 3339.
type CreateGrantRequest struct {
	UserID       string             `json:"user_id" description:"User identifier"`
	Permission   string             `json:"permission" description:"Permission name"`
	ResourceID   string             `json:"resource_id,omitempty" description:"Resource identifier; empty covers all resources"`
	ScheduleType string             `json:"schedule_type" description:"fixed or recurring"`
	ValidFrom    string             `json:"valid_from,omitempty" description:"Start of validity"`
	ValidUntil   string             `json:"valid_until,omitempty" description:"End of validity (exclusive)"`
	TimeZone     string             `json:"time_zone,omitempty" description:"IANA zone for recurring windows"`
	DaysOfWeek   []int              `json:"days_of_week,omitempty" description:"Days for recurring grants (0 = Sunday)"`
	TimeRanges   []window.TimeRange `json:"time_ranges,omitempty" description:"HH:MM ranges for recurring grants"`
	MaxUses      *int               `json:"max_uses,omitempty" description:"Use quota; omit for unlimited"`
	Reason       string             `json:"reason,omitempty" description:"Why the grant was issued"`
}

// GetGrantRequest is the path parameter for a grant.
type GetGrantRequest struct {
	GrantID string `path:"grantId" description:"Grant ID"`
}

// ListGrantsRequest holds query parameters for listing grants.
type ListGrantsRequest struct {
	UserID string `query:"user_id" description:"Filter by user"`
	Active string `query:"active" description:"Filter by active status (true/false)"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Policy requests
// ──────────────────────────────────────────────────

// CreatePolicyRequest is the body for attaching a conditional policy.
type CreatePolicyRequest struct {
	Name          string               `json:"name" description:"Unique policy name"`
	Description   string               `json:"description,omitempty" description:"Human-readable description"`
	ConditionType string               `json:"condition_type" description:"location, time_range, risk_score, mfa_required or custom_attribute"`
	Condition     policy.ConditionData `json:"condition_data" description:"Payload for the condition type"`
	IsGlobal      bool                 `json:"is_global,omitempty" description:"Apply to every permission"`
	Permissions   []string             `json:"permissions,omitempty" description:"Target permission names"`
	ResourceTypes []string             `json:"resource_types,omitempty" description:"Target resource types"`
	RiskLevel     string               `json:"risk_level,omitempty" description:"Risk classification"`
	Metadata      map[string]any       `json:"metadata,omitempty" description:"Custom metadata"`
}

// GetPolicyRequest is the path parameter for a policy.
type GetPolicyRequest struct {
	PolicyID string `path:"policyId" description:"Policy ID"`
}

// ListPoliciesRequest holds query parameters for listing policies.
type ListPoliciesRequest struct {
	ConditionType string `query:"condition_type" description:"Filter by condition type"`
	Active        string `query:"active" description:"Filter by active status (true/false)"`
	Search        string `query:"search" description:"Search by name"`
	Limit         int    `query:"limit" description:"Maximum results"`
	Offset        int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// User requests
// ──────────────────────────────────────────────────

// AssignRoleRequest is the body for assigning a role to a user.
type AssignRoleRequest struct {
	RoleID string `json:"role_id" description:"Role ID to assign"`
}

// UserRoleRequest is the path parameters for a user's role.
type UserRoleRequest struct {
	UserID string `path:"userId" description:"User identifier"`
	RoleID string `path:"roleId" description:"Role ID"`
}

// UserRequest is the path parameter for a user.
type UserRequest struct {
	UserID string `path:"userId" description:"User identifier"`
}

// ──────────────────────────────────────────────────
// Permission requests
// ──────────────────────────────────────────────────

// CreatePermissionRequest is the body for registering a permission.
type CreatePermissionRequest struct {
	Name         string         `json:"name" description:"Dotted permission name (e.g. document.read)"`
	ResourceType string         `json:"resource_type" description:"Resource type the permission applies to"`
	RiskLevel    string         `json:"risk_level,omitempty" description:"low, medium, high or critical"`
	Description  string         `json:"description,omitempty" description:"Human-readable description"`
	IsSystem     bool           `json:"is_system,omitempty" description:"System permission flag"`
	Metadata     map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// ListPermissionsRequest holds query parameters for listing permissions.
type ListPermissionsRequest struct {
	ResourceType string `query:"resource_type" description:"Filter by resource type"`
	Active       string `query:"active" description:"Filter by active status (true/false)"`
	Search       string `query:"search" description:"Search by name"`
	Limit        int    `query:"limit" description:"Maximum results"`
	Offset       int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Resource type requests
// ──────────────────────────────────────────────────

// CreateResourceTypeRequest is the body for registering a resource type.
type CreateResourceTypeRequest struct {
	Name        string         `json:"name" description:"Resource type name"`
	Description string         `json:"description,omitempty" description:"Description"`
	Metadata    map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// ListResourceTypesRequest holds query parameters.
type ListResourceTypesRequest struct {
	Search string `query:"search" description:"Search by name"`
	Limit  int    `query:"limit" description:"Maximum results"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Role requests
// ──────────────────────────────────────────────────

// CreateRoleRequest is the body for creating a role.
type CreateRoleRequest struct {
	Name        string         `json:"name" description:"Unique role name"`
	Description string         `json:"description,omitempty" description:"Human-readable description"`
	ParentIDs   []string       `json:"parent_ids,omitempty" description:"Parent role IDs"`
	IsSystem    bool           `json:"is_system,omitempty" description:"System role flag"`
	Metadata    map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// GetRoleRequest is the path parameter for a role.
type GetRoleRequest struct {
	RoleID string `path:"roleId" description:"Role ID"`
}

// ListRolesRequest holds query parameters for listing roles.
type ListRolesRequest struct {
	Active string `query:"active" description:"Filter by active status (true/false)"`
	Search string `query:"search" description:"Search by name"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// BindPermissionRequest is the body for binding a permission to a role.
// Either field identifies the permission.
type BindPermissionRequest struct {
	PermissionID string `json:"permission_id,omitempty" description:"Permission ID"`
	Permission   string `json:"permission,omitempty" description:"Permission name"`
}

// AddParentRequest is the body for adding an inheritance edge.
type AddParentRequest struct {
	ParentID string `json:"parent_id" description:"Parent role ID"`
}
