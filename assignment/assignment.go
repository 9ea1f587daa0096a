// Package assignment defines the user to role binding.
package assignment

import (
	"time"

	"github.com/xraph/bastion/id"
)

// Assignment binds a role to a user. Revoking an assignment keeps the record
// with IsActive false so that it stays visible for audit.
type Assignment struct {
	ID         id.AssignmentID `json:"id" db:"id"`
	UserID     string          `json:"user_id" db:"user_id"`
	RoleID     id.RoleID       `json:"role_id" db:"role_id"`
	IsActive   bool            `json:"is_active" db:"is_active"`
	GrantedBy  string          `json:"granted_by,omitempty" db:"granted_by"`
	AssignedAt time.Time       `json:"assigned_at" db:"assigned_at"`
	RevokedAt  *time.Time      `json:"revoked_at,omitempty" db:"revoked_at"`
}

// ListFilter contains filters for listing assignments.
type ListFilter struct {
	UserID   string     `json:"user_id,omitempty"`
	RoleID   *id.RoleID `json:"role_id,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`
}
