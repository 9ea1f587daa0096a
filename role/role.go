// Package role defines the Role entity and its store interface. Roles form a
// multi-parent DAG; a role inherits every permission bound to its active
// ancestors.
package role

import (
	"fmt"
	"slices"
	"time"

	"github.com/xraph/bastion/errdefs"
	"github.com/xraph/bastion/id"
)

// Role is a named bundle of permissions that can be assigned to users.
type Role struct {
	ID          id.RoleID      `json:"id" db:"id"`
	Name        string         `json:"name" db:"name"`
	Description string         `json:"description,omitempty" db:"description"`
	ParentIDs   []id.RoleID    `json:"parent_ids,omitempty" db:"-"`
	IsSystem    bool           `json:"is_system" db:"is_system"`
	IsActive    bool           `json:"is_active" db:"is_active"`
	Metadata    map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// HasParent reports whether parentID is a direct parent of r.
func (r *Role) HasParent(parentID id.RoleID) bool {
	return slices.ContainsFunc(r.ParentIDs, func(p id.RoleID) bool {
		return p.String() == parentID.String()
	})
}

// Validate checks the fields that must be set before a role is stored.
func (r *Role) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: role name is required", errdefs.ErrValidation)
	}
	for _, p := range r.ParentIDs {
		if p.String() == r.ID.String() {
			return fmt.Errorf("%w: role %q cannot be its own parent", errdefs.ErrCycle, r.Name)
		}
	}
	return nil
}

// ListFilter contains filters for listing roles.
type ListFilter struct {
	IsActive *bool  `json:"is_active,omitempty"`
	IsSystem *bool  `json:"is_system,omitempty"`
	Search   string `json:"search,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
