// Package permission defines the Permission entity and its store interface.
package permission

import (
	"fmt"
	"regexp"
	"time"

	"github.com/xraph/bastion/errdefs"
	"github.com/xraph/bastion/id"
)

// RiskLevel classifies how sensitive a permission or policy is.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Valid reports whether r is one of the known risk levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// namePattern matches dotted lower-case names such as "document.read" or
// "billing.invoice.export".
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// Permission is a named capability over a resource type.
type Permission struct {
	ID           id.PermissionID `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	ResourceType string          `json:"resource_type" db:"resource_type"`
	RiskLevel    RiskLevel       `json:"risk_level" db:"risk_level"`
	Description  string          `json:"description,omitempty" db:"description"`
	IsSystem     bool            `json:"is_system" db:"is_system"`
	IsActive     bool            `json:"is_active" db:"is_active"`
	Metadata     map[string]any  `json:"metadata,omitempty" db:"metadata"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// ValidName reports whether name is a dotted lower-case permission name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Validate checks the invariants a permission must satisfy before it is
// stored. An empty risk level is treated as low by the caller.
func (p *Permission) Validate() error {
	if !ValidName(p.Name) {
		return fmt.Errorf("%w: permission name %q must be dotted lower-case", errdefs.ErrValidation, p.Name)
	}
	if p.ResourceType == "" {
		return fmt.Errorf("%w: permission %q has no resource type", errdefs.ErrValidation, p.Name)
	}
	if !p.RiskLevel.Valid() {
		return fmt.Errorf("%w: unknown risk level %q", errdefs.ErrValidation, p.RiskLevel)
	}
	return nil
}

// ListFilter contains filters for listing permissions.
type ListFilter struct {
	ResourceType string `json:"resource_type,omitempty"`
	IsActive     *bool  `json:"is_active,omitempty"`
	Search       string `json:"search,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}
