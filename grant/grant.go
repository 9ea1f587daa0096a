// Package grant defines temporal permission grants: time-boxed or recurring
// rights to a permission, optionally limited to a number of uses.
package grant

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/bastion/errdefs"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/window"
)

// ScheduleType selects how a grant's activity window is computed.
type ScheduleType string

const (
	// ScheduleFixed grants are active between ValidFrom and ValidUntil.
	ScheduleFixed ScheduleType = "fixed"

	// ScheduleRecurring grants are active on DaysOfWeek within TimeRanges,
	// evaluated in the grant's TimeZone.
	ScheduleRecurring ScheduleType = "recurring"
)

// Grant is a temporal permission grant for a single user.
type Grant struct {
	ID           id.GrantID         `json:"id" db:"id"`
	UserID       string             `json:"user_id" db:"user_id" validate:"required"`
	PermissionID id.PermissionID    `json:"permission_id" db:"permission_id"`
	ResourceID   string             `json:"resource_id,omitempty" db:"resource_id"`
	ScheduleType ScheduleType       `json:"schedule_type" db:"schedule_type" validate:"required,oneof=fixed recurring"`
	ValidFrom    time.Time          `json:"valid_from" db:"valid_from"`
	ValidUntil   *time.Time         `json:"valid_until,omitempty" db:"valid_until"`
	TimeZone     string             `json:"time_zone,omitempty" db:"time_zone"`
	DaysOfWeek   []time.Weekday     `json:"days_of_week,omitempty" db:"days_of_week"`
	TimeRanges   []window.TimeRange `json:"time_ranges,omitempty" db:"time_ranges"`
	MaxUses      *int               `json:"max_uses,omitempty" db:"max_uses" validate:"omitempty,gte=1"`
	CurrentUses  int                `json:"current_uses" db:"current_uses" validate:"gte=0"`
	IsActive     bool               `json:"is_active" db:"is_active"`
	GrantedBy    string             `json:"granted_by,omitempty" db:"granted_by"`
	Reason       string             `json:"reason,omitempty" db:"reason" validate:"max=1024"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" db:"updated_at"`
}

var validate = validator.New()

// Validate checks struct constraints and the schedule rules for the grant's
// ScheduleType. Every failure wraps errdefs.ErrValidation.
func (g *Grant) Validate() error {
	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrValidation, err)
	}
	if g.PermissionID.IsNil() {
		return fmt.Errorf("%w: grant has no permission", errdefs.ErrValidation)
	}
	if g.ValidUntil != nil && !g.ValidFrom.IsZero() && g.ValidUntil.Before(g.ValidFrom) {
		return fmt.Errorf("%w: valid_until precedes valid_from", errdefs.ErrValidation)
	}
	if _, err := window.Location(g.TimeZone); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrValidation, err)
	}

	switch g.ScheduleType {
	case ScheduleFixed:
		if g.ValidFrom.IsZero() {
			return fmt.Errorf("%w: fixed grant requires valid_from", errdefs.ErrValidation)
		}
	case ScheduleRecurring:
		if len(g.DaysOfWeek) == 0 {
			return fmt.Errorf("%w: recurring grant requires days_of_week", errdefs.ErrValidation)
		}
		if len(g.TimeRanges) == 0 {
			return fmt.Errorf("%w: recurring grant requires time_ranges", errdefs.ErrValidation)
		}
		if err := window.ValidateDays(g.DaysOfWeek); err != nil {
			return fmt.Errorf("%w: %v", errdefs.ErrValidation, err)
		}
		if err := window.ValidateRanges(g.TimeRanges); err != nil {
			return fmt.Errorf("%w: %v", errdefs.ErrValidation, err)
		}
	}
	if g.MaxUses != nil && *g.MaxUses < 1 {
		return fmt.Errorf("%w: max_uses must be at least 1", errdefs.ErrValidation)
	}
	if g.MaxUses != nil && g.CurrentUses > *g.MaxUses {
		return fmt.Errorf("%w: current_uses exceeds max_uses", errdefs.ErrValidation)
	}
	return nil
}

// Limited reports whether the grant carries a usage quota.
func (g *Grant) Limited() bool {
	return g.MaxUses != nil
}

// Exhausted reports whether a limited grant has no uses left.
func (g *Grant) Exhausted() bool {
	return g.MaxUses != nil && g.CurrentUses >= *g.MaxUses
}

// Covers reports whether the grant applies to resourceID. A grant without a
// resource ID covers every resource of its permission's type.
func (g *Grant) Covers(resourceID string) bool {
	return g.ResourceID == "" || g.ResourceID == resourceID
}

// InWindow reports whether now falls inside the grant's schedule, ignoring
// activity and quota.
func (g *Grant) InWindow(now time.Time) bool {
	if !g.ValidFrom.IsZero() && now.Before(g.ValidFrom) {
		return false
	}
	if g.ValidUntil != nil && now.After(*g.ValidUntil) {
		return false
	}

	switch g.ScheduleType {
	case ScheduleFixed:
		return true
	case ScheduleRecurring:
		loc, err := window.Location(g.TimeZone)
		if err != nil {
			return false
		}
		return len(g.DaysOfWeek) > 0 && window.Active(g.DaysOfWeek, g.TimeRanges, now.In(loc))
	}
	return false
}

// CheckConsumable explains why a use of the grant cannot be recorded at
// now: errdefs.ErrGrantInactive for revoked or expired grants and
// errdefs.ErrQuotaExceeded for exhausted ones. The recurring schedule is
// not consulted.
func (g *Grant) CheckConsumable(now time.Time) error {
	if !g.IsActive || (g.ValidUntil != nil && now.After(*g.ValidUntil)) {
		return errdefs.ErrGrantInactive
	}
	if g.Exhausted() {
		return errdefs.ErrQuotaExceeded
	}
	return nil
}

// ActiveAt reports whether the grant authorizes at now: it must be active,
// not exhausted and inside its schedule.
func (g *Grant) ActiveAt(now time.Time) bool {
	return g.IsActive && !g.Exhausted() && g.InWindow(now)
}

// ListFilter contains filters for listing grants.
type ListFilter struct {
	UserID       string           `json:"user_id,omitempty"`
	PermissionID *id.PermissionID `json:"permission_id,omitempty"`
	IsActive     *bool            `json:"is_active,omitempty"`
	Limit        int              `json:"limit,omitempty"`
	Offset       int              `json:"offset,omitempty"`
}
