package bastion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/window"
)

// GrantSpec describes a temporal grant to create. Permission is the
// permission name; an empty ResourceID covers every resource of the
// permission's type.
type GrantSpec struct {
	UserID       string             `json:"user_id"`
	Permission   string             `json:"permission"`
	ResourceID   string             `json:"resource_id,omitempty"`
	ScheduleType grant.ScheduleType `json:"schedule_type"`
	ValidFrom    time.Time          `json:"valid_from,omitzero"`
	ValidUntil   *time.Time         `json:"valid_until,omitempty"`
	TimeZone     string             `json:"time_zone,omitempty"`
	DaysOfWeek   []time.Weekday     `json:"days_of_week,omitempty"`
	TimeRanges   []window.TimeRange `json:"time_ranges,omitempty"`
	MaxUses      *int               `json:"max_uses,omitempty"`
	GrantedBy    string             `json:"granted_by,omitempty"`
	Reason       string             `json:"reason,omitempty"`
}

// Grant validates spec and stores a new temporal grant. Invalid schedules
// and unknown or deactivated permissions fail with ErrValidation.
func (e *Engine) Grant(ctx context.Context, spec *GrantSpec) (id.GrantID, error) {
	if spec == nil {
		return id.Nil, fmt.Errorf("%w: nil grant spec", ErrValidation)
	}
	perm, err := e.store.GetPermissionByName(ctx, spec.Permission)
	if errors.Is(err, ErrNotFound) {
		return id.Nil, fmt.Errorf("%w: unknown permission %q", ErrValidation, spec.Permission)
	}
	if err != nil {
		return id.Nil, fmt.Errorf("bastion: grant: %w", err)
	}
	if !perm.IsActive {
		return id.Nil, fmt.Errorf("%w: permission %q is deactivated", ErrValidation, spec.Permission)
	}

	now := e.clock.Now()
	g := &grant.Grant{
		ID:           id.NewGrantID(),
		UserID:       spec.UserID,
		PermissionID: perm.ID,
		ResourceID:   spec.ResourceID,
		ScheduleType: spec.ScheduleType,
		ValidFrom:    spec.ValidFrom.UTC(),
		ValidUntil:   spec.ValidUntil,
		TimeZone:     spec.TimeZone,
		DaysOfWeek:   spec.DaysOfWeek,
		TimeRanges:   spec.TimeRanges,
		MaxUses:      spec.MaxUses,
		IsActive:     true,
		GrantedBy:    spec.GrantedBy,
		Reason:       spec.Reason,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if g.ValidUntil != nil {
		until := g.ValidUntil.UTC()
		g.ValidUntil = &until
	}
	if g.GrantedBy == "" {
		g.GrantedBy = actorFromContext(ctx)
	}
	if err := g.Validate(); err != nil {
		return id.Nil, err
	}

	if err := e.store.CreateGrant(ctx, g); err != nil {
		return id.Nil, fmt.Errorf("bastion: grant: %w", err)
	}

	e.invalidateUser(ctx, g.UserID)
	if e.plugins != nil {
		e.plugins.EmitGrantCreated(ctx, g)
	}
	return g.ID, nil
}

// Revoke deactivates a grant. The record is kept for audit.
func (e *Engine) Revoke(ctx context.Context, grantID id.GrantID) error {
	g, err := e.store.GetGrant(ctx, grantID)
	if err != nil {
		return fmt.Errorf("bastion: revoke grant: %w", err)
	}
	if err := e.store.RevokeGrant(ctx, grantID); err != nil {
		return fmt.Errorf("bastion: revoke grant: %w", err)
	}

	e.invalidateUser(ctx, g.UserID)
	if e.plugins != nil {
		e.plugins.EmitGrantRevoked(ctx, grantID)
	}
	return nil
}

// TryConsume records one use of a grant. Quota-bearing grants are
// incremented atomically by the store and fail with ErrQuotaExceeded once
// exhausted; unlimited grants are returned unchanged. Revoked grants and
// grants past ValidUntil fail with ErrGrantInactive.
func (e *Engine) TryConsume(ctx context.Context, grantID id.GrantID) (*grant.Grant, error) {
	g, err := e.store.ConsumeGrant(ctx, grantID, e.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("bastion: consume grant: %w", err)
	}
	if g.Limited() {
		e.invalidateUser(ctx, g.UserID)
		if e.plugins != nil {
			e.plugins.EmitGrantConsumed(ctx, g)
		}
	}
	return g, nil
}

// GetGrant returns a grant by ID.
func (e *Engine) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.Grant, error) {
	return e.store.GetGrant(ctx, grantID)
}

// ListGrants lists grants, including inactive and exhausted ones.
func (e *Engine) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	return e.store.ListGrants(ctx, filter)
}

// IsActiveNow reports whether g authorizes at the engine's current time.
func (e *Engine) IsActiveNow(g *grant.Grant) bool {
	return g.ActiveAt(e.clock.Now())
}
