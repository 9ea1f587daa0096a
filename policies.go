package bastion

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/policy"
)

// PolicySpec describes a conditional policy to attach. Condition must hold
// the payload variant matching ConditionType.
type PolicySpec struct {
	Name          string               `json:"name"`
	Description   string               `json:"description,omitempty"`
	ConditionType policy.ConditionType `json:"condition_type"`
	Condition     policy.ConditionData `json:"condition_data"`
	IsGlobal      bool                 `json:"is_global,omitempty"`
	RiskLevel     permission.RiskLevel `json:"risk_level,omitempty"`
	Metadata      map[string]any       `json:"metadata,omitempty"`
}

// AttachPolicy validates spec and stores it bound to targets, or to every
// permission when spec.IsGlobal is set. Malformed payloads, unknown
// condition types and targets naming unknown permissions fail with
// ErrValidation; duplicate names fail with ErrConflict.
func (e *Engine) AttachPolicy(ctx context.Context, spec *PolicySpec, targets []policy.Target) (id.PolicyID, error) {
	if spec == nil {
		return id.Nil, fmt.Errorf("%w: nil policy spec", ErrValidation)
	}
	for i, t := range targets {
		if t.PermissionID == nil {
			continue
		}
		if _, err := e.store.GetPermission(ctx, *t.PermissionID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return id.Nil, fmt.Errorf("%w: target %d: unknown permission %s", ErrValidation, i, t.PermissionID)
			}
			return id.Nil, fmt.Errorf("bastion: attach policy: %w", err)
		}
	}

	now := e.clock.Now()
	p := &policy.Policy{
		ID:            id.NewPolicyID(),
		Name:          spec.Name,
		Description:   spec.Description,
		ConditionType: spec.ConditionType,
		Condition:     spec.Condition,
		IsGlobal:      spec.IsGlobal,
		Targets:       targets,
		RiskLevel:     spec.RiskLevel,
		IsActive:      true,
		Metadata:      spec.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := p.Validate(); err != nil {
		return id.Nil, err
	}
	if err := e.store.CreatePolicy(ctx, p); err != nil {
		return id.Nil, fmt.Errorf("bastion: attach policy: %w", err)
	}

	e.invalidateAll(ctx)
	if e.plugins != nil {
		e.plugins.EmitPolicyAttached(ctx, p)
	}
	return p.ID, nil
}

// DeactivatePolicy stops a policy from gating decisions.
func (e *Engine) DeactivatePolicy(ctx context.Context, policyID id.PolicyID) error {
	p, err := e.store.GetPolicy(ctx, policyID)
	if err != nil {
		return fmt.Errorf("bastion: deactivate policy: %w", err)
	}
	if !p.IsActive {
		return nil
	}
	p.IsActive = false
	p.UpdatedAt = e.clock.Now()
	if err := e.store.UpdatePolicy(ctx, p); err != nil {
		return fmt.Errorf("bastion: deactivate policy: %w", err)
	}

	e.invalidateAll(ctx)
	if e.plugins != nil {
		e.plugins.EmitPolicyDeactivated(ctx, p)
	}
	return nil
}

// GetPolicy returns a policy by ID.
func (e *Engine) GetPolicy(ctx context.Context, policyID id.PolicyID) (*policy.Policy, error) {
	return e.store.GetPolicy(ctx, policyID)
}

// ListPolicies lists policies.
func (e *Engine) ListPolicies(ctx context.Context, filter *policy.ListFilter) ([]*policy.Policy, error) {
	return e.store.ListPolicies(ctx, filter)
}
