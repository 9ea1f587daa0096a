package bastion

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/resourcetype"
)

// RegisterPermission adds a permission to the catalog. Names are unique; a
// duplicate fails with ErrConflict. The permission's resource type must be
// registered when Config.StrictResourceTypes is set and is registered on
// the fly otherwise.
func (e *Engine) RegisterPermission(ctx context.Context, p *permission.Permission) error {
	now := e.clock.Now()
	if p.ID.IsNil() {
		p.ID = id.NewPermissionID()
	}
	if p.RiskLevel == "" {
		p.RiskLevel = permission.RiskLow
	}
	p.IsActive = true
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := p.Validate(); err != nil {
		return err
	}

	if _, err := e.store.GetPermissionByName(ctx, p.Name); err == nil {
		return fmt.Errorf("permission %q: %w", p.Name, ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("bastion: register permission: %w", err)
	}

	if err := e.ensureResourceType(ctx, p.ResourceType); err != nil {
		return err
	}
	if err := e.store.CreatePermission(ctx, p); err != nil {
		return fmt.Errorf("bastion: register permission: %w", err)
	}

	if e.plugins != nil {
		e.plugins.EmitPermissionRegistered(ctx, p)
	}
	return nil
}

func (e *Engine) ensureResourceType(ctx context.Context, name string) error {
	_, err := e.store.GetResourceTypeByName(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("bastion: resource type %q: %w", name, err)
	}
	if e.config.StrictResourceTypes {
		return fmt.Errorf("%w: resource type %q is not registered", ErrValidation, name)
	}
	err = e.RegisterResourceType(ctx, &resourcetype.ResourceType{Name: name})
	if errors.Is(err, ErrConflict) {
		return nil
	}
	return err
}

// GetPermission returns a permission by name.
func (e *Engine) GetPermission(ctx context.Context, name string) (*permission.Permission, error) {
	return e.store.GetPermissionByName(ctx, name)
}

// ListPermissions lists catalog permissions.
func (e *Engine) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, error) {
	return e.store.ListPermissions(ctx, filter)
}

// UpdatePermission applies edits to a permission. Renaming or retyping a
// permission that any temporal grant references fails with ErrImmutable.
func (e *Engine) UpdatePermission(ctx context.Context, p *permission.Permission) error {
	current, err := e.store.GetPermission(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("bastion: update permission: %w", err)
	}
	if p.RiskLevel == "" {
		p.RiskLevel = current.RiskLevel
	}
	if err := p.Validate(); err != nil {
		return err
	}

	if p.Name != current.Name || p.ResourceType != current.ResourceType {
		if current.IsSystem {
			return fmt.Errorf("permission %q: %w", current.Name, ErrImmutable)
		}
		n, err := e.store.CountGrantsForPermission(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("bastion: update permission: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("permission %q is referenced by %d grants: %w", current.Name, n, ErrImmutable)
		}
		if err := e.ensureResourceType(ctx, p.ResourceType); err != nil {
			return err
		}
	}

	p.IsSystem = current.IsSystem
	p.IsActive = current.IsActive
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = e.clock.Now()
	if err := e.store.UpdatePermission(ctx, p); err != nil {
		return fmt.Errorf("bastion: update permission: %w", err)
	}
	e.invalidateAll(ctx)
	return nil
}

// DeactivatePermission soft-deletes a permission. Grants referencing it
// stay queryable, but Decide treats it as never granted. System
// permissions cannot be deactivated.
func (e *Engine) DeactivatePermission(ctx context.Context, name string) error {
	p, err := e.store.GetPermissionByName(ctx, name)
	if err != nil {
		return fmt.Errorf("bastion: deactivate permission: %w", err)
	}
	if p.IsSystem {
		return fmt.Errorf("permission %q: %w", name, ErrImmutable)
	}
	if !p.IsActive {
		return nil
	}
	p.IsActive = false
	p.UpdatedAt = e.clock.Now()
	if err := e.store.UpdatePermission(ctx, p); err != nil {
		return fmt.Errorf("bastion: deactivate permission: %w", err)
	}

	e.invalidateAll(ctx)
	if e.plugins != nil {
		e.plugins.EmitPermissionDeactivated(ctx, p)
	}
	return nil
}

// RegisterResourceType adds a resource type to the catalog.
func (e *Engine) RegisterResourceType(ctx context.Context, rt *resourcetype.ResourceType) error {
	if rt.Name == "" {
		return fmt.Errorf("%w: resource type name is required", ErrValidation)
	}
	now := e.clock.Now()
	if rt.ID.IsNil() {
		rt.ID = id.NewResourceTypeID()
	}
	rt.CreatedAt = now
	rt.UpdatedAt = now
	if err := e.store.CreateResourceType(ctx, rt); err != nil {
		return fmt.Errorf("bastion: register resource type: %w", err)
	}
	return nil
}

// ListResourceTypes lists catalog resource types.
func (e *Engine) ListResourceTypes(ctx context.Context, filter *resourcetype.ListFilter) ([]*resourcetype.ResourceType, error) {
	return e.store.ListResourceTypes(ctx, filter)
}
