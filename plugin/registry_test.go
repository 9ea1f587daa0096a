package plugin

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/role"
)

// testPlugin implements Plugin + RoleCreated + AfterDecide + GrantConsumed.
type testPlugin struct {
	roleCreatedCalled bool
	afterDecideCalled bool
	consumed          int
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnRoleCreated(_ context.Context, _ *role.Role) error {
	t.roleCreatedCalled = true
	return nil
}

func (t *testPlugin) OnAfterDecide(_ context.Context, _, _ any) error {
	t.afterDecideCalled = true
	return nil
}

func (t *testPlugin) OnGrantConsumed(_ context.Context, _ *grant.Grant) error {
	t.consumed++
	return errors.New("metrics backend unavailable")
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	reg.EmitRoleCreated(ctx, &role.Role{ID: id.NewRoleID(), Name: "admin"})
	if !tp.roleCreatedCalled {
		t.Fatal("OnRoleCreated was not called")
	}

	reg.EmitAfterDecide(ctx, nil, nil)
	if !tp.afterDecideCalled {
		t.Fatal("OnAfterDecide was not called")
	}

	// Hook errors are logged and swallowed.
	reg.EmitGrantConsumed(ctx, &grant.Grant{ID: id.NewGrantID()})
	reg.EmitGrantConsumed(ctx, &grant.Grant{ID: id.NewGrantID()})
	if tp.consumed != 2 {
		t.Fatalf("expected 2 consume notifications, got %d", tp.consumed)
	}

	// Should not panic on hooks with no listeners.
	reg.EmitBeforeDecide(ctx, nil)
	reg.EmitGrantRevoked(ctx, id.NewGrantID())
	reg.EmitRoleGraphChanged(ctx, id.NewRoleID(), 3)
	reg.EmitShutdown(ctx)
}

func TestNilLoggerDefaults(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(&testPlugin{})
	reg.EmitGrantConsumed(context.Background(), &grant.Grant{})
}
