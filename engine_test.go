package bastion_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/cache"
	"github.com/xraph/bastion/clock"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/policy"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/store"
	"github.com/xraph/bastion/store/memory"
	"github.com/xraph/bastion/window"
)

// monday10 is Monday 2 March 2026, 10:00 UTC.
var monday10 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fixture struct {
	eng    *bastion.Engine
	store  *memory.Store
	clock  *clock.FakeClock
	viewer *role.Role
}

// newFixture seeds the catalog with document.read and document.write, a
// "viewer" role bound to document.read, and assigns viewer to U1.
func newFixture(t *testing.T, opts ...bastion.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	clk := clock.Fake(monday10)

	all := append([]bastion.Option{
		bastion.WithStore(s),
		bastion.WithClock(clk),
	}, opts...)
	eng, err := bastion.NewEngine(all...)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"document.read", "document.write"} {
		if err := eng.RegisterPermission(ctx, &permission.Permission{Name: name, ResourceType: "document"}); err != nil {
			t.Fatal(err)
		}
	}
	viewer := &role.Role{Name: "viewer"}
	if err := eng.CreateRole(ctx, viewer); err != nil {
		t.Fatal(err)
	}
	read := mustPermission(t, eng, "document.read")
	if err := eng.BindPermission(ctx, viewer.ID, read.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.AssignRole(ctx, "U1", viewer.ID); err != nil {
		t.Fatal(err)
	}
	return &fixture{eng: eng, store: s, clock: clk, viewer: viewer}
}

func mustPermission(t *testing.T, eng *bastion.Engine, name string) *permission.Permission {
	t.Helper()
	p, err := eng.GetPermission(context.Background(), name)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func decide(t *testing.T, eng *bastion.Engine, user, perm string, rc *bastion.RequestContext) *bastion.Decision {
	t.Helper()
	d, err := eng.Decide(context.Background(), &bastion.DecisionRequest{
		UserID:     user,
		Permission: perm,
		Resource:   bastion.ResourceRef{Type: "document", ID: "doc_1"},
		Context:    rc,
	})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func intPtr(n int) *int { return &n }

func TestNewEngine_RequiresStore(t *testing.T) {
	if _, err := bastion.NewEngine(); err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestDecide_RoleAllows(t *testing.T) {
	f := newFixture(t)

	d := decide(t, f.eng, "U1", "document.read", nil)
	if !d.Allowed {
		t.Fatalf("expected allow, got %v", d.DenialReasons)
	}
	if len(d.MatchedGrantIDs) != 0 {
		t.Fatalf("role path must not match grants, got %v", d.MatchedGrantIDs)
	}
	if !d.EvaluatedAt.Equal(monday10) {
		t.Fatalf("expected evaluation at fake clock time, got %v", d.EvaluatedAt)
	}

	d = decide(t, f.eng, "U1", "document.write", nil)
	if d.Allowed || !slices.Equal(d.DenialReasons, []string{bastion.ReasonNoGrant}) {
		t.Fatalf("expected NoGrant, got %+v", d)
	}
}

func TestDecide_UnknownUserAndPermission(t *testing.T) {
	f := newFixture(t)

	if d := decide(t, f.eng, "nobody", "document.read", nil); d.Allowed {
		t.Fatal("user without roles or grants must be denied")
	}
	d := decide(t, f.eng, "U1", "billing.refund", nil)
	if d.Allowed || d.DenialReasons[0] != bastion.ReasonNoGrant {
		t.Fatalf("unknown permission must deny with NoGrant, got %+v", d)
	}
}

func TestDecide_ResourceTypeMismatch(t *testing.T) {
	f := newFixture(t)

	d, err := f.eng.Decide(context.Background(), &bastion.DecisionRequest{
		UserID:     "U1",
		Permission: "document.read",
		Resource:   bastion.ResourceRef{Type: "invoice", ID: "inv_1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("permission must not apply to another resource type")
	}
}

func TestDecide_ValidatesRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.eng.Decide(ctx, &bastion.DecisionRequest{Permission: "document.read"}); !errors.Is(err, bastion.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing user, got %v", err)
	}
	_, err := f.eng.Decide(ctx, &bastion.DecisionRequest{
		UserID:     "U1",
		Permission: "document.read",
		Context:    &bastion.RequestContext{RiskScore: 101},
	})
	if !errors.Is(err, bastion.ErrValidation) {
		t.Fatalf("expected ErrValidation for risk score, got %v", err)
	}
}

func TestGrantThenDecide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	grantID, err := f.eng.Grant(ctx, &bastion.GrantSpec{
		UserID:       "U2",
		Permission:   "document.write",
		ScheduleType: grant.ScheduleFixed,
		ValidFrom:    monday10.Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	d := decide(t, f.eng, "U2", "document.write", nil)
	if !d.Allowed {
		t.Fatalf("expected allow, got %v", d.DenialReasons)
	}
	if !slices.Equal(d.MatchedGrantIDs, []string{grantID.String()}) {
		t.Fatalf("expected matched grant %s, got %v", grantID, d.MatchedGrantIDs)
	}

	if err := f.eng.Revoke(ctx, grantID); err != nil {
		t.Fatal(err)
	}
	if d := decide(t, f.eng, "U2", "document.write", nil); d.Allowed {
		t.Fatal("revoked grant must not authorize")
	}
}

func TestGrant_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]*bastion.GrantSpec{
		"unknown permission": {UserID: "U2", Permission: "document.delete", ScheduleType: grant.ScheduleFixed, ValidFrom: monday10},
		"zero quota":         {UserID: "U2", Permission: "document.write", ScheduleType: grant.ScheduleFixed, ValidFrom: monday10, MaxUses: intPtr(0)},
		"recurring no days": {UserID: "U2", Permission: "document.write", ScheduleType: grant.ScheduleRecurring,
			TimeRanges: []window.TimeRange{{Start: "09:00", End: "17:00"}}},
		"bad range": {UserID: "U2", Permission: "document.write", ScheduleType: grant.ScheduleRecurring,
			DaysOfWeek: []time.Weekday{time.Monday}, TimeRanges: []window.TimeRange{{Start: "25:00", End: "26:00"}}},
	}
	for name, spec := range cases {
		if _, err := f.eng.Grant(ctx, spec); !errors.Is(err, bastion.ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestDecide_QuotaExhaustion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tomorrow := monday10.Add(24 * time.Hour)

	grantID, err := f.eng.Grant(ctx, &bastion.GrantSpec{
		UserID:       "U2",
		Permission:   "document.write",
		ScheduleType: grant.ScheduleFixed,
		ValidFrom:    monday10.Add(-time.Hour),
		ValidUntil:   &tomorrow,
		MaxUses:      intPtr(2),
	})
	if err != nil {
		t.Fatal(err)
	}

	for i := range 2 {
		if d := decide(t, f.eng, "U2", "document.write", nil); !d.Allowed {
			t.Fatalf("use %d: expected allow, got %v", i+1, d.DenialReasons)
		}
	}
	d := decide(t, f.eng, "U2", "document.write", nil)
	if d.Allowed || !slices.Equal(d.DenialReasons, []string{bastion.ReasonQuotaExceeded}) {
		t.Fatalf("expected QuotaExceeded, got %+v", d)
	}

	g, err := f.eng.GetGrant(ctx, grantID)
	if err != nil {
		t.Fatal(err)
	}
	if g.CurrentUses != 2 {
		t.Fatalf("expected 2 uses recorded, got %d", g.CurrentUses)
	}
}

func TestDecide_RecurringWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.eng.Grant(ctx, &bastion.GrantSpec{
		UserID:       "U3",
		Permission:   "document.write",
		ScheduleType: grant.ScheduleRecurring,
		DaysOfWeek:   []time.Weekday{time.Monday},
		TimeRanges:   []window.TimeRange{{Start: "09:00", End: "17:00"}},
	}); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		at      time.Time
		allowed bool
	}{
		{time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 3, 2, 16, 59, 0, 0, time.UTC), true},
		{time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC), false},
		{time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), false},
	}
	for _, s := range steps {
		f.clock.Set(s.at)
		d := decide(t, f.eng, "U3", "document.write", nil)
		if d.Allowed != s.allowed {
			t.Fatalf("at %v: expected allowed=%v, got %+v", s.at, s.allowed, d)
		}
		if !s.allowed && d.DenialReasons[0] != bastion.ReasonNoActiveGrant {
			t.Fatalf("at %v: expected NoActiveGrant, got %v", s.at, d.DenialReasons)
		}
	}
}

func TestDecide_RiskScorePolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	polID, err := f.eng.AttachPolicy(ctx, &bastion.PolicySpec{
		Name:          "risk_score",
		ConditionType: policy.ConditionRiskScore,
		Condition:     policy.ConditionData{RiskScore: &policy.RiskScoreCondition{MaxRiskScore: 30}},
		IsGlobal:      true,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	d := decide(t, f.eng, "U1", "document.read", &bastion.RequestContext{RiskScore: 50})
	if d.Allowed {
		t.Fatal("high risk request must be denied regardless of roles")
	}
	if !slices.Equal(d.DenialReasons, []string{bastion.ConditionFailedReason("risk_score")}) {
		t.Fatalf("unexpected reasons %v", d.DenialReasons)
	}

	d = decide(t, f.eng, "U1", "document.read", &bastion.RequestContext{RiskScore: 30})
	if !d.Allowed {
		t.Fatalf("risk at threshold must pass, got %v", d.DenialReasons)
	}
	if !slices.Equal(d.MatchedPolicyIDs, []string{polID.String()}) {
		t.Fatalf("expected matched policy, got %v", d.MatchedPolicyIDs)
	}

	if err := f.eng.DeactivatePolicy(ctx, polID); err != nil {
		t.Fatal(err)
	}
	if d := decide(t, f.eng, "U1", "document.read", &bastion.RequestContext{RiskScore: 50}); !d.Allowed {
		t.Fatal("deactivated policy must not gate")
	}
}

func TestDecide_PoliciesAreConjunctive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	read := mustPermission(t, f.eng, "document.read")

	if _, err := f.eng.AttachPolicy(ctx, &bastion.PolicySpec{
		Name:          "office",
		ConditionType: policy.ConditionLocation,
		Condition:     policy.ConditionData{Location: &policy.LocationCondition{AllowedLocations: []string{"US", "CA"}}},
	}, []policy.Target{{PermissionID: &read.ID}}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.eng.AttachPolicy(ctx, &bastion.PolicySpec{
		Name:          "mfa",
		ConditionType: policy.ConditionMFARequired,
		Condition:     policy.ConditionData{MFA: &policy.MFACondition{MaxAgeSeconds: 300}},
	}, []policy.Target{{ResourceType: "document"}}); err != nil {
		t.Fatal(err)
	}

	mfaAt := monday10.Add(-time.Minute)
	d := decide(t, f.eng, "U1", "document.read", &bastion.RequestContext{Location: "us", MFAVerified: true, MFATimestamp: &mfaAt})
	if !d.Allowed || len(d.MatchedPolicyIDs) != 2 {
		t.Fatalf("expected allow with both policies matched, got %+v", d)
	}

	d = decide(t, f.eng, "U1", "document.read", &bastion.RequestContext{Location: "FR"})
	if d.Allowed {
		t.Fatal("expected deny")
	}
	if len(d.DenialReasons) != 2 {
		t.Fatalf("expected both failures reported, got %v", d.DenialReasons)
	}
}

func TestDecide_UnknownConditionFailsClosed(t *testing.T) {
	f := newFixture(t)

	// Written straight to the store to bypass write-time validation.
	if err := f.store.CreatePolicy(context.Background(), &policy.Policy{
		ID:            id.NewPolicyID(),
		Name:          "geo",
		ConditionType: policy.ConditionType("geo_fence"),
		IsGlobal:      true,
		IsActive:      true,
	}); err != nil {
		t.Fatal(err)
	}

	d := decide(t, f.eng, "U1", "document.read", nil)
	if d.Allowed {
		t.Fatal("unevaluable policy must deny")
	}
	if !slices.Equal(d.DenialReasons, []string{bastion.ConfigurationErrorReason("geo")}) {
		t.Fatalf("unexpected reasons %v", d.DenialReasons)
	}
}

func TestAttachPolicy_RejectsMalformed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.eng.AttachPolicy(ctx, &bastion.PolicySpec{
		Name:          "mismatch",
		ConditionType: policy.ConditionRiskScore,
		Condition:     policy.ConditionData{Location: &policy.LocationCondition{AllowedLocations: []string{"US"}}},
		IsGlobal:      true,
	}, nil)
	if !errors.Is(err, bastion.ErrValidation) {
		t.Fatalf("expected ErrValidation for mismatched payload, got %v", err)
	}

	_, err = f.eng.AttachPolicy(ctx, &bastion.PolicySpec{
		Name:          "untargeted",
		ConditionType: policy.ConditionRiskScore,
		Condition:     policy.ConditionData{RiskScore: &policy.RiskScoreCondition{MaxRiskScore: 10}},
	}, nil)
	if !errors.Is(err, bastion.ErrValidation) {
		t.Fatalf("expected ErrValidation for untargeted policy, got %v", err)
	}
}

func TestRoleGraph_Inheritance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	editor := &role.Role{Name: "editor", ParentIDs: []id.RoleID{f.viewer.ID}}
	if err := f.eng.CreateRole(ctx, editor); err != nil {
		t.Fatal(err)
	}
	write := mustPermission(t, f.eng, "document.write")
	if err := f.eng.BindPermission(ctx, editor.ID, write.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.eng.AssignRole(ctx, "U4", editor.ID); err != nil {
		t.Fatal(err)
	}

	perms, err := f.eng.EffectivePermissions(ctx, "U4")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(perms, []string{"document.read", "document.write"}) {
		t.Fatalf("expected inherited read plus write, got %v", perms)
	}

	if err := f.eng.DeactivateRole(ctx, f.viewer.ID); err != nil {
		t.Fatal(err)
	}
	perms, err = f.eng.EffectivePermissions(ctx, "U4")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(perms, []string{"document.write"}) {
		t.Fatalf("deactivated ancestor must stop granting, got %v", perms)
	}
}

func TestRoleGraph_CycleRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := &role.Role{Name: "a"}
	b := &role.Role{Name: "b"}
	c := &role.Role{Name: "c"}
	for _, r := range []*role.Role{a, b, c} {
		if err := f.eng.CreateRole(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	// c inherits b inherits a.
	if err := f.eng.AddParent(ctx, b.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.eng.AddParent(ctx, c.ID, b.ID); err != nil {
		t.Fatal(err)
	}

	version := f.eng.GraphVersion()
	if err := f.eng.AddParent(ctx, a.ID, c.ID); !errors.Is(err, bastion.ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
	if err := f.eng.AddParent(ctx, a.ID, a.ID); !errors.Is(err, bastion.ErrCycle) {
		t.Fatalf("expected ErrCycle for self edge, got %v", err)
	}
	if f.eng.GraphVersion() != version {
		t.Fatal("rejected edge must not bump the graph version")
	}
	got, err := f.eng.GetRole(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.ParentIDs) != 0 {
		t.Fatalf("rejected edge must not be stored, got parents %v", got.ParentIDs)
	}
}

func TestRoleGraph_Monotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	child := &role.Role{Name: "child", ParentIDs: []id.RoleID{f.viewer.ID}}
	if err := f.eng.CreateRole(ctx, child); err != nil {
		t.Fatal(err)
	}
	if _, err := f.eng.AssignRole(ctx, "U5", child.ID); err != nil {
		t.Fatal(err)
	}
	before, err := f.eng.EffectivePermissions(ctx, "U5")
	if err != nil {
		t.Fatal(err)
	}

	write := mustPermission(t, f.eng, "document.write")
	if err := f.eng.BindPermission(ctx, f.viewer.ID, write.ID); err != nil {
		t.Fatal(err)
	}
	after, err := f.eng.EffectivePermissions(ctx, "U5")
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range before {
		if !slices.Contains(after, p) {
			t.Fatalf("binding to an ancestor removed %q", p)
		}
	}
	if !slices.Contains(after, "document.write") {
		t.Fatalf("binding to an ancestor not inherited: %v", after)
	}
}

func TestAssignRole_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.eng.AssignRole(ctx, "U1", f.viewer.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.eng.RevokeRole(ctx, "U1", f.viewer.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.eng.RevokeRole(ctx, "U1", f.viewer.ID); err != nil {
		t.Fatalf("second revoke must be a no-op, got %v", err)
	}
	if d := decide(t, f.eng, "U1", "document.read", nil); d.Allowed {
		t.Fatal("revoked role must not authorize")
	}

	again, err := f.eng.AssignRole(ctx, "U1", f.viewer.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Fatal("reassignment must reactivate the existing record")
	}
}

func TestTryConsume_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	grantID, err := f.eng.Grant(ctx, &bastion.GrantSpec{
		UserID:       "U6",
		Permission:   "document.write",
		ScheduleType: grant.ScheduleFixed,
		ValidFrom:    monday10,
		MaxUses:      intPtr(1),
	})
	if err != nil {
		t.Fatal(err)
	}

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		exceeded  atomic.Int32
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.eng.TryConsume(ctx, grantID)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, bastion.ErrQuotaExceeded):
				exceeded.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != 1 || exceeded.Load() != 99 {
		t.Fatalf("expected 1 success and 99 exceeded, got %d and %d", successes.Load(), exceeded.Load())
	}
	g, err := f.eng.GetGrant(ctx, grantID)
	if err != nil {
		t.Fatal(err)
	}
	if g.CurrentUses != 1 {
		t.Fatalf("expected current uses 1, got %d", g.CurrentUses)
	}
}

func TestDecide_ConcurrentSingleUseGrant(t *testing.T) {
	f := newFixture(t, bastion.WithCache(cache.NewMemory()))
	ctx := context.Background()

	if _, err := f.eng.Grant(ctx, &bastion.GrantSpec{
		UserID:       "U7",
		Permission:   "document.write",
		ScheduleType: grant.ScheduleFixed,
		ValidFrom:    monday10,
		MaxUses:      intPtr(1),
	}); err != nil {
		t.Fatal(err)
	}

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := f.eng.Decide(ctx, &bastion.DecisionRequest{UserID: "U7", Permission: "document.write"})
			if err != nil {
				t.Errorf("decide: %v", err)
				return
			}
			if d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if allowed.Load() != 1 {
		t.Fatalf("expected exactly one allow, got %d", allowed.Load())
	}
}

func TestDecide_CacheInvalidation(t *testing.T) {
	f := newFixture(t, bastion.WithCache(cache.NewMemory()))
	ctx := context.Background()

	if d := decide(t, f.eng, "U8", "document.read", nil); d.Allowed || d.Cached {
		t.Fatalf("expected fresh deny, got %+v", d)
	}
	if d := decide(t, f.eng, "U8", "document.read", nil); d.Allowed || !d.Cached {
		t.Fatalf("expected cached deny, got %+v", d)
	}

	// Role assignment invalidates the user.
	if _, err := f.eng.AssignRole(ctx, "U8", f.viewer.ID); err != nil {
		t.Fatal(err)
	}
	d := decide(t, f.eng, "U8", "document.read", nil)
	if !d.Allowed || d.Cached {
		t.Fatalf("assignment not observed: %+v", d)
	}

	// Policy writes invalidate everyone.
	if _, err := f.eng.AttachPolicy(ctx, &bastion.PolicySpec{
		Name:          "office",
		ConditionType: policy.ConditionLocation,
		Condition:     policy.ConditionData{Location: &policy.LocationCondition{AllowedLocations: []string{"US"}}},
		IsGlobal:      true,
	}, nil); err != nil {
		t.Fatal(err)
	}
	if d := decide(t, f.eng, "U8", "document.read", nil); d.Allowed {
		t.Fatal("policy attach not observed")
	}

	// Grant writes invalidate the grantee.
	if d := decide(t, f.eng, "U8", "document.write", &bastion.RequestContext{Location: "US"}); d.Allowed {
		t.Fatal("expected deny before grant")
	}
	if _, err := f.eng.Grant(ctx, &bastion.GrantSpec{
		UserID:       "U8",
		Permission:   "document.write",
		ScheduleType: grant.ScheduleFixed,
		ValidFrom:    monday10,
	}); err != nil {
		t.Fatal(err)
	}
	if d := decide(t, f.eng, "U8", "document.write", &bastion.RequestContext{Location: "US"}); !d.Allowed {
		t.Fatalf("grant not observed: %v", d.DenialReasons)
	}

	// Role graph writes invalidate everyone.
	if err := f.eng.DeactivateRole(ctx, f.viewer.ID); err != nil {
		t.Fatal(err)
	}
	if d := decide(t, f.eng, "U8", "document.read", &bastion.RequestContext{Location: "US"}); d.Allowed {
		t.Fatal("role deactivation not observed")
	}
}

func TestDecide_ExpiredDeadline(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	d, err := f.eng.Decide(ctx, &bastion.DecisionRequest{UserID: "U1", Permission: "document.read"})
	if !errors.Is(err, bastion.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if d != nil {
		t.Fatal("a timed out decision must not return a decision")
	}
}

// failingStore fails every role lookup for a user.
type failingStore struct {
	store.Store
}

func (failingStore) ListRolesForUser(context.Context, string) ([]id.RoleID, error) {
	return nil, errors.New("connection reset")
}

func TestDecide_StoreFailureFailsClosed(t *testing.T) {
	f := newFixture(t)
	eng, err := bastion.NewEngine(
		bastion.WithStore(failingStore{Store: f.store}),
		bastion.WithClock(f.clock),
	)
	if err != nil {
		t.Fatal(err)
	}

	d, err := eng.Decide(context.Background(), &bastion.DecisionRequest{UserID: "U1", Permission: "document.read"})
	if !errors.Is(err, bastion.ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
	if d != nil {
		t.Fatal("a failed decision must not return a decision")
	}
}

func TestEnforceAndAllowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.eng.Enforce(ctx, &bastion.DecisionRequest{UserID: "U1", Permission: "document.read"}); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
	err := f.eng.Enforce(ctx, &bastion.DecisionRequest{UserID: "U1", Permission: "document.write"})
	if !errors.Is(err, bastion.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}

	ok, err := f.eng.Allowed(ctx, "U1", "document.read", "document", "doc_1")
	if err != nil || !ok {
		t.Fatalf("expected allowed, got %v %v", ok, err)
	}
}

func TestDeactivatePermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.eng.DeactivatePermission(ctx, "document.read"); err != nil {
		t.Fatal(err)
	}
	if d := decide(t, f.eng, "U1", "document.read", nil); d.Allowed {
		t.Fatal("deactivated permission must not be granted")
	}
	if _, err := f.eng.Grant(ctx, &bastion.GrantSpec{
		UserID:       "U1",
		Permission:   "document.read",
		ScheduleType: grant.ScheduleFixed,
		ValidFrom:    monday10,
	}); !errors.Is(err, bastion.ErrValidation) {
		t.Fatalf("grant on deactivated permission must fail validation, got %v", err)
	}
}

func TestRegisterPermission_Conflict(t *testing.T) {
	f := newFixture(t)
	err := f.eng.RegisterPermission(context.Background(), &permission.Permission{Name: "document.read", ResourceType: "document"})
	if !errors.Is(err, bastion.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	err = f.eng.RegisterPermission(context.Background(), &permission.Permission{Name: "Bad Name", ResourceType: "document"})
	if !errors.Is(err, bastion.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// revokingStore revokes each grant right after listing it, as an
// administrator would between candidate selection and consumption.
type revokingStore struct {
	store.Store
}

func (s revokingStore) ListGrantsForUser(ctx context.Context, userID string, permID id.PermissionID) ([]*grant.Grant, error) {
	grants, err := s.Store.ListGrantsForUser(ctx, userID, permID)
	if err != nil {
		return nil, err
	}
	for _, g := range grants {
		if err := s.Store.RevokeGrant(ctx, g.ID); err != nil {
			return nil, err
		}
	}
	return grants, nil
}

func TestDecide_RevokedDuringDecisionDenies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	grantID, err := f.eng.Grant(ctx, &bastion.GrantSpec{
		UserID:       "U9",
		Permission:   "document.write",
		ScheduleType: grant.ScheduleFixed,
		ValidFrom:    monday10.Add(-time.Hour),
		MaxUses:      intPtr(3),
	})
	if err != nil {
		t.Fatal(err)
	}
	eng, err := bastion.NewEngine(
		bastion.WithStore(revokingStore{Store: f.store}),
		bastion.WithClock(f.clock),
	)
	if err != nil {
		t.Fatal(err)
	}

	d, err := eng.Decide(ctx, &bastion.DecisionRequest{UserID: "U9", Permission: "document.write"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("grant revoked before consumption must not authorize")
	}

	g, err := f.eng.GetGrant(ctx, grantID)
	if err != nil {
		t.Fatal(err)
	}
	if g.IsActive || g.CurrentUses != 0 {
		t.Fatalf("expected revoked grant with no uses, got active=%v uses=%d", g.IsActive, g.CurrentUses)
	}
	if _, err := f.eng.TryConsume(ctx, grantID); !errors.Is(err, bastion.ErrGrantInactive) {
		t.Fatalf("expected ErrGrantInactive consuming a revoked grant, got %v", err)
	}
}

func TestTryConsume_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	until := monday10.Add(time.Hour)

	grantID, err := f.eng.Grant(ctx, &bastion.GrantSpec{
		UserID:       "U10",
		Permission:   "document.write",
		ScheduleType: grant.ScheduleFixed,
		ValidFrom:    monday10,
		ValidUntil:   &until,
		MaxUses:      intPtr(3),
	})
	if err != nil {
		t.Fatal(err)
	}
	g, err := f.eng.TryConsume(ctx, grantID)
	if err != nil {
		t.Fatal(err)
	}
	if !g.UpdatedAt.Equal(monday10) {
		t.Fatalf("expected use stamped with engine clock, got %v", g.UpdatedAt)
	}

	f.clock.Set(until.Add(time.Minute))
	if _, err := f.eng.TryConsume(ctx, grantID); !errors.Is(err, bastion.ErrGrantInactive) {
		t.Fatalf("expected ErrGrantInactive after expiry, got %v", err)
	}
	g, err = f.eng.GetGrant(ctx, grantID)
	if err != nil {
		t.Fatal(err)
	}
	if g.CurrentUses != 1 {
		t.Fatalf("expired grant must not count uses, got %d", g.CurrentUses)
	}
}

// slowRoleStore delays role lookups and signals when the first one starts.
type slowRoleStore struct {
	store.Store
	delay   time.Duration
	entered chan struct{}
	once    sync.Once
}

func (s *slowRoleStore) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	s.once.Do(func() { close(s.entered) })
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.Store.GetRole(ctx, roleID)
}

func TestDecide_SharedRoleLookupHonoursEachDeadline(t *testing.T) {
	f := newFixture(t)
	slow := &slowRoleStore{Store: f.store, delay: 200 * time.Millisecond, entered: make(chan struct{})}
	eng, err := bastion.NewEngine(bastion.WithStore(slow), bastion.WithClock(f.clock))
	if err != nil {
		t.Fatal(err)
	}
	req := &bastion.DecisionRequest{UserID: "U1", Permission: "document.read"}

	var (
		wg       sync.WaitGroup
		shortErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, shortErr = eng.Decide(ctx, req)
	}()
	<-slow.entered

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d, err := eng.Decide(ctx, req)
	wg.Wait()

	if !errors.Is(shortErr, bastion.ErrTimeout) {
		t.Fatalf("short deadline: expected ErrTimeout, got %v", shortErr)
	}
	if err != nil {
		t.Fatalf("long deadline must not inherit another caller's timeout: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allow, got %v", d.DenialReasons)
	}
}
