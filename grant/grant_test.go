package grant

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/bastion/errdefs"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/window"
)

func intPtr(v int) *int { return &v }

func recurringMonday() *Grant {
	return &Grant{
		ID:           id.NewGrantID(),
		UserID:       "u1",
		PermissionID: id.NewPermissionID(),
		ScheduleType: ScheduleRecurring,
		TimeZone:     "UTC",
		DaysOfWeek:   []time.Weekday{time.Monday},
		TimeRanges:   []window.TimeRange{{Start: "09:00", End: "17:00"}},
		IsActive:     true,
	}
}

func TestRecurringWindow(t *testing.T) {
	g := recurringMonday()
	// 2026-03-02 is a Monday.
	monNine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	monFive := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	tueTen := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	if !g.ActiveAt(monNine) {
		t.Error("expected active Monday 09:00")
	}
	if g.ActiveAt(monFive) {
		t.Error("expected inactive Monday 17:00")
	}
	if g.ActiveAt(tueTen) {
		t.Error("expected inactive Tuesday 10:00")
	}
}

func TestRecurringUsesGrantTimeZone(t *testing.T) {
	g := recurringMonday()
	g.TimeZone = "America/New_York"
	// 13:30 UTC on Monday 2026-03-02 is 08:30 in New York (EST).
	if g.ActiveAt(time.Date(2026, 3, 2, 13, 30, 0, 0, time.UTC)) {
		t.Error("08:30 local should be outside 09:00-17:00")
	}
	// 14:30 UTC is 09:30 local.
	if !g.ActiveAt(time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)) {
		t.Error("09:30 local should be inside 09:00-17:00")
	}
}

func TestRecurringOvernightShift(t *testing.T) {
	g := recurringMonday()
	g.TimeRanges = []window.TimeRange{{Start: "22:00", End: "02:00"}}

	if !g.ActiveAt(time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)) {
		t.Error("expected active Monday 23:00")
	}
	if !g.ActiveAt(time.Date(2026, 3, 3, 1, 0, 0, 0, time.UTC)) {
		t.Error("expected Monday's shift to continue Tuesday 01:00")
	}
	if g.ActiveAt(time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)) {
		t.Error("Monday 01:00 belongs to Sunday's shift")
	}
}

func TestCheckConsumable(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)

	g := recurringMonday()
	g.MaxUses = intPtr(1)
	if err := g.CheckConsumable(now); err != nil {
		t.Fatalf("expected consumable, got %v", err)
	}
	g.ValidUntil = &past
	if err := g.CheckConsumable(now); !errors.Is(err, errdefs.ErrGrantInactive) {
		t.Fatalf("expected ErrGrantInactive after ValidUntil, got %v", err)
	}
	g.ValidUntil = nil
	g.IsActive = false
	if err := g.CheckConsumable(now); !errors.Is(err, errdefs.ErrGrantInactive) {
		t.Fatalf("expected ErrGrantInactive when revoked, got %v", err)
	}
	g.IsActive = true
	g.CurrentUses = 1
	if err := g.CheckConsumable(now); !errors.Is(err, errdefs.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestFixedWindow(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := from.Add(24 * time.Hour)
	g := &Grant{
		ScheduleType: ScheduleFixed,
		ValidFrom:    from,
		ValidUntil:   &until,
		IsActive:     true,
	}
	if g.ActiveAt(from.Add(-time.Second)) {
		t.Error("expected inactive before valid_from")
	}
	if !g.ActiveAt(from) || !g.ActiveAt(until) {
		t.Error("expected active at both bounds")
	}
	if g.ActiveAt(until.Add(time.Second)) {
		t.Error("expected inactive after valid_until")
	}

	g.IsActive = false
	if g.ActiveAt(from.Add(time.Hour)) {
		t.Error("revoked grant should never be active")
	}
}

func TestExhaustedIsInert(t *testing.T) {
	g := &Grant{
		ScheduleType: ScheduleFixed,
		ValidFrom:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		MaxUses:      intPtr(2),
		CurrentUses:  2,
		IsActive:     true,
	}
	if !g.Exhausted() {
		t.Fatal("expected exhausted")
	}
	if g.ActiveAt(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("exhausted grant should not be active")
	}
	if !g.InWindow(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("exhausted grant is still inside its window")
	}
}

func TestValidate(t *testing.T) {
	if err := recurringMonday().Validate(); err != nil {
		t.Fatalf("valid grant rejected: %v", err)
	}

	cases := map[string]func(g *Grant){
		"no days":          func(g *Grant) { g.DaysOfWeek = nil },
		"no ranges":        func(g *Grant) { g.TimeRanges = nil },
		"bad range":        func(g *Grant) { g.TimeRanges = []window.TimeRange{{Start: "9am", End: "17:00"}} },
		"bad zone":         func(g *Grant) { g.TimeZone = "Mars/Olympus" },
		"zero max uses":    func(g *Grant) { g.MaxUses = intPtr(0) },
		"no user":          func(g *Grant) { g.UserID = "" },
		"unknown schedule": func(g *Grant) { g.ScheduleType = "sometimes" },
		"no permission":    func(g *Grant) { g.PermissionID = id.Nil },
		"inverted validity": func(g *Grant) {
			g.ValidFrom = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
			until := g.ValidFrom.Add(-time.Hour)
			g.ValidUntil = &until
		},
		"fixed without start": func(g *Grant) {
			g.ScheduleType = ScheduleFixed
		},
	}
	for name, mutate := range cases {
		g := recurringMonday()
		mutate(g)
		if err := g.Validate(); !errors.Is(err, errdefs.ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestCovers(t *testing.T) {
	g := &Grant{}
	if !g.Covers("doc-1") {
		t.Error("grant without resource should cover every resource")
	}
	g.ResourceID = "doc-1"
	if !g.Covers("doc-1") || g.Covers("doc-2") {
		t.Error("resource-scoped grant should cover only its resource")
	}
}
