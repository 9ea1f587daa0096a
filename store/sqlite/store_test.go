package sqlite

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/xraph/bastion/errdefs"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/policy"
	"github.com/xraph/bastion/window"
)

func TestClassify(t *testing.T) {
	if err := classify(errors.New("UNIQUE constraint failed: bastion_roles.name"), "role"); !errors.Is(err, errdefs.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := classify(sql.ErrNoRows, "role"); !errors.Is(err, errdefs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	other := errors.New("disk I/O error")
	if err := classify(other, "role"); err != other {
		t.Fatalf("expected passthrough, got %v", err)
	}
}

func TestGrantModelJSONColumns(t *testing.T) {
	g := &grant.Grant{
		ID:           id.NewGrantID(),
		UserID:       "u1",
		PermissionID: id.NewPermissionID(),
		ScheduleType: grant.ScheduleRecurring,
		ValidFrom:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DaysOfWeek:   []time.Weekday{time.Monday},
		TimeRanges:   []window.TimeRange{{Start: "22:00", End: "02:00"}},
		IsActive:     true,
	}

	m, err := grantToModel(g)
	if err != nil {
		t.Fatal(err)
	}
	got, err := grantFromModel(m)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.DaysOfWeek) != 1 || got.DaysOfWeek[0] != time.Monday {
		t.Fatalf("days not preserved: %v", got.DaysOfWeek)
	}
	if len(got.TimeRanges) != 1 || got.TimeRanges[0].Start != "22:00" {
		t.Fatalf("ranges not preserved: %v", got.TimeRanges)
	}
	if got.MaxUses != nil {
		t.Fatal("unlimited grant gained a quota")
	}
}

func TestPolicyModelUnknownConditionSurvives(t *testing.T) {
	p := &policy.Policy{
		ID:            id.NewPolicyID(),
		Name:          "future",
		ConditionType: policy.ConditionType("geo_fence"),
		IsGlobal:      true,
		IsActive:      true,
	}
	m, err := policyToModel(p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := policyFromModel(m)
	if err != nil {
		t.Fatal(err)
	}
	if got.ConditionType != "geo_fence" || !got.IsGlobal {
		t.Fatalf("policy not preserved: %+v", got)
	}
}

func TestUnmarshalTextEmpty(t *testing.T) {
	var days []time.Weekday
	if err := unmarshalText("", &days); err != nil || days != nil {
		t.Fatalf("expected nil for empty text, got %v %v", days, err)
	}
	if err := unmarshalText("null", &days); err != nil || days != nil {
		t.Fatalf("expected nil for null, got %v %v", days, err)
	}
}
