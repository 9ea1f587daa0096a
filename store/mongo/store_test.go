package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/policy"
)

// The consume guard filters on max_uses != null, so unlimited grants must
// persist the field as an explicit null.
func TestGrantModelStoresNullQuota(t *testing.T) {
	g := &grant.Grant{
		ID:           id.NewGrantID(),
		UserID:       "u1",
		PermissionID: id.NewPermissionID(),
		ScheduleType: grant.ScheduleFixed,
		ValidFrom:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		IsActive:     true,
	}
	raw, err := bson.Marshal(grantToModel(g))
	if err != nil {
		t.Fatal(err)
	}
	v, err := bson.Raw(raw).LookupErr("max_uses")
	if err != nil {
		t.Fatalf("max_uses missing from document: %v", err)
	}
	if v.Type != bson.TypeNull {
		t.Fatalf("expected null max_uses, got %v", v.Type)
	}
}

func TestGrantModelWeekdays(t *testing.T) {
	g := &grant.Grant{
		ID:           id.NewGrantID(),
		PermissionID: id.NewPermissionID(),
		ScheduleType: grant.ScheduleRecurring,
		DaysOfWeek:   []time.Weekday{time.Saturday, time.Sunday},
	}
	got := grantFromModel(grantToModel(g))
	if len(got.DaysOfWeek) != 2 || got.DaysOfWeek[0] != time.Saturday || got.DaysOfWeek[1] != time.Sunday {
		t.Fatalf("days not preserved: %v", got.DaysOfWeek)
	}
	if got.ID != g.ID || got.PermissionID != g.PermissionID {
		t.Fatal("ids not preserved")
	}
}

func TestTargetDocs(t *testing.T) {
	pid := id.NewPermissionID()
	docs := targetsToDocs([]policy.Target{{PermissionID: &pid}, {ResourceType: "document"}})
	got := targetsFromDocs(docs)
	if len(got) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(got))
	}
	if got[0].PermissionID == nil || *got[0].PermissionID != pid {
		t.Fatalf("permission target lost: %+v", got[0])
	}
	if got[1].PermissionID != nil || got[1].ResourceType != "document" {
		t.Fatalf("resource type target lost: %+v", got[1])
	}
	if targetsFromDocs(nil) != nil {
		t.Fatal("expected nil targets for empty docs")
	}
}

func TestMigrationIndexesCoverAllCollections(t *testing.T) {
	idx := migrationIndexes()
	for _, col := range []string{colPermissions, colResourceTypes, colRoles, colRolePermissions, colAssignments, colGrants, colPolicies} {
		if len(idx[col]) == 0 {
			t.Errorf("no indexes for %s", col)
		}
	}
}
