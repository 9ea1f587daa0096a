package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/bastion/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"PermissionID", id.NewPermissionID, "perm_"},
		{"ResourceTypeID", id.NewResourceTypeID, "rtype_"},
		{"RoleID", id.NewRoleID, "role_"},
		{"AssignmentID", id.NewAssignmentID, "asgn_"},
		{"GrantID", id.NewGrantID, "tgrant_"},
		{"PolicyID", id.NewPolicyID, "cpol_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"PermissionID", id.NewPermissionID, id.ParsePermissionID},
		{"RoleID", id.NewRoleID, id.ParseRoleID},
		{"GrantID", id.NewGrantID, id.ParseGrantID},
		{"PolicyID", id.NewPolicyID, id.ParsePolicyID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed != original {
				t.Errorf("round-trip mismatch: %q != %q", parsed, original)
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	if _, err := id.ParseGrantID(id.NewPolicyID().String()); err == nil {
		t.Fatal("expected ParseGrantID to reject a policy ID")
	}
	if _, err := id.ParseRoleID(id.NewPermissionID().String()); err == nil {
		t.Fatal("expected ParseRoleID to reject a permission ID")
	}
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{"", "not-an-id", "role_"} {
		if _, err := id.Parse(s); err == nil {
			t.Errorf("expected error parsing %q", s)
		}
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Fatal("zero ID should be nil")
	}
	if i.String() != "" || i.Prefix() != "" {
		t.Fatal("nil ID should render empty")
	}
	v, err := i.Value()
	if err != nil || v != nil {
		t.Fatalf("nil ID should be stored as NULL, got %v, %v", v, err)
	}
}

func TestJSONAndScan(t *testing.T) {
	g := id.NewGrantID()

	data, err := json.Marshal(map[string]id.ID{"id": g})
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]id.ID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["id"] != g {
		t.Fatalf("json mismatch: %s != %s", decoded["id"], g)
	}

	var scanned id.ID
	if err := scanned.Scan(g.String()); err != nil {
		t.Fatal(err)
	}
	if scanned != g {
		t.Fatal("scan mismatch")
	}
	if err := scanned.Scan(nil); err != nil || !scanned.IsNil() {
		t.Fatal("scan of NULL should yield nil ID")
	}
	if err := scanned.Scan(42); err == nil {
		t.Fatal("expected error scanning int")
	}
}

func TestStrings(t *testing.T) {
	a, b := id.NewRoleID(), id.NewRoleID()
	got := id.Strings([]id.ID{a, b})
	if len(got) != 2 || got[0] != a.String() || got[1] != b.String() {
		t.Fatalf("unexpected strings: %v", got)
	}
}
