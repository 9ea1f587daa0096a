package policy

import (
	"errors"
	"testing"

	"github.com/xraph/bastion/errdefs"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/window"
)

func riskPolicy(maxScore int) *Policy {
	return &Policy{
		Name:          "risk_score",
		ConditionType: ConditionRiskScore,
		Condition:     ConditionData{RiskScore: &RiskScoreCondition{MaxRiskScore: maxScore}},
		IsGlobal:      true,
		IsActive:      true,
	}
}

func TestValidateAcceptsEachType(t *testing.T) {
	valid := []*Policy{
		riskPolicy(30),
		{
			Name: "eu", ConditionType: ConditionLocation, IsGlobal: true,
			Condition: ConditionData{Location: &LocationCondition{AllowedLocations: []string{"DE", "FR"}}},
		},
		{
			Name: "hours", ConditionType: ConditionTimeRange, IsGlobal: true,
			Condition: ConditionData{TimeRange: &TimeRangeCondition{TimeRanges: []window.TimeRange{{Start: "09:00", End: "17:00"}}}},
		},
		{
			Name: "mfa", ConditionType: ConditionMFARequired, IsGlobal: true,
			Condition: ConditionData{MFA: &MFACondition{MaxAgeSeconds: 300}},
		},
		{
			Name: "dept", ConditionType: ConditionCustomAttribute,
			Targets:   []Target{{ResourceType: "document"}},
			Condition: ConditionData{CustomAttribute: &CustomAttributeCondition{Key: "dept", ExpectedValue: "^fin", MatchMode: MatchRegex}},
		},
	}
	for _, p := range valid {
		if err := p.Validate(); err != nil {
			t.Errorf("%s: unexpected error: %v", p.Name, err)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(p *Policy){
		"unknown type":    func(p *Policy) { p.ConditionType = "phase_of_moon" },
		"score too high":  func(p *Policy) { p.Condition.RiskScore.MaxRiskScore = 101 },
		"mismatched data": func(p *Policy) { p.Condition = ConditionData{MFA: &MFACondition{MaxAgeSeconds: 60}} },
		"two variants":    func(p *Policy) { p.Condition.MFA = &MFACondition{MaxAgeSeconds: 60} },
		"no data":         func(p *Policy) { p.Condition = ConditionData{} },
		"no name":         func(p *Policy) { p.Name = "" },
		"untargeted":      func(p *Policy) { p.IsGlobal = false },
		"empty target":    func(p *Policy) { p.IsGlobal = false; p.Targets = []Target{{}} },
		"bad risk level":  func(p *Policy) { p.RiskLevel = "severe" },
	}
	for name, mutate := range cases {
		p := riskPolicy(30)
		mutate(p)
		if err := p.Validate(); !errors.Is(err, errdefs.ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", name, err)
		}
	}

	bad := &Policy{
		Name: "dept", ConditionType: ConditionCustomAttribute, IsGlobal: true,
		Condition: ConditionData{CustomAttribute: &CustomAttributeCondition{Key: "dept", ExpectedValue: "(", MatchMode: MatchRegex}},
	}
	if err := bad.Validate(); !errors.Is(err, errdefs.ErrValidation) {
		t.Errorf("uncompilable regex: expected ErrValidation, got %v", err)
	}
}

func TestAppliesTo(t *testing.T) {
	read := id.NewPermissionID()
	write := id.NewPermissionID()

	global := riskPolicy(30)
	if !global.AppliesTo(read, "document") {
		t.Fatal("global policy should apply everywhere")
	}

	byPerm := &Policy{Targets: []Target{{PermissionID: &read}}}
	if !byPerm.AppliesTo(read, "invoice") || byPerm.AppliesTo(write, "document") {
		t.Fatal("permission-bound policy should match only its permission")
	}

	byType := &Policy{Targets: []Target{{ResourceType: "document"}}}
	if !byType.AppliesTo(write, "document") || byType.AppliesTo(write, "invoice") {
		t.Fatal("resource-type-bound policy should match only its type")
	}

	pair := &Policy{Targets: []Target{{PermissionID: &read, ResourceType: "document"}}}
	if !pair.AppliesTo(read, "document") {
		t.Fatal("pair-bound policy should match its pair")
	}
	if pair.AppliesTo(read, "invoice") || pair.AppliesTo(write, "document") {
		t.Fatal("pair-bound policy should match only its exact pair")
	}
}
