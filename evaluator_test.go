package bastion

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/bastion/policy"
	"github.com/xraph/bastion/window"
)

func TestConditionEvaluator(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) // Monday
	fresh := now.Add(-2 * time.Minute)
	stale := now.Add(-10 * time.Minute)
	ahead := now.Add(30 * time.Second)

	office := policy.ConditionData{TimeRange: &policy.TimeRangeCondition{
		TimeRanges: []window.TimeRange{{Start: "09:00", End: "17:00"}},
		DaysOfWeek: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	}}
	// 10:00 UTC on Monday is midnight in Honolulu, inside Sunday's night shift.
	sundayNight := policy.ConditionData{TimeRange: &policy.TimeRangeCondition{
		TimeRanges: []window.TimeRange{{Start: "22:00", End: "02:00"}},
		DaysOfWeek: []time.Weekday{time.Sunday},
	}}
	mondayNight := policy.ConditionData{TimeRange: &policy.TimeRangeCondition{
		TimeRanges: []window.TimeRange{{Start: "22:00", End: "02:00"}},
		DaysOfWeek: []time.Weekday{time.Monday},
	}}
	mfa := policy.ConditionData{MFA: &policy.MFACondition{MaxAgeSeconds: 300}}
	dept := policy.ConditionData{CustomAttribute: &policy.CustomAttributeCondition{Key: "department", ExpectedValue: "finance"}}
	deptRe := policy.ConditionData{CustomAttribute: &policy.CustomAttributeCondition{
		Key: "department", ExpectedValue: "^fin(ance|ops)$", MatchMode: policy.MatchRegex,
	}}

	tests := []struct {
		name string
		typ  policy.ConditionType
		data policy.ConditionData
		rc   RequestContext
		want bool
	}{
		{"location allowed", policy.ConditionLocation, policy.ConditionData{Location: &policy.LocationCondition{AllowedLocations: []string{"US"}}}, RequestContext{Location: "us"}, true},
		{"location other", policy.ConditionLocation, policy.ConditionData{Location: &policy.LocationCondition{AllowedLocations: []string{"US"}}}, RequestContext{Location: "DE"}, false},
		{"location missing", policy.ConditionLocation, policy.ConditionData{Location: &policy.LocationCondition{AllowedLocations: []string{"US"}}}, RequestContext{}, false},
		{"office hours utc", policy.ConditionTimeRange, office, RequestContext{}, true},
		{"office hours shifted zone", policy.ConditionTimeRange, office, RequestContext{TimeZone: "America/Los_Angeles"}, false},
		{"overnight range started previous day", policy.ConditionTimeRange, sundayNight, RequestContext{TimeZone: "Pacific/Honolulu"}, true},
		{"overnight range not yet started", policy.ConditionTimeRange, mondayNight, RequestContext{TimeZone: "Pacific/Honolulu"}, false},
		{"office hours bad zone", policy.ConditionTimeRange, office, RequestContext{TimeZone: "Mars/Olympus"}, false},
		{"risk under", policy.ConditionRiskScore, policy.ConditionData{RiskScore: &policy.RiskScoreCondition{MaxRiskScore: 30}}, RequestContext{RiskScore: 29}, true},
		{"risk over", policy.ConditionRiskScore, policy.ConditionData{RiskScore: &policy.RiskScoreCondition{MaxRiskScore: 30}}, RequestContext{RiskScore: 31}, false},
		{"mfa fresh", policy.ConditionMFARequired, mfa, RequestContext{MFAVerified: true, MFATimestamp: &fresh}, true},
		{"mfa stale", policy.ConditionMFARequired, mfa, RequestContext{MFAVerified: true, MFATimestamp: &stale}, false},
		{"mfa within skew", policy.ConditionMFARequired, mfa, RequestContext{MFAVerified: true, MFATimestamp: &ahead}, true},
		{"mfa unverified", policy.ConditionMFARequired, mfa, RequestContext{MFATimestamp: &fresh}, false},
		{"attribute exact", policy.ConditionCustomAttribute, dept, RequestContext{CustomAttributes: map[string]string{"department": "finance"}}, true},
		{"attribute exact mismatch", policy.ConditionCustomAttribute, dept, RequestContext{CustomAttributes: map[string]string{"department": "Finance"}}, false},
		{"attribute absent", policy.ConditionCustomAttribute, dept, RequestContext{}, false},
		{"attribute regex", policy.ConditionCustomAttribute, deptRe, RequestContext{CustomAttributes: map[string]string{"department": "finops"}}, true},
		{"attribute regex mismatch", policy.ConditionCustomAttribute, deptRe, RequestContext{CustomAttributes: map[string]string{"department": "sales"}}, false},
	}

	ev := DefaultEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &policy.Policy{Name: tt.name, ConditionType: tt.typ, Condition: tt.data}
			got, err := ev.Evaluate(p, &tt.rc, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestConditionEvaluator_ConfigurationErrors(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	rc := &RequestContext{CustomAttributes: map[string]string{"k": "v"}}

	tests := []struct {
		name string
		p    *policy.Policy
	}{
		{"unknown type", &policy.Policy{Name: "geo", ConditionType: "geo_fence"}},
		{"missing payload", &policy.Policy{Name: "risk", ConditionType: policy.ConditionRiskScore}},
		{"mismatched payload", &policy.Policy{
			Name:          "risk",
			ConditionType: policy.ConditionRiskScore,
			Condition:     policy.ConditionData{MFA: &policy.MFACondition{MaxAgeSeconds: 60}},
		}},
		{"invalid regex", &policy.Policy{
			Name:          "attr",
			ConditionType: policy.ConditionCustomAttribute,
			Condition: policy.ConditionData{CustomAttribute: &policy.CustomAttributeCondition{
				Key: "k", ExpectedValue: "([", MatchMode: policy.MatchRegex,
			}},
		}},
		{"unknown match mode", &policy.Policy{
			Name:          "attr",
			ConditionType: policy.ConditionCustomAttribute,
			Condition: policy.ConditionData{CustomAttribute: &policy.CustomAttributeCondition{
				Key: "k", ExpectedValue: "v", MatchMode: "glob",
			}},
		}},
	}

	ev := DefaultEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := ev.Evaluate(tt.p, rc, now)
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
			if ok {
				t.Fatal("unevaluable policy must not pass")
			}
		})
	}
}

func TestConditionExpiry(t *testing.T) {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	p := &policy.Policy{
		ConditionType: policy.ConditionMFARequired,
		Condition:     policy.ConditionData{MFA: &policy.MFACondition{MaxAgeSeconds: 300}},
	}
	if got := conditionExpiry(p, &RequestContext{MFATimestamp: &at}); !got.Equal(at.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", got)
	}
	if got := conditionExpiry(p, &RequestContext{}); !got.IsZero() {
		t.Fatalf("expected no expiry without timestamp, got %v", got)
	}
}
