// Package bastion is an authorization decision engine. It merges a static
// role graph, time-windowed permission grants and context-based conditional
// policies into a single allow or deny decision with structured reasons.
//
//	eng, err := bastion.NewEngine(
//	    bastion.WithStore(memory.New()),
//	    bastion.WithCache(cache.NewMemory()),
//	)
//	d, err := eng.Decide(ctx, &bastion.DecisionRequest{
//	    UserID:     "user_123",
//	    Permission: "document.read",
//	    Resource:   bastion.ResourceRef{Type: "document", ID: "doc_456"},
//	})
//
// Decide fails closed: infrastructure errors and deadline overruns return
// an error and never an allow.
package bastion

import (
	"fmt"
	"slices"
	"time"
)

// ResourceRef identifies the object a permission is exercised on. An empty
// Type defaults to the permission's resource type.
type ResourceRef struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id,omitempty"`
}

// RequestContext carries the request attributes conditional policies are
// evaluated against. It is never persisted.
type RequestContext struct {
	IPAddress        string            `json:"ip_address,omitempty"`
	Location         string            `json:"location,omitempty"`
	DeviceType       string            `json:"device_type,omitempty"`
	AuthMethod       string            `json:"auth_method,omitempty"`
	RiskScore        int               `json:"risk_score,omitempty"`
	MFAVerified      bool              `json:"mfa_verified,omitempty"`
	MFATimestamp     *time.Time        `json:"mfa_timestamp,omitempty"`
	Timestamp        time.Time         `json:"timestamp,omitzero"`
	TimeZone         string            `json:"time_zone,omitempty"`
	CustomAttributes map[string]string `json:"custom_attributes,omitempty"`
}

// DecisionRequest is the input to Decide.
type DecisionRequest struct {
	UserID     string          `json:"user_id"`
	Permission string          `json:"permission"`
	Resource   ResourceRef     `json:"resource"`
	Context    *RequestContext `json:"context,omitempty"`
}

func (r *DecisionRequest) validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil decision request", ErrValidation)
	}
	if r.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if r.Permission == "" {
		return fmt.Errorf("%w: permission is required", ErrValidation)
	}
	if r.Context != nil && (r.Context.RiskScore < 0 || r.Context.RiskScore > 100) {
		return fmt.Errorf("%w: risk_score %d outside 0-100", ErrValidation, r.Context.RiskScore)
	}
	return nil
}

// Decision is the outcome of Decide. DenialReasons preserves the order in
// which the resolver recorded failures.
type Decision struct {
	Allowed          bool      `json:"allowed"`
	MatchedGrantIDs  []string  `json:"matched_grant_ids,omitempty"`
	MatchedPolicyIDs []string  `json:"matched_policy_ids,omitempty"`
	DenialReasons    []string  `json:"denial_reasons,omitempty"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
	Cached           bool      `json:"cached"`
	EvalTimeNs       int64     `json:"eval_time_ns"`
}

// Clone returns a deep copy of d.
func (d *Decision) Clone() *Decision {
	cp := *d
	cp.MatchedGrantIDs = slices.Clone(d.MatchedGrantIDs)
	cp.MatchedPolicyIDs = slices.Clone(d.MatchedPolicyIDs)
	cp.DenialReasons = slices.Clone(d.DenialReasons)
	return &cp
}

// Denial reasons.
const (
	// ReasonNoGrant means neither a role nor a temporal grant covers the
	// permission, or the permission is unknown or deactivated.
	ReasonNoGrant = "NoGrant"

	// ReasonNoActiveGrant means temporal grants exist but none is inside
	// its schedule.
	ReasonNoActiveGrant = "NoActiveGrant"

	// ReasonQuotaExceeded means every active grant has used its quota.
	ReasonQuotaExceeded = "QuotaExceeded"

	reasonConditionFailed    = "ConditionFailed:"
	reasonConfigurationError = "ConfigurationError:"
)

// ConditionFailedReason is the denial reason recorded when a policy's
// predicate is false.
func ConditionFailedReason(policyName string) string {
	return reasonConditionFailed + policyName
}

// ConfigurationErrorReason is the denial reason recorded when a policy
// cannot be evaluated.
func ConfigurationErrorReason(policyName string) string {
	return reasonConfigurationError + policyName
}

func deny(reasons ...string) *Decision {
	return &Decision{DenialReasons: reasons}
}
