package api

import "github.com/xraph/bastion"

// BatchDecisionResponse contains results for multiple decisions, in
// request order.
type BatchDecisionResponse struct {
	Results []*bastion.Decision `json:"results" description:"Decisions in request order"`
}

// GrantCreatedResponse is returned when a grant is created.
type GrantCreatedResponse struct {
	GrantID string `json:"grant_id" description:"ID of the new grant"`
}

// PolicyCreatedResponse is returned when a policy is attached.
type PolicyCreatedResponse struct {
	PolicyID string `json:"policy_id" description:"ID of the new policy"`
}

// EffectivePermissionsResponse lists the permissions a user holds through
// roles.
type EffectivePermissionsResponse struct {
	UserID      string   `json:"user_id" description:"User identifier"`
	Permissions []string `json:"permissions" description:"Permission names, sorted"`
}

// ErrorResponse is written when the engine cannot reach a decision.
type ErrorResponse struct {
	Error string `json:"error" description:"Error message"`
	Code  int    `json:"code" description:"HTTP status code"`
}
