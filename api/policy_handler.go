package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/policy"
)

func (a *API) registerPolicyRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("policies"))

	if err := g.POST("/policies", a.createPolicy,
		forge.WithSummary("Attach conditional policy"),
		forge.WithDescription("Attaches a condition that gates matching permissions on top of role and grant checks."),
		forge.WithOperationID("createPolicy"),
		forge.WithRequestSchema(CreatePolicyRequest{}),
		forge.WithCreatedResponse(PolicyCreatedResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/policies/:policyId", a.getPolicy,
		forge.WithSummary("Get policy"),
		forge.WithOperationID("getPolicy"),
		forge.WithResponseSchema(http.StatusOK, "Policy details", &policy.Policy{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/policies/:policyId", a.deactivatePolicy,
		forge.WithSummary("Deactivate policy"),
		forge.WithDescription("Stops a policy from gating decisions. The record is kept."),
		forge.WithOperationID("deactivatePolicy"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/policies", a.listPolicies,
		forge.WithSummary("List policies"),
		forge.WithOperationID("listPolicies"),
		forge.WithRequestSchema(ListPoliciesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Policy list", []*policy.Policy{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createPolicy(ctx forge.Context, req *CreatePolicyRequest) (*PolicyCreatedResponse, error) {
	if req.Name == "" || req.ConditionType == "" {
		return nil, forge.BadRequest("name and condition_type are required")
	}
	if !req.IsGlobal && len(req.Permissions) == 0 && len(req.ResourceTypes) == 0 {
		return nil, forge.BadRequest("a non-global policy needs permissions or resource_types")
	}

	targets := make([]policy.Target, 0, len(req.Permissions)+len(req.ResourceTypes))
	for _, name := range req.Permissions {
		p, err := a.eng.GetPermission(ctx.Context(), name)
		if errors.Is(err, bastion.ErrNotFound) {
			return nil, forge.BadRequest(fmt.Sprintf("unknown permission %q", name))
		}
		if err != nil {
			return nil, mapError(err)
		}
		targets = append(targets, policy.Target{PermissionID: &p.ID})
	}
	for _, rt := range req.ResourceTypes {
		targets = append(targets, policy.Target{ResourceType: rt})
	}

	spec := &bastion.PolicySpec{
		Name:          req.Name,
		Description:   req.Description,
		ConditionType: policy.ConditionType(req.ConditionType),
		Condition:     req.Condition,
		IsGlobal:      req.IsGlobal,
		RiskLevel:     permission.RiskLevel(req.RiskLevel),
		Metadata:      req.Metadata,
	}

	polID, err := a.eng.AttachPolicy(ctx.Context(), spec, targets)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &PolicyCreatedResponse{PolicyID: polID.String()}
	return resp, ctx.JSON(http.StatusCreated, resp)
}

func (a *API) getPolicy(ctx forge.Context, _ *GetPolicyRequest) (*policy.Policy, error) {
	polID, err := id.ParsePolicyID(ctx.Param("policyId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid policy ID: %v", err))
	}

	p, err := a.eng.GetPolicy(ctx.Context(), polID)
	if err != nil {
		return nil, mapError(err)
	}

	return p, ctx.JSON(http.StatusOK, p)
}

func (a *API) deactivatePolicy(ctx forge.Context, _ *GetPolicyRequest) (*struct{}, error) {
	polID, err := id.ParsePolicyID(ctx.Param("policyId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid policy ID: %v", err))
	}

	if err := a.eng.DeactivatePolicy(ctx.Context(), polID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listPolicies(ctx forge.Context, req *ListPoliciesRequest) ([]*policy.Policy, error) {
	filter := &policy.ListFilter{
		ConditionType: policy.ConditionType(req.ConditionType),
		IsActive:      parseBool(req.Active),
		Search:        req.Search,
		Limit:         defaultLimit(req.Limit),
		Offset:        req.Offset,
	}

	policies, err := a.eng.ListPolicies(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return policies, ctx.JSON(http.StatusOK, policies)
}
