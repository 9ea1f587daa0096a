package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
)

func (a *API) registerDecideRoutes(router forge.Router) error {
	g := router.Group("/v1/authz", forge.WithGroupTags("authorization"))

	if err := g.POST("/decide", a.decide,
		forge.WithSummary("Authorization decision"),
		forge.WithDescription("Returns 200 when allowed and 403 with denial reasons when denied. Returns 503 when no decision could be reached."),
		forge.WithOperationID("authzDecide"),
		forge.WithRequestSchema(DecideRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Allowed", &bastion.Decision{}),
		forge.WithResponseSchema(http.StatusForbidden, "Denied", &bastion.Decision{}),
		forge.WithResponseSchema(http.StatusServiceUnavailable, "Unresolved", &ErrorResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/batch-decide", a.batchDecide,
		forge.WithSummary("Batch authorization decision"),
		forge.WithDescription("Evaluates multiple decisions in one request. Denials are reported inline."),
		forge.WithOperationID("authzBatchDecide"),
		forge.WithRequestSchema(BatchDecideRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Decisions", BatchDecisionResponse{}),
		forge.WithResponseSchema(http.StatusServiceUnavailable, "Unresolved", &ErrorResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) decide(ctx forge.Context, req *DecideRequest) (*bastion.Decision, error) {
	if req.UserID == "" || req.Permission == "" {
		return nil, forge.BadRequest("user_id and permission are required")
	}

	d, err := a.eng.Decide(ctx.Context(), toDecisionRequest(req))
	if err != nil {
		if unavailable(err) {
			return nil, writeUnavailable(ctx, err)
		}
		return nil, mapError(err)
	}

	if !d.Allowed {
		return d, ctx.JSON(http.StatusForbidden, d)
	}
	return d, ctx.JSON(http.StatusOK, d)
}

func (a *API) batchDecide(ctx forge.Context, req *BatchDecideRequest) (*BatchDecisionResponse, error) {
	if len(req.Requests) == 0 {
		return nil, forge.BadRequest("requests cannot be empty")
	}

	results := make([]*bastion.Decision, len(req.Requests))
	for i := range req.Requests {
		r := &req.Requests[i]
		if r.UserID == "" || r.Permission == "" {
			return nil, forge.BadRequest("user_id and permission are required")
		}
		d, err := a.eng.Decide(ctx.Context(), toDecisionRequest(r))
		if err != nil {
			if unavailable(err) {
				return nil, writeUnavailable(ctx, err)
			}
			return nil, mapError(err)
		}
		results[i] = d
	}

	resp := &BatchDecisionResponse{Results: results}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func toDecisionRequest(r *DecideRequest) *bastion.DecisionRequest {
	return &bastion.DecisionRequest{
		UserID:     r.UserID,
		Permission: r.Permission,
		Resource:   bastion.ResourceRef{Type: r.ResourceType, ID: r.ResourceID},
		Context:    r.Context,
	}
}
