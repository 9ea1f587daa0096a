package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/id"
)

func (a *API) registerGrantRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("grants"))

	if err := g.POST("/grants", a.createGrant,
		forge.WithSummary("Create temporal grant"),
		forge.WithDescription("Grants a permission to a user inside a fixed or recurring schedule, optionally with a use quota."),
		forge.WithOperationID("createGrant"),
		forge.WithRequestSchema(CreateGrantRequest{}),
		forge.WithCreatedResponse(GrantCreatedResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/grants/:grantId", a.getGrant,
		forge.WithSummary("Get grant"),
		forge.WithOperationID("getGrant"),
		forge.WithResponseSchema(http.StatusOK, "Grant details", &grant.Grant{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/grants/:grantId", a.revokeGrant,
		forge.WithSummary("Revoke grant"),
		forge.WithDescription("Deactivates a grant. The record is kept."),
		forge.WithOperationID("revokeGrant"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/grants", a.listGrants,
		forge.WithSummary("List grants"),
		forge.WithOperationID("listGrants"),
		forge.WithRequestSchema(ListGrantsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Grant list", []*grant.Grant{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createGrant(ctx forge.Context, req *CreateGrantRequest) (*GrantCreatedResponse, error) {
	if req.UserID == "" || req.Permission == "" || req.ScheduleType == "" {
		return nil, forge.BadRequest("user_id, permission, and schedule_type are required")
	}

	spec := &bastion.GrantSpec{
		UserID:       req.UserID,
		Permission:   req.Permission,
		ResourceID:   req.ResourceID,
		ScheduleType: grant.ScheduleType(req.ScheduleType),
		TimeZone:     req.TimeZone,
		TimeRanges:   req.TimeRanges,
		MaxUses:      req.MaxUses,
		Reason:       req.Reason,
	}
	if req.ValidFrom != "" {
		t, err := time.Parse(time.RFC3339, req.ValidFrom)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid valid_from: %v", err))
		}
		spec.ValidFrom = t
	}
	if req.ValidUntil != "" {
		t, err := time.Parse(time.RFC3339, req.ValidUntil)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid valid_until: %v", err))
		}
		spec.ValidUntil = &t
	}
	for _, d := range req.DaysOfWeek {
		if d < 0 || d > 6 {
			return nil, forge.BadRequest(fmt.Sprintf("invalid day of week %d", d))
		}
		spec.DaysOfWeek = append(spec.DaysOfWeek, time.Weekday(d))
	}

	grantID, err := a.eng.Grant(ctx.Context(), spec)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &GrantCreatedResponse{GrantID: grantID.String()}
	return resp, ctx.JSON(http.StatusCreated, resp)
}

func (a *API) getGrant(ctx forge.Context, _ *GetGrantRequest) (*grant.Grant, error) {
	grantID, err := id.ParseGrantID(ctx.Param("grantId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid grant ID: %v", err))
	}

	g, err := a.eng.GetGrant(ctx.Context(), grantID)
	if err != nil {
		return nil, mapError(err)
	}

	return g, ctx.JSON(http.StatusOK, g)
}

func (a *API) revokeGrant(ctx forge.Context, _ *GetGrantRequest) (*struct{}, error) {
	grantID, err := id.ParseGrantID(ctx.Param("grantId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid grant ID: %v", err))
	}

	if err := a.eng.Revoke(ctx.Context(), grantID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listGrants(ctx forge.Context, req *ListGrantsRequest) ([]*grant.Grant, error) {
	filter := &grant.ListFilter{
		UserID:   req.UserID,
		IsActive: parseBool(req.Active),
		Limit:    defaultLimit(req.Limit),
		Offset:   req.Offset,
	}

	grants, err := a.eng.ListGrants(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return grants, ctx.JSON(http.StatusOK, grants)
}
