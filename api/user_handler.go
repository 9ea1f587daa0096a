package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/id"
)

func (a *API) registerUserRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("users"))

	if err := g.POST("/users/:userId/roles", a.assignRole,
		forge.WithSummary("Assign role"),
		forge.WithDescription("Assigns a role to a user. Assigning a held role is a no-op."),
		forge.WithOperationID("assignRole"),
		forge.WithRequestSchema(AssignRoleRequest{}),
		forge.WithCreatedResponse(&assignment.Assignment{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/users/:userId/roles/:roleId", a.revokeRole,
		forge.WithSummary("Revoke role"),
		forge.WithDescription("Removes a role from a user."),
		forge.WithOperationID("revokeRole"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/users/:userId/permissions", a.effectivePermissions,
		forge.WithSummary("Effective permissions"),
		forge.WithDescription("Lists the permissions a user holds through roles. Temporal grants and policies are not included."),
		forge.WithOperationID("effectivePermissions"),
		forge.WithResponseSchema(http.StatusOK, "Permission names", EffectivePermissionsResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) assignRole(ctx forge.Context, req *AssignRoleRequest) (*assignment.Assignment, error) {
	userID := ctx.Param("userId")
	if userID == "" || req.RoleID == "" {
		return nil, forge.BadRequest("userId and role_id are required")
	}

	roleID, err := id.ParseRoleID(req.RoleID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role_id: %v", err))
	}

	asg, err := a.eng.AssignRole(ctx.Context(), userID, roleID)
	if err != nil {
		return nil, mapError(err)
	}

	return asg, ctx.JSON(http.StatusCreated, asg)
}

func (a *API) revokeRole(ctx forge.Context, _ *UserRoleRequest) (*struct{}, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	if err := a.eng.RevokeRole(ctx.Context(), ctx.Param("userId"), roleID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) effectivePermissions(ctx forge.Context, _ *UserRequest) (*EffectivePermissionsResponse, error) {
	userID := ctx.Param("userId")

	perms, err := a.eng.EffectivePermissions(ctx.Context(), userID)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &EffectivePermissionsResponse{UserID: userID, Permissions: perms}
	return resp, ctx.JSON(http.StatusOK, resp)
}
