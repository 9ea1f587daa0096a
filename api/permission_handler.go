package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion/permission"
)

// GetPermissionRequest is the path parameter for a permission.
type GetPermissionRequest struct {
	Name string `path:"name" description:"Permission name"`
}

func (a *API) registerPermissionRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("permissions"))

	if err := g.POST("/permissions", a.createPermission,
		forge.WithSummary("Register permission"),
		forge.WithDescription("Registers a permission in the catalog. The resource type is created if missing."),
		forge.WithOperationID("createPermission"),
		forge.WithRequestSchema(CreatePermissionRequest{}),
		forge.WithCreatedResponse(&permission.Permission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/permissions/:name", a.getPermission,
		forge.WithSummary("Get permission"),
		forge.WithOperationID("getPermission"),
		forge.WithResponseSchema(http.StatusOK, "Permission details", &permission.Permission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/permissions/:name", a.deactivatePermission,
		forge.WithSummary("Deactivate permission"),
		forge.WithDescription("Deactivates a permission. Decisions for it deny until it is reactivated."),
		forge.WithOperationID("deactivatePermission"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/permissions", a.listPermissions,
		forge.WithSummary("List permissions"),
		forge.WithOperationID("listPermissions"),
		forge.WithRequestSchema(ListPermissionsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Permission list", []*permission.Permission{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createPermission(ctx forge.Context, req *CreatePermissionRequest) (*permission.Permission, error) {
	if req.Name == "" || req.ResourceType == "" {
		return nil, forge.BadRequest("name and resource_type are required")
	}

	p := &permission.Permission{
		Name:         req.Name,
		ResourceType: req.ResourceType,
		RiskLevel:    permission.RiskLevel(req.RiskLevel),
		Description:  req.Description,
		IsSystem:     req.IsSystem,
		Metadata:     req.Metadata,
	}

	if err := a.eng.RegisterPermission(ctx.Context(), p); err != nil {
		return nil, mapError(err)
	}

	return p, ctx.JSON(http.StatusCreated, p)
}

func (a *API) getPermission(ctx forge.Context, _ *GetPermissionRequest) (*permission.Permission, error) {
	p, err := a.eng.GetPermission(ctx.Context(), ctx.Param("name"))
	if err != nil {
		return nil, mapError(err)
	}

	return p, ctx.JSON(http.StatusOK, p)
}

func (a *API) deactivatePermission(ctx forge.Context, _ *GetPermissionRequest) (*struct{}, error) {
	if err := a.eng.DeactivatePermission(ctx.Context(), ctx.Param("name")); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listPermissions(ctx forge.Context, req *ListPermissionsRequest) ([]*permission.Permission, error) {
	filter := &permission.ListFilter{
		ResourceType: req.ResourceType,
		IsActive:     parseBool(req.Active),
		Search:       req.Search,
		Limit:        defaultLimit(req.Limit),
		Offset:       req.Offset,
	}

	perms, err := a.eng.ListPermissions(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return perms, ctx.JSON(http.StatusOK, perms)
}
