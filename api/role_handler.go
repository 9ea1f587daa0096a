package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/role"
)

func (a *API) registerRoleRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("roles"))

	if err := g.POST("/roles", a.createRole,
		forge.WithSummary("Create role"),
		forge.WithDescription("Creates a role with optional parent roles."),
		forge.WithOperationID("createRole"),
		forge.WithRequestSchema(CreateRoleRequest{}),
		forge.WithCreatedResponse(&role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/roles/:roleId", a.getRole,
		forge.WithSummary("Get role"),
		forge.WithOperationID("getRole"),
		forge.WithResponseSchema(http.StatusOK, "Role details", &role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/roles/:roleId", a.deactivateRole,
		forge.WithSummary("Deactivate role"),
		forge.WithDescription("Deactivates a role. It and everything inherited through it stop granting."),
		forge.WithOperationID("deactivateRole"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/roles", a.listRoles,
		forge.WithSummary("List roles"),
		forge.WithOperationID("listRoles"),
		forge.WithRequestSchema(ListRolesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Role list", []*role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/roles/:roleId/permissions", a.roleEffectivePermissions,
		forge.WithSummary("Role effective permissions"),
		forge.WithDescription("Lists the permissions the role grants, including inherited ones."),
		forge.WithOperationID("roleEffectivePermissions"),
		forge.WithResponseSchema(http.StatusOK, "Permission names", []string{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/roles/:roleId/permissions", a.bindPermission,
		forge.WithSummary("Bind permission to role"),
		forge.WithOperationID("bindPermission"),
		forge.WithRequestSchema(BindPermissionRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/roles/:roleId/permissions/:permissionId", a.unbindPermission,
		forge.WithSummary("Unbind permission from role"),
		forge.WithOperationID("unbindPermission"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/roles/:roleId/parents", a.addParent,
		forge.WithSummary("Add parent role"),
		forge.WithDescription("Adds an inheritance edge. Edges that would create a cycle are rejected."),
		forge.WithOperationID("addRoleParent"),
		forge.WithRequestSchema(AddParentRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/roles/:roleId/parents/:parentId", a.removeParent,
		forge.WithSummary("Remove parent role"),
		forge.WithOperationID("removeRoleParent"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) createRole(ctx forge.Context, req *CreateRoleRequest) (*role.Role, error) {
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}

	r := &role.Role{
		Name:        req.Name,
		Description: req.Description,
		IsSystem:    req.IsSystem,
		Metadata:    req.Metadata,
	}
	for _, raw := range req.ParentIDs {
		pid, err := id.ParseRoleID(raw)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid parent_id: %v", err))
		}
		r.ParentIDs = append(r.ParentIDs, pid)
	}

	if err := a.eng.CreateRole(ctx.Context(), r); err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusCreated, r)
}

func (a *API) getRole(ctx forge.Context, _ *GetRoleRequest) (*role.Role, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	r, err := a.eng.GetRole(ctx.Context(), roleID)
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) deactivateRole(ctx forge.Context, _ *GetRoleRequest) (*struct{}, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	if err := a.eng.DeactivateRole(ctx.Context(), roleID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listRoles(ctx forge.Context, req *ListRolesRequest) ([]*role.Role, error) {
	filter := &role.ListFilter{
		IsActive: parseBool(req.Active),
		Search:   req.Search,
		Limit:    defaultLimit(req.Limit),
		Offset:   req.Offset,
	}

	roles, err := a.eng.ListRoles(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return roles, ctx.JSON(http.StatusOK, roles)
}

func (a *API) roleEffectivePermissions(ctx forge.Context, _ *GetRoleRequest) ([]string, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	perms, err := a.eng.RoleEffectivePermissions(ctx.Context(), roleID)
	if err != nil {
		return nil, mapError(err)
	}

	return perms, ctx.JSON(http.StatusOK, perms)
}

func (a *API) bindPermission(ctx forge.Context, req *BindPermissionRequest) (*struct{}, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	permID, err := a.resolvePermissionID(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := a.eng.BindPermission(ctx.Context(), roleID, permID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) resolvePermissionID(ctx forge.Context, req *BindPermissionRequest) (id.PermissionID, error) {
	switch {
	case req.PermissionID != "":
		permID, err := id.ParsePermissionID(req.PermissionID)
		if err != nil {
			return id.Nil, forge.BadRequest(fmt.Sprintf("invalid permission ID: %v", err))
		}
		return permID, nil
	case req.Permission != "":
		p, err := a.eng.GetPermission(ctx.Context(), req.Permission)
		if errors.Is(err, bastion.ErrNotFound) {
			return id.Nil, forge.NotFound(fmt.Sprintf("unknown permission %q", req.Permission))
		}
		if err != nil {
			return id.Nil, mapError(err)
		}
		return p.ID, nil
	}
	return id.Nil, forge.BadRequest("permission_id or permission is required")
}

func (a *API) unbindPermission(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	permID, err := id.ParsePermissionID(ctx.Param("permissionId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid permission ID: %v", err))
	}

	if err := a.eng.UnbindPermission(ctx.Context(), roleID, permID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) addParent(ctx forge.Context, req *AddParentRequest) (*struct{}, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	parentID, err := id.ParseRoleID(req.ParentID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid parent_id: %v", err))
	}

	if err := a.eng.AddParent(ctx.Context(), roleID, parentID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) removeParent(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	roleID, err := id.ParseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}

	parentID, err := id.ParseRoleID(ctx.Param("parentId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid parent ID: %v", err))
	}

	if err := a.eng.RemoveParent(ctx.Context(), roleID, parentID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}
