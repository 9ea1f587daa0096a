package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion/resourcetype"
)

func (a *API) registerResourceTypeRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("resource-types"))

	if err := g.POST("/resource-types", a.createResourceType,
		forge.WithSummary("Register resource type"),
		forge.WithDescription("Registers a resource type that permissions and policies can refer to."),
		forge.WithOperationID("createResourceType"),
		forge.WithRequestSchema(CreateResourceTypeRequest{}),
		forge.WithCreatedResponse(&resourcetype.ResourceType{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/resource-types", a.listResourceTypes,
		forge.WithSummary("List resource types"),
		forge.WithOperationID("listResourceTypes"),
		forge.WithRequestSchema(ListResourceTypesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Resource type list", []*resourcetype.ResourceType{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createResourceType(ctx forge.Context, req *CreateResourceTypeRequest) (*resourcetype.ResourceType, error) {
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}

	rt := &resourcetype.ResourceType{
		Name:        req.Name,
		Description: req.Description,
		Metadata:    req.Metadata,
	}

	if err := a.eng.RegisterResourceType(ctx.Context(), rt); err != nil {
		return nil, mapError(err)
	}

	return rt, ctx.JSON(http.StatusCreated, rt)
}

func (a *API) listResourceTypes(ctx forge.Context, req *ListResourceTypesRequest) ([]*resourcetype.ResourceType, error) {
	filter := &resourcetype.ListFilter{
		Search: req.Search,
		Limit:  defaultLimit(req.Limit),
		Offset: req.Offset,
	}

	rts, err := a.eng.ListResourceTypes(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return rts, ctx.JSON(http.StatusOK, rts)
}
