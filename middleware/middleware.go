// Package middleware provides Forge authorization middleware backed by the
// Bastion decision engine.
package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/bastion"
)

// Check names a permission to decide on. An empty ResourceType defaults to
// the permission's own type.
type Check struct {
	Permission   string
	ResourceType string
}

// Require allows the request only if the authenticated user holds
// permission on the resource named by the ":id" route parameter. Request
// attributes (client IP, MFA state set by upstream middleware) are passed to
// conditional policies.
func Require(eng *bastion.Engine, permission, resourceType string) forge.Middleware {
	return RequireAll(eng, Check{Permission: permission, ResourceType: resourceType})
}

// RequireAny allows the request if ANY of the checks pass.
func RequireAny(eng *bastion.Engine, checks ...Check) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			var last *bastion.Decision
			for _, c := range checks {
				d, err := eng.Decide(ctx.Context(), request(ctx, c))
				if err != nil {
					return errorResponse(ctx, err)
				}
				if d.Allowed {
					return next(ctx)
				}
				last = d
			}
			return denyResponse(ctx, last)
		}
	}
}

// RequireAll allows the request only if ALL checks pass.
func RequireAll(eng *bastion.Engine, checks ...Check) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			for _, c := range checks {
				d, err := eng.Decide(ctx.Context(), request(ctx, c))
				if err != nil {
					return errorResponse(ctx, err)
				}
				if !d.Allowed {
					return denyResponse(ctx, d)
				}
			}
			return next(ctx)
		}
	}
}

// RequestContextFunc builds the attributes conditional policies see.
type RequestContextFunc func(ctx forge.Context) *bastion.RequestContext

// ContextFrom replaces how request attributes are gathered. The default
// records only the client address.
var ContextFrom RequestContextFunc = defaultRequestContext

func request(ctx forge.Context, c Check) *bastion.DecisionRequest {
	return &bastion.DecisionRequest{
		UserID:     resolveUser(ctx),
		Permission: c.Permission,
		Resource:   bastion.ResourceRef{Type: c.ResourceType, ID: ctx.Param("id")},
		Context:    ContextFrom(ctx),
	}
}

// resolveUser extracts the authenticated user from the Forge context. An
// unauthenticated request decides as "anonymous", which holds nothing unless
// explicitly granted.
func resolveUser(ctx forge.Context) string {
	if userID := forge.UserIDFromContext(ctx.Context()); userID != "" {
		return userID
	}
	return "anonymous"
}

func defaultRequestContext(ctx forge.Context) *bastion.RequestContext {
	return &bastion.RequestContext{IPAddress: ctx.Request().RemoteAddr}
}

func denyResponse(ctx forge.Context, d *bastion.Decision) error {
	body := map[string]any{"error": "access denied"}
	if d != nil {
		body["denial_reasons"] = d.DenialReasons
	}
	return writeJSON(ctx, http.StatusForbidden, body)
}

// errorResponse answers 503 when no decision could be reached and 400 for
// malformed requests. It never lets the request through.
func errorResponse(ctx forge.Context, err error) error {
	status := http.StatusServiceUnavailable
	if errors.Is(err, bastion.ErrValidation) {
		status = http.StatusBadRequest
	}
	return writeJSON(ctx, status, map[string]string{"error": err.Error()})
}

func writeJSON(ctx forge.Context, status int, body any) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(status)
	return json.NewEncoder(ctx.Response()).Encode(body)
}
