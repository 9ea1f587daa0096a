package bastion

import (
	"context"

	"github.com/xraph/forge"
)

type contextKey int

const ctxKeyActor contextKey = iota

// WithActor returns a context that records actor as the administrator
// performing writes. It is stored as GrantedBy on assignments and grants
// when the caller does not set one explicitly.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

// actorFromContext returns the explicit actor, falling back to the
// authenticated Forge user when running inside a Forge app.
func actorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyActor).(string); ok && v != "" {
		return v
	}
	return forge.UserIDFromContext(ctx)
}
