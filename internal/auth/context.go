package auth

import (
	"context"

	"github.com/inkpost/inkpost/internal/model"
)

type contextKey string

const identityKey contextKey = "identity"

// ContextWithIdentity attaches the authenticated caller to ctx.
func ContextWithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller attached by the auth middleware.
// ok is false on unauthenticated requests.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	if !ok || id.IsZero() {
		return model.Identity{}, false
	}
	return id, true
}
