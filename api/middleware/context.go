package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/cafequeue-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
)

type identityKey struct{}

// WithIdentity injects the caller identity into the context.
func WithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity seeded by Auth.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	if ctx == nil {
		return auth.Identity{}, false
	}
	identity, ok := ctx.Value(identityKey{}).(auth.Identity)
	if !ok || identity.UserID == uuid.Nil {
		return auth.Identity{}, false
	}
	return identity, true
}

// UserIDFromContext returns the authenticated user, or "" outside Auth.
func UserIDFromContext(ctx context.Context) string {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return ""
	}
	return identity.UserID.String()
}

// CurrentUser returns the caller identity or an UNAUTHORIZED error.
func CurrentUser(ctx context.Context) (auth.Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return auth.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return identity, nil
}
