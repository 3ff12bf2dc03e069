package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/cafequeue-backend/api/responses"
	"github.com/angelmondragon/cafequeue-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/cafequeue-backend/pkg/errors"
	"github.com/angelmondragon/cafequeue-backend/pkg/logger"
)

type tokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Auth validates a bearer token and seeds the request context with the
// caller identity.
func Auth(verifier tokenVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			ctx = logg.WithUserID(ctx, identity.UserID.String())
			ctx = logg.WithActorRole(ctx, string(identity.Role))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
