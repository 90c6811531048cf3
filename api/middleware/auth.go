package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/commerce-engine/api/responses"
	pkgAuth "github.com/angelmondragon/commerce-engine/pkg/auth"
	"github.com/angelmondragon/commerce-engine/pkg/config"
	pkgerrors "github.com/angelmondragon/commerce-engine/pkg/errors"
	"github.com/angelmondragon/commerce-engine/pkg/logger"
)

// Auth requires a valid bearer access token and stores its actor on the
// request context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithActor(r.Context(), claims.UserID, claims.Role)
			ctx = logg.WithFields(logg.WithUserID(ctx, claims.UserID), map[string]any{"actor_role": claims.Role.String()})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
