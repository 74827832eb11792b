package middleware

import (
	"net/http"
	"strings"

	"github.com/hostlane/qms-backend/api/responses"
	pkgAuth "github.com/hostlane/qms-backend/pkg/auth"
	"github.com/hostlane/qms-backend/pkg/config"
	pkgerrors "github.com/hostlane/qms-backend/pkg/errors"
	"github.com/hostlane/qms-backend/pkg/logger"
)

// Auth verifies the bearer token and seeds the request context with the
// caller's subject, role, and tenant scope.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithSubject(r.Context(), claims.Subject)
			ctx = WithRole(ctx, string(claims.Role))
			if claims.TenantID != nil {
				ctx = WithTenantID(ctx, claims.TenantID.String())
			}

			if logg != nil {
				fields := map[string]any{
					"subject":    claims.Subject,
					"actor_role": string(claims.Role),
				}
				if claims.TenantID != nil {
					fields["tenant_id"] = claims.TenantID.String()
				}
				ctx = logg.WithFields(ctx, fields)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
