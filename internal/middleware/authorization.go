package middleware

import (
	"net/http"

	"go.uber.org/zap"
)

// RequireAdmin rejects authenticated callers whose role is not admin.
// It must run after AuthMiddleware.
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetAdminRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context", zap.String("path", r.URL.Path))
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			if role != RoleAdmin {
				subject, _ := GetAdminSubject(r.Context())
				logger.Warn("Non-admin caller attempted to modify the catalog",
					zap.String("subject", subject),
					zap.String("role", role),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly chains token validation and the admin role check.
// An empty secret leaves the routes open, which is how local single-operator setups run.
func AdminOnly(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	if jwtSecret == "" {
		logger.Warn("Admin routes are not protected: ADMIN_JWT_SECRET is empty")
		return func(next http.Handler) http.Handler { return next }
	}
	auth := AuthMiddleware(jwtSecret, logger)
	admin := RequireAdmin(logger)
	return func(next http.Handler) http.Handler {
		return auth(admin(next))
	}
}
