package middleware

import (
	"net/http"

	"github.com/paywallet/paywallet-backend/api/responses"
	"github.com/paywallet/paywallet-backend/internal/guard"
	"github.com/paywallet/paywallet-backend/pkg/enums"
	"github.com/paywallet/paywallet-backend/pkg/logger"
)

// RequirePermission rejects callers whose identity does not carry the
// permission. Session callers always pass; api key callers pass only when
// the key was created with it.
func RequirePermission(permission enums.Permission, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if err := guard.Authorize(identity, permission); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
